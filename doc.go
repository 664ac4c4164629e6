// Package recon reconstructs final output pixels from decoded image-codec
// frames.
//
// # Overview
//
// The upstream decoder produces a block-padded, three-plane float buffer
// per frame together with its image features. A Session turns that buffer
// into output pixels in place:
//
//  1. The frame is tiled into regions: belts around internal group
//     boundaries and the group interiors between them. Together they cover
//     the frame exactly once.
//  2. Every region runs through the restoration filters (a 3×3 sharpening
//     pass and an edge-preserving filter) row by row, in parallel.
//  3. Each filtered row gets patches, splines, the reference frame, noise
//     and optionally the XYB to linear transform.
//  4. The frame is cropped to its native size and, for YCbCr frames,
//     converted to RGB.
//
// # Quick Start
//
//	s := recon.NewSession()
//	defer s.Close()
//
//	dim, _ := recon.NewFrameDim(300, 300, 256)
//	img, _ := dim.NewBuffer()
//	// ... fill img from the decoder ...
//
//	hdr := &recon.FrameHeader{Dim: dim, ColorTransform: recon.ColorTransformXYB}
//	out, err := s.Finalize(img, hdr, feats, recon.WithColorTransform(true))
//
//	pb, _ := recon.Export(out, recon.OutputFormat{Layout: recon.LayoutRGB, SRGB: true})
//
// # Concurrency
//
// Regions are independent; rows within a region are processed in order.
// Each worker owns its filter scratch. Regions read their neighbours'
// unfiltered pixels from halo snapshots taken before dispatch, so the
// output does not depend on the number of workers or on scheduling.
//
// # Reference Frames
//
// A frame with SaveReference (and WithSaveDecompressed) keeps its
// pre-noise pixels in the session; a later frame with RestoreReference
// adds them into its own. The reference can be checkpointed with
// Session.SaveReference and Session.LoadReference.
package recon

// Version is the current version of the library.
const Version = "0.1.0"
