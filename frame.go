package recon

import (
	"fmt"

	"github.com/gogpu/recon/internal/color"
	"github.com/gogpu/recon/internal/plane"
)

// BlockDim is the block size frames are padded to.
const BlockDim = 8

// DefaultGroupDim is the usual side of a group.
const DefaultGroupDim = 256

// Encoding is the coding mode of a frame.
type Encoding uint8

const (
	// EncodingVarDCT marks block-transform coded frames.
	EncodingVarDCT Encoding = iota
	// EncodingModular marks region-coded frames.
	EncodingModular
)

// String implements fmt.Stringer.
func (e Encoding) String() string {
	switch e {
	case EncodingVarDCT:
		return "vardct"
	case EncodingModular:
		return "modular"
	default:
		return fmt.Sprintf("Encoding(%d)", uint8(e))
	}
}

// Flags are per-frame feature switches.
type Flags uint32

const (
	// FlagNoise enables noise synthesis.
	FlagNoise Flags = 1 << iota
)

// ColorTransform selects the colour space a frame was coded in.
type ColorTransform = color.Transform

// Colour transforms.
const (
	ColorTransformNone  = color.TransformNone
	ColorTransformXYB   = color.TransformXYB
	ColorTransformYCbCr = color.TransformYCbCr
)

// FrameDim holds the native and padded dimensions of a frame and its
// group tiling.
type FrameDim struct {
	XSize, YSize             int
	XSizePadded, YSizePadded int
	GroupDim                 int
	XSizeGroups, YSizeGroups int
}

// NewFrameDim computes the dimensions of an xsize × ysize frame coded in
// groups of groupDim (a multiple of BlockDim). A groupDim of 0 selects
// DefaultGroupDim.
func NewFrameDim(xsize, ysize, groupDim int) (FrameDim, error) {
	if groupDim == 0 {
		groupDim = DefaultGroupDim
	}
	if xsize <= 0 || ysize <= 0 {
		return FrameDim{}, &ConfigError{Field: "Dim", Reason: fmt.Sprintf("non-positive size %dx%d", xsize, ysize)}
	}
	if groupDim < BlockDim || groupDim%BlockDim != 0 {
		return FrameDim{}, &ConfigError{Field: "GroupDim", Reason: fmt.Sprintf("%d is not a positive multiple of %d", groupDim, BlockDim)}
	}
	return FrameDim{
		XSize:       xsize,
		YSize:       ysize,
		XSizePadded: roundUp(xsize, BlockDim),
		YSizePadded: roundUp(ysize, BlockDim),
		GroupDim:    groupDim,
		XSizeGroups: (xsize + groupDim - 1) / groupDim,
		YSizeGroups: (ysize + groupDim - 1) / groupDim,
	}, nil
}

// NumGroups returns the number of groups in the frame.
func (d FrameDim) NumGroups() int { return d.XSizeGroups * d.YSizeGroups }

// NewBuffer allocates a zeroed padded buffer for the frame.
func (d FrameDim) NewBuffer() (*Image3F, error) {
	return plane.NewImage3F(d.XSizePadded, d.YSizePadded)
}

func roundUp(v, m int) int { return (v + m - 1) / m * m }

// FrameHeader is the read-only metadata of the frame being reconstructed.
type FrameHeader struct {
	Dim            FrameDim
	Encoding       Encoding
	ColorTransform ColorTransform
	Flags          Flags

	// NoiseSeed seeds noise synthesis. Output depends only on the seed
	// and sample coordinates.
	NoiseSeed uint64

	// IntensityTarget scales XYB output; 0 selects 255.
	IntensityTarget float32

	// SaveReference keeps this frame in the session for later frames.
	SaveReference bool
	// RestoreReference adds the saved reference frame into this one.
	RestoreReference bool
}

// HasNoise reports whether noise synthesis is enabled for the frame.
func (h *FrameHeader) HasNoise() bool { return h.Flags&FlagNoise != 0 }

// validate checks the header against the decoded buffer.
func (h *FrameHeader) validate(img *Image3F) error {
	if h == nil {
		return &ConfigError{Field: "Header", Reason: "missing"}
	}
	if !h.ColorTransform.Valid() {
		return &ConfigError{Field: "ColorTransform", Reason: "unknown transform " + h.ColorTransform.String()}
	}
	if h.Encoding != EncodingVarDCT && h.Encoding != EncodingModular {
		return &ConfigError{Field: "Encoding", Reason: "unknown encoding " + h.Encoding.String()}
	}
	d := h.Dim
	if d.XSize <= 0 || d.YSize <= 0 || d.XSizePadded < d.XSize || d.YSizePadded < d.YSize || d.GroupDim <= 0 {
		return &ConfigError{Field: "Dim", Reason: fmt.Sprintf("inconsistent dimensions %+v", d)}
	}
	if img == nil {
		return &ConfigError{Field: "Image", Reason: "missing"}
	}
	if img.Width() != d.XSizePadded || img.Height() != d.YSizePadded {
		return &ConfigError{Field: "Image", Reason: fmt.Sprintf("buffer is %dx%d, padded frame is %dx%d",
			img.Width(), img.Height(), d.XSizePadded, d.YSizePadded)}
	}
	return nil
}
