// Command recondemo reconstructs a synthetic XYB frame and writes it as a
// 16-bit TIFF plus a downscaled PNG preview.
package main

import (
	"flag"
	"image"
	"image/png"
	"log"
	"log/slog"
	"math"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f32"
	"golang.org/x/image/tiff"

	"github.com/gogpu/recon"
	"github.com/gogpu/recon/internal/color"
)

func main() {
	var (
		width     = flag.Int("width", 600, "frame width")
		height    = flag.Int("height", 400, "frame height")
		group     = flag.Int("group", recon.DefaultGroupDim, "group size (multiple of 8)")
		workers   = flag.Int("workers", 0, "worker count (0 = GOMAXPROCS)")
		beltTile  = flag.Int("belt-tile", 64, "split group-boundary belts into pieces this long (0 = whole)")
		noise     = flag.Bool("noise", true, "synthesize noise")
		seed      = flag.Uint64("seed", 1, "noise seed")
		output    = flag.String("output", "recon.tiff", "16-bit TIFF output")
		preview   = flag.String("preview", "preview.png", "PNG preview output (empty to skip)")
		previewW  = flag.Int("preview-width", 256, "preview width")
		reference = flag.String("reference", "", "write the reference snapshot here")
		verbose   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		recon.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	dim, err := recon.NewFrameDim(*width, *height, *group)
	if err != nil {
		log.Fatal(err)
	}
	img, err := dim.NewBuffer()
	if err != nil {
		log.Fatal(err)
	}
	fillGradient(img)

	hdr := &recon.FrameHeader{
		Dim:            dim,
		ColorTransform: recon.ColorTransformXYB,
		NoiseSeed:      *seed,
		SaveReference:  *reference != "",
	}
	if *noise {
		hdr.Flags |= recon.FlagNoise
	}

	s := recon.NewSession(recon.WithWorkers(*workers))
	defer s.Close()

	out, err := s.Finalize(img, hdr, demoFeatures(dim),
		recon.WithColorTransform(true),
		recon.WithBeltTile(*beltTile),
		recon.WithSaveDecompressed(*reference != ""))
	if err != nil {
		log.Fatalf("Finalize failed: %v", err)
	}

	if err := writeTIFF(*output, out); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}
	log.Printf("Frame saved to %s (%dx%d)\n", *output, out.Width(), out.Height())

	if *preview != "" {
		if err := writePreview(*preview, out, *previewW); err != nil {
			log.Fatalf("Failed to save preview: %v", err)
		}
		log.Printf("Preview saved to %s\n", *preview)
	}

	if *reference != "" {
		f, err := os.Create(*reference)
		if err != nil {
			log.Fatal(err)
		}
		n, err := s.SaveReference(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			log.Fatalf("Failed to save reference: %v", err)
		}
		log.Printf("Reference saved to %s (%d bytes)\n", *reference, n)
	}
}

// fillGradient writes an sRGB colour ramp, decoded to linear light and
// coded as XYB, over the whole padded buffer.
func fillGradient(img *recon.Image3F) {
	w, h := float32(img.Width()), float32(img.Height())
	for y := range img.Height() {
		xr, yr, br := img.PlaneRow(0, y), img.PlaneRow(1, y), img.PlaneRow(2, y)
		fy := float32(y) / h
		for x := range xr {
			fx := float32(x) / w
			lin := f32.Vec3{
				color.SRGBToLinear(0.05 + 0.8*fx),
				color.SRGBToLinear(0.1 + 0.6*fy),
				color.SRGBToLinear(0.4 + 0.3*fx*fy),
			}
			v := color.LinearToXYB(lin)
			xr[x], yr[x], br[x] = v[0], v[1], v[2]
		}
	}
}

func demoFeatures(dim recon.FrameDim) *recon.ImageFeatures {
	feats := &recon.ImageFeatures{Restoration: recon.DefaultRestoreParams()}
	feats.Restoration.Sharpen.Enabled = true
	feats.Restoration.EPF.Enabled = true

	// A bright square added near the centre.
	patch, err := recon.NewImage3F(32, 32)
	if err != nil {
		log.Fatal(err)
	}
	patch.Fill([3]float32{0, 0.05, 0})
	feats.Patches = recon.NewPatches([]recon.Patch{{
		X: dim.XSize/2 - 16, Y: dim.YSize/2 - 16, Pixels: patch, Mode: recon.BlendAdd,
	}})

	// A sine wave across the frame.
	var ctrl []f32.Vec2
	for i := range 9 {
		x := float32(i) / 8 * float32(dim.XSize-1)
		y := float32(dim.YSize)/2 + float32(dim.YSize)/4*float32(math.Sin(float64(i)*math.Pi/4))
		ctrl = append(ctrl, f32.Vec2{x, y})
	}
	feats.Splines = recon.NewSplines([]recon.Spline{{
		Control: ctrl, Color: [3]float32{0.01, 0.04, -0.02}, Sigma: 2,
	}})

	for i := range feats.Noise.LUT {
		feats.Noise.LUT[i] = 0.004
	}
	return feats
}

func writeTIFF(path string, img *recon.Image3F) error {
	pb, err := recon.Export(img, recon.OutputFormat{Layout: recon.LayoutRGB, Depth: recon.Depth16, SRGB: true})
	if err != nil {
		return err
	}
	m, err := pb.Image()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := tiff.Encode(f, m, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writePreview(path string, img *recon.Image3F, width int) error {
	pb, err := recon.Export(img, recon.OutputFormat{Layout: recon.LayoutRGBA, SRGB: true})
	if err != nil {
		return err
	}
	src, err := pb.Image()
	if err != nil {
		return err
	}
	width = max(1, min(width, img.Width()))
	height := max(1, img.Height()*width/img.Width())
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, dst); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
