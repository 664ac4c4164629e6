package recon

import (
	"errors"
	"fmt"
	"image"
	imgcolor "image/color"

	"github.com/gogpu/recon/internal/color"
)

// ErrUnsupportedFormat is returned for output formats Export cannot produce.
var ErrUnsupportedFormat = errors.New("recon: unsupported output format")

// Layout is the channel layout of exported pixels.
type Layout uint8

const (
	// LayoutGray writes plane 0 only.
	LayoutGray Layout = iota
	// LayoutGrayAlpha writes plane 0 and an opaque alpha sample.
	LayoutGrayAlpha
	// LayoutRGB writes planes 0, 1 and 2.
	LayoutRGB
	// LayoutRGBA writes the three planes and an opaque alpha sample.
	LayoutRGBA
)

// Channels returns the number of interleaved samples per pixel.
func (l Layout) Channels() int {
	switch l {
	case LayoutGray:
		return 1
	case LayoutGrayAlpha:
		return 2
	case LayoutRGB:
		return 3
	case LayoutRGBA:
		return 4
	default:
		return 0
	}
}

func (l Layout) hasAlpha() bool { return l == LayoutGrayAlpha || l == LayoutRGBA }

func (l Layout) colorChannels() int {
	if l == LayoutGray || l == LayoutGrayAlpha {
		return 1
	}
	return 3
}

// Depth is the sample type of exported pixels.
type Depth uint8

const (
	// Depth8 rounds and clamps samples to uint8.
	Depth8 Depth = iota
	// Depth16 rounds and clamps samples to uint16.
	Depth16
	// DepthFloat copies float32 samples without clamping.
	DepthFloat
)

// OutputFormat selects how Export interleaves and encodes samples.
type OutputFormat struct {
	Layout Layout
	Depth  Depth

	// SRGB applies the sRGB transfer curve to colour channels, for frames
	// holding linear light. Alpha is never encoded.
	SRGB bool
}

func (f OutputFormat) String() string {
	return fmt.Sprintf("layout=%d depth=%d srgb=%v", f.Layout, f.Depth, f.SRGB)
}

// PixelBuffer holds interleaved exported pixels. Exactly one of Pix8,
// Pix16 and PixF is set, matching Format.Depth.
type PixelBuffer struct {
	Format OutputFormat
	Width  int
	Height int
	// Stride is the number of samples between rows.
	Stride int

	Pix8  []uint8
	Pix16 []uint16
	PixF  []float32
}

// Export interleaves the first Layout.Channels() planes of img into a new
// buffer. Gray layouts take the first plane. Alpha is opaque.
func Export(img *Image3F, f OutputFormat) (*PixelBuffer, error) {
	nc := f.Layout.Channels()
	if nc == 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, f)
	}
	w, h := img.Width(), img.Height()
	pb := &PixelBuffer{Format: f, Width: w, Height: h, Stride: w * nc}

	switch f.Depth {
	case Depth8:
		conv := color.ToUint8
		if f.SRGB {
			conv = color.LinearToSRGB8
		}
		pb.Pix8 = make([]uint8, pb.Stride*h)
		interleave(pb.Pix8, img, f.Layout, conv, 0xff)
	case Depth16:
		conv := color.ToUint16
		if f.SRGB {
			conv = func(v float32) uint16 { return color.ToUint16(color.LinearToSRGB(max(v, 0))) }
		}
		pb.Pix16 = make([]uint16, pb.Stride*h)
		interleave(pb.Pix16, img, f.Layout, conv, 0xffff)
	case DepthFloat:
		conv := func(v float32) float32 { return v }
		if f.SRGB {
			conv = color.LinearToSRGB
		}
		pb.PixF = make([]float32, pb.Stride*h)
		interleave(pb.PixF, img, f.Layout, conv, 1)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, f)
	}
	return pb, nil
}

func interleave[T uint8 | uint16 | float32](dst []T, img *Image3F, l Layout, conv func(float32) T, opaque T) {
	nc := l.Channels()
	cc := l.colorChannels()
	alpha := l.hasAlpha()
	w := img.Width()
	var src [3][]float32
	for y := range img.Height() {
		for c := range cc {
			src[c] = img.PlaneRow(c, y)
		}
		row := dst[y*w*nc : (y+1)*w*nc]
		for x := range w {
			px := row[x*nc : x*nc+nc]
			for c := range cc {
				px[c] = conv(src[c][x])
			}
			if alpha {
				px[nc-1] = opaque
			}
		}
	}
}

// Image wraps 8- and 16-bit buffers as an image.Image. The samples are
// copied; gray-with-alpha and RGB layouts widen to non-premultiplied RGBA.
func (pb *PixelBuffer) Image() (image.Image, error) {
	r := image.Rect(0, 0, pb.Width, pb.Height)
	nc := pb.Format.Layout.Channels()
	switch pb.Format.Depth {
	case Depth8:
		if pb.Format.Layout == LayoutGray {
			g := image.NewGray(r)
			for y := range pb.Height {
				copy(g.Pix[y*g.Stride:], pb.Pix8[y*pb.Stride:(y+1)*pb.Stride])
			}
			return g, nil
		}
		m := image.NewNRGBA(r)
		for y := range pb.Height {
			for x := range pb.Width {
				m.SetNRGBA(x, y, nrgba(pb.Pix8[y*pb.Stride+x*nc:], pb.Format.Layout))
			}
		}
		return m, nil
	case Depth16:
		if pb.Format.Layout == LayoutGray {
			g := image.NewGray16(r)
			for y := range pb.Height {
				for x := range pb.Width {
					g.SetGray16(x, y, imgcolor.Gray16{Y: pb.Pix16[y*pb.Stride+x]})
				}
			}
			return g, nil
		}
		m := image.NewNRGBA64(r)
		for y := range pb.Height {
			for x := range pb.Width {
				m.SetNRGBA64(x, y, nrgba64(pb.Pix16[y*pb.Stride+x*nc:], pb.Format.Layout))
			}
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: no image.Image for %v", ErrUnsupportedFormat, pb.Format)
	}
}

func nrgba(px []uint8, l Layout) imgcolor.NRGBA {
	switch l {
	case LayoutGrayAlpha:
		return imgcolor.NRGBA{R: px[0], G: px[0], B: px[0], A: px[1]}
	case LayoutRGB:
		return imgcolor.NRGBA{R: px[0], G: px[1], B: px[2], A: 0xff}
	default:
		return imgcolor.NRGBA{R: px[0], G: px[1], B: px[2], A: px[3]}
	}
}

func nrgba64(px []uint16, l Layout) imgcolor.NRGBA64 {
	switch l {
	case LayoutGrayAlpha:
		return imgcolor.NRGBA64{R: px[0], G: px[0], B: px[0], A: px[1]}
	case LayoutRGB:
		return imgcolor.NRGBA64{R: px[0], G: px[1], B: px[2], A: 0xffff}
	default:
		return imgcolor.NRGBA64{R: px[0], G: px[1], B: px[2], A: px[3]}
	}
}
