// Package plane provides planar float32 sample buffers and the rectangle
// type used to address sub-windows of them.
//
// Frames are stored as three independent planes (Image3F). Every plane row
// is a contiguous []float32; rows are separated by a stride that may exceed
// the visible width after ShrinkTo.
package plane

import "errors"

// Common errors for plane operations.
var (
	// ErrInvalidDimensions is returned when width or height is non-positive.
	ErrInvalidDimensions = errors.New("plane: invalid dimensions")

	// ErrRectOutOfBounds is returned when a rectangle does not fit its parent.
	ErrRectOutOfBounds = errors.New("plane: rectangle exceeds parent bounds")

	// ErrShapeMismatch is returned when two buffers must share dimensions.
	ErrShapeMismatch = errors.New("plane: buffer shapes differ")
)

// ImageF is a single plane of float32 samples.
//
// Thread safety: concurrent writers must touch disjoint rows.
type ImageF struct {
	pix    []float32
	width  int
	height int
	stride int
}

// NewImageF allocates a zeroed plane.
func NewImageF(width, height int) (*ImageF, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	return &ImageF{
		pix:    make([]float32, width*height),
		width:  width,
		height: height,
		stride: width,
	}, nil
}

// Width returns the visible width in samples.
func (p *ImageF) Width() int { return p.width }

// Height returns the visible height in rows.
func (p *ImageF) Height() int { return p.height }

// Stride returns the distance between rows in samples.
func (p *ImageF) Stride() int { return p.stride }

// Row returns row y, limited to the visible width.
// The slice aliases the plane storage.
func (p *ImageF) Row(y int) []float32 {
	off := y * p.stride
	return p.pix[off : off+p.width : off+p.width]
}

// Fill sets every visible sample to v.
func (p *ImageF) Fill(v float32) {
	for y := range p.height {
		row := p.Row(y)
		for x := range row {
			row[x] = v
		}
	}
}

// ShrinkTo reduces the visible size without moving samples.
// Growing is not supported; larger values are clamped to the current size.
func (p *ImageF) ShrinkTo(width, height int) {
	p.width = min(p.width, max(width, 0))
	p.height = min(p.height, max(height, 0))
}

// Clone returns a compact deep copy of the visible samples.
func (p *ImageF) Clone() *ImageF {
	c := &ImageF{
		pix:    make([]float32, p.width*p.height),
		width:  p.width,
		height: p.height,
		stride: p.width,
	}
	for y := range p.height {
		copy(c.Row(y), p.Row(y))
	}
	return c
}

// Image3F is a three-plane float image. Planes always share dimensions.
type Image3F struct {
	planes [3]*ImageF
}

// NewImage3F allocates three zeroed planes.
func NewImage3F(width, height int) (*Image3F, error) {
	var img Image3F
	for c := range img.planes {
		p, err := NewImageF(width, height)
		if err != nil {
			return nil, err
		}
		img.planes[c] = p
	}
	return &img, nil
}

// Plane returns plane c (0, 1 or 2).
func (m *Image3F) Plane(c int) *ImageF { return m.planes[c] }

// Width returns the visible width.
func (m *Image3F) Width() int { return m.planes[0].width }

// Height returns the visible height.
func (m *Image3F) Height() int { return m.planes[0].height }

// PlaneRow returns row y of plane c.
func (m *Image3F) PlaneRow(c, y int) []float32 { return m.planes[c].Row(y) }

// Bounds returns a rectangle covering the whole visible image.
func (m *Image3F) Bounds() Rect {
	w, h := m.Width(), m.Height()
	return Rect{xsize: w, ysize: h, parentX: w, parentY: h}
}

// ShrinkTo crops all planes to width × height.
func (m *Image3F) ShrinkTo(width, height int) {
	for _, p := range m.planes {
		p.ShrinkTo(width, height)
	}
}

// Clone returns a deep copy.
func (m *Image3F) Clone() *Image3F {
	var c Image3F
	for i, p := range m.planes {
		c.planes[i] = p.Clone()
	}
	return &c
}

// Fill sets every sample of plane c to vals[c].
func (m *Image3F) Fill(vals [3]float32) {
	for c, p := range m.planes {
		p.Fill(vals[c])
	}
}

// Equal reports whether both images have identical dimensions and samples.
func (m *Image3F) Equal(o *Image3F) bool {
	if m.Width() != o.Width() || m.Height() != o.Height() {
		return false
	}
	for c := range m.planes {
		for y := range m.Height() {
			a, b := m.PlaneRow(c, y), o.PlaneRow(c, y)
			for x := range a {
				if a[x] != b[x] {
					return false
				}
			}
		}
	}
	return true
}

// CopyRect copies the samples of r from src into the same position in dst.
// Both images must contain r.
func CopyRect(r Rect, src, dst *Image3F) {
	for c := range 3 {
		for y := range r.ysize {
			copy(r.PlaneRow(dst, c, y), r.PlaneRow(src, c, y))
		}
	}
}

// Mirror maps coord into [0, size) by reflecting across the edges
// (-1 → 0, size → size-1). Repeats for coordinates far outside.
func Mirror(coord, size int) int {
	if size <= 1 {
		return 0
	}
	for coord < 0 || coord >= size {
		if coord < 0 {
			coord = -coord - 1
		} else {
			coord = 2*size - 1 - coord
		}
	}
	return coord
}
