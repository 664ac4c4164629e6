package restore

import "github.com/gogpu/recon/internal/plane"

// Border is a snapshot of the unfiltered samples surrounding a region.
//
// Regions are filtered in place and in parallel, so a region must not read
// its neighbours' pixels from the frame: they may already be filtered. The
// ring of halo pixels is copied out before any region is processed; pixels
// inside the region are read from the frame itself, which is safe because
// a Pipeline loads every row before writing it back. The one exception is
// the bottom frame edge, where mirrored rows below the frame alias rows the
// region has already written; those are kept in the edge band.
type Border struct {
	img   *plane.Image3F
	inner plane.Rect
	outer plane.Rect

	// top and bottom span outer's full width; left and right span inner's rows.
	top, bottom, left, right *plane.Image3F

	// edge holds inner rows [edgeY0, inner.Y1()) across outer's width when
	// the halo reaches past the bottom of the frame.
	edge   *plane.Image3F
	edgeY0 int

	pool *plane.Pool
}

// CaptureBorder copies the halo of r (padX columns, padY rows, clipped to
// the frame) out of img. Bands are taken from pool when it is non-nil.
func CaptureBorder(img *plane.Image3F, r plane.Rect, padX, padY int, pool *plane.Pool) (*Border, error) {
	b := &Border{img: img, inner: r, outer: r.Expand(padX, padY), pool: pool}

	var err error
	o, in := b.outer, b.inner
	if b.top, err = b.capture(o.X0(), o.Y0(), o.XSize(), in.Y0()-o.Y0()); err != nil {
		return nil, err
	}
	if b.bottom, err = b.capture(o.X0(), in.Y1(), o.XSize(), o.Y1()-in.Y1()); err != nil {
		return nil, err
	}
	if b.left, err = b.capture(o.X0(), in.Y0(), in.X0()-o.X0(), in.YSize()); err != nil {
		return nil, err
	}
	if b.right, err = b.capture(in.X1(), in.Y0(), o.X1()-in.X1(), in.YSize()); err != nil {
		return nil, err
	}
	if h := r.ParentYSize(); in.Y1()+padY > h {
		b.edgeY0 = max(in.Y0(), h-padY)
		if b.edge, err = b.capture(o.X0(), b.edgeY0, o.XSize(), in.Y1()-b.edgeY0); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Border) capture(x0, y0, w, h int) (*plane.Image3F, error) {
	if w <= 0 || h <= 0 {
		return nil, nil
	}
	var (
		band *plane.Image3F
		err  error
	)
	if b.pool != nil {
		band, err = b.pool.Get(w, h)
	} else {
		band, err = plane.NewImage3F(w, h)
	}
	if err != nil {
		return nil, err
	}
	for c := range 3 {
		for y := range h {
			copy(band.PlaneRow(c, y), b.img.PlaneRow(c, y0+y)[x0:x0+w])
		}
	}
	return band, nil
}

// Release hands the bands back to the pool. The Border must not be used
// afterwards.
func (b *Border) Release() {
	if b == nil || b.pool == nil {
		return
	}
	for _, band := range []*plane.Image3F{b.top, b.bottom, b.left, b.right, b.edge} {
		b.pool.Put(band)
	}
	b.top, b.bottom, b.left, b.right, b.edge = nil, nil, nil, nil, nil
}

// LoadRow fills dst with the unfiltered samples of plane c at frame row y,
// starting at frame column x0. Coordinates outside the frame are mirrored.
func (b *Border) LoadRow(c, y, x0 int, dst []float32) {
	w, h := b.inner.ParentXSize(), b.inner.ParentYSize()
	my := plane.Mirror(y, h)

	if y >= h && b.edge != nil && my >= b.edgeY0 && my < b.inner.Y1() {
		row := b.edge.PlaneRow(c, my-b.edgeY0)
		ox := b.outer.X0()
		for i := range dst {
			dst[i] = row[plane.Mirror(x0+i, w)-ox]
		}
		return
	}

	var src []float32
	if my >= b.inner.Y0() && my < b.inner.Y1() {
		src = b.img.PlaneRow(c, my)
	}
	ix0, ix1 := b.inner.X0(), b.inner.X1()
	for i := range dst {
		mx := plane.Mirror(x0+i, w)
		if src != nil && mx >= ix0 && mx < ix1 {
			dst[i] = src[mx]
			continue
		}
		dst[i] = b.band(c, mx, my)
	}
}

// band reads a halo sample. (x, y) must lie in outer but not in inner.
func (b *Border) band(c, x, y int) float32 {
	o, in := b.outer, b.inner
	switch {
	case y < in.Y0():
		return b.top.PlaneRow(c, y-o.Y0())[x-o.X0()]
	case y >= in.Y1():
		return b.bottom.PlaneRow(c, y-in.Y1())[x-o.X0()]
	case x < in.X0():
		return b.left.PlaneRow(c, y-in.Y0())[x-o.X0()]
	default:
		return b.right.PlaneRow(c, y-in.Y0())[x-in.X1()]
	}
}
