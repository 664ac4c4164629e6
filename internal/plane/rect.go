package plane

import "fmt"

// Rect is a rectangular sub-window of a parent image of size
// parentX × parentY. The zero value is an empty rectangle.
//
// Rect is a value type; all methods return new rectangles.
type Rect struct {
	x0, y0       int
	xsize, ysize int
	parentX      int
	parentY      int
}

// NewRect returns the rectangle (x0, y0, xsize, ysize) inside a parent of
// parentX × parentY. It fails if the rectangle leaves the parent.
func NewRect(x0, y0, xsize, ysize, parentX, parentY int) (Rect, error) {
	if x0 < 0 || y0 < 0 || xsize < 0 || ysize < 0 ||
		x0+xsize > parentX || y0+ysize > parentY {
		return Rect{}, fmt.Errorf("%w: (%d,%d %dx%d) in %dx%d",
			ErrRectOutOfBounds, x0, y0, xsize, ysize, parentX, parentY)
	}
	return Rect{x0: x0, y0: y0, xsize: xsize, ysize: ysize, parentX: parentX, parentY: parentY}, nil
}

// ClampedRect is like NewRect but clips the rectangle to the parent instead
// of failing. The result may be empty.
func ClampedRect(x0, y0, xsize, ysize, parentX, parentY int) Rect {
	x1 := min(x0+xsize, parentX)
	y1 := min(y0+ysize, parentY)
	x0 = max(x0, 0)
	y0 = max(y0, 0)
	return Rect{
		x0:      x0,
		y0:      y0,
		xsize:   max(x1-x0, 0),
		ysize:   max(y1-y0, 0),
		parentX: parentX,
		parentY: parentY,
	}
}

// X0 returns the left edge.
func (r Rect) X0() int { return r.x0 }

// Y0 returns the top edge.
func (r Rect) Y0() int { return r.y0 }

// X1 returns the exclusive right edge.
func (r Rect) X1() int { return r.x0 + r.xsize }

// Y1 returns the exclusive bottom edge.
func (r Rect) Y1() int { return r.y0 + r.ysize }

// XSize returns the width.
func (r Rect) XSize() int { return r.xsize }

// YSize returns the height.
func (r Rect) YSize() int { return r.ysize }

// ParentXSize returns the parent width.
func (r Rect) ParentXSize() int { return r.parentX }

// ParentYSize returns the parent height.
func (r Rect) ParentYSize() int { return r.parentY }

// IsEmpty reports whether the rectangle has no pixels.
func (r Rect) IsEmpty() bool { return r.xsize == 0 || r.ysize == 0 }

// Area returns the number of pixels.
func (r Rect) Area() int { return r.xsize * r.ysize }

// Contains reports whether (x, y) lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.x0 && x < r.X1() && y >= r.y0 && y < r.Y1()
}

// Intersect returns the overlap of r and o, keeping r's parent.
func (r Rect) Intersect(o Rect) Rect {
	x0 := max(r.x0, o.x0)
	y0 := max(r.y0, o.y0)
	x1 := min(r.X1(), o.X1())
	y1 := min(r.Y1(), o.Y1())
	if x1 <= x0 || y1 <= y0 {
		return Rect{x0: x0, y0: y0, parentX: r.parentX, parentY: r.parentY}
	}
	return Rect{x0: x0, y0: y0, xsize: x1 - x0, ysize: y1 - y0, parentX: r.parentX, parentY: r.parentY}
}

// Expand grows r by padX columns and padY rows on every side, clipped to
// the parent.
func (r Rect) Expand(padX, padY int) Rect {
	return ClampedRect(r.x0-padX, r.y0-padY, r.xsize+2*padX, r.ysize+2*padY, r.parentX, r.parentY)
}

// Line returns the single-row rectangle at r-relative row y.
func (r Rect) Line(y int) Rect {
	return Rect{x0: r.x0, y0: r.y0 + y, xsize: r.xsize, ysize: 1, parentX: r.parentX, parentY: r.parentY}
}

// PlaneRow returns the samples of plane c covered by r at r-relative row y.
func (r Rect) PlaneRow(img *Image3F, c, y int) []float32 {
	row := img.planes[c].Row(r.y0 + y)
	return row[r.x0 : r.x0+r.xsize : r.x0+r.xsize]
}

// String implements fmt.Stringer.
func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.x0, r.y0, r.xsize, r.ysize)
}
