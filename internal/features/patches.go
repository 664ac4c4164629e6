// Package features composites the overlays decoded alongside a frame:
// rectangular patches, rasterized splines and synthetic noise.
//
// Every feature works on one frame row at a time so that the finalizer can
// apply it right after the restoration filters produce that row.
package features

import (
	"fmt"
	"sort"

	"github.com/gogpu/recon/internal/plane"
)

// BlendMode selects how a patch combines with the frame.
type BlendMode uint8

const (
	// BlendNone skips the patch.
	BlendNone BlendMode = iota
	// BlendReplace overwrites frame samples with patch samples.
	BlendReplace
	// BlendAdd adds patch samples to frame samples.
	BlendAdd
)

// String implements fmt.Stringer.
func (m BlendMode) String() string {
	switch m {
	case BlendNone:
		return "none"
	case BlendReplace:
		return "replace"
	case BlendAdd:
		return "add"
	default:
		return fmt.Sprintf("BlendMode(%d)", uint8(m))
	}
}

// Patch places Pixels with its top-left corner at (X, Y).
type Patch struct {
	X, Y   int
	Pixels *plane.Image3F
	Mode   BlendMode
}

func (p *Patch) x1() int { return p.X + p.Pixels.Width() }
func (p *Patch) y1() int { return p.Y + p.Pixels.Height() }

// Patches is an immutable set of patches, applied in declaration order.
type Patches struct {
	list []Patch
	// byY holds indices into list sorted by top edge.
	byY []int
}

// NewPatches indexes the given patches. Patches without pixels or with
// BlendNone are dropped.
func NewPatches(list []Patch) *Patches {
	ps := &Patches{}
	for _, p := range list {
		if p.Pixels == nil || p.Mode == BlendNone {
			continue
		}
		ps.list = append(ps.list, p)
	}
	ps.byY = make([]int, len(ps.list))
	for i := range ps.byY {
		ps.byY[i] = i
	}
	sort.SliceStable(ps.byY, func(a, b int) bool {
		return ps.list[ps.byY[a]].Y < ps.list[ps.byY[b]].Y
	})
	return ps
}

// Len returns the number of active patches.
func (ps *Patches) Len() int {
	if ps == nil {
		return 0
	}
	return len(ps.list)
}

// Overlaps reports whether any patch intersects r.
func (ps *Patches) Overlaps(r plane.Rect) bool {
	if ps.Len() == 0 {
		return false
	}
	for i := range ps.list {
		p := &ps.list[i]
		if p.X < r.X1() && p.x1() > r.X0() && p.Y < r.Y1() && p.y1() > r.Y0() {
			return true
		}
	}
	return false
}

// AddTo blends every patch covering row into img, clipped to row's
// columns. row must be a single-row rectangle.
func (ps *Patches) AddTo(img *plane.Image3F, row plane.Rect) {
	if ps.Len() == 0 {
		return
	}
	y := row.Y0()
	// Patches with Y > y cannot cover the row.
	n := sort.Search(len(ps.byY), func(i int) bool { return ps.list[ps.byY[i]].Y > y })

	// Apply in declaration order so overlapping replace patches resolve
	// the same way regardless of sorting.
	var hits []int
	for _, idx := range ps.byY[:n] {
		if ps.list[idx].y1() > y {
			hits = append(hits, idx)
		}
	}
	sort.Ints(hits)

	for _, idx := range hits {
		p := &ps.list[idx]
		x0 := max(p.X, row.X0())
		x1 := min(p.x1(), row.X1())
		if x1 <= x0 {
			continue
		}
		for c := range 3 {
			dst := img.PlaneRow(c, y)[x0:x1]
			src := p.Pixels.PlaneRow(c, y-p.Y)[x0-p.X : x1-p.X]
			switch p.Mode {
			case BlendReplace:
				copy(dst, src)
			case BlendAdd:
				for i, v := range src {
					dst[i] += v
				}
			}
		}
	}
}
