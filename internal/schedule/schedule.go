// Package schedule partitions a frame into the regions processed by the
// finalizer.
//
// Restoration filters read a halo around every pixel. The upstream decoder
// works group by group, so the pixels within a halo of an internal group
// boundary are handled by dedicated belt regions straddling the boundary;
// the rest of each group becomes an interior region. Together the regions
// cover the padded frame exactly once, so they can be processed in any
// order and in parallel without two regions writing the same pixel.
package schedule

import (
	"errors"
	"fmt"

	"github.com/gogpu/recon/internal/plane"
)

// BlockDim is the transform block size frames are padded to.
const BlockDim = 8

// ErrInvalidLayout is returned for layouts that cannot be tiled.
var ErrInvalidLayout = errors.New("schedule: invalid layout")

// Kind tells why a region exists.
type Kind uint8

const (
	// KindRowBoundary is a full-width belt around a group-row boundary.
	KindRowBoundary Kind = iota
	// KindColumnBoundary is a belt around a group-column boundary.
	KindColumnBoundary
	// KindGroup is a group, or the part of it not covered by belts.
	KindGroup
	// KindFrame is the whole frame, used when nothing else is scheduled.
	KindFrame
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindRowBoundary:
		return "row-boundary"
	case KindColumnBoundary:
		return "column-boundary"
	case KindGroup:
		return "group"
	case KindFrame:
		return "frame"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Region is one unit of work.
type Region struct {
	plane.Rect
	Kind Kind
}

// MergePolicy decides when a group boundary is too close to another
// boundary or to the frame edge to deserve its own belt. The groups on
// both sides are then treated as one.
type MergePolicy struct {
	// Slack is the minimum extent beyond the halo a segment between two
	// boundaries must have.
	Slack int
}

// DefaultMergePolicy merges groups that are less than one block larger
// than the halo.
var DefaultMergePolicy = MergePolicy{Slack: BlockDim}

// MinExtent returns the smallest segment length kept for halo pad.
// It never drops below 2·pad, which keeps adjacent belts disjoint.
func (m MergePolicy) MinExtent(pad int) int {
	return max(2*pad, pad+m.Slack, 1)
}

// Layout describes the frame to tile.
type Layout struct {
	// XSize and YSize are the padded frame dimensions.
	XSize, YSize int

	// GroupDim is the side of the decoder's groups.
	GroupDim int

	// PadX and PadY are the restoration filter halo.
	PadX, PadY int

	// Filtering is set when restoration filters are enabled.
	Filtering bool

	// RegionCoded is set for frames decoded group by group without a block
	// transform; they always need a compositing pass per group.
	RegionCoded bool

	Merge MergePolicy

	// BeltTile splits belts along their length into pieces of at most
	// this many pixels so long belts spread across workers. Zero keeps
	// each belt whole.
	BeltTile int
}

// Plan returns the regions for l.
//
// With filtering, it emits row belts, column belts and group interiors.
// Without filtering, region-coded frames get one region per group and
// other frames get none; the caller then processes the whole frame as one
// region.
func Plan(l Layout) ([]Region, error) {
	if l.XSize <= 0 || l.YSize <= 0 || l.GroupDim <= 0 || l.PadX < 0 || l.PadY < 0 || l.BeltTile < 0 {
		return nil, fmt.Errorf("%w: %dx%d, group %d, halo %dx%d",
			ErrInvalidLayout, l.XSize, l.YSize, l.GroupDim, l.PadX, l.PadY)
	}
	switch {
	case l.Filtering:
		return planFiltered(l), nil
	case l.RegionCoded:
		return planGroups(l), nil
	default:
		return nil, nil
	}
}

// Cuts returns the group boundaries along an axis of the given size that
// keep a belt of halo pad, in increasing order.
func Cuts(size, groupDim, pad int, m MergePolicy) []int {
	minExt := m.MinExtent(pad)
	var cuts []int
	prev := 0
	for c := groupDim; c < size; c += groupDim {
		if c-prev < minExt || size-c < minExt {
			continue
		}
		cuts = append(cuts, c)
		prev = c
	}
	return cuts
}

func planGroups(l Layout) []Region {
	var out []Region
	for y := 0; y < l.YSize; y += l.GroupDim {
		for x := 0; x < l.XSize; x += l.GroupDim {
			out = append(out, Region{
				Rect: plane.ClampedRect(x, y, l.GroupDim, l.GroupDim, l.XSize, l.YSize),
				Kind: KindGroup,
			})
		}
	}
	return out
}

// segments turns cuts into [start, end) spans covering [0, size).
func segments(size int, cuts []int) [][2]int {
	spans := make([][2]int, 0, len(cuts)+1)
	start := 0
	for _, c := range cuts {
		spans = append(spans, [2]int{start, c})
		start = c
	}
	return append(spans, [2]int{start, size})
}

// shrink removes the belt halves from a segment. Frame edges have no belt.
func shrink(s [2]int, size, pad int) (int, int) {
	lo, hi := s[0], s[1]
	if lo > 0 {
		lo += pad
	}
	if hi < size {
		hi -= pad
	}
	return lo, hi
}

func planFiltered(l Layout) []Region {
	rows := segments(l.YSize, Cuts(l.YSize, l.GroupDim, l.PadY, l.Merge))
	cols := segments(l.XSize, Cuts(l.XSize, l.GroupDim, l.PadX, l.Merge))

	add := func(out []Region, x0, y0, x1, y1 int, k Kind) []Region {
		if x1 <= x0 || y1 <= y0 {
			return out
		}
		return append(out, Region{
			Rect: plane.ClampedRect(x0, y0, x1-x0, y1-y0, l.XSize, l.YSize),
			Kind: k,
		})
	}

	var out []Region

	// Belts across group-row boundaries span the full width.
	for _, s := range rows[1:] {
		for _, t := range tiles(0, l.XSize, l.BeltTile) {
			out = add(out, t[0], s[0]-l.PadY, t[1], s[0]+l.PadY, KindRowBoundary)
		}
	}

	// Belts across group-column boundaries stop at the row belts.
	for _, cs := range cols[1:] {
		for _, rs := range rows {
			y0, y1 := shrink(rs, l.YSize, l.PadY)
			for _, t := range tiles(y0, y1, l.BeltTile) {
				out = add(out, cs[0]-l.PadX, t[0], cs[0]+l.PadX, t[1], KindColumnBoundary)
			}
		}
	}

	for _, rs := range rows {
		y0, y1 := shrink(rs, l.YSize, l.PadY)
		for _, cs := range cols {
			x0, x1 := shrink(cs, l.XSize, l.PadX)
			out = add(out, x0, y0, x1, y1, KindGroup)
		}
	}
	return out
}

// tiles splits [lo, hi) into spans of at most n; n <= 0 keeps it whole.
func tiles(lo, hi, n int) [][2]int {
	if n <= 0 || hi-lo <= n {
		return [][2]int{{lo, hi}}
	}
	spans := make([][2]int, 0, (hi-lo+n-1)/n)
	for s := lo; s < hi; s += n {
		spans = append(spans, [2]int{s, min(s+n, hi)})
	}
	return spans
}

// MaxWidth returns the widest region in regions.
func MaxWidth(regions []Region) int {
	w := 0
	for _, r := range regions {
		w = max(w, r.XSize())
	}
	return w
}

// Count returns how many regions have kind k.
func Count(regions []Region, k Kind) int {
	n := 0
	for _, r := range regions {
		if r.Kind == k {
			n++
		}
	}
	return n
}
