package restore

import (
	"fmt"

	"github.com/gogpu/recon/internal/plane"
)

type stageKind uint8

const (
	stageSharpen stageKind = iota
	stageEPF
)

func (k stageKind) radius() int {
	if k == stageSharpen {
		return sharpenRadius
	}
	return epfRadius
}

// ring holds the most recent rows of one stage's input, indexed by frame
// row modulo the ring height.
type ring struct {
	rows  int
	width int
	data  [3][]float32
}

// reserve sizes the ring, reallocating only when it must grow.
func (r *ring) reserve(rows, width int) {
	need := rows * width
	for c := range r.data {
		if cap(r.data[c]) < need {
			r.data[c] = make([]float32, need)
		}
		r.data[c] = r.data[c][:need]
	}
	r.rows = rows
	r.width = width
}

func (r *ring) row(c, y int) []float32 {
	s := y % r.rows
	if s < 0 {
		s += r.rows
	}
	return r.data[c][s*r.width : (s+1)*r.width]
}

// Pipeline runs the restoration filters over one region at a time.
//
// A Pipeline is per-worker scratch storage: it must not be shared between
// goroutines. Call Begin for each region, then ApplyRow for input rows
// 0, 1, ..., Rows()-1 in that order.
type Pipeline struct {
	params *Params
	stages []stageKind
	pad    int

	// rings[s] is the input of stage s.
	rings []ring
	// inY0[s] and inX0[s] are the frame coordinates of stage s's first
	// input row and column.
	inY0 []int
	inX0 []int

	img    *plane.Image3F
	border *Border
	rect   plane.Rect
	next   int
	rows   int
}

// NewPipeline creates a pipeline for the given filters.
func NewPipeline(p *Params) *Pipeline {
	pl := &Pipeline{}
	pl.Configure(p)
	return pl
}

// Configure switches the pipeline to a new set of filters. Ring storage
// already allocated is kept for reuse.
func (pl *Pipeline) Configure(p *Params) {
	pl.params = p
	pl.pad = p.PaddingRows()
	pl.stages = pl.stages[:0]
	if p.Active() {
		if p.Sharpen.Enabled {
			pl.stages = append(pl.stages, stageSharpen)
		}
		if p.EPF.Enabled {
			pl.stages = append(pl.stages, stageEPF)
		}
	}
	for len(pl.rings) < len(pl.stages) {
		pl.rings = append(pl.rings, ring{})
	}
	pl.inY0 = make([]int, len(pl.stages))
	pl.inX0 = make([]int, len(pl.stages))
}

// ScratchBytes returns the ring memory a pipeline needs for regions up to
// width columns wide.
func ScratchBytes(p *Params, width int) int {
	if !p.Active() {
		return 0
	}
	n := 0
	pad := p.PaddingCols()
	for _, k := range []struct {
		on bool
		r  int
	}{{p.Sharpen.Enabled, sharpenRadius}, {p.EPF.Enabled, epfRadius}} {
		if !k.on {
			continue
		}
		n += 3 * (2*k.r + 1) * (width + 2*pad) * 4
		pad -= k.r
	}
	return n
}

// Reserve grows the rings for regions up to width columns wide.
func (pl *Pipeline) Reserve(width int) {
	pad := pl.pad
	for s, k := range pl.stages {
		pl.rings[s].reserve(2*k.radius()+1, width+2*pad)
		pad -= k.radius()
	}
}

// Padding returns the halo, in rows and columns, the pipeline reads.
func (pl *Pipeline) Padding() int { return pl.pad }

// Begin prepares the pipeline for region r of img. border supplies the
// unfiltered halo and may be nil when no filter is enabled.
func (pl *Pipeline) Begin(img *plane.Image3F, border *Border, r plane.Rect) {
	pl.img = img
	pl.border = border
	pl.rect = r
	pl.next = 0
	pl.rows = r.YSize() + 2*pl.pad

	pad := pl.pad
	y0, x0 := r.Y0()-pl.pad, r.X0()-pl.pad
	for s, k := range pl.stages {
		pl.rings[s].reserve(2*k.radius()+1, r.XSize()+2*pad)
		pl.inY0[s] = y0
		pl.inX0[s] = x0
		y0 += k.radius()
		x0 += k.radius()
		pad -= k.radius()
	}
}

// Rows returns the number of input rows the current region takes,
// including the halo above and below.
func (pl *Pipeline) Rows() int { return pl.rows }

// ApplyRow feeds input row i of the current region through the filters.
//
// It returns the region-relative row that was written to the frame, or
// ok == false when row i only fills the look-ahead buffer. Rows must be
// fed in increasing order starting at 0; anything else is rejected with
// ErrRowOrder.
func (pl *Pipeline) ApplyRow(i int) (out int, ok bool, err error) {
	if i != pl.next || i >= pl.rows {
		return 0, false, fmt.Errorf("%w: got %d, want %d of %d", ErrRowOrder, i, pl.next, pl.rows)
	}
	pl.next++
	if len(pl.stages) == 0 {
		return i, true, nil
	}

	y := pl.inY0[0] + i
	in := &pl.rings[0]
	for c := range 3 {
		pl.border.LoadRow(c, y, pl.inX0[0], in.row(c, y))
	}

	last := len(pl.stages) - 1
	for s, k := range pl.stages {
		r := k.radius()
		if y-pl.inY0[s] < 2*r {
			return 0, false, nil
		}
		y -= r

		var dst [3][]float32
		for c := range 3 {
			if s == last {
				dst[c] = pl.rect.PlaneRow(pl.img, c, y-pl.rect.Y0())
			} else {
				dst[c] = pl.rings[s+1].row(c, y)
			}
		}

		switch k {
		case stageSharpen:
			sharpenRow(&pl.params.Sharpen, &pl.rings[s], y, dst)
		case stageEPF:
			epfRow(&pl.params.EPF, &pl.rings[s], y, pl.inX0[s]+r, dst)
		}
	}
	return y - pl.rect.Y0(), true, nil
}
