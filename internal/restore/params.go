// Package restore implements the restoration filters applied to decoded
// frames before compositing: a 3×3 sharpening convolution followed by an
// edge-preserving filter (EPF) whose weights fall off with local sample
// differences.
//
// Filters run row by row through a Pipeline. Each Pipeline is owned by one
// worker and keeps a small ring of unfiltered rows per stage so that output
// rows can be written back into the frame in place.
package restore

import (
	"errors"
	"fmt"
	"math"
)

// BlockDim is the side of the blocks the EPF strength map is defined on.
const BlockDim = 8

const (
	sharpenRadius = 1
	epfRadius     = 2

	// minSigma is the block strength under which EPF leaves pixels untouched.
	minSigma = 0.3
)

// Errors returned by the restoration stage.
var (
	// ErrRowOrder is returned when rows are fed to a Pipeline out of order
	// or past the end of the region.
	ErrRowOrder = errors.New("restore: row out of order")

	// ErrInvalidSigmaMap is returned for a strength map with bad dimensions.
	ErrInvalidSigmaMap = errors.New("restore: invalid sigma map")
)

// SharpenParams configures the 3×3 convolution.
//
// Weights[c] holds the adjacent and diagonal tap weights for channel c.
// The kernel is normalised so its taps sum to one; negative weights sharpen.
type SharpenParams struct {
	Enabled bool
	Weights [3][2]float32
}

// EPFParams configures the edge-preserving filter.
type EPFParams struct {
	Enabled bool

	// Sigma holds the per-block filter strength. Nil means uniform DefaultSigma.
	Sigma *SigmaMap

	// ChannelScale weighs each channel's contribution to the sample distance.
	ChannelScale [3]float32

	// BorderSADMul scales distances for pixels on 8×8 block edges.
	BorderSADMul float32

	// SigmaScale converts distances into weight falloff.
	SigmaScale float32
}

// Params holds both restoration filters.
type Params struct {
	Sharpen SharpenParams
	EPF     EPFParams
}

// DefaultSigma is the EPF strength used when no map is supplied.
const DefaultSigma = 1.0

// DefaultParams returns parameters with both filters disabled and
// reasonable weights preset.
func DefaultParams() Params {
	return Params{
		Sharpen: SharpenParams{
			Weights: [3][2]float32{
				{-0.1, -0.025},
				{-0.1, -0.025},
				{-0.1, -0.025},
			},
		},
		EPF: EPFParams{
			ChannelScale: [3]float32{40, 5, 3.5},
			BorderSADMul: 2.0 / 3.0,
			SigmaScale:   float32(1.65 * 4 * (1 - math.Sqrt2/2)),
		},
	}
}

// Active reports whether any restoration filter is enabled.
func (p *Params) Active() bool {
	return p != nil && (p.Sharpen.Enabled || p.EPF.Enabled)
}

// PaddingRows returns the vertical halo the enabled filters read.
func (p *Params) PaddingRows() int {
	if p == nil {
		return 0
	}
	n := 0
	if p.Sharpen.Enabled {
		n += sharpenRadius
	}
	if p.EPF.Enabled {
		n += epfRadius
	}
	return n
}

// PaddingCols returns the horizontal halo the enabled filters read.
// Both kernels are symmetric, so it equals PaddingRows.
func (p *Params) PaddingCols() int { return p.PaddingRows() }

// SigmaMap holds EPF strength per 8×8 block, stored as inverse sigma.
type SigmaMap struct {
	xblocks int
	yblocks int
	inv     []float32
}

// UniformSigma returns a map with the same strength everywhere.
func UniformSigma(sigma float32) *SigmaMap {
	return &SigmaMap{xblocks: 1, yblocks: 1, inv: []float32{invert(sigma)}}
}

// NewSigmaMap builds a map from row-major per-block strengths.
func NewSigmaMap(xblocks, yblocks int, sigma []float32) (*SigmaMap, error) {
	if xblocks <= 0 || yblocks <= 0 || len(sigma) != xblocks*yblocks {
		return nil, fmt.Errorf("%w: %dx%d blocks with %d values",
			ErrInvalidSigmaMap, xblocks, yblocks, len(sigma))
	}
	m := &SigmaMap{xblocks: xblocks, yblocks: yblocks, inv: make([]float32, len(sigma))}
	for i, s := range sigma {
		m.inv[i] = invert(s)
	}
	return m, nil
}

// Blocks returns the map size in blocks.
func (m *SigmaMap) Blocks() (xblocks, yblocks int) { return m.xblocks, m.yblocks }

// InvSigma returns the inverse strength at pixel (x, y).
// Pixels beyond the map use the nearest edge block.
func (m *SigmaMap) InvSigma(x, y int) float32 {
	bx := min(x/BlockDim, m.xblocks-1)
	by := min(y/BlockDim, m.yblocks-1)
	return m.inv[by*m.xblocks+bx]
}

func invert(sigma float32) float32 {
	if sigma <= 0 {
		return float32(math.Inf(1))
	}
	return 1 / sigma
}
