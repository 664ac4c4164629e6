package color

import (
	"math"

	"golang.org/x/image/math/f32"
)

// opsinAbsorbanceBias is added to every mixed channel before the cube root.
const opsinAbsorbanceBias = 0.0037930732552754493

// opsinAbsorbance maps linear RGB to LMS-like mixed channels.
var opsinAbsorbance = f32.Mat3{
	0.30, 0.622, 0.078,
	0.23, 0.692, 0.078,
	0.24342268924547819, 0.20476744424496821, 0.55180986650955360,
}

// opsinInverse is the inverse of opsinAbsorbance.
var opsinInverse = f32.Mat3{
	11.031566901960783, -9.866943921568629, -0.16462299647058826,
	-3.254147380392157, 4.418770392156863, -0.16462299647058826,
	-3.6588512862745097, 2.7129230470588235, 1.9459282392156863,
}

// lanes is the number of columns converted per step of the unrolled loop.
const lanes = 4

// OpsinParams holds the constants of the XYB to linear transform.
type OpsinParams struct {
	// InverseMatrix maps mixed channels back to linear RGB, row-major.
	InverseMatrix f32.Mat3

	// Bias is the negative absorbance bias per channel.
	Bias [3]float32

	// BiasCbrt is the cube root of Bias.
	BiasCbrt [3]float32
}

// DefaultOpsinParams returns the standard inverse transform. Linear output
// is scaled so that 1.0 corresponds to intensityTarget nits over 255;
// a non-positive intensityTarget selects 255.
func DefaultOpsinParams(intensityTarget float32) OpsinParams {
	if intensityTarget <= 0 {
		intensityTarget = 255
	}
	scale := 255 / intensityTarget
	p := OpsinParams{InverseMatrix: opsinInverse}
	for i := range p.InverseMatrix {
		p.InverseMatrix[i] *= scale
	}
	for c := range 3 {
		p.Bias[c] = -opsinAbsorbanceBias
		p.BiasCbrt[c] = float32(math.Cbrt(-opsinAbsorbanceBias))
	}
	return p
}

// XYBToLinearRow converts one row from XYB to linear RGB in place.
// x, y and b must have the same length; on return they hold R, G and B.
func XYBToLinearRow(x, y, b []float32, p *OpsinParams) {
	n := len(x)
	i := 0
	for ; i+lanes <= n; i += lanes {
		xs := x[i : i+lanes : i+lanes]
		ys := y[i : i+lanes : i+lanes]
		bs := b[i : i+lanes : i+lanes]
		for j := range lanes {
			xs[j], ys[j], bs[j] = xybToLinear(xs[j], ys[j], bs[j], p)
		}
	}
	for ; i < n; i++ {
		x[i], y[i], b[i] = xybToLinear(x[i], y[i], b[i], p)
	}
}

func xybToLinear(x, y, b float32, p *OpsinParams) (float32, float32, float32) {
	gr := y + x - p.BiasCbrt[0]
	gg := y - x - p.BiasCbrt[1]
	gb := b - p.BiasCbrt[2]

	mr := gr*gr*gr + p.Bias[0]
	mg := gg*gg*gg + p.Bias[1]
	mb := gb*gb*gb + p.Bias[2]

	m := &p.InverseMatrix
	return m[0]*mr + m[1]*mg + m[2]*mb,
		m[3]*mr + m[4]*mg + m[5]*mb,
		m[6]*mr + m[7]*mg + m[8]*mb
}

// LinearToXYB is the forward transform for a single pixel, using the
// default parameters. It is used to synthesize XYB content.
func LinearToXYB(v f32.Vec3) f32.Vec3 {
	cbrtBias := math.Cbrt(opsinAbsorbanceBias)
	var g [3]float64
	for i := range 3 {
		mixed := float64(opsinAbsorbance[3*i])*float64(v[0]) +
			float64(opsinAbsorbance[3*i+1])*float64(v[1]) +
			float64(opsinAbsorbance[3*i+2])*float64(v[2]) +
			opsinAbsorbanceBias
		g[i] = math.Cbrt(max(mixed, 0)) - cbrtBias
	}
	return f32.Vec3{
		float32((g[0] - g[1]) / 2),
		float32((g[0] + g[1]) / 2),
		float32(g[2]),
	}
}
