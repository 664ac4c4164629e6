package features

import "github.com/gogpu/recon/internal/plane"

// NoiseLUTSize is the number of intensity points in a noise strength curve.
const NoiseLUTSize = 8

// Red/green mixing of the independent and shared noise components.
const (
	noiseRGCorr  = 0.9921875
	noiseRGNCorr = 0.0078125
	noiseBFactor = 0.9375
)

// NoiseParams maps local intensity to noise strength.
// LUT[i] is the strength at intensity i/(NoiseLUTSize-2); values between
// points are interpolated linearly.
type NoiseParams struct {
	LUT [NoiseLUTSize]float32
}

// Enabled reports whether any strength is non-zero.
func (p NoiseParams) Enabled() bool {
	for _, v := range p.LUT {
		if v != 0 {
			return true
		}
	}
	return false
}

// strength evaluates the curve at intensity in, clamped to [0, 1].
func (p *NoiseParams) strength(in float32) float32 {
	const scale = NoiseLUTSize - 2
	pos := in * scale
	if pos < 0 {
		pos = 0
	}
	if pos > scale+0.999999 {
		pos = scale + 0.999999
	}
	i := int(pos)
	frac := pos - float32(i)
	s := p.LUT[i]*(1-frac) + p.LUT[i+1]*frac
	return min(max(s, 0), 1)
}

// Noise synthesizes film-grain noise. Random values depend only on the
// seed and the sample coordinates, so the output does not depend on how
// the frame is split into regions or on execution order.
type Noise struct {
	params NoiseParams
	seed   uint64
}

// NewNoise returns a generator for params seeded with seed.
func NewNoise(params NoiseParams, seed uint64) *Noise {
	return &Noise{params: params, seed: seed}
}

// AddTo adds noise to the row. Planes are treated as X, Y, B.
func (n *Noise) AddTo(img *plane.Image3F, row plane.Rect) {
	y := row.Y0()
	rx := img.PlaneRow(0, y)
	ry := img.PlaneRow(1, y)
	rb := img.PlaneRow(2, y)
	for x := row.X0(); x < row.X1(); x++ {
		rndR := n.random(0, x, y)
		rndG := n.random(1, x, y)
		rndC := n.random(2, x, y)

		sR := n.params.strength(ry[x] + rx[x])
		sG := n.params.strength(ry[x] - rx[x])

		red := noiseRGNCorr*rndR*sR + noiseRGCorr*rndC*sR
		green := noiseRGNCorr*rndG*sG + noiseRGCorr*rndC*sG

		rx[x] += red - green
		ry[x] += red + green
		rb[x] += noiseBFactor * (red + green)
	}
}

// random returns a value in [-0.5, 0.5) derived from the seed, channel and
// frame coordinates.
func (n *Noise) random(c, x, y int) float32 {
	h := mix64(n.seed + 0x9e3779b97f4a7c15*uint64(c+1))
	h = mix64(h ^ uint64(uint32(y)))
	h = mix64(h ^ uint64(uint32(x))<<32)
	// 24 random bits map exactly onto float32.
	return float32(h>>40)/(1<<24) - 0.5
}

// mix64 is the splitmix64 finalizer.
func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
