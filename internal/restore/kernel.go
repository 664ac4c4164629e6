package restore

// sharpenRow convolves ring rows y-1, y, y+1 with the normalised 3×3
// kernel and writes len(dst[c]) samples. Input column i+1 maps to output i.
func sharpenRow(p *SharpenParams, in *ring, y int, dst [3][]float32) {
	for c := range 3 {
		w1, w2 := p.Weights[c][0], p.Weights[c][1]
		mult := 1 / (1 + 4*(w1+w2))
		base, adj, diag := mult, w1*mult, w2*mult

		n, m, s := in.row(c, y-1), in.row(c, y), in.row(c, y+1)
		out := dst[c]
		for x := range out {
			a := m[x] + m[x+2] + n[x+1] + s[x+1]
			d := n[x] + n[x+2] + s[x] + s[x+2]
			out[x] = base*m[x+1] + adj*a + diag*d
		}
	}
}

var defaultSigmaMap = UniformSigma(DefaultSigma)

type offset struct{ dx, dy int }

// epfTaps are the neighbours that may contribute to a pixel; epfCross is
// the patch compared around each of them.
var (
	epfTaps  = [...]offset{{0, -1}, {-1, 0}, {1, 0}, {0, 1}}
	epfCross = [...]offset{{0, 0}, {0, -1}, {-1, 0}, {1, 0}, {0, 1}}
)

// epfRow applies the edge-preserving filter to frame row y. Input column
// i+epfRadius maps to output column i; outX0 is the frame column of
// output column 0.
func epfRow(p *EPFParams, in *ring, y, outX0 int, dst [3][]float32) {
	sigma := p.Sigma
	if sigma == nil {
		sigma = defaultSigmaMap
	}

	var rows [3][2*epfRadius + 1][]float32
	for c := range 3 {
		for dy := -epfRadius; dy <= epfRadius; dy++ {
			rows[c][dy+epfRadius] = in.row(c, y+dy)
		}
	}
	at := func(c, x int, o offset) float32 {
		return rows[c][epfRadius+o.dy][x+o.dx]
	}

	borderRow := y%BlockDim == 0 || y%BlockDim == BlockDim-1
	for x := range dst[0] {
		cx := x + epfRadius
		fx := outX0 + x

		inv := sigma.InvSigma(fx, y)
		if inv > 1/minSigma {
			for c := range 3 {
				dst[c][x] = at(c, cx, offset{})
			}
			continue
		}

		scale := p.SigmaScale * inv
		if borderRow || fx%BlockDim == 0 || fx%BlockDim == BlockDim-1 {
			scale *= p.BorderSADMul
		}

		sumW := float32(1)
		sum := [3]float32{at(0, cx, offset{}), at(1, cx, offset{}), at(2, cx, offset{})}
		for _, t := range epfTaps {
			var sad float32
			for c := range 3 {
				var d float32
				for _, q := range epfCross {
					a := at(c, cx, q)
					b := at(c, cx+t.dx, offset{q.dx, q.dy + t.dy})
					d += abs32(a - b)
				}
				sad += d * p.ChannelScale[c]
			}
			w := 1 - sad*scale
			if w <= 0 {
				continue
			}
			sumW += w
			for c := range 3 {
				sum[c] += w * at(c, cx, t)
			}
		}
		inv1 := 1 / sumW
		for c := range 3 {
			dst[c][x] = sum[c] * inv1
		}
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
