package features

import (
	"math"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/recon/internal/plane"
)

const (
	// splineSubdivisions is the number of points generated per control
	// segment before arc-length resampling.
	splineSubdivisions = 16

	// splineBucketShift sets the row-bucket height of the sample index.
	splineBucketShift = 4
)

// Spline is a smooth curve through Control, drawn with a Gaussian profile
// of standard deviation Sigma and the given per-channel Color.
type Spline struct {
	Control []f32.Vec2
	Color   [3]float32
	Sigma   float32
}

// splineSample is one unit-length step of a rasterized spline.
type splineSample struct {
	cx, cy float32
	inv2s2 float32
	color  [3]float32
	x0, x1 int // inclusive column range
	y0, y1 int // inclusive row range
}

// Splines is an immutable rasterization of a set of splines.
type Splines struct {
	samples []splineSample
	buckets map[int][]int32
}

// NewSplines samples every spline at unit arc length. Splines without
// control points or with non-positive Sigma are dropped.
func NewSplines(list []Spline) *Splines {
	s := &Splines{buckets: make(map[int][]int32)}
	for i := range list {
		sp := &list[i]
		if len(sp.Control) == 0 || sp.Sigma <= 0 {
			continue
		}
		for _, p := range resample(upsample(sp.Control)) {
			s.add(p, sp)
		}
	}
	return s
}

func (s *Splines) add(p f32.Vec2, sp *Spline) {
	sigma := sp.Sigma
	norm := float32(1 / (float64(sigma) * math.Sqrt(2*math.Pi)))
	radius := float32(math.Ceil(3 * float64(sigma)))
	smp := splineSample{
		cx:     p[0],
		cy:     p[1],
		inv2s2: 1 / (2 * sigma * sigma),
		x0:     int(math.Floor(float64(p[0] - radius))),
		x1:     int(math.Ceil(float64(p[0] + radius))),
		y0:     int(math.Floor(float64(p[1] - radius))),
		y1:     int(math.Ceil(float64(p[1] + radius))),
	}
	for c := range 3 {
		smp.color[c] = sp.Color[c] * norm
	}

	idx := int32(len(s.samples))
	s.samples = append(s.samples, smp)
	for b := smp.y0 >> splineBucketShift; b <= smp.y1>>splineBucketShift; b++ {
		s.buckets[b] = append(s.buckets[b], idx)
	}
}

// Len returns the number of samples.
func (s *Splines) Len() int {
	if s == nil {
		return 0
	}
	return len(s.samples)
}

// Overlaps reports whether any sample reaches into r.
func (s *Splines) Overlaps(r plane.Rect) bool {
	if s.Len() == 0 {
		return false
	}
	for i := range s.samples {
		smp := &s.samples[i]
		if smp.x0 < r.X1() && smp.x1 >= r.X0() && smp.y0 < r.Y1() && smp.y1 >= r.Y0() {
			return true
		}
	}
	return false
}

// AddTo adds the spline contributions to row, clipped to its columns.
func (s *Splines) AddTo(img *plane.Image3F, row plane.Rect) {
	if s.Len() == 0 {
		return
	}
	y := row.Y0()
	rows := [3][]float32{img.PlaneRow(0, y), img.PlaneRow(1, y), img.PlaneRow(2, y)}
	for _, idx := range s.buckets[y>>splineBucketShift] {
		smp := &s.samples[idx]
		if y < smp.y0 || y > smp.y1 {
			continue
		}
		dy := float32(y) - smp.cy
		dy2 := dy * dy
		x0 := max(smp.x0, row.X0())
		x1 := min(smp.x1, row.X1()-1)
		for x := x0; x <= x1; x++ {
			dx := float32(x) - smp.cx
			w := float32(math.Exp(float64(-(dx*dx + dy2) * smp.inv2s2)))
			rows[0][x] += w * smp.color[0]
			rows[1][x] += w * smp.color[1]
			rows[2][x] += w * smp.color[2]
		}
	}
}

// upsample interpolates the control points with a uniform Catmull-Rom
// curve. The ends are extended by reflecting the neighbouring point.
func upsample(ctrl []f32.Vec2) []f32.Vec2 {
	if len(ctrl) == 1 {
		return []f32.Vec2{ctrl[0]}
	}
	n := len(ctrl)
	ext := make([]f32.Vec2, 0, n+2)
	ext = append(ext, reflect(ctrl[0], ctrl[1]))
	ext = append(ext, ctrl...)
	ext = append(ext, reflect(ctrl[n-1], ctrl[n-2]))

	out := make([]f32.Vec2, 0, (n-1)*splineSubdivisions+1)
	for i := 1; i < n; i++ {
		p0, p1, p2, p3 := ext[i-1], ext[i], ext[i+1], ext[i+2]
		for k := range splineSubdivisions {
			t := float32(k) / splineSubdivisions
			out = append(out, catmullRom(p0, p1, p2, p3, t))
		}
	}
	return append(out, ctrl[n-1])
}

// reflect returns 2·p - q.
func reflect(p, q f32.Vec2) f32.Vec2 {
	return f32.Vec2{2*p[0] - q[0], 2*p[1] - q[1]}
}

func catmullRom(p0, p1, p2, p3 f32.Vec2, t float32) f32.Vec2 {
	t2 := t * t
	t3 := t2 * t
	var out f32.Vec2
	for i := range out {
		out[i] = 0.5 * (2*p1[i] +
			(p2[i]-p0[i])*t +
			(2*p0[i]-5*p1[i]+4*p2[i]-p3[i])*t2 +
			(3*p1[i]-p0[i]-3*p2[i]+p3[i])*t3)
	}
	return out
}

// resample walks the polyline and returns points spaced one unit apart,
// starting at the first point.
func resample(pts []f32.Vec2) []f32.Vec2 {
	out := []f32.Vec2{pts[0]}
	carry := float32(0) // distance walked since the last emitted point
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		dx, dy := b[0]-a[0], b[1]-a[1]
		seg := float32(math.Hypot(float64(dx), float64(dy)))
		if seg == 0 {
			continue
		}
		pos := 1 - carry
		for pos <= seg {
			t := pos / seg
			out = append(out, f32.Vec2{a[0] + dx*t, a[1] + dy*t})
			pos++
		}
		carry = seg - (pos - 1)
	}
	return out
}
