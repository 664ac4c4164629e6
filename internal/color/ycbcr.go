package color

// ycbcrOffset recentres Y from [-0.5, 0.5] onto [0, 1].
const ycbcrOffset = 128.0 / 255.0

// YCbCrToRGBRow converts one row from YCbCr to RGB in place.
//
// Planes arrive as Cb, Y, Cr and leave as R, G, B; this matches the
// channel order the decoder produces.
func YCbCrToRGBRow(p0, p1, p2 []float32) {
	for i := range p0 {
		cb := p0[i]
		y := p1[i] + ycbcrOffset
		cr := p2[i]

		p0[i] = y + 1.402*cr
		p1[i] = y - 0.344136*cb - 0.714136*cr
		p2[i] = y + 1.772*cb
	}
}
