package color

import "math"

// SRGBToLinear converts an sRGB-encoded component to linear light.
// Input and output are in range [0,1].
func SRGBToLinear(s float32) float32 {
	if s <= 0.04045 {
		return s / 12.92
	}
	return float32(math.Pow(float64((s+0.055)/1.055), 2.4))
}

// LinearToSRGB converts a linear component to sRGB encoding.
// Input and output are in range [0,1].
func LinearToSRGB(l float32) float32 {
	if l <= 0.0031308 {
		return l * 12.92
	}
	return 1.055*float32(math.Pow(float64(l), 1.0/2.4)) - 0.055
}

// linearToSRGBLUT maps linear light to 8-bit sRGB with 12-bit input
// precision, which is enough for 8-bit output.
var linearToSRGBLUT [4096]uint8

func init() {
	for i := range linearToSRGBLUT {
		s := LinearToSRGB(float32(i) / 4095)
		linearToSRGBLUT[i] = clampAndRound(s)
	}
}

// LinearToSRGB8 converts a linear component to an 8-bit sRGB value using a
// lookup table. Input outside [0,1] is clamped.
func LinearToSRGB8(l float32) uint8 {
	if !(l > 0) { // also catches NaN
		return 0
	}
	if l >= 1 {
		return 255
	}
	return linearToSRGBLUT[int(l*4095+0.5)]
}

// ToUint8 maps [0,1] to [0,255] with rounding and clamping.
func ToUint8(v float32) uint8 { return clampAndRound(v) }

// ToUint16 maps [0,1] to [0,65535] with rounding and clamping.
func ToUint16(v float32) uint16 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 0xffff
	}
	return uint16(v*0xffff + 0.5)
}

func clampAndRound(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255.0 + 0.5)
}
