// Package color provides the colour transforms applied at the end of frame
// reconstruction: XYB (opsin) to linear RGB, YCbCr to RGB, and the sRGB
// transfer curves used when exporting samples.
package color

import "fmt"

// Transform selects the colour transform a frame was encoded with.
type Transform uint8

const (
	// TransformNone leaves samples as decoded.
	TransformNone Transform = iota
	// TransformXYB marks frames in the XYB opsin space. The inverse is
	// applied per row while compositing.
	TransformXYB
	// TransformYCbCr marks frames in YCbCr. The inverse is applied once
	// over the cropped frame.
	TransformYCbCr

	transformCount
)

// Valid reports whether t is a known transform.
func (t Transform) Valid() bool { return t < transformCount }

// String implements fmt.Stringer.
func (t Transform) String() string {
	switch t {
	case TransformNone:
		return "none"
	case TransformXYB:
		return "xyb"
	case TransformYCbCr:
		return "ycbcr"
	default:
		return fmt.Sprintf("Transform(%d)", uint8(t))
	}
}
