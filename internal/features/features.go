package features

import (
	"github.com/gogpu/recon/internal/plane"
	"github.com/gogpu/recon/internal/restore"
)

// Overlay is a feature blended into frame rows after restoration.
type Overlay interface {
	// Overlaps reports whether the overlay touches r.
	Overlaps(r plane.Rect) bool
	// AddTo blends the overlay into a single frame row.
	AddTo(img *plane.Image3F, row plane.Rect)
}

var (
	_ Overlay = (*Patches)(nil)
	_ Overlay = (*Splines)(nil)
)

// ImageFeatures groups everything decoded for a frame besides its pixels.
// It is read-only during reconstruction.
type ImageFeatures struct {
	Patches     *Patches
	Splines     *Splines
	Noise       NoiseParams
	Restoration restore.Params
}

// Overlays returns the non-empty patch and spline overlays in the order
// they must be applied.
func (f *ImageFeatures) Overlays() []Overlay {
	var out []Overlay
	if f.Patches.Len() > 0 {
		out = append(out, f.Patches)
	}
	if f.Splines.Len() > 0 {
		out = append(out, f.Splines)
	}
	return out
}
