package recon

import (
	"github.com/gogpu/recon/internal/color"
	"github.com/gogpu/recon/internal/features"
	"github.com/gogpu/recon/internal/plane"
	"github.com/gogpu/recon/internal/reference"
	"github.com/gogpu/recon/internal/restore"
)

// compositor applies everything that follows restoration to one output
// row at a time. It is shared read-only by all workers; the only state it
// writes besides the frame is the reference store, whose rows are
// partitioned the same way as the frame's.
type compositor struct {
	img      *Image3F
	overlays []features.Overlay
	ref      *reference.Store
	noise    *features.Noise
	opsin    *color.OpsinParams
}

func newCompositor(img *Image3F, hdr *FrameHeader, feats *ImageFeatures, ref *reference.Store, colorTransform bool) *compositor {
	c := &compositor{
		img:      img,
		overlays: feats.Overlays(),
		ref:      ref,
	}
	if hdr.HasNoise() && feats.Noise.Enabled() {
		c.noise = features.NewNoise(feats.Noise, hdr.NoiseSeed)
	}
	if colorTransform && hdr.ColorTransform == ColorTransformXYB {
		p := color.DefaultOpsinParams(hdr.IntensityTarget)
		c.opsin = &p
	}
	return c
}

// region runs all rows of r through pl and composites each output row.
// Rows are fed in increasing order.
func (c *compositor) region(pl *restore.Pipeline, r plane.Rect, border *restore.Border) error {
	// Only overlays touching the region are checked per row.
	var active []features.Overlay
	for _, ov := range c.overlays {
		if ov.Overlaps(r) {
			active = append(active, ov)
		}
	}

	pl.Begin(c.img, border, r)
	for i := range pl.Rows() {
		out, ok, err := pl.ApplyRow(i)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		c.row(active, r.Line(out))
	}
	return nil
}

// row composites one filtered output row.
func (c *compositor) row(active []features.Overlay, line plane.Rect) {
	for _, ov := range active {
		ov.AddTo(c.img, line)
	}
	if c.ref.NeedsRestore() {
		c.ref.RestoreRow(c.img, line)
	}
	if c.ref.NeedsSave() {
		c.ref.SaveRow(c.img, line)
	}
	if c.noise != nil {
		c.noise.AddTo(c.img, line)
	}
	if c.opsin != nil {
		color.XYBToLinearRow(
			line.PlaneRow(c.img, 0, 0),
			line.PlaneRow(c.img, 1, 0),
			line.PlaneRow(c.img, 2, 0),
			c.opsin)
	}
}

// ycbcrRow converts frame row y from YCbCr to RGB.
func ycbcrRow(img *Image3F, y int) {
	color.YCbCrToRGBRow(img.PlaneRow(0, y), img.PlaneRow(1, y), img.PlaneRow(2, y))
}
