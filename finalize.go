package recon

import (
	"fmt"

	"github.com/gogpu/recon/internal/restore"
	"github.com/gogpu/recon/internal/schedule"
)

// ycbcrBandRows is the height of the row bands the YCbCr pass is split into.
const ycbcrBandRows = 64

// Finalize turns a decoded, block-padded frame into output pixels.
//
// img must be XSizePadded × YSizePadded as given by hdr.Dim. It is
// filtered and composited in place, then cropped to the native size and
// returned. feats may be nil for a frame without features.
//
// Any failure returns a nil image and the error; img is then in an
// unspecified state and partially processed output is never returned.
func (s *Session) Finalize(img *Image3F, hdr *FrameHeader, feats *ImageFeatures, opts ...Option) (*Image3F, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if feats == nil {
		feats = &ImageFeatures{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := hdr.validate(img); err != nil {
		return nil, err
	}
	params := &feats.Restoration
	if err := validateRestore(params, hdr.Dim); err != nil {
		return nil, err
	}

	if o.beltTile < 0 {
		return nil, &ConfigError{Field: "BeltTile", Reason: fmt.Sprintf("negative tile %d", o.beltTile)}
	}

	regions, err := s.plan(img, hdr, params, o.merge, o.beltTile)
	if err != nil {
		return nil, err
	}

	save := hdr.SaveReference && o.saveDecompressed
	if err := s.ref.Configure(hdr.RestoreReference, save); err != nil {
		return nil, &ConfigError{Field: "RestoreReference", Reason: "no reference frame to restore", Err: err}
	}
	if err := s.ref.Begin(img.Width(), img.Height()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResourceExhausted, err)
	}

	borders, err := s.captureBorders(img, regions, params)
	defer releaseBorders(borders)
	if err != nil {
		return nil, err
	}

	c := newCompositor(img, hdr, feats, s.ref, o.colorTransform)
	maxWidth := schedule.MaxWidth(regions)
	err = s.dispatcher.Run(len(regions),
		func(workers int) error {
			return s.ensureScratch(workers, params, maxWidth, o.scratchLimit)
		},
		func(task, worker int) error {
			var b *restore.Border
			if borders != nil {
				b = borders[task]
			}
			return c.region(s.scratch[worker], regions[task].Rect, b)
		})
	if err != nil {
		return nil, err
	}

	if save {
		s.ref.MarkFinalized()
	}

	img.ShrinkTo(hdr.Dim.XSize, hdr.Dim.YSize)

	if o.colorTransform && hdr.ColorTransform == ColorTransformYCbCr {
		if err := s.ycbcrToRGB(img); err != nil {
			return nil, err
		}
	}
	return img, nil
}

// validateRestore checks that a supplied EPF strength map covers the frame.
func validateRestore(p *RestoreParams, d FrameDim) error {
	if !p.EPF.Enabled || p.EPF.Sigma == nil {
		return nil
	}
	xb := d.XSizePadded / BlockDim
	yb := d.YSizePadded / BlockDim
	if bx, by := p.EPF.Sigma.Blocks(); bx != 1 || by != 1 {
		if bx < xb || by < yb {
			return &ConfigError{Field: "Restoration.EPF.Sigma",
				Reason: fmt.Sprintf("map of %dx%d blocks does not cover %dx%d", bx, by, xb, yb)}
		}
	}
	return nil
}

// plan asks the scheduler for regions, falling back to one whole-frame
// region when it schedules none.
func (s *Session) plan(img *Image3F, hdr *FrameHeader, params *RestoreParams, merge MergePolicy, beltTile int) ([]schedule.Region, error) {
	pad := params.PaddingRows()
	regions, err := schedule.Plan(schedule.Layout{
		XSize:       img.Width(),
		YSize:       img.Height(),
		GroupDim:    hdr.Dim.GroupDim,
		PadX:        params.PaddingCols(),
		PadY:        pad,
		Filtering:   params.Active(),
		RegionCoded: hdr.Encoding == EncodingModular,
		Merge:       merge,
		BeltTile:    beltTile,
	})
	if err != nil {
		return nil, &ConfigError{Field: "Dim", Reason: "cannot tile frame", Err: err}
	}
	if len(regions) == 0 {
		regions = []schedule.Region{{Rect: img.Bounds(), Kind: schedule.KindFrame}}
	}
	s.log.Debug("recon: frame planned",
		"width", img.Width(), "height", img.Height(),
		"regions", len(regions),
		"rowBelts", schedule.Count(regions, schedule.KindRowBoundary),
		"columnBelts", schedule.Count(regions, schedule.KindColumnBoundary),
		"halo", pad)
	return regions, nil
}

// captureBorders snapshots the unfiltered halo of every region before any
// region is filtered. It returns nil when no filter is enabled.
func (s *Session) captureBorders(img *Image3F, regions []schedule.Region, params *RestoreParams) ([]*restore.Border, error) {
	if !params.Active() {
		return nil, nil
	}
	padX, padY := params.PaddingCols(), params.PaddingRows()
	borders := make([]*restore.Border, len(regions))
	err := s.dispatcher.Run(len(regions), nil, func(task, _ int) error {
		b, err := restore.CaptureBorder(img, regions[task].Rect, padX, padY, s.bands)
		if err != nil {
			return fmt.Errorf("%w: halo of %v: %w", ErrResourceExhausted, regions[task].Rect, err)
		}
		borders[task] = b
		return nil
	})
	return borders, err
}

func releaseBorders(borders []*restore.Border) {
	for _, b := range borders {
		b.Release()
	}
}

// ensureScratch makes sure every worker has a pipeline for params wide
// enough for the widest region.
func (s *Session) ensureScratch(workers int, params *RestoreParams, width, limit int) error {
	need := workers * restore.ScratchBytes(params, width)
	if limit > 0 && need > limit {
		return fmt.Errorf("%w: filter scratch needs %d bytes for %d workers, limit is %d",
			ErrResourceExhausted, need, workers, limit)
	}
	if grown := workers - len(s.scratch); grown > 0 {
		s.log.Debug("recon: growing scratch", "workers", workers, "bytesPerWorker", need/max(workers, 1))
		for range grown {
			s.scratch = append(s.scratch, restore.NewPipeline(params))
		}
	}
	for _, pl := range s.scratch[:workers] {
		pl.Configure(params)
		pl.Reserve(width)
	}
	return nil
}

// ycbcrToRGB converts the cropped frame in parallel row bands.
func (s *Session) ycbcrToRGB(img *Image3F) error {
	h := img.Height()
	bands := (h + ycbcrBandRows - 1) / ycbcrBandRows
	return s.dispatcher.Run(bands, nil, func(task, _ int) error {
		y1 := min((task+1)*ycbcrBandRows, h)
		for y := task * ycbcrBandRows; y < y1; y++ {
			ycbcrRow(img, y)
		}
		return nil
	})
}
