package recon

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/recon/internal/color"
	"github.com/gogpu/recon/internal/parallel"
	"github.com/gogpu/recon/internal/schedule"
)

// =============================================================================
// Helpers
// =============================================================================

func newDim(t *testing.T, w, h, group int) FrameDim {
	t.Helper()
	d, err := NewFrameDim(w, h, group)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func randomFrame(t *testing.T, d FrameDim, seed uint64) *Image3F {
	t.Helper()
	img, err := d.NewBuffer()
	if err != nil {
		t.Fatal(err)
	}
	rng := rand.New(rand.NewPCG(seed, 3))
	for c := range 3 {
		for y := range img.Height() {
			row := img.PlaneRow(c, y)
			for x := range row {
				row[x] = rng.Float32()
			}
		}
	}
	return img
}

func cropped(img *Image3F, d FrameDim) *Image3F {
	c := img.Clone()
	c.ShrinkTo(d.XSize, d.YSize)
	return c.Clone()
}

func filters() RestoreParams {
	p := DefaultRestoreParams()
	p.Sharpen.Enabled = true
	p.EPF.Enabled = true
	return p
}

func serialSession(t *testing.T, opts ...SessionOption) *Session {
	t.Helper()
	s := NewSession(append([]SessionOption{WithDispatcher(parallel.Serial{})}, opts...)...)
	t.Cleanup(s.Close)
	return s
}

func poolSession(t *testing.T, workers int) *Session {
	t.Helper()
	s := NewSession(WithWorkers(workers))
	t.Cleanup(s.Close)
	return s
}

// failingDispatcher runs tasks serially and fails at task failAt.
type failingDispatcher struct {
	failAt     int
	setupCalls int
	ran        int
}

var errTaskFailed = errors.New("task failed")

func (d *failingDispatcher) Run(numTasks int, setup func(int) error, task func(int, int) error) error {
	if setup != nil {
		d.setupCalls++
		if err := setup(2); err != nil {
			return err
		}
	}
	for i := range numTasks {
		if i == d.failAt {
			return errTaskFailed
		}
		d.ran++
		if err := task(i, i%2); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Identity and Determinism
// =============================================================================

func TestFinalizeIdentity(t *testing.T) {
	for _, enc := range []Encoding{EncodingVarDCT, EncodingModular} {
		t.Run(enc.String(), func(t *testing.T) {
			d := newDim(t, 45, 37, 16)
			img := randomFrame(t, d, 1)
			want := cropped(img, d)

			s := poolSession(t, 3)
			out, err := s.Finalize(img, &FrameHeader{Dim: d, Encoding: enc}, nil)
			if err != nil {
				t.Fatal(err)
			}
			if out.Width() != 45 || out.Height() != 37 {
				t.Fatalf("output %dx%d, want 45x37", out.Width(), out.Height())
			}
			if !out.Equal(want) {
				t.Error("identity finalize changed samples")
			}
		})
	}
}

// fullFeatures enables every per-row stage.
func fullFeatures(t *testing.T) *ImageFeatures {
	t.Helper()
	patch, _ := NewImage3F(6, 5)
	patch.Fill([3]float32{0.1, 0.2, 0.3})
	var noise NoiseParams
	for i := range noise.LUT {
		noise.LUT[i] = 0.05
	}
	return &ImageFeatures{
		Patches: NewPatches([]Patch{
			{X: 30, Y: 28, Pixels: patch, Mode: BlendAdd},
			{X: 60, Y: 2, Pixels: patch, Mode: BlendReplace},
		}),
		Splines: NewSplines([]Spline{{
			Control: []f32.Vec2{{2, 2}, {40, 50}, {70, 10}},
			Color:   [3]float32{0.02, 0.3, 0.1},
			Sigma:   1.2,
		}}),
		Noise:       noise,
		Restoration: filters(),
	}
}

func TestFinalizeDeterministicAcrossWorkers(t *testing.T) {
	d := newDim(t, 75, 61, 32)
	hdr := &FrameHeader{
		Dim:            d,
		ColorTransform: ColorTransformXYB,
		Flags:          FlagNoise,
		NoiseSeed:      99,
	}

	run := func(s *Session) *Image3F {
		t.Helper()
		out, err := s.Finalize(randomFrame(t, d, 2), hdr, fullFeatures(t), WithColorTransform(true))
		if err != nil {
			t.Fatal(err)
		}
		return out
	}

	serial := run(serialSession(t))
	for _, workers := range []int{1, 4, 7} {
		if got := run(poolSession(t, workers)); !got.Equal(serial) {
			t.Errorf("%d workers: output differs from serial run", workers)
		}
	}
}

func TestFinalizeNoiseNeedsFlag(t *testing.T) {
	d := newDim(t, 16, 16, 16)
	img := randomFrame(t, d, 3)
	want := cropped(img, d)

	var feats ImageFeatures
	feats.Noise.LUT[2] = 0.5
	out, err := serialSession(t).Finalize(img, &FrameHeader{Dim: d}, &feats)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Equal(want) {
		t.Error("noise applied without FlagNoise")
	}
}

// =============================================================================
// Features
// =============================================================================

func TestFinalizeReplacePatch(t *testing.T) {
	d := newDim(t, 32, 24, 16)
	img := randomFrame(t, d, 4)
	want := cropped(img, d)

	const v = 7
	patch, _ := NewImage3F(4, 4)
	patch.Fill([3]float32{v, v, v})
	feats := &ImageFeatures{Patches: NewPatches([]Patch{{X: 10, Y: 6, Pixels: patch, Mode: BlendReplace}})}

	out, err := poolSession(t, 2).Finalize(img, &FrameHeader{Dim: d}, feats)
	if err != nil {
		t.Fatal(err)
	}
	for c := range 3 {
		for y := range 24 {
			for x, got := range out.PlaneRow(c, y) {
				exp := want.PlaneRow(c, y)[x]
				if x >= 10 && x < 14 && y >= 6 && y < 10 {
					exp = v
				}
				if got != exp {
					t.Fatalf("plane %d (%d,%d) = %v, want %v", c, x, y, got, exp)
				}
			}
		}
	}
}

func TestFinalizeXYBInline(t *testing.T) {
	d := newDim(t, 20, 12, 16)
	img, _ := d.NewBuffer()
	xyb := color.LinearToXYB(f32.Vec3{0.5, 0.5, 0.5})
	img.Fill([3]float32{xyb[0], xyb[1], xyb[2]})
	hdr := &FrameHeader{Dim: d, ColorTransform: ColorTransformXYB}

	raw := img.Clone()
	out, err := serialSession(t).Finalize(raw, hdr, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.PlaneRow(1, 3)[4]; got != xyb[1] {
		t.Errorf("without WithColorTransform sample = %v, want untouched %v", got, xyb[1])
	}

	out, err = serialSession(t).Finalize(img, hdr, nil, WithColorTransform(true))
	if err != nil {
		t.Fatal(err)
	}
	for c := range 3 {
		if got := out.PlaneRow(c, 11)[19]; math.Abs(float64(got-0.5)) > 1e-4 {
			t.Errorf("plane %d = %v, want 0.5", c, got)
		}
	}
}

func TestFinalizeYCbCr(t *testing.T) {
	d := newDim(t, 70, 130, 64)
	img, _ := d.NewBuffer()
	hdr := &FrameHeader{Dim: d, ColorTransform: ColorTransformYCbCr}

	out, err := poolSession(t, 3).Finalize(img, hdr, nil, WithColorTransform(true))
	if err != nil {
		t.Fatal(err)
	}
	const gray = float32(128.0 / 255)
	for c := range 3 {
		for _, y := range []int{0, 64, 129} {
			if got := out.PlaneRow(c, y)[69]; math.Abs(float64(got-gray)) > 1e-6 {
				t.Errorf("plane %d row %d = %v, want %v", c, y, got, gray)
			}
		}
	}
}

// =============================================================================
// Reference Frames
// =============================================================================

func TestFinalizeReferenceRoundTrip(t *testing.T) {
	d := newDim(t, 40, 30, 16)
	s := poolSession(t, 4)

	first, err := s.Finalize(randomFrame(t, d, 5),
		&FrameHeader{Dim: d, SaveReference: true},
		&ImageFeatures{Restoration: filters()},
		WithSaveDecompressed(true))
	if err != nil {
		t.Fatal(err)
	}
	want := first.Clone()
	if !s.HasReference() {
		t.Fatal("reference not finalized after save")
	}

	zero, _ := d.NewBuffer()
	second, err := s.Finalize(zero, &FrameHeader{Dim: d, RestoreReference: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Equal(want) {
		t.Error("restored frame differs from saved frame")
	}
}

// Saving a smaller frame replaces the reference entirely; samples of an
// earlier, larger frame must not reach later restores.
func TestFinalizeReferenceMixedSizes(t *testing.T) {
	s := serialSession(t)
	save := func(size int, v float32) {
		t.Helper()
		d := newDim(t, size, size, 16)
		img, _ := d.NewBuffer()
		img.Fill([3]float32{v, v, v})
		if _, err := s.Finalize(img, &FrameHeader{Dim: d, SaveReference: true}, nil, WithSaveDecompressed(true)); err != nil {
			t.Fatal(err)
		}
	}
	save(64, 5)
	save(32, 1)

	d := newDim(t, 64, 64, 16)
	zero, _ := d.NewBuffer()
	out, err := s.Finalize(zero, &FrameHeader{Dim: d, RestoreReference: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		x, y int
		want float32
	}{
		{10, 10, 1},
		{31, 31, 1},
		{40, 40, 0},
		{50, 5, 0},
		{5, 50, 0},
	}
	for _, tt := range tests {
		for c := range 3 {
			if got := out.PlaneRow(c, tt.y)[tt.x]; got != tt.want {
				t.Errorf("plane %d (%d,%d) = %v, want %v", c, tt.x, tt.y, got, tt.want)
			}
		}
	}
}

func TestFinalizeSaveNeedsDecompressedCopy(t *testing.T) {
	d := newDim(t, 16, 16, 16)
	s := serialSession(t)
	if _, err := s.Finalize(randomFrame(t, d, 6), &FrameHeader{Dim: d, SaveReference: true}, nil); err != nil {
		t.Fatal(err)
	}
	if s.HasReference() {
		t.Error("frame saved without WithSaveDecompressed")
	}
}

func TestFinalizeReferenceSnapshot(t *testing.T) {
	d := newDim(t, 24, 24, 16)
	src := serialSession(t)
	saved, err := src.Finalize(randomFrame(t, d, 7), &FrameHeader{Dim: d, SaveReference: true}, nil,
		WithSaveDecompressed(true))
	if err != nil {
		t.Fatal(err)
	}
	want := saved.Clone()

	var buf bytes.Buffer
	if _, err := src.SaveReference(&buf); err != nil {
		t.Fatal(err)
	}

	dst := serialSession(t)
	if _, err := dst.LoadReference(&buf); err != nil {
		t.Fatal(err)
	}
	zero, _ := d.NewBuffer()
	out, err := dst.Finalize(zero, &FrameHeader{Dim: d, RestoreReference: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Equal(want) {
		t.Error("restore from loaded snapshot differs")
	}

	if _, err := serialSession(t).LoadReference(strings.NewReader("junk")); !errors.Is(err, ErrCorruptSnapshot) {
		t.Errorf("LoadReference(junk) = %v, want ErrCorruptSnapshot", err)
	}
}

// =============================================================================
// Scheduling
// =============================================================================

// A 300×300 frame pads to 304×304. With groups of 256 there is one group-row
// boundary, at 256, and the column boundary at 256 leaves a 48-wide strip,
// so it keeps its belt too.
func TestFinalizeScenario300(t *testing.T) {
	d := newDim(t, 300, 300, 256)
	s := poolSession(t, 4)
	feats := &ImageFeatures{Restoration: filters()}

	img := randomFrame(t, d, 8)
	regions, err := s.plan(img, &FrameHeader{Dim: d}, &feats.Restoration, DefaultMergePolicy, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n := schedule.Count(regions, schedule.KindRowBoundary); n != 1 {
		t.Fatalf("row belts = %d, want 1", n)
	}
	for _, r := range regions {
		if r.Kind == schedule.KindRowBoundary && (r.Y0() != 253 || r.YSize() != 6 || r.XSize() != 304) {
			t.Errorf("row belt = %v, want rows [253, 259) across 304 columns", r.Rect)
		}
	}
	if n := schedule.Count(regions, schedule.KindColumnBoundary); n != 2 {
		t.Errorf("column belt pieces = %d, want 2", n)
	}

	out, err := s.Finalize(img, &FrameHeader{Dim: d}, feats)
	if err != nil {
		t.Fatal(err)
	}
	if out.Width() != 300 || out.Height() != 300 {
		t.Errorf("output %dx%d, want 300x300", out.Width(), out.Height())
	}

	// One group column: only the row belt remains.
	narrow := newDim(t, 256, 300, 256)
	img2 := randomFrame(t, narrow, 9)
	regions, err = s.plan(img2, &FrameHeader{Dim: narrow}, &feats.Restoration, DefaultMergePolicy, 0)
	if err != nil {
		t.Fatal(err)
	}
	if n := schedule.Count(regions, schedule.KindColumnBoundary); n != 0 {
		t.Errorf("single group column: column belts = %d, want 0", n)
	}
	if n := schedule.Count(regions, schedule.KindRowBoundary); n != 1 {
		t.Errorf("single group column: row belts = %d, want 1", n)
	}
}

func TestFinalizeBeltTilesSameOutput(t *testing.T) {
	d := newDim(t, 90, 70, 32)
	hdr := &FrameHeader{Dim: d, Flags: FlagNoise, NoiseSeed: 4}
	run := func(opts ...Option) *Image3F {
		t.Helper()
		out, err := poolSession(t, 4).Finalize(randomFrame(t, d, 17), hdr, fullFeatures(t), opts...)
		if err != nil {
			t.Fatal(err)
		}
		return out
	}
	whole := run()
	for _, tile := range []int{1, 8, 40} {
		if got := run(WithBeltTile(tile)); !got.Equal(whole) {
			t.Errorf("belt tile %d: output differs from whole belts", tile)
		}
	}

	s := serialSession(t)
	img := randomFrame(t, d, 18)
	params := filters()
	regions, err := s.plan(img, hdr, &params, DefaultMergePolicy, 8)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range regions {
		if r.Kind == schedule.KindRowBoundary && r.XSize() > 8 {
			t.Errorf("row belt piece %v wider than 8", r.Rect)
		}
	}
}

func TestFinalizeBeltTileInvalid(t *testing.T) {
	d := newDim(t, 40, 40, 16)
	_, err := serialSession(t).Finalize(randomFrame(t, d, 19), &FrameHeader{Dim: d},
		&ImageFeatures{Restoration: filters()}, WithBeltTile(-1))
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Field != "BeltTile" {
		t.Errorf("err = %v, want BeltTile ConfigError", err)
	}
}

func TestFinalizeWholeFrameFallback(t *testing.T) {
	d := newDim(t, 40, 40, 16)
	s := serialSession(t)
	regions, err := s.plan(randomFrame(t, d, 10), &FrameHeader{Dim: d}, &RestoreParams{}, DefaultMergePolicy, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(regions) != 1 || regions[0].Kind != schedule.KindFrame || regions[0].Area() != 40*40 {
		t.Errorf("regions = %v, want one whole-frame region", regions)
	}
}

// =============================================================================
// Errors
// =============================================================================

func TestFinalizeConfigErrors(t *testing.T) {
	d := newDim(t, 16, 16, 16)
	tests := []struct {
		name  string
		img   func() *Image3F
		hdr   *FrameHeader
		field string
	}{
		{"unknown color transform", func() *Image3F { b, _ := d.NewBuffer(); return b },
			&FrameHeader{Dim: d, ColorTransform: ColorTransform(9)}, "ColorTransform"},
		{"unknown encoding", func() *Image3F { b, _ := d.NewBuffer(); return b },
			&FrameHeader{Dim: d, Encoding: Encoding(5)}, "Encoding"},
		{"buffer size mismatch", func() *Image3F { b, _ := NewImage3F(8, 8); return b },
			&FrameHeader{Dim: d}, "Image"},
		{"nil header", func() *Image3F { b, _ := d.NewBuffer(); return b }, nil, "Header"},
		{"restore without reference", func() *Image3F { b, _ := d.NewBuffer(); return b },
			&FrameHeader{Dim: d, RestoreReference: true}, "RestoreReference"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := serialSession(t).Finalize(tt.img(), tt.hdr, nil)
			if out != nil {
				t.Error("output returned alongside an error")
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %v, want *ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}

func TestFinalizeRestoreWithoutReferenceUnwraps(t *testing.T) {
	d := newDim(t, 8, 8, 8)
	img, _ := d.NewBuffer()
	_, err := serialSession(t).Finalize(img, &FrameHeader{Dim: d, RestoreReference: true}, nil)
	if !errors.Is(err, ErrNoReference) {
		t.Errorf("err = %v, want ErrNoReference", err)
	}
}

func TestFinalizeSigmaMapTooSmall(t *testing.T) {
	d := newDim(t, 32, 32, 16)
	img, _ := d.NewBuffer()
	feats := &ImageFeatures{Restoration: filters()}
	feats.Restoration.EPF.Sigma, _ = NewSigmaMap(2, 2, []float32{1, 1, 1, 1})

	_, err := serialSession(t).Finalize(img, &FrameHeader{Dim: d}, feats)
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Field != "Restoration.EPF.Sigma" {
		t.Errorf("err = %v, want sigma map ConfigError", err)
	}
}

func TestFinalizeScratchLimit(t *testing.T) {
	d := newDim(t, 64, 64, 32)
	s := poolSession(t, 2)
	out, err := s.Finalize(randomFrame(t, d, 11), &FrameHeader{Dim: d},
		&ImageFeatures{Restoration: filters()}, WithScratchLimit(100))
	if !errors.Is(err, ErrResourceExhausted) {
		t.Fatalf("err = %v, want ErrResourceExhausted", err)
	}
	if out != nil {
		t.Error("output returned after resource error")
	}

	// Without filters no scratch is needed, so the same limit passes.
	if _, err := s.Finalize(randomFrame(t, d, 12), &FrameHeader{Dim: d}, nil, WithScratchLimit(100)); err != nil {
		t.Errorf("unfiltered frame with scratch limit: %v", err)
	}
}

func TestFinalizeDispatcherFailure(t *testing.T) {
	d := newDim(t, 64, 64, 16)
	disp := &failingDispatcher{failAt: 3}
	s := NewSession(WithDispatcher(disp))
	defer s.Close()

	out, err := s.Finalize(randomFrame(t, d, 13), &FrameHeader{Dim: d, Encoding: EncodingModular}, nil)
	if !errors.Is(err, errTaskFailed) {
		t.Fatalf("err = %v, want errTaskFailed", err)
	}
	if out != nil {
		t.Error("partial output returned")
	}
	if disp.setupCalls != 1 || disp.ran != 3 {
		t.Errorf("setup calls = %d, tasks run = %d; want 1, 3", disp.setupCalls, disp.ran)
	}
}

// =============================================================================
// Scratch and Logging
// =============================================================================

func TestFinalizeScratchExpandOnly(t *testing.T) {
	d := newDim(t, 64, 48, 16)
	s := poolSession(t, 3)
	feats := &ImageFeatures{Restoration: filters()}

	if _, err := s.Finalize(randomFrame(t, d, 14), &FrameHeader{Dim: d}, feats); err != nil {
		t.Fatal(err)
	}
	if len(s.scratch) != 3 {
		t.Fatalf("scratch pipelines = %d, want 3", len(s.scratch))
	}
	first := s.scratch[0]

	if _, err := s.Finalize(randomFrame(t, d, 15), &FrameHeader{Dim: d}, nil); err != nil {
		t.Fatal(err)
	}
	if len(s.scratch) != 3 || s.scratch[0] != first {
		t.Error("scratch was reallocated between frames")
	}
}

func TestFinalizeLogsPlan(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := serialSession(t, WithLogger(l))

	d := newDim(t, 40, 40, 16)
	if _, err := s.Finalize(randomFrame(t, d, 16), &FrameHeader{Dim: d}, &ImageFeatures{Restoration: filters()}); err != nil {
		t.Fatal(err)
	}
	if out := buf.String(); !strings.Contains(out, "frame planned") || !strings.Contains(out, "halo=3") {
		t.Errorf("log output missing plan record:\n%s", out)
	}
}
