package recon

import (
	"github.com/gogpu/recon/internal/features"
	"github.com/gogpu/recon/internal/plane"
	"github.com/gogpu/recon/internal/restore"
	"github.com/gogpu/recon/internal/schedule"
)

// Image3F is a three-plane float32 frame buffer.
type Image3F = plane.Image3F

// Rect addresses a sub-window of a frame.
type Rect = plane.Rect

// NewImage3F allocates a zeroed three-plane buffer.
func NewImage3F(width, height int) (*Image3F, error) { return plane.NewImage3F(width, height) }

// NewRect returns the rectangle (x0, y0, xsize, ysize) of a parentX ×
// parentY frame, failing if it does not fit.
func NewRect(x0, y0, xsize, ysize, parentX, parentY int) (Rect, error) {
	return plane.NewRect(x0, y0, xsize, ysize, parentX, parentY)
}

// Image features.
type (
	ImageFeatures = features.ImageFeatures
	Patch         = features.Patch
	Patches       = features.Patches
	BlendMode     = features.BlendMode
	Spline        = features.Spline
	Splines       = features.Splines
	NoiseParams   = features.NoiseParams
)

// Patch blend modes.
const (
	BlendNone    = features.BlendNone
	BlendReplace = features.BlendReplace
	BlendAdd     = features.BlendAdd
)

// NewPatches indexes patches for per-row lookup. Patches are applied in
// the order given.
func NewPatches(list []Patch) *Patches { return features.NewPatches(list) }

// NewSplines rasterizes spline paths into samples ready for compositing.
func NewSplines(list []Spline) *Splines { return features.NewSplines(list) }

// Restoration filter parameters.
type (
	RestoreParams = restore.Params
	SigmaMap      = restore.SigmaMap
)

// DefaultRestoreParams returns restoration parameters with both filters
// disabled and standard weights preset.
func DefaultRestoreParams() RestoreParams { return restore.DefaultParams() }

// NewSigmaMap builds a per-block EPF strength map.
func NewSigmaMap(xblocks, yblocks int, sigma []float32) (*SigmaMap, error) {
	return restore.NewSigmaMap(xblocks, yblocks, sigma)
}

// MergePolicy decides when small groups are merged into their neighbour
// instead of getting their own boundary regions.
type MergePolicy = schedule.MergePolicy

// DefaultMergePolicy merges groups within one block of the halo.
var DefaultMergePolicy = schedule.DefaultMergePolicy

// Dispatcher runs independent tasks across a bounded set of workers.
//
// Run calls setup once with the worker count, then task for every taskID
// in [0, numTasks) with a workerID in [0, workers). Tasks sharing a
// workerID never run concurrently. The first error stops further tasks
// from starting and is returned.
type Dispatcher interface {
	Run(numTasks int, setup func(workers int) error, task func(taskID, workerID int) error) error
}
