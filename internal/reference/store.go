// Package reference holds the cross-frame reference buffer of a decoding
// session.
//
// A frame that requests save copies its pre-noise rows into the store; a
// later frame that requests restore adds the stored rows into its own.
// Rows are written by exactly one region each, so the store needs no
// locking during dispatch.
package reference

import (
	"errors"
	"fmt"

	"github.com/gogpu/recon/internal/plane"
)

var (
	// ErrNotFinalized is returned when a restore or snapshot is attempted
	// before any frame has been saved and finalized.
	ErrNotFinalized = errors.New("reference: no finalized frame")
)

// Store is the reference frame state of one session.
type Store struct {
	buf *plane.Image3F

	// width and height of the last saved frame.
	width, height int

	// srcW and srcH bound the rows a restoring frame reads. They hold the
	// previous frame's size even while the current frame saves over it.
	srcW, srcH int

	restore bool
	save    bool

	finalized bool
}

// New returns an empty store.
func New() *Store { return &Store{} }

// Configure sets what the next frame does with the store. Restoring needs
// a finalized reference. A frame that saves invalidates the previous
// reference until MarkFinalized; it may still restore from it row by row.
func (s *Store) Configure(restore, save bool) error {
	if restore && !s.finalized {
		return ErrNotFinalized
	}
	s.restore = restore
	s.save = save
	if save {
		s.finalized = false
	}
	return nil
}

// NeedsRestore reports whether rows must be added from the store.
func (s *Store) NeedsRestore() bool { return s.restore }

// NeedsSave reports whether rows must be copied into the store.
func (s *Store) NeedsSave() bool { return s.save }

// Ensure makes the buffer at least width × height. Existing content is
// preserved and the buffer never shrinks.
func (s *Store) Ensure(width, height int) error {
	if s.buf != nil && s.buf.Width() >= width && s.buf.Height() >= height {
		return nil
	}
	w, h := width, height
	if s.buf != nil {
		w = max(w, s.buf.Width())
		h = max(h, s.buf.Height())
	}
	buf, err := plane.NewImage3F(w, h)
	if err != nil {
		return fmt.Errorf("reference: allocate %dx%d: %w", w, h, err)
	}
	if s.buf != nil {
		plane.CopyRect(s.buf.Bounds(), s.buf, buf)
	}
	s.buf = buf
	return nil
}

// Begin prepares the store for a frame of the given padded size,
// allocating when the frame saves.
func (s *Store) Begin(width, height int) error {
	s.srcW, s.srcH = 0, 0
	if s.restore {
		s.srcW, s.srcH = s.width, s.height
	}
	if s.save {
		if err := s.Ensure(width, height); err != nil {
			return err
		}
		s.width, s.height = width, height
	}
	return nil
}

// RestoreRow adds the stored samples of row into img. Parts of the row
// outside the saved frame receive nothing, even where the buffer is
// larger from an earlier frame.
func (s *Store) RestoreRow(img *plane.Image3F, row plane.Rect) {
	y := row.Y0()
	if s.buf == nil || y >= s.srcH {
		return
	}
	x1 := min(row.X1(), s.srcW)
	for c := range 3 {
		dst := img.PlaneRow(c, y)
		src := s.buf.PlaneRow(c, y)
		for x := row.X0(); x < x1; x++ {
			dst[x] += src[x]
		}
	}
}

// SaveRow copies row of img into the store. Ensure must have covered it.
func (s *Store) SaveRow(img *plane.Image3F, row plane.Rect) {
	y := row.Y0()
	for c := range 3 {
		copy(s.buf.PlaneRow(c, y)[row.X0():row.X1()], img.PlaneRow(c, y)[row.X0():row.X1()])
	}
}

// MarkFinalized records that the saved frame is complete.
func (s *Store) MarkFinalized() { s.finalized = true }

// Finalized reports whether a complete saved frame is available.
func (s *Store) Finalized() bool { return s.finalized }

// Size returns the dimensions of the last saved frame.
func (s *Store) Size() (width, height int) { return s.width, s.height }
