package recon

import (
	"io"
	"log/slog"
	"sync"

	"github.com/gogpu/recon/internal/parallel"
	"github.com/gogpu/recon/internal/plane"
	"github.com/gogpu/recon/internal/reference"
	"github.com/gogpu/recon/internal/restore"
)

// haloBandsPerSize bounds how many halo bands of one size the session keeps
// for reuse between frames.
const haloBandsPerSize = 64

// Session reconstructs the frames of one image.
//
// It owns the state shared by consecutive frames: the reference frame, the
// per-worker filter scratch and the dispatcher. Finalize calls on one
// Session are serialized; use separate sessions for independent images.
type Session struct {
	mu sync.Mutex

	dispatcher Dispatcher
	pool       *parallel.WorkerPool // non-nil when owned
	log        *slog.Logger

	ref *reference.Store

	// scratch[w] is the filter pipeline of worker w. Grows, never shrinks.
	scratch []*restore.Pipeline

	bands *plane.Pool
}

// NewSession creates a session. Without WithDispatcher it starts a worker
// pool that Close releases.
func NewSession(opts ...SessionOption) *Session {
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		dispatcher: o.dispatcher,
		log:        o.logger,
		ref:        reference.New(),
		bands:      plane.NewPool(haloBandsPerSize),
	}
	if s.log == nil {
		s.log = Logger()
	}
	if s.dispatcher == nil {
		s.pool = parallel.NewWorkerPool(o.workers)
		s.dispatcher = s.pool
	}
	return s
}

// Close stops the session's own worker pool. Close is safe to call
// multiple times.
func (s *Session) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// HasReference reports whether a finalized reference frame is available.
func (s *Session) HasReference() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ref.Finalized()
}

// Reference returns a copy of the saved reference frame at its padded
// size, or nil if there is none.
func (s *Session) Reference() *Image3F {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ref.Frame()
}

// SaveReference writes the finalized reference frame to w as a compressed
// snapshot. It fails with ErrNoReference if no frame was saved.
func (s *Session) SaveReference(w io.Writer) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ref.WriteTo(w)
}

// LoadReference replaces the reference frame with a snapshot written by
// SaveReference. Malformed input fails with ErrCorruptSnapshot and leaves
// the current reference untouched.
func (s *Session) LoadReference(r io.Reader) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.ref.ReadFrom(r)
	if err == nil {
		w, h := s.ref.Size()
		s.log.Debug("recon: reference loaded", "width", w, "height", h, "bytes", n)
	}
	return n, err
}
