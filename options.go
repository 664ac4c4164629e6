package recon

import (
	"log/slog"

	"github.com/gogpu/recon/internal/schedule"
)

// Option configures a single Finalize call.
//
// Example:
//
//	out, err := s.Finalize(img, hdr, feats,
//	    recon.WithColorTransform(true),
//	    recon.WithSaveDecompressed(true))
type Option func(*options)

// options holds per-frame configuration.
type options struct {
	saveDecompressed bool
	colorTransform   bool
	merge            schedule.MergePolicy
	scratchLimit     int
	beltTile         int
}

func defaultOptions() options {
	return options{merge: schedule.DefaultMergePolicy}
}

// WithSaveDecompressed keeps a decompressed copy of frames that request
// SaveReference. Without it such frames save nothing.
func WithSaveDecompressed(save bool) Option {
	return func(o *options) {
		o.saveDecompressed = save
	}
}

// WithColorTransform applies the frame's colour transform (XYB inline per
// row, YCbCr over the cropped frame). Without it samples are returned in
// the coded colour space.
func WithColorTransform(apply bool) Option {
	return func(o *options) {
		o.colorTransform = apply
	}
}

// WithMergePolicy overrides when small groups are merged with their
// neighbours by the scheduler.
func WithMergePolicy(m MergePolicy) Option {
	return func(o *options) {
		o.merge = m
	}
}

// WithScratchLimit caps the per-worker filter scratch, in bytes summed over
// all workers. Frames that need more fail with ErrResourceExhausted.
// Zero means no limit.
func WithScratchLimit(bytes int) Option {
	return func(o *options) {
		o.scratchLimit = bytes
	}
}

// WithBeltTile splits the belts around group boundaries into pieces of at
// most n pixels along their length, so wide frames spread belt work over
// more workers. Output is the same for every n. Zero keeps belts whole.
func WithBeltTile(n int) Option {
	return func(o *options) {
		o.beltTile = n
	}
}

// SessionOption configures a Session during creation.
//
// Example:
//
//	s := recon.NewSession(recon.WithWorkers(4))
//	defer s.Close()
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	workers    int
	dispatcher Dispatcher
	logger     *slog.Logger
}

// WithWorkers sets the size of the session's worker pool. Zero or negative
// selects GOMAXPROCS. Ignored when WithDispatcher is given.
func WithWorkers(n int) SessionOption {
	return func(o *sessionOptions) {
		o.workers = n
	}
}

// WithDispatcher runs frame work on d instead of a session-owned pool.
// The session does not close d.
func WithDispatcher(d Dispatcher) SessionOption {
	return func(o *sessionOptions) {
		o.dispatcher = d
	}
}

// WithLogger sets the session logger. By default the package logger
// (see SetLogger) is used.
func WithLogger(l *slog.Logger) SessionOption {
	return func(o *sessionOptions) {
		o.logger = l
	}
}
