package recon

import (
	"errors"

	"github.com/gogpu/recon/internal/reference"
)

// Sentinel errors for recon.
var (
	// ErrResourceExhausted is returned when scratch, halo or reference
	// buffers cannot be allocated within the configured limits. The frame
	// is abandoned; no partial output is returned.
	ErrResourceExhausted = errors.New("recon: resource exhausted")

	// ErrNoReference is returned when a frame restores from, or a caller
	// snapshots, a reference frame that was never finalized.
	ErrNoReference = reference.ErrNotFinalized

	// ErrCorruptSnapshot is returned by Session.LoadReference for input
	// that was not written by Session.SaveReference.
	ErrCorruptSnapshot = reference.ErrCorruptSnapshot
)

// ConfigError reports a frame header or feature combination that cannot
// be reconstructed. It is returned before any pixel is touched.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "recon: invalid config." + e.Field + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error, if any.
func (e *ConfigError) Unwrap() error { return e.Err }
