package playback

import "github.com/cockroachdb/errors"

// Errors reported by backends. Backends mark their failures with these so
// callers can classify them with errors.Is.
var (
	ErrResourceNotFound   = errors.New("audio resource not found")
	ErrUnsupportedFormat  = errors.New("unsupported audio format")
	ErrBackendUnavailable = errors.New("audio backend unavailable")
)

// Backend opens playable audio resources.
type Backend interface {
	// Open synchronously opens and decodes the resource identified by id.
	Open(id string) (Handle, error)
}

// Handle is one opened audio resource.
type Handle interface {
	// Start begins or continues playback from the current position.
	Start() error
	// Stop halts playback and keeps the position.
	Stop() error
	// Rewind moves the position back to the start of the track.
	Rewind() error
	// OnCompletion registers fn to be called once when playback reaches the
	// natural end of the track. fn is not called for Stop or Close and may
	// run on a goroutine owned by the backend.
	OnCompletion(fn func())
	// Close releases the resource. Close is idempotent.
	Close() error
}
