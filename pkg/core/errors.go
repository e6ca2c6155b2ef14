// pkg/core/errors.go
package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnresolvableReference is returned when an annotation names a player that no longer exists.
	ErrUnresolvableReference = errors.New("unresolvable player reference")
	// ErrCaptureUnsupported is returned before any frame work when no surface can be produced.
	ErrCaptureUnsupported = errors.New("frame capture unsupported")
	// ErrEncoderFailure wraps any failure of the video encoder.
	ErrEncoderFailure = errors.New("encoder failure")
	// ErrCancelled is returned when an export is cancelled at a frame boundary.
	ErrCancelled = errors.New("export cancelled")
	// ErrInvalidDuration rejects movements that could never finish.
	ErrInvalidDuration = errors.New("movement duration must be positive")
	// ErrKeyframeOutOfRange is returned by seek with an invalid index.
	ErrKeyframeOutOfRange = errors.New("keyframe index out of range")
	// ErrUnknownKind is returned when decoding an unrecognised annotation kind.
	ErrUnknownKind = errors.New("unknown annotation kind")
)

// ExportError reports why an export stopped. Kind is one of ErrCaptureUnsupported,
// ErrEncoderFailure or ErrCancelled.
type ExportError struct {
	Kind  error
	Frame int
	Err   error
}

func (e *ExportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v at frame %d", e.Kind, e.Frame)
	}
	return fmt.Sprintf("%v at frame %d: %v", e.Kind, e.Frame, e.Err)
}

func (e *ExportError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
