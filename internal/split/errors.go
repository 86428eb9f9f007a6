package split

import (
	"errors"
	"fmt"
)

// Static errors for split preconditions.
var (
	// ErrMissingInput is returned when the sound or video file is absent.
	ErrMissingInput = errors.New("missing input file")
	// ErrEngineNotReady is returned when a split is attempted before the
	// engine has loaded.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrStagingFailed is returned when the inputs cannot be staged into
	// the engine.
	ErrStagingFailed = errors.New("failed to stage input files")
)

// SegmentProcessingError is returned when one segment's engine command,
// read-back or storage fails. The run stops at this segment.
type SegmentProcessingError struct {
	// Index is the 1-based index of the failed segment.
	Index int
	Err   error
}

func (e *SegmentProcessingError) Error() string {
	return fmt.Sprintf("process segment %d: %v", e.Index, e.Err)
}

func (e *SegmentProcessingError) Unwrap() error {
	return e.Err
}

// Message returns the user-facing description of the failure.
func (e *SegmentProcessingError) Message() string {
	return fmt.Sprintf("Failed to process segment %d", e.Index)
}
