package session

import (
	"errors"

	"github.com/maauso/video-splitter/internal/engine"
	"github.com/maauso/video-splitter/internal/split"
)

var (
	// ErrSessionNotFound is returned when a session cannot be found by ID.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionClosed is returned for operations on a session that has ended.
	ErrSessionClosed = errors.New("session closed")
	// ErrRunInProgress is returned when a split is triggered while one is running.
	ErrRunInProgress = errors.New("a split is already in progress")
	// ErrSegmentNotFound is returned for a segment index the current run has not produced.
	ErrSegmentNotFound = errors.New("segment not found")
)

// Error codes carried by ErrorState.
const (
	CodeEngineLoadFailed = "ENGINE_LOAD_FAILED"
	CodeMissingInput     = "MISSING_INPUT"
	CodeEngineNotReady   = "ENGINE_NOT_READY"
	CodeSegmentFailed    = "SEGMENT_FAILED"
	CodeProcessingFailed = "PROCESSING_FAILED"
)

const (
	msgEngineLoadFailed = "Failed to load video processing library. Please refresh the page and try again."
	msgMissingInput     = "Please upload both sound and video files"
	msgEngineNotReady   = "Video processing library is not loaded yet. Please wait or refresh the page."
	msgStagingFailed    = "Failed to prepare the uploaded files"
	msgProcessingFailed = "Failed to process video"
)

// Describe maps an error to the code and user-facing message shown in the
// error dialog.
func Describe(err error) (code, message string) {
	var loadErr *engine.LoadError
	var segErr *split.SegmentProcessingError
	switch {
	case errors.As(err, &loadErr):
		return CodeEngineLoadFailed, msgEngineLoadFailed
	case errors.Is(err, split.ErrMissingInput):
		return CodeMissingInput, msgMissingInput
	case errors.Is(err, split.ErrEngineNotReady):
		return CodeEngineNotReady, msgEngineNotReady
	case errors.As(err, &segErr):
		return CodeSegmentFailed, segErr.Message()
	case errors.Is(err, split.ErrStagingFailed):
		return CodeProcessingFailed, msgStagingFailed
	default:
		return CodeProcessingFailed, msgProcessingFailed
	}
}
