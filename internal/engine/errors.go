package engine

import (
	"errors"
	"fmt"
)

// Static errors for engine operations.
var (
	// ErrNotInitialized is returned when an operation is attempted before Initialize.
	ErrNotInitialized = errors.New("engine: not initialized")
	// ErrClosed is returned when an operation is attempted after Close.
	ErrClosed = errors.New("engine: closed")
	// ErrCommandInFlight is returned when RunCommand is called while another command runs.
	ErrCommandInFlight = errors.New("engine: another command is in flight")
	// ErrInvalidName is returned when a staged or output name is not a plain file name.
	ErrInvalidName = errors.New("engine: invalid file name")
)

// LoadError is returned when the engine cannot be initialized.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("engine load failed (%s): %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// StagingError is returned when input bytes cannot be copied into the
// working space.
type StagingError struct {
	Name string
	Err  error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("stage input %q: %v", e.Name, e.Err)
}

func (e *StagingError) Unwrap() error {
	return e.Err
}

// CommandError represents a failed engine invocation, including the
// engine's own diagnostic output.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// OutputMissingError is returned when reading an output that was never produced.
type OutputMissingError struct {
	Name string
}

func (e *OutputMissingError) Error() string {
	return fmt.Sprintf("output %q was not produced", e.Name)
}
