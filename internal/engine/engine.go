// Package engine wraps the external media engine used to produce segments.
//
// An Engine owns an isolated working space: inputs are staged into it by
// name, commands refer to those names, and outputs are read back by name.
// An instance runs at most one command at a time and is not meant to be
// shared between sessions.
package engine

import (
	"context"
	"io"
)

// ProgressFunc receives the fraction (0.0-1.0) of the running command
// that has completed.
type ProgressFunc func(fraction float64)

// Engine is the contract the segmentation pipeline uses against the
// media engine.
type Engine interface {
	// Initialize prepares the engine. It must complete before any other
	// operation. Calling it again after success is a no-op.
	Initialize(ctx context.Context) error

	// Loaded reports whether Initialize has completed and the engine has
	// not been closed.
	Loaded() bool

	// StageInput copies data into the working space under name.
	StageInput(ctx context.Context, name string, data io.Reader) error

	// RunCommand executes one engine invocation described by argv.
	// It must not be called while another command is in flight.
	RunCommand(ctx context.Context, argv []string) error

	// ReadOutput opens a previously produced output by name.
	// The caller is responsible for closing the returned ReadCloser.
	ReadOutput(ctx context.Context, name string) (io.ReadCloser, error)

	// Remove deletes a staged input or produced output from the working
	// space. Removing a name that does not exist is not an error.
	Remove(ctx context.Context, name string) error

	// OnProgress registers the progress listener for subsequent commands.
	// A nil fn removes the listener.
	OnProgress(fn ProgressFunc)

	// Close releases the working space. The engine is unusable afterwards.
	Close() error
}
