// Package storage provides temporary and published file storage for uploads
// and produced segments. It defines the Storage interface (port) and
// implementations for local disk and S3-backed publication.
package storage

import (
	"context"
	"io"
)

// Object describes a file written to temporary storage.
type Object struct {
	// Path is the location of the stored file.
	Path string
	// Size is the number of bytes written.
	Size int64
}

// Storage defines the interface for temporary and published file storage.
// Uploaded inputs and produced segments live in temporary storage for the
// lifetime of a session; publication is optional and only available when
// S3 is configured.
type Storage interface {
	// SaveTemp saves data to a temporary file.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (Object, error)

	// LoadTemp opens a temporary file for reading.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// Publish uploads data under key and returns its public URL.
	// Returns ErrPublishNotConfigured if no remote store is configured.
	Publish(ctx context.Context, key, contentType string, data io.Reader) (url string, err error)

	// CanPublish reports whether Publish is available.
	CanPublish() bool
}
