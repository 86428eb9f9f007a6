// Package media reads metadata from media files without going through the
// engine's working space.
package media

import "context"

// Prober reports the duration of a media file.
type Prober interface {
	// Duration returns the length of the media file at path in seconds.
	Duration(ctx context.Context, path string) (float64, error)
}
