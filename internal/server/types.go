// Package server provides the HTTP server for the video splitter.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/video-splitter/internal/view"
)

// SessionResponse is the HTTP response describing a session.
type SessionResponse struct {
	// ID is the unique identifier for the session.
	ID string `json:"id"`
	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"created_at"`
	// Uploads holds the two input slots.
	Uploads UploadsResponse `json:"uploads"`
	// Progress is the progress indicator.
	Progress view.ProgressView `json:"progress"`
	// Dialog is the error dialog.
	Dialog view.DialogView `json:"dialog"`
	// Run describes the current run.
	Run RunResponse `json:"run"`
	// Segments lists the produced segments in time order.
	Segments []view.SegmentView `json:"segments"`
}

// UploadsResponse holds the sound and video slots; empty slots are null.
type UploadsResponse struct {
	Sound *UploadResponse `json:"sound"`
	Video *UploadResponse `json:"video"`
}

// UploadResponse is the HTTP response describing an uploaded file.
type UploadResponse struct {
	// Slot is "sound" or "video".
	Slot string `json:"slot"`
	// Name is the client-declared file name.
	Name string `json:"name"`
	// MediaType is the declared or detected media type.
	MediaType string `json:"media_type"`
	// Size is the content length in bytes.
	Size int64 `json:"size"`
	// UploadedAt is when the file was stored.
	UploadedAt time.Time `json:"uploaded_at"`
}

// RunResponse is the HTTP response describing a run.
type RunResponse struct {
	// ID is the unique identifier for the run.
	ID string `json:"id"`
	// Status is the current run status.
	Status string `json:"status"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// Error contains the failure message if the run failed.
	Error string `json:"error,omitempty"`
	// Duration is the total duration in seconds the segments were planned from.
	Duration float64 `json:"duration,omitempty"`
	// DurationFallback is true when Duration is the default rather than probed.
	DurationFallback bool `json:"duration_fallback,omitempty"`
	// SegmentCount is the number of segments produced so far.
	SegmentCount int `json:"segment_count"`
}

// EventResponse is the data of one server-sent event.
type EventResponse struct {
	// Type is the event name.
	Type string `json:"type"`
	// RunID is set for run events.
	RunID string `json:"run_id,omitempty"`
	// Status is the run status after the event.
	Status string `json:"status,omitempty"`
	// Progress is the run progress after the event.
	Progress int `json:"progress"`
	// Segment is set for segment events.
	Segment *view.SegmentView `json:"segment,omitempty"`
	// Error is the run failure message, set for failed events.
	Error string `json:"error,omitempty"`
	// Dialog is set for error events.
	Dialog *view.DialogView `json:"dialog,omitempty"`
	// Engine is set for engine events.
	Engine string `json:"engine,omitempty"`
}

// uploadMeta is the metadata of an upload request, validated before the
// content is stored.
type uploadMeta struct {
	Slot      string `validate:"required,oneof=sound video"`
	Name      string `validate:"required,max=255"`
	MediaType string `validate:"required"`
	Size      int64  `validate:"min=1"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
