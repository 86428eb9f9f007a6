// Package run provides the Run aggregate: one end-to-end split attempt, its
// status transitions, its monotonic progress and the ordered list of
// segments it has produced.
package run

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/maauso/video-splitter/internal/id"
)

// Status represents the current state of a Run.
type Status string

const (
	// StatusIdle indicates no split has been started yet.
	StatusIdle Status = "IDLE"
	// StatusRunning indicates segments are being produced.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates every segment was produced.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the run stopped at a failing segment.
	StatusFailed Status = "FAILED"
)

// SegmentMediaType is the media type of every produced segment.
const SegmentMediaType = "video/mp4"

var (
	// ErrInvalidTransition is returned when an invalid state transition is attempted.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrSegmentOrder is returned when an appended segment does not continue
	// the list contiguously.
	ErrSegmentOrder = errors.New("segment out of order")
)

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusIdle:      {StatusRunning},
	StatusRunning:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Segment is one produced output clip.
type Segment struct {
	// Index is the 1-based position of the segment.
	Index int
	// FileName is the display and download name.
	FileName string
	// Start is the window start in seconds.
	Start float64
	// End is the window end in seconds.
	End float64
	// MediaType is the content type of the produced file.
	MediaType string
	// Path is the location of the content in temporary storage.
	Path string
	// URL is the published location, empty when not published.
	URL string
	// Size is the content length in bytes.
	Size int64
}

// FileName returns the output name for the 1-based segment index.
func FileName(index int) string {
	return fmt.Sprintf("segment_%d.mp4", index)
}

// Run represents one split attempt.
type Run struct {
	mu     sync.RWMutex
	notify func(Event)

	// ID is the unique identifier for this run.
	ID string
	// Status is the current run state.
	Status Status
	// Progress is the percentage of completion (0-100). It never decreases.
	Progress int
	// Segments are the produced segments in time order.
	Segments []Segment
	// Error contains the failure message if the run failed.
	Error string
	// Duration is the total input duration the segments were planned from.
	Duration float64
	// DurationFallback is true when Duration is the default rather than a
	// probed value.
	DurationFallback bool
	// CreatedAt is when the run was created.
	CreatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// Option configures a Run.
type Option func(*Run)

// WithNotifier registers fn to receive the run's events. fn is called
// after each mutation, outside the run's lock.
func WithNotifier(fn func(Event)) Option {
	return func(r *Run) {
		r.notify = fn
	}
}

// New creates a new Run with a generated ID and IDLE status.
func New(opts ...Option) *Run {
	return NewWithID(id.Generate("run"), opts...)
}

// NewWithID creates a new Run with the specified ID and IDLE status.
func NewWithID(runID string, opts ...Option) *Run {
	r := &Run{
		ID:        runID,
		Status:    StatusIdle,
		Segments:  make([]Segment, 0),
		CreatedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TransitionTo attempts to change the run status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (r *Run) TransitionTo(status Status) error {
	r.mu.Lock()
	if !canTransition(r.Status, status) {
		from := r.Status
		r.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, status)
	}

	r.Status = status
	now := time.Now()
	switch status {
	case StatusRunning:
		r.StartedAt = now
	case StatusCompleted:
		r.Progress = 100
		r.CompletedAt = now
	case StatusFailed:
		r.CompletedAt = now
	}
	ev := r.eventLocked(eventFor(status))
	r.mu.Unlock()

	r.emit(ev)
	return nil
}

// Start transitions the run from IDLE to RUNNING with zero progress.
func (r *Run) Start() error {
	return r.TransitionTo(StatusRunning)
}

// Complete transitions the run to COMPLETED and sets progress to 100.
func (r *Run) Complete() error {
	return r.TransitionTo(StatusCompleted)
}

// Fail transitions the run to FAILED with an error message.
// Produced segments are kept.
func (r *Run) Fail(errMsg string) error {
	r.mu.Lock()
	if canTransition(r.Status, StatusFailed) {
		r.Error = errMsg
	}
	r.mu.Unlock()
	return r.TransitionTo(StatusFailed)
}

// GetStatus returns the current run status (thread-safe).
func (r *Run) GetStatus() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status
}

// IsTerminal returns true if the run is COMPLETED or FAILED.
func (r *Run) IsTerminal() bool {
	s := r.GetStatus()
	return s == StatusCompleted || s == StatusFailed
}

// SetDuration records the total duration the run is planned from.
func (r *Run) SetDuration(seconds float64, fallback bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Duration = seconds
	r.DurationFallback = fallback
}

// UpdateProgress raises the progress percentage. Values are clamped to
// 0-100 and values below the current progress are ignored. It reports
// whether progress changed.
func (r *Run) UpdateProgress(progress int) bool {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	r.mu.Lock()
	if r.Status != StatusRunning || progress <= r.Progress {
		r.mu.Unlock()
		return false
	}
	r.Progress = progress
	ev := r.eventLocked(EventProgress)
	r.mu.Unlock()

	r.emit(ev)
	return true
}

// AppendSegment publishes a produced segment. The segment must carry the
// next index and start where the previous one ended.
func (r *Run) AppendSegment(seg Segment) error {
	r.mu.Lock()
	if r.Status != StatusRunning {
		status := r.Status
		r.mu.Unlock()
		return fmt.Errorf("%w: cannot append segment in %s", ErrInvalidTransition, status)
	}

	want := len(r.Segments) + 1
	prevEnd := 0.0
	if n := len(r.Segments); n > 0 {
		prevEnd = r.Segments[n-1].End
	}
	if seg.Index != want || math.Abs(seg.Start-prevEnd) > 1e-9 || seg.End <= seg.Start {
		r.mu.Unlock()
		return fmt.Errorf("%w: got index %d [%g, %g), want index %d starting at %g",
			ErrSegmentOrder, seg.Index, seg.Start, seg.End, want, prevEnd)
	}

	if seg.MediaType == "" {
		seg.MediaType = SegmentMediaType
	}
	r.Segments = append(r.Segments, seg)
	ev := r.eventLocked(EventSegment)
	ev.Segment = &seg
	r.mu.Unlock()

	r.emit(ev)
	return nil
}

// Segment returns the segment with the given 1-based index.
func (r *Run) Segment(index int) (Segment, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 1 || index > len(r.Segments) {
		return Segment{}, false
	}
	return r.Segments[index-1], true
}

// SegmentPaths returns the storage paths of all produced segments.
func (r *Run) SegmentPaths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		paths = append(paths, s.Path)
	}
	return paths
}

// Clone creates a deep copy of the run for safe reads. The copy carries no
// notifier.
func (r *Run) Clone() *Run {
	r.mu.RLock()
	defer r.mu.RUnlock()

	segments := make([]Segment, len(r.Segments))
	copy(segments, r.Segments)

	return &Run{
		ID:               r.ID,
		Status:           r.Status,
		Progress:         r.Progress,
		Segments:         segments,
		Error:            r.Error,
		Duration:         r.Duration,
		DurationFallback: r.DurationFallback,
		CreatedAt:        r.CreatedAt,
		StartedAt:        r.StartedAt,
		CompletedAt:      r.CompletedAt,
	}
}

func (r *Run) emit(ev Event) {
	if r.notify != nil {
		r.notify(ev)
	}
}
