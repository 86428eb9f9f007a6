package run

// EventType identifies what changed on a run.
type EventType string

const (
	// EventStarted is emitted when a run enters RUNNING.
	EventStarted EventType = "run_started"
	// EventProgress is emitted when progress increases.
	EventProgress EventType = "progress"
	// EventSegment is emitted when a segment is appended.
	EventSegment EventType = "segment"
	// EventCompleted is emitted when a run completes.
	EventCompleted EventType = "completed"
	// EventFailed is emitted when a run fails.
	EventFailed EventType = "failed"
)

// Event is a notification about a run state change.
type Event struct {
	Type     EventType
	RunID    string
	Status   Status
	Progress int
	// Segment is set for EventSegment.
	Segment *Segment
	// Error is set for EventFailed.
	Error string
}

func eventFor(status Status) EventType {
	switch status {
	case StatusRunning:
		return EventStarted
	case StatusCompleted:
		return EventCompleted
	case StatusFailed:
		return EventFailed
	default:
		return EventProgress
	}
}

// eventLocked builds an event from the current state. r.mu must be held.
func (r *Run) eventLocked(t EventType) Event {
	return Event{
		Type:     t,
		RunID:    r.ID,
		Status:   r.Status,
		Progress: r.Progress,
		Error:    r.Error,
	}
}
