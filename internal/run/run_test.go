package run

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func runningRun(t *testing.T, opts ...Option) *Run {
	t.Helper()
	r := NewWithID("test", opts...)
	if err := r.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return r
}

func seg(index int, start, end float64) Segment {
	return Segment{Index: index, FileName: FileName(index), Start: start, End: end}
}

func TestNew(t *testing.T) {
	r := New()

	if !strings.HasPrefix(r.ID, "run-") {
		t.Errorf("expected run ID prefix, got %s", r.ID)
	}
	if r.Status != StatusIdle {
		t.Errorf("expected status %s, got %s", StatusIdle, r.Status)
	}
	if r.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if r.Segments == nil {
		t.Error("expected Segments to be initialized")
	}
}

func TestFileName(t *testing.T) {
	if got := FileName(1); got != "segment_1.mp4" {
		t.Errorf("FileName(1) = %s", got)
	}
	if got := FileName(12); got != "segment_12.mp4" {
		t.Errorf("FileName(12) = %s", got)
	}
}

func TestRun_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"IDLE to RUNNING", StatusIdle, StatusRunning, false},
		{"RUNNING to COMPLETED", StatusRunning, StatusCompleted, false},
		{"RUNNING to FAILED", StatusRunning, StatusFailed, false},
		{"IDLE to COMPLETED", StatusIdle, StatusCompleted, true},
		{"IDLE to FAILED", StatusIdle, StatusFailed, true},
		{"COMPLETED to RUNNING", StatusCompleted, StatusRunning, true},
		{"FAILED to RUNNING", StatusFailed, StatusRunning, true},
		{"FAILED to COMPLETED", StatusFailed, StatusCompleted, true},
		{"RUNNING to RUNNING", StatusRunning, StatusRunning, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewWithID("test")
			r.Status = tt.from

			err := r.TransitionTo(tt.to)

			if tt.wantErr && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition for %s -> %s, got %v", tt.from, tt.to, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for %s -> %s: %v", tt.from, tt.to, err)
			}
		})
	}
}

func TestRun_Start(t *testing.T) {
	before := time.Now()
	r := runningRun(t)

	if r.Status != StatusRunning {
		t.Errorf("expected status %s, got %s", StatusRunning, r.Status)
	}
	if r.Progress != 0 {
		t.Errorf("expected progress 0, got %d", r.Progress)
	}
	if r.StartedAt.Before(before) {
		t.Error("expected StartedAt to be set")
	}
}

func TestRun_Complete(t *testing.T) {
	r := runningRun(t)
	r.UpdateProgress(40)

	if err := r.Complete(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Progress != 100 {
		t.Errorf("expected progress 100, got %d", r.Progress)
	}
	if r.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be set")
	}
	if !r.IsTerminal() {
		t.Error("expected terminal run")
	}
}

func TestRun_FailKeepsSegments(t *testing.T) {
	r := runningRun(t)
	if err := r.AppendSegment(seg(1, 0, 60)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := r.Fail("Failed to process segment 2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.GetStatus() != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, r.Status)
	}
	if r.Error != "Failed to process segment 2" {
		t.Errorf("unexpected error message %q", r.Error)
	}
	if len(r.Segments) != 1 {
		t.Errorf("expected produced segment to be kept, got %d", len(r.Segments))
	}
}

func TestRun_UpdateProgress(t *testing.T) {
	t.Run("ignored before start", func(t *testing.T) {
		r := NewWithID("test")
		if r.UpdateProgress(10) {
			t.Error("progress must not change on an idle run")
		}
	})

	t.Run("monotonic and clamped", func(t *testing.T) {
		r := runningRun(t)

		steps := []struct {
			in      int
			changed bool
			want    int
		}{
			{20, true, 20},
			{10, false, 20},
			{20, false, 20},
			{150, true, 100},
			{-5, false, 100},
		}
		for _, s := range steps {
			if got := r.UpdateProgress(s.in); got != s.changed {
				t.Errorf("UpdateProgress(%d) changed = %v, want %v", s.in, got, s.changed)
			}
			if r.Progress != s.want {
				t.Errorf("after UpdateProgress(%d) progress = %d, want %d", s.in, r.Progress, s.want)
			}
		}
	})
}

func TestRun_AppendSegment(t *testing.T) {
	t.Run("contiguous segments", func(t *testing.T) {
		r := runningRun(t)
		for _, s := range []Segment{seg(1, 0, 60), seg(2, 60, 120), seg(3, 120, 150)} {
			if err := r.AppendSegment(s); err != nil {
				t.Fatalf("AppendSegment(%d): %v", s.Index, err)
			}
		}
		if len(r.Segments) != 3 {
			t.Fatalf("expected 3 segments, got %d", len(r.Segments))
		}
		if r.Segments[2].MediaType != SegmentMediaType {
			t.Errorf("expected default media type, got %q", r.Segments[2].MediaType)
		}
	})

	t.Run("rejects gaps and reordering", func(t *testing.T) {
		cases := []Segment{
			seg(2, 0, 60),
			seg(1, 5, 60),
			seg(1, 0, 0),
		}
		for _, s := range cases {
			r := runningRun(t)
			if err := r.AppendSegment(s); !errors.Is(err, ErrSegmentOrder) {
				t.Errorf("AppendSegment(%+v) expected ErrSegmentOrder, got %v", s, err)
			}
		}
	})

	t.Run("rejects when not running", func(t *testing.T) {
		r := NewWithID("test")
		if err := r.AppendSegment(seg(1, 0, 60)); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestRun_SegmentLookup(t *testing.T) {
	r := runningRun(t)
	_ = r.AppendSegment(Segment{Index: 1, Start: 0, End: 60, Path: "/tmp/a"})
	_ = r.AppendSegment(Segment{Index: 2, Start: 60, End: 90, Path: "/tmp/b"})

	s, ok := r.Segment(2)
	if !ok || s.Path != "/tmp/b" {
		t.Errorf("Segment(2) = %+v, %v", s, ok)
	}
	if _, ok := r.Segment(0); ok {
		t.Error("Segment(0) should not exist")
	}
	if _, ok := r.Segment(3); ok {
		t.Error("Segment(3) should not exist")
	}

	paths := r.SegmentPaths()
	if len(paths) != 2 || paths[0] != "/tmp/a" || paths[1] != "/tmp/b" {
		t.Errorf("unexpected paths %v", paths)
	}
}

func TestRun_Events(t *testing.T) {
	var events []Event
	r := NewWithID("test", WithNotifier(func(ev Event) { events = append(events, ev) }))

	_ = r.Start()
	r.UpdateProgress(50)
	_ = r.AppendSegment(seg(1, 0, 60))
	_ = r.Complete()

	wantTypes := []EventType{EventStarted, EventProgress, EventSegment, EventCompleted}
	if len(events) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d: %+v", len(wantTypes), len(events), events)
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("event %d type = %s, want %s", i, events[i].Type, want)
		}
		if events[i].RunID != "test" {
			t.Errorf("event %d run ID = %s", i, events[i].RunID)
		}
	}
	if events[2].Segment == nil || events[2].Segment.Index != 1 {
		t.Errorf("segment event missing segment: %+v", events[2])
	}
	if events[3].Progress != 100 {
		t.Errorf("completed event progress = %d", events[3].Progress)
	}
}

func TestRun_FailEvent(t *testing.T) {
	var last Event
	r := NewWithID("test", WithNotifier(func(ev Event) { last = ev }))
	_ = r.Start()
	_ = r.Fail("boom")

	if last.Type != EventFailed || last.Error != "boom" || last.Status != StatusFailed {
		t.Errorf("unexpected failed event %+v", last)
	}
}

func TestRun_Clone(t *testing.T) {
	r := runningRun(t)
	_ = r.AppendSegment(seg(1, 0, 60))
	r.SetDuration(150, true)

	c := r.Clone()
	c.Segments[0].FileName = "changed"
	c.Progress = 99

	if r.Segments[0].FileName != "segment_1.mp4" {
		t.Error("modifying clone segments should not affect original")
	}
	if r.Progress == 99 {
		t.Error("modifying clone should not affect original")
	}
	if c.Duration != 150 || !c.DurationFallback {
		t.Errorf("clone lost duration: %v %v", c.Duration, c.DurationFallback)
	}
}
