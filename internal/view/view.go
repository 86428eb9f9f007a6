// Package view projects session state onto what a client renders: the
// progress indicator, the error dialog and the segment list. Everything
// here is a pure function of its inputs.
package view

import (
	"fmt"
	"math"

	"github.com/maauso/video-splitter/internal/run"
	"github.com/maauso/video-splitter/internal/session"
)

// DialogTitle is the title of the error dialog.
const DialogTitle = "Processing Error"

// ProgressView is the progress indicator.
type ProgressView struct {
	Engine     session.Readiness `json:"engine"`
	Status     run.Status        `json:"status"`
	Percent    int               `json:"percent"`
	Processing bool              `json:"processing"`
	// CanSplit is true when a split may be triggered right now.
	CanSplit bool `json:"can_split"`
}

// DialogView is the error dialog.
type DialogView struct {
	Visible bool   `json:"visible"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// SegmentView is one entry of the segment list.
type SegmentView struct {
	Index     int    `json:"index"`
	Label     string `json:"label"`
	TimeRange string `json:"time_range"`
	FileName  string `json:"file_name"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
	Download  string `json:"download_url"`
}

// LinkFunc returns the download link for a segment.
type LinkFunc func(seg run.Segment) string

// Progress projects readiness and the current run onto the progress
// indicator. hasInputs reports whether both uploads are present.
func Progress(readiness session.Readiness, r *run.Run, hasInputs bool) ProgressView {
	processing := r.Status == run.StatusRunning
	return ProgressView{
		Engine:     readiness,
		Status:     r.Status,
		Percent:    r.Progress,
		Processing: processing,
		CanSplit:   readiness == session.ReadinessReady && hasInputs && !processing,
	}
}

// Dialog projects the error state onto the dialog.
func Dialog(es session.ErrorState) DialogView {
	if !es.Visible {
		return DialogView{}
	}
	return DialogView{
		Visible: true,
		Title:   DialogTitle,
		Message: es.Message,
		Code:    es.Code,
	}
}

// Segments lists the run's segments in stored order.
func Segments(r *run.Run, link LinkFunc) []SegmentView {
	out := make([]SegmentView, 0, len(r.Segments))
	for _, s := range r.Segments {
		out = append(out, Segment(s, link))
	}
	return out
}

// Segment projects one segment.
func Segment(s run.Segment, link LinkFunc) SegmentView {
	v := SegmentView{
		Index:     s.Index,
		Label:     fmt.Sprintf("Segment %d", s.Index),
		TimeRange: FormatTime(s.Start) + " - " + FormatTime(s.End),
		FileName:  s.FileName,
		MediaType: s.MediaType,
		Size:      s.Size,
	}
	if link != nil {
		v.Download = link(s)
	}
	return v
}

// FormatTime formats seconds as m:ss, truncating fractions.
func FormatTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	total := int64(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
