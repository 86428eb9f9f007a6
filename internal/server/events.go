package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/maauso/video-splitter/internal/run"
	"github.com/maauso/video-splitter/internal/session"
	"github.com/maauso/video-splitter/internal/view"
)

// heartbeatInterval keeps idle event streams open through proxies.
const heartbeatInterval = 15 * time.Second

// Events handles GET /sessions/{id}/events requests. The stream starts with
// a "snapshot" event carrying the full session, followed by session events
// in publication order. The stream ends when the client goes away or the
// session ends.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	rc := http.NewResponseController(w)
	events, cancel := s.Subscribe()
	defer cancel()

	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "snapshot", sessionResponse(s)); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger.Warn("event stream not flushable", slog.String("error", err.Error()))
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	link := segmentLink(s.ID)
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case ev, open := <-events:
			if !open {
				return
			}
			resp := eventResponse(ev, link)
			if err := writeEvent(w, resp.Type, resp); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func eventResponse(ev session.Event, link view.LinkFunc) EventResponse {
	resp := EventResponse{Type: string(ev.Type)}
	switch {
	case ev.Run != nil:
		resp.RunID = ev.Run.RunID
		resp.Status = string(ev.Run.Status)
		resp.Progress = ev.Run.Progress
		if ev.Run.Type == run.EventSegment && ev.Run.Segment != nil {
			sv := view.Segment(*ev.Run.Segment, link)
			resp.Segment = &sv
		}
		resp.Error = ev.Run.Error
	case ev.Error != nil:
		d := view.Dialog(*ev.Error)
		resp.Dialog = &d
	case ev.Type == session.EventEngine:
		resp.Engine = string(ev.Readiness)
	}
	return resp
}

// writeEvent writes one server-sent event with a JSON data line.
func writeEvent(w http.ResponseWriter, name string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, b)
	return err
}
