package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/video-splitter/internal/run"
	"github.com/maauso/video-splitter/internal/session"
	"github.com/maauso/video-splitter/internal/split"
	"github.com/maauso/video-splitter/internal/upload"
	"github.com/maauso/video-splitter/internal/view"
)

// DefaultMaxUploadBytes limits the size of one uploaded file.
const DefaultMaxUploadBytes int64 = 1 << 30

// multipartMemory is how much of a multipart body is kept in memory before
// spilling to disk.
const multipartMemory = 32 << 20

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	sessions       *session.Manager
	validator      *validator.Validate
	logger         *slog.Logger
	maxUploadBytes int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxUploadBytes limits the size of one uploaded file.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(sessions *session.Manager, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		sessions:       sessions,
		validator:      validator.New(),
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateSession handles POST /sessions requests.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Create(r.Context())
	if err != nil {
		h.logger.Error("failed to create session", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create session", "SESSION_CREATION_FAILED")
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse(s))
}

// GetSession handles GET /sessions/{id} requests.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(s))
}

// DeleteSession handles DELETE /sessions/{id} requests.
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(r.Context(), r.PathValue("id")); err != nil {
		h.writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PutUpload handles PUT /sessions/{id}/uploads/{slot} requests.
// The file is read from the multipart field "file".
func (h *Handlers) PutUpload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartMemory)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large", "FILE_TOO_LARGE")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required", "MISSING_FILE")
		return
	}
	defer func() { _ = file.Close() }()
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	if header.Size > h.maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large", "FILE_TOO_LARGE")
		return
	}

	mediaType, err := upload.DetectMediaType(header.Header.Get("Content-Type"), file)
	if err != nil {
		h.logger.Warn("media type detection failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "unreadable file", "INVALID_FILE")
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read upload", "UPLOAD_FAILED")
		return
	}

	meta := uploadMeta{
		Slot:      strings.ToLower(r.PathValue("slot")),
		Name:      header.Filename,
		MediaType: mediaType,
		Size:      header.Size,
	}
	if err := h.validator.Struct(meta); err != nil {
		h.logger.Warn("upload validation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	kind, err := upload.ParseKind(meta.Slot)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "UNKNOWN_SLOT")
		return
	}
	if !acceptsMediaType(kind, meta.MediaType) {
		writeError(w, http.StatusUnsupportedMediaType,
			fmt.Sprintf("media type %s is not accepted for %s", meta.MediaType, kind), "UNSUPPORTED_MEDIA_TYPE")
		return
	}

	f, err := s.Upload(r.Context(), kind, meta.Name, meta.MediaType, file)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse(&f))
}

// DeleteUpload handles DELETE /sessions/{id}/uploads/{slot} requests.
func (h *Handlers) DeleteUpload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	kind, err := upload.ParseKind(r.PathValue("slot"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "UNKNOWN_SLOT")
		return
	}
	if err := s.ResetUpload(r.Context(), kind); err != nil {
		h.writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Split handles POST /sessions/{id}/split requests. The run continues in
// the background after the response is written.
func (h *Handlers) Split(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	started, err := s.Split(r.Context())
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, runResponse(started))
}

// DismissError handles DELETE /sessions/{id}/error requests.
func (h *Handlers) DismissError(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.DismissError()
	w.WriteHeader(http.StatusNoContent)
}

// DownloadSegment handles GET /sessions/{id}/segments/{index} requests.
// Published segments redirect to their public URL.
func (h *Handlers) DownloadSegment(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 1 {
		writeError(w, http.StatusBadRequest, "segment index must be a positive integer", "INVALID_SEGMENT_INDEX")
		return
	}

	if seg, found := s.Run().Segment(index); found && seg.URL != "" {
		http.Redirect(w, r, seg.URL, http.StatusFound)
		return
	}

	seg, rc, err := s.OpenSegment(r.Context(), index)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", seg.MediaType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": seg.FileName}))
	if seg.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(seg.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("segment download interrupted",
			slog.String("session_id", s.ID),
			slog.Int("index", index),
			slog.String("error", err.Error()),
		)
	}
}

// session resolves the {id} path value, writing the error response when
// the session does not exist.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session ID is required", "MISSING_SESSION_ID")
		return nil, false
	}
	s, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		h.writeSessionError(w, err)
		return nil, false
	}
	return s, true
}

// writeSessionError maps session and split errors to HTTP responses.
func (h *Handlers) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found", "SESSION_NOT_FOUND")
	case errors.Is(err, session.ErrSessionClosed):
		writeError(w, http.StatusGone, "session closed", "SESSION_CLOSED")
	case errors.Is(err, session.ErrSegmentNotFound):
		writeError(w, http.StatusNotFound, "segment not found", "SEGMENT_NOT_FOUND")
	case errors.Is(err, session.ErrRunInProgress):
		writeError(w, http.StatusConflict, "a split is already in progress", "RUN_IN_PROGRESS")
	case errors.Is(err, split.ErrMissingInput), errors.Is(err, split.ErrEngineNotReady):
		code, msg := session.Describe(err)
		status := http.StatusBadRequest
		if code == session.CodeEngineNotReady {
			status = http.StatusConflict
		}
		writeError(w, status, msg, code)
	default:
		h.logger.Error("request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

// acceptsMediaType reports whether a media type may go into a slot. Video
// containers are accepted as sound sources.
func acceptsMediaType(kind upload.Kind, mediaType string) bool {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}
	switch kind {
	case upload.KindSound:
		return strings.HasPrefix(mt, "audio/") || strings.HasPrefix(mt, "video/")
	case upload.KindVideo:
		return strings.HasPrefix(mt, "video/")
	default:
		return false
	}
}

func sessionResponse(s *session.Session) SessionResponse {
	r := s.Run()
	sound, video := s.Uploads()
	readiness := s.Readiness()
	return SessionResponse{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Uploads: UploadsResponse{
			Sound: uploadResponse(sound),
			Video: uploadResponse(video),
		},
		Progress: view.Progress(readiness, r, sound != nil && video != nil),
		Dialog:   view.Dialog(s.ErrorState()),
		Run:      runResponse(r),
		Segments: view.Segments(r, segmentLink(s.ID)),
	}
}

func uploadResponse(f *upload.File) *UploadResponse {
	if f == nil {
		return nil
	}
	return &UploadResponse{
		Slot:       string(f.Kind),
		Name:       f.Name,
		MediaType:  f.MediaType,
		Size:       f.Size,
		UploadedAt: f.UploadedAt,
	}
}

func runResponse(r *run.Run) RunResponse {
	return RunResponse{
		ID:               r.ID,
		Status:           string(r.Status),
		Progress:         r.Progress,
		Error:            r.Error,
		Duration:         r.Duration,
		DurationFallback: r.DurationFallback,
		SegmentCount:     len(r.Segments),
	}
}

// segmentLink returns the download link of a segment: its public URL when
// published, otherwise the download endpoint.
func segmentLink(sessionID string) view.LinkFunc {
	return func(seg run.Segment) string {
		if seg.URL != "" {
			return seg.URL
		}
		return fmt.Sprintf("/sessions/%s/segments/%d", sessionID, seg.Index)
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
