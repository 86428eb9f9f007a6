// Package session ties together everything one client works with: a
// private engine instance, the two upload slots, the error dialog state and
// the current split run. Sessions live in memory and end on explicit
// deletion or idle expiry, releasing every file they own.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/maauso/video-splitter/internal/engine"
	"github.com/maauso/video-splitter/internal/run"
	"github.com/maauso/video-splitter/internal/split"
	"github.com/maauso/video-splitter/internal/storage"
	"github.com/maauso/video-splitter/internal/upload"
)

// Readiness is the engine lifecycle as seen by a session.
type Readiness string

const (
	// ReadinessLoading means engine initialization has not finished.
	ReadinessLoading Readiness = "loading"
	// ReadinessReady means the engine accepts work.
	ReadinessReady Readiness = "ready"
	// ReadinessFailed means engine initialization failed. It is terminal.
	ReadinessFailed Readiness = "failed"
)

// ErrorState is the single active error of a session.
type ErrorState struct {
	Visible bool
	Message string
	Code    string
}

// Session is one client's workspace.
type Session struct {
	ID        string
	CreatedAt time.Time

	engine       engine.Engine
	orchestrator *split.Orchestrator
	store        storage.Storage
	logger       *slog.Logger
	uploads      *upload.Slots
	hub          *Hub

	// ctx bounds the session's background work. It is cancelled on Close
	// only; requests that trigger work never cancel it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.RWMutex
	readiness  Readiness
	errState   ErrorState
	current    *run.Run
	garbage    []string
	lastAccess time.Time
	closed     bool
}

func newSession(id string, eng engine.Engine, orch *split.Orchestrator, store storage.Storage, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	return &Session{
		ID:           id,
		CreatedAt:    now,
		engine:       eng,
		orchestrator: orch,
		store:        store,
		logger:       logger.With(slog.String("session_id", id)),
		uploads:      upload.NewSlots(),
		hub:          NewHub(),
		ctx:          ctx,
		cancel:       cancel,
		readiness:    ReadinessLoading,
		current:      run.New(),
		lastAccess:   now,
	}
}

// start begins engine initialization in the background.
func (s *Session) start() {
	s.wg.Add(1)
	go s.initEngine()
}

// initEngine initializes the engine and records the outcome. A load failure
// is reported once through the error state and never retried.
func (s *Session) initEngine() {
	defer s.wg.Done()

	err := s.engine.Initialize(s.ctx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.readiness = ReadinessFailed
		s.setErrorLocked(err)
	} else {
		s.readiness = ReadinessReady
	}
	readiness := s.readiness
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("engine initialization failed", slog.String("error", err.Error()))
		s.publishError(err)
	} else {
		s.logger.Debug("engine ready")
	}
	s.hub.Publish(Event{Type: EventEngine, Readiness: readiness})
}

// Readiness returns the engine lifecycle state.
func (s *Session) Readiness() Readiness {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readiness
}

// Upload stores data and puts it into the slot for kind. The file it
// replaces is released once no run can be reading it.
func (s *Session) Upload(ctx context.Context, kind upload.Kind, name, mediaType string, data io.Reader) (upload.File, error) {
	if s.isClosed() {
		return upload.File{}, ErrSessionClosed
	}

	obj, err := s.store.SaveTemp(ctx, string(kind), data)
	if err != nil {
		return upload.File{}, fmt.Errorf("store upload: %w", err)
	}

	f := upload.File{
		Kind:       kind,
		Name:       name,
		MediaType:  mediaType,
		Path:       obj.Path,
		Size:       obj.Size,
		UploadedAt: time.Now(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = s.store.CleanupTemp(context.WithoutCancel(ctx), []string{obj.Path})
		return upload.File{}, ErrSessionClosed
	}
	prev, had := s.uploads.Set(f)
	var release []string
	if had {
		release = s.discardLocked(prev.Path)
	}
	s.mu.Unlock()

	s.release(ctx, release)
	s.logger.Info("file uploaded",
		slog.String("slot", string(kind)),
		slog.String("name", name),
		slog.Int64("size", f.Size),
	)
	return f, nil
}

// ResetUpload empties the slot for kind. A running split keeps the files it
// started with.
func (s *Session) ResetUpload(ctx context.Context, kind upload.Kind) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	prev, had := s.uploads.Reset(kind)
	var release []string
	if had {
		release = s.discardLocked(prev.Path)
	}
	s.mu.Unlock()

	s.release(ctx, release)
	return nil
}

// Uploads returns copies of the sound and video slots; nil means empty.
func (s *Session) Uploads() (sound, video *upload.File) {
	return s.uploads.Get(upload.KindSound), s.uploads.Get(upload.KindVideo)
}

// Split starts a new run in the background and returns a snapshot of it.
// Precondition failures are surfaced through the error state and leave the
// current run untouched. The prior run's segments are discarded before the
// new run publishes anything.
func (s *Session) Split(ctx context.Context) (*run.Run, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.current.GetStatus() == run.StatusRunning {
		s.mu.Unlock()
		return nil, ErrRunInProgress
	}

	sound, video := s.Uploads()
	if err := s.orchestrator.Validate(s.readiness == ReadinessReady, sound, video); err != nil {
		s.setErrorLocked(err)
		s.mu.Unlock()
		s.publishError(err)
		return nil, err
	}

	release := append(s.current.SegmentPaths(), s.garbage...)
	s.garbage = nil

	r := run.New(run.WithNotifier(func(ev run.Event) {
		s.hub.Publish(runEvent(ev))
	}))
	s.current = r
	if err := r.Start(); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("start run: %w", err)
	}

	s.wg.Add(1)
	go s.process(r, *sound, *video)
	s.mu.Unlock()

	s.release(ctx, release)
	s.logger.Info("split started", slog.String("run_id", r.ID))
	return r.Clone(), nil
}

func (s *Session) process(r *run.Run, sound, video upload.File) {
	defer s.wg.Done()

	if err := s.orchestrator.Process(s.ctx, s.engine, r, sound, video, s.ID); err != nil {
		if s.isClosed() {
			return
		}
		s.setError(err)
	}
}

// Run returns a snapshot of the current run.
func (s *Session) Run() *run.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// OpenSegment opens the stored content of a segment of the current run.
func (s *Session) OpenSegment(ctx context.Context, index int) (run.Segment, io.ReadCloser, error) {
	s.mu.RLock()
	closed := s.closed
	seg, ok := s.current.Segment(index)
	s.mu.RUnlock()

	if closed {
		return run.Segment{}, nil, ErrSessionClosed
	}
	if !ok {
		return run.Segment{}, nil, fmt.Errorf("%w: %d", ErrSegmentNotFound, index)
	}
	rc, err := s.store.LoadTemp(ctx, seg.Path)
	if err != nil {
		return run.Segment{}, nil, fmt.Errorf("open segment %d: %w", index, err)
	}
	return seg, rc, nil
}

// ErrorState returns the current error state.
func (s *Session) ErrorState() ErrorState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errState
}

// DismissError hides the error dialog.
func (s *Session) DismissError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errState = ErrorState{}
}

// Subscribe registers for session events.
func (s *Session) Subscribe() (<-chan Event, func()) {
	return s.hub.Subscribe()
}

// Touch records client activity.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAccess = time.Now()
}

// LastAccess returns the time of the last client activity.
func (s *Session) LastAccess() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccess
}

// Busy reports whether a split is running.
func (s *Session) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.GetStatus() == run.StatusRunning
}

// CloseEvents ends every event subscription. Later subscriptions receive
// a closed channel. The session itself stays usable.
func (s *Session) CloseEvents() {
	s.hub.Close()
}

// Close ends the session: background work is cancelled and awaited, the
// engine is torn down and every upload and segment file is released.
// Close is idempotent.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.hub.Close()

	s.mu.RLock()
	release := append(s.uploads.Paths(), s.current.SegmentPaths()...)
	release = append(release, s.garbage...)
	s.mu.RUnlock()

	var errs []error
	if err := s.engine.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close engine: %w", err))
	}
	if err := s.store.CleanupTemp(context.WithoutCancel(ctx), release); err != nil {
		errs = append(errs, fmt.Errorf("release files: %w", err))
	}
	s.logger.Info("session closed", slog.Int("released_files", len(release)))
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// discardLocked returns path when it can be released now, or defers it
// until no run can be reading it. s.mu must be held.
func (s *Session) discardLocked(path string) []string {
	if s.current.GetStatus() == run.StatusRunning {
		s.garbage = append(s.garbage, path)
		return nil
	}
	return []string{path}
}

func (s *Session) release(ctx context.Context, paths []string) {
	if len(paths) == 0 {
		return
	}
	if err := s.store.CleanupTemp(context.WithoutCancel(ctx), paths); err != nil {
		s.logger.Warn("failed to release files", slog.String("error", err.Error()))
	}
}

func (s *Session) setError(err error) {
	s.mu.Lock()
	s.setErrorLocked(err)
	s.mu.Unlock()
	s.publishError(err)
}

func (s *Session) setErrorLocked(err error) {
	code, msg := Describe(err)
	s.errState = ErrorState{Visible: true, Message: msg, Code: code}
}

func (s *Session) publishError(err error) {
	code, msg := Describe(err)
	s.hub.Publish(Event{Type: EventError, Error: &ErrorState{Visible: true, Message: msg, Code: code}})
}
