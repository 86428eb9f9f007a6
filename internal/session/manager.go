package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maauso/video-splitter/internal/engine"
	"github.com/maauso/video-splitter/internal/id"
	"github.com/maauso/video-splitter/internal/split"
	"github.com/maauso/video-splitter/internal/storage"
)

// EngineFactory creates the private engine of a new session.
type EngineFactory func() engine.Engine

// DefaultIdleTimeout is how long a session may go without client activity
// before it is swept.
const DefaultIdleTimeout = time.Hour

// Manager creates, finds and ends sessions.
type Manager struct {
	repo         Repository
	newEngine    EngineFactory
	orchestrator *split.Orchestrator
	store        storage.Storage
	logger       *slog.Logger
	idleTimeout  time.Duration
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithIdleTimeout sets how long an inactive session is kept.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

// NewManager creates a new Manager.
func NewManager(repo Repository, newEngine EngineFactory, orch *split.Orchestrator, store storage.Storage, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		repo:         repo,
		newEngine:    newEngine,
		orchestrator: orch,
		store:        store,
		logger:       logger,
		idleTimeout:  DefaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create starts a new session. Its engine initializes in the background.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	s := newSession(id.Generate("sess"), m.newEngine(), m.orchestrator, m.store, m.logger)
	if err := m.repo.Save(ctx, s); err != nil {
		_ = s.Close(ctx)
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.start()

	m.logger.Info("session created", slog.String("session_id", s.ID))
	return s, nil
}

// Get returns the session and records client activity on it.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Session, error) {
	s, err := m.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.Touch()
	return s, nil
}

// End removes the session and releases its resources.
func (m *Manager) End(ctx context.Context, sessionID string) error {
	s, err := m.repo.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := m.repo.Delete(ctx, sessionID); err != nil {
		return err
	}
	return s.Close(ctx)
}

// SweepIdle ends sessions idle for longer than the idle timeout. Sessions
// with a running split are kept. It returns the number of sessions ended.
func (m *Manager) SweepIdle(ctx context.Context, now time.Time) (int, error) {
	sessions, err := m.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	ended := 0
	for _, s := range sessions {
		if s.Busy() || now.Sub(s.LastAccess()) < m.idleTimeout {
			continue
		}
		if err := m.End(ctx, s.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
			m.logger.Warn("failed to end idle session",
				slog.String("session_id", s.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		ended++
	}
	return ended, nil
}

// CloseAll ends every session.
func (m *Manager) CloseAll(ctx context.Context) {
	sessions, err := m.repo.List(ctx)
	if err != nil {
		m.logger.Error("failed to list sessions", slog.String("error", err.Error()))
		return
	}
	for _, s := range sessions {
		if err := m.End(ctx, s.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
			m.logger.Warn("failed to end session",
				slog.String("session_id", s.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// CloseEvents ends the event streams of every session. It is meant to run
// when the HTTP server shuts down, so open streams do not hold it up.
func (m *Manager) CloseEvents() {
	sessions, err := m.repo.List(context.Background())
	if err != nil {
		m.logger.Error("failed to list sessions", slog.String("error", err.Error()))
		return
	}
	for _, s := range sessions {
		s.CloseEvents()
	}
}
