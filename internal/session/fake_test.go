package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maauso/video-splitter/internal/engine"
	"github.com/maauso/video-splitter/internal/split"
	"github.com/maauso/video-splitter/internal/storage"
	"github.com/maauso/video-splitter/internal/upload"
)

// fakeEngine keeps its working space in memory. When gate is set, every
// command waits for a value on it before producing output.
type fakeEngine struct {
	mu       sync.Mutex
	initErr  error
	loaded   bool
	closed   bool
	files    map[string][]byte
	history  map[string][]byte
	commands int
	failAt   int
	gate     chan struct{}
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{files: make(map[string][]byte), history: make(map[string][]byte)}
}

func (e *fakeEngine) Initialize(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initErr != nil {
		return e.initErr
	}
	e.loaded = true
	return nil
}

func (e *fakeEngine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

func (e *fakeEngine) StageInput(_ context.Context, name string, data io.Reader) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[name] = b
	e.history[name] = b
	return nil
}

func (e *fakeEngine) Remove(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.files, name)
	return nil
}

func (e *fakeEngine) RunCommand(ctx context.Context, argv []string) error {
	e.mu.Lock()
	e.commands++
	n := e.commands
	gate := e.gate
	e.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if n == e.failAt {
		return &engine.CommandError{Args: argv, Err: fmt.Errorf("exit status 1")}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[argv[len(argv)-1]] = []byte(fmt.Sprintf("segment %d", n))
	return nil
}

func (e *fakeEngine) ReadOutput(_ context.Context, name string) (io.ReadCloser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.files[name]
	if !ok {
		return nil, &engine.OutputMissingError{Name: name}
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (e *fakeEngine) OnProgress(engine.ProgressFunc) {}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *fakeEngine) setGate(ch chan struct{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gate = ch
}

func (e *fakeEngine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// staged returns what was last staged under name, even if it has since
// been removed from the working space.
func (e *fakeEngine) staged(name string) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history[name]
}

// fixedProber reports the same duration for every file.
type fixedProber float64

func (p fixedProber) Duration(context.Context, string) (float64, error) {
	return float64(p), nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStorage(t *testing.T) *storage.LocalStorage {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return store
}

// newTestSession returns a started session whose engine has finished
// initializing.
func newTestSession(t *testing.T, eng *fakeEngine, store storage.Storage, duration float64) *Session {
	t.Helper()
	orch := split.NewOrchestrator(fixedProber(duration), store, quietLogger())
	s := newSession("sess-test", eng, orch, store, quietLogger())
	s.start()
	waitFor(t, func() bool { return s.Readiness() != ReadinessLoading })
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func uploadBoth(t *testing.T, s *Session) {
	t.Helper()
	ctx := context.Background()
	_, err := s.Upload(ctx, upload.KindSound, "track.mp3", "audio/mpeg", strings.NewReader("sound"))
	require.NoError(t, err)
	_, err = s.Upload(ctx, upload.KindVideo, "clip.mp4", "video/mp4", strings.NewReader("video"))
	require.NoError(t, err)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
