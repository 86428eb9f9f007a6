package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// Compile-time check that FFmpegEngine implements Engine.
var _ Engine = (*FFmpegEngine)(nil)

const (
	// maxLogLine bounds a single ffmpeg log line. Longer lines (ffmpeg echoes
	// input metadata verbatim) stop line parsing; the rest of the log is
	// drained unparsed.
	maxLogLine = 1 << 20
	// maxStderrCapture bounds the log tail kept for CommandError.
	maxStderrCapture = 64 << 10
)

// FFmpegEngine implements Engine with the ffmpeg CLI. Its working space is
// a private directory created under root by Initialize; commands run with
// that directory as their working directory, so argv refers to staged
// inputs and outputs by bare name.
type FFmpegEngine struct {
	ffmpegPath string
	root       string
	logger     *slog.Logger

	mu       sync.Mutex
	workDir  string
	loaded   bool
	closed   bool
	progress ProgressFunc

	inFlight atomic.Bool
}

// Option configures an FFmpegEngine.
type Option func(*FFmpegEngine)

// WithFFmpegPath sets the ffmpeg binary. Defaults to "ffmpeg" (found via PATH).
func WithFFmpegPath(path string) Option {
	return func(e *FFmpegEngine) {
		if path != "" {
			e.ffmpegPath = path
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *FFmpegEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewFFmpegEngine creates an uninitialized engine whose working space will
// live under root. If root is empty, os.TempDir() is used.
func NewFFmpegEngine(root string, opts ...Option) *FFmpegEngine {
	if root == "" {
		root = os.TempDir()
	}
	e := &FFmpegEngine{
		ffmpegPath: "ffmpeg",
		root:       root,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize resolves and executes the ffmpeg binary once and creates the
// working space.
func (e *FFmpegEngine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.loaded {
		return nil
	}

	path, err := exec.LookPath(e.ffmpegPath)
	if err != nil {
		return &LoadError{Path: e.ffmpegPath, Err: err}
	}

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, path, "-hide_banner", "-version")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return &LoadError{Path: path, Err: fmt.Errorf("%w: %s", err, stderr.String())}
	}

	if err := os.MkdirAll(e.root, 0750); err != nil {
		return &LoadError{Path: path, Err: fmt.Errorf("create engine root: %w", err)}
	}
	workDir, err := os.MkdirTemp(e.root, "engine-*")
	if err != nil {
		return &LoadError{Path: path, Err: fmt.Errorf("create working space: %w", err)}
	}

	e.ffmpegPath = path
	e.workDir = workDir
	e.loaded = true

	e.logger.Debug("engine initialized",
		slog.String("ffmpeg", path),
		slog.String("work_dir", workDir),
	)
	return nil
}

// Loaded reports whether the engine is ready for use.
func (e *FFmpegEngine) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded && !e.closed
}

// WorkDir returns the working space directory, or "" before Initialize.
func (e *FFmpegEngine) WorkDir() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.workDir
}

// StageInput copies data into the working space under name.
func (e *FFmpegEngine) StageInput(ctx context.Context, name string, data io.Reader) error {
	dir, err := e.ready()
	if err != nil {
		return err
	}
	if err := validName(name); err != nil {
		return &StagingError{Name: name, Err: err}
	}

	select {
	case <-ctx.Done():
		return &StagingError{Name: name, Err: ctx.Err()}
	default:
	}

	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return &StagingError{Name: name, Err: err}
	}
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		return &StagingError{Name: name, Err: err}
	}
	if err := f.Close(); err != nil {
		return &StagingError{Name: name, Err: err}
	}
	return nil
}

// RunCommand executes ffmpeg with argv inside the working space. Progress
// parsed from ffmpeg's log is forwarded to the registered listener.
func (e *FFmpegEngine) RunCommand(ctx context.Context, argv []string) error {
	dir, err := e.ready()
	if err != nil {
		return err
	}

	if !e.inFlight.CompareAndSwap(false, true) {
		return ErrCommandInFlight
	}
	defer e.inFlight.Store(false)

	e.mu.Lock()
	onProgress := e.progress
	e.mu.Unlock()

	args := append([]string{"-hide_banner", "-nostdin", "-y"}, argv...)

	// #nosec G204 - ffmpegPath is set by the application, argv by the pipeline
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	cmd.Dir = dir

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return &CommandError{Args: argv, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return &CommandError{Args: argv, Err: err}
	}

	var stderr []byte
	tracker := newProgressTracker(argv)
	scanner := bufio.NewScanner(stderrPipe)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLogLine)
	scanner.Split(scanLogLines)
	for scanner.Scan() {
		line := scanner.Text()
		stderr = appendTail(stderr, line)
		if fraction, ok := tracker.observe(line); ok && onProgress != nil {
			onProgress(fraction)
		}
	}
	if err := scanner.Err(); err != nil {
		e.logger.Warn("ffmpeg log unreadable, discarding the rest",
			slog.String("error", err.Error()),
		)
		// ffmpeg blocks on a full pipe; keep reading until it exits.
		_, _ = io.Copy(io.Discard, stderrPipe)
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &CommandError{
			Args:   argv,
			Stderr: string(stderr),
			Err:    err,
		}
	}

	if onProgress != nil {
		onProgress(1)
	}
	return nil
}

// ReadOutput opens a produced file from the working space.
func (e *FFmpegEngine) ReadOutput(_ context.Context, name string) (io.ReadCloser, error) {
	dir, err := e.ready()
	if err != nil {
		return nil, err
	}
	if err := validName(name); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(dir, name)) // #nosec G304 - name is validated as a bare file name
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &OutputMissingError{Name: name}
		}
		return nil, fmt.Errorf("open output %q: %w", name, err)
	}
	return f, nil
}

// Remove deletes name from the working space.
func (e *FFmpegEngine) Remove(_ context.Context, name string) error {
	dir, err := e.ready()
	if err != nil {
		return err
	}
	if err := validName(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %q: %w", name, err)
	}
	return nil
}

// OnProgress registers the progress listener.
func (e *FFmpegEngine) OnProgress(fn ProgressFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progress = fn
}

// Close removes the working space.
func (e *FFmpegEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	e.progress = nil

	if e.workDir == "" {
		return nil
	}
	if err := os.RemoveAll(e.workDir); err != nil {
		return fmt.Errorf("remove working space: %w", err)
	}
	return nil
}

// ready returns the working directory when the engine can accept work.
func (e *FFmpegEngine) ready() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return "", ErrClosed
	}
	if !e.loaded {
		return "", ErrNotInitialized
	}
	return e.workDir, nil
}

// appendTail appends line to buf, keeping at most maxStderrCapture bytes
// from the end.
func appendTail(buf []byte, line string) []byte {
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if over := len(buf) - maxStderrCapture; over > 0 {
		buf = append(buf[:0], buf[over:]...)
	}
	return buf
}

// validName accepts plain file names only.
func validName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
