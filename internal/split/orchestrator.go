// Package split turns a sound file and a video file into an ordered list of
// fixed-length segments whose audio track is the sound file.
//
// Segments are produced strictly one after another against a single engine
// instance; each is published on the run as soon as it is stored.
package split

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/maauso/video-splitter/internal/engine"
	"github.com/maauso/video-splitter/internal/media"
	"github.com/maauso/video-splitter/internal/run"
	"github.com/maauso/video-splitter/internal/storage"
	"github.com/maauso/video-splitter/internal/upload"
)

const (
	// DefaultSegmentSec is the maximum segment length.
	DefaultSegmentSec = 60
	// DefaultDurationSec is used when the video duration cannot be probed.
	DefaultDurationSec = 300
)

var outputNameRe = regexp.MustCompile(`^segment_\d+\.mp4$`)

// Orchestrator drives the per-segment engine pipeline.
type Orchestrator struct {
	prober          media.Prober
	store           storage.Storage
	logger          *slog.Logger
	segmentSec      float64
	defaultDuration float64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSegmentSec sets the maximum segment length in seconds.
func WithSegmentSec(sec int) Option {
	return func(o *Orchestrator) {
		if sec > 0 {
			o.segmentSec = float64(sec)
		}
	}
}

// WithDefaultDurationSec sets the duration used when probing fails.
func WithDefaultDurationSec(sec int) Option {
	return func(o *Orchestrator) {
		if sec > 0 {
			o.defaultDuration = float64(sec)
		}
	}
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(prober media.Prober, store storage.Storage, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		prober:          prober,
		store:           store,
		logger:          logger,
		segmentSec:      DefaultSegmentSec,
		defaultDuration: DefaultDurationSec,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Validate checks the preconditions of a split. It never mutates state.
func (o *Orchestrator) Validate(engineReady bool, sound, video *upload.File) error {
	if sound == nil || video == nil {
		return ErrMissingInput
	}
	if !engineReady {
		return ErrEngineNotReady
	}
	return nil
}

// Process runs the pipeline for a started run: stage both inputs, probe the
// video duration, then produce each segment in order. The first failing
// segment fails the run and stops processing; segments already produced
// stay on the run. keyPrefix namespaces published segments.
//
// eng must not be used by anything else while Process runs.
func (o *Orchestrator) Process(ctx context.Context, eng engine.Engine, r *run.Run, sound, video upload.File, keyPrefix string) error {
	logger := o.logger.With(slog.String("run_id", r.ID))

	soundName, videoName := stagingNames(sound.Name, video.Name)
	defer o.unstage(ctx, eng, logger, soundName, videoName)
	if err := o.stage(ctx, eng, soundName, sound.Path); err != nil {
		return o.fail(r, fmt.Errorf("%w: %w", ErrStagingFailed, err), "Failed to prepare the uploaded files")
	}
	if err := o.stage(ctx, eng, videoName, video.Path); err != nil {
		return o.fail(r, fmt.Errorf("%w: %w", ErrStagingFailed, err), "Failed to prepare the uploaded files")
	}

	total, fallback := o.duration(ctx, video.Path, logger)
	r.SetDuration(total, fallback)

	windows, err := Plan(total, o.segmentSec)
	if err != nil {
		return o.fail(r, err, "Failed to plan video segments")
	}

	logger.Info("splitting video",
		slog.String("video", videoName),
		slog.String("sound", soundName),
		slog.Float64("duration", total),
		slog.Bool("duration_fallback", fallback),
		slog.Int("segments", len(windows)),
	)

	current := 0
	eng.OnProgress(func(fraction float64) {
		r.UpdateProgress(percent(current, fraction, len(windows)))
	})
	defer eng.OnProgress(nil)

	for i, w := range windows {
		current = i
		seg, err := o.produce(ctx, eng, w, videoName, soundName, keyPrefix, logger)
		if err == nil {
			err = r.AppendSegment(seg)
			if err != nil {
				_ = o.store.CleanupTemp(context.WithoutCancel(ctx), []string{seg.Path})
			}
		}
		if err != nil {
			segErr := &SegmentProcessingError{Index: w.Index, Err: err}
			return o.fail(r, segErr, segErr.Message())
		}

		r.UpdateProgress(percent(i+1, 0, len(windows)))
		logger.Debug("segment ready",
			slog.Int("index", w.Index),
			slog.Float64("start", w.Start),
			slog.Float64("end", w.End),
			slog.Int64("size", seg.Size),
		)
	}

	if err := r.Complete(); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	logger.Info("split completed", slog.Int("segments", len(windows)))
	return nil
}

// stage copies a stored upload into the engine under name.
func (o *Orchestrator) stage(ctx context.Context, eng engine.Engine, name, storedPath string) error {
	rc, err := o.store.LoadTemp(ctx, storedPath)
	if err != nil {
		return &engine.StagingError{Name: name, Err: err}
	}
	defer func() { _ = rc.Close() }()
	return eng.StageInput(ctx, name, rc)
}

// unstage removes staged inputs from the engine once the run is over.
func (o *Orchestrator) unstage(ctx context.Context, eng engine.Engine, logger *slog.Logger, names ...string) {
	ctx = context.WithoutCancel(ctx)
	for _, name := range names {
		if err := eng.Remove(ctx, name); err != nil {
			logger.Warn("failed to remove staged input",
				slog.String("name", name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// duration probes the video and falls back to the default duration when
// probing fails.
func (o *Orchestrator) duration(ctx context.Context, videoPath string, logger *slog.Logger) (float64, bool) {
	d, err := o.prober.Duration(ctx, videoPath)
	if err == nil && validSeconds(d) {
		return d, false
	}
	if err == nil {
		err = fmt.Errorf("%w: got %g", media.ErrInvalidDuration, d)
	}
	logger.Warn("duration probe failed, using default duration",
		slog.Float64("default_duration", o.defaultDuration),
		slog.String("error", err.Error()),
	)
	return o.defaultDuration, true
}

// produce runs the engine for one window, reads the output back and stores
// it as a downloadable segment.
func (o *Orchestrator) produce(ctx context.Context, eng engine.Engine, w Window, videoName, soundName, keyPrefix string, logger *slog.Logger) (run.Segment, error) {
	name := run.FileName(w.Index)

	if err := eng.RunCommand(ctx, segmentArgs(videoName, soundName, name, w)); err != nil {
		return run.Segment{}, err
	}

	rc, err := eng.ReadOutput(ctx, name)
	if err != nil {
		return run.Segment{}, err
	}
	obj, err := o.store.SaveTemp(ctx, name, rc)
	_ = rc.Close()
	if rmErr := eng.Remove(context.WithoutCancel(ctx), name); rmErr != nil {
		logger.Warn("failed to remove engine output",
			slog.String("name", name),
			slog.String("error", rmErr.Error()),
		)
	}
	if err != nil {
		return run.Segment{}, fmt.Errorf("store segment: %w", err)
	}

	seg := run.Segment{
		Index:     w.Index,
		FileName:  name,
		Start:     w.Start,
		End:       w.End,
		MediaType: run.SegmentMediaType,
		Path:      obj.Path,
		Size:      obj.Size,
	}

	if o.store.CanPublish() {
		url, err := o.publish(ctx, obj.Path, path.Join(keyPrefix, name))
		if err != nil {
			logger.Warn("segment publication failed, serving local copy",
				slog.Int("index", w.Index),
				slog.String("error", err.Error()),
			)
		} else {
			seg.URL = url
		}
	}

	return seg, nil
}

func (o *Orchestrator) publish(ctx context.Context, storedPath, key string) (string, error) {
	rc, err := o.store.LoadTemp(ctx, storedPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()
	return o.store.Publish(ctx, key, run.SegmentMediaType, rc)
}

// fail marks the run failed with msg and returns err.
func (o *Orchestrator) fail(r *run.Run, err error, msg string) error {
	if ferr := r.Fail(msg); ferr != nil {
		return errors.Join(err, ferr)
	}
	o.logger.Error("split failed",
		slog.String("run_id", r.ID),
		slog.String("error", err.Error()),
	)
	return err
}

// segmentArgs builds the engine command for one window: video from the
// first input, audio from the second, trimmed to the window and truncated
// to the shorter stream. Inputs carry the file: protocol so names
// containing a colon are never read as another protocol.
func segmentArgs(videoName, soundName, output string, w Window) []string {
	return []string{
		"-i", "file:" + videoName,
		"-i", "file:" + soundName,
		"-map", "0:v",
		"-map", "1:a",
		"-ss", formatSeconds(w.Start),
		"-to", formatSeconds(w.End),
		"-c:v", "libx264",
		"-c:a", "aac",
		"-b:a", "128k",
		"-shortest",
		output,
	}
}

// stagingNames returns the names the inputs are staged under: their base
// names, with a prefix when they would collide with each other or with a
// segment output.
func stagingNames(sound, video string) (string, string) {
	soundName := baseName(sound, "sound")
	videoName := baseName(video, "video")
	if outputNameRe.MatchString(videoName) {
		videoName = "video_" + videoName
	}
	if soundName == videoName || outputNameRe.MatchString(soundName) {
		soundName = "sound_" + soundName
	}
	return soundName, videoName
}

func baseName(name, fallback string) string {
	b := filepath.Base(name)
	if b == "." || b == ".." || b == string(filepath.Separator) || b == "" {
		return fallback
	}
	return b
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

// percent maps segment-level progress onto the run. It stays below 100
// until the run completes.
func percent(done int, fraction float64, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Floor(100 * (float64(done) + fraction) / float64(total)))
	if p > 99 {
		p = 99
	}
	return p
}
