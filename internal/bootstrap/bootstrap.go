// Package bootstrap provides dependency initialization for the video splitter.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/maauso/video-splitter/internal/config"
	"github.com/maauso/video-splitter/internal/engine"
	"github.com/maauso/video-splitter/internal/media"
	"github.com/maauso/video-splitter/internal/session"
	"github.com/maauso/video-splitter/internal/split"
	"github.com/maauso/video-splitter/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Sessions *session.Manager
	Sweeper  *session.Sweeper
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	prober := media.NewFFprobeProber(cfg.FFprobePath)

	orchestrator := split.NewOrchestrator(prober, store, logger,
		split.WithSegmentSec(cfg.SegmentSec),
		split.WithDefaultDurationSec(cfg.DefaultDurationSec),
	)

	// Every session gets a private engine workspace under the temp dir.
	engineRoot := filepath.Join(cfg.TempDir, "engines")
	newEngine := func() engine.Engine {
		return engine.NewFFmpegEngine(engineRoot,
			engine.WithFFmpegPath(cfg.FFmpegPath),
			engine.WithLogger(logger),
		)
	}

	manager := session.NewManager(
		session.NewMemoryRepository(),
		newEngine,
		orchestrator,
		store,
		logger,
		session.WithIdleTimeout(cfg.SessionIdleTimeout),
	)

	sweeper, err := session.NewSweeper(manager, cfg.SweepSchedule, logger)
	if err != nil {
		return nil, fmt.Errorf("create session sweeper: %w", err)
	}

	return &Dependencies{
		Sessions: manager,
		Sweeper:  sweeper,
	}, nil
}

// Start begins background maintenance.
func (d *Dependencies) Start() {
	d.Sweeper.Start()
}

// Close stops background maintenance and ends every session.
func (d *Dependencies) Close(ctx context.Context) {
	d.Sweeper.Stop(ctx)
	d.Sessions.CloseAll(ctx)
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 publication configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
