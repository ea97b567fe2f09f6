package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/sportcut/sportcut-agent/internal/cloud"
	"github.com/sportcut/sportcut-agent/internal/config"
	"github.com/sportcut/sportcut-agent/internal/db"
	"github.com/sportcut/sportcut-agent/internal/editor"
	"github.com/sportcut/sportcut-agent/internal/export"
	"github.com/sportcut/sportcut-agent/internal/journal"
	"github.com/sportcut/sportcut-agent/internal/logging"
	"github.com/sportcut/sportcut-agent/internal/metrics"
	"github.com/sportcut/sportcut-agent/internal/pipeline"
	"github.com/sportcut/sportcut-agent/internal/reconcile"
)

// app holds everything the commands share.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	db      *db.DB
	journal *journal.Service
	metrics *metrics.Metrics
	editor  *editor.Editor
	offline bool

	onChange atomic.Pointer[func()]
}

func loadApp(envFile string) (*app, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.DownloadDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel(), cfg.LogFormat())
	logger.Info("starting sportcut agent",
		"version", config.Version,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
		"download_dir", logging.SanitizePath(cfg.DownloadDir()),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		db:      database,
		journal: journal.NewService(journal.NewRepository(database.Conn()), logging.WithComponent(logger, "journal")),
		metrics: metrics.New(),
	}

	var client cloud.Client
	if cfg.ServerURL() != "" {
		client = cloud.NewHTTPClient(cfg.ServerURL(), cfg.ServerToken(), cfg.RequestTimeout(), logging.WithComponent(logger, "cloud"))
		logger.Info("analysis server configured", "url", cfg.ServerURL())
	} else {
		client = cloud.NewStubClient(logging.WithComponent(logger, "cloud"))
		a.offline = true
		logger.Warn("no analysis server configured, running offline with canned highlights")
	}

	var prober pipeline.Prober
	if ff, err := pipeline.NewFFprobe(cfg.FFprobePath(), logger); err != nil {
		logger.Warn("ffprobe unavailable, video duration will come from the player", "error", err)
	} else {
		prober = ff
	}

	a.editor = editor.New(editor.Config{
		Pipeline: pipeline.New(pipeline.Config{
			Client:         client,
			Prober:         prober,
			Recorder:       a.journal,
			Metrics:        a.metrics,
			DuplicateCheck: cfg.DuplicateCheck(),
			SettleDelay:    cfg.SettleDelay(),
			Logger:         logging.WithComponent(logger, "pipeline"),
		}),
		Reconciler: reconcile.New(client, a.metrics, logging.WithComponent(logger, "reconcile")),
		Exporter: export.New(export.Config{
			Client:      client,
			DownloadDir: cfg.DownloadDir(),
			Recorder:    a.journal,
			Metrics:     a.metrics,
			FrameRate:   cfg.FrameRate(),
			Logger:      logging.WithComponent(logger, "export"),
		}),
		Metrics: a.metrics,
		Clock:   editor.SystemClock{},
		Logger:  logging.WithComponent(logger, "editor"),
		OnChange: func() {
			if fn := a.onChange.Load(); fn != nil {
				(*fn)()
			}
		},
	})
	return a, nil
}

// setOnChange installs a listener for editor state changes.
func (a *app) setOnChange(fn func()) {
	a.onChange.Store(&fn)
}

func (a *app) authToken(ctx context.Context) (string, error) {
	token, err := a.journal.EnsureAuthToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to ensure auth token: %w", err)
	}
	return token, nil
}

func (a *app) close() {
	a.editor.Close()
	if a.editor.Dirty() {
		a.logger.Warn("exiting with unsaved highlight changes")
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", "error", err)
	}
}
