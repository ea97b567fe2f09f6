package journal

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// Service records history on a best-effort basis: storage failures are
// logged and never surface to the editing flow. A nil *Service records
// nothing.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// StartRun opens a run row for sourcePath and returns it.
func (s *Service) StartRun(ctx context.Context, sourcePath string, size int64) *Run {
	run := &Run{
		ID:         NewID(),
		Filename:   filepath.Base(sourcePath),
		SourcePath: sourcePath,
		SizeBytes:  size,
		Status:     RunStatusRunning,
		Stage:      "CheckingDuplicate",
		StartedAt:  time.Now(),
	}
	if s == nil {
		return run
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		s.logger.Warn("failed to record run start", "run_id", run.ID, "error", err)
	}
	return run
}

// FinishRun stores the terminal state of run.
func (s *Service) FinishRun(ctx context.Context, run *Run) {
	if s == nil || run == nil {
		return
	}
	now := time.Now()
	run.FinishedAt = &now
	if err := s.repo.FinishRun(ctx, run); err != nil {
		s.logger.Warn("failed to record run result", "run_id", run.ID, "error", err)
	}
}

// RecordExport appends an export attempt to the history.
func (s *Service) RecordExport(ctx context.Context, e *Export) {
	if s == nil || e == nil {
		return
	}
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if err := s.repo.CreateExport(ctx, e); err != nil {
		s.logger.Warn("failed to record export", "export_id", e.ID, "error", err)
	}
}

func (s *Service) Runs(ctx context.Context, limit int) ([]*Run, error) {
	return s.repo.ListRuns(ctx, limit)
}

func (s *Service) Exports(ctx context.Context, limit int) ([]*Export, error) {
	return s.repo.ListExports(ctx, limit)
}

// EnsureAuthToken returns the loopback API token, generating and storing one
// on first use.
func (s *Service) EnsureAuthToken(ctx context.Context) (string, error) {
	existing, err := s.repo.GetConfig(ctx, ConfigAuthToken)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)

	if err := s.repo.SetConfig(ctx, ConfigAuthToken, token); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return token, nil
}

// AuthToken returns the stored loopback API token, or "" if none exists.
func (s *Service) AuthToken(ctx context.Context) (string, error) {
	return s.repo.GetConfig(ctx, ConfigAuthToken)
}
