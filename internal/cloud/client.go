package cloud

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Client is the analysis server surface used by the agent.
type Client interface {
	CheckDuplicate(ctx context.Context, filename string) (*DuplicateResult, error)
	Upload(ctx context.Context, path string, progress ProgressFunc) (*UploadResult, error)
	GenerateSubtitles(ctx context.Context, fileID string) (*SubtitleResult, error)
	UpdateHighlights(ctx context.Context, fileID string, req UpdateRequest) error
	Export(ctx context.Context, req ExportRequest) (*ExportResponse, error)
}

// StubClient serves offline mode. It never reports duplicates, answers uploads
// with a fixed set of detections and refuses to render exports.
type StubClient struct {
	logger *slog.Logger
}

func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{logger: logger}
}

func (c *StubClient) CheckDuplicate(ctx context.Context, filename string) (*DuplicateResult, error) {
	c.logger.Info("cloud stub: duplicate check requested", "filename", filename)
	return &DuplicateResult{}, nil
}

func (c *StubClient) Upload(ctx context.Context, path string, progress ProgressFunc) (*UploadResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat upload: %w", err)
	}
	if progress != nil {
		progress(info.Size(), info.Size())
	}
	c.logger.Info("cloud stub: upload requested", "path", path, "size_bytes", info.Size())

	return &UploadResult{
		FileID: filepath.Base(path),
		Highlights: HighlightList{
			{ID: "1", Start: 12, End: 24, Type: "goal"},
			{ID: "2", Start: 40, End: 47, Type: "shoot"},
			{ID: "3", Start: 63, End: 70, Type: "foul"},
		},
	}, nil
}

func (c *StubClient) GenerateSubtitles(ctx context.Context, fileID string) (*SubtitleResult, error) {
	c.logger.Info("cloud stub: subtitles requested", "file_id", fileID)
	base := strings.TrimSuffix(fileID, filepath.Ext(fileID))
	return &SubtitleResult{SubtitleFiles: []string{base + ".srt"}}, nil
}

func (c *StubClient) UpdateHighlights(ctx context.Context, fileID string, req UpdateRequest) error {
	c.logger.Info("cloud stub: save requested",
		"file_id", fileID,
		"highlights", len(req.Highlights),
		"custom", len(req.CustomHighlights),
		"deleted", len(req.DeletedHighlightIDs),
	)
	return nil
}

func (c *StubClient) Export(ctx context.Context, req ExportRequest) (*ExportResponse, error) {
	c.logger.Info("cloud stub: export requested", "video_name", req.VideoName, "ranges", len(req.Ranges))
	return nil, &APIError{
		StatusCode: http.StatusServiceUnavailable,
		Message:    "rendering requires the analysis server",
	}
}
