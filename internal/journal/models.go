package journal

import (
	"time"

	"github.com/google/uuid"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"

	ExportKindRender = "render"
	ExportKindEDL    = "edl"

	ExportStatusCompleted = "completed"
	ExportStatusFailed    = "failed"

	// ConfigAuthToken is the config key of the loopback API bearer token.
	ConfigAuthToken = "auth_token"
)

// Run is one ingestion attempt for a local video.
type Run struct {
	ID             string     `json:"id"`
	Filename       string     `json:"filename"`
	SourcePath     string     `json:"source_path"`
	SizeBytes      int64      `json:"size_bytes"`
	FileID         string     `json:"file_id,omitempty"`
	Status         string     `json:"status"`
	Stage          string     `json:"stage"`
	Progress       int        `json:"progress"`
	Duplicate      bool       `json:"duplicate"`
	HighlightCount int        `json:"highlight_count"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// Export is one finished or failed export attempt.
type Export struct {
	ID         string    `json:"id"`
	FileID     string    `json:"file_id"`
	Kind       string    `json:"kind"`
	Path       string    `json:"path,omitempty"`
	RangeCount int       `json:"range_count"`
	SizeBytes  int64     `json:"size_bytes"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewID() string {
	return uuid.NewString()
}
