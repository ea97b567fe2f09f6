package api

import (
	"github.com/sportcut/sportcut-agent/internal/highlight"
	"github.com/sportcut/sportcut-agent/internal/journal"
)

const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeInternal        = "INTERNAL_ERROR"
	CodeInvalidInterval = "INVALID_INTERVAL"
	CodeUnsupportedType = "UNSUPPORTED_FILE_TYPE"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeEmptySelection  = "EMPTY_SELECTION"
	CodeMissingFileID   = "MISSING_FILE_ID"
	CodeBusy            = "BUSY"
	CodeConflict        = "CONFLICT"
	CodeNetwork         = "NETWORK_ERROR"
	CodeExportFailed    = "EXPORT_FAILED"
	CodeServerError     = "SERVER_ERROR"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
	Offline bool   `json:"offline"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type SelectVideoRequest struct {
	Path string `json:"path"`
}

type KeyRequest struct {
	Category highlight.Category `json:"category,omitempty"`
	ID       highlight.ID       `json:"id"`
}

type SelectionResponse struct {
	Selected bool `json:"selected"`
}

type AddCustomRequest struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Label string  `json:"label"`
}

type PageRequest struct {
	Page int `json:"page"`
}

type PageResponse struct {
	Category highlight.Category `json:"category"`
	Page     int                `json:"page"`
}

type CategoryRequest struct {
	Category highlight.Category `json:"category"`
}

type SeekRequest struct {
	Time float64 `json:"time"`
}

type SkipRequest struct {
	// Delta defaults to a forward skip when omitted.
	Delta *float64 `json:"delta,omitempty"`
}

type PositionResponse struct {
	Position float64 `json:"position"`
}

type DurationRequest struct {
	Duration float64 `json:"duration"`
}

type RunsResponse struct {
	Runs []*journal.Run `json:"runs"`
}

type ExportsResponse struct {
	Exports []*journal.Export `json:"exports"`
}
