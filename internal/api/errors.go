package api

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/sportcut/sportcut-agent/internal/cloud"
	"github.com/sportcut/sportcut-agent/internal/editor"
	"github.com/sportcut/sportcut-agent/internal/export"
	"github.com/sportcut/sportcut-agent/internal/highlight"
	"github.com/sportcut/sportcut-agent/internal/pipeline"
	"github.com/sportcut/sportcut-agent/internal/playback"
	"github.com/sportcut/sportcut-agent/internal/reconcile"
)

// writeDomainError maps an editor error to a status and error code.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		rejected *export.RejectedError
		apiErr   *cloud.APIError
	)
	switch {
	case errors.Is(err, highlight.ErrInvalidInterval):
		WriteError(w, http.StatusBadRequest, err.Error(), CodeInvalidInterval)
	case errors.Is(err, pipeline.ErrUnsupportedFileType):
		WriteError(w, http.StatusBadRequest, err.Error(), CodeUnsupportedType)
	case errors.Is(err, pipeline.ErrFileTooLarge):
		WriteError(w, http.StatusBadRequest, err.Error(), CodeFileTooLarge)
	case errors.Is(err, pipeline.ErrEmptyFile):
		WriteError(w, http.StatusBadRequest, err.Error(), CodeBadRequest)
	case errors.Is(err, export.ErrEmptySelection):
		WriteError(w, http.StatusBadRequest, err.Error(), CodeEmptySelection)
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, highlight.ErrUnknownHighlight),
		errors.Is(err, editor.ErrUnknownCategory),
		errors.Is(err, playback.ErrNoMedia):
		WriteError(w, http.StatusNotFound, err.Error(), CodeNotFound)
	case errors.Is(err, reconcile.ErrMissingFileIdentifier),
		errors.Is(err, export.ErrMissingFileIdentifier):
		WriteError(w, http.StatusConflict, err.Error(), CodeMissingFileID)
	case errors.Is(err, pipeline.ErrBusy),
		errors.Is(err, reconcile.ErrBusy),
		errors.Is(err, export.ErrBusy):
		WriteError(w, http.StatusConflict, err.Error(), CodeBusy)
	case errors.Is(err, highlight.ErrDuplicateID):
		WriteError(w, http.StatusConflict, err.Error(), CodeConflict)
	case errors.Is(err, cloud.ErrNetwork):
		WriteError(w, http.StatusBadGateway, "analysis server unreachable", CodeNetwork)
	case errors.As(err, &rejected):
		WriteError(w, http.StatusBadGateway, rejected.Message, CodeExportFailed)
	case errors.Is(err, export.ErrExportFailed):
		WriteError(w, http.StatusBadGateway, "export failed", CodeExportFailed)
	case errors.As(err, &apiErr):
		WriteError(w, http.StatusBadGateway, apiErr.Error(), CodeServerError)
	default:
		logger.Error("request failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal server error", CodeInternal)
	}
}
