package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sportcut/sportcut-agent/internal/editor"
	"github.com/sportcut/sportcut-agent/internal/highlight"
	"github.com/sportcut/sportcut-agent/internal/journal"
	"github.com/sportcut/sportcut-agent/internal/metrics"
	"github.com/sportcut/sportcut-agent/internal/playback"
)

const (
	maxBodyBytes     = 1 << 20
	defaultListLimit = 20
	maxListLimit     = 200
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(metrics.RequestMiddleware(cfg.Metrics))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler(func() {
			cfg.Metrics.SetUnsaved(cfg.Editor.Dirty())
		}))
	}

	// Video is served without a token, to loopback clients only.
	r.Group(func(r chi.Router) {
		r.Use(LoopbackGuard())
		r.Get("/playback/video", videoHandler(cfg))
		r.Head("/playback/video", videoHandler(cfg))
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens, cfg.Logger))

		r.Get("/state", stateHandler(cfg))
		r.Post("/videos", selectVideoHandler(cfg))

		r.Post("/selection", toggleSelectionHandler(cfg))
		r.Delete("/highlights/{category}/{id}", deleteDetectedHandler(cfg))
		r.Post("/custom", addCustomHandler(cfg))
		r.Delete("/custom/{id}", deleteCustomHandler(cfg))
		r.Put("/pages/{category}", setPageHandler(cfg))
		r.Put("/active-category", activeCategoryHandler(cfg))

		r.Post("/save", saveHandler(cfg))
		r.Post("/export", exportHandler(cfg))
		r.Post("/export/edl", exportEDLHandler(cfg))
		r.Put("/options", optionsHandler(cfg))

		r.Post("/playback/highlight", playHighlightHandler(cfg))
		r.Post("/playback/seek", seekHandler(cfg))
		r.Post("/playback/skip", skipHandler(cfg))
		r.Post("/playback/pause", pauseHandler(cfg))
		r.Post("/playback/time", reportTimeHandler(cfg))
		r.Post("/playback/duration", reportDurationHandler(cfg))

		r.Get("/runs", listRunsHandler(cfg))
		r.Get("/exports", listExportsHandler(cfg))
	})

	return r
}

// decodeJSON reads a JSON body into v. An empty body is accepted when
// optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	WriteError(w, http.StatusBadRequest, "invalid request body", CodeBadRequest)
	return false
}

// pathParam returns a decoded path segment. chi matches on the raw path only
// when the request carries one, and only then is the value still escaped.
func pathParam(r *http.Request, name string) (string, bool) {
	v := chi.URLParam(r, name)
	if r.URL.RawPath != "" {
		var err error
		if v, err = url.PathUnescape(v); err != nil {
			return "", false
		}
	}
	return v, v != ""
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
			Offline: cfg.Offline,
		})
	}
}

func stateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Editor.Snapshot())
	}
}

func selectVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SelectVideoRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", CodeBadRequest)
			return
		}
		if err := cfg.Editor.SelectFile(req.Path); err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, cfg.Editor.Snapshot().Pipeline)
	}
}

func toggleSelectionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req KeyRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}
		if req.ID == "" {
			WriteError(w, http.StatusBadRequest, "id is required", CodeBadRequest)
			return
		}
		selected, err := cfg.Editor.ToggleSelection(highlight.Key{Category: req.Category, ID: req.ID})
		if err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, SelectionResponse{Selected: selected})
	}
}

func deleteDetectedHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category, ok1 := pathParam(r, "category")
		id, ok2 := pathParam(r, "id")
		if !ok1 || !ok2 {
			WriteError(w, http.StatusBadRequest, "category and id required", CodeBadRequest)
			return
		}
		if err := cfg.Editor.DeleteDetected(highlight.Category(category), highlight.ID(id)); err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addCustomHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddCustomRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}
		iv, err := cfg.Editor.AddCustom(req.Start, req.End, req.Label)
		if err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, editor.ItemView{
			ID:       iv.ID,
			Start:    iv.Start,
			End:      iv.End,
			Category: iv.Category,
			Label:    iv.Label,
			Custom:   true,
		})
	}
}

func deleteCustomHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathParam(r, "id")
		if !ok {
			WriteError(w, http.StatusBadRequest, "id required", CodeBadRequest)
			return
		}
		if err := cfg.Editor.DeleteCustom(highlight.ID(id)); err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func setPageHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		category, ok := pathParam(r, "category")
		if !ok {
			WriteError(w, http.StatusBadRequest, "category required", CodeBadRequest)
			return
		}
		var req PageRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}
		page, err := cfg.Editor.SetPage(highlight.Category(category), req.Page)
		if err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, PageResponse{Category: highlight.Category(category), Page: page})
	}
}

func activeCategoryHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CategoryRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}
		if err := cfg.Editor.SetActiveCategory(req.Category); err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func playHighlightHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req KeyRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}
		if err := cfg.Editor.PlayHighlight(highlight.Key{Category: req.Category, ID: req.ID}); err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, cfg.Editor.Snapshot().Playback)
	}
}

func seekHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SeekRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}
		if err := cfg.Editor.Seek(req.Time); err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, cfg.Editor.Snapshot().Playback)
	}
}

func skipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SkipRequest
		if !decodeJSON(w, r, &req, true) {
			return
		}
		delta := playback.DefaultSkip
		if req.Delta != nil {
			delta = *req.Delta
		}
		WriteJSON(w, http.StatusOK, PositionResponse{Position: cfg.Editor.Skip(delta)})
	}
}

func pauseHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Editor.Pause()
		w.WriteHeader(http.StatusNoContent)
	}
}

func reportTimeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SeekRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}
		cfg.Editor.ReportTime(req.Time)
		WriteJSON(w, http.StatusOK, cfg.Editor.Snapshot().Playback)
	}
}

func reportDurationHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DurationRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}
		cfg.Editor.ReportDuration(req.Duration)
		w.WriteHeader(http.StatusNoContent)
	}
}

func videoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := cfg.Editor.Session()
		if sess == nil || sess.SourcePath == "" {
			WriteError(w, http.StatusNotFound, "no video loaded", CodeNotFound)
			return
		}
		if err := cfg.Video.ServeVideo(w, r, sess.SourcePath); err != nil {
			cfg.Logger.Error("failed to serve video", "file_id", sess.FileID, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to read video", CodeInternal)
		}
	}
}

func listLimit(r *http.Request) (int, bool) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return min(n, maxListLimit), true
}

func listRunsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := listLimit(r)
		if !ok {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer", CodeBadRequest)
			return
		}
		resp := RunsResponse{Runs: []*journal.Run{}}
		if cfg.Journal != nil {
			runs, err := cfg.Journal.Runs(r.Context(), limit)
			if err != nil {
				cfg.Logger.Error("failed to list runs", "error", err)
				WriteError(w, http.StatusInternalServerError, "failed to list runs", CodeInternal)
				return
			}
			if runs != nil {
				resp.Runs = runs
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func listExportsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := listLimit(r)
		if !ok {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer", CodeBadRequest)
			return
		}
		resp := ExportsResponse{Exports: []*journal.Export{}}
		if cfg.Journal != nil {
			exports, err := cfg.Journal.Exports(r.Context(), limit)
			if err != nil {
				cfg.Logger.Error("failed to list exports", "error", err)
				WriteError(w, http.StatusInternalServerError, "failed to list exports", CodeInternal)
				return
			}
			if exports != nil {
				resp.Exports = exports
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
