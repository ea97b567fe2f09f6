package api

import (
	"net/http"

	"github.com/sportcut/sportcut-agent/internal/export"
)

func saveHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Editor.Save(r.Context()); err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := cfg.Editor.Export(r.Context())
		if err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := cfg.Editor.ExportEDL(r.Context())
		if err != nil {
			writeDomainError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

func optionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var opts export.Options
		if !decodeJSON(w, r, &opts, false) {
			return
		}
		cfg.Editor.SetOptions(opts)
		WriteJSON(w, http.StatusOK, opts)
	}
}
