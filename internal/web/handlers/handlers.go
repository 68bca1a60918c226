// Package handlers provides the JSON handlers of the HTTP API
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"ariadm/internal/aria2"
	"ariadm/internal/database"
	"ariadm/internal/downloader"
)

// Handlers contains all HTTP handlers and their dependencies
type Handlers struct {
	db         *database.DB
	plugins    *database.PluginsDB
	supervisor *downloader.Supervisor
	logger     *slog.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(db *database.DB, plugins *database.PluginsDB, supervisor *downloader.Supervisor) *Handlers {
	return &Handlers{
		db:         db,
		plugins:    plugins,
		supervisor: supervisor,
		logger:     slog.Default(),
	}
}

// Register adds every API route to mux
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/engine/version", h.EngineVersion)
	mux.HandleFunc("POST /api/reset", h.Reset)

	mux.HandleFunc("POST /api/downloads", h.AddDownload)
	mux.HandleFunc("GET /api/downloads", h.ListDownloads)
	mux.HandleFunc("GET /api/downloads/active", h.ActiveDownloads)
	mux.HandleFunc("POST /api/downloads/pause-all", h.PauseAll)
	mux.HandleFunc("POST /api/downloads/resume-all", h.ResumeAll)
	mux.HandleFunc("GET /api/downloads/{gid}", h.DownloadStatus)
	mux.HandleFunc("POST /api/downloads/{gid}/start", h.StartDownload)
	mux.HandleFunc("POST /api/downloads/{gid}/pause", h.PauseDownload)
	mux.HandleFunc("POST /api/downloads/{gid}/resume", h.ResumeDownload)
	mux.HandleFunc("POST /api/downloads/{gid}/cancel", h.CancelDownload)
	mux.HandleFunc("POST /api/downloads/{gid}/limit", h.SetSpeedLimit)
	mux.HandleFunc("DELETE /api/downloads/{gid}", h.DeleteDownload)

	mux.HandleFunc("GET /api/requests", h.ListLinkRequests)

	mux.HandleFunc("POST /api/videofinder", h.AddVideoFinder)
	mux.HandleFunc("GET /api/videofinder", h.VideoFinderGIDs)
	mux.HandleFunc("GET /api/videofinder/{gid}", h.GetVideoFinder)

	mux.HandleFunc("GET /api/categories", h.ListCategories)
	mux.HandleFunc("POST /api/categories", h.CreateCategory)
	mux.HandleFunc("GET /api/categories/{name}", h.GetCategory)
	mux.HandleFunc("PATCH /api/categories/{name}", h.UpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{name}", h.DeleteCategory)
	mux.HandleFunc("POST /api/categories/{name}/stop", h.StopCategory)

	mux.HandleFunc("POST /api/plugin/links", h.QueuePluginLinks)
	mux.HandleFunc("GET /api/plugin/links", h.ConsumePluginLinks)
}

// EngineVersion reports the version of the download engine
func (h *Handlers) EngineVersion(w http.ResponseWriter, r *http.Request) {
	version, err := h.supervisor.EngineVersion(r.Context())
	if err != nil {
		h.logger.Warn("Engine did not respond", "error", err)
		h.writeJSON(w, http.StatusBadGateway, map[string]string{"error": "did not respond"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"version": version})
}

// Reset wipes every download, category and session entry
func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.supervisor.ResetAll(); err != nil {
		h.writeError(w, "Failed to reset state", err)
		return
	}
	h.logger.Info("State reset")
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps an error to the HTTP status returned to the caller
func statusFor(err error) int {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, downloader.ErrInvalidRequest),
		errors.Is(err, database.ErrPermanentCategory):
		return http.StatusBadRequest
	case errors.Is(err, aria2.ErrEngineUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
	} else {
		h.logger.Debug(msg, "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

// decode reads a JSON request body into v
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", downloader.ErrInvalidRequest, err)
	}
	return nil
}
