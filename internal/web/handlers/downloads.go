package handlers

import (
	"net/http"
	"strings"

	"ariadm/pkg/models"
)

type addDownloadRequest struct {
	models.LinkRequest
	Category string `json:"category"`
}

// AddDownload stores a new download and submits it in the background
func (h *Handlers) AddDownload(w http.ResponseWriter, r *http.Request) {
	var req addDownloadRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, "Invalid download request", err)
		return
	}

	if exists, err := h.db.SearchLinkExists(req.Link); err == nil && exists {
		h.logger.Warn("Link was added before", "link", req.Link)
	}

	download, err := h.supervisor.AddDownload(&req.LinkRequest, req.Category)
	if err != nil {
		h.writeError(w, "Failed to add download", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, download)
}

// ListDownloads returns catalog downloads, filtered by ?status= (comma separated) and ?category=
func (h *Handlers) ListDownloads(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	var statuses []models.DownloadStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			statuses = append(statuses, models.DownloadStatus(strings.TrimSpace(s)))
		}
	}

	downloads, err := h.db.FindByStatus(statuses, category)
	if err != nil {
		h.writeError(w, "Failed to list downloads", err)
		return
	}
	if downloads == nil {
		downloads = []*models.Download{}
	}
	h.writeJSON(w, http.StatusOK, downloads)
}

// ActiveDownloads reports every download the engine is working on
func (h *Handlers) ActiveDownloads(w http.ResponseWriter, r *http.Request) {
	infos, err := h.supervisor.QueryAllActive(r.Context())
	if err != nil {
		h.writeError(w, "Failed to query active downloads", err)
		return
	}
	h.writeJSON(w, http.StatusOK, infos)
}

// DownloadStatus reports the current state of one download
func (h *Handlers) DownloadStatus(w http.ResponseWriter, r *http.Request) {
	info, err := h.supervisor.QueryStatus(r.Context(), r.PathValue("gid"))
	if err != nil {
		h.writeError(w, "Failed to query download", err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

// StartDownload submits a stored download again
func (h *Handlers) StartDownload(w http.ResponseWriter, r *http.Request) {
	gid := r.PathValue("gid")
	if err := h.supervisor.Launch(gid); err != nil {
		h.writeError(w, "Failed to start download", err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"gid": gid})
}

// PauseDownload handles pausing an active download
func (h *Handlers) PauseDownload(w http.ResponseWriter, r *http.Request) {
	gid := r.PathValue("gid")
	if err := h.supervisor.Pause(r.Context(), gid); err != nil {
		h.writeError(w, "Failed to pause download", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResumeDownload handles resuming a paused download
func (h *Handlers) ResumeDownload(w http.ResponseWriter, r *http.Request) {
	gid := r.PathValue("gid")
	if err := h.supervisor.Resume(r.Context(), gid); err != nil {
		h.writeError(w, "Failed to resume download", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelDownload stops a download and returns the engine acknowledgement
func (h *Handlers) CancelDownload(w http.ResponseWriter, r *http.Request) {
	answer, err := h.supervisor.Cancel(r.Context(), r.PathValue("gid"))
	if err != nil {
		h.writeError(w, "Failed to cancel download", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"result": answer})
}

// SetSpeedLimit changes the speed limit of a download
func (h *Handlers) SetSpeedLimit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limit string `json:"limit"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, "Invalid limit request", err)
		return
	}

	if err := h.supervisor.SetSpeedLimit(r.Context(), r.PathValue("gid"), req.Limit); err != nil {
		h.writeError(w, "Failed to set speed limit", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteDownload handles deleting a download record (keeps the file)
func (h *Handlers) DeleteDownload(w http.ResponseWriter, r *http.Request) {
	gid := r.PathValue("gid")
	if err := h.supervisor.DeleteDownload(r.Context(), gid); err != nil {
		h.writeError(w, "Failed to delete download", err)
		return
	}
	h.logger.Info("Download deleted", "gid", gid)
	w.WriteHeader(http.StatusNoContent)
}

// PauseAll pauses every download that is downloading or waiting
func (h *Handlers) PauseAll(w http.ResponseWriter, r *http.Request) {
	gids, err := h.supervisor.PauseAll(r.Context())
	if err != nil {
		h.writeError(w, "Failed to pause downloads", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string][]string{"gids": gids})
}

// ResumeAll continues every paused download
func (h *Handlers) ResumeAll(w http.ResponseWriter, r *http.Request) {
	gids, err := h.supervisor.ResumeAll(r.Context())
	if err != nil {
		h.writeError(w, "Failed to resume downloads", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string][]string{"gids": gids})
}

// ListLinkRequests returns the stored submission parameters, optionally for one ?category=.
// Passwords are left out.
func (h *Handlers) ListLinkRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.db.LinkRequestsByCategory(r.URL.Query().Get("category"))
	if err != nil {
		h.writeError(w, "Failed to list link requests", err)
		return
	}
	if requests == nil {
		requests = []*models.LinkRequest{}
	}
	for _, request := range requests {
		request.ProxyPasswd = nil
		request.DownloadPasswd = nil
	}
	h.writeJSON(w, http.StatusOK, requests)
}
