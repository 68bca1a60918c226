package handlers

import (
	"net/http"

	"ariadm/pkg/models"
)

type addVideoFinderRequest struct {
	Video    *models.LinkRequest `json:"video"`
	Audio    *models.LinkRequest `json:"audio"`
	Category string              `json:"category"`
}

// AddVideoFinder stores a video and its audio track as a pair and submits both
func (h *Handlers) AddVideoFinder(w http.ResponseWriter, r *http.Request) {
	var req addVideoFinderRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, "Invalid video finder request", err)
		return
	}

	pair, err := h.supervisor.AddVideoFinder(req.Video, req.Audio, req.Category)
	if err != nil {
		h.writeError(w, "Failed to add video finder pair", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, pair)
}

// VideoFinderGIDs lists every gid that belongs to a pair
func (h *Handlers) VideoFinderGIDs(w http.ResponseWriter, r *http.Request) {
	gids, err := h.supervisor.VideoFinderGIDs()
	if err != nil {
		h.writeError(w, "Failed to list video finder pairs", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string][]string{"gids": gids})
}

// GetVideoFinder returns the pair a gid belongs to, looked up from either side
func (h *Handlers) GetVideoFinder(w http.ResponseWriter, r *http.Request) {
	link, err := h.supervisor.VideoFinder(r.PathValue("gid"))
	if err != nil {
		h.writeError(w, "Failed to get video finder pair", err)
		return
	}
	h.writeJSON(w, http.StatusOK, link)
}
