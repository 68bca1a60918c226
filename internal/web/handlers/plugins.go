package handlers

import (
	"net/http"

	"ariadm/pkg/models"
)

// QueuePluginLinks stores links sent by the browser integration
func (h *Handlers) QueuePluginLinks(w http.ResponseWriter, r *http.Request) {
	var links []*models.PluginLink
	if err := decode(r, &links); err != nil {
		h.writeError(w, "Invalid plugin links", err)
		return
	}

	if err := h.plugins.InsertPluginLinks(links...); err != nil {
		h.writeError(w, "Failed to queue plugin links", err)
		return
	}
	h.logger.Info("Plugin links queued", "count", len(links))
	h.writeJSON(w, http.StatusCreated, links)
}

// ConsumePluginLinks returns the links not picked up yet and marks them old
func (h *Handlers) ConsumePluginLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.plugins.ConsumeNewLinks()
	if err != nil {
		h.writeError(w, "Failed to read plugin links", err)
		return
	}
	if links == nil {
		links = []*models.PluginLink{}
	}
	h.writeJSON(w, http.StatusOK, links)
}
