package handlers

import (
	"net/http"

	"ariadm/pkg/models"
)

// ListCategories returns every category in insertion order
func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.db.ListCategories()
	if err != nil {
		h.writeError(w, "Failed to list categories", err)
		return
	}
	h.writeJSON(w, http.StatusOK, categories)
}

// CreateCategory adds an empty category
func (h *Handlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	category := models.NewCategory("")
	if err := decode(r, category); err != nil {
		h.writeError(w, "Invalid category request", err)
		return
	}

	if err := h.supervisor.CreateCategory(category); err != nil {
		h.writeError(w, "Failed to create category", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, category)
}

// GetCategory returns one category with its members
func (h *Handlers) GetCategory(w http.ResponseWriter, r *http.Request) {
	category, err := h.db.SearchCategory(r.PathValue("name"))
	if err != nil {
		h.writeError(w, "Failed to get category", err)
		return
	}
	h.writeJSON(w, http.StatusOK, category)
}

// UpdateCategory applies a partial update to the queue settings of a category
func (h *Handlers) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var patch models.CategoryPatch
	if err := decode(r, &patch); err != nil {
		h.writeError(w, "Invalid category update", err)
		return
	}
	patch.Name = r.PathValue("name")

	if err := h.supervisor.UpdateCategory(patch); err != nil {
		h.writeError(w, "Failed to update category", err)
		return
	}

	category, err := h.db.SearchCategory(patch.Name)
	if err != nil {
		h.writeError(w, "Failed to get category", err)
		return
	}
	h.writeJSON(w, http.StatusOK, category)
}

// DeleteCategory stops the downloads of a category and deletes it
func (h *Handlers) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.supervisor.DeleteCategory(r.Context(), r.PathValue("name")); err != nil {
		h.writeError(w, "Failed to delete category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StopCategory cancels every active download of a category
func (h *Handlers) StopCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.supervisor.StopCategory(r.Context(), r.PathValue("name")); err != nil {
		h.writeError(w, "Failed to stop category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
