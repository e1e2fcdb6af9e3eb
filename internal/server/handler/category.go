package handler

import (
	"net/http"

	"github.com/veilco/market-creation/internal/domain"
)

// CategoryHandler serves the static category catalogue used by draft
// authoring UIs.
type CategoryHandler struct{}

func NewCategoryHandler() *CategoryHandler {
	return &CategoryHandler{}
}

// ListCategories returns the catalogue of category names and their tags.
// GET /api/categories
func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": domain.Categories()})
}
