package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friperie/api/internal/platform/httpx"
	"github.com/friperie/api/internal/services"
)

// CategoryHandlers exposes the read-only taxonomy.
type CategoryHandlers struct {
	categories services.CategoryService
}

// NewCategoryHandlers constructs category endpoints.
func NewCategoryHandlers(categories services.CategoryService) *CategoryHandlers {
	return &CategoryHandlers{categories: categories}
}

// Routes registers /categories endpoints.
func (h *CategoryHandlers) Routes(r chi.Router) {
	r.Get("/", h.tree)
	r.Get("/{categoryID}", h.get)
	r.Get("/{categoryID}/descendants", h.descendants)
}

func (h *CategoryHandlers) tree(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		serviceUnavailable(ctx, w, "category")
		return
	}
	forest, err := h.categories.ResolveTree(ctx)
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"categories": buildCategoryTree(forest)})
}

func (h *CategoryHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		serviceUnavailable(ctx, w, "category")
		return
	}
	category, err := h.categories.Get(ctx, pathParam(r, "categoryID"))
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCategoryPayload(category))
}

func (h *CategoryHandlers) descendants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		serviceUnavailable(ctx, w, "category")
		return
	}
	ids, err := h.categories.ResolveDescendants(ctx, pathParam(r, "categoryID"))
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"ids": ids})
}
