package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friperie/api/internal/platform/httpx"
)

func (h *MeHandlers) favoriteRoutes(r chi.Router) {
	r.Get("/", h.listFavorites)
	r.Post("/{productID}", h.toggleFavorite)
}

func (h *MeHandlers) listFavorites(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.favorites == nil {
		serviceUnavailable(ctx, w, "favorite")
		return
	}
	products, err := h.favorites.List(ctx, uid)
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": mapSlice(products, buildProductPayload)})
}

func (h *MeHandlers) toggleFavorite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.favorites == nil {
		serviceUnavailable(ctx, w, "favorite")
		return
	}
	productID := pathParam(r, "productID")
	favorited, err := h.favorites.Toggle(ctx, uid, productID)
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"productId": productID, "favorited": favorited})
}
