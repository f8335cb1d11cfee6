package handlers

import (
	"github.com/go-chi/chi/v5"

	"github.com/friperie/api/internal/platform/auth"
	"github.com/friperie/api/internal/services"
)

// MeHandlers serves resources owned by the authenticated user.
type MeHandlers struct {
	authn     *auth.Authenticator
	favorites services.FavoriteService
	addresses services.AddressService
}

// NewMeHandlers constructs /me endpoints.
func NewMeHandlers(authn *auth.Authenticator, favorites services.FavoriteService, addresses services.AddressService) *MeHandlers {
	return &MeHandlers{authn: authn, favorites: favorites, addresses: addresses}
}

// Routes registers /me endpoints.
func (h *MeHandlers) Routes(r chi.Router) {
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Route("/favorites", h.favoriteRoutes)
	r.Route("/addresses", h.addressRoutes)
}
