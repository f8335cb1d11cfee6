package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friperie/api/internal/platform/auth"
	"github.com/friperie/api/internal/platform/httpx"
	"github.com/friperie/api/internal/services"
)

// UserHandlers serves profiles: the caller's own under /users/me and public ones by id.
type UserHandlers struct {
	authn *auth.Authenticator
	users services.UserService
}

// NewUserHandlers constructs /users endpoints.
func NewUserHandlers(authn *auth.Authenticator, users services.UserService) *UserHandlers {
	return &UserHandlers{authn: authn, users: users}
}

// Routes registers /users endpoints. /me is registered before /{userID} so it never resolves as an id.
func (h *UserHandlers) Routes(r chi.Router) {
	r.Group(func(private chi.Router) {
		if h.authn != nil {
			private.Use(h.authn.RequireFirebaseAuth())
		}
		private.Get("/me", h.me)
		private.Patch("/me", h.updateMe)
	})
	r.Group(func(public chi.Router) {
		if h.authn != nil {
			public.Use(h.authn.OptionalFirebaseAuth())
		}
		public.Get("/{userID}", h.public)
	})
}

func (h *UserHandlers) me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.users == nil {
		serviceUnavailable(ctx, w, "user")
		return
	}
	profile, err := h.users.Me(ctx, uid)
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildUserProfilePayload(profile))
}

type updateProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Phone     *string `json:"phone"`
	AvatarURL *string `json:"avatarUrl"`
	Bio       *string `json:"bio"`
}

func (h *UserHandlers) updateMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.users == nil {
		serviceUnavailable(ctx, w, "user")
		return
	}
	var req updateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	profile, err := h.users.UpdateMe(ctx, services.UpdateProfileCommand{
		UserID:    uid,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		AvatarURL: req.AvatarURL,
		Bio:       req.Bio,
	})
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildUserProfilePayload(profile))
}

func (h *UserHandlers) public(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.users == nil {
		serviceUnavailable(ctx, w, "user")
		return
	}
	profile, err := h.users.Public(ctx, pathParam(r, "userID"))
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPublicProfilePayload(profile))
}
