package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/friperie/api/internal/platform/auth"
	"github.com/friperie/api/internal/platform/requestctx"
	"go.uber.org/zap"
)

// SocketServer upgrades a request into a realtime subscription for userID.
type SocketServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID string) error
}

// RealtimeHandlers exposes the websocket channel that pushes new messages to participants.
type RealtimeHandlers struct {
	authn *auth.Authenticator
	hub   SocketServer
}

// NewRealtimeHandlers constructs the /ws endpoint.
func NewRealtimeHandlers(authn *auth.Authenticator, hub SocketServer) *RealtimeHandlers {
	return &RealtimeHandlers{authn: authn, hub: hub}
}

// Routes registers GET / on the mounted path. Browsers cannot set headers on websocket
// handshakes, so an access_token query parameter is accepted in place of Authorization.
func (h *RealtimeHandlers) Routes(r chi.Router) {
	r.Use(tokenFromQuery)
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.serve)
}

func tokenFromQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if token := strings.TrimSpace(r.URL.Query().Get("access_token")); token != "" {
				r = r.Clone(r.Context())
				r.Header.Set("Authorization", "Bearer "+token)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *RealtimeHandlers) serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.hub == nil {
		serviceUnavailable(ctx, w, "realtime")
		return
	}
	if err := h.hub.ServeWS(w, r, uid); err != nil {
		// The upgrader has already written the handshake error.
		requestctx.Logger(ctx).Debug("websocket upgrade failed", zap.Error(err))
	}
}
