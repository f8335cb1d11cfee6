package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friperie/api/internal/platform/auth"
	"github.com/friperie/api/internal/platform/httpx"
	"github.com/friperie/api/internal/services"
)

// ConversationOption customises ConversationHandlers.
type ConversationOption func(*ConversationHandlers)

// ConversationHandlers exposes buyer/seller threads and their messages.
type ConversationHandlers struct {
	authn         *auth.Authenticator
	conversations services.ConversationService
	idempotent    Middleware
	sendLimiter   rateLimiter
}

// NewConversationHandlers constructs conversation endpoints.
func NewConversationHandlers(authn *auth.Authenticator, conversations services.ConversationService, opts ...ConversationOption) *ConversationHandlers {
	h := &ConversationHandlers{authn: authn, conversations: conversations}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// WithMessageIdempotency guards message sends with mw.
func WithMessageIdempotency(mw Middleware) ConversationOption {
	return func(h *ConversationHandlers) { h.idempotent = mw }
}

// WithMessageRateLimit caps message sends per user to limit per window, tracking at most
// trackedUsers keys. A non-positive limit disables throttling.
func WithMessageRateLimit(limit int, window time.Duration, trackedUsers int, clock func() time.Time) ConversationOption {
	return func(h *ConversationHandlers) {
		h.sendLimiter = newWindowLimiter(limit, window, trackedUsers, clock)
	}
}

// Routes registers /conversations endpoints.
func (h *ConversationHandlers) Routes(r chi.Router) {
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.list)
	r.Post("/", h.findOrCreate)
	r.Get("/{conversationID}", h.get)
	r.Get("/{conversationID}/messages", h.messages)
	r.Post("/{conversationID}/read", h.markRead)
	r.Group(func(send chi.Router) {
		if h.idempotent != nil {
			send.Use(h.idempotent)
		}
		send.Post("/{conversationID}/messages", h.send)
	})
}

type findOrCreateConversationRequest struct {
	ProductID string `json:"productId"`
}

func (h *ConversationHandlers) findOrCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.conversations == nil {
		serviceUnavailable(ctx, w, "conversation")
		return
	}
	var req findOrCreateConversationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	conversation, err := h.conversations.FindOrCreate(ctx, strings.TrimSpace(req.ProductID), uid)
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildConversationPayload(conversation))
}

func (h *ConversationHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.conversations == nil {
		serviceUnavailable(ctx, w, "conversation")
		return
	}
	conversations, err := h.conversations.List(ctx, uid)
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": mapSlice(conversations, buildConversationPayload)})
}

func (h *ConversationHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.conversations == nil {
		serviceUnavailable(ctx, w, "conversation")
		return
	}
	conversation, err := h.conversations.Get(ctx, pathParam(r, "conversationID"), uid)
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildConversationPayload(conversation))
}

func (h *ConversationHandlers) messages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.conversations == nil {
		serviceUnavailable(ctx, w, "conversation")
		return
	}
	messages, err := h.conversations.Messages(ctx, pathParam(r, "conversationID"), uid)
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": mapSlice(messages, buildMessagePayload)})
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (h *ConversationHandlers) send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.conversations == nil {
		serviceUnavailable(ctx, w, "conversation")
		return
	}
	if h.sendLimiter != nil && !h.sendLimiter.Allow(uid) {
		w.Header().Set("Retry-After", "60")
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many messages, slow down", http.StatusTooManyRequests))
		return
	}
	var req sendMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	message, err := h.conversations.SendMessage(ctx, services.SendMessageCommand{
		ConversationID: pathParam(r, "conversationID"),
		SenderID:       uid,
		Content:        req.Content,
	})
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildMessagePayload(message))
}

func (h *ConversationHandlers) markRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.conversations == nil {
		serviceUnavailable(ctx, w, "conversation")
		return
	}
	updated, err := h.conversations.MarkAsRead(ctx, pathParam(r, "conversationID"), uid)
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"updated": updated})
}
