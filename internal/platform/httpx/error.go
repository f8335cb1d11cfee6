package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/platform/requestctx"
)

// Error is the JSON error envelope returned by every endpoint.
type Error struct {
	Code      string
	Message   string
	Status    int
	RequestID string
	TraceID   string
	Details   map[string]any
}

// NewError builds an Error; a zero status becomes 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    clip(code, 80),
		Message: clip(message, 512),
		Status:  status,
	}
}

// WithDetails attaches extra fields merged into the payload.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	e.Details = maps.Clone(details)
	return e
}

// domainStatuses maps error kinds to HTTP responses. Entity not-found errors match ErrNotFound,
// so more specific kinds must come first.
var domainStatuses = []struct {
	kind   error
	code   string
	status int
}{
	{domain.ErrCategoryCyclicHierarchy, "category_hierarchy_corrupt", http.StatusInternalServerError},
	{domain.ErrProductNotFound, "product_not_found", http.StatusNotFound},
	{domain.ErrOrderNotFound, "order_not_found", http.StatusNotFound},
	{domain.ErrConversationNotFound, "conversation_not_found", http.StatusNotFound},
	{domain.ErrCategoryNotFound, "category_not_found", http.StatusNotFound},
	{domain.ErrAddressNotFound, "address_not_found", http.StatusNotFound},
	{domain.ErrNotFound, "not_found", http.StatusNotFound},
	{domain.ErrForbidden, "forbidden", http.StatusForbidden},
	{domain.ErrSelfReference, "self_reference", http.StatusUnprocessableEntity},
	{domain.ErrProductUnavailable, "product_unavailable", http.StatusConflict},
	{domain.ErrInvalidTransition, "invalid_transition", http.StatusConflict},
	{domain.ErrConflict, "conflict", http.StatusConflict},
	{domain.ErrInvalidInput, "invalid_request", http.StatusBadRequest},
	{domain.ErrUnavailable, "service_unavailable", http.StatusServiceUnavailable},
}

// FromError translates a service error into the envelope. Unknown errors become an opaque 500 so
// internal details never reach clients.
func FromError(err error) Error {
	for _, entry := range domainStatuses {
		if !errors.Is(err, entry.kind) {
			continue
		}
		message := err.Error()
		if entry.status >= http.StatusInternalServerError {
			message = http.StatusText(entry.status)
		}
		return NewError(entry.code, message, entry.status)
	}
	return NewError("internal", "internal server error", http.StatusInternalServerError)
}

// causer is implemented by errors that keep their storage cause out of Error.
type causer interface {
	Cause() error
}

// WriteServiceError logs server side failures and writes the mapped envelope. Client errors that
// hide a storage cause are logged at warn level with that cause.
func WriteServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	mapped := FromError(err)
	var hidden causer
	hasCause := errors.As(err, &hidden) && hidden.Cause() != nil
	switch {
	case mapped.Status >= http.StatusInternalServerError:
		fields := []zap.Field{zap.String("code", mapped.Code), zap.Error(err)}
		if hasCause {
			fields = append(fields, zap.NamedError("cause", hidden.Cause()))
		}
		requestctx.Logger(ctx).Error("service error", fields...)
	case hasCause:
		requestctx.Logger(ctx).Warn("storage error", zap.String("code", mapped.Code), zap.NamedError("cause", hidden.Cause()))
	}
	WriteError(ctx, w, mapped)
}

// WriteError writes the envelope as JSON.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	requestID := err.RequestID
	if requestID == "" {
		requestID = clip(middleware.GetReqID(ctx), 80)
	}
	traceID := err.TraceID
	if traceID == "" {
		traceID = clip(requestctx.TraceID(ctx), 64)
	}

	payload := map[string]any{
		"error":   err.Code,
		"message": err.Message,
		"status":  status,
	}
	if requestID != "" {
		payload["request_id"] = requestID
	}
	if traceID != "" {
		payload["trace_id"] = traceID
	}
	for k, v := range err.Details {
		payload[k] = v
	}
	WriteJSON(w, status, payload)
}

// WriteJSON encodes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// clip bounds value to limit bytes without splitting a rune.
func clip(value string, limit int) string {
	value = strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ").Replace(value))
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
