package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/friperie/api/internal/platform/auth"
	"github.com/friperie/api/internal/platform/httpx"
)

const maxJSONBodySize = 64 * 1024

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body too large")
)

// currentUser returns the authenticated uid or writes a 401.
func currentUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
	uid := auth.UserID(ctx)
	if uid == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return uid, true
}

// decodeJSON reads at most limit bytes into dst and rejects unknown fields.
func decodeJSON(r *http.Request, limit int64, dst any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	if limit <= 0 {
		limit = maxJSONBodySize
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return err
	}
	if int64(len(data)) > limit {
		return errBodyTooLarge
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return errEmptyBody
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON payload: %w", err)
	}
	return nil
}

// decodeBody decodes the request and writes the matching 400/413 envelope on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := decodeJSON(r, maxJSONBodySize, dst)
	if err == nil {
		return true
	}
	status, code := http.StatusBadRequest, "invalid_request"
	if errors.Is(err, errBodyTooLarge) {
		status, code = http.StatusRequestEntityTooLarge, "payload_too_large"
	}
	httpx.WriteError(r.Context(), w, httpx.NewError(code, err.Error(), status))
	return false
}

func pathParam(r *http.Request, name string) string {
	return strings.TrimSpace(chi.URLParam(r, name))
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	httpx.WriteJSON(w, status, payload)
}

func writeInvalid(ctx context.Context, w http.ResponseWriter, message string) {
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", message, http.StatusBadRequest))
}

func optionalFloat(values map[string][]string, key string) (*float64, error) {
	raw := ""
	if v, ok := values[key]; ok && len(v) > 0 {
		raw = strings.TrimSpace(v[0])
	}
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed < 0 {
		return nil, fmt.Errorf("%s must be a non-negative number", key)
	}
	return &parsed, nil
}

func serviceUnavailable(ctx context.Context, w http.ResponseWriter, name string) {
	httpx.WriteError(ctx, w, httpx.NewError(name+"_service_unavailable", name+" service is unavailable", http.StatusServiceUnavailable))
}
