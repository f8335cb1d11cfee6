package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/friperie/api/internal/platform/auth"
	"github.com/friperie/api/internal/platform/httpx"
	"github.com/friperie/api/internal/platform/requestctx"
)

const (
	// DefaultHeader carries the client supplied key.
	DefaultHeader = "Idempotency-Key"
	// ReplayHeader marks replayed responses.
	ReplayHeader = "X-Idempotent-Replay"

	maxKeyLength  = 200
	maxBodyBuffer = 1 << 20
)

// Options configures Middleware.
type Options struct {
	Header   string
	TTL      time.Duration
	Required bool
	Clock    func() time.Time
}

// Middleware replays the first response for a repeated key on mutating requests. Keys are
// scoped to the authenticated user so two users cannot collide.
func Middleware(store Store, opts Options) func(http.Handler) http.Handler {
	header := strings.TrimSpace(opts.Header)
	if header == "" {
		header = DefaultHeader
	}
	ttl := ttlOrDefault(opts.TTL)
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !mutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			rawKey := strings.TrimSpace(r.Header.Get(header))
			if rawKey == "" {
				if opts.Required {
					httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_required", header+" header is required", http.StatusBadRequest))
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if len(rawKey) > maxKeyLength {
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_invalid", header+" is too long", http.StatusBadRequest))
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBuffer+1))
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest))
				return
			}
			if len(body) > maxBodyBuffer {
				httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body too large", http.StatusRequestEntityTooLarge))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := scopedKey(auth.UserID(ctx), r.Method, r.URL.Path, rawKey)
			fingerprint := fingerprintOf(r, body)
			logger := requestctx.Logger(ctx).With(zap.String("idempotencyKey", rawKey))

			state, stored, err := store.Reserve(ctx, key, fingerprint, clock().UTC(), ttl)
			switch {
			case errors.Is(err, ErrFingerprintMismatch):
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_reused", "idempotency key was used with a different request", http.StatusUnprocessableEntity))
				return
			case err != nil:
				logger.Error("idempotency reserve failed", zap.Error(err))
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_unavailable", "idempotency store unavailable", http.StatusServiceUnavailable))
				return
			case state == StateReplay:
				replay(w, stored)
				return
			case state == StateInFlight:
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress", "a request with this key is still being processed", http.StatusConflict))
				return
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			completed := false
			defer func() {
				if completed {
					return
				}
				// handler panicked or failed server side; let the client retry
				if err := store.Release(ctx, key); err != nil {
					logger.Warn("idempotency release failed", zap.Error(err))
				}
			}()
			next.ServeHTTP(rec, r)

			if rec.status >= http.StatusInternalServerError {
				return
			}
			resp := Response{Status: rec.status, Headers: w.Header(), Body: rec.body.Bytes()}.trimmed()
			if err := store.Complete(ctx, key, resp, clock().UTC(), ttl); err != nil {
				logger.Error("idempotency complete failed", zap.Error(err))
				return
			}
			completed = true
		})
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func scopedKey(userID, method, path, key string) string {
	sum := sha256.Sum256([]byte(userID + "\x00" + method + "\x00" + path + "\x00" + key))
	return hex.EncodeToString(sum[:])
}

func fingerprintOf(r *http.Request, body []byte) string {
	h := sha256.New()
	for _, part := range []string{r.Method, r.URL.Path, r.URL.Query().Encode(), r.Header.Get("Content-Type")} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func replay(w http.ResponseWriter, resp Response) {
	for name, values := range resp.Headers {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.Header().Set(ReplayHeader, "true")
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}

// recorder passes the response through while keeping a copy for replay.
type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	if r.body.Len() < maxBodyBuffer {
		r.body.Write(p)
	}
	return r.ResponseWriter.Write(p)
}
