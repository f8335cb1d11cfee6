package idempotency

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// DefaultTTL bounds how long a stored response can be replayed.
const DefaultTTL = 24 * time.Hour

// ErrFingerprintMismatch is returned when a key is reused with a different request.
var ErrFingerprintMismatch = errors.New("idempotency: key reused with a different request")

// State is the outcome of a reservation attempt.
type State int

const (
	// StateNew means the caller owns the key and must run the handler.
	StateNew State = iota
	// StateReplay means a completed response is available.
	StateReplay
	// StateInFlight means another request holds the key.
	StateInFlight
)

// Response is the captured handler output.
type Response struct {
	Status  int         `json:"status"`
	Headers http.Header `json:"headers,omitempty"`
	Body    []byte      `json:"body,omitempty"`
}

// Store persists reservations and completed responses keyed by a scoped idempotency key.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (State, Response, error)
	Complete(ctx context.Context, key string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// entry is the persisted shape shared by the stores.
type entry struct {
	Fingerprint string    `json:"fingerprint"`
	Completed   bool      `json:"completed"`
	Response    Response  `json:"response"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (e entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// resolve decides the reservation state for an existing live entry.
func (e entry) resolve(fingerprint string) (State, Response, error) {
	if e.Fingerprint != fingerprint {
		return StateInFlight, Response{}, ErrFingerprintMismatch
	}
	if e.Completed {
		return StateReplay, e.Response.clone(), nil
	}
	return StateInFlight, Response{}, nil
}

var replayableHeaders = []string{"Content-Type", "Location", "Cache-Control"}

func (r Response) clone() Response {
	out := Response{Status: r.Status}
	if len(r.Body) > 0 {
		out.Body = append([]byte(nil), r.Body...)
	}
	if len(r.Headers) > 0 {
		out.Headers = r.Headers.Clone()
	}
	return out
}

// trimmed keeps only the headers worth replaying.
func (r Response) trimmed() Response {
	out := Response{Status: r.Status, Body: r.Body, Headers: http.Header{}}
	for _, name := range replayableHeaders {
		if values := r.Headers.Values(name); len(values) > 0 {
			out.Headers[name] = append([]string(nil), values...)
		}
	}
	return out
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
