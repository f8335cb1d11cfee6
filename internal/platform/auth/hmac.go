package auth

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/friperie/api/internal/platform/config"
	"github.com/friperie/api/internal/platform/httpx"
	"github.com/friperie/api/internal/platform/requestctx"
)

const (
	defaultSignatureHeader = "X-Signature"
	defaultTimestampHeader = "X-Signature-Timestamp"
	defaultNonceHeader     = "X-Signature-Nonce"
	defaultClockSkew       = 5 * time.Minute
	defaultNonceTTL        = 10 * time.Minute
	maxSignedBodyBytes     = 1 << 20
)

// HMACValidator authenticates webhooks signed with a shared secret. The signed message is
// METHOD\nPATH\nTIMESTAMP\nNONCE\nhex(sha256(body)).
type HMACValidator struct {
	secrets map[string][]byte
	nonces  NonceStore
	metrics verificationMetrics
	now     func() time.Time

	signatureHeader string
	timestampHeader string
	nonceHeader     string
	clockSkew       time.Duration
	nonceTTL        time.Duration
}

// NewHMACValidator builds a validator from cfg. Secrets are keyed by integration name.
func NewHMACValidator(cfg config.HMACConfig, nonces NonceStore) *HMACValidator {
	v := &HMACValidator{
		secrets:         make(map[string][]byte, len(cfg.Secrets)),
		nonces:          nonces,
		metrics:         newVerificationMetrics(),
		now:             time.Now,
		signatureHeader: firstNonEmpty(cfg.SignatureHeader, defaultSignatureHeader),
		timestampHeader: firstNonEmpty(cfg.TimestampHeader, defaultTimestampHeader),
		nonceHeader:     firstNonEmpty(cfg.NonceHeader, defaultNonceHeader),
		clockSkew:       cfg.ClockSkew,
		nonceTTL:        cfg.NonceTTL,
	}
	for name, secret := range cfg.Secrets {
		if secret = strings.TrimSpace(secret); secret != "" {
			v.secrets[strings.TrimSpace(name)] = []byte(secret)
		}
	}
	if v.clockSkew <= 0 {
		v.clockSkew = defaultClockSkew
	}
	if v.nonceTTL <= 0 {
		v.nonceTTL = defaultNonceTTL
	}
	return v
}

// WebhookSource names the integration whose secret verified the request.
type WebhookSource struct {
	Name      string
	Timestamp time.Time
	Nonce     string
}

type webhookSourceKey struct{}

// WebhookSourceFromContext returns the source recorded by RequireHMAC.
func WebhookSourceFromContext(ctx context.Context) (WebhookSource, bool) {
	source, ok := ctx.Value(webhookSourceKey{}).(WebhookSource)
	return source, ok
}

type hmacFailure struct {
	status  int
	code    string
	reason  string
	message string
}

func (f *hmacFailure) Error() string { return f.reason }

func reject(status int, code, reason, message string) *hmacFailure {
	return &hmacFailure{status: status, code: code, reason: reason, message: message}
}

// RequireHMAC rejects requests that are not signed with the named secret.
func (v *HMACValidator) RequireHMAC(secretName string) func(http.Handler) http.Handler {
	secretName = strings.TrimSpace(secretName)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := v.now()
			source, err := v.verify(r, secretName)
			if err != nil {
				var failure *hmacFailure
				if !errors.As(err, &failure) {
					failure = reject(http.StatusServiceUnavailable, "verification_unavailable", "nonce_store_error", "signature verification unavailable")
					requestctx.Logger(r.Context()).Warn("hmac nonce store failed", zap.Error(err))
				}
				v.metrics.record(r.Context(), "hmac", failure.reason, start, v.now())
				httpx.WriteError(r.Context(), w, httpx.NewError(failure.code, failure.message, failure.status))
				return
			}
			v.metrics.record(r.Context(), "hmac", "ok", start, v.now())
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), webhookSourceKey{}, source)))
		})
	}
}

func (v *HMACValidator) verify(r *http.Request, secretName string) (WebhookSource, error) {
	secret, ok := v.secrets[secretName]
	if !ok {
		return WebhookSource{}, reject(http.StatusServiceUnavailable, "verification_unavailable", "secret_not_configured", "webhook secret not configured")
	}
	signature := strings.TrimSpace(r.Header.Get(v.signatureHeader))
	stamp := strings.TrimSpace(r.Header.Get(v.timestampHeader))
	nonce := strings.TrimSpace(r.Header.Get(v.nonceHeader))
	switch {
	case signature == "":
		return WebhookSource{}, reject(http.StatusUnauthorized, "signature_missing", "signature_missing", "signature header missing")
	case stamp == "":
		return WebhookSource{}, reject(http.StatusUnauthorized, "timestamp_missing", "timestamp_missing", "signature timestamp missing")
	case nonce == "":
		return WebhookSource{}, reject(http.StatusUnauthorized, "nonce_missing", "nonce_missing", "signature nonce missing")
	}

	signedAt, err := parseSignatureTimestamp(stamp)
	if err != nil {
		return WebhookSource{}, reject(http.StatusUnauthorized, "timestamp_invalid", "timestamp_invalid", "signature timestamp invalid")
	}
	now := v.now()
	if skew := now.Sub(signedAt); skew > v.clockSkew || skew < -v.clockSkew {
		return WebhookSource{}, reject(http.StatusUnauthorized, "timestamp_skew", "timestamp_skew", "signature timestamp outside allowed window")
	}

	body, err := bufferBody(r)
	if err != nil {
		return WebhookSource{}, reject(http.StatusBadRequest, "invalid_body", "body_unreadable", "request body unreadable")
	}
	given, err := decodeSignature(signature)
	if err != nil {
		return WebhookSource{}, reject(http.StatusUnauthorized, "signature_invalid", "signature_invalid", "signature encoding invalid")
	}
	if !hmac.Equal(given, Sign(secret, CanonicalMessage(r.Method, r.URL.EscapedPath(), stamp, nonce, body))) {
		return WebhookSource{}, reject(http.StatusUnauthorized, "signature_mismatch", "signature_mismatch", "signature verification failed")
	}

	if v.nonces == nil {
		return WebhookSource{}, reject(http.StatusServiceUnavailable, "verification_unavailable", "nonce_store_unavailable", "nonce store unavailable")
	}
	fresh, err := v.nonces.UseNonce(r.Context(), secretName, nonce, now.Add(v.nonceTTL))
	if err != nil {
		return WebhookSource{}, fmt.Errorf("auth: use nonce: %w", err)
	}
	if !fresh {
		return WebhookSource{}, reject(http.StatusUnauthorized, "nonce_replay", "nonce_replay", "duplicate signature nonce")
	}
	return WebhookSource{Name: secretName, Timestamp: signedAt, Nonce: nonce}, nil
}

// CanonicalMessage builds the string covered by the signature.
func CanonicalMessage(method, path, timestamp, nonce string, body []byte) []byte {
	if path == "" {
		path = "/"
	}
	digest := sha256.Sum256(body)
	return []byte(strings.Join([]string{
		strings.ToUpper(method),
		path,
		timestamp,
		nonce,
		hex.EncodeToString(digest[:]),
	}, "\n"))
}

// Sign computes the HMAC-SHA256 of message.
func Sign(secret, message []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(message)
	return mac.Sum(nil)
}

func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	buf, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBodyBytes))
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(buf))
	return buf, nil
}

func decodeSignature(value string) ([]byte, error) {
	value = strings.TrimPrefix(value, "sha256=")
	if decoded, err := hex.DecodeString(value); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return decoded, nil
	}
	return nil, errors.New("auth: signature must be hex or base64 encoded")
}

func parseSignatureTimestamp(value string) (time.Time, error) {
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("auth: unable to parse timestamp %q", value)
	}
	return ts.UTC(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
