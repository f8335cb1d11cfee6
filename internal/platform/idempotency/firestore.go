package idempotency

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/friperie/api/internal/platform/firestore"
)

const firestoreCollection = "idempotency_keys"

// FirestoreStore keeps reservations in Firestore. Pair it with a TTL policy on expiresAt.
type FirestoreStore struct {
	provider *pfirestore.Provider
	keys     pfirestore.Collection[idempotencyDoc]
}

// NewFirestoreStore binds the store to provider.
func NewFirestoreStore(provider *pfirestore.Provider) (*FirestoreStore, error) {
	if provider == nil {
		return nil, errors.New("idempotency: firestore provider is required")
	}
	return &FirestoreStore{
		provider: provider,
		keys:     pfirestore.NewCollection[idempotencyDoc](provider, firestoreCollection),
	}, nil
}

type idempotencyDoc struct {
	Fingerprint string              `firestore:"fingerprint"`
	Completed   bool                `firestore:"completed"`
	Status      int                 `firestore:"status"`
	Headers     map[string][]string `firestore:"headers"`
	Body        []byte              `firestore:"body"`
	ExpiresAt   time.Time           `firestore:"expiresAt"`
}

func (d idempotencyDoc) entry() entry {
	return entry{
		Fingerprint: d.Fingerprint,
		Completed:   d.Completed,
		Response:    Response{Status: d.Status, Headers: http.Header(d.Headers), Body: d.Body},
		ExpiresAt:   d.ExpiresAt,
	}
}

func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (State, Response, error) {
	ref, err := s.keys.Doc(ctx, key)
	if err != nil {
		return StateNew, Response{}, err
	}
	var (
		state State
		resp  Response
	)
	err = s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil {
			doc, err := pfirestore.Decode[idempotencyDoc](snap)
			if err != nil {
				return err
			}
			if existing := doc.entry(); !existing.expired(now) {
				var resolveErr error
				state, resp, resolveErr = existing.resolve(fingerprint)
				return resolveErr
			}
		}
		state, resp = StateNew, Response{}
		return tx.Set(ref, idempotencyDoc{Fingerprint: fingerprint, ExpiresAt: now.Add(ttlOrDefault(ttl))})
	}, pfirestore.WithTxAttempts(3))
	return state, resp, err
}

func (s *FirestoreStore) Complete(ctx context.Context, key string, resp Response, now time.Time, ttl time.Duration) error {
	ref, err := s.keys.Doc(ctx, key)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, map[string]any{
		"completed": true,
		"status":    resp.Status,
		"headers":   map[string][]string(resp.Headers),
		"body":      resp.Body,
		"expiresAt": now.Add(ttlOrDefault(ttl)),
	}, firestore.MergeAll)
	return pfirestore.WrapError("idempotency.complete", err)
}

func (s *FirestoreStore) Release(ctx context.Context, key string) error {
	return s.keys.Delete(ctx, key)
}
