package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

const (
	defaultTxAttempts = 5
	defaultTxTimeout  = 15 * time.Second
)

// TxFunc runs inside a Firestore transaction. It is re-invoked on contention and must not have
// side effects outside tx.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption adjusts retry and deadline behaviour of a single transaction.
type TxOption func(*txSettings)

type txSettings struct {
	attempts int
	timeout  time.Duration
}

// WithTxAttempts bounds the number of runs of the callback. One disables retries.
func WithTxAttempts(attempts int) TxOption {
	return func(s *txSettings) {
		if attempts > 0 {
			s.attempts = attempts
		}
	}
}

// WithTxTimeout bounds the whole transaction, retries included. A shorter caller deadline wins.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(s *txSettings) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

func (s txSettings) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if current, ok := ctx.Deadline(); ok && time.Until(current) <= s.timeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// RunTransaction executes fn on client. Errors produced by fn keep their identity so domain kinds
// survive the round trip. Exhausting the attempts on contention surfaces as an Aborted status, which
// WrapError classifies as a conflict.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts ...TxOption) error {
	if client == nil || fn == nil {
		return errors.New("firestore: client and transaction function are required")
	}
	settings := txSettings{attempts: defaultTxAttempts, timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(&settings)
	}
	ctx, cancel := settings.deadline(ctx)
	defer cancel()

	err := client.RunTransaction(ctx, fn, firestore.MaxAttempts(settings.attempts))
	return WrapError("transaction", err)
}
