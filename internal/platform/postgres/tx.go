package postgres

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
)

const defaultTxAttempts = 3

// TxFunc runs inside a serializable transaction and may be retried.
type TxFunc func(ctx context.Context, tx bun.Tx) error

// RunInTx runs fn in a serializable transaction, retrying on serialization failures and deadlocks.
func RunInTx(ctx context.Context, db *bun.DB, op string, fn TxFunc) error {
	var err error
	for attempt := 0; attempt < defaultTxAttempts; attempt++ {
		err = db.RunInTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, fn)
		if err == nil || !retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return WrapError(op, err)
}
