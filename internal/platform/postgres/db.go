package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"github.com/friperie/api/internal/platform/config"
)

const defaultQueryTimeout = 5 * time.Second

// Open builds a bun.DB over pgdriver. The pool connects lazily; call Ping to verify reachability.
func Open(cfg config.PostgresConfig) (*bun.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres: dsn is required")
	}
	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithReadTimeout(timeout),
		pgdriver.WithWriteTimeout(timeout),
	)
	sqldb := sql.OpenDB(connector)
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	sqldb.SetConnMaxIdleTime(5 * time.Minute)
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// QueryLogger logs slow or failed statements at debug and warn levels.
type QueryLogger struct {
	Logger        *zap.Logger
	SlowThreshold time.Duration
}

var _ bun.QueryHook = QueryLogger{}

func (h QueryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context { return ctx }

func (h QueryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if h.Logger == nil {
		return
	}
	elapsed := time.Since(event.StartTime)
	fields := []zap.Field{zap.String("operation", event.Operation()), zap.Duration("elapsed", elapsed)}
	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		h.Logger.Warn("postgres query failed", append(fields, zap.Error(event.Err))...)
	case h.SlowThreshold > 0 && elapsed > h.SlowThreshold:
		h.Logger.Warn("postgres slow query", append(fields, zap.String("query", event.Query))...)
	default:
		h.Logger.Debug("postgres query", fields...)
	}
}
