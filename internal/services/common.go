package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/repositories"
)

const (
	productIDPrefix      = "prd_"
	orderIDPrefix        = "ord_"
	conversationIDPrefix = "cnv_"
	messageIDPrefix      = "msg_"
	favoriteIDPrefix     = "fav_"
	addressIDPrefix      = "adr_"
	reviewIDPrefix       = "rev_"
	commentIDPrefix      = "cmt_"
)

var errContextRequired = errors.New("context is required")

func noopLogger(context.Context, string, map[string]any) {}

func loggerOrNoop(logger Logger) Logger {
	if logger == nil {
		return noopLogger
	}
	return logger
}

func utcClock(clock func() time.Time) func() time.Time {
	if clock == nil {
		clock = time.Now
	}
	return func() time.Time { return clock().UTC() }
}

func idGenerator(gen func() string) func() string {
	if gen != nil {
		return gen
	}
	return func() string { return ulid.Make().String() }
}

// StoreError is a storage failure classified under a domain kind. Its message is the kind alone;
// the driver error is only reachable through Cause and Unwrap.
type StoreError struct {
	kind  error
	cause error
}

func (e *StoreError) Error() string   { return e.kind.Error() }
func (e *StoreError) Unwrap() []error { return []error{e.kind, e.cause} }

// Cause returns the underlying storage error for logging.
func (e *StoreError) Cause() error { return e.cause }

// mapRepositoryError translates storage failures into domain kinds. Errors already carrying a
// domain kind (for instance returned by a transition function inside a transaction) pass through.
func mapRepositoryError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return &StoreError{kind: notFound, cause: err}
		case repoErr.IsConflict():
			return &StoreError{kind: domain.ErrConflict, cause: err}
		case repoErr.IsUnavailable():
			return &StoreError{kind: domain.ErrUnavailable, cause: err}
		}
	}
	return err
}

func isDomainError(err error) bool {
	for _, kind := range []error{
		domain.ErrNotFound, domain.ErrForbidden, domain.ErrConflict, domain.ErrInvalidInput,
		domain.ErrInvalidTransition, domain.ErrSelfReference, domain.ErrProductUnavailable,
		domain.ErrCategoryCyclicHierarchy,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func requireID(value, name string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, name)
	}
	return trimmed, nil
}

// inlineScheduler runs tasks synchronously; failures are logged and swallowed.
type inlineScheduler struct {
	logger Logger
}

func (s inlineScheduler) Enqueue(ctx context.Context, name string, fn func(context.Context) error) bool {
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		s.logger(ctx, "task.failed", map[string]any{"task": name, "error": err.Error()})
	}
	return true
}

func schedulerOrInline(scheduler TaskScheduler, logger Logger) TaskScheduler {
	if scheduler != nil {
		return scheduler
	}
	return inlineScheduler{logger: logger}
}

type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(input string) string { return input }

func sanitizerOrPassthrough(s TextSanitizer) TextSanitizer {
	if s == nil {
		return passthroughSanitizer{}
	}
	return s
}
