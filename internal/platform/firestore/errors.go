package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type errorKind int

const (
	kindOther errorKind = iota
	kindNotFound
	kindConflict
	kindUnavailable
)

var kindsByCode = map[codes.Code]errorKind{
	codes.NotFound:           kindNotFound,
	codes.AlreadyExists:      kindConflict,
	codes.FailedPrecondition: kindConflict,
	codes.Aborted:            kindConflict,
	codes.Unavailable:        kindUnavailable,
	codes.ResourceExhausted:  kindUnavailable,
	codes.Internal:           kindUnavailable,
	codes.DeadlineExceeded:   kindUnavailable,
}

// Error implements repositories.RepositoryError for Firestore failures.
type Error struct {
	op   string
	err  error
	kind errorKind
}

func (e *Error) Error() string {
	if e.op == "" {
		return e.err.Error()
	}
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *Error) Unwrap() error       { return e.err }
func (e *Error) IsNotFound() bool    { return e != nil && e.kind == kindNotFound }
func (e *Error) IsConflict() bool    { return e != nil && e.kind == kindConflict }
func (e *Error) IsUnavailable() bool { return e != nil && e.kind == kindUnavailable }

// NotFound builds a not-found error for documents the caller looked up itself.
func NotFound(op, what string) error {
	return &Error{op: op, err: errors.New(what + " not found"), kind: kindNotFound}
}

// Conflict builds a conflict error, for instance a uniqueness violation detected in a transaction.
func Conflict(op, what string) error {
	return &Error{op: op, err: errors.New(what), kind: kindConflict}
}

// WrapError classifies err by its gRPC status. Cancellation and already classified errors pass
// through unchanged; an expired deadline counts as unavailable.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{op: op, err: err, kind: kindUnavailable}
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	switch status.Code(err) {
	case codes.Canceled:
		return context.Canceled
	case codes.Unknown:
		// Errors returned by transaction callbacks keep their identity.
		if _, ok := status.FromError(err); !ok {
			return err
		}
	}
	return &Error{op: op, err: err, kind: kindsByCode[status.Code(err)]}
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
