package firestore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestWrapErrorClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		code        codes.Code
		notFound    bool
		conflict    bool
		unavailable bool
	}{
		{codes.NotFound, true, false, false},
		{codes.AlreadyExists, false, true, false},
		{codes.Aborted, false, true, false},
		{codes.Unavailable, false, false, true},
		{codes.PermissionDenied, false, false, false},
	}
	for _, tc := range cases {
		err := WrapError("products.get", status.Error(tc.code, "boom"))
		var fsErr *Error
		if !errors.As(err, &fsErr) {
			t.Fatalf("%s: expected *Error, got %T", tc.code, err)
		}
		if fsErr.IsNotFound() != tc.notFound || fsErr.IsConflict() != tc.conflict || fsErr.IsUnavailable() != tc.unavailable {
			t.Fatalf("%s: unexpected classification %+v", tc.code, fsErr)
		}
	}
}

func TestWrapErrorPassesThroughCallbackErrors(t *testing.T) {
	sentinel := errors.New("product unavailable")
	wrapped := fmt.Errorf("place: %w", sentinel)
	if got := WrapError("transaction", wrapped); got != wrapped {
		t.Fatalf("expected callback error unchanged, got %v", got)
	}
	if got := WrapError("x", context.Canceled); !errors.Is(got, context.Canceled) {
		t.Fatalf("expected context error, got %v", got)
	}
	if got := WrapError("x", status.Error(codes.Canceled, "gone")); !errors.Is(got, context.Canceled) {
		t.Fatalf("expected canceled status to map to context.Canceled, got %v", got)
	}
	nf := NotFound("orders.get", "order")
	if got := WrapError("outer", nf); got != nf {
		t.Fatal("classified errors must not be re-wrapped")
	}
}

func TestWrapErrorTreatsExpiredDeadlineAsUnavailable(t *testing.T) {
	err := WrapError("orders.place", fmt.Errorf("commit: %w", context.DeadlineExceeded))
	var fsErr *Error
	if !errors.As(err, &fsErr) || !fsErr.IsUnavailable() {
		t.Fatalf("expected unavailable classification, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("deadline cause must stay reachable")
	}
}
