package domain

import "errors"

// Error kinds shared by every layer. Services wrap them with context using fmt.Errorf("%w: ...").
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrSelfReference      = errors.New("self reference")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrUnavailable        = errors.New("backend unavailable")

	ErrProductNotFound      = notFound("product")
	ErrOrderNotFound        = notFound("order")
	ErrConversationNotFound = notFound("conversation")
	ErrCategoryNotFound     = notFound("category")
	ErrAddressNotFound      = notFound("address")
	ErrUserNotFound         = notFound("user")

	ErrCategoryCyclicHierarchy = errors.New("category: cyclic hierarchy")
)

type entityNotFound struct {
	entity string
}

func notFound(entity string) error { return &entityNotFound{entity: entity} }

func (e *entityNotFound) Error() string { return e.entity + ": not found" }

// Is lets errors.Is(err, ErrNotFound) match every entity specific sentinel.
func (e *entityNotFound) Is(target error) bool { return target == ErrNotFound }
