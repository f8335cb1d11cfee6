package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Collection offers typed access to one top-level collection. T is the Firestore document
// struct, not the domain type.
type Collection[T any] struct {
	provider *Provider
	name     string
}

// NewCollection binds name on provider.
func NewCollection[T any](provider *Provider, name string) Collection[T] {
	return Collection[T]{provider: provider, name: name}
}

// Name returns the collection name.
func (c Collection[T]) Name() string { return c.name }

// Ref returns the collection reference.
func (c Collection[T]) Ref(ctx context.Context) (*firestore.CollectionRef, error) {
	if c.provider == nil {
		return nil, errors.New("firestore: provider is nil")
	}
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(c.name), nil
}

// Doc returns the reference of document id.
func (c Collection[T]) Doc(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	if id == "" {
		return nil, fmt.Errorf("firestore: %s document id is required", c.name)
	}
	ref, err := c.Ref(ctx)
	if err != nil {
		return nil, err
	}
	return ref.Doc(id), nil
}

// Get decodes document id.
func (c Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return zero, err
	}
	snap, err := doc.Get(ctx)
	if err != nil {
		return zero, WrapError(c.op("get"), err)
	}
	return Decode[T](snap)
}

// Create writes document id and fails with a conflict when it already exists.
func (c Collection[T]) Create(ctx context.Context, id string, value T) error {
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	_, err = doc.Create(ctx, value)
	return WrapError(c.op("create"), err)
}

// Set overwrites document id.
func (c Collection[T]) Set(ctx context.Context, id string, value T) error {
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	_, err = doc.Set(ctx, value)
	return WrapError(c.op("set"), err)
}

// Delete removes document id. Deleting a missing document succeeds.
func (c Collection[T]) Delete(ctx context.Context, id string) error {
	doc, err := c.Doc(ctx, id)
	if err != nil {
		return err
	}
	_, err = doc.Delete(ctx)
	return WrapError(c.op("delete"), err)
}

// Query runs build over the collection and decodes every match.
func (c Collection[T]) Query(ctx context.Context, build func(firestore.Query) firestore.Query) ([]T, error) {
	ref, err := c.Ref(ctx)
	if err != nil {
		return nil, err
	}
	query := ref.Query
	if build != nil {
		query = build(query)
	}
	return Collect[T](query.Documents(ctx), c.op("query"))
}

// Collect drains iter and decodes each snapshot.
func Collect[T any](iter *firestore.DocumentIterator, op string) ([]T, error) {
	defer iter.Stop()
	var out []T
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, WrapError(op, err)
		}
		value, err := Decode[T](snap)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
}

// Decode populates T from snap.
func Decode[T any](snap *firestore.DocumentSnapshot) (T, error) {
	var value T
	if err := snap.DataTo(&value); err != nil {
		return value, fmt.Errorf("firestore: decode %s: %w", snap.Ref.Path, err)
	}
	return value, nil
}

func (c Collection[T]) op(action string) string {
	return c.name + "." + action
}
