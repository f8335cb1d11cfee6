package firestore

import (
	"context"
	"errors"
	"sort"

	"cloud.google.com/go/firestore"

	domain "github.com/friperie/api/internal/domain"
	pfirestore "github.com/friperie/api/internal/platform/firestore"
)

// AddressRepository stores addresses under users/{uid}/addresses.
type AddressRepository struct {
	provider *pfirestore.Provider
}

// NewAddressRepository binds the repository to provider.
func NewAddressRepository(provider *pfirestore.Provider) (*AddressRepository, error) {
	if provider == nil {
		return nil, errors.New("address repository requires firestore provider")
	}
	return &AddressRepository{provider: provider}, nil
}

func (r *AddressRepository) collection(ctx context.Context, userID string) (*firestore.CollectionRef, error) {
	if userID == "" {
		return nil, errors.New("address repository: user id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(usersCollection).Doc(userID).Collection(addressesSubcollection), nil
}

func (r *AddressRepository) List(ctx context.Context, userID string) ([]domain.Address, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return nil, err
	}
	docs, err := pfirestore.Collect[addressDoc](coll.Documents(ctx), "addresses.list")
	if err != nil {
		return nil, err
	}
	return sortedAddresses(docs), nil
}

// Replace reads the user's addresses, lets fn compute the new set and rewrites the collection to
// match in one transaction.
func (r *AddressRepository) Replace(ctx context.Context, userID string, fn func([]domain.Address) ([]domain.Address, error)) ([]domain.Address, error) {
	coll, err := r.collection(ctx, userID)
	if err != nil {
		return nil, err
	}
	var saved []domain.Address
	err = r.provider.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.Documents(coll).GetAll()
		if err != nil {
			return err
		}
		current := make([]addressDoc, 0, len(snaps))
		for _, snap := range snaps {
			doc, err := pfirestore.Decode[addressDoc](snap)
			if err != nil {
				return err
			}
			current = append(current, doc)
		}
		next, err := fn(sortedAddresses(current))
		if err != nil {
			return err
		}

		keep := make(map[string]struct{}, len(next))
		for _, address := range next {
			keep[address.ID] = struct{}{}
			if err := tx.Set(coll.Doc(address.ID), newAddressDoc(address)); err != nil {
				return err
			}
		}
		for _, snap := range snaps {
			if _, ok := keep[snap.Ref.ID]; !ok {
				if err := tx.Delete(snap.Ref); err != nil {
					return err
				}
			}
		}
		saved = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// sortedAddresses puts the default first, then oldest first.
func sortedAddresses(docs []addressDoc) []domain.Address {
	out := make([]domain.Address, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
