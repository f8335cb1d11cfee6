package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	domain "github.com/friperie/api/internal/domain"
	pfirestore "github.com/friperie/api/internal/platform/firestore"
)

// UserRepository keeps one profile document per uid. Addresses live in a subcollection of the
// same document.
type UserRepository struct {
	provider *pfirestore.Provider
	users    pfirestore.Collection[userDoc]
}

// NewUserRepository binds the repository to provider.
func NewUserRepository(provider *pfirestore.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires firestore provider")
	}
	return &UserRepository{
		provider: provider,
		users:    pfirestore.NewCollection[userDoc](provider, usersCollection),
	}, nil
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	doc, err := r.users.Get(ctx, userID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return doc.toDomain(), nil
}

func (r *UserRepository) FindByIDs(ctx context.Context, userIDs []string) ([]domain.UserProfile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	coll := client.Collection(usersCollection)
	refs := make([]*firestore.DocumentRef, 0, len(userIDs))
	for _, id := range userIDs {
		refs = append(refs, coll.Doc(id))
	}
	snaps, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("users.getAll", err)
	}
	out := make([]domain.UserProfile, 0, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		doc, err := pfirestore.Decode[userDoc](snap)
		if err != nil {
			return nil, err
		}
		out = append(out, doc.toDomain())
	}
	return out, nil
}

// Upsert overwrites the profile document. Subcollections such as addresses are unaffected.
func (r *UserRepository) Upsert(ctx context.Context, profile domain.UserProfile) error {
	return r.users.Set(ctx, profile.ID, newUserDoc(profile))
}
