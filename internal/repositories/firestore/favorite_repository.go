package firestore

import (
	"context"
	"errors"
	"sort"

	"cloud.google.com/go/firestore"

	domain "github.com/friperie/api/internal/domain"
	pfirestore "github.com/friperie/api/internal/platform/firestore"
)

// FavoriteRepository stores one document per (user, product) pair.
type FavoriteRepository struct {
	provider  *pfirestore.Provider
	favorites pfirestore.Collection[favoriteDoc]
}

// NewFavoriteRepository binds the repository to provider.
func NewFavoriteRepository(provider *pfirestore.Provider) (*FavoriteRepository, error) {
	if provider == nil {
		return nil, errors.New("favorite repository requires firestore provider")
	}
	return &FavoriteRepository{
		provider:  provider,
		favorites: pfirestore.NewCollection[favoriteDoc](provider, favoritesCollection),
	}, nil
}

func favoriteDocID(userID, productID string) string {
	return userID + "_" + productID
}

func (r *FavoriteRepository) Find(ctx context.Context, userID, productID string) (domain.Favorite, bool, error) {
	doc, err := r.favorites.Get(ctx, favoriteDocID(userID, productID))
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Favorite{}, false, nil
		}
		return domain.Favorite{}, false, err
	}
	return doc.toDomain(), true, nil
}

// Insert fails with a conflict when the pair is already bookmarked.
func (r *FavoriteRepository) Insert(ctx context.Context, favorite domain.Favorite) error {
	return r.favorites.Create(ctx, favoriteDocID(favorite.UserID, favorite.ProductID), favoriteDoc{
		ID:        favorite.ID,
		UserID:    favorite.UserID,
		ProductID: favorite.ProductID,
		CreatedAt: favorite.CreatedAt.UTC(),
	})
}

func (r *FavoriteRepository) Delete(ctx context.Context, userID, productID string) error {
	return r.favorites.Delete(ctx, favoriteDocID(userID, productID))
}

func (r *FavoriteRepository) ListByUser(ctx context.Context, userID string) ([]domain.Favorite, error) {
	docs, err := r.favorites.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("userId", "==", userID)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Favorite, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// FavoritedAmong fetches the candidate pair documents directly rather than listing the user's set.
func (r *FavoriteRepository) FavoritedAmong(ctx context.Context, userID string, productIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(productIDs))
	if userID == "" || len(productIDs) == 0 {
		return result, nil
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	coll := client.Collection(favoritesCollection)
	refs := make([]*firestore.DocumentRef, 0, len(productIDs))
	for _, id := range productIDs {
		refs = append(refs, coll.Doc(favoriteDocID(userID, id)))
	}
	snaps, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("favorites.getAll", err)
	}
	for i, snap := range snaps {
		if snap.Exists() {
			result[productIDs[i]] = true
		}
	}
	return result, nil
}
