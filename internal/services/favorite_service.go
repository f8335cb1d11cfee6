package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/repositories"
)

// FavoriteServiceDeps bundles collaborators required to construct the favorite service.
type FavoriteServiceDeps struct {
	Favorites   repositories.FavoriteRepository
	Products    repositories.ProductRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      Logger
}

type favoriteService struct {
	favorites repositories.FavoriteRepository
	products  repositories.ProductRepository
	clock     func() time.Time
	newID     func() string
	logger    Logger
}

// NewFavoriteService wires dependencies into a FavoriteService implementation.
func NewFavoriteService(deps FavoriteServiceDeps) (FavoriteService, error) {
	if deps.Favorites == nil {
		return nil, errors.New("favorite service: favorite repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("favorite service: product repository is required")
	}
	return &favoriteService{
		favorites: deps.Favorites,
		products:  deps.Products,
		clock:     utcClock(deps.Clock),
		newID:     idGenerator(deps.IDGenerator),
		logger:    loggerOrNoop(deps.Logger),
	}, nil
}

func (s *favoriteService) Toggle(ctx context.Context, userID, productID string) (bool, error) {
	user, err := requireID(userID, "user id")
	if err != nil {
		return false, err
	}
	pid, err := requireID(productID, "product id")
	if err != nil {
		return false, err
	}
	if _, err := s.products.FindByID(ctx, pid); err != nil {
		return false, mapRepositoryError(err, domain.ErrProductNotFound)
	}

	_, exists, err := s.favorites.Find(ctx, user, pid)
	if err != nil {
		return false, mapRepositoryError(err, domain.ErrProductNotFound)
	}
	if exists {
		if err := s.favorites.Delete(ctx, user, pid); err != nil && !isRepoNotFound(err) {
			return false, mapRepositoryError(err, domain.ErrProductNotFound)
		}
		s.logger(ctx, "favorite.removed", map[string]any{"user": user, "product": pid})
		return false, nil
	}

	err = s.favorites.Insert(ctx, Favorite{
		ID:        favoriteIDPrefix + s.newID(),
		UserID:    user,
		ProductID: pid,
		CreatedAt: s.clock(),
	})
	// A concurrent toggle that already inserted the pair leaves the product favorited.
	if err != nil && !isRepoConflict(err) {
		return false, mapRepositoryError(err, domain.ErrProductNotFound)
	}
	s.logger(ctx, "favorite.added", map[string]any{"user": user, "product": pid})
	return true, nil
}

func (s *favoriteService) List(ctx context.Context, userID string) ([]Product, error) {
	user, err := requireID(userID, "user id")
	if err != nil {
		return nil, err
	}
	favorites, err := s.favorites.ListByUser(ctx, user)
	if err != nil {
		return nil, mapRepositoryError(err, domain.ErrProductNotFound)
	}
	if len(favorites) == 0 {
		return []Product{}, nil
	}
	ids := make([]string, len(favorites))
	for i, favorite := range favorites {
		ids[i] = favorite.ProductID
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, mapRepositoryError(err, domain.ErrProductNotFound)
	}
	byID := make(map[string]Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}
	// Keep bookmark order; products deleted since are skipped.
	out := make([]Product, 0, len(ids))
	for _, id := range ids {
		if product, ok := byID[id]; ok {
			out = append(out, product)
		}
	}
	return out, nil
}
