package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/friperie/api/internal/domain"
)

type conflictingFavorites struct {
	memFavorites
}

func (conflictingFavorites) Insert(context.Context, domain.Favorite) error {
	return errConflict("favorite")
}

func newFavoriteFixture(t *testing.T) (*memoryStore, FavoriteService) {
	t.Helper()
	store := newMemoryStore()
	store.putProduct(domain.Product{ID: "prd_a", Title: "A", SellerID: "seller"})
	store.putProduct(domain.Product{ID: "prd_b", Title: "B", SellerID: "seller"})
	svc, err := NewFavoriteService(FavoriteServiceDeps{
		Favorites:   memFavorites{store},
		Products:    memProducts{store},
		Clock:       func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) },
		IDGenerator: sequentialIDs("f"),
	})
	require.NoError(t, err)
	return store, svc
}

func TestFavoriteToggleTwiceRestoresState(t *testing.T) {
	ctx := context.Background()
	store, svc := newFavoriteFixture(t)

	on, err := svc.Toggle(ctx, "buyer", "prd_a")
	require.NoError(t, err)
	assert.True(t, on)
	assert.Len(t, store.favorites, 1)

	off, err := svc.Toggle(ctx, "buyer", "prd_a")
	require.NoError(t, err)
	assert.False(t, off)
	assert.Empty(t, store.favorites)
}

func TestFavoriteToggleUnknownProduct(t *testing.T) {
	_, svc := newFavoriteFixture(t)
	_, err := svc.Toggle(context.Background(), "buyer", "prd_missing")
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestFavoriteToggleConflictCountsAsFavorited(t *testing.T) {
	store := newMemoryStore()
	store.putProduct(domain.Product{ID: "prd_a", SellerID: "seller"})
	svc, err := NewFavoriteService(FavoriteServiceDeps{
		Favorites: conflictingFavorites{memFavorites{store}},
		Products:  memProducts{store},
	})
	require.NoError(t, err)

	on, err := svc.Toggle(context.Background(), "buyer", "prd_a")
	require.NoError(t, err)
	assert.True(t, on)
}

func TestFavoriteConcurrentTogglesKeepSinglePair(t *testing.T) {
	ctx := context.Background()
	store, svc := newFavoriteFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Toggle(ctx, "buyer", "prd_a"); err != nil {
				t.Errorf("toggle: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, len(store.favorites), 1)
}

func TestFavoriteListKeepsBookmarkOrder(t *testing.T) {
	ctx := context.Background()
	store, svc := newFavoriteFixture(t)

	for _, id := range []string{"prd_a", "prd_b"} {
		_, err := svc.Toggle(ctx, "buyer", id)
		require.NoError(t, err)
	}
	products, err := svc.List(ctx, "buyer")
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "prd_b", products[0].ID)
	assert.Equal(t, "prd_a", products[1].ID)

	delete(store.products, "prd_b")
	products, err = svc.List(ctx, "buyer")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "prd_a", products[0].ID)

	empty, err := svc.List(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
