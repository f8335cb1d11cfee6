package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/platform/config"
	ppostgres "github.com/friperie/api/internal/platform/postgres"
	"github.com/friperie/api/internal/repositories"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dsn := os.Getenv("API_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("API_TEST_POSTGRES_DSN not set")
	}
	db, err := ppostgres.Open(config.PostgresConfig{DSN: dsn, MaxOpenConns: 8})
	require.NoError(t, err)
	require.NoError(t, Migrate(context.Background(), db))
	reg, err := NewRegistry(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })
	return reg
}

func newID(prefix string) string { return prefix + "_" + ulid.Make().String() }

func insertProduct(t *testing.T, reg *Registry, mutate func(*domain.Product)) domain.Product {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	p := domain.Product{
		ID: newID("prd"), Title: "Veste en jean", Brand: "Levi's", Price: 35, CategoryID: "men", Size: "L",
		Condition: domain.ConditionGood, Status: domain.ProductStatusForSale, SellerID: newID("usr"),
		Images: []string{"https://media.test/a.png"}, CreatedAt: now, UpdatedAt: now,
	}
	if mutate != nil {
		mutate(&p)
	}
	require.NoError(t, reg.Products().Insert(context.Background(), p))
	return p
}

func TestProductSearchPagesAndFilters(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	seller := newID("usr")
	for i := 0; i < 3; i++ {
		insertProduct(t, reg, func(p *domain.Product) {
			p.SellerID = seller
			p.Price = float64(10 * (i + 1))
			p.Title = fmt.Sprintf("Robe d'été %d", i)
		})
	}
	insertProduct(t, reg, func(p *domain.Product) { p.SellerID = seller; p.Status = domain.ProductStatusSold })

	filter := domain.ProductFilter{
		SellerID: seller, Search: "ROBE D'ETE",
		Statuses: []domain.ProductStatus{domain.ProductStatusForSale},
		SortBy:   domain.ProductSortPrice, Order: domain.SortAsc,
		Pagination: domain.Pagination{PageSize: 2},
	}
	first, err := reg.Products().Search(ctx, filter)
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, 10.0, first.Items[0].Price)
	require.NotEmpty(t, first.NextPageToken)

	filter.Pagination.PageToken = first.NextPageToken
	second, err := reg.Products().Search(ctx, filter)
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, 30.0, second.Items[0].Price)
	assert.Empty(t, second.NextPageToken)

	filter.Pagination.PageToken = "!!"
	_, err = reg.Products().Search(ctx, filter)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestProductSearchMatchesSubstrings(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	seller := newID("usr")
	jeans := insertProduct(t, reg, func(p *domain.Product) { p.SellerID = seller; p.Brand = "Sézane" })
	insertProduct(t, reg, func(p *domain.Product) { p.SellerID = seller; p.Title = "Pull marin"; p.Brand = "Armor Lux" })

	byBrand, err := reg.Products().Search(ctx, domain.ProductFilter{SellerID: seller, Brand: "ZAN"})
	require.NoError(t, err)
	require.Len(t, byBrand.Items, 1)
	assert.Equal(t, jeans.ID, byBrand.Items[0].ID)

	partial, err := reg.Products().Search(ctx, domain.ProductFilter{SellerID: seller, Search: "jea"})
	require.NoError(t, err)
	require.Len(t, partial.Items, 1)
	assert.Equal(t, jeans.ID, partial.Items[0].ID)
}

func TestOrderPlaceLocksProduct(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	product := insertProduct(t, reg, nil)

	var placed int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := reg.Orders().Place(ctx, product.ID, func(p domain.Product) (domain.Order, domain.Product, error) {
				if p.Status != domain.ProductStatusForSale {
					return domain.Order{}, domain.Product{}, domain.ErrProductUnavailable
				}
				p.Status = domain.ProductStatusReserved
				now := time.Now().UTC()
				return domain.Order{ID: newID("ord"), ProductID: p.ID, BuyerID: fmt.Sprintf("b%d", i), SellerID: p.SellerID,
					TotalPrice: p.Price, Status: domain.OrderStatusPending, CreatedAt: now, UpdatedAt: now}, p, nil
			})
			if err == nil {
				atomic.AddInt32(&placed, 1)
			}
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, 1, placed)

	_, err := reg.Orders().FindByID(ctx, "ord_missing")
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsNotFound())
}

func TestConversationUniquenessAndMessages(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	conv := domain.Conversation{ID: newID("cnv"), ProductID: newID("prd"), BuyerID: "b", SellerID: "s", LastMessageAt: now, CreatedAt: now}
	require.NoError(t, reg.Conversations().Create(ctx, conv))

	dup := conv
	dup.ID = newID("cnv")
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(reg.Conversations().Create(ctx, dup), &repoErr))
	assert.True(t, repoErr.IsConflict())

	require.NoError(t, reg.Messages().Append(ctx, domain.Message{ID: newID("msg"), ConversationID: conv.ID, SenderID: "b", Content: "dispo ?", CreatedAt: now.Add(time.Minute)}))
	require.NoError(t, reg.Messages().Append(ctx, domain.Message{ID: newID("msg"), ConversationID: conv.ID, SenderID: "b", Content: "?", CreatedAt: now.Add(2 * time.Minute)}))

	got, err := reg.Conversations().FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, got.LastMessageAt.Equal(now.Add(2*time.Minute)))

	n, err := reg.Messages().MarkRead(ctx, conv.ID, "s")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = reg.Messages().MarkRead(ctx, conv.ID, "b")
	require.NoError(t, err)
	assert.Zero(t, n)

	err = reg.Messages().Append(ctx, domain.Message{ID: newID("msg"), ConversationID: "cnv_missing", SenderID: "b", Content: "x", CreatedAt: now})
	require.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsNotFound())
}

func TestFavoriteConflictAndAddressReplace(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	user := newID("usr")
	fav := domain.Favorite{ID: newID("fav"), UserID: user, ProductID: "prd_x", CreatedAt: time.Now().UTC()}
	require.NoError(t, reg.Favorites().Insert(ctx, fav))
	fav.ID = newID("fav")
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(reg.Favorites().Insert(ctx, fav), &repoErr))
	assert.True(t, repoErr.IsConflict())

	among, err := reg.Favorites().FavoritedAmong(ctx, user, []string{"prd_x", "prd_y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"prd_x": true}, among)

	now := time.Now().UTC()
	home, work := newID("adr"), newID("adr")
	_, err = reg.Addresses().Replace(ctx, user, func([]domain.Address) ([]domain.Address, error) {
		return []domain.Address{
			{ID: home, UserID: user, Street: "1 rue A", City: "Paris", Postal: "75001", Country: "FR", IsDefault: true, CreatedAt: now, UpdatedAt: now},
			{ID: work, UserID: user, Street: "2 rue B", City: "Nantes", Postal: "44000", Country: "FR", CreatedAt: now, UpdatedAt: now},
		}, nil
	})
	require.NoError(t, err)
	_, err = reg.Addresses().Replace(ctx, user, func(current []domain.Address) ([]domain.Address, error) {
		require.Len(t, current, 2)
		current[0].IsDefault, current[1].IsDefault = false, true
		return current, nil
	})
	require.NoError(t, err)
	list, err := reg.Addresses().List(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, work, list[0].ID)
}

func TestUserProfilesAndProductFeedback(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	user := newID("usr")

	_, err := reg.Users().FindByID(ctx, user)
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsNotFound())

	profile := domain.UserProfile{ID: user, FirstName: "Ana", Bio: "Vintage", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, reg.Users().Upsert(ctx, profile))
	profile.LastName = "Diaz"
	require.NoError(t, reg.Users().Upsert(ctx, profile))
	got, err := reg.Users().FindByID(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "Diaz", got.LastName)

	found, err := reg.Users().FindByIDs(ctx, []string{user, newID("usr")})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, user, found[0].ID)

	productID := newID("prd")
	first := domain.Review{ID: newID("rev"), ProductID: productID, UserID: user, Rating: 4, CreatedAt: now}
	require.NoError(t, reg.Reviews().Insert(ctx, first))
	dup := first
	dup.ID = newID("rev")
	require.True(t, errors.As(reg.Reviews().Insert(ctx, dup), &repoErr))
	assert.True(t, repoErr.IsConflict())

	for i, content := range []string{"Dispo ?", "Oui"} {
		comment := domain.Comment{ID: newID("cmt"), ProductID: productID, UserID: user, Content: content, CreatedAt: now.Add(time.Duration(i) * time.Second)}
		require.NoError(t, reg.Comments().Insert(ctx, comment))
	}
	reviews, err := reg.Reviews().ListByProduct(ctx, productID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, 4, reviews[0].Rating)
	comments, err := reg.Comments().ListByProduct(ctx, productID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "Dispo ?", comments[0].Content)
}
