//go:build integration

package firestore

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
	pconfig "github.com/friperie/api/internal/platform/config"
	pfirestore "github.com/friperie/api/internal/platform/firestore"
	"github.com/friperie/api/internal/repositories"
)

func newEmulatorRegistry(t *testing.T) *Registry {
	t.Helper()
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "friperie-test", EmulatorHost: host})
	reg, err := NewRegistry(provider)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })
	return reg
}

func uniqueID(prefix string) string {
	return prefix + "_" + ulid.Make().String()
}

func TestOrderPlaceSerialisesBuyers(t *testing.T) {
	reg := newEmulatorRegistry(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	product := domain.Product{
		ID: uniqueID("prd"), Title: "Veste", Price: 40, CategoryID: "men", SellerID: "seller",
		Condition: domain.ConditionGood, Status: domain.ProductStatusForSale, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, reg.Products().Insert(ctx, product))

	const buyers = 8
	var placed int32
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := reg.Orders().Place(ctx, product.ID, func(p domain.Product) (domain.Order, domain.Product, error) {
				if p.Status != domain.ProductStatusForSale {
					return domain.Order{}, domain.Product{}, domain.ErrProductUnavailable
				}
				p.Status = domain.ProductStatusReserved
				return domain.Order{
					ID: uniqueID("ord"), ProductID: p.ID, BuyerID: fmt.Sprintf("buyer-%d", i), SellerID: p.SellerID,
					TotalPrice: p.Price, Status: domain.OrderStatusPending, CreatedAt: now, UpdatedAt: now,
				}, p, nil
			})
			if err == nil {
				atomic.AddInt32(&placed, 1)
				return
			}
			assert.ErrorIs(t, err, domain.ErrProductUnavailable)
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, 1, placed)

	stored, err := reg.Products().FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProductStatusReserved, stored.Status)
}

func TestConversationTripleIsUnique(t *testing.T) {
	reg := newEmulatorRegistry(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	conv := domain.Conversation{ID: uniqueID("cnv"), ProductID: uniqueID("prd"), BuyerID: "b", SellerID: "s", LastMessageAt: now, CreatedAt: now}
	require.NoError(t, reg.Conversations().Create(ctx, conv))

	dup := conv
	dup.ID = uniqueID("cnv")
	err := reg.Conversations().Create(ctx, dup)
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsConflict())

	found, err := reg.Conversations().FindByKey(ctx, conv.Key())
	require.NoError(t, err)
	assert.Equal(t, conv.ID, found.ID)

	later := now.Add(time.Minute)
	require.NoError(t, reg.Messages().Append(ctx, domain.Message{ID: uniqueID("msg"), ConversationID: conv.ID, SenderID: "b", Content: "bonjour", CreatedAt: later}))
	require.NoError(t, reg.Messages().Append(ctx, domain.Message{ID: uniqueID("msg"), ConversationID: conv.ID, SenderID: "s", Content: "salut", CreatedAt: later.Add(time.Second)}))

	bumped, err := reg.Conversations().FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, bumped.LastMessageAt.Equal(later.Add(time.Second)))

	changed, err := reg.Messages().MarkRead(ctx, conv.ID, "s")
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	changed, err = reg.Messages().MarkRead(ctx, conv.ID, "s")
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestFavoritesAndAddresses(t *testing.T) {
	reg := newEmulatorRegistry(t)
	ctx := context.Background()
	user := uniqueID("usr")
	productID := uniqueID("prd")

	fav := domain.Favorite{ID: uniqueID("fav"), UserID: user, ProductID: productID, CreatedAt: time.Now().UTC()}
	require.NoError(t, reg.Favorites().Insert(ctx, fav))
	_, ok, err := reg.Favorites().Find(ctx, user, productID)
	require.NoError(t, err)
	assert.True(t, ok)
	among, err := reg.Favorites().FavoritedAmong(ctx, user, []string{productID, "other"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{productID: true}, among)
	require.NoError(t, reg.Favorites().Delete(ctx, user, productID))
	_, ok, err = reg.Favorites().Find(ctx, user, productID)
	require.NoError(t, err)
	assert.False(t, ok)

	saved, err := reg.Addresses().Replace(ctx, user, func(current []domain.Address) ([]domain.Address, error) {
		assert.Empty(t, current)
		return []domain.Address{{ID: "adr_1", UserID: user, Street: "1 rue", City: "Lyon", Postal: "69001", Country: "FR", IsDefault: true}}, nil
	})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	_, err = reg.Addresses().Replace(ctx, user, func([]domain.Address) ([]domain.Address, error) { return nil, nil })
	require.NoError(t, err)
	list, err := reg.Addresses().List(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUserProfilesAndProductFeedback(t *testing.T) {
	reg := newEmulatorRegistry(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	user := uniqueID("usr")

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

	found, err := reg.Users().FindByIDs(ctx, []string{user, uniqueID("usr")})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, user, found[0].ID)

	productID := uniqueID("prd")
	first := domain.Review{ID: uniqueID("rev"), ProductID: productID, UserID: user, Rating: 4, CreatedAt: now}
	require.NoError(t, reg.Reviews().Insert(ctx, first))
	dup := first
	dup.ID = uniqueID("rev")
	require.True(t, errors.As(reg.Reviews().Insert(ctx, dup), &repoErr))
	assert.True(t, repoErr.IsConflict())

	for i, content := range []string{"Dispo ?", "Oui"} {
		comment := domain.Comment{ID: uniqueID("cmt"), ProductID: productID, UserID: user, Content: content, CreatedAt: now.Add(time.Duration(i) * time.Second)}
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
