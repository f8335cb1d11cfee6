package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/friperie/api/internal/domain"
)

type productFixture struct {
	store *memoryStore
	media *memoryMediaStore
	tasks *recordingScheduler
	svc   ProductService
}

func newProductFixture(t *testing.T) productFixture {
	t.Helper()
	store := newMemoryStore()
	store.categories = sampleCategories()
	categories, err := NewCategoryService(CategoryServiceDeps{Categories: memCategories{store}})
	require.NoError(t, err)

	mediaStore := newMemoryMediaStore()
	media, err := NewMediaService(MediaServiceDeps{Store: mediaStore})
	require.NoError(t, err)

	tasks := &recordingScheduler{}
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	svc, err := NewProductService(ProductServiceDeps{
		Products:   memProducts{store},
		Favorites:  memFavorites{store},
		Categories: categories,
		Media:      media,
		Tasks:      tasks,
		Sanitizer:  tagStripper{},
		Clock: func() time.Time {
			now = now.Add(time.Hour)
			return now
		},
		IDGenerator: sequentialIDs("p"),
	})
	require.NoError(t, err)
	return productFixture{store: store, media: mediaStore, tasks: tasks, svc: svc}
}

func (f productFixture) create(t *testing.T, cmd CreateProductCommand) domain.Product {
	t.Helper()
	if cmd.Condition == "" {
		cmd.Condition = domain.ConditionGood
	}
	if cmd.SellerID == "" {
		cmd.SellerID = "seller"
	}
	product, err := f.svc.Create(context.Background(), cmd)
	require.NoError(t, err)
	return product
}

func (f productFixture) approve(t *testing.T, id string) {
	t.Helper()
	_, err := f.svc.Moderate(context.Background(), ModerateProductCommand{ProductID: id, Decision: domain.ModerationApprove})
	require.NoError(t, err)
}

func TestProductServiceCreateStartsPending(t *testing.T) {
	f := newProductFixture(t)
	product := f.create(t, CreateProductCommand{Title: " <b>Chemise</b> lin ", Price: 18, CategoryID: "women-shirts"})
	assert.Equal(t, "prd_p001", product.ID)
	assert.Equal(t, "Chemise lin", product.Title)
	assert.Equal(t, domain.ProductStatusPendingApproval, product.Status)

	_, err := f.svc.Create(context.Background(), CreateProductCommand{SellerID: "seller", Title: "x", CategoryID: "ghost", Condition: domain.ConditionGood})
	require.ErrorIs(t, err, domain.ErrCategoryNotFound)

	_, err = f.svc.Create(context.Background(), CreateProductCommand{SellerID: "seller", Title: "", Price: -1, CategoryID: "men", Condition: "MINT"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestProductServiceModeration(t *testing.T) {
	ctx := context.Background()
	f := newProductFixture(t)
	product := f.create(t, CreateProductCommand{Title: "Blazer", CategoryID: "women-coats"})

	rejected, err := f.svc.Moderate(ctx, ModerateProductCommand{ProductID: product.ID, Decision: domain.ModerationReject, Comment: "photos floues"})
	require.NoError(t, err)
	assert.Equal(t, domain.ProductStatusRejected, rejected.Status)
	require.NotNil(t, rejected.ModerationComment)
	assert.Equal(t, "photos floues", *rejected.ModerationComment)

	_, err = f.svc.Moderate(ctx, ModerateProductCommand{ProductID: "prd_missing", Decision: domain.ModerationApprove})
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestProductServiceSearchExpandsCategoryAndHidesUnlisted(t *testing.T) {
	ctx := context.Background()
	f := newProductFixture(t)
	shirt := f.create(t, CreateProductCommand{Title: "Chemise", Price: 20, CategoryID: "women-shirts"})
	coat := f.create(t, CreateProductCommand{Title: "Manteau", Price: 80, CategoryID: "women-coats"})
	men := f.create(t, CreateProductCommand{Title: "Pull", Price: 15, CategoryID: "men"})
	pending := f.create(t, CreateProductCommand{Title: "Robe", Price: 30, CategoryID: "women-tops"})
	for _, id := range []string{shirt.ID, coat.ID, men.ID} {
		f.approve(t, id)
	}

	page, err := f.svc.Search(ctx, ProductQuery{CategoryID: "women", SortBy: domain.ProductSortPrice, Order: domain.SortAsc})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, shirt.ID, page.Items[0].ID)
	assert.Equal(t, coat.ID, page.Items[1].ID)

	mine, err := f.svc.Search(ctx, ProductQuery{SellerID: "seller"})
	require.NoError(t, err)
	assert.Len(t, mine.Items, 4, "sellers see every status of their own listings")

	pendingOnly, err := f.svc.Search(ctx, ProductQuery{SellerID: "seller", Status: domain.ProductStatusPendingApproval})
	require.NoError(t, err)
	require.Len(t, pendingOnly.Items, 1)
	assert.Equal(t, pending.ID, pendingOnly.Items[0].ID)

	_, err = f.svc.Search(ctx, ProductQuery{SortBy: "popularity"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	low, high := 50.0, 10.0
	_, err = f.svc.Search(ctx, ProductQuery{MinPrice: &low, MaxPrice: &high})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestProductServiceViewCarriesFavoriteFlag(t *testing.T) {
	ctx := context.Background()
	f := newProductFixture(t)
	product := f.create(t, CreateProductCommand{Title: "Sac", CategoryID: "women"})
	f.approve(t, product.ID)
	require.NoError(t, memFavorites{f.store}.Insert(ctx, domain.Favorite{ID: "fav_1", UserID: "buyer", ProductID: product.ID}))

	view, err := f.svc.Get(ctx, product.ID, "buyer")
	require.NoError(t, err)
	assert.True(t, view.IsFavorite)

	anonymous, err := f.svc.Get(ctx, product.ID, "")
	require.NoError(t, err)
	assert.False(t, anonymous.IsFavorite)

	page, err := f.svc.Search(ctx, ProductQuery{ViewerID: "buyer"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].IsFavorite)
}

func TestProductServiceUpdateOwnershipAndImageCleanup(t *testing.T) {
	ctx := context.Background()
	f := newProductFixture(t)
	media := MediaFile{Data: pngHeader}
	keep, err := f.svc.(*productService).media.Upload(ctx, "seller", media)
	require.NoError(t, err)
	drop, err := f.svc.(*productService).media.Upload(ctx, "seller", media)
	require.NoError(t, err)

	product := f.create(t, CreateProductCommand{Title: "Jean", CategoryID: "men", Images: []string{keep, drop, keep}})
	assert.Equal(t, []string{keep, drop}, product.Images)

	title := "Jean brut"
	_, err = f.svc.Update(ctx, UpdateProductCommand{ProductID: product.ID, ActorID: "intruder", Title: &title})
	require.ErrorIs(t, err, domain.ErrForbidden)

	images := []string{keep}
	updated, err := f.svc.Update(ctx, UpdateProductCommand{ProductID: product.ID, ActorID: "seller", Title: &title, Images: &images})
	require.NoError(t, err)
	assert.Equal(t, "Jean brut", updated.Title)
	assert.Equal(t, []string{keep}, updated.Images)
	assert.Equal(t, []string{drop}, f.media.deleted)
	assert.Contains(t, f.tasks.names, "product.images.cleanup")

	ghost := "ghost"
	_, err = f.svc.Update(ctx, UpdateProductCommand{ProductID: product.ID, ActorID: "seller", CategoryID: &ghost})
	require.ErrorIs(t, err, domain.ErrCategoryNotFound)
}

func TestProductServiceRejectsForeignUploads(t *testing.T) {
	ctx := context.Background()
	f := newProductFixture(t)
	victim, err := f.svc.(*productService).media.Upload(ctx, "victim", MediaFile{Data: pngHeader})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, CreateProductCommand{SellerID: "attacker", Title: "Copie", CategoryID: "men", Condition: domain.ConditionGood, Images: []string{victim}})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	own := f.create(t, CreateProductCommand{SellerID: "attacker", Title: "Pull", CategoryID: "men"})
	images := []string{victim}
	_, err = f.svc.Update(ctx, UpdateProductCommand{ProductID: own.ID, ActorID: "attacker", Images: &images})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestProductServiceDeleteLeavesForeignObjects(t *testing.T) {
	ctx := context.Background()
	f := newProductFixture(t)
	victim, err := f.svc.(*productService).media.Upload(ctx, "victim", MediaFile{Data: pngHeader})
	require.NoError(t, err)
	mine, err := f.svc.(*productService).media.Upload(ctx, "attacker", MediaFile{Data: pngHeader})
	require.NoError(t, err)

	// Seeded directly so the listing predates the upload ownership check.
	legacy := domain.Product{
		ID: "prd_legacy", Title: "Ancien", CategoryID: "men", Condition: domain.ConditionGood,
		Status: domain.ProductStatusForSale, SellerID: "attacker",
		Images: []string{victim, mine, "https://elsewhere.test/photo.png"},
	}
	require.NoError(t, memProducts{f.store}.Insert(ctx, legacy))

	require.NoError(t, f.svc.Delete(ctx, legacy.ID, "attacker"))
	assert.Equal(t, []string{mine}, f.media.deleted)
	assert.Contains(t, f.media.objects, victim)
}

func TestProductServiceDelete(t *testing.T) {
	ctx := context.Background()
	f := newProductFixture(t)
	product := f.create(t, CreateProductCommand{Title: "Veste", CategoryID: "men"})

	err := f.svc.Delete(ctx, product.ID, "buyer")
	require.ErrorIs(t, err, domain.ErrForbidden)

	require.NoError(t, f.svc.Delete(ctx, product.ID, "seller"))
	_, err = f.svc.Get(ctx, product.ID, "")
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}
