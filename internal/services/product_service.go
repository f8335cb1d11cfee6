package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/platform/storage"
	"github.com/friperie/api/internal/repositories"
)

const (
	maxProductTitleLength       = 120
	maxProductDescriptionLength = 4000
	maxProductImages            = 8
	defaultProductPageSize      = 24
	maxProductPageSize          = 100
)

// ProductServiceDeps bundles collaborators required to construct the product service.
type ProductServiceDeps struct {
	Products    repositories.ProductRepository
	Favorites   repositories.FavoriteRepository
	Categories  CategoryService
	Media       MediaService
	Reviews     ReviewService
	Tasks       TaskScheduler
	Sanitizer   TextSanitizer
	Clock       func() time.Time
	IDGenerator func() string
	Logger      Logger
}

type productService struct {
	products   repositories.ProductRepository
	favorites  repositories.FavoriteRepository
	categories CategoryService
	media      MediaService
	reviews    ReviewService
	tasks      TaskScheduler
	sanitizer  TextSanitizer
	clock      func() time.Time
	newID      func() string
	logger     Logger
}

// NewProductService wires dependencies into a ProductService implementation.
func NewProductService(deps ProductServiceDeps) (ProductService, error) {
	if deps.Products == nil {
		return nil, errors.New("product service: product repository is required")
	}
	if deps.Categories == nil {
		return nil, errors.New("product service: category service is required")
	}
	logger := loggerOrNoop(deps.Logger)
	return &productService{
		products:   deps.Products,
		favorites:  deps.Favorites,
		categories: deps.Categories,
		media:      deps.Media,
		reviews:    deps.Reviews,
		tasks:      schedulerOrInline(deps.Tasks, logger),
		sanitizer:  sanitizerOrPassthrough(deps.Sanitizer),
		clock:      utcClock(deps.Clock),
		newID:      idGenerator(deps.IDGenerator),
		logger:     logger,
	}, nil
}

func (s *productService) Create(ctx context.Context, cmd CreateProductCommand) (Product, error) {
	sellerID, err := requireID(cmd.SellerID, "seller id")
	if err != nil {
		return Product{}, err
	}
	product := Product{
		ID:          productIDPrefix + s.newID(),
		Title:       s.sanitizer.Sanitize(strings.TrimSpace(cmd.Title)),
		Description: s.sanitizer.Sanitize(strings.TrimSpace(cmd.Description)),
		Price:       cmd.Price,
		CategoryID:  strings.TrimSpace(cmd.CategoryID),
		Size:        strings.TrimSpace(cmd.Size),
		Brand:       strings.TrimSpace(cmd.Brand),
		Condition:   cmd.Condition,
		Status:      domain.ProductStatusPendingApproval,
		SellerID:    sellerID,
		Images:      cleanImages(cmd.Images),
	}
	if err := validateProduct(product); err != nil {
		return Product{}, err
	}
	if _, err := s.categories.Get(ctx, product.CategoryID); err != nil {
		return Product{}, err
	}

	now := s.clock()
	product.CreatedAt = now
	product.UpdatedAt = now
	if err := s.products.Insert(ctx, product); err != nil {
		return Product{}, mapRepositoryError(err, domain.ErrProductNotFound)
	}
	s.logger(ctx, "product.created", map[string]any{"product": product.ID, "seller": sellerID})
	return product, nil
}

func (s *productService) Get(ctx context.Context, productID, viewerID string) (ProductView, error) {
	id, err := requireID(productID, "product id")
	if err != nil {
		return ProductView{}, err
	}
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return ProductView{}, mapRepositoryError(err, domain.ErrProductNotFound)
	}
	views, err := s.decorate(ctx, viewerID, []Product{product})
	if err != nil {
		return ProductView{}, err
	}
	view := views[0]
	if s.reviews != nil {
		view.Reviews, view.Comments, err = s.reviews.ForProduct(ctx, product.ID)
		if err != nil {
			return ProductView{}, err
		}
	}
	return view, nil
}

func (s *productService) Search(ctx context.Context, query ProductQuery) (domain.CursorPage[ProductView], error) {
	filter := domain.ProductFilter{
		Search:     strings.TrimSpace(query.Search),
		Size:       strings.TrimSpace(query.Size),
		Brand:      strings.TrimSpace(query.Brand),
		Condition:  query.Condition,
		SellerID:   strings.TrimSpace(query.SellerID),
		MinPrice:   query.MinPrice,
		MaxPrice:   query.MaxPrice,
		SortBy:     query.SortBy,
		Order:      query.Order,
		Pagination: query.Pagination,
	}
	if filter.Condition != "" && !filter.Condition.Valid() {
		return domain.CursorPage[ProductView]{}, fmt.Errorf("%w: unknown condition %q", domain.ErrInvalidInput, filter.Condition)
	}
	switch {
	case query.Status != "":
		if !query.Status.Valid() {
			return domain.CursorPage[ProductView]{}, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, query.Status)
		}
		filter.Statuses = []domain.ProductStatus{query.Status}
	case filter.SellerID == "":
		filter.Statuses = []domain.ProductStatus{domain.ProductStatusForSale}
	}
	switch filter.SortBy {
	case "":
		filter.SortBy = domain.ProductSortCreatedAt
	case domain.ProductSortCreatedAt, domain.ProductSortPrice:
	default:
		return domain.CursorPage[ProductView]{}, fmt.Errorf("%w: unknown sort %q", domain.ErrInvalidInput, filter.SortBy)
	}
	switch filter.Order {
	case "":
		filter.Order = domain.SortDesc
	case domain.SortAsc, domain.SortDesc:
	default:
		return domain.CursorPage[ProductView]{}, fmt.Errorf("%w: unknown order %q", domain.ErrInvalidInput, filter.Order)
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return domain.CursorPage[ProductView]{}, fmt.Errorf("%w: minPrice exceeds maxPrice", domain.ErrInvalidInput)
	}
	switch {
	case filter.Pagination.PageSize <= 0:
		filter.Pagination.PageSize = defaultProductPageSize
	case filter.Pagination.PageSize > maxProductPageSize:
		filter.Pagination.PageSize = maxProductPageSize
	}

	if categoryID := strings.TrimSpace(query.CategoryID); categoryID != "" {
		ids, err := s.categories.ResolveDescendants(ctx, categoryID)
		if err != nil {
			return domain.CursorPage[ProductView]{}, err
		}
		filter.CategoryIDs = ids
	}

	page, err := s.products.Search(ctx, filter)
	if err != nil {
		return domain.CursorPage[ProductView]{}, mapRepositoryError(err, domain.ErrProductNotFound)
	}
	views, err := s.decorate(ctx, query.ViewerID, page.Items)
	if err != nil {
		return domain.CursorPage[ProductView]{}, err
	}
	return domain.CursorPage[ProductView]{Items: views, NextPageToken: page.NextPageToken}, nil
}

func (s *productService) Update(ctx context.Context, cmd UpdateProductCommand) (Product, error) {
	id, err := requireID(cmd.ProductID, "product id")
	if err != nil {
		return Product{}, err
	}
	actor, err := requireID(cmd.ActorID, "actor id")
	if err != nil {
		return Product{}, err
	}
	if cmd.CategoryID != nil {
		if _, err := s.categories.Get(ctx, *cmd.CategoryID); err != nil {
			return Product{}, err
		}
	}

	var previousImages []string
	updated, err := s.products.Mutate(ctx, id, func(current Product) (Product, error) {
		if current.SellerID != actor {
			return Product{}, fmt.Errorf("%w: only the seller can edit product %s", domain.ErrForbidden, id)
		}
		previousImages = slices.Clone(current.Images)
		next := current
		if cmd.Title != nil {
			next.Title = s.sanitizer.Sanitize(strings.TrimSpace(*cmd.Title))
		}
		if cmd.Description != nil {
			next.Description = s.sanitizer.Sanitize(strings.TrimSpace(*cmd.Description))
		}
		if cmd.Price != nil {
			next.Price = *cmd.Price
		}
		if cmd.CategoryID != nil {
			next.CategoryID = strings.TrimSpace(*cmd.CategoryID)
		}
		if cmd.Size != nil {
			next.Size = strings.TrimSpace(*cmd.Size)
		}
		if cmd.Brand != nil {
			next.Brand = strings.TrimSpace(*cmd.Brand)
		}
		if cmd.Condition != nil {
			next.Condition = *cmd.Condition
		}
		if cmd.Images != nil {
			next.Images = cleanImages(*cmd.Images)
		}
		if err := validateProduct(next); err != nil {
			return Product{}, err
		}
		next.UpdatedAt = s.clock()
		return next, nil
	})
	if err != nil {
		return Product{}, mapRepositoryError(err, domain.ErrProductNotFound)
	}

	if cmd.Images != nil {
		s.scheduleImageCleanup(ctx, updated, removedImages(previousImages, updated.Images))
	}
	return updated, nil
}

func (s *productService) Delete(ctx context.Context, productID, actorID string) error {
	id, err := requireID(productID, "product id")
	if err != nil {
		return err
	}
	actor, err := requireID(actorID, "actor id")
	if err != nil {
		return err
	}
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return mapRepositoryError(err, domain.ErrProductNotFound)
	}
	if product.SellerID != actor {
		return fmt.Errorf("%w: only the seller can delete product %s", domain.ErrForbidden, id)
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return mapRepositoryError(err, domain.ErrProductNotFound)
	}
	s.logger(ctx, "product.deleted", map[string]any{"product": id, "seller": actor, "status": string(product.Status)})
	s.scheduleImageCleanup(ctx, product, product.Images)
	return nil
}

func (s *productService) Moderate(ctx context.Context, cmd ModerateProductCommand) (Product, error) {
	id, err := requireID(cmd.ProductID, "product id")
	if err != nil {
		return Product{}, err
	}
	moderated, err := s.products.Mutate(ctx, id, func(current Product) (Product, error) {
		return domain.ModerateProduct(current, cmd.Decision, s.sanitizer.Sanitize(cmd.Comment), s.clock())
	})
	if err != nil {
		return Product{}, mapRepositoryError(err, domain.ErrProductNotFound)
	}
	s.logger(ctx, "product.moderated", map[string]any{
		"product":  id,
		"decision": string(cmd.Decision),
		"status":   string(moderated.Status),
		"reviewer": cmd.Reviewer,
	})
	return moderated, nil
}

func (s *productService) decorate(ctx context.Context, viewerID string, products []Product) ([]ProductView, error) {
	views := make([]ProductView, len(products))
	for i, product := range products {
		views[i] = ProductView{Product: product}
	}
	viewer := strings.TrimSpace(viewerID)
	if viewer == "" || s.favorites == nil || len(products) == 0 {
		return views, nil
	}
	ids := make([]string, len(products))
	for i, product := range products {
		ids[i] = product.ID
	}
	favorited, err := s.favorites.FavoritedAmong(ctx, viewer, ids)
	if err != nil {
		return nil, mapRepositoryError(err, domain.ErrProductNotFound)
	}
	for i := range views {
		views[i].IsFavorite = favorited[views[i].ID]
	}
	return views, nil
}

// scheduleImageCleanup only deletes objects uploaded under the seller's own prefix.
func (s *productService) scheduleImageCleanup(ctx context.Context, product Product, candidates []string) {
	if s.media == nil {
		return
	}
	var urls []string
	for _, url := range candidates {
		if owner, ok := storage.ProductImageOwner(url); ok && owner == product.SellerID {
			urls = append(urls, url)
		}
	}
	if len(urls) == 0 {
		return
	}
	productID := product.ID
	accepted := s.tasks.Enqueue(ctx, "product.images.cleanup", func(taskCtx context.Context) error {
		return s.media.DeleteMany(taskCtx, urls)
	})
	if !accepted {
		s.logger(ctx, "product.images.cleanup.dropped", map[string]any{"product": productID, "count": len(urls)})
	}
}

func validateProduct(product Product) error {
	var problems []string
	switch {
	case product.Title == "":
		problems = append(problems, "title is required")
	case len([]rune(product.Title)) > maxProductTitleLength:
		problems = append(problems, fmt.Sprintf("title exceeds %d characters", maxProductTitleLength))
	}
	if len([]rune(product.Description)) > maxProductDescriptionLength {
		problems = append(problems, fmt.Sprintf("description exceeds %d characters", maxProductDescriptionLength))
	}
	if product.Price < 0 {
		problems = append(problems, "price must be >= 0")
	}
	if product.CategoryID == "" {
		problems = append(problems, "category id is required")
	}
	if !product.Condition.Valid() {
		problems = append(problems, fmt.Sprintf("unknown condition %q", product.Condition))
	}
	if len(product.Images) > maxProductImages {
		problems = append(problems, fmt.Sprintf("at most %d images", maxProductImages))
	}
	for _, url := range product.Images {
		if owner, ok := storage.ProductImageOwner(url); ok && owner != product.SellerID {
			problems = append(problems, fmt.Sprintf("image %s belongs to another seller", url))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

func cleanImages(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, url := range urls {
		if trimmed := strings.TrimSpace(url); trimmed != "" && !slices.Contains(out, trimmed) {
			out = append(out, trimmed)
		}
	}
	return out
}

func removedImages(before, after []string) []string {
	var removed []string
	for _, url := range before {
		if !slices.Contains(after, url) {
			removed = append(removed, url)
		}
	}
	return removed
}
