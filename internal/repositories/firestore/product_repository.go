package firestore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/friperie/api/internal/domain"
	pfirestore "github.com/friperie/api/internal/platform/firestore"
	"github.com/friperie/api/internal/platform/pagination"
	"github.com/friperie/api/internal/platform/textutil"
	"github.com/friperie/api/internal/repositories"
)

// Firestore caps "in" filters at 30 values.
const maxInValues = 30

// ProductRepository persists listings in the products collection.
type ProductRepository struct {
	provider *pfirestore.Provider
	products pfirestore.Collection[productDoc]
}

// NewProductRepository binds the repository to provider.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		provider: provider,
		products: pfirestore.NewCollection[productDoc](provider, productsCollection),
	}, nil
}

func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	return r.products.Create(ctx, product.ID, newProductDoc(product))
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.toDomain(), nil
}

// Mutate applies fn to the stored product inside a transaction.
func (r *ProductRepository) Mutate(ctx context.Context, productID string, fn repositories.ProductMutator) (domain.Product, error) {
	ref, err := r.products.Doc(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	var saved domain.Product
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, err := readProduct(tx, ref)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if err := tx.Set(ref, newProductDoc(next)); err != nil {
			return err
		}
		saved = next
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return saved, nil
}

func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	ref, err := r.products.Doc(ctx, productID)
	if err != nil {
		return err
	}
	_, err = ref.Delete(ctx, firestore.Exists)
	return pfirestore.WrapError("products.delete", err)
}

// Search narrows the query server side with the most selective equality filter available and
// applies the remaining predicates in memory before paging. Text and brand filters match
// substrings, so they are never pushed down to the keyword index.
func (r *ProductRepository) Search(ctx context.Context, filter domain.ProductFilter) (domain.CursorPage[domain.Product], error) {
	docs, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
		switch {
		case filter.SellerID != "":
			q = q.Where("sellerId", "==", filter.SellerID)
		case len(filter.CategoryIDs) > 0 && len(filter.CategoryIDs) <= maxInValues:
			q = q.Where("categoryId", "in", filter.CategoryIDs)
		case len(filter.Statuses) == 1:
			q = q.Where("status", "==", string(filter.Statuses[0]))
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	matches := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		if productMatches(doc, filter) {
			matches = append(matches, doc.toDomain())
		}
	}
	sortProducts(matches, filter.SortBy, filter.Order)

	page, next, err := pagination.Window(matches, filter.Pagination.PageToken, filter.Pagination.PageSize)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return domain.CursorPage[domain.Product]{Items: page, NextPageToken: next}, nil
}

func (r *ProductRepository) FindByIDs(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	coll := client.Collection(productsCollection)
	refs := make([]*firestore.DocumentRef, 0, len(productIDs))
	for _, id := range productIDs {
		refs = append(refs, coll.Doc(id))
	}
	snaps, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("products.getAll", err)
	}
	out := make([]domain.Product, 0, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		doc, err := pfirestore.Decode[productDoc](snap)
		if err != nil {
			return nil, err
		}
		out = append(out, doc.toDomain())
	}
	return out, nil
}

func readProduct(tx *firestore.Transaction, ref *firestore.DocumentRef) (domain.Product, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		return domain.Product{}, pfirestore.WrapError("products.get", err)
	}
	doc, err := pfirestore.Decode[productDoc](snap)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.toDomain(), nil
}

func productMatches(doc productDoc, filter domain.ProductFilter) bool {
	if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, domain.ProductStatus(doc.Status)) {
		return false
	}
	if len(filter.CategoryIDs) > 0 && !slices.Contains(filter.CategoryIDs, doc.CategoryID) {
		return false
	}
	if filter.SellerID != "" && doc.SellerID != filter.SellerID {
		return false
	}
	if filter.Size != "" && !strings.EqualFold(doc.Size, filter.Size) {
		return false
	}
	if filter.Brand != "" && !strings.Contains(textutil.Fold(doc.Brand), textutil.Fold(filter.Brand)) {
		return false
	}
	if filter.Condition != "" && doc.Condition != string(filter.Condition) {
		return false
	}
	if filter.MinPrice != nil && doc.Price < *filter.MinPrice {
		return false
	}
	if filter.MaxPrice != nil && doc.Price > *filter.MaxPrice {
		return false
	}
	if filter.Search != "" {
		haystack := textutil.Fold(doc.Title + " " + doc.Brand + " " + doc.Description)
		if !strings.Contains(haystack, textutil.Fold(filter.Search)) {
			return false
		}
	}
	return true
}

// sortProducts orders by the requested key with the id as tie breaker so pages stay stable.
func sortProducts(items []domain.Product, by domain.ProductSort, order domain.SortOrder) {
	asc := order == domain.SortAsc
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch {
		case by == domain.ProductSortPrice && a.Price != b.Price:
			return (a.Price < b.Price) == asc
		case by != domain.ProductSortPrice && !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.Before(b.CreatedAt) == asc
		}
		return (a.ID < b.ID) == asc
	})
}
