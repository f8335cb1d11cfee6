package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/platform/pagination"
	ppostgres "github.com/friperie/api/internal/platform/postgres"
	"github.com/friperie/api/internal/platform/textutil"
	"github.com/friperie/api/internal/repositories"
)

// CategoryRepository reads the taxonomy table.
type CategoryRepository struct {
	db *bun.DB
}

func (r *CategoryRepository) ListAll(ctx context.Context) ([]domain.Category, error) {
	var rows []categoryRow
	if err := r.db.NewSelect().Model(&rows).Order("level ASC", "name ASC").Scan(ctx); err != nil {
		return nil, ppostgres.WrapError("categories.list", err)
	}
	out := make([]domain.Category, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *CategoryRepository) Upsert(ctx context.Context, categories []domain.Category) error {
	if len(categories) == 0 {
		return nil
	}
	rows := make([]categoryRow, 0, len(categories))
	for _, c := range categories {
		rows = append(rows, categoryRow{ID: c.ID, Name: c.Name, Slug: c.Slug, Level: c.Level, ParentID: c.ParentID, SizeType: string(c.SizeType)})
	}
	_, err := r.db.NewInsert().Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("slug = EXCLUDED.slug").
		Set("level = EXCLUDED.level").
		Set("parent_id = EXCLUDED.parent_id").
		Set("size_type = EXCLUDED.size_type").
		Exec(ctx)
	return ppostgres.WrapError("categories.upsert", err)
}

// ProductRepository stores listings.
type ProductRepository struct {
	db *bun.DB
}

func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	_, err := r.db.NewInsert().Model(newProductRow(product)).Exec(ctx)
	return ppostgres.WrapError("products.insert", err)
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	return findProduct(ctx, r.db, productID, false)
}

func (r *ProductRepository) Mutate(ctx context.Context, productID string, fn repositories.ProductMutator) (domain.Product, error) {
	var saved domain.Product
	err := ppostgres.RunInTx(ctx, r.db, "products.mutate", func(ctx context.Context, tx bun.Tx) error {
		current, err := findProduct(ctx, tx, productID, true)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if _, err := tx.NewUpdate().Model(newProductRow(next)).WherePK().Exec(ctx); err != nil {
			return err
		}
		saved = next
		return nil
	})
	return saved, err
}

func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	res, err := r.db.NewDelete().Model((*productRow)(nil)).Where("id = ?", productID).Exec(ctx)
	if err != nil {
		return ppostgres.WrapError("products.delete", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ppostgres.NotFound("products.delete", "product "+productID)
	}
	return nil
}

// Search pushes every predicate into SQL and pages with LIMIT/OFFSET, fetching one extra row to
// know whether a next page exists.
func (r *ProductRepository) Search(ctx context.Context, filter domain.ProductFilter) (domain.CursorPage[domain.Product], error) {
	offset, err := pagination.DecodeOffset(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	size := filter.Pagination.PageSize
	if size <= 0 {
		size = pagination.DefaultPageSize
	}

	var rows []productRow
	q := r.db.NewSelect().Model(&rows)
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		q = q.Where("status IN (?)", bun.In(statuses))
	}
	if len(filter.CategoryIDs) > 0 {
		q = q.Where("category_id IN (?)", bun.In(filter.CategoryIDs))
	}
	if filter.SellerID != "" {
		q = q.Where("seller_id = ?", filter.SellerID)
	}
	if filter.Size != "" {
		q = q.Where("lower(size) = lower(?)", filter.Size)
	}
	if brand := textutil.Fold(filter.Brand); brand != "" {
		q = q.Where("strpos(brand_key, ?) > 0", brand)
	}
	if filter.Condition != "" {
		q = q.Where("condition = ?", string(filter.Condition))
	}
	if filter.MinPrice != nil {
		q = q.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q = q.Where("price <= ?", *filter.MaxPrice)
	}
	if search := textutil.Fold(filter.Search); search != "" {
		q = q.Where("strpos(search_text, ?) > 0", search)
	}
	direction := "DESC"
	if filter.Order == domain.SortAsc {
		direction = "ASC"
	}
	column := "created_at"
	if filter.SortBy == domain.ProductSortPrice {
		column = "price"
	}
	q = q.OrderExpr("? "+direction+", id "+direction, bun.Ident(column)).Limit(size + 1).Offset(offset)

	if err := q.Scan(ctx); err != nil {
		return domain.CursorPage[domain.Product]{}, ppostgres.WrapError("products.search", err)
	}
	page := domain.CursorPage[domain.Product]{Items: make([]domain.Product, 0, min(len(rows), size))}
	for i, row := range rows {
		if i == size {
			page.NextPageToken = pagination.EncodeOffset(offset + size)
			break
		}
		page.Items = append(page.Items, row.toDomain())
	}
	return page, nil
}

func (r *ProductRepository) FindByIDs(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	var rows []productRow
	if err := r.db.NewSelect().Model(&rows).Where("id IN (?)", bun.In(productIDs)).Scan(ctx); err != nil {
		return nil, ppostgres.WrapError("products.findByIDs", err)
	}
	out := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func findProduct(ctx context.Context, db bun.IDB, productID string, lock bool) (domain.Product, error) {
	var row productRow
	q := db.NewSelect().Model(&row).Where("id = ?", productID)
	if lock {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, ppostgres.NotFound("products.get", "product "+productID)
		}
		return domain.Product{}, ppostgres.WrapError("products.get", err)
	}
	return row.toDomain(), nil
}
