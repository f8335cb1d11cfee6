package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	domain "github.com/friperie/api/internal/domain"
	ppostgres "github.com/friperie/api/internal/platform/postgres"
)

// FavoriteRepository relies on the unique (user_id, product_id) index.
type FavoriteRepository struct {
	db *bun.DB
}

func (r *FavoriteRepository) Find(ctx context.Context, userID, productID string) (domain.Favorite, bool, error) {
	var row favoriteRow
	err := r.db.NewSelect().Model(&row).
		Where("user_id = ?", userID).
		Where("product_id = ?", productID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Favorite{}, false, nil
	}
	if err != nil {
		return domain.Favorite{}, false, ppostgres.WrapError("favorites.find", err)
	}
	return row.toDomain(), true, nil
}

func (r *FavoriteRepository) Insert(ctx context.Context, f domain.Favorite) error {
	_, err := r.db.NewInsert().Model(&favoriteRow{
		ID:        f.ID,
		UserID:    f.UserID,
		ProductID: f.ProductID,
		CreatedAt: f.CreatedAt.UTC(),
	}).Exec(ctx)
	return ppostgres.WrapError("favorites.insert", err)
}

func (r *FavoriteRepository) Delete(ctx context.Context, userID, productID string) error {
	_, err := r.db.NewDelete().Model((*favoriteRow)(nil)).
		Where("user_id = ?", userID).
		Where("product_id = ?", productID).
		Exec(ctx)
	return ppostgres.WrapError("favorites.delete", err)
}

func (r *FavoriteRepository) ListByUser(ctx context.Context, userID string) ([]domain.Favorite, error) {
	var rows []favoriteRow
	err := r.db.NewSelect().Model(&rows).Where("user_id = ?", userID).Order("created_at DESC").Scan(ctx)
	if err != nil {
		return nil, ppostgres.WrapError("favorites.list", err)
	}
	out := make([]domain.Favorite, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *FavoriteRepository) FavoritedAmong(ctx context.Context, userID string, productIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(productIDs))
	if userID == "" || len(productIDs) == 0 {
		return result, nil
	}
	var ids []string
	err := r.db.NewSelect().Model((*favoriteRow)(nil)).
		Column("product_id").
		Where("user_id = ?", userID).
		Where("product_id IN (?)", bun.In(productIDs)).
		Scan(ctx, &ids)
	if err != nil {
		return nil, ppostgres.WrapError("favorites.among", err)
	}
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}

// AddressRepository stores user addresses.
type AddressRepository struct {
	db *bun.DB
}

func (r *AddressRepository) List(ctx context.Context, userID string) ([]domain.Address, error) {
	rows, err := listAddresses(ctx, r.db, userID, false)
	if err != nil {
		return nil, ppostgres.WrapError("addresses.list", err)
	}
	return rows, nil
}

// Replace locks the user's rows, computes the new set and rewrites it. Clearing defaults before
// inserting keeps the partial unique index satisfied.
func (r *AddressRepository) Replace(ctx context.Context, userID string, fn func([]domain.Address) ([]domain.Address, error)) ([]domain.Address, error) {
	var saved []domain.Address
	err := ppostgres.RunInTx(ctx, r.db, "addresses.replace", func(ctx context.Context, tx bun.Tx) error {
		current, err := listAddresses(ctx, tx, userID, true)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*addressRow)(nil)).Where("user_id = ?", userID).Exec(ctx); err != nil {
			return err
		}
		if len(next) > 0 {
			rows := make([]addressRow, 0, len(next))
			for _, a := range next {
				rows = append(rows, newAddressRow(a))
			}
			if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
				return err
			}
		}
		saved = next
		return nil
	})
	return saved, err
}

func listAddresses(ctx context.Context, db bun.IDB, userID string, lock bool) ([]domain.Address, error) {
	var rows []addressRow
	q := db.NewSelect().Model(&rows).Where("user_id = ?", userID).Order("is_default DESC", "created_at ASC")
	if lock {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Address, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
