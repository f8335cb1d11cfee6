package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	domain "github.com/friperie/api/internal/domain"
	ppostgres "github.com/friperie/api/internal/platform/postgres"
	"github.com/friperie/api/internal/repositories"
)

// OrderRepository keeps orders and product statuses consistent with row locks.
type OrderRepository struct {
	db *bun.DB
}

// Place locks the product row so concurrent buyers of the same product serialise.
func (r *OrderRepository) Place(ctx context.Context, productID string, fn repositories.PlaceFunc) (domain.Order, error) {
	var placed domain.Order
	err := ppostgres.RunInTx(ctx, r.db, "orders.place", func(ctx context.Context, tx bun.Tx) error {
		product, err := findProduct(ctx, tx, productID, true)
		if err != nil {
			return err
		}
		order, updated, err := fn(product)
		if err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(newOrderRow(order)).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewUpdate().Model(newProductRow(updated)).WherePK().Exec(ctx); err != nil {
			return err
		}
		placed = order
		return nil
	})
	return placed, err
}

func (r *OrderRepository) Transition(ctx context.Context, orderID string, fn repositories.TransitionFunc) (domain.Order, error) {
	var saved domain.Order
	err := ppostgres.RunInTx(ctx, r.db, "orders.transition", func(ctx context.Context, tx bun.Tx) error {
		current, err := findOrder(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		product, err := findProduct(ctx, tx, current.ProductID, true)
		if err != nil {
			return err
		}
		order, updated, err := fn(current, product)
		if err != nil {
			return err
		}
		if _, err := tx.NewUpdate().Model(newOrderRow(order)).WherePK().Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewUpdate().Model(newProductRow(updated)).WherePK().Exec(ctx); err != nil {
			return err
		}
		saved = order
		return nil
	})
	return saved, err
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	return findOrder(ctx, r.db, orderID, false)
}

func (r *OrderRepository) ListByParticipant(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	column := "buyer_id"
	if filter.Role == domain.OrderRoleSeller {
		column = "seller_id"
	}
	var rows []orderRow
	err := r.db.NewSelect().Model(&rows).
		Where("? = ?", bun.Ident(column), filter.UserID).
		Order("created_at DESC", "id DESC").
		Scan(ctx)
	if err != nil {
		return nil, ppostgres.WrapError("orders.list", err)
	}
	out := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func findOrder(ctx context.Context, db bun.IDB, orderID string, lock bool) (domain.Order, error) {
	var row orderRow
	q := db.NewSelect().Model(&row).Where("id = ?", orderID)
	if lock {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, ppostgres.NotFound("orders.get", "order "+orderID)
		}
		return domain.Order{}, ppostgres.WrapError("orders.get", err)
	}
	return row.toDomain(), nil
}
