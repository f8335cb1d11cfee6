package firestore

import (
	"context"
	"errors"
	"sort"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/friperie/api/internal/domain"
	pfirestore "github.com/friperie/api/internal/platform/firestore"
	"github.com/friperie/api/internal/repositories"
)

// placeTxTimeout keeps a losing buyer from waiting behind a long retry loop on a contended product.
const placeTxTimeout = 5 * time.Second

// OrderRepository keeps orders and the status of their product consistent through transactions.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   pfirestore.Collection[orderDoc]
	products pfirestore.Collection[productDoc]
}

// NewOrderRepository binds the repository to provider.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewCollection[orderDoc](provider, ordersCollection),
		products: pfirestore.NewCollection[productDoc](provider, productsCollection),
	}, nil
}

// Place locks the product, lets fn derive the order and the product update, then writes both.
// Two buyers racing for the same product serialise on the product document.
func (r *OrderRepository) Place(ctx context.Context, productID string, fn repositories.PlaceFunc) (domain.Order, error) {
	productRef, err := r.products.Doc(ctx, productID)
	if err != nil {
		return domain.Order{}, err
	}
	ordersRef, err := r.orders.Ref(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	var placed domain.Order
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		product, err := readProduct(tx, productRef)
		if err != nil {
			return err
		}
		order, updated, err := fn(product)
		if err != nil {
			return err
		}
		if err := tx.Create(ordersRef.Doc(order.ID), newOrderDoc(order)); err != nil {
			return err
		}
		if err := tx.Set(productRef, newProductDoc(updated)); err != nil {
			return err
		}
		placed = order
		return nil
	}, pfirestore.WithTxTimeout(placeTxTimeout))
	if err != nil {
		return domain.Order{}, err
	}
	return placed, nil
}

// Transition reads the order and its product, applies fn and writes both back.
func (r *OrderRepository) Transition(ctx context.Context, orderID string, fn repositories.TransitionFunc) (domain.Order, error) {
	orderRef, err := r.orders.Doc(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	productsRef, err := r.products.Ref(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	var saved domain.Order
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(orderRef)
		if err != nil {
			return pfirestore.WrapError("orders.get", err)
		}
		current, err := pfirestore.Decode[orderDoc](snap)
		if err != nil {
			return err
		}
		productRef := productsRef.Doc(current.ProductID)
		product, err := readProduct(tx, productRef)
		if err != nil {
			return err
		}
		order, updated, err := fn(current.toDomain(), product)
		if err != nil {
			return err
		}
		if err := tx.Set(orderRef, newOrderDoc(order)); err != nil {
			return err
		}
		if err := tx.Set(productRef, newProductDoc(updated)); err != nil {
			return err
		}
		saved = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return saved, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.toDomain(), nil
}

// ListByParticipant returns the user's orders on one side of the sale, newest first.
func (r *OrderRepository) ListByParticipant(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	field := "buyerId"
	if filter.Role == domain.OrderRoleSeller {
		field = "sellerId"
	}
	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where(field, "==", filter.UserID)
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toDomain())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
