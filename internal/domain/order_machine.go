package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrderEventKind names an order lifecycle event.
type OrderEventKind string

const (
	OrderEventPlace         OrderEventKind = "place"
	OrderEventConfirm       OrderEventKind = "confirm"
	OrderEventDeliver       OrderEventKind = "deliver"
	OrderEventCancel        OrderEventKind = "cancel"
	OrderEventUpdateDetails OrderEventKind = "update_details"
)

// OrderEvent carries the actor and payload of a transition. Place reads OrderID, TotalPrice and
// ShippingAddress; UpdateDetails reads the address pointers; the other events only need ActorID.
type OrderEvent struct {
	Kind            OrderEventKind
	ActorID         string
	At              time.Time
	OrderID         string
	TotalPrice      float64
	ShippingAddress *string
	PickupAddress   *string
}

var orderTransitions = map[OrderStatus]map[OrderEventKind]OrderStatus{
	OrderStatusPending: {
		OrderEventConfirm:       OrderStatusConfirmed,
		OrderEventDeliver:       OrderStatusDelivered,
		OrderEventCancel:        OrderStatusCancelled,
		OrderEventUpdateDetails: OrderStatusPending,
	},
	OrderStatusConfirmed: {
		OrderEventDeliver:       OrderStatusDelivered,
		OrderEventCancel:        OrderStatusCancelled,
		OrderEventUpdateDetails: OrderStatusConfirmed,
	},
}

// EventForStatus maps a requested target status to the event that reaches it.
func EventForStatus(status OrderStatus) (OrderEventKind, error) {
	switch status {
	case OrderStatusConfirmed:
		return OrderEventConfirm, nil
	case OrderStatusDelivered:
		return OrderEventDeliver, nil
	case OrderStatusCancelled:
		return OrderEventCancel, nil
	case OrderStatusPending:
		return "", fmt.Errorf("%w: orders cannot return to %s", ErrInvalidTransition, status)
	}
	return "", fmt.Errorf("%w: unknown order status %q", ErrInvalidInput, status)
}

// ApplyOrderEvent computes the next order and product states for an event. It has no side effects,
// so stores may call it again when a transaction is retried. order is nil for Place.
func ApplyOrderEvent(event OrderEvent, order *Order, product Product) (Order, Product, error) {
	at := event.At.UTC()
	if event.At.IsZero() {
		at = time.Now().UTC()
	}
	actor := strings.TrimSpace(event.ActorID)
	if actor == "" {
		return Order{}, Product{}, fmt.Errorf("%w: actor is required", ErrInvalidInput)
	}

	if event.Kind == OrderEventPlace {
		return placeOrder(event, actor, at, product)
	}
	if order == nil {
		return Order{}, Product{}, fmt.Errorf("%w: order is required for %s", ErrInvalidInput, event.Kind)
	}

	next := *order
	isBuyer := actor == order.BuyerID
	isSeller := actor == order.SellerID
	if !isBuyer && !isSeller {
		return Order{}, Product{}, fmt.Errorf("%w: %s is not a participant of order %s", ErrForbidden, actor, order.ID)
	}

	target, ok := orderTransitions[order.Status][event.Kind]
	if !ok {
		if order.Status.Terminal() {
			return Order{}, Product{}, fmt.Errorf("%w: order %s is %s and can no longer change", ErrInvalidTransition, order.ID, order.Status)
		}
		return Order{}, Product{}, fmt.Errorf("%w: cannot %s an order in status %s", ErrInvalidTransition, event.Kind, order.Status)
	}

	switch event.Kind {
	case OrderEventConfirm:
		if !isSeller {
			return Order{}, Product{}, fmt.Errorf("%w: only the seller can confirm", ErrForbidden)
		}
	case OrderEventDeliver:
		deliveredAt := at
		next.DeliveredAt = &deliveredAt
		product.Status = ProductStatusSold
		product.UpdatedAt = at
	case OrderEventCancel:
		product.Status = ProductStatusForSale
		product.UpdatedAt = at
	case OrderEventUpdateDetails:
		if event.PickupAddress != nil && !isSeller {
			return Order{}, Product{}, fmt.Errorf("%w: only the seller can set the pickup address", ErrForbidden)
		}
		if event.ShippingAddress != nil {
			next.ShippingAddress = strings.TrimSpace(*event.ShippingAddress)
		}
		if event.PickupAddress != nil {
			pickup := strings.TrimSpace(*event.PickupAddress)
			next.PickupAddress = &pickup
		}
	default:
		return Order{}, Product{}, fmt.Errorf("%w: unsupported order event %q", ErrInvalidInput, event.Kind)
	}

	next.Status = target
	next.UpdatedAt = at
	return next, product, nil
}

func placeOrder(event OrderEvent, buyerID string, at time.Time, product Product) (Order, Product, error) {
	if strings.TrimSpace(event.OrderID) == "" {
		return Order{}, Product{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	if event.TotalPrice < 0 {
		return Order{}, Product{}, fmt.Errorf("%w: total price must be >= 0", ErrInvalidInput)
	}
	if product.SellerID == buyerID {
		return Order{}, Product{}, fmt.Errorf("%w: cannot buy your own product", ErrSelfReference)
	}
	if product.Status != ProductStatusForSale {
		return Order{}, Product{}, fmt.Errorf("%w: product %s is %s", ErrProductUnavailable, product.ID, product.Status)
	}

	order := Order{
		ID:         event.OrderID,
		ProductID:  product.ID,
		BuyerID:    buyerID,
		SellerID:   product.SellerID,
		TotalPrice: event.TotalPrice,
		Status:     OrderStatusPending,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	if event.ShippingAddress != nil {
		order.ShippingAddress = strings.TrimSpace(*event.ShippingAddress)
	}
	product.Status = ProductStatusReserved
	product.UpdatedAt = at
	return order, product, nil
}

// ModerationDecision is the outcome of reviewing a pending product.
type ModerationDecision string

const (
	ModerationApprove ModerationDecision = "approve"
	ModerationReject  ModerationDecision = "reject"
)

// ModerateProduct moves a product out of PENDING_APPROVAL.
func ModerateProduct(product Product, decision ModerationDecision, comment string, at time.Time) (Product, error) {
	if product.Status != ProductStatusPendingApproval {
		return Product{}, fmt.Errorf("%w: product %s is %s", ErrInvalidTransition, product.ID, product.Status)
	}
	switch decision {
	case ModerationApprove:
		product.Status = ProductStatusForSale
	case ModerationReject:
		product.Status = ProductStatusRejected
	default:
		return Product{}, fmt.Errorf("%w: unknown moderation decision %q", ErrInvalidInput, decision)
	}
	if trimmed := strings.TrimSpace(comment); trimmed != "" {
		product.ModerationComment = &trimmed
	} else {
		product.ModerationComment = nil
	}
	product.UpdatedAt = at.UTC()
	return product, nil
}
