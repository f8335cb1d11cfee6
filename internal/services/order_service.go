package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"
	orderEventUpdated       = "order.details.updated"

	orderMeterName = "github.com/friperie/api/internal/services/orders"
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Events      OrderEventPublisher
	Tasks       TaskScheduler
	Meter       metric.Meter
	Clock       func() time.Time
	IDGenerator func() string
	Logger      Logger
}

type orderService struct {
	orders      repositories.OrderRepository
	events      OrderEventPublisher
	tasks       TaskScheduler
	transitions metric.Int64Counter
	clock       func() time.Time
	newID       func() string
	logger      Logger
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.Meter(orderMeterName)
	}
	transitions, err := meter.Int64Counter("marketplace.orders.transitions",
		metric.WithDescription("Applied order lifecycle events"))
	if err != nil {
		return nil, fmt.Errorf("order service: create counter: %w", err)
	}
	logger := loggerOrNoop(deps.Logger)
	return &orderService{
		orders:      deps.Orders,
		events:      deps.Events,
		tasks:       schedulerOrInline(deps.Tasks, logger),
		transitions: transitions,
		clock:       utcClock(deps.Clock),
		newID:       idGenerator(deps.IDGenerator),
		logger:      logger,
	}, nil
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	buyerID, err := requireID(cmd.BuyerID, "buyer id")
	if err != nil {
		return Order{}, err
	}
	productID, err := requireID(cmd.ProductID, "product id")
	if err != nil {
		return Order{}, err
	}
	shipping := strings.TrimSpace(cmd.ShippingAddress)
	event := domain.OrderEvent{
		Kind:            domain.OrderEventPlace,
		ActorID:         buyerID,
		At:              s.clock(),
		OrderID:         orderIDPrefix + s.newID(),
		TotalPrice:      cmd.TotalPrice,
		ShippingAddress: &shipping,
	}

	order, err := s.orders.Place(ctx, productID, func(product Product) (Order, Product, error) {
		return domain.ApplyOrderEvent(event, nil, product)
	})
	if err != nil {
		// A lost race surfaces either as a failed FOR_SALE precondition or as a store abort.
		if isRepoConflict(err) && !isDomainError(err) {
			return Order{}, fmt.Errorf("%w: product %s was taken concurrently", domain.ErrProductUnavailable, productID)
		}
		return Order{}, mapRepositoryError(err, domain.ErrProductNotFound)
	}

	s.record(ctx, domain.OrderEventPlace)
	s.logger(ctx, orderEventCreated, map[string]any{"order": order.ID, "product": productID, "buyer": buyerID})
	s.publish(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		ProductID:     order.ProductID,
		CurrentStatus: string(order.Status),
		ActorID:       buyerID,
		OccurredAt:    order.CreatedAt,
	})
	return order, nil
}

func (s *orderService) Get(ctx context.Context, orderID, callerID string) (Order, error) {
	id, err := requireID(orderID, "order id")
	if err != nil {
		return Order{}, err
	}
	caller, err := requireID(callerID, "caller id")
	if err != nil {
		return Order{}, err
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, mapRepositoryError(err, domain.ErrOrderNotFound)
	}
	if order.BuyerID != caller && order.SellerID != caller {
		return Order{}, fmt.Errorf("%w: %s is not a participant of order %s", domain.ErrForbidden, caller, id)
	}
	return order, nil
}

func (s *orderService) List(ctx context.Context, userID string, role OrderRole) ([]Order, error) {
	user, err := requireID(userID, "user id")
	if err != nil {
		return nil, err
	}
	switch role {
	case "":
		role = domain.OrderRoleBuyer
	case domain.OrderRoleBuyer, domain.OrderRoleSeller:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}
	orders, err := s.orders.ListByParticipant(ctx, repositories.OrderListFilter{UserID: user, Role: role})
	if err != nil {
		return nil, mapRepositoryError(err, domain.ErrOrderNotFound)
	}
	return orders, nil
}

func (s *orderService) Update(ctx context.Context, cmd UpdateOrderCommand) (Order, error) {
	id, err := requireID(cmd.OrderID, "order id")
	if err != nil {
		return Order{}, err
	}
	actor, err := requireID(cmd.ActorID, "actor id")
	if err != nil {
		return Order{}, err
	}
	if cmd.Status == nil && cmd.ShippingAddress == nil && cmd.PickupAddress == nil {
		return Order{}, fmt.Errorf("%w: nothing to update", domain.ErrInvalidInput)
	}

	var events []domain.OrderEvent
	now := s.clock()
	if cmd.ShippingAddress != nil || cmd.PickupAddress != nil {
		events = append(events, domain.OrderEvent{
			Kind:            domain.OrderEventUpdateDetails,
			ActorID:         actor,
			At:              now,
			ShippingAddress: cmd.ShippingAddress,
			PickupAddress:   cmd.PickupAddress,
		})
	}
	if cmd.Status != nil {
		kind, err := domain.EventForStatus(*cmd.Status)
		if err != nil {
			return Order{}, err
		}
		events = append(events, domain.OrderEvent{Kind: kind, ActorID: actor, At: now})
	}

	var previous OrderStatus
	updated, err := s.orders.Transition(ctx, id, func(order Order, product Product) (Order, Product, error) {
		previous = order.Status
		for _, event := range events {
			var err error
			order, product, err = domain.ApplyOrderEvent(event, &order, product)
			if err != nil {
				return Order{}, Product{}, err
			}
		}
		return order, product, nil
	})
	if err != nil {
		return Order{}, mapRepositoryError(err, domain.ErrOrderNotFound)
	}

	for _, event := range events {
		s.record(ctx, event.Kind)
	}
	if updated.Status != previous {
		s.logger(ctx, orderEventStatusChanged, map[string]any{
			"order": updated.ID, "from": string(previous), "to": string(updated.Status), "actor": actor,
		})
		s.publish(ctx, OrderEvent{
			Type:           orderEventStatusChanged,
			OrderID:        updated.ID,
			ProductID:      updated.ProductID,
			PreviousStatus: string(previous),
			CurrentStatus:  string(updated.Status),
			ActorID:        actor,
			OccurredAt:     updated.UpdatedAt,
		})
	} else {
		s.logger(ctx, orderEventUpdated, map[string]any{"order": updated.ID, "actor": actor})
	}
	return updated, nil
}

func (s *orderService) record(ctx context.Context, kind domain.OrderEventKind) {
	s.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("event", string(kind))))
}

// publish hands the event to the task queue; delivery failures are logged, never returned.
func (s *orderService) publish(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	accepted := s.tasks.Enqueue(ctx, event.Type, func(taskCtx context.Context) error {
		if err := s.events.PublishOrderEvent(taskCtx, event); err != nil {
			s.logger(taskCtx, "order.event.publish.failed", map[string]any{
				"type":   event.Type,
				"order":  event.OrderID,
				"status": event.CurrentStatus,
				"error":  err.Error(),
			})
			return err
		}
		return nil
	})
	if !accepted {
		s.logger(ctx, "order.event.dropped", map[string]any{"type": event.Type, "order": event.OrderID})
	}
}
