package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/platform/idempotency"
	"github.com/friperie/api/internal/repositories"
	"github.com/friperie/api/internal/services"
)

type stubOrderService struct {
	createFn func(context.Context, services.CreateOrderCommand) (services.Order, error)
	getFn    func(context.Context, string, string) (services.Order, error)
	listFn   func(context.Context, string, services.OrderRole) ([]services.Order, error)
	updateFn func(context.Context, services.UpdateOrderCommand) (services.Order, error)
}

func (s *stubOrderService) Create(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	return s.createFn(ctx, cmd)
}

func (s *stubOrderService) Get(ctx context.Context, orderID, callerID string) (services.Order, error) {
	return s.getFn(ctx, orderID, callerID)
}

func (s *stubOrderService) List(ctx context.Context, userID string, role services.OrderRole) ([]services.Order, error) {
	return s.listFn(ctx, userID, role)
}

func (s *stubOrderService) Update(ctx context.Context, cmd services.UpdateOrderCommand) (services.Order, error) {
	return s.updateFn(ctx, cmd)
}

var orderTime = time.Date(2026, 5, 2, 9, 30, 0, 0, time.UTC)

func sampleOrder(id string) services.Order {
	return services.Order{
		ID:              id,
		ProductID:       "prd_1",
		BuyerID:         "buyer",
		SellerID:        "seller",
		TotalPrice:      25,
		ShippingAddress: "1 rue de la Paix, Paris",
		Status:          domain.OrderStatusPending,
		CreatedAt:       orderTime,
		UpdatedAt:       orderTime,
	}
}

func TestOrderHandlersCreate(t *testing.T) {
	var calls int
	svc := &stubOrderService{createFn: func(_ context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
		calls++
		assert.Equal(t, "buyer", cmd.BuyerID)
		assert.Equal(t, "prd_1", cmd.ProductID)
		return sampleOrder("ord_1"), nil
	}}
	mw := idempotency.Middleware(idempotency.NewMemoryStore(), idempotency.Options{Required: true})
	h := mountForTest(NewOrderHandlers(nil, svc, mw).Routes)

	body := map[string]any{"productId": "prd_1", "totalPrice": 25, "shippingAddress": "1 rue de la Paix, Paris"}

	missingKey := doJSON(t, h, http.MethodPost, "/", "buyer", body)
	assert.Equal(t, http.StatusBadRequest, missingKey.Code)

	first := doJSONWithHeader(t, h, http.MethodPost, "/", "buyer", body, idempotency.DefaultHeader, "key-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	assert.Equal(t, "/api/v1/orders/ord_1", first.Header().Get("Location"))
	created := decodeResponse[orderPayload](t, first)
	assert.Equal(t, "PENDING", created.Status)
	assert.Equal(t, "2026-05-02T09:30:00Z", created.CreatedAt)

	replayed := doJSONWithHeader(t, h, http.MethodPost, "/", "buyer", body, idempotency.DefaultHeader, "key-1")
	assert.Equal(t, http.StatusCreated, replayed.Code)
	assert.Equal(t, "true", replayed.Header().Get(idempotency.ReplayHeader))
	assert.Equal(t, 1, calls, "replay must not place a second order")
}

func TestOrderHandlersCreateMapsDomainErrors(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
		code   string
	}{
		"self purchase": {domain.ErrSelfReference, http.StatusUnprocessableEntity, "self_reference"},
		"sold":          {domain.ErrProductUnavailable, http.StatusConflict, "product_unavailable"},
		"missing":       {domain.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
		"invalid":       {domain.ErrInvalidInput, http.StatusBadRequest, "invalid_request"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubOrderService{createFn: func(context.Context, services.CreateOrderCommand) (services.Order, error) {
				return services.Order{}, tc.err
			}}
			h := mountForTest(NewOrderHandlers(nil, svc, nil).Routes)
			rr := doJSON(t, h, http.MethodPost, "/", "buyer", map[string]any{"productId": "prd_1"})
			require.Equal(t, tc.status, rr.Code)
			assert.Equal(t, tc.code, decodeResponse[errorBody](t, rr).Error)
		})
	}
}

func TestOrderHandlersListRole(t *testing.T) {
	var gotRole services.OrderRole
	svc := &stubOrderService{listFn: func(_ context.Context, userID string, role services.OrderRole) ([]services.Order, error) {
		gotRole = role
		return []services.Order{sampleOrder("ord_1")}, nil
	}}
	h := mountForTest(NewOrderHandlers(nil, svc, nil).Routes)

	rr := doJSON(t, h, http.MethodGet, "/", "buyer", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.OrderRoleBuyer, gotRole)

	rr = doJSON(t, h, http.MethodGet, "/?role=SELLER", "seller", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, domain.OrderRoleSeller, gotRole)
	list := decodeResponse[struct {
		Items []orderPayload `json:"items"`
	}](t, rr)
	assert.Len(t, list.Items, 1)

	rr = doJSON(t, h, http.MethodGet, "/?role=admin", "buyer", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestOrderHandlersUpdate(t *testing.T) {
	svc := &stubOrderService{updateFn: func(_ context.Context, cmd services.UpdateOrderCommand) (services.Order, error) {
		require.NotNil(t, cmd.Status)
		if *cmd.Status == domain.OrderStatusDelivered {
			return services.Order{}, domain.ErrInvalidTransition
		}
		order := sampleOrder(cmd.OrderID)
		order.Status = *cmd.Status
		return order, nil
	}}
	h := mountForTest(NewOrderHandlers(nil, svc, nil).Routes)

	rr := doJSON(t, h, http.MethodPatch, "/ord_9", "seller", map[string]any{"status": "confirmed"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "CONFIRMED", decodeResponse[orderPayload](t, rr).Status)

	rr = doJSON(t, h, http.MethodPatch, "/ord_9", "seller", map[string]any{"status": "DELIVERED"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSON(t, h, http.MethodPatch, "/ord_9", "seller", map[string]any{"unknown": true})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

type serializationFailure struct{}

func (serializationFailure) Error() string {
	return "postgres orders.transition: ERROR #40001 could not serialize access due to concurrent update"
}
func (serializationFailure) IsNotFound() bool    { return false }
func (serializationFailure) IsConflict() bool    { return true }
func (serializationFailure) IsUnavailable() bool { return false }

type abortingOrderRepo struct{}

func (abortingOrderRepo) Place(context.Context, string, repositories.PlaceFunc) (domain.Order, error) {
	return domain.Order{}, serializationFailure{}
}

func (abortingOrderRepo) Transition(context.Context, string, repositories.TransitionFunc) (domain.Order, error) {
	return domain.Order{}, serializationFailure{}
}

func (abortingOrderRepo) FindByID(context.Context, string) (domain.Order, error) {
	return domain.Order{}, serializationFailure{}
}

func (abortingOrderRepo) ListByParticipant(context.Context, repositories.OrderListFilter) ([]domain.Order, error) {
	return nil, serializationFailure{}
}

func TestOrderHandlersHideStorageDetail(t *testing.T) {
	svc, err := services.NewOrderService(services.OrderServiceDeps{Orders: abortingOrderRepo{}})
	require.NoError(t, err)
	h := mountForTest(NewOrderHandlers(nil, svc, nil).Routes)

	rr := doJSON(t, h, http.MethodPatch, "/ord_9", "seller", map[string]any{"status": "CONFIRMED"})
	require.Equal(t, http.StatusConflict, rr.Code)
	body := decodeResponse[errorBody](t, rr)
	assert.Equal(t, "conflict", body.Error)
	assert.Equal(t, "conflict", body.Message)
	assert.NotContains(t, rr.Body.String(), "40001")
	assert.NotContains(t, rr.Body.String(), "postgres")
}

func TestOrderHandlersRequireUser(t *testing.T) {
	h := mountForTest(NewOrderHandlers(nil, &stubOrderService{}, nil).Routes)
	rr := doJSON(t, h, http.MethodGet, "/ord_1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
