package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/platform/auth"
	"github.com/friperie/api/internal/platform/httpx"
	"github.com/friperie/api/internal/services"
)

// Middleware is a standard net/http middleware.
type Middleware = func(http.Handler) http.Handler

// OrderHandlers exposes order placement and lifecycle updates for authenticated users.
type OrderHandlers struct {
	authn      *auth.Authenticator
	orders     services.OrderService
	idempotent Middleware
}

// NewOrderHandlers constructs order endpoints. idempotent guards order placement when non-nil.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, idempotent Middleware) *OrderHandlers {
	return &OrderHandlers{authn: authn, orders: orders, idempotent: idempotent}
}

// Routes registers /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.list)
	r.Get("/{orderID}", h.get)
	r.Patch("/{orderID}", h.update)
	r.Group(func(place chi.Router) {
		if h.idempotent != nil {
			place.Use(h.idempotent)
		}
		place.Post("/", h.create)
	})
}

func (h *OrderHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	role := domain.OrderRole(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("role"))))
	if role == "" {
		role = domain.OrderRoleBuyer
	}
	if role != domain.OrderRoleBuyer && role != domain.OrderRoleSeller {
		writeInvalid(ctx, w, "role must be buyer or seller")
		return
	}
	orders, err := h.orders.List(ctx, uid, role)
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": mapSlice(orders, buildOrderPayload)})
}

func (h *OrderHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	order, err := h.orders.Get(ctx, pathParam(r, "orderID"), uid)
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

type createOrderRequest struct {
	ProductID       string  `json:"productId"`
	TotalPrice      float64 `json:"totalPrice"`
	ShippingAddress string  `json:"shippingAddress"`
}

func (h *OrderHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	order, err := h.orders.Create(ctx, services.CreateOrderCommand{
		BuyerID:         uid,
		ProductID:       strings.TrimSpace(req.ProductID),
		TotalPrice:      req.TotalPrice,
		ShippingAddress: req.ShippingAddress,
	})
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/orders/"+order.ID)
	writeJSONResponse(w, http.StatusCreated, buildOrderPayload(order))
}

type updateOrderRequest struct {
	Status          *string `json:"status"`
	ShippingAddress *string `json:"shippingAddress"`
	PickupAddress   *string `json:"pickupAddress"`
}

func (h *OrderHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	var req updateOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cmd := services.UpdateOrderCommand{
		OrderID:         pathParam(r, "orderID"),
		ActorID:         uid,
		ShippingAddress: req.ShippingAddress,
		PickupAddress:   req.PickupAddress,
	}
	if req.Status != nil {
		status := domain.OrderStatus(strings.ToUpper(strings.TrimSpace(*req.Status)))
		cmd.Status = &status
	}
	order, err := h.orders.Update(ctx, cmd)
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}
