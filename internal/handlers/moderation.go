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

// ModerationHandlers receives listing decisions from the external moderation provider and from
// internal reviewers.
type ModerationHandlers struct {
	products services.ProductService
}

// NewModerationHandlers constructs moderation endpoints. Authentication is applied by the router
// group they are mounted on.
func NewModerationHandlers(products services.ProductService) *ModerationHandlers {
	return &ModerationHandlers{products: products}
}

// WebhookRoutes registers the signed provider callback under /webhooks.
func (h *ModerationHandlers) WebhookRoutes(r chi.Router) {
	r.Post("/moderation", h.decide)
}

// InternalRoutes registers the reviewer endpoint under /internal.
func (h *ModerationHandlers) InternalRoutes(r chi.Router) {
	r.Post("/moderation/products/{productID}", h.decideProduct)
}

type moderationRequest struct {
	ProductID string `json:"productId"`
	Decision  string `json:"decision"`
	Comment   string `json:"comment"`
	Reviewer  string `json:"reviewer"`
}

func (h *ModerationHandlers) decide(w http.ResponseWriter, r *http.Request) {
	var req moderationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if source, ok := auth.WebhookSourceFromContext(r.Context()); ok && strings.TrimSpace(req.Reviewer) == "" {
		req.Reviewer = source.Name
	}
	h.apply(w, r, req)
}

func (h *ModerationHandlers) decideProduct(w http.ResponseWriter, r *http.Request) {
	var req moderationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.ProductID = pathParam(r, "productID")
	if service, ok := auth.ServiceIdentityFromContext(r.Context()); ok {
		req.Reviewer = firstNonEmpty(service.Email, service.Subject)
	}
	h.apply(w, r, req)
}

func (h *ModerationHandlers) apply(w http.ResponseWriter, r *http.Request, req moderationRequest) {
	ctx := r.Context()
	if h.products == nil {
		serviceUnavailable(ctx, w, "product")
		return
	}
	product, err := h.products.Moderate(ctx, services.ModerateProductCommand{
		ProductID: strings.TrimSpace(req.ProductID),
		Decision:  domain.ModerationDecision(strings.ToLower(strings.TrimSpace(req.Decision))),
		Comment:   req.Comment,
		Reviewer:  strings.TrimSpace(req.Reviewer),
	})
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
