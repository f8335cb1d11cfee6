package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/platform/auth"
	"github.com/friperie/api/internal/platform/httpx"
	"github.com/friperie/api/internal/platform/pagination"
	"github.com/friperie/api/internal/services"
)

// ProductHandlers serves the public catalogue and seller listing management.
type ProductHandlers struct {
	authn    *auth.Authenticator
	products services.ProductService
	reviews  services.ReviewService
}

// NewProductHandlers constructs product endpoints. reviews may be nil, in which case the feedback
// endpoints answer 503.
func NewProductHandlers(authn *auth.Authenticator, products services.ProductService, reviews services.ReviewService) *ProductHandlers {
	return &ProductHandlers{authn: authn, products: products, reviews: reviews}
}

// Routes registers /products endpoints. Reads accept anonymous callers.
func (h *ProductHandlers) Routes(r chi.Router) {
	r.Group(func(public chi.Router) {
		if h.authn != nil {
			public.Use(h.authn.OptionalFirebaseAuth())
		}
		public.Get("/", h.search)
		public.Get("/{productID}", h.get)
	})
	r.Group(func(private chi.Router) {
		if h.authn != nil {
			private.Use(h.authn.RequireFirebaseAuth())
		}
		private.Post("/", h.create)
		private.Patch("/{productID}", h.update)
		private.Delete("/{productID}", h.delete)
		private.Post("/{productID}/reviews", h.addReview)
		private.Post("/{productID}/comments", h.addComment)
	})
}

type productSearchResponse struct {
	Items         []productPayload `json:"items"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
}

func (h *ProductHandlers) search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.products == nil {
		serviceUnavailable(ctx, w, "product")
		return
	}
	query, err := parseProductQuery(r.URL.Query())
	if err != nil {
		writeInvalid(ctx, w, err.Error())
		return
	}
	query.ViewerID = auth.UserID(ctx)

	page, err := h.products.Search(ctx, query)
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productSearchResponse{
		Items:         mapSlice(page.Items, buildProductViewPayload),
		NextPageToken: page.NextPageToken,
	})
}

func parseProductQuery(values url.Values) (services.ProductQuery, error) {
	params, err := pagination.Parse(values, pagination.Options{})
	if err != nil {
		return services.ProductQuery{}, err
	}
	query := services.ProductQuery{
		Search:     strings.TrimSpace(values.Get("search")),
		CategoryID: strings.TrimSpace(values.Get("categoryId")),
		Size:       strings.TrimSpace(values.Get("size")),
		Brand:      strings.TrimSpace(values.Get("brand")),
		Condition:  domain.ProductCondition(strings.ToUpper(strings.TrimSpace(values.Get("condition")))),
		Status:     domain.ProductStatus(strings.ToUpper(strings.TrimSpace(values.Get("status")))),
		SellerID:   strings.TrimSpace(values.Get("sellerId")),
		SortBy:     domain.ProductSort(strings.TrimSpace(values.Get("sortBy"))),
		Order:      domain.SortOrder(strings.ToLower(strings.TrimSpace(values.Get("order")))),
		Pagination: services.Pagination{PageSize: params.PageSize, PageToken: params.PageToken},
	}
	if query.MinPrice, err = optionalFloat(values, "minPrice"); err != nil {
		return services.ProductQuery{}, err
	}
	if query.MaxPrice, err = optionalFloat(values, "maxPrice"); err != nil {
		return services.ProductQuery{}, err
	}
	return query, nil
}

func (h *ProductHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.products == nil {
		serviceUnavailable(ctx, w, "product")
		return
	}
	view, err := h.products.Get(ctx, pathParam(r, "productID"), auth.UserID(ctx))
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductDetailPayload(view))
}

type createProductRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	CategoryID  string   `json:"categoryId"`
	Size        string   `json:"size"`
	Brand       string   `json:"brand"`
	Condition   string   `json:"condition"`
	Images      []string `json:"images"`
}

func (h *ProductHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.products == nil {
		serviceUnavailable(ctx, w, "product")
		return
	}
	var req createProductRequest
	if !decodeBody(w, r, &req) {
		return
	}
	product, err := h.products.Create(ctx, services.CreateProductCommand{
		SellerID:    uid,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		CategoryID:  req.CategoryID,
		Size:        req.Size,
		Brand:       req.Brand,
		Condition:   domain.ProductCondition(strings.ToUpper(strings.TrimSpace(req.Condition))),
		Images:      req.Images,
	})
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/products/"+product.ID)
	writeJSONResponse(w, http.StatusCreated, buildProductPayload(product))
}

type updateProductRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Price       *float64  `json:"price"`
	CategoryID  *string   `json:"categoryId"`
	Size        *string   `json:"size"`
	Brand       *string   `json:"brand"`
	Condition   *string   `json:"condition"`
	Images      *[]string `json:"images"`
}

func (h *ProductHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.products == nil {
		serviceUnavailable(ctx, w, "product")
		return
	}
	var req updateProductRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cmd := services.UpdateProductCommand{
		ProductID:   pathParam(r, "productID"),
		ActorID:     uid,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		CategoryID:  req.CategoryID,
		Size:        req.Size,
		Brand:       req.Brand,
		Images:      req.Images,
	}
	if req.Condition != nil {
		condition := domain.ProductCondition(strings.ToUpper(strings.TrimSpace(*req.Condition)))
		cmd.Condition = &condition
	}
	product, err := h.products.Update(ctx, cmd)
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func (h *ProductHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.products == nil {
		serviceUnavailable(ctx, w, "product")
		return
	}
	if err := h.products.Delete(ctx, pathParam(r, "productID"), uid); err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *ProductHandlers) addReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.reviews == nil {
		serviceUnavailable(ctx, w, "review")
		return
	}
	var req addReviewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	review, err := h.reviews.AddReview(ctx, services.AddReviewCommand{
		ProductID: pathParam(r, "productID"),
		UserID:    uid,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildReviewPayload(review))
}

type addCommentRequest struct {
	Content string `json:"content"`
}

func (h *ProductHandlers) addComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.reviews == nil {
		serviceUnavailable(ctx, w, "review")
		return
	}
	var req addCommentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	comment, err := h.reviews.AddComment(ctx, services.AddCommentCommand{
		ProductID: pathParam(r, "productID"),
		UserID:    uid,
		Content:   req.Content,
	})
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildCommentPayload(comment))
}
