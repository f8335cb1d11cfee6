package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/friperie/api/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type routerConfig struct {
	basePath    string
	middlewares []Middleware
	health      *HealthHandlers
	realtime    RouteRegistrar

	groups   map[string]RouteRegistrar
	groupMWs map[string][]Middleware
}

// apiGroups lists the resource groups under the API prefix, in mount order.
var apiGroups = []string{"categories", "products", "orders", "conversations", "users", "me", "media", "webhooks", "internal"}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

const (
	defaultAPIPrefix  = "/api/v1"
	defaultTimeout    = 60 * time.Second
	errorNotFoundCode = "route_not_found"
)

// NewRouter constructs the chi router with shared middleware and the marketplace route groups.
// Groups without a registrar answer 501.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		basePath: defaultAPIPrefix,
		groups:   map[string]RouteRegistrar{},
		groupMWs: map[string][]Middleware{},
		middlewares: []Middleware{
			middleware.RequestID,
			middleware.RealIP,
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	// Websocket connections outlive the request timeout.
	if cfg.realtime != nil {
		r.Route("/ws", cfg.realtime)
	}

	r.Route(cfg.basePath, func(api chi.Router) {
		api.Use(middleware.Timeout(defaultTimeout))
		for _, name := range apiGroups {
			registrar, mws := cfg.groups[name], cfg.groupMWs[name]
			api.Route("/"+name, func(group chi.Router) {
				for _, mw := range mws {
					if mw != nil {
						group.Use(mw)
					}
				}
				if registrar == nil {
					registerNotImplemented(group, name)
					return
				}
				registrar(group)
			})
		}
	})

	return r
}

// WithMiddlewares appends additional global middleware to the router.
func WithMiddlewares(mw ...Middleware) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithHealthHandlers overrides the handlers used for /healthz and /readyz endpoints.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) { cfg.health = h }
}

func withGroup(name string, reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.groups[name] = reg }
}

func withGroupMiddlewares(name string, mw []Middleware) Option {
	return func(cfg *routerConfig) { cfg.groupMWs[name] = append(cfg.groupMWs[name], mw...) }
}

// WithCategoryRoutes configures the /categories group.
func WithCategoryRoutes(reg RouteRegistrar) Option { return withGroup("categories", reg) }

// WithProductRoutes configures the /products group.
func WithProductRoutes(reg RouteRegistrar) Option { return withGroup("products", reg) }

// WithOrderRoutes configures the /orders group.
func WithOrderRoutes(reg RouteRegistrar) Option { return withGroup("orders", reg) }

// WithConversationRoutes configures the /conversations group.
func WithConversationRoutes(reg RouteRegistrar) Option { return withGroup("conversations", reg) }

// WithUserRoutes configures the /users group.
func WithUserRoutes(reg RouteRegistrar) Option { return withGroup("users", reg) }

// WithMeRoutes configures the /me group.
func WithMeRoutes(reg RouteRegistrar) Option { return withGroup("me", reg) }

// WithMediaRoutes configures the /media group.
func WithMediaRoutes(reg RouteRegistrar) Option { return withGroup("media", reg) }

// WithWebhookRoutes configures the /webhooks group. Signature checks come from
// WithWebhookMiddlewares.
func WithWebhookRoutes(reg RouteRegistrar) Option { return withGroup("webhooks", reg) }

// WithWebhookMiddlewares appends middleware applied to the /webhooks group only.
func WithWebhookMiddlewares(mw ...Middleware) Option { return withGroupMiddlewares("webhooks", mw) }

// WithInternalRoutes configures the /internal group.
func WithInternalRoutes(reg RouteRegistrar) Option { return withGroup("internal", reg) }

// WithInternalMiddlewares appends middleware applied to the /internal group only.
func WithInternalMiddlewares(mw ...Middleware) Option { return withGroupMiddlewares("internal", mw) }

// WithRealtimeRoutes configures /ws, mounted outside the API prefix and its timeout.
func WithRealtimeRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.realtime = reg }
}

func registerNotImplemented(r chi.Router, name string) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", fmt.Sprintf("%s routes not implemented", name), http.StatusNotImplemented))
	}
	r.HandleFunc("/*", handler)
	r.HandleFunc("/", handler)
	r.NotFound(handler)
	r.MethodNotAllowed(handler)
}
