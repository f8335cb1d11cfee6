package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/friperie/api/internal/platform/config"
	"github.com/friperie/api/internal/repositories"
	"github.com/friperie/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Categories    services.CategoryService
	Products      services.ProductService
	Orders        services.OrderService
	Conversations services.ConversationService
	Favorites     services.FavoriteService
	Addresses     services.AddressService
	Users         services.UserService
	Reviews       services.ReviewService
	Media         services.MediaService
	System        services.SystemService
}

// Infrastructure carries the process level collaborators shared by services. Media and Health are
// required; the rest fall back to service defaults when nil.
type Infrastructure struct {
	Media       services.MediaStore
	Health      repositories.HealthRepository
	Tasks       services.TaskScheduler
	Broadcaster services.MessageBroadcaster
	Events      services.OrderEventPublisher
	Sanitizer   services.TextSanitizer
	Meter       metric.Meter
	Logger      services.Logger
	Build       services.BuildInfo
	Clock       func() time.Time
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the service graph. Tests can supply in-memory registries.
func NewContainer(_ context.Context, cfg config.Config, reg repositories.Registry, infra Infrastructure) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	if infra.Media == nil {
		return nil, errors.New("media store is required")
	}
	if infra.Health == nil {
		return nil, errors.New("health repository is required")
	}

	svc, err := buildServices(reg, cfg, infra)
	if err != nil {
		return nil, err
	}
	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(reg repositories.Registry, cfg config.Config, infra Infrastructure) (Services, error) {
	var (
		svc Services
		err error
	)

	svc.Categories, err = services.NewCategoryService(services.CategoryServiceDeps{
		Categories: reg.Categories(),
		Logger:     infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build category service: %w", err)
	}

	svc.Media, err = services.NewMediaService(services.MediaServiceDeps{
		Store:    infra.Media,
		MaxBytes: cfg.Media.MaxBytes,
		MaxFiles: cfg.Media.MaxFiles,
		Logger:   infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build media service: %w", err)
	}

	svc.Reviews, err = services.NewReviewService(services.ReviewServiceDeps{
		Reviews:   reg.Reviews(),
		Comments:  reg.Comments(),
		Products:  reg.Products(),
		Users:     reg.Users(),
		Sanitizer: infra.Sanitizer,
		Clock:     infra.Clock,
		Logger:    infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build review service: %w", err)
	}

	svc.Products, err = services.NewProductService(services.ProductServiceDeps{
		Products:   reg.Products(),
		Favorites:  reg.Favorites(),
		Categories: svc.Categories,
		Media:      svc.Media,
		Reviews:    svc.Reviews,
		Tasks:      infra.Tasks,
		Sanitizer:  infra.Sanitizer,
		Clock:      infra.Clock,
		Logger:     infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build product service: %w", err)
	}

	svc.Orders, err = services.NewOrderService(services.OrderServiceDeps{
		Orders: reg.Orders(),
		Events: infra.Events,
		Tasks:  infra.Tasks,
		Meter:  infra.Meter,
		Clock:  infra.Clock,
		Logger: infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}

	svc.Conversations, err = services.NewConversationService(services.ConversationServiceDeps{
		Conversations: reg.Conversations(),
		Messages:      reg.Messages(),
		Products:      reg.Products(),
		Broadcaster:   infra.Broadcaster,
		Tasks:         infra.Tasks,
		Sanitizer:     infra.Sanitizer,
		Clock:         infra.Clock,
		Logger:        infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build conversation service: %w", err)
	}

	svc.Favorites, err = services.NewFavoriteService(services.FavoriteServiceDeps{
		Favorites: reg.Favorites(),
		Products:  reg.Products(),
		Clock:     infra.Clock,
		Logger:    infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build favorite service: %w", err)
	}

	svc.Addresses, err = services.NewAddressService(services.AddressServiceDeps{
		Addresses: reg.Addresses(),
		Clock:     infra.Clock,
		Logger:    infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build address service: %w", err)
	}

	svc.Users, err = services.NewUserService(services.UserServiceDeps{
		Users:     reg.Users(),
		Products:  reg.Products(),
		Sanitizer: infra.Sanitizer,
		Clock:     infra.Clock,
		Logger:    infra.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build user service: %w", err)
	}

	svc.System, err = services.NewSystemService(services.SystemServiceDeps{
		Health: infra.Health,
		Build:  infra.Build,
		Clock:  infra.Clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	return svc, nil
}
