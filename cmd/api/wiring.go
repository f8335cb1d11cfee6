package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	gcs "cloud.google.com/go/storage"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/friperie/api/internal/platform/config"
	pfirestore "github.com/friperie/api/internal/platform/firestore"
	"github.com/friperie/api/internal/platform/idempotency"
	"github.com/friperie/api/internal/platform/jobs"
	ppostgres "github.com/friperie/api/internal/platform/postgres"
	"github.com/friperie/api/internal/platform/realtime"
	"github.com/friperie/api/internal/platform/storage"
	"github.com/friperie/api/internal/repositories"
	rfirestore "github.com/friperie/api/internal/repositories/firestore"
	rpostgres "github.com/friperie/api/internal/repositories/postgres"
	"github.com/friperie/api/internal/services"
)

const (
	slowQueryThreshold = 250 * time.Millisecond
	healthCheckTimeout = 2 * time.Second
)

// storeHandle keeps the registry along with the Firestore provider when that backend is selected,
// since the Firestore idempotency store shares it.
type storeHandle struct {
	registry  repositories.Registry
	firestore *pfirestore.Provider
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (storeHandle, error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := ppostgres.Open(cfg.Postgres)
		if err != nil {
			return storeHandle{}, err
		}
		db.AddQueryHook(ppostgres.QueryLogger{Logger: logger.Named("postgres"), SlowThreshold: slowQueryThreshold})
		if err := rpostgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return storeHandle{}, fmt.Errorf("migrate: %w", err)
		}
		registry, err := rpostgres.NewRegistry(db)
		if err != nil {
			_ = db.Close()
			return storeHandle{}, err
		}
		return storeHandle{registry: registry}, nil
	default:
		provider := pfirestore.NewProvider(cfg.Firestore)
		registry, err := rfirestore.NewRegistry(provider)
		if err != nil {
			return storeHandle{}, err
		}
		return storeHandle{registry: registry, firestore: provider}, nil
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

type mediaHandle struct {
	store services.MediaStore
	ping  pinger
	close func()
}

func openMediaStore(ctx context.Context, cfg config.Config) (mediaHandle, error) {
	switch cfg.Media.Driver {
	case config.MediaS3:
		store, err := storage.NewS3Store(ctx, storage.S3Options{
			Bucket:        cfg.Media.Bucket,
			Region:        cfg.Media.Region,
			Endpoint:      cfg.Media.Endpoint,
			PublicBaseURL: cfg.Media.PublicBaseURL,
			AccessKey:     cfg.Media.AccessKey,
			SecretKey:     cfg.Media.SecretKey,
		})
		if err != nil {
			return mediaHandle{}, err
		}
		return mediaHandle{store: store, ping: store, close: func() {}}, nil
	default:
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return mediaHandle{}, fmt.Errorf("storage client: %w", err)
		}
		store, err := storage.NewGCSStore(client, cfg.Media.Bucket, cfg.Media.PublicBaseURL)
		if err != nil {
			_ = client.Close()
			return mediaHandle{}, err
		}
		return mediaHandle{store: store, ping: store, close: func() { _ = client.Close() }}, nil
	}
}

// eventBus routes chat messages and order events to their configured transports.
type eventBus struct {
	messages services.MessageBroadcaster
	orders   services.OrderEventPublisher
	redis    *realtime.RedisBroadcaster
	pubsub   *pubsub.Client
	topics   []*pubsub.Topic
	logger   *zap.Logger
}

func openEventBus(ctx context.Context, cfg config.Config, hub *realtime.Hub, redisClient redis.UniversalClient, logger *zap.Logger) (*eventBus, error) {
	bus := &eventBus{messages: hub, orders: loggingOrderPublisher{logger: logger.Named("orders")}, logger: logger}

	needsPubSub := cfg.Broadcast.Driver == config.BroadcastPubSub || cfg.Events.OrderTopic != ""
	if needsPubSub {
		projectID := cfg.Firebase.ProjectID
		if projectID == "" {
			projectID = cfg.Firestore.ProjectID
		}
		client, err := pubsub.NewClient(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client: %w", err)
		}
		bus.pubsub = client
	}

	switch cfg.Broadcast.Driver {
	case config.BroadcastRedis:
		if redisClient == nil {
			bus.close()
			return nil, errors.New("redis broadcast requires API_REDIS_ADDR")
		}
		broadcaster, err := realtime.NewRedisBroadcaster(redisClient, cfg.Redis.Channel, hub, logger.Named("realtime"))
		if err != nil {
			bus.close()
			return nil, err
		}
		bus.redis = broadcaster
		bus.messages = broadcaster
	case config.BroadcastPubSub:
		publisher, err := jobs.NewPubSubPublisher(bus.topic(cfg.Broadcast.PubSubTopic))
		if err != nil {
			bus.close()
			return nil, err
		}
		bus.messages = realtime.Fanout{hub, publisher}
	}

	if cfg.Events.OrderTopic != "" {
		publisher, err := jobs.NewPubSubPublisher(bus.topic(cfg.Events.OrderTopic))
		if err != nil {
			bus.close()
			return nil, err
		}
		bus.orders = publisher
	}
	return bus, nil
}

func (b *eventBus) topic(name string) *pubsub.Topic {
	topic := b.pubsub.Topic(name)
	b.topics = append(b.topics, topic)
	return topic
}

// start launches the Redis relay when that transport is active.
func (b *eventBus) start(ctx context.Context, wg *sync.WaitGroup) {
	if b.redis == nil {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := b.redis.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Error("redis relay stopped", zap.Error(err))
		}
	}()
}

func (b *eventBus) close() {
	for _, topic := range b.topics {
		topic.Stop()
	}
	if b.pubsub != nil {
		_ = b.pubsub.Close()
	}
}

type loggingOrderPublisher struct {
	logger *zap.Logger
}

func (p loggingOrderPublisher) PublishOrderEvent(_ context.Context, event services.OrderEvent) error {
	p.logger.Info("order event",
		zap.String("type", event.Type),
		zap.String("orderId", event.OrderID),
		zap.String("productId", event.ProductID),
		zap.String("previousStatus", event.PreviousStatus),
		zap.String("currentStatus", event.CurrentStatus),
		zap.String("actorId", event.ActorID),
	)
	return nil
}

func openIdempotencyStore(ctx context.Context, cfg config.Config, store storeHandle, redisClient redis.UniversalClient, logger *zap.Logger) (idempotency.Store, func(), error) {
	switch cfg.Idempotency.Driver {
	case config.IdempotencyRedis:
		if redisClient == nil {
			return nil, nil, errors.New("redis idempotency store requires API_REDIS_ADDR")
		}
		s, err := idempotency.NewRedisStore(redisClient)
		return s, func() {}, err
	case config.IdempotencyFirestore:
		if store.firestore == nil {
			return nil, nil, errors.New("firestore idempotency store requires the firestore backend")
		}
		s, err := idempotency.NewFirestoreStore(store.firestore)
		return s, func() {}, err
	default:
		mem := idempotency.NewMemoryStore()
		sweepCtx, cancel := context.WithCancel(ctx)
		interval := cfg.Idempotency.CleanupInterval
		if interval <= 0 {
			interval = 10 * time.Minute
		}
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-sweepCtx.Done():
					return
				case now := <-ticker.C:
					if removed := mem.Sweep(now.UTC()); removed > 0 {
						logger.Debug("idempotency keys expired", zap.Int("removed", removed))
					}
				}
			}
		}()
		return mem, cancel, nil
	}
}

func healthChecks(store storeHandle, media mediaHandle, redisClient redis.UniversalClient, events *eventBus) []repositories.DependencyCheck {
	checks := []repositories.DependencyCheck{
		{Name: "store", Timeout: healthCheckTimeout, Check: store.registry.Ping},
		{Name: "media", Timeout: healthCheckTimeout, Check: media.ping.Ping},
	}
	if redisClient != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "redis",
			Timeout: healthCheckTimeout,
			Check:   func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	for _, topic := range events.topics {
		topic := topic
		checks = append(checks, repositories.DependencyCheck{
			Name:    "pubsub:" + topic.ID(),
			Timeout: healthCheckTimeout,
			Check: func(ctx context.Context) error {
				ok, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("topic %s does not exist", topic.ID())
				}
				return nil
			},
		})
	}
	return checks
}
