package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/friperie/api/internal/di"
	"github.com/friperie/api/internal/handlers"
	"github.com/friperie/api/internal/platform/auth"
	"github.com/friperie/api/internal/platform/config"
	"github.com/friperie/api/internal/platform/idempotency"
	"github.com/friperie/api/internal/platform/observability"
	"github.com/friperie/api/internal/platform/realtime"
	"github.com/friperie/api/internal/platform/secrets"
	"github.com/friperie/api/internal/platform/tasks"
	"github.com/friperie/api/internal/platform/textutil"
	"github.com/friperie/api/internal/repositories"
	"github.com/friperie/api/internal/services"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	startedAt := time.Now().UTC()

	envValues, err := config.EnvironmentValues()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read environment values: %v\n", err)
		os.Exit(1)
	}

	baseLogger, err := observability.NewLogger(envValues["LOG_LEVEL"])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = baseLogger.Sync() }()
	logger := baseLogger.Named("api")

	resolver, err := secrets.NewResolver(ctx, secrets.Options{
		ProjectID: firstNonEmpty(envValues["API_SECRET_PROJECT_ID"], envValues["API_FIREBASE_PROJECT_ID"]),
		LocalFile: firstNonEmpty(envValues["API_SECRET_FALLBACK_FILE"], ".secrets.local"),
		Logger:    logger.Named("secrets"),
	})
	if err != nil {
		logger.Fatal("failed to initialise secret resolver", zap.Error(err))
	}
	defer func() {
		if err := resolver.Close(); err != nil {
			logger.Warn("secret resolver close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(resolver),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.Names()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	var redisClient redis.UniversalClient
	if cfg.Redis.Addr != "" {
		redis.SetLogger(observability.NewPrintfAdapter(logger.Named("redis")))
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer func() { _ = redisClient.Close() }()
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}

	media, err := openMediaStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open media store", zap.Error(err))
	}
	defer media.close()

	queue := tasks.New(tasks.Options{
		Workers:   cfg.Tasks.Workers,
		QueueSize: cfg.Tasks.QueueSize,
		Timeout:   cfg.Tasks.Timeout,
		Logger:    logger,
	})

	hub := realtime.NewHub(logger, nil)
	events, err := openEventBus(ctx, cfg, hub, redisClient, logger)
	if err != nil {
		logger.Fatal("failed to initialise event delivery", zap.Error(err))
	}
	defer events.close()

	buildInfo := services.BuildInfo{Version: firstNonEmpty(envValues["API_BUILD_VERSION"], "dev"), StartedAt: startedAt}
	health, err := repositories.NewDependencyHealthRepository(healthChecks(store, media, redisClient, events), repositories.WithDependencyTimeout(healthCheckTimeout))
	if err != nil {
		logger.Fatal("failed to initialise health checks", zap.Error(err))
	}
	container, err := di.NewContainer(ctx, cfg, store.registry, di.Infrastructure{
		Media:       media.store,
		Health:      health,
		Tasks:       queue,
		Broadcaster: events.messages,
		Events:      events.orders,
		Sanitizer:   textutil.NewSanitizer(),
		Meter:       otel.Meter("github.com/friperie/api/services"),
		Logger:      observability.EventLogger(logger),
		Build:       buildInfo,
	})
	if err != nil {
		logger.Fatal("failed to initialise services", zap.Error(err))
	}
	svc := container.Services

	idemStore, stopSweeper, err := openIdempotencyStore(ctx, cfg, store, redisClient, logger)
	if err != nil {
		logger.Fatal("failed to initialise idempotency store", zap.Error(err))
	}
	defer stopSweeper()
	idempotent := idempotency.Middleware(idemStore, idempotency.Options{
		Header:   cfg.Idempotency.Header,
		TTL:      cfg.Idempotency.TTL,
		Required: true,
	})

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)

	var nonces auth.NonceStore = auth.NewMemoryNonceStore()
	if redisClient != nil {
		nonces = auth.NewRedisNonceStore(redisClient)
	}
	hmacValidator := auth.NewHMACValidator(cfg.Security.HMAC, nonces)
	oidcValidator := auth.NewOIDCValidator(auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL, &http.Client{Timeout: 5 * time.Second}), cfg.Security.OIDC)

	categoryHandlers := handlers.NewCategoryHandlers(svc.Categories)
	productHandlers := handlers.NewProductHandlers(authenticator, svc.Products, svc.Reviews)
	orderHandlers := handlers.NewOrderHandlers(authenticator, svc.Orders, idempotent)
	conversationHandlers := handlers.NewConversationHandlers(authenticator, svc.Conversations,
		handlers.WithMessageIdempotency(idempotent),
		handlers.WithMessageRateLimit(cfg.RateLimits.MessagesPerMinute, time.Minute, cfg.RateLimits.CacheSize, nil),
	)
	userHandlers := handlers.NewUserHandlers(authenticator, svc.Users)
	meHandlers := handlers.NewMeHandlers(authenticator, svc.Favorites, svc.Addresses)
	mediaHandlers := handlers.NewMediaHandlers(authenticator, svc.Media)
	moderationHandlers := handlers.NewModerationHandlers(svc.Products)
	realtimeHandlers := handlers.NewRealtimeHandlers(authenticator, hub)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(svc.System),
	)

	projectID := firstNonEmpty(cfg.Firebase.ProjectID, cfg.Firestore.ProjectID)
	router := handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(projectID),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(),
		),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCategoryRoutes(categoryHandlers.Routes),
		handlers.WithProductRoutes(productHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithConversationRoutes(conversationHandlers.Routes),
		handlers.WithUserRoutes(userHandlers.Routes),
		handlers.WithMeRoutes(meHandlers.Routes),
		handlers.WithMediaRoutes(mediaHandlers.Routes),
		handlers.WithRealtimeRoutes(realtimeHandlers.Routes),
		handlers.WithWebhookRoutes(moderationHandlers.WebhookRoutes),
		handlers.WithWebhookMiddlewares(hmacValidator.RequireHMAC("moderation")),
		handlers.WithInternalRoutes(moderationHandlers.InternalRoutes),
		handlers.WithInternalMiddlewares(oidcValidator.RequireOIDC()),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var background sync.WaitGroup
	events.start(ctx, &background)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr), zap.String("store", cfg.Store.Driver))
	go func() {
		serverLogger.Info("friperie api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := queue.Close(shutdownCtx); err != nil {
		logger.Warn("task queue did not drain", zap.Error(err))
	}
	hub.Close()
	background.Wait()
	if err := container.Close(shutdownCtx); err != nil {
		logger.Warn("store close error", zap.Error(err))
	}
}

// requiredSecretNames lists secrets that must resolve to a non-empty value. Local runs accept
// unsigned setups.
func requiredSecretNames(env map[string]string) []string {
	environment := strings.ToLower(strings.TrimSpace(env["API_SECURITY_ENVIRONMENT"]))
	if environment == "" || environment == "local" {
		return nil
	}
	required := []string{"Security.HMAC.Secrets[moderation]"}
	if strings.EqualFold(strings.TrimSpace(env["API_STORE_DRIVER"]), config.StorePostgres) {
		required = append(required, "Postgres.DSN")
	}
	return required
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
