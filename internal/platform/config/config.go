package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultStoreDriver         = StoreFirestore
	defaultPostgresMaxConns    = 20
	defaultPostgresTimeout     = 5 * time.Second
	defaultRedisChannel        = "marketplace:messages"
	defaultBroadcastDriver     = BroadcastLocal
	defaultMediaDriver         = MediaGCS
	defaultMediaMaxBytes       = 10 << 20
	defaultMediaMaxFiles       = 8
	defaultTaskWorkers         = 4
	defaultTaskQueueSize       = 256
	defaultTaskTimeout         = 30 * time.Second
	defaultMessagesPerMinute   = 30
	defaultRateLimitCacheSize  = 10000
	defaultSecurityEnvironment = "local"
	defaultOIDCJWKSURL         = "https://www.googleapis.com/oauth2/v3/certs"
	defaultSecurityIssuer      = "https://accounts.google.com"
	defaultHMACSignatureHeader = "X-Signature"
	defaultHMACTimestampHeader = "X-Signature-Timestamp"
	defaultHMACNonceHeader     = "X-Signature-Nonce"
	defaultHMACClockSkew       = 5 * time.Minute
	defaultHMACNonceTTL        = 5 * time.Minute
	defaultIdempotencyHeader   = "Idempotency-Key"
	defaultIdempotencyTTL      = 24 * time.Hour
	defaultIdempotencyInterval = 10 * time.Minute
	defaultSeedFile            = "seed/categories.toml"
)

// Store drivers.
const (
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
)

// Broadcast drivers used to fan out chat messages.
const (
	BroadcastLocal  = "local"
	BroadcastRedis  = "redis"
	BroadcastPubSub = "pubsub"
)

// Media drivers.
const (
	MediaGCS = "gcs"
	MediaS3  = "s3"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firebase    FirebaseConfig
	Store       StoreConfig
	Firestore   FirestoreConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Broadcast   BroadcastConfig
	Events      EventsConfig
	Media       MediaConfig
	Tasks       TaskConfig
	RateLimits  RateLimitConfig
	Security    SecurityConfig
	Idempotency IdempotencyConfig
	Seed        SeedConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig stores Firebase project settings used for user authentication.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PostgresConfig configures the relational backend.
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
	QueryTimeout time.Duration
}

// RedisConfig configures the shared Redis instance.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// BroadcastConfig selects how new messages reach connected clients.
type BroadcastConfig struct {
	Driver      string
	PubSubTopic string
}

// EventsConfig routes order lifecycle events. Without a topic they are only logged.
type EventsConfig struct {
	OrderTopic string
}

// MediaConfig configures product image storage.
type MediaConfig struct {
	Driver        string
	Bucket        string
	PublicBaseURL string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	MaxBytes      int64
	MaxFiles      int
}

// TaskConfig sizes the in-process best-effort task queue.
type TaskConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

// RateLimitConfig controls request throttling.
type RateLimitConfig struct {
	MessagesPerMinute int
	CacheSize         int
}

// SecurityConfig groups server-to-server authentication settings.
type SecurityConfig struct {
	Environment string
	OIDC        OIDCConfig
	HMAC        HMACConfig
}

// OIDCConfig controls Google-signed token verification on internal routes.
type OIDCConfig struct {
	JWKSURL  string
	Audience string
	Issuers  []string
}

// HMACConfig captures webhook signing expectations.
type HMACConfig struct {
	Secrets         map[string]string
	SignatureHeader string
	TimestampHeader string
	NonceHeader     string
	ClockSkew       time.Duration
	NonceTTL        time.Duration
}

// Idempotency key stores. An empty driver picks redis when configured, then the primary store.
const (
	IdempotencyMemory    = "memory"
	IdempotencyRedis     = "redis"
	IdempotencyFirestore = "firestore"
)

// IdempotencyConfig controls idempotency middleware behaviour. CleanupInterval only applies to the
// in-memory store; the others expire keys natively.
type IdempotencyConfig struct {
	Driver          string
	Header          string
	TTL             time.Duration
	CleanupInterval time.Duration
}

// SeedConfig points the seeder at its data file.
type SeedConfig struct {
	File string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets resolved to empty values.
// Names are reported as short hashes so logs never carry the field layout of credentials.
type MissingSecretsError struct {
	redacted []string
	names    []string
}

func (e *MissingSecretsError) Error() string {
	if e == nil || len(e.redacted) == 0 {
		return "missing required secrets"
	}
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.redacted, ", "))
}

// Names returns the config field names of the missing secrets.
func (e *MissingSecretsError) Names() []string {
	if e == nil {
		return nil
	}
	return append([]string(nil), e.names...)
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

func defaultLoaderOptions() loaderOptions {
	return loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
}

// WithEnvFile overrides the .env file path used for local overrides. An empty path disables it.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap injects explicit values that take precedence over the system environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithRequiredSecrets marks config fields (e.g. "Redis.Password", "Security.HMAC.Secrets[moderation]")
// that must resolve to a non-empty value.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

// EnvironmentValues returns the merged environment (dotenv < OS env < explicit map) so callers can
// build dependencies such as the secret fetcher before invoking Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := defaultLoaderOptions()
	for _, opt := range opts {
		opt(&options)
	}
	src, err := newSource(options)
	if err != nil {
		return nil, err
	}
	return src.merged(), nil
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := defaultLoaderOptions()
	for _, opt := range opts {
		opt(&options)
	}

	src, err := newSource(options)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         src.str("API_SERVER_PORT", defaultPort),
			ReadTimeout:  src.duration("API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: src.duration("API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  src.duration("API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       src.str("API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: src.str("API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(src.str("API_STORE_DRIVER", defaultStoreDriver)),
		},
		Firestore: FirestoreConfig{
			ProjectID:    src.str("API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: src.str("API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Postgres: PostgresConfig{
			DSN:          src.str("API_POSTGRES_DSN", ""),
			MaxOpenConns: src.integer("API_POSTGRES_MAX_OPEN_CONNS", defaultPostgresMaxConns),
			QueryTimeout: src.duration("API_POSTGRES_QUERY_TIMEOUT", defaultPostgresTimeout),
		},
		Redis: RedisConfig{
			Addr:     src.str("API_REDIS_ADDR", ""),
			Password: src.str("API_REDIS_PASSWORD", ""),
			DB:       src.integer("API_REDIS_DB", 0),
			Channel:  src.str("API_REDIS_CHANNEL", defaultRedisChannel),
		},
		Broadcast: BroadcastConfig{
			Driver:      strings.ToLower(src.str("API_BROADCAST_DRIVER", defaultBroadcastDriver)),
			PubSubTopic: src.str("API_BROADCAST_PUBSUB_TOPIC", ""),
		},
		Events: EventsConfig{
			OrderTopic: src.str("API_EVENTS_ORDER_TOPIC", ""),
		},
		Media: MediaConfig{
			Driver:        strings.ToLower(src.str("API_MEDIA_DRIVER", defaultMediaDriver)),
			Bucket:        src.str("API_MEDIA_BUCKET", ""),
			PublicBaseURL: src.str("API_MEDIA_PUBLIC_BASE_URL", ""),
			Region:        src.str("API_MEDIA_REGION", ""),
			Endpoint:      src.str("API_MEDIA_ENDPOINT", ""),
			AccessKey:     src.str("API_MEDIA_ACCESS_KEY", ""),
			SecretKey:     src.str("API_MEDIA_SECRET_KEY", ""),
			MaxBytes:      int64(src.integer("API_MEDIA_MAX_BYTES", defaultMediaMaxBytes)),
			MaxFiles:      src.integer("API_MEDIA_MAX_FILES", defaultMediaMaxFiles),
		},
		Tasks: TaskConfig{
			Workers:   src.integer("API_TASKS_WORKERS", defaultTaskWorkers),
			QueueSize: src.integer("API_TASKS_QUEUE_SIZE", defaultTaskQueueSize),
			Timeout:   src.duration("API_TASKS_TIMEOUT", defaultTaskTimeout),
		},
		RateLimits: RateLimitConfig{
			MessagesPerMinute: src.integer("API_RATELIMIT_MESSAGES_PER_MIN", defaultMessagesPerMinute),
			CacheSize:         src.integer("API_RATELIMIT_CACHE_SIZE", defaultRateLimitCacheSize),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(src.str("API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
			OIDC: OIDCConfig{
				JWKSURL:  src.str("API_SECURITY_OIDC_JWKS_URL", defaultOIDCJWKSURL),
				Audience: src.str("API_SECURITY_OIDC_AUDIENCE", ""),
				Issuers:  src.csv("API_SECURITY_OIDC_ISSUERS"),
			},
			HMAC: HMACConfig{
				Secrets:         src.keyValues("API_SECURITY_HMAC_SECRETS"),
				SignatureHeader: src.str("API_SECURITY_HMAC_HEADER_SIGNATURE", defaultHMACSignatureHeader),
				TimestampHeader: src.str("API_SECURITY_HMAC_HEADER_TIMESTAMP", defaultHMACTimestampHeader),
				NonceHeader:     src.str("API_SECURITY_HMAC_HEADER_NONCE", defaultHMACNonceHeader),
				ClockSkew:       src.duration("API_SECURITY_HMAC_CLOCK_SKEW", defaultHMACClockSkew),
				NonceTTL:        src.duration("API_SECURITY_HMAC_NONCE_TTL", defaultHMACNonceTTL),
			},
		},
		Idempotency: IdempotencyConfig{
			Driver:          strings.ToLower(src.str("API_IDEMPOTENCY_DRIVER", "")),
			Header:          src.str("API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:             src.duration("API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval: src.duration("API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
		},
		Seed: SeedConfig{
			File: src.str("API_SEED_FILE", defaultSeedFile),
		},
	}

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.Idempotency.Driver == "" {
		switch {
		case cfg.Redis.Addr != "":
			cfg.Idempotency.Driver = IdempotencyRedis
		case cfg.Store.Driver == StoreFirestore:
			cfg.Idempotency.Driver = IdempotencyFirestore
		default:
			cfg.Idempotency.Driver = IdempotencyMemory
		}
	}
	if len(cfg.Security.OIDC.Issuers) == 0 {
		cfg.Security.OIDC.Issuers = []string{defaultSecurityIssuer}
	}

	resolved := make(map[string]string)
	resolver := options.secret
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Postgres.DSN", &cfg.Postgres.DSN},
		{"Redis.Password", &cfg.Redis.Password},
		{"Media.SecretKey", &cfg.Media.SecretKey},
	}
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, resolver)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}
	for key, value := range cfg.Security.HMAC.Secrets {
		secret, err := resolveSecret(ctx, value, resolver)
		if err != nil {
			return Config{}, err
		}
		cfg.Security.HMAC.Secrets[key] = secret
		resolved[fmt.Sprintf("Security.HMAC.Secrets[%s]", key)] = strings.TrimSpace(secret)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		return Config{}, missing
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var invalid []string
	if cfg.Server.Port == "" {
		invalid = append(invalid, "Server.Port")
	}
	switch cfg.Store.Driver {
	case StoreFirestore:
		if cfg.Firestore.ProjectID == "" {
			invalid = append(invalid, "Firestore.ProjectID")
		}
	case StorePostgres:
		if cfg.Postgres.DSN == "" {
			invalid = append(invalid, "Postgres.DSN")
		}
	default:
		invalid = append(invalid, "Store.Driver")
	}
	switch cfg.Broadcast.Driver {
	case BroadcastLocal:
	case BroadcastRedis:
		if cfg.Redis.Addr == "" {
			invalid = append(invalid, "Redis.Addr")
		}
	case BroadcastPubSub:
		if cfg.Broadcast.PubSubTopic == "" {
			invalid = append(invalid, "Broadcast.PubSubTopic")
		}
	default:
		invalid = append(invalid, "Broadcast.Driver")
	}
	switch cfg.Media.Driver {
	case MediaGCS, MediaS3:
		if cfg.Media.Bucket == "" {
			invalid = append(invalid, "Media.Bucket")
		}
	default:
		invalid = append(invalid, "Media.Driver")
	}
	if cfg.Media.MaxBytes <= 0 {
		invalid = append(invalid, "Media.MaxBytes")
	}
	if cfg.Media.MaxFiles <= 0 {
		invalid = append(invalid, "Media.MaxFiles")
	}
	if cfg.Tasks.Workers <= 0 {
		invalid = append(invalid, "Tasks.Workers")
	}
	if cfg.Tasks.QueueSize <= 0 {
		invalid = append(invalid, "Tasks.QueueSize")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		invalid = append(invalid, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		invalid = append(invalid, "Idempotency.TTL")
	}
	switch cfg.Idempotency.Driver {
	case IdempotencyMemory:
	case IdempotencyRedis:
		if cfg.Redis.Addr == "" {
			invalid = append(invalid, "Redis.Addr")
		}
	case IdempotencyFirestore:
		if cfg.Firestore.ProjectID == "" {
			invalid = append(invalid, "Firestore.ProjectID")
		}
	default:
		invalid = append(invalid, "Idempotency.Driver")
	}
	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "secret://") && !strings.HasPrefix(trimmed, "sm://") {
		return value, nil
	}
	ref := "secret://" + strings.TrimPrefix(strings.TrimPrefix(trimmed, "secret://"), "sm://")
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	seen := make(map[string]struct{}, len(required))
	var missing MissingSecretsError
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		if resolved[name] != "" {
			continue
		}
		sum := sha256.Sum256([]byte(name))
		missing.names = append(missing.names, name)
		missing.redacted = append(missing.redacted, hex.EncodeToString(sum[:8]))
	}
	if len(missing.names) == 0 {
		return nil
	}
	sort.Strings(missing.names)
	sort.Strings(missing.redacted)
	return &missing
}
