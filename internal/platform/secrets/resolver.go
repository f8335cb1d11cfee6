package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	refScheme        = "secret://"
	defaultCacheTTL  = 10 * time.Minute
	defaultLocalFile = ".secrets.local"
)

// ErrNotFound is returned when neither Secret Manager nor the local file knows a reference.
var ErrNotFound = errors.New("secrets: reference not found")

type accessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Options configures NewResolver.
type Options struct {
	ProjectID   string
	LocalFile   string
	CacheTTL    time.Duration
	Logger      *zap.Logger
	ClientOpts  []option.ClientOption
	client      accessor
	disableDial bool
}

// Resolver implements config.SecretResolver on top of Secret Manager. References look like
// secret://name, secret://name@version or secret://projects/p/secrets/name/versions/v.
// Without a project or client it serves values from a local KEY=VALUE file.
type Resolver struct {
	client    accessor
	ownClient bool
	projectID string
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time

	localPath string
	localOnce sync.Once
	local     map[string]string

	mu    sync.Mutex
	cache map[string]cached

	latency metric.Float64Histogram
}

type cached struct {
	value   string
	expires time.Time
}

// NewResolver dials Secret Manager when a project is configured. A dial failure degrades to
// local-only resolution rather than failing startup.
func NewResolver(ctx context.Context, opts Options) (*Resolver, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		client:    opts.client,
		projectID: strings.TrimSpace(opts.ProjectID),
		ttl:       opts.CacheTTL,
		logger:    logger.Named("secrets"),
		now:       time.Now,
		localPath: strings.TrimSpace(opts.LocalFile),
		cache:     make(map[string]cached),
	}
	if r.ttl <= 0 {
		r.ttl = defaultCacheTTL
	}
	if r.localPath == "" {
		r.localPath = defaultLocalFile
	}
	if r.client == nil && r.projectID != "" && !opts.disableDial {
		client, err := secretmanager.NewClient(ctx, opts.ClientOpts...)
		if err != nil {
			r.logger.Warn("secret manager unavailable, using local file only", zap.Error(err))
		} else {
			r.client = client
			r.ownClient = true
		}
	}
	histogram, err := otel.Meter("github.com/friperie/api/internal/platform/secrets").Float64Histogram(
		"marketplace.secrets.resolve.duration",
		metric.WithUnit("ms"),
	)
	if err == nil {
		r.latency = histogram
	}
	return r, nil
}

// Close releases the Secret Manager client when the resolver created it.
func (r *Resolver) Close() error {
	if r.ownClient && r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ResolveSecret returns the secret value for ref.
func (r *Resolver) ResolveSecret(ctx context.Context, ref string) (string, error) {
	start := r.now()
	resource, err := r.resourceName(ref)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	entry, ok := r.cache[resource]
	r.mu.Unlock()
	if ok && r.now().Before(entry.expires) {
		r.observe(ctx, "cache", start)
		return entry.value, nil
	}

	value, source, err := r.fetch(ctx, ref, resource)
	if err != nil {
		r.observe(ctx, "error", start)
		return "", err
	}
	r.mu.Lock()
	r.cache[resource] = cached{value: value, expires: r.now().Add(r.ttl)}
	r.mu.Unlock()
	r.observe(ctx, source, start)
	return value, nil
}

// Invalidate forgets every cached value, forcing the next lookups to refetch.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cache = make(map[string]cached)
	r.mu.Unlock()
}

func (r *Resolver) fetch(ctx context.Context, ref, resource string) (string, string, error) {
	if r.client != nil && strings.HasPrefix(resource, "projects/") {
		resp, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
		if err == nil {
			return string(resp.GetPayload().GetData()), "remote", nil
		}
		switch status.Code(err) {
		case codes.NotFound, codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable:
			r.logger.Debug("secret manager lookup failed, trying local file", zap.String("resource", resource), zap.Error(err))
		default:
			return "", "", fmt.Errorf("secrets: access %s: %w", resource, err)
		}
	}
	if value, ok := r.lookupLocal(ref); ok {
		return value, "local", nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrNotFound, ref)
}

// resourceName expands ref into a Secret Manager version path. Without a project the bare
// name is returned and only the local file can serve it.
func (r *Resolver) resourceName(ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if !strings.HasPrefix(trimmed, refScheme) {
		return "", fmt.Errorf("secrets: unsupported reference %q", ref)
	}
	body := strings.TrimPrefix(trimmed, refScheme)
	if body == "" {
		return "", fmt.Errorf("secrets: empty reference %q", ref)
	}
	if strings.HasPrefix(body, "projects/") {
		if !strings.Contains(body, "/versions/") {
			body += "/versions/latest"
		}
		return body, nil
	}
	name, version, found := strings.Cut(body, "@")
	if !found || version == "" {
		version = "latest"
	}
	if r.projectID == "" {
		return name, nil
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", r.projectID, name, version), nil
}

func (r *Resolver) lookupLocal(ref string) (string, bool) {
	r.localOnce.Do(func() {
		values, err := readLocalFile(r.localPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("read local secrets file", zap.String("path", r.localPath), zap.Error(err))
		}
		r.local = values
	})
	trimmed := strings.TrimSpace(ref)
	if value, ok := r.local[trimmed]; ok {
		return value, true
	}
	name, _, _ := strings.Cut(strings.TrimPrefix(trimmed, refScheme), "@")
	value, ok := r.local[name]
	return value, ok
}

func readLocalFile(path string) (map[string]string, error) {
	values := map[string]string{}
	f, err := os.Open(path)
	if err != nil {
		return values, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) == "" {
			continue
		}
		values[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"`)
	}
	return values, scanner.Err()
}

func (r *Resolver) observe(ctx context.Context, source string, start time.Time) {
	if r.latency == nil {
		return
	}
	elapsed := float64(r.now().Sub(start).Microseconds()) / 1000
	r.latency.Record(ctx, elapsed, metric.WithAttributes(attribute.String("source", source)))
}
