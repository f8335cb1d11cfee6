package secrets

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeAccessor struct {
	mu     sync.Mutex
	values map[string]string
	errs   map[string]error
	calls  map[string]int
}

func newFakeAccessor() *fakeAccessor {
	return &fakeAccessor{values: map[string]string{}, errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeAccessor) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.GetName()]++
	if err, ok := f.errs[req.GetName()]; ok {
		return nil, err
	}
	value, ok := f.values[req.GetName()]
	if !ok {
		return nil, status.Error(codes.NotFound, "missing")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)}}, nil
}

func (*fakeAccessor) Close() error { return nil }

func TestResolverCachesRemoteValue(t *testing.T) {
	client := newFakeAccessor()
	client.values["projects/friperie/secrets/moderation-hmac/versions/latest"] = "s3cret"
	r, err := NewResolver(context.Background(), Options{ProjectID: "friperie", client: client})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		value, err := r.ResolveSecret(context.Background(), "secret://moderation-hmac")
		require.NoError(t, err)
		assert.Equal(t, "s3cret", value)
	}
	assert.Equal(t, 1, client.calls["projects/friperie/secrets/moderation-hmac/versions/latest"])

	r.Invalidate()
	_, err = r.ResolveSecret(context.Background(), "secret://moderation-hmac")
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls["projects/friperie/secrets/moderation-hmac/versions/latest"])
}

func TestResolverPinnedVersionAndFullPath(t *testing.T) {
	client := newFakeAccessor()
	client.values["projects/friperie/secrets/redis/versions/3"] = "v3"
	client.values["projects/other/secrets/redis/versions/latest"] = "other"
	r, err := NewResolver(context.Background(), Options{ProjectID: "friperie", client: client})
	require.NoError(t, err)

	value, err := r.ResolveSecret(context.Background(), "secret://redis@3")
	require.NoError(t, err)
	assert.Equal(t, "v3", value)

	value, err = r.ResolveSecret(context.Background(), "secret://projects/other/secrets/redis")
	require.NoError(t, err)
	assert.Equal(t, "other", value)
}

func TestResolverFallsBackToLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".secrets.local")
	require.NoError(t, os.WriteFile(path, []byte("# local\nsecret://moderation-hmac=local-value\nredis=\"pw\"\n"), 0o600))

	client := newFakeAccessor()
	client.errs["projects/friperie/secrets/moderation-hmac/versions/latest"] = status.Error(codes.PermissionDenied, "denied")
	r, err := NewResolver(context.Background(), Options{ProjectID: "friperie", LocalFile: path, client: client})
	require.NoError(t, err)

	value, err := r.ResolveSecret(context.Background(), "secret://moderation-hmac")
	require.NoError(t, err)
	assert.Equal(t, "local-value", value)

	offline, err := NewResolver(context.Background(), Options{LocalFile: path, disableDial: true})
	require.NoError(t, err)
	value, err = offline.ResolveSecret(context.Background(), "secret://redis")
	require.NoError(t, err)
	assert.Equal(t, "pw", value)

	_, err = offline.ResolveSecret(context.Background(), "secret://absent")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolverSurfacesHardFailures(t *testing.T) {
	client := newFakeAccessor()
	client.errs["projects/friperie/secrets/x/versions/latest"] = status.Error(codes.InvalidArgument, "bad")
	r, err := NewResolver(context.Background(), Options{ProjectID: "friperie", client: client})
	require.NoError(t, err)

	_, err = r.ResolveSecret(context.Background(), "secret://x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = r.ResolveSecret(context.Background(), "plain-value")
	require.Error(t, err)
}
