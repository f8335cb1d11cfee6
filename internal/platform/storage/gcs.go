package storage

import (
	"context"
	"errors"
	"fmt"

	gcs "cloud.google.com/go/storage"
)

const immutableCacheControl = "public, max-age=31536000, immutable"

// GCSStore keeps media objects in a Cloud Storage bucket.
type GCSStore struct {
	client  *gcs.Client
	bucket  string
	baseURL string
}

// NewGCSStore serves objects from baseURL, defaulting to the public storage.googleapis.com host.
func NewGCSStore(client *gcs.Client, bucket, baseURL string) (*GCSStore, error) {
	if client == nil {
		return nil, errors.New("storage: gcs client is required")
	}
	if bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSStore{client: client, bucket: bucket, baseURL: baseURL}, nil
}

func (s *GCSStore) Put(ctx context.Context, objectPath, contentType string, data []byte) (string, error) {
	w := s.client.Bucket(s.bucket).Object(objectPath).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = immutableCacheControl
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("storage: write %s: %w", objectPath, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("storage: close %s: %w", objectPath, err)
	}
	return PublicURL(s.baseURL, objectPath), nil
}

// Delete removes the object behind url. A missing object is not an error.
func (s *GCSStore) Delete(ctx context.Context, url string) error {
	key, err := ObjectKey(s.baseURL, url)
	if err != nil {
		return err
	}
	if err := s.client.Bucket(s.bucket).Object(key).Delete(ctx); err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// Ping checks the bucket is reachable.
func (s *GCSStore) Ping(ctx context.Context) error {
	_, err := s.client.Bucket(s.bucket).Attrs(ctx)
	return err
}
