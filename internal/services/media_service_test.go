package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	domain "github.com/friperie/api/internal/domain"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
)

type memoryMediaStore struct {
	mu      sync.Mutex
	objects map[string]string
	deleted []string
	failOn  string
}

func newMemoryMediaStore() *memoryMediaStore {
	return &memoryMediaStore{objects: map[string]string{}}
}

func (m *memoryMediaStore) Put(_ context.Context, objectPath, contentType string, _ []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && strings.HasSuffix(objectPath, m.failOn) {
		return "", errors.New("bucket unavailable")
	}
	url := "https://media.test/" + objectPath
	m.objects[url] = contentType
	return url, nil
}

func (m *memoryMediaStore) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[url]; !ok {
		return errors.New("object not found")
	}
	delete(m.objects, url)
	m.deleted = append(m.deleted, url)
	return nil
}

func TestMediaServiceUpload(t *testing.T) {
	store := newMemoryMediaStore()
	svc, err := NewMediaService(MediaServiceDeps{Store: store, IDGenerator: sequentialIDs("m")})
	if err != nil {
		t.Fatalf("new media service: %v", err)
	}

	url, err := svc.Upload(context.Background(), "seller", MediaFile{Name: "front.png", ContentType: "application/octet-stream", Data: pngHeader})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "https://media.test/products/seller/m001.png" {
		t.Fatalf("unexpected url %s", url)
	}
	if store.objects[url] != "image/png" {
		t.Fatalf("expected sniffed content type, got %q", store.objects[url])
	}
}

func TestMediaServiceRejectsInvalidFiles(t *testing.T) {
	svc, err := NewMediaService(MediaServiceDeps{Store: newMemoryMediaStore(), MaxBytes: 32, MaxFiles: 2})
	if err != nil {
		t.Fatalf("new media service: %v", err)
	}
	cases := map[string][]MediaFile{
		"empty":      {{Name: "a.png"}},
		"too large":  {{Name: "a.png", Data: append(append([]byte{}, pngHeader...), make([]byte, 64)...)}},
		"wrong type": {{Name: "a.txt", ContentType: "text/plain", Data: []byte("hello world")}},
		"too many":   {{Name: "a", Data: pngHeader}, {Name: "b", Data: pngHeader}, {Name: "c", Data: pngHeader}},
		"none":       nil,
	}
	for name, files := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.UploadMany(context.Background(), "seller", files); !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestMediaServiceUploadManyKeepsOrder(t *testing.T) {
	store := newMemoryMediaStore()
	svc, _ := NewMediaService(MediaServiceDeps{Store: store, IDGenerator: sequentialIDs("m")})

	urls, err := svc.UploadMany(context.Background(), "seller", []MediaFile{
		{Name: "1.png", Data: pngHeader},
		{Name: "2.jpg", Data: jpegHeader},
	})
	if err != nil {
		t.Fatalf("upload many: %v", err)
	}
	if len(urls) != 2 || !strings.HasSuffix(urls[0], ".png") || !strings.HasSuffix(urls[1], ".jpg") {
		t.Fatalf("unexpected urls %v", urls)
	}
}

func TestMediaServiceUploadManyRollsBack(t *testing.T) {
	store := newMemoryMediaStore()
	store.failOn = ".jpg"
	svc, _ := NewMediaService(MediaServiceDeps{Store: store})

	_, err := svc.UploadMany(context.Background(), "seller", []MediaFile{
		{Name: "1.png", Data: pngHeader},
		{Name: "2.jpg", Data: jpegHeader},
	})
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if len(store.objects) != 0 {
		t.Fatalf("expected rollback to remove stored objects, left %v", store.objects)
	}
}

func TestMediaServiceDeleteManyJoinsFailures(t *testing.T) {
	store := newMemoryMediaStore()
	svc, _ := NewMediaService(MediaServiceDeps{Store: store})
	url, err := svc.Upload(context.Background(), "seller", MediaFile{Data: pngHeader})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	err = svc.DeleteMany(context.Background(), []string{url, "https://media.test/missing.png"})
	if err == nil || !strings.Contains(err.Error(), "missing.png") {
		t.Fatalf("expected joined error naming the missing object, got %v", err)
	}
	if len(store.deleted) != 1 || store.deleted[0] != url {
		t.Fatalf("expected existing object to be deleted, got %v", store.deleted)
	}
}
