package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/platform/storage"
)

const (
	defaultMediaMaxBytes   = 10 << 20
	defaultMediaMaxFiles   = 8
	mediaUploadConcurrency = 4
)

var allowedMediaTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// MediaServiceDeps bundles collaborators required to construct the media service.
type MediaServiceDeps struct {
	Store       MediaStore
	MaxBytes    int64
	MaxFiles    int
	IDGenerator func() string
	Logger      Logger
}

type mediaService struct {
	store    MediaStore
	maxBytes int64
	maxFiles int
	newID    func() string
	logger   Logger
}

// NewMediaService wires dependencies into a MediaService implementation.
func NewMediaService(deps MediaServiceDeps) (MediaService, error) {
	if deps.Store == nil {
		return nil, errors.New("media service: store is required")
	}
	maxBytes := deps.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMediaMaxBytes
	}
	maxFiles := deps.MaxFiles
	if maxFiles <= 0 {
		maxFiles = defaultMediaMaxFiles
	}
	return &mediaService{
		store:    deps.Store,
		maxBytes: maxBytes,
		maxFiles: maxFiles,
		newID:    idGenerator(deps.IDGenerator),
		logger:   loggerOrNoop(deps.Logger),
	}, nil
}

func (s *mediaService) Upload(ctx context.Context, ownerID string, file MediaFile) (string, error) {
	owner, err := requireID(ownerID, "owner id")
	if err != nil {
		return "", err
	}
	ext, err := s.validate(file)
	if err != nil {
		return "", err
	}
	objectPath, err := storage.ProductImagePath(owner, s.newID(), ext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	url, err := s.store.Put(ctx, objectPath, detectContentType(file), file.Data)
	if err != nil {
		return "", &StoreError{kind: domain.ErrUnavailable, cause: fmt.Errorf("media upload: %w", err)}
	}
	return url, nil
}

// UploadMany stores files concurrently and returns URLs in input order. On any failure the
// already stored objects are removed.
func (s *mediaService) UploadMany(ctx context.Context, ownerID string, files []MediaFile) ([]string, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files", domain.ErrInvalidInput)
	}
	if len(files) > s.maxFiles {
		return nil, fmt.Errorf("%w: at most %d files per upload", domain.ErrInvalidInput, s.maxFiles)
	}
	for _, file := range files {
		if _, err := s.validate(file); err != nil {
			return nil, err
		}
	}

	urls := make([]string, len(files))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(mediaUploadConcurrency)
	for i, file := range files {
		group.Go(func() error {
			url, err := s.Upload(groupCtx, ownerID, file)
			if err != nil {
				return err
			}
			urls[i] = url
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		stored := make([]string, 0, len(urls))
		for _, url := range urls {
			if url != "" {
				stored = append(stored, url)
			}
		}
		if cleanupErr := s.DeleteMany(context.WithoutCancel(ctx), stored); cleanupErr != nil {
			s.logger(ctx, "media.upload.rollback.failed", map[string]any{"count": len(stored), "error": cleanupErr.Error()})
		}
		return nil, err
	}
	return urls, nil
}

// DeleteMany removes every URL it can and reports the failures joined together.
func (s *mediaService) DeleteMany(ctx context.Context, urls []string) error {
	var group errgroup.Group
	group.SetLimit(mediaUploadConcurrency)
	errs := make([]error, len(urls))
	for i, url := range urls {
		group.Go(func() error {
			if err := s.store.Delete(ctx, url); err != nil {
				errs[i] = fmt.Errorf("delete %s: %w", url, err)
			}
			return nil
		})
	}
	_ = group.Wait()
	if err := errors.Join(errs...); err != nil {
		s.logger(ctx, "media.delete.failed", map[string]any{"count": len(urls), "error": err.Error()})
		return err
	}
	return nil
}

func (s *mediaService) validate(file MediaFile) (string, error) {
	if len(file.Data) == 0 {
		return "", fmt.Errorf("%w: file %q is empty", domain.ErrInvalidInput, file.Name)
	}
	if int64(len(file.Data)) > s.maxBytes {
		return "", fmt.Errorf("%w: file %q exceeds %d bytes", domain.ErrInvalidInput, file.Name, s.maxBytes)
	}
	ext, ok := allowedMediaTypes[detectContentType(file)]
	if !ok {
		return "", fmt.Errorf("%w: file %q has unsupported type", domain.ErrInvalidInput, file.Name)
	}
	return ext, nil
}

// detectContentType trusts the sniffed type over the declared one.
func detectContentType(file MediaFile) string {
	sniffed := http.DetectContentType(file.Data)
	if _, ok := allowedMediaTypes[sniffed]; ok {
		return sniffed
	}
	declared := strings.ToLower(strings.TrimSpace(file.ContentType))
	if sniffed == "application/octet-stream" {
		return declared
	}
	return sniffed
}
