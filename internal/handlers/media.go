package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friperie/api/internal/platform/auth"
	"github.com/friperie/api/internal/platform/httpx"
	"github.com/friperie/api/internal/services"
)

const (
	maxUploadRequestSize = 64 << 20
	multipartMemory      = 16 << 20
	uploadFieldName      = "files"
)

// MediaHandlers accepts product image uploads.
type MediaHandlers struct {
	authn *auth.Authenticator
	media services.MediaService
}

// NewMediaHandlers constructs media endpoints.
func NewMediaHandlers(authn *auth.Authenticator, media services.MediaService) *MediaHandlers {
	return &MediaHandlers{authn: authn, media: media}
}

// Routes registers /media endpoints.
func (h *MediaHandlers) Routes(r chi.Router) {
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/", h.upload)
}

func (h *MediaHandlers) upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.media == nil {
		serviceUnavailable(ctx, w, "media")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadRequestSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "upload exceeds the request size limit", http.StatusRequestEntityTooLarge))
			return
		}
		writeInvalid(ctx, w, "multipart form expected")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[uploadFieldName]
	if len(headers) == 0 {
		writeInvalid(ctx, w, "at least one file is required in field \"files\"")
		return
	}
	files := make([]services.MediaFile, 0, len(headers))
	for _, header := range headers {
		file, err := readMultipartFile(header)
		if err != nil {
			writeInvalid(ctx, w, "unreadable upload "+header.Filename)
			return
		}
		files = append(files, file)
	}

	urls, err := h.media.UploadMany(ctx, uid, files)
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]any{"urls": urls})
}

func readMultipartFile(header *multipart.FileHeader) (services.MediaFile, error) {
	f, err := header.Open()
	if err != nil {
		return services.MediaFile{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return services.MediaFile{}, err
	}
	return services.MediaFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        int64(len(data)),
		Data:        data,
	}, nil
}
