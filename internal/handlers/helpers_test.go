package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/friperie/api/internal/platform/auth"
)

const testUserHeader = "X-Test-User"

// asTestUser stands in for the Firebase middleware: the uid comes from a test header.
func asTestUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid := r.Header.Get(testUserHeader); uid != "" {
			r = r.WithContext(auth.WithIdentity(r.Context(), &auth.Identity{UID: uid, Roles: []string{auth.RoleUser}}))
		}
		next.ServeHTTP(w, r)
	})
}

func mountForTest(routes RouteRegistrar) http.Handler {
	r := chi.NewRouter()
	r.Use(asTestUser)
	routes(r)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, uid string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return doJSONWithHeader(t, h, method, path, uid, body, "", "")
}

func doJSONWithHeader(t *testing.T, h http.Handler, method, path, uid string, body any, header, value string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(v)
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		req.Header.Set(testUserHeader, uid)
	}
	if header != "" {
		req.Header.Set(header, value)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}
