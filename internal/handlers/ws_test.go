package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

type recordingSocketServer struct {
	users []string
	auth  string
}

func (s *recordingSocketServer) ServeWS(w http.ResponseWriter, r *http.Request, userID string) error {
	s.users = append(s.users, userID)
	s.auth = r.Header.Get("Authorization")
	w.WriteHeader(http.StatusSwitchingProtocols)
	return nil
}

func TestRealtimeHandlersPromoteQueryToken(t *testing.T) {
	hub := &recordingSocketServer{}
	r := chi.NewRouter()
	r.Use(asTestUser)
	NewRealtimeHandlers(nil, hub).Routes(r)

	req := httptest.NewRequest(http.MethodGet, "/?access_token=tok-123", nil)
	req.Header.Set(testUserHeader, "buyer")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusSwitchingProtocols, rr.Code)
	assert.Equal(t, []string{"buyer"}, hub.users)
	assert.Equal(t, "Bearer tok-123", hub.auth)
}

func TestRealtimeHandlersRequireUser(t *testing.T) {
	hub := &recordingSocketServer{}
	rr := doJSON(t, mountForTest(NewRealtimeHandlers(nil, hub).Routes), http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, hub.users)
}
