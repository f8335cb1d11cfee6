package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/services"
)

type stubUserService struct {
	profiles map[string]services.UserProfile
	updates  []services.UpdateProfileCommand
}

func (s *stubUserService) Me(_ context.Context, userID string) (services.UserProfile, error) {
	if p, ok := s.profiles[userID]; ok {
		return p, nil
	}
	return services.UserProfile{ID: userID}, nil
}

func (s *stubUserService) UpdateMe(_ context.Context, cmd services.UpdateProfileCommand) (services.UserProfile, error) {
	s.updates = append(s.updates, cmd)
	if cmd.Bio != nil && *cmd.Bio == "" {
		return services.UserProfile{}, domain.ErrInvalidInput
	}
	profile := s.profiles[cmd.UserID]
	profile.ID = cmd.UserID
	if cmd.FirstName != nil {
		profile.FirstName = *cmd.FirstName
	}
	return profile, nil
}

func (s *stubUserService) Public(_ context.Context, userID string) (services.PublicProfile, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return services.PublicProfile{}, domain.ErrUserNotFound
	}
	return services.PublicProfile{
		ID:        p.ID,
		FirstName: p.FirstName,
		Listings:  []services.Product{{ID: "prd_1", SellerID: p.ID, Status: domain.ProductStatusForSale}},
	}, nil
}

func TestUserHandlersMe(t *testing.T) {
	svc := &stubUserService{profiles: map[string]services.UserProfile{"u1": {ID: "u1", FirstName: "Ana", Phone: "0600"}}}
	h := mountForTest(NewUserHandlers(nil, svc).Routes)

	assert.Equal(t, http.StatusUnauthorized, doJSON(t, h, http.MethodGet, "/me", "", nil).Code)

	rr := doJSON(t, h, http.MethodGet, "/me", "u1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeResponse[userProfilePayload](t, rr)
	assert.Equal(t, "Ana", body.FirstName)
	assert.Equal(t, "0600", body.Phone)

	rr = doJSON(t, h, http.MethodPatch, "/me", "u1", map[string]any{"firstName": "Anna"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Anna", decodeResponse[userProfilePayload](t, rr).FirstName)
	require.Len(t, svc.updates, 1)
	assert.Nil(t, svc.updates[0].LastName)

	rr = doJSON(t, h, http.MethodPatch, "/me", "u1", map[string]any{"bio": ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, h, http.MethodPatch, "/me", "u1", map[string]any{"email": "x@y.z"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUserHandlersPublicProfile(t *testing.T) {
	svc := &stubUserService{profiles: map[string]services.UserProfile{"u1": {ID: "u1", FirstName: "Ana", Phone: "0600"}}}
	h := mountForTest(NewUserHandlers(nil, svc).Routes)

	rr := doJSON(t, h, http.MethodGet, "/u1", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "0600")
	body := decodeResponse[publicProfilePayload](t, rr)
	assert.Equal(t, "Ana", body.FirstName)
	require.Len(t, body.Listings, 1)
	assert.Equal(t, "prd_1", body.Listings[0].ID)

	rr = doJSON(t, h, http.MethodGet, "/ghost", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUserHandlersWithoutService(t *testing.T) {
	h := mountForTest(NewUserHandlers(nil, nil).Routes)
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(t, h, http.MethodGet, "/u1", "", nil).Code)
}
