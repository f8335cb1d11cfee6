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

type stubFavoriteService struct {
	favorited map[string]bool
}

func (s *stubFavoriteService) Toggle(_ context.Context, userID, productID string) (bool, error) {
	if productID == "prd_missing" {
		return false, domain.ErrProductNotFound
	}
	key := userID + "/" + productID
	s.favorited[key] = !s.favorited[key]
	return s.favorited[key], nil
}

func (s *stubFavoriteService) List(_ context.Context, userID string) ([]services.Product, error) {
	var out []services.Product
	for key, on := range s.favorited {
		if on && len(key) > len(userID) && key[:len(userID)+1] == userID+"/" {
			out = append(out, services.Product{ID: key[len(userID)+1:]})
		}
	}
	return out, nil
}

type stubAddressService struct {
	lastCmd services.UpsertAddressCommand
}

func (s *stubAddressService) List(context.Context, string) ([]services.Address, error) {
	return []services.Address{{ID: "adr_1", IsDefault: true}, {ID: "adr_2"}}, nil
}

func (s *stubAddressService) Get(_ context.Context, userID, addressID string) (services.Address, error) {
	if addressID != "adr_1" {
		return services.Address{}, domain.ErrAddressNotFound
	}
	return services.Address{ID: addressID, UserID: userID}, nil
}

func (s *stubAddressService) Create(_ context.Context, cmd services.UpsertAddressCommand) (services.Address, error) {
	s.lastCmd = cmd
	if cmd.Street == "" {
		return services.Address{}, domain.ErrInvalidInput
	}
	return services.Address{ID: "adr_new", UserID: cmd.UserID, Street: cmd.Street, IsDefault: cmd.IsDefault != nil && *cmd.IsDefault}, nil
}

func (s *stubAddressService) Update(_ context.Context, cmd services.UpsertAddressCommand) (services.Address, error) {
	s.lastCmd = cmd
	return services.Address{ID: cmd.AddressID, Street: cmd.Street}, nil
}

func (s *stubAddressService) Delete(_ context.Context, _, addressID string) error {
	if addressID != "adr_1" {
		return domain.ErrAddressNotFound
	}
	return nil
}

func (s *stubAddressService) SetDefault(_ context.Context, _, addressID string) (services.Address, error) {
	return services.Address{ID: addressID, IsDefault: true}, nil
}

func TestMeHandlersFavoriteToggle(t *testing.T) {
	favorites := &stubFavoriteService{favorited: map[string]bool{}}
	h := mountForTest(NewMeHandlers(nil, favorites, nil).Routes)

	rr := doJSON(t, h, http.MethodPost, "/favorites/prd_1", "buyer", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decodeResponse[map[string]any](t, rr)["favorited"])

	rr = doJSON(t, h, http.MethodGet, "/favorites", "buyer", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decodeResponse[struct {
		Items []productPayload `json:"items"`
	}](t, rr)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "prd_1", list.Items[0].ID)

	rr = doJSON(t, h, http.MethodPost, "/favorites/prd_1", "buyer", nil)
	assert.Equal(t, false, decodeResponse[map[string]any](t, rr)["favorited"])

	rr = doJSON(t, h, http.MethodPost, "/favorites/prd_missing", "buyer", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMeHandlersAddresses(t *testing.T) {
	addresses := &stubAddressService{}
	h := mountForTest(NewMeHandlers(nil, nil, addresses).Routes)

	rr := doJSON(t, h, http.MethodPost, "/addresses", "buyer", map[string]any{"street": "3 rue Oberkampf", "city": "Paris", "postal": "75011", "country": "FR", "isDefault": true})
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "/api/v1/me/addresses/adr_new", rr.Header().Get("Location"))
	require.NotNil(t, addresses.lastCmd.IsDefault)
	assert.Equal(t, "buyer", addresses.lastCmd.UserID)

	rr = doJSON(t, h, http.MethodPost, "/addresses", "buyer", map[string]any{"city": "Paris"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, h, http.MethodPut, "/addresses/adr_1", "buyer", map[string]any{"street": "4 rue Oberkampf"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "adr_1", addresses.lastCmd.AddressID)
	assert.Nil(t, addresses.lastCmd.IsDefault)

	rr = doJSON(t, h, http.MethodPost, "/addresses/adr_2/default", "buyer", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decodeResponse[addressPayload](t, rr).IsDefault)

	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodGet, "/addresses/adr_9", "buyer", nil).Code)
	assert.Equal(t, http.StatusNoContent, doJSON(t, h, http.MethodDelete, "/addresses/adr_1", "buyer", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, doJSON(t, h, http.MethodGet, "/addresses", "", nil).Code)
}

func TestMeHandlersServiceUnavailable(t *testing.T) {
	h := mountForTest(NewMeHandlers(nil, nil, nil).Routes)
	rr := doJSON(t, h, http.MethodGet, "/favorites", "buyer", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
