package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friperie/api/internal/platform/httpx"
	"github.com/friperie/api/internal/services"
)

func (h *MeHandlers) addressRoutes(r chi.Router) {
	r.Get("/", h.listAddresses)
	r.Post("/", h.createAddress)
	r.Route("/{addressID}", func(r chi.Router) {
		r.Get("/", h.getAddress)
		r.Put("/", h.updateAddress)
		r.Delete("/", h.deleteAddress)
		r.Post("/default", h.setDefaultAddress)
	})
}

type addressRequest struct {
	Label     string `json:"label"`
	Street    string `json:"street"`
	City      string `json:"city"`
	Postal    string `json:"postal"`
	Country   string `json:"country"`
	IsDefault *bool  `json:"isDefault"`
}

func (req addressRequest) command(userID, addressID string) services.UpsertAddressCommand {
	return services.UpsertAddressCommand{
		UserID:    userID,
		AddressID: addressID,
		Label:     req.Label,
		Street:    req.Street,
		City:      req.City,
		Postal:    req.Postal,
		Country:   req.Country,
		IsDefault: req.IsDefault,
	}
}

func (h *MeHandlers) listAddresses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.addresses == nil {
		serviceUnavailable(ctx, w, "address")
		return
	}
	addresses, err := h.addresses.List(ctx, uid)
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": mapSlice(addresses, buildAddressPayload)})
}

func (h *MeHandlers) getAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.addresses == nil {
		serviceUnavailable(ctx, w, "address")
		return
	}
	address, err := h.addresses.Get(ctx, uid, pathParam(r, "addressID"))
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildAddressPayload(address))
}

func (h *MeHandlers) createAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.addresses == nil {
		serviceUnavailable(ctx, w, "address")
		return
	}
	var req addressRequest
	if !decodeBody(w, r, &req) {
		return
	}
	address, err := h.addresses.Create(ctx, req.command(uid, ""))
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/me/addresses/"+address.ID)
	writeJSONResponse(w, http.StatusCreated, buildAddressPayload(address))
}

func (h *MeHandlers) updateAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.addresses == nil {
		serviceUnavailable(ctx, w, "address")
		return
	}
	var req addressRequest
	if !decodeBody(w, r, &req) {
		return
	}
	address, err := h.addresses.Update(ctx, req.command(uid, pathParam(r, "addressID")))
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildAddressPayload(address))
}

func (h *MeHandlers) deleteAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.addresses == nil {
		serviceUnavailable(ctx, w, "address")
		return
	}
	if err := h.addresses.Delete(ctx, uid, pathParam(r, "addressID")); err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MeHandlers) setDefaultAddress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := currentUser(ctx, w)
	if !ok {
		return
	}
	if h.addresses == nil {
		serviceUnavailable(ctx, w, "address")
		return
	}
	address, err := h.addresses.SetDefault(ctx, uid, pathParam(r, "addressID"))
	if err != nil {
		httpx.WriteServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildAddressPayload(address))
}
