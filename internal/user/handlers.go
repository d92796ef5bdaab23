package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/andika-pr/backend-otoparts/internal/common"
)

// Handler exposes user administration and address book endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the user handler.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Service == nil {
		return nil, errors.New("user: service is required")
	}
	return &Handler{service: cfg.Service}, nil
}

// List handles GET /users.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, users)
}

type percentageRequest struct {
	Percentage decimal.Decimal `json:"percentage"`
}

// SetPercentage handles PATCH /users/{id}/percentage.
func (h *Handler) SetPercentage(w http.ResponseWriter, r *http.Request) {
	var req percentageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body", nil)
		return
	}
	view, err := h.service.SetPercentage(r.Context(), chi.URLParam(r, "id"), req.Percentage)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, view)
}

// Delete handles DELETE /users/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Restore handles POST /users/{id}/restore.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Restore(r.Context(), chi.URLParam(r, "id")); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAddresses handles GET /addresses.
func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	viewer, ok := common.ViewerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	addresses, err := h.service.ListAddresses(r.Context(), viewer)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, addresses)
}

// CreateAddress handles POST /addresses.
func (h *Handler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	viewer, ok := common.ViewerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	var input AddressInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body", nil)
		return
	}
	address, err := h.service.CreateAddress(r.Context(), viewer, input)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, address)
}

// UpdateAddress handles PATCH /addresses/{id}.
func (h *Handler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	viewer, ok := common.ViewerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	id, err := addressID(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	var patch AddressPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body", nil)
		return
	}
	address, err := h.service.UpdateAddress(r.Context(), viewer, id, patch)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, address)
}

// DeleteAddress handles DELETE /addresses/{id}.
func (h *Handler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	viewer, ok := common.ViewerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	id, err := addressID(r)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if err := h.service.DeleteAddress(r.Context(), viewer, id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func addressID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, common.NotFound("address not found", err)
	}
	return id, nil
}
