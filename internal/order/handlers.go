package order

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/andika-pr/backend-otoparts/internal/common"
)

// Handler exposes the order history endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the order handler.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Service == nil {
		return nil, errors.New("order: service is required")
	}
	return &Handler{service: cfg.Service}, nil
}

// List handles GET /orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	viewer, ok := common.ViewerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	page := common.ParsePage(r)
	result, err := h.service.List(r.Context(), viewer, page)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, common.ListEnvelope{
		Meta:  result.Meta,
		Links: common.BuildPageLinks(r, page, result.Meta.TotalPages),
		Data:  result.Items,
	})
}

// Get handles GET /orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	viewer, ok := common.ViewerFrom(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		common.WriteError(w, common.NotFound("order not found", err))
		return
	}
	view, err := h.service.Get(r.Context(), viewer, id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, view)
}
