package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/andika-pr/backend-otoparts/internal/common"
)

// maxUploadBytes caps a single multipart upload request.
const maxUploadBytes = 32 << 20

// Handler exposes the item catalog endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service  *Service
	Validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validate
	if v == nil {
		v = validator.New()
	}
	return &Handler{service: cfg.Service, validate: v}
}

// Find handles GET /items.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	h.findWith(w, r, h.service.List)
}

// FindDiscounted handles GET /items/discounts.
func (h *Handler) FindDiscounted(w http.ResponseWriter, r *http.Request) {
	h.findWith(w, r, h.service.ListDiscounted)
}

func (h *Handler) findWith(w http.ResponseWriter, r *http.Request, list func(context.Context, ListParams, common.Viewer) (ListResult, error)) {
	params, err := ParseListParams(r.URL.Query())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	viewer, _ := common.ViewerFrom(r.Context())
	result, err := list(r.Context(), params, viewer)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	totalPages := common.TotalPages(result.Total)
	common.JSON(w, http.StatusOK, common.ListEnvelope{
		Meta:  common.NewPageMeta(result.Page, result.Total),
		Links: common.BuildPageLinks(r, result.Page, totalPages),
		Data:  result.Items,
	})
}

// Create handles POST /items.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var input CreateItemInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	if err := h.validate.Struct(input); err != nil {
		common.WriteError(w, common.ValidationError("invalid item payload", fieldErrors(err)))
		return
	}
	view, err := h.service.Create(r.Context(), input)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, view)
}

// Update handles PATCH /items/{id}. A payload without any allow-listed
// field succeeds with 204 and leaves the row untouched.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	var input UpdateItemInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	view, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		if errors.Is(err, ErrNothingToUpdate) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, view)
}

// Destroy handles DELETE /items/{id}.
func (h *Handler) Destroy(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImages handles POST /items/{id}/images.
func (h *Handler) UploadImages(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid multipart payload", nil)
		return
	}
	var uploads []Upload
	if r.MultipartForm != nil {
		for _, headers := range r.MultipartForm.File {
			for _, header := range headers {
				file, err := header.Open()
				if err != nil {
					common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unreadable upload", nil)
					return
				}
				defer file.Close()
				uploads = append(uploads, Upload{Filename: header.Filename, Content: file})
			}
		}
	}
	views, err := h.service.UploadImages(r.Context(), id, uploads)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, views)
}

func itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid item id", nil)
		return 0, false
	}
	return id, true
}

func fieldErrors(err error) any {
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return nil
	}
	fields := make(map[string]string, len(invalid))
	for _, fe := range invalid {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}
