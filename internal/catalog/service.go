package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/andika-pr/backend-otoparts/internal/common"
	"github.com/andika-pr/backend-otoparts/internal/db"
)

type queryProvider interface {
	CountItems(ctx context.Context, f db.ItemFilter) (int64, error)
	ListItems(ctx context.Context, f db.ItemFilter, limit, offset int) ([]db.Item, error)
	GetItem(ctx context.Context, id int64) (db.Item, error)
	CreateItem(ctx context.Context, p db.CreateItemParams) (db.Item, error)
	UpdateItem(ctx context.Context, id int64, p db.UpdateItemParams) (int64, error)
	DeleteItem(ctx context.Context, id int64) (int64, error)
	ListCategoriesByIDs(ctx context.Context, ids []int64) ([]db.Category, error)
	ListImagesByItems(ctx context.Context, itemIDs []int64) ([]db.ItemImage, error)
	ListDiscountsByItems(ctx context.Context, itemIDs []int64) ([]db.ItemDiscount, error)
	ListCarsByItems(ctx context.Context, itemIDs []int64) ([]db.Car, error)
	CreateItemImages(ctx context.Context, itemID int64, paths []string) ([]db.ItemImage, error)
}

// FileStore persists uploaded image content and returns the stored path.
type FileStore interface {
	Save(filename string, content io.Reader) (string, error)
}

// Service orchestrates item catalog queries, pricing, and serialization.
type Service struct {
	queries queryProvider
	files   FileStore
	cache   *Cache
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Queries queryProvider
	Files   FileStore
	Cache   *Cache
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("catalog: queries provider is required")
	}
	return &Service{queries: cfg.Queries, files: cfg.Files, cache: cfg.Cache}, nil
}

// ListParams captures filters for item listing. Nil filters apply no
// constraint; present filters are AND-combined.
type ListParams struct {
	Feature    *bool
	Universal  *bool
	CategoryID *int64
	Page       int
}

// ParseListParams normalises raw query values into typed filters.
func ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1}
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		if page, err := strconv.Atoi(v); err == nil && page > 0 {
			params.Page = page
		}
	}
	if v := strings.TrimSpace(values.Get("feature")); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return params, badRequest("feature", "feature must be true or false", err)
		}
		params.Feature = &b
	}
	if v := strings.TrimSpace(values.Get("universal")); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return params, badRequest("universal", "universal must be true or false", err)
		}
		params.Universal = &b
	}
	if v := strings.TrimSpace(values.Get("category")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return params, badRequest("category", "category must be an integer identifier", err)
		}
		params.CategoryID = &id
	}
	return params, nil
}

// ListResult contains one serialized page and its total row count.
type ListResult struct {
	Items []ItemView
	Total int64
	Page  int
}

// List returns one page of items with pricing computed for the viewer.
func (s *Service) List(ctx context.Context, params ListParams, viewer common.Viewer) (ListResult, error) {
	return s.list(ctx, params, viewer, false)
}

// ListDiscounted behaves like List but excludes items without at least one
// active discount.
func (s *Service) ListDiscounted(ctx context.Context, params ListParams, viewer common.Viewer) (ListResult, error) {
	return s.list(ctx, params, viewer, true)
}

func (s *Service) list(ctx context.Context, params ListParams, viewer common.Viewer, onlyDiscounted bool) (ListResult, error) {
	// Only the anonymous unfiltered first page is cacheable; every other
	// combination depends on the viewer's scaling factor or filter set.
	cacheable := s.cache != nil && !onlyDiscounted && viewer.ID == "" &&
		params.Page == 1 && params.Feature == nil && params.Universal == nil && params.CategoryID == nil
	if cacheable {
		var cached ListResult
		if ok, err := s.cache.GetJSON(ctx, listCacheKey, &cached); err == nil && ok {
			return cached, nil
		}
	}
	filter := db.ItemFilter{
		Feature:        params.Feature,
		Universal:      params.Universal,
		CategoryID:     params.CategoryID,
		OnlyDiscounted: onlyDiscounted,
	}
	total, err := s.queries.CountItems(ctx, filter)
	if err != nil {
		return ListResult{}, fmt.Errorf("count items: %w", err)
	}
	rows, err := s.queries.ListItems(ctx, filter, common.PageSize, common.Offset(params.Page))
	if err != nil {
		return ListResult{}, fmt.Errorf("list items: %w", err)
	}
	assoc, err := s.loadAssociations(ctx, rows)
	if err != nil {
		return ListResult{}, err
	}
	items := make([]ItemView, 0, len(rows))
	for _, row := range rows {
		view, err := buildView(row, assoc, viewer)
		if err != nil {
			return ListResult{}, err
		}
		items = append(items, view)
	}
	result := ListResult{Items: items, Total: total, Page: params.Page}
	if cacheable {
		_ = s.cache.SetJSON(ctx, listCacheKey, result)
	}
	return result, nil
}

// CreateItemInput carries the creatable item fields.
type CreateItemInput struct {
	Name           string           `json:"name" validate:"required"`
	BrandName      string           `json:"brandName" validate:"required"`
	MainCategoryID *int64           `json:"main_category_id"`
	IsFeature      bool             `json:"is_feature"`
	IsUniversal    bool             `json:"is_universal"`
	OENo           string           `json:"OE_NO"`
	Quantity       int32            `json:"quantity"`
	StatusID       *int64           `json:"status_id"`
	LKBNo          string           `json:"LKB_No"`
	Description    string           `json:"description"`
	Price          decimal.Decimal  `json:"price" validate:"required"`
}

// Create inserts a new item and returns its admin serialization.
func (s *Service) Create(ctx context.Context, input CreateItemInput) (ItemView, error) {
	created, err := s.queries.CreateItem(ctx, db.CreateItemParams{
		Name:           strings.TrimSpace(input.Name),
		BrandName:      strings.TrimSpace(input.BrandName),
		MainCategoryID: toInt8(input.MainCategoryID),
		IsFeature:      input.IsFeature,
		IsUniversal:    input.IsUniversal,
		OENo:           toText(input.OENo),
		Quantity:       input.Quantity,
		StatusID:       toInt8(input.StatusID),
		LKBNo:          toText(input.LKBNo),
		Description:    toText(input.Description),
		Price:          input.Price,
	})
	if err != nil {
		return ItemView{}, fmt.Errorf("create item: %w", err)
	}
	s.invalidateCache(ctx)
	return s.adminView(ctx, created)
}

// UpdateItemInput is the raw PATCH payload. Only the allow-listed fields
// below are ever written; anything else in the request body is ignored.
type UpdateItemInput struct {
	Name           *string          `json:"name"`
	BrandName      *string          `json:"brandName"`
	MainCategoryID *int64           `json:"main_category_id"`
	IsFeature      *bool            `json:"is_feature"`
	IsUniversal    *bool            `json:"is_universal"`
	OENo           *string          `json:"OE_NO"`
	Price          *decimal.Decimal `json:"price"`
}

// ErrNothingToUpdate signals that the filtered payload carried no
// allow-listed field; callers answer 204 without touching the row.
var ErrNothingToUpdate = errors.New("catalog: no allow-listed field present")

// Update applies an allow-listed partial update, then re-reads the row.
func (s *Service) Update(ctx context.Context, id int64, input UpdateItemInput) (ItemView, error) {
	params := db.UpdateItemParams{
		Name:           input.Name,
		BrandName:      input.BrandName,
		MainCategoryID: input.MainCategoryID,
		IsFeature:      input.IsFeature,
		IsUniversal:    input.IsUniversal,
		OENo:           input.OENo,
		Price:          input.Price,
	}
	if params.IsEmpty() {
		return ItemView{}, ErrNothingToUpdate
	}
	affected, err := s.queries.UpdateItem(ctx, id, params)
	if err != nil {
		return ItemView{}, fmt.Errorf("update item: %w", err)
	}
	if affected == 0 {
		return ItemView{}, common.NotFound("item not found", nil)
	}
	s.invalidateCache(ctx)
	// Separate re-read, not a transaction; a concurrent delete surfaces as 404.
	updated, err := s.queries.GetItem(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ItemView{}, common.NotFound("item not found", err)
		}
		return ItemView{}, fmt.Errorf("get item: %w", err)
	}
	return s.adminView(ctx, updated)
}

// Delete removes an item, reporting 404 when nothing was deleted.
func (s *Service) Delete(ctx context.Context, id int64) error {
	affected, err := s.queries.DeleteItem(ctx, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if affected == 0 {
		return common.NotFound("item not found", nil)
	}
	s.invalidateCache(ctx)
	return nil
}

// Upload is one incoming image file.
type Upload struct {
	Filename string
	Content  io.Reader
}

// UploadImages stores the uploaded files and records one image row per file.
func (s *Service) UploadImages(ctx context.Context, itemID int64, uploads []Upload) ([]ImageView, error) {
	if len(uploads) == 0 {
		return nil, common.ValidationError("no images uploaded", nil)
	}
	if s.files == nil {
		return nil, errors.New("catalog: file store is required for uploads")
	}
	if _, err := s.queries.GetItem(ctx, itemID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NotFound("item not found", err)
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	paths := make([]string, 0, len(uploads))
	for _, up := range uploads {
		path, err := s.files.Save(up.Filename, up.Content)
		if err != nil {
			return nil, fmt.Errorf("store image: %w", err)
		}
		paths = append(paths, path)
	}
	rows, err := s.queries.CreateItemImages(ctx, itemID, paths)
	if err != nil {
		return nil, fmt.Errorf("record images: %w", err)
	}
	s.invalidateCache(ctx)
	views := make([]ImageView, 0, len(rows))
	for _, row := range rows {
		views = append(views, ImageView{ID: row.ID, ItemID: row.ItemID, Path: row.Path})
	}
	return views, nil
}

func (s *Service) invalidateCache(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, listCacheKey)
	}
}

func (s *Service) adminView(ctx context.Context, item db.Item) (ItemView, error) {
	assoc, err := s.loadAssociations(ctx, []db.Item{item})
	if err != nil {
		return ItemView{}, err
	}
	return buildAdminView(item, assoc), nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean: %s", value)
	}
}

func badRequest(field, message string, err error) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
		Details:    map[string]any{"field": field},
	}
}

func toText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}

func toInt8(value *int64) pgtype.Int8 {
	if value == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *value, Valid: true}
}
