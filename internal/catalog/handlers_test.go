package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/andika-pr/backend-otoparts/internal/common"
	"github.com/andika-pr/backend-otoparts/internal/db"
)

type fakeQueries struct {
	items     map[int64]*db.Item
	category  map[int64]db.Category
	images    map[int64][]db.ItemImage
	discounts map[int64][]db.ItemDiscount
	cars      map[int64][]db.Car
	nextID    int64
}

func newFakeQueries() *fakeQueries {
	return &fakeQueries{
		items:     map[int64]*db.Item{},
		category:  map[int64]db.Category{},
		images:    map[int64][]db.ItemImage{},
		discounts: map[int64][]db.ItemDiscount{},
		cars:      map[int64][]db.Car{},
		nextID:    1,
	}
}

func (f *fakeQueries) addItem(item db.Item) *db.Item {
	item.ID = f.nextID
	f.nextID++
	f.items[item.ID] = &item
	return f.items[item.ID]
}

func (f *fakeQueries) matches(item *db.Item, filter db.ItemFilter) bool {
	if filter.Feature != nil && item.IsFeature != *filter.Feature {
		return false
	}
	if filter.Universal != nil && item.IsUniversal != *filter.Universal {
		return false
	}
	if filter.CategoryID != nil &&
		(!item.MainCategoryID.Valid || item.MainCategoryID.Int64 != *filter.CategoryID) {
		return false
	}
	if filter.OnlyDiscounted {
		active := false
		for _, d := range f.discounts[item.ID] {
			if d.IsActive {
				active = true
				break
			}
		}
		if !active {
			return false
		}
	}
	return true
}

func (f *fakeQueries) filtered(filter db.ItemFilter) []db.Item {
	var out []db.Item
	for id := int64(1); id < f.nextID; id++ {
		item, ok := f.items[id]
		if ok && f.matches(item, filter) {
			out = append(out, *item)
		}
	}
	return out
}

func (f *fakeQueries) CountItems(_ context.Context, filter db.ItemFilter) (int64, error) {
	return int64(len(f.filtered(filter))), nil
}

func (f *fakeQueries) ListItems(_ context.Context, filter db.ItemFilter, limit, offset int) ([]db.Item, error) {
	rows := f.filtered(filter)
	if offset >= len(rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end], nil
}

func (f *fakeQueries) GetItem(_ context.Context, id int64) (db.Item, error) {
	if item, ok := f.items[id]; ok {
		return *item, nil
	}
	return db.Item{}, pgx.ErrNoRows
}

func (f *fakeQueries) CreateItem(_ context.Context, p db.CreateItemParams) (db.Item, error) {
	return *f.addItem(db.Item{
		Name:           p.Name,
		BrandName:      p.BrandName,
		MainCategoryID: p.MainCategoryID,
		IsFeature:      p.IsFeature,
		IsUniversal:    p.IsUniversal,
		OENo:           p.OENo,
		Quantity:       p.Quantity,
		StatusID:       p.StatusID,
		LKBNo:          p.LKBNo,
		Description:    p.Description,
		Price:          p.Price,
	}), nil
}

func (f *fakeQueries) UpdateItem(_ context.Context, id int64, p db.UpdateItemParams) (int64, error) {
	item, ok := f.items[id]
	if !ok {
		return 0, nil
	}
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.BrandName != nil {
		item.BrandName = *p.BrandName
	}
	if p.IsFeature != nil {
		item.IsFeature = *p.IsFeature
	}
	if p.IsUniversal != nil {
		item.IsUniversal = *p.IsUniversal
	}
	if p.OENo != nil {
		item.OENo = pgtype.Text{String: *p.OENo, Valid: true}
	}
	if p.Price != nil {
		item.Price = *p.Price
	}
	return 1, nil
}

func (f *fakeQueries) DeleteItem(_ context.Context, id int64) (int64, error) {
	if _, ok := f.items[id]; !ok {
		return 0, nil
	}
	delete(f.items, id)
	return 1, nil
}

func (f *fakeQueries) ListCategoriesByIDs(_ context.Context, ids []int64) ([]db.Category, error) {
	var out []db.Category
	for _, id := range ids {
		if c, ok := f.category[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeQueries) ListImagesByItems(_ context.Context, itemIDs []int64) ([]db.ItemImage, error) {
	var out []db.ItemImage
	for _, id := range itemIDs {
		out = append(out, f.images[id]...)
	}
	return out, nil
}

func (f *fakeQueries) ListDiscountsByItems(_ context.Context, itemIDs []int64) ([]db.ItemDiscount, error) {
	var out []db.ItemDiscount
	for _, id := range itemIDs {
		for _, d := range f.discounts[id] {
			if d.IsActive {
				out = append(out, d)
			}
		}
	}
	return out, nil
}

func (f *fakeQueries) ListCarsByItems(_ context.Context, itemIDs []int64) ([]db.Car, error) {
	var out []db.Car
	for _, id := range itemIDs {
		out = append(out, f.cars[id]...)
	}
	return out, nil
}

func (f *fakeQueries) CreateItemImages(_ context.Context, itemID int64, paths []string) ([]db.ItemImage, error) {
	var out []db.ItemImage
	for _, path := range paths {
		img := db.ItemImage{ID: int64(len(f.images[itemID]) + 1), ItemID: itemID, Path: path}
		f.images[itemID] = append(f.images[itemID], img)
		out = append(out, img)
	}
	return out, nil
}

type fakeFiles struct {
	saved []string
}

func (f *fakeFiles) Save(filename string, content io.Reader) (string, error) {
	_, _ = io.Copy(io.Discard, content)
	f.saved = append(f.saved, filename)
	return "uploads/" + filename, nil
}

func newTestHandler(t *testing.T, queries *fakeQueries, files FileStore) *Handler {
	t.Helper()
	svc, err := NewService(ServiceConfig{Queries: queries, Files: files})
	require.NoError(t, err)
	return NewHandler(HandlerConfig{Service: svc})
}

func dec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	return decimal.RequireFromString(value)
}

func withRouteID(r *http.Request, id string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, routeCtx))
}

func decodeEnvelope(t *testing.T, body *bytes.Buffer) (map[string]any, []any) {
	t.Helper()
	var envelope map[string]any
	require.NoError(t, json.Unmarshal(body.Bytes(), &envelope))
	data, ok := envelope["data"].([]any)
	require.True(t, ok)
	return envelope, data
}

func TestFindRedactsPriceForAnonymous(t *testing.T) {
	queries := newFakeQueries()
	queries.addItem(db.Item{Name: "Brake Pad", BrandName: "Brembo", Price: dec(t, "100")})
	handler := newTestHandler(t, queries, nil)

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	rec := httptest.NewRecorder()
	handler.Find(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	_, data := decodeEnvelope(t, rec.Body)
	require.Len(t, data, 1)
	item := data[0].(map[string]any)
	require.Equal(t, "*", item["price"], "unapproved viewers see the redaction marker")
}

func TestFindScalesPriceForApprovedViewer(t *testing.T) {
	queries := newFakeQueries()
	queries.addItem(db.Item{Name: "Brake Pad", BrandName: "Brembo", Price: dec(t, "100")})
	queries.discounts[1] = []db.ItemDiscount{
		{ID: 1, ItemID: 1, Kind: "percentage", Value: dec(t, "10"), IsActive: true},
	}
	handler := newTestHandler(t, queries, nil)

	viewer := common.Viewer{ID: "11111111-2222-3333-4444-555555555555", Approved: true, Percentage: dec(t, "2")}
	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	req = req.WithContext(common.WithViewer(req.Context(), viewer))
	rec := httptest.NewRecorder()
	handler.Find(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	_, data := decodeEnvelope(t, rec.Body)
	item := data[0].(map[string]any)
	require.Equal(t, float64(50), item["price"], "base price divided by the viewer factor")

	discounts := item["discounts"].([]any)
	require.Len(t, discounts, 1)
	applied := discounts[0].(map[string]any)
	require.Equal(t, float64(5), applied["amount"], "discount computed against the scaled price")
	require.Equal(t, float64(45), applied["discountedPrice"])
}

func TestFindUniversalSuppressesCars(t *testing.T) {
	queries := newFakeQueries()
	universal := queries.addItem(db.Item{Name: "Wiper", BrandName: "Bosch", IsUniversal: true, Price: dec(t, "10")})
	fitted := queries.addItem(db.Item{Name: "Filter", BrandName: "Sakura", Price: dec(t, "20")})
	queries.cars[universal.ID] = []db.Car{{ID: 1, ItemID: universal.ID, Name: "Toyota", Model: "Avanza", Year: 2020}}
	queries.cars[fitted.ID] = []db.Car{{ID: 2, ItemID: fitted.ID, Name: "Honda", Model: "Brio", Year: 2021}}
	handler := newTestHandler(t, queries, nil)

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	rec := httptest.NewRecorder()
	handler.Find(rec, req)

	_, data := decodeEnvelope(t, rec.Body)
	require.Len(t, data, 2)
	first := data[0].(map[string]any)
	second := data[1].(map[string]any)
	require.Nil(t, first["compatible_cars"], "universal items never list cars")
	require.Len(t, second["compatible_cars"].([]any), 1)
}

func TestFindDiscountedExcludesUndiscounted(t *testing.T) {
	queries := newFakeQueries()
	discounted := queries.addItem(db.Item{Name: "Oil", BrandName: "Shell", Price: dec(t, "80")})
	queries.addItem(db.Item{Name: "Coolant", BrandName: "Prestone", Price: dec(t, "40")})
	queries.discounts[discounted.ID] = []db.ItemDiscount{
		{ID: 1, ItemID: discounted.ID, Kind: "fixed", Value: dec(t, "5"), IsActive: true},
	}
	handler := newTestHandler(t, queries, nil)

	req := httptest.NewRequest(http.MethodGet, "/items/discounts", nil)
	rec := httptest.NewRecorder()
	handler.FindDiscounted(rec, req)

	envelope, data := decodeEnvelope(t, rec.Body)
	require.Len(t, data, 1)
	meta := envelope["meta"].(map[string]any)
	require.Equal(t, float64(1), meta["totalItems"])
}

func TestFindFilterValidation(t *testing.T) {
	handler := newTestHandler(t, newFakeQueries(), nil)

	req := httptest.NewRequest(http.MethodGet, "/items?feature=maybe", nil)
	rec := httptest.NewRecorder()
	handler.Find(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateReturnsAdminView(t *testing.T) {
	queries := newFakeQueries()
	handler := newTestHandler(t, queries, nil)

	body := strings.NewReader(`{"name":"Brake Pad","brandName":"Brembo","price":"123.45"}`)
	req := httptest.NewRequest(http.MethodPost, "/items", body)
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var view map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Equal(t, float64(123.45), view["price"], "mutation responses carry the raw stored price")
}

func TestCreateValidation(t *testing.T) {
	handler := newTestHandler(t, newFakeQueries(), nil)

	body := strings.NewReader(`{"brandName":"Brembo"}`)
	req := httptest.NewRequest(http.MethodPost, "/items", body)
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateIgnoresUnknownFields(t *testing.T) {
	queries := newFakeQueries()
	item := queries.addItem(db.Item{Name: "Brake Pad", BrandName: "Brembo", Price: dec(t, "100")})
	handler := newTestHandler(t, queries, nil)

	body := strings.NewReader(`{"name":"Ceramic Pad","quantity":999}`)
	req := withRouteID(httptest.NewRequest(http.MethodPatch, "/items/1", body), "1")
	rec := httptest.NewRecorder()
	handler.Update(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Ceramic Pad", item.Name)
	require.Equal(t, int32(0), item.Quantity, "quantity is not allow-listed for PATCH")
}

func TestUpdateEmptyPayloadNoOp(t *testing.T) {
	queries := newFakeQueries()
	item := queries.addItem(db.Item{Name: "Brake Pad", BrandName: "Brembo", Price: dec(t, "100")})
	handler := newTestHandler(t, queries, nil)

	body := strings.NewReader(`{"quantity":999,"description":"ignored"}`)
	req := withRouteID(httptest.NewRequest(http.MethodPatch, "/items/1", body), "1")
	rec := httptest.NewRecorder()
	handler.Update(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "Brake Pad", item.Name)
}

func TestUpdateMissingItem(t *testing.T) {
	handler := newTestHandler(t, newFakeQueries(), nil)

	body := strings.NewReader(`{"name":"Ceramic Pad"}`)
	req := withRouteID(httptest.NewRequest(http.MethodPatch, "/items/42", body), "42")
	rec := httptest.NewRecorder()
	handler.Update(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDestroy(t *testing.T) {
	queries := newFakeQueries()
	queries.addItem(db.Item{Name: "Brake Pad", BrandName: "Brembo", Price: dec(t, "100")})
	handler := newTestHandler(t, queries, nil)

	req := withRouteID(httptest.NewRequest(http.MethodDelete, "/items/1", nil), "1")
	rec := httptest.NewRecorder()
	handler.Destroy(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// A second delete reports not found.
	req = withRouteID(httptest.NewRequest(http.MethodDelete, "/items/1", nil), "1")
	rec = httptest.NewRecorder()
	handler.Destroy(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, content := range files {
		part, err := writer.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadImages(t *testing.T) {
	queries := newFakeQueries()
	queries.addItem(db.Item{Name: "Brake Pad", BrandName: "Brembo", Price: dec(t, "100")})
	files := &fakeFiles{}
	handler := newTestHandler(t, queries, files)

	body, contentType := multipartBody(t, map[string]string{"front.jpg": "jpegdata"})
	req := withRouteID(httptest.NewRequest(http.MethodPost, "/items/1/images", body), "1")
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.UploadImages(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"front.jpg"}, files.saved)
	require.Len(t, queries.images[1], 1)
}

func TestUploadImagesEmpty(t *testing.T) {
	queries := newFakeQueries()
	queries.addItem(db.Item{Name: "Brake Pad", BrandName: "Brembo", Price: dec(t, "100")})
	handler := newTestHandler(t, queries, &fakeFiles{})

	body, contentType := multipartBody(t, nil)
	req := withRouteID(httptest.NewRequest(http.MethodPost, "/items/1/images", body), "1")
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.UploadImages(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadImagesMissingItem(t *testing.T) {
	handler := newTestHandler(t, newFakeQueries(), &fakeFiles{})

	body, contentType := multipartBody(t, map[string]string{"front.jpg": "jpegdata"})
	req := withRouteID(httptest.NewRequest(http.MethodPost, "/items/9/images", body), "9")
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.UploadImages(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
