package catalog

import (
	"context"
	"fmt"

	"github.com/andika-pr/backend-otoparts/internal/common"
	"github.com/andika-pr/backend-otoparts/internal/db"
	"github.com/andika-pr/backend-otoparts/internal/pricing"
)

// ItemView is the wire shape of an item. CompatibleCars is null when the
// item is universal, regardless of what is stored.
type ItemView struct {
	ID             int64                `json:"id"`
	Name           string               `json:"name"`
	BrandName      string               `json:"brandName"`
	Category       *CategoryView        `json:"category"`
	IsFeature      bool                 `json:"is_feature"`
	IsUniversal    bool                 `json:"is_universal"`
	OENo           *string              `json:"OE_NO"`
	Quantity       int32                `json:"quantity"`
	Price          pricing.DisplayPrice `json:"price"`
	Discounts      []pricing.Applied    `json:"discounts,omitempty"`
	Images         []string             `json:"images"`
	CompatibleCars []CarView            `json:"compatible_cars"`
}

// CategoryView is the nested category projection.
type CategoryView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CarView is one compatible-car entry.
type CarView struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Model string `json:"model"`
	Year  int32  `json:"year"`
}

// ImageView is the wire shape of a recorded item image.
type ImageView struct {
	ID     int64  `json:"id"`
	ItemID int64  `json:"item_id"`
	Path   string `json:"path"`
}

type associations struct {
	categories map[int64]db.Category
	images     map[int64][]string
	discounts  map[int64][]pricing.Discount
	cars       map[int64][]CarView
}

func (s *Service) loadAssociations(ctx context.Context, items []db.Item) (associations, error) {
	assoc := associations{
		categories: map[int64]db.Category{},
		images:     map[int64][]string{},
		discounts:  map[int64][]pricing.Discount{},
		cars:       map[int64][]CarView{},
	}
	if len(items) == 0 {
		return assoc, nil
	}
	ids := make([]int64, 0, len(items))
	catIDs := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
		if it.MainCategoryID.Valid {
			catIDs = append(catIDs, it.MainCategoryID.Int64)
		}
	}
	if len(catIDs) > 0 {
		cats, err := s.queries.ListCategoriesByIDs(ctx, catIDs)
		if err != nil {
			return assoc, fmt.Errorf("load categories: %w", err)
		}
		for _, c := range cats {
			assoc.categories[c.ID] = c
		}
	}
	images, err := s.queries.ListImagesByItems(ctx, ids)
	if err != nil {
		return assoc, fmt.Errorf("load images: %w", err)
	}
	for _, img := range images {
		assoc.images[img.ItemID] = append(assoc.images[img.ItemID], img.Path)
	}
	discounts, err := s.queries.ListDiscountsByItems(ctx, ids)
	if err != nil {
		return assoc, fmt.Errorf("load discounts: %w", err)
	}
	for _, d := range discounts {
		assoc.discounts[d.ItemID] = append(assoc.discounts[d.ItemID], pricing.Discount{
			Kind:   pricing.DiscountKind(d.Kind),
			Value:  d.Value,
			Active: d.IsActive,
		})
	}
	cars, err := s.queries.ListCarsByItems(ctx, ids)
	if err != nil {
		return assoc, fmt.Errorf("load cars: %w", err)
	}
	for _, c := range cars {
		assoc.cars[c.ItemID] = append(assoc.cars[c.ItemID], CarView{
			ID: c.ID, Name: c.Name, Model: c.Model, Year: c.Year,
		})
	}
	return assoc, nil
}

// buildView serializes an item for the given viewer: the base price is
// scaled by the viewer's percentage factor, discounts are applied against
// the scaled price, and the price is redacted last when the viewer is not
// approved.
func buildView(item db.Item, assoc associations, viewer common.Viewer) (ItemView, error) {
	scaled, err := pricing.Scale(item.Price, viewer.Percentage)
	if err != nil {
		return ItemView{}, fmt.Errorf("scale price for item %d: %w", item.ID, err)
	}
	view := baseView(item, assoc)
	view.Price = pricing.DisplayPrice{Value: scaled, Redacted: !viewer.Approved}
	view.Discounts = pricing.Apply(scaled, assoc.discounts[item.ID])
	return view, nil
}

// buildAdminView serializes an item for mutation responses: the stored
// price, unscaled and unredacted, without discount computation.
func buildAdminView(item db.Item, assoc associations) ItemView {
	view := baseView(item, assoc)
	view.Price = pricing.DisplayPrice{Value: item.Price}
	return view
}

func baseView(item db.Item, assoc associations) ItemView {
	view := ItemView{
		ID:          item.ID,
		Name:        item.Name,
		BrandName:   item.BrandName,
		IsFeature:   item.IsFeature,
		IsUniversal: item.IsUniversal,
		Quantity:    item.Quantity,
		Images:      assoc.images[item.ID],
	}
	if view.Images == nil {
		view.Images = []string{}
	}
	if item.OENo.Valid {
		oe := item.OENo.String
		view.OENo = &oe
	}
	if item.MainCategoryID.Valid {
		if cat, ok := assoc.categories[item.MainCategoryID.Int64]; ok {
			view.Category = &CategoryView{ID: cat.ID, Name: cat.Name}
		}
	}
	if !item.IsUniversal {
		view.CompatibleCars = assoc.cars[item.ID]
		if view.CompatibleCars == nil {
			view.CompatibleCars = []CarView{}
		}
	}
	return view
}
