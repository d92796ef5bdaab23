package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Item is an items row.
type Item struct {
	ID             int64
	Name           string
	BrandName      string
	MainCategoryID pgtype.Int8
	IsFeature      bool
	IsUniversal    bool
	OENo           pgtype.Text
	Quantity       int32
	StatusID       pgtype.Int8
	LKBNo          pgtype.Text
	Description    pgtype.Text
	Price          decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Category is a main_categories row.
type Category struct {
	ID   int64
	Name string
}

// ItemImage is an item_images row.
type ItemImage struct {
	ID     int64
	ItemID int64
	Path   string
}

// ItemDiscount is a discounts row scoped to an item.
type ItemDiscount struct {
	ID       int64
	ItemID   int64
	Kind     string
	Value    decimal.Decimal
	IsActive bool
}

// Car is a compatible-car row joined through car_items.
type Car struct {
	ID     int64
	ItemID int64
	Name   string
	Model  string
	Year   int32
}

// ItemFilter narrows item listing queries. Nil fields apply no constraint;
// constraints are AND-combined. OnlyDiscounted excludes items without at
// least one active discount.
type ItemFilter struct {
	Feature        *bool
	Universal      *bool
	CategoryID     *int64
	OnlyDiscounted bool
}

// CreateItemParams carries the insertable item columns.
type CreateItemParams struct {
	Name           string
	BrandName      string
	MainCategoryID pgtype.Int8
	IsFeature      bool
	IsUniversal    bool
	OENo           pgtype.Text
	Quantity       int32
	StatusID       pgtype.Int8
	LKBNo          pgtype.Text
	Description    pgtype.Text
	Price          decimal.Decimal
}

// UpdateItemParams carries the allow-listed mutable columns. Nil fields are
// left untouched.
type UpdateItemParams struct {
	Name           *string
	BrandName      *string
	MainCategoryID *int64
	IsFeature      *bool
	IsUniversal    *bool
	OENo           *string
	Price          *decimal.Decimal
}

// IsEmpty reports whether the update carries no allow-listed column at all.
func (p UpdateItemParams) IsEmpty() bool {
	return p.Name == nil && p.BrandName == nil && p.MainCategoryID == nil &&
		p.IsFeature == nil && p.IsUniversal == nil && p.OENo == nil && p.Price == nil
}

const itemColumns = `id, name, brand_name, main_category_id, is_feature, is_universal,
	oe_no, quantity, status_id, lkb_no, description, price, created_at, updated_at`

func itemFilterClause(f ItemFilter, args []any) (string, []any) {
	var conds []string
	if f.Feature != nil {
		args = append(args, *f.Feature)
		conds = append(conds, fmt.Sprintf("i.is_feature = $%d", len(args)))
	}
	if f.Universal != nil {
		args = append(args, *f.Universal)
		conds = append(conds, fmt.Sprintf("i.is_universal = $%d", len(args)))
	}
	if f.CategoryID != nil {
		args = append(args, *f.CategoryID)
		conds = append(conds, fmt.Sprintf("i.main_category_id = $%d", len(args)))
	}
	if f.OnlyDiscounted {
		conds = append(conds, "EXISTS (SELECT 1 FROM discounts d WHERE d.item_id = i.id AND d.is_active)")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// CountItems returns the number of items matching the filter.
func (s *Store) CountItems(ctx context.Context, f ItemFilter) (int64, error) {
	query := "SELECT count(*) FROM items i"
	clause, args := itemFilterClause(f, nil)
	var count int64
	err := s.Pool.QueryRow(ctx, query+clause, args...).Scan(&count)
	return count, err
}

// ListItems returns one page of items matching the filter, oldest first.
func (s *Store) ListItems(ctx context.Context, f ItemFilter, limit, offset int) ([]Item, error) {
	clause, args := itemFilterClause(f, nil)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT %s FROM items i%s ORDER BY i.id LIMIT $%d OFFSET $%d`,
		itemColumns, clause, len(args)-1, len(args))
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

// GetItem fetches a single item by identifier.
func (s *Store) GetItem(ctx context.Context, id int64) (Item, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
	return scanItem(row)
}

// CreateItem inserts an item and returns the stored row.
func (s *Store) CreateItem(ctx context.Context, p CreateItemParams) (Item, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO items (name, brand_name, main_category_id, is_feature, is_universal,
			oe_no, quantity, status_id, lkb_no, description, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+itemColumns,
		p.Name, p.BrandName, p.MainCategoryID, p.IsFeature, p.IsUniversal,
		p.OENo, p.Quantity, p.StatusID, p.LKBNo, p.Description, p.Price)
	return scanItem(row)
}

// UpdateItem applies the non-nil allow-listed columns and reports the number
// of affected rows.
func (s *Store) UpdateItem(ctx context.Context, id int64, p UpdateItemParams) (int64, error) {
	var sets []string
	var args []any
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if p.Name != nil {
		set("name", *p.Name)
	}
	if p.BrandName != nil {
		set("brand_name", *p.BrandName)
	}
	if p.MainCategoryID != nil {
		set("main_category_id", *p.MainCategoryID)
	}
	if p.IsFeature != nil {
		set("is_feature", *p.IsFeature)
	}
	if p.IsUniversal != nil {
		set("is_universal", *p.IsUniversal)
	}
	if p.OENo != nil {
		set("oe_no", *p.OENo)
	}
	if p.Price != nil {
		set("price", *p.Price)
	}
	if len(sets) == 0 {
		return 0, nil
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)
	query := fmt.Sprintf("UPDATE items SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	tag, err := s.Pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteItem removes an item and reports the number of affected rows.
func (s *Store) DeleteItem(ctx context.Context, id int64) (int64, error) {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GetCategory fetches a category by identifier.
func (s *Store) GetCategory(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := s.Pool.QueryRow(ctx, `SELECT id, name FROM main_categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name)
	return c, err
}

// ListCategoriesByIDs fetches the categories for the given identifiers.
func (s *Store) ListCategoriesByIDs(ctx context.Context, ids []int64) ([]Category, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name FROM main_categories WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListImagesByItems fetches image rows for the given item identifiers.
func (s *Store) ListImagesByItems(ctx context.Context, itemIDs []int64) ([]ItemImage, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT id, item_id, path FROM item_images WHERE item_id = ANY($1) ORDER BY id`, itemIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ItemImage
	for rows.Next() {
		var img ItemImage
		if err := rows.Scan(&img.ID, &img.ItemID, &img.Path); err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// CreateItemImages records one image path per uploaded file for an item.
func (s *Store) CreateItemImages(ctx context.Context, itemID int64, paths []string) ([]ItemImage, error) {
	out := make([]ItemImage, 0, len(paths))
	for _, path := range paths {
		var img ItemImage
		err := s.Pool.QueryRow(ctx,
			`INSERT INTO item_images (item_id, path) VALUES ($1, $2) RETURNING id, item_id, path`,
			itemID, path).Scan(&img.ID, &img.ItemID, &img.Path)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}

// ListDiscountsByItems fetches active discounts for the given item identifiers.
func (s *Store) ListDiscountsByItems(ctx context.Context, itemIDs []int64) ([]ItemDiscount, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, item_id, kind, value, is_active
		FROM discounts WHERE item_id = ANY($1) AND is_active ORDER BY id`, itemIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ItemDiscount
	for rows.Next() {
		var d ItemDiscount
		if err := rows.Scan(&d.ID, &d.ItemID, &d.Kind, &d.Value, &d.IsActive); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListCarsByItems fetches the compatible cars for the given item identifiers.
func (s *Store) ListCarsByItems(ctx context.Context, itemIDs []int64) ([]Car, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT c.id, ci.item_id, c.name, c.model, c.year
		FROM cars c
		JOIN car_items ci ON ci.car_id = c.id
		WHERE ci.item_id = ANY($1)
		ORDER BY c.id`, itemIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Car
	for rows.Next() {
		var c Car
		if err := rows.Scan(&c.ID, &c.ItemID, &c.Name, &c.Model, &c.Year); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Name, &it.BrandName, &it.MainCategoryID, &it.IsFeature,
		&it.IsUniversal, &it.OENo, &it.Quantity, &it.StatusID, &it.LKBNo,
		&it.Description, &it.Price, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

func scanItems(rows pgx.Rows) ([]Item, error) {
	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
