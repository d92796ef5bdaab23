package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// CreateAddressParams carries the insertable address columns.
type CreateAddressParams struct {
	UserID       pgtype.UUID
	BuildingNo   string
	Floor        string
	Unit         string
	AddressTitle string
	Street       string
	IsSave       bool
}

// UpdateAddressParams carries the mutable address columns; nil fields are
// left untouched.
type UpdateAddressParams struct {
	BuildingNo   *string
	Floor        *string
	Unit         *string
	AddressTitle *string
	Street       *string
	IsSave       *bool
}

const addressColumns = `id, user_id, building_no, floor, unit, address_title, street, is_save,
	created_at, updated_at`

// ListAddressesByUser returns all addresses owned by the user.
func (s *Store) ListAddressesByUser(ctx context.Context, userID pgtype.UUID) ([]Address, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateAddress inserts an address and returns the stored row.
func (s *Store) CreateAddress(ctx context.Context, p CreateAddressParams) (Address, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO addresses (user_id, building_no, floor, unit, address_title, street, is_save)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+addressColumns,
		p.UserID, p.BuildingNo, p.Floor, p.Unit, p.AddressTitle, p.Street, p.IsSave)
	return scanAddress(row)
}

// UpdateAddress applies the non-nil columns to an address owned by the user
// and returns the stored row.
func (s *Store) UpdateAddress(ctx context.Context, id int64, userID pgtype.UUID, p UpdateAddressParams) (Address, error) {
	var sets []string
	var args []any
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if p.BuildingNo != nil {
		set("building_no", *p.BuildingNo)
	}
	if p.Floor != nil {
		set("floor", *p.Floor)
	}
	if p.Unit != nil {
		set("unit", *p.Unit)
	}
	if p.AddressTitle != nil {
		set("address_title", *p.AddressTitle)
	}
	if p.Street != nil {
		set("street", *p.Street)
	}
	if p.IsSave != nil {
		set("is_save", *p.IsSave)
	}
	if len(sets) == 0 {
		return s.getAddress(ctx, id, userID)
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id, userID)
	query := fmt.Sprintf("UPDATE addresses SET %s WHERE id = $%d AND user_id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args)-1, len(args), addressColumns)
	return scanAddress(s.Pool.QueryRow(ctx, query, args...))
}

// DeleteAddress removes an address owned by the user and reports affected rows.
func (s *Store) DeleteAddress(ctx context.Context, id int64, userID pgtype.UUID) (int64, error) {
	tag, err := s.Pool.Exec(ctx,
		`DELETE FROM addresses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) getAddress(ctx context.Context, id int64, userID pgtype.UUID) (Address, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE id = $1 AND user_id = $2`, id, userID)
	return scanAddress(row)
}

func scanAddress(row pgx.Row) (Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.UserID, &a.BuildingNo, &a.Floor, &a.Unit, &a.AddressTitle,
		&a.Street, &a.IsSave, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}
