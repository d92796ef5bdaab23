package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/andika-pr/backend-otoparts/internal/common"
	"github.com/andika-pr/backend-otoparts/internal/db"
)

type queryProvider interface {
	ListUsers(ctx context.Context) ([]db.User, error)
	GetUserByID(ctx context.Context, id pgtype.UUID) (db.User, error)
	SetUserPercentage(ctx context.Context, id pgtype.UUID, percentage decimal.Decimal) (int64, error)
	SoftDeleteUser(ctx context.Context, id pgtype.UUID) (int64, error)
	RestoreUser(ctx context.Context, id pgtype.UUID) error
	ListAddressesByUser(ctx context.Context, userID pgtype.UUID) ([]db.Address, error)
	CreateAddress(ctx context.Context, p db.CreateAddressParams) (db.Address, error)
	UpdateAddress(ctx context.Context, id int64, userID pgtype.UUID, p db.UpdateAddressParams) (db.Address, error)
	DeleteAddress(ctx context.Context, id int64, userID pgtype.UUID) (int64, error)
}

// View is a user as returned to clients. The password hash and refresh
// token digest are never serialized.
type View struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	PhoneNumber *string         `json:"phone_number"`
	IsApprove   bool            `json:"is_approve"`
	Percentage  decimal.Decimal `json:"percentage"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Address is a user address in API-friendly format.
type Address struct {
	ID           int64     `json:"id"`
	BuildingNo   string    `json:"building_no,omitempty"`
	Floor        string    `json:"floor,omitempty"`
	Unit         string    `json:"unit,omitempty"`
	AddressTitle string    `json:"address_title,omitempty"`
	Street       string    `json:"street,omitempty"`
	IsSave       bool      `json:"is_save"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AddressInput captures payload for creating an address.
type AddressInput struct {
	BuildingNo   string `json:"building_no"`
	Floor        string `json:"floor"`
	Unit         string `json:"unit"`
	AddressTitle string `json:"address_title"`
	Street       string `json:"street" validate:"required"`
	IsSave       bool   `json:"is_save"`
}

// AddressPatch captures a partial address update; nil fields are untouched.
type AddressPatch struct {
	BuildingNo   *string `json:"building_no"`
	Floor        *string `json:"floor"`
	Unit         *string `json:"unit"`
	AddressTitle *string `json:"address_title"`
	Street       *string `json:"street"`
	IsSave       *bool   `json:"is_save"`
}

// Service orchestrates user administration and address book operations.
type Service struct {
	queries queryProvider
}

// ServiceConfig configures the user service.
type ServiceConfig struct {
	Queries queryProvider
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("user: queries is required")
	}
	return &Service{queries: cfg.Queries}, nil
}

// List returns every active user.
func (s *Service) List(ctx context.Context) ([]View, error) {
	rows, err := s.queries.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(rows))
	for _, row := range rows {
		views = append(views, convertUser(row))
	}
	return views, nil
}

// SetPercentage updates the per-user price divisor. Negative values are
// rejected before they can poison price computation.
func (s *Service) SetPercentage(ctx context.Context, userID string, percentage decimal.Decimal) (View, error) {
	uid, err := toUUID(userID)
	if err != nil {
		return View{}, common.NotFound("user not found", err)
	}
	if percentage.IsNegative() {
		return View{}, common.ValidationError("percentage must not be negative", nil)
	}
	affected, err := s.queries.SetUserPercentage(ctx, uid, percentage)
	if err != nil {
		return View{}, err
	}
	if affected == 0 {
		return View{}, common.NotFound("user not found", nil)
	}
	updated, err := s.queries.GetUserByID(ctx, uid)
	if err != nil {
		return View{}, err
	}
	return convertUser(updated), nil
}

// Delete soft-deletes a user. The row survives for order history; the user
// can no longer authenticate.
func (s *Service) Delete(ctx context.Context, userID string) error {
	uid, err := toUUID(userID)
	if err != nil {
		return common.NotFound("user not found", err)
	}
	affected, err := s.queries.SoftDeleteUser(ctx, uid)
	if err != nil {
		return err
	}
	if affected == 0 {
		return common.NotFound("user not found", nil)
	}
	return nil
}

// Restore undoes a soft delete.
func (s *Service) Restore(ctx context.Context, userID string) error {
	uid, err := toUUID(userID)
	if err != nil {
		return common.NotFound("user not found", err)
	}
	return s.queries.RestoreUser(ctx, uid)
}

// ListAddresses returns the viewer's address book.
func (s *Service) ListAddresses(ctx context.Context, viewer common.Viewer) ([]Address, error) {
	uid, err := toUUID(viewer.ID)
	if err != nil {
		return nil, common.Unauthorized("unauthorized", err)
	}
	rows, err := s.queries.ListAddressesByUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	addresses := make([]Address, 0, len(rows))
	for _, row := range rows {
		addresses = append(addresses, convertAddress(row))
	}
	return addresses, nil
}

// CreateAddress inserts a new address for the viewer.
func (s *Service) CreateAddress(ctx context.Context, viewer common.Viewer, input AddressInput) (Address, error) {
	uid, err := toUUID(viewer.ID)
	if err != nil {
		return Address{}, common.Unauthorized("unauthorized", err)
	}
	if strings.TrimSpace(input.Street) == "" {
		return Address{}, common.ValidationError("street is required", nil)
	}
	created, err := s.queries.CreateAddress(ctx, db.CreateAddressParams{
		UserID:       uid,
		BuildingNo:   strings.TrimSpace(input.BuildingNo),
		Floor:        strings.TrimSpace(input.Floor),
		Unit:         strings.TrimSpace(input.Unit),
		AddressTitle: strings.TrimSpace(input.AddressTitle),
		Street:       strings.TrimSpace(input.Street),
		IsSave:       input.IsSave,
	})
	if err != nil {
		return Address{}, err
	}
	return convertAddress(created), nil
}

// UpdateAddress applies a partial update to an address owned by the viewer.
func (s *Service) UpdateAddress(ctx context.Context, viewer common.Viewer, addressID int64, patch AddressPatch) (Address, error) {
	uid, err := toUUID(viewer.ID)
	if err != nil {
		return Address{}, common.Unauthorized("unauthorized", err)
	}
	updated, err := s.queries.UpdateAddress(ctx, addressID, uid, db.UpdateAddressParams{
		BuildingNo:   patch.BuildingNo,
		Floor:        patch.Floor,
		Unit:         patch.Unit,
		AddressTitle: patch.AddressTitle,
		Street:       patch.Street,
		IsSave:       patch.IsSave,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Address{}, common.NotFound("address not found", err)
		}
		return Address{}, err
	}
	return convertAddress(updated), nil
}

// DeleteAddress removes an address owned by the viewer.
func (s *Service) DeleteAddress(ctx context.Context, viewer common.Viewer, addressID int64) error {
	uid, err := toUUID(viewer.ID)
	if err != nil {
		return common.Unauthorized("unauthorized", err)
	}
	affected, err := s.queries.DeleteAddress(ctx, addressID, uid)
	if err != nil {
		return err
	}
	if affected == 0 {
		return common.NotFound("address not found", nil)
	}
	return nil
}

func convertUser(row db.User) View {
	view := View{
		ID:         uuidString(row.ID),
		Name:       row.Name,
		Email:      row.Email,
		IsApprove:  row.IsApprove,
		Percentage: row.Percentage,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if row.PhoneNumber.Valid {
		phone := row.PhoneNumber.String
		view.PhoneNumber = &phone
	}
	return view
}

func convertAddress(row db.Address) Address {
	return Address{
		ID:           row.ID,
		BuildingNo:   row.BuildingNo,
		Floor:        row.Floor,
		Unit:         row.Unit,
		AddressTitle: row.AddressTitle,
		Street:       row.Street,
		IsSave:       row.IsSave,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func toUUID(value string) (pgtype.UUID, error) {
	var id pgtype.UUID
	if err := id.Scan(value); err != nil {
		return pgtype.UUID{}, err
	}
	return id, nil
}

func uuidString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	u, err := uuid.FromBytes(id.Bytes[:])
	if err != nil {
		return ""
	}
	return u.String()
}
