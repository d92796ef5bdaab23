package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/andika-pr/backend-otoparts/internal/common"
	"github.com/andika-pr/backend-otoparts/internal/db"
)

type queryProvider interface {
	CountOrdersByUser(ctx context.Context, userID pgtype.UUID) (int64, error)
	ListOrdersByUser(ctx context.Context, userID pgtype.UUID, limit, offset int) ([]db.Order, error)
	GetOrderForUser(ctx context.Context, id int64, userID pgtype.UUID) (db.Order, error)
}

// View is an order as returned to clients, with nested associations. A
// missing association serializes as null rather than being omitted.
type View struct {
	ID           int64           `json:"id"`
	Quantity     int32           `json:"quantity"`
	DeliveryFees decimal.Decimal `json:"delivery_fees"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	Cart         *CartView       `json:"cart"`
	Address      *AddressView    `json:"address"`
	Status       *StatusView     `json:"order_status"`
	Promotion    *PromotionView  `json:"promotion"`
	User         *UserView       `json:"user"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CartView is the cart nested under an order.
type CartView struct {
	ID       int64   `json:"id"`
	ItemID   int64   `json:"item_id"`
	OENo     *string `json:"OE_NO"`
	Quantity int32   `json:"quantity"`
}

// AddressView is the delivery address nested under an order.
type AddressView struct {
	ID           int64  `json:"id"`
	BuildingNo   string `json:"building_no,omitempty"`
	Floor        string `json:"floor,omitempty"`
	Unit         string `json:"unit,omitempty"`
	AddressTitle string `json:"address_title,omitempty"`
	Street       string `json:"street,omitempty"`
}

// StatusView is the order status nested under an order.
type StatusView struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// PromotionView is the promotion nested under an order.
type PromotionView struct {
	ID   int64   `json:"id"`
	OENo *string `json:"OE_NO"`
	Type string  `json:"type"`
}

// UserView is the slim owner projection nested under an order.
type UserView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ListResult is one page of the viewer's orders.
type ListResult struct {
	Meta  common.PageMeta
	Items []View
}

// Service exposes read access to a user's order history.
type Service struct {
	queries queryProvider
}

// ServiceConfig configures the order service.
type ServiceConfig struct {
	Queries queryProvider
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Queries == nil {
		return nil, errors.New("order: queries is required")
	}
	return &Service{queries: cfg.Queries}, nil
}

// List returns one page of the viewer's orders, newest first.
func (s *Service) List(ctx context.Context, viewer common.Viewer, page int) (ListResult, error) {
	uid, err := toUUID(viewer.ID)
	if err != nil {
		return ListResult{}, common.Unauthorized("unauthorized", err)
	}
	total, err := s.queries.CountOrdersByUser(ctx, uid)
	if err != nil {
		return ListResult{}, err
	}
	rows, err := s.queries.ListOrdersByUser(ctx, uid, common.PageSize, common.Offset(page))
	if err != nil {
		return ListResult{}, err
	}
	views := make([]View, 0, len(rows))
	for _, row := range rows {
		views = append(views, convertOrder(row))
	}
	return ListResult{
		Meta:  common.NewPageMeta(page, total),
		Items: views,
	}, nil
}

// Get fetches a single order owned by the viewer.
func (s *Service) Get(ctx context.Context, viewer common.Viewer, orderID int64) (View, error) {
	uid, err := toUUID(viewer.ID)
	if err != nil {
		return View{}, common.Unauthorized("unauthorized", err)
	}
	row, err := s.queries.GetOrderForUser(ctx, orderID, uid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return View{}, common.NotFound("order not found", err)
		}
		return View{}, err
	}
	return convertOrder(row), nil
}

func convertOrder(row db.Order) View {
	view := View{
		ID:           row.ID,
		Quantity:     row.Quantity,
		DeliveryFees: row.DeliveryFees,
		TotalPrice:   row.TotalPrice,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if row.Cart != nil {
		view.Cart = &CartView{
			ID:       row.Cart.ID,
			ItemID:   row.Cart.ItemID,
			OENo:     textPtr(row.Cart.OENo),
			Quantity: row.Cart.Quantity,
		}
	}
	if row.Address != nil {
		view.Address = &AddressView{
			ID:           row.Address.ID,
			BuildingNo:   row.Address.BuildingNo,
			Floor:        row.Address.Floor,
			Unit:         row.Address.Unit,
			AddressTitle: row.Address.AddressTitle,
			Street:       row.Address.Street,
		}
	}
	if row.Status != nil {
		view.Status = &StatusView{ID: row.Status.ID, Status: row.Status.Status}
	}
	if row.Promotion != nil {
		view.Promotion = &PromotionView{
			ID:   row.Promotion.ID,
			OENo: textPtr(row.Promotion.OENo),
			Type: row.Promotion.Type,
		}
	}
	if row.User != nil {
		view.User = &UserView{
			ID:    uuidString(row.User.ID),
			Name:  row.User.Name,
			Email: row.User.Email,
		}
	}
	return view
}

func textPtr(value pgtype.Text) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
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
