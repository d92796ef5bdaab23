package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Order is an orders row together with its left-joined associations.
// Association structs are nil when the referenced row does not exist.
type Order struct {
	ID            int64
	CartID        pgtype.Int8
	AddressID     pgtype.Int8
	OrderStatusID pgtype.Int8
	PromotionID   pgtype.Int8
	UserID        pgtype.UUID
	Quantity      int32
	DeliveryFees  decimal.Decimal
	TotalPrice    decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Cart      *OrderCart
	Address   *Address
	Status    *OrderStatus
	Promotion *Promotion
	User      *OrderUser
}

// OrderCart is the cart association loaded with an order.
type OrderCart struct {
	ID       int64
	ItemID   int64
	OENo     pgtype.Text
	Quantity int32
}

// OrderStatus is the order_statuses association.
type OrderStatus struct {
	ID     int64
	Status string
	UserID pgtype.UUID
}

// Promotion is the promotions association.
type Promotion struct {
	ID   int64
	OENo pgtype.Text
	Type string
}

// OrderUser is the slim user projection nested under an order.
type OrderUser struct {
	ID    pgtype.UUID
	Name  string
	Email string
}

// Address is an addresses row.
type Address struct {
	ID           int64
	UserID       pgtype.UUID
	BuildingNo   string
	Floor        string
	Unit         string
	AddressTitle string
	Street       string
	IsSave       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const orderSelect = `
	SELECT o.id, o.cart_id, o.address_id, o.order_status_id, o.promotion_id, o.user_id,
		o.quantity, o.delivery_fees, o.total_price, o.created_at, o.updated_at,
		c.id, c.item_id, c.oe_no, c.quantity,
		a.id, a.user_id, a.building_no, a.floor, a.unit, a.address_title, a.street, a.is_save,
		a.created_at, a.updated_at,
		st.id, st.status, st.user_id,
		p.id, p.oe_no, p.type,
		u.id, u.name, u.email
	FROM orders o
	LEFT JOIN carts c ON c.id = o.cart_id
	LEFT JOIN addresses a ON a.id = o.address_id
	LEFT JOIN order_statuses st ON st.id = o.order_status_id
	LEFT JOIN promotions p ON p.id = o.promotion_id
	LEFT JOIN users u ON u.id = o.user_id`

// CountOrdersByUser returns the number of orders owned by a user.
func (s *Store) CountOrdersByUser(ctx context.Context, userID pgtype.UUID) (int64, error) {
	var count int64
	err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

// ListOrdersByUser returns one page of a user's orders with associations, newest first.
func (s *Store) ListOrdersByUser(ctx context.Context, userID pgtype.UUID, limit, offset int) ([]Order, error) {
	rows, err := s.Pool.Query(ctx,
		orderSelect+` WHERE o.user_id = $1 ORDER BY o.created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetOrderForUser fetches a single order with associations, scoped to its owner.
func (s *Store) GetOrderForUser(ctx context.Context, id int64, userID pgtype.UUID) (Order, error) {
	row := s.Pool.QueryRow(ctx, orderSelect+` WHERE o.id = $1 AND o.user_id = $2`, id, userID)
	return scanOrder(row)
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var (
		cartID, cartItemID     pgtype.Int8
		cartOENo               pgtype.Text
		cartQty                pgtype.Int4
		addrID                 pgtype.Int8
		addrUserID             pgtype.UUID
		addrBuildingNo         pgtype.Text
		addrFloor, addrUnit    pgtype.Text
		addrTitle, addrStreet  pgtype.Text
		addrIsSave             pgtype.Bool
		addrCreated, addrUpdt  pgtype.Timestamptz
		statusID               pgtype.Int8
		statusText             pgtype.Text
		statusUserID           pgtype.UUID
		promoID                pgtype.Int8
		promoOENo, promoType   pgtype.Text
		userID                 pgtype.UUID
		userName, userEmail    pgtype.Text
	)
	err := row.Scan(&o.ID, &o.CartID, &o.AddressID, &o.OrderStatusID, &o.PromotionID, &o.UserID,
		&o.Quantity, &o.DeliveryFees, &o.TotalPrice, &o.CreatedAt, &o.UpdatedAt,
		&cartID, &cartItemID, &cartOENo, &cartQty,
		&addrID, &addrUserID, &addrBuildingNo, &addrFloor, &addrUnit, &addrTitle, &addrStreet,
		&addrIsSave, &addrCreated, &addrUpdt,
		&statusID, &statusText, &statusUserID,
		&promoID, &promoOENo, &promoType,
		&userID, &userName, &userEmail)
	if err != nil {
		return Order{}, err
	}
	if cartID.Valid {
		o.Cart = &OrderCart{ID: cartID.Int64, ItemID: cartItemID.Int64, OENo: cartOENo, Quantity: cartQty.Int32}
	}
	if addrID.Valid {
		o.Address = &Address{
			ID: addrID.Int64, UserID: addrUserID,
			BuildingNo: addrBuildingNo.String, Floor: addrFloor.String, Unit: addrUnit.String,
			AddressTitle: addrTitle.String, Street: addrStreet.String, IsSave: addrIsSave.Bool,
			CreatedAt: addrCreated.Time, UpdatedAt: addrUpdt.Time,
		}
	}
	if statusID.Valid {
		o.Status = &OrderStatus{ID: statusID.Int64, Status: statusText.String, UserID: statusUserID}
	}
	if promoID.Valid {
		o.Promotion = &Promotion{ID: promoID.Int64, OENo: promoOENo, Type: promoType.String}
	}
	if userID.Valid {
		o.User = &OrderUser{ID: userID, Name: userName.String, Email: userEmail.String}
	}
	return o, nil
}
