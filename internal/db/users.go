package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// User is a users row. RefreshToken stores the sha256 hex digest of the
// single active refresh token, or null when revoked.
type User struct {
	ID           pgtype.UUID
	Name         string
	Email        string
	PhoneNumber  pgtype.Text
	PasswordHash string
	IsApprove    bool
	Percentage   decimal.Decimal
	RefreshToken pgtype.Text
	DeletedAt    pgtype.Timestamptz
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateUserParams carries the insertable user columns.
type CreateUserParams struct {
	Name         string
	Email        string
	PhoneNumber  pgtype.Text
	PasswordHash string
}

const userColumns = `id, name, email, phone_number, password_hash, is_approve,
	percentage, refresh_token, deleted_at, created_at, updated_at`

// CreateUser inserts a user and returns the stored row.
func (s *Store) CreateUser(ctx context.Context, p CreateUserParams) (User, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO users (name, email, phone_number, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		p.Name, p.Email, p.PhoneNumber, p.PasswordHash)
	return scanUser(row)
}

// GetUserByEmail fetches a non-deleted user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 AND deleted_at IS NULL`, email)
	return scanUser(row)
}

// GetUserByID fetches a non-deleted user by identifier.
func (s *Store) GetUserByID(ctx context.Context, id pgtype.UUID) (User, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanUser(row)
}

// GetUserByRefreshToken fetches the user holding the given refresh token digest.
func (s *Store) GetUserByRefreshToken(ctx context.Context, tokenHash string) (User, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE refresh_token = $1 AND deleted_at IS NULL`, tokenHash)
	return scanUser(row)
}

// ListUsers returns all non-deleted users, oldest first.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SetUserRefreshToken overwrites the stored refresh token digest. A null
// value revokes the active token.
func (s *Store) SetUserRefreshToken(ctx context.Context, id pgtype.UUID, tokenHash pgtype.Text) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE users SET refresh_token = $2, updated_at = now() WHERE id = $1`, id, tokenHash)
	return err
}

// SetUserPercentage updates the per-user price scaling factor.
func (s *Store) SetUserPercentage(ctx context.Context, id pgtype.UUID, percentage decimal.Decimal) (int64, error) {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE users SET percentage = $2, updated_at = now() WHERE id = $1 AND deleted_at IS NULL`,
		id, percentage)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SoftDeleteUser marks a user deleted and reports the number of affected rows.
func (s *Store) SoftDeleteUser(ctx context.Context, id pgtype.UUID) (int64, error) {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE users SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// RestoreUser undoes a soft delete.
func (s *Store) RestoreUser(ctx context.Context, id pgtype.UUID) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE users SET deleted_at = NULL WHERE id = $1`, id)
	return err
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PhoneNumber, &u.PasswordHash,
		&u.IsApprove, &u.Percentage, &u.RefreshToken, &u.DeletedAt,
		&u.CreatedAt, &u.UpdatedAt)
	return u, err
}
