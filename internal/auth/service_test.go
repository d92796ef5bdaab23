package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/andika-pr/backend-otoparts/internal/common"
	"github.com/andika-pr/backend-otoparts/internal/db"
)

type fakeUserStore struct {
	users map[string]*db.User // keyed by email
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*db.User)}
}

func (f *fakeUserStore) addUser(email, password string, approved bool, percentage string) *db.User {
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		panic(err)
	}
	id := uuid.New()
	var pgID pgtype.UUID
	copy(pgID.Bytes[:], id[:])
	pgID.Valid = true
	user := &db.User{
		ID:           pgID,
		Name:         "Test User",
		Email:        email,
		PasswordHash: hash,
		IsApprove:    approved,
		Percentage:   decimal.RequireFromString(percentage),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.users[email] = user
	return user
}

func (f *fakeUserStore) CreateUser(_ context.Context, p db.CreateUserParams) (db.User, error) {
	if _, exists := f.users[p.Email]; exists {
		return db.User{}, &pgconn.PgError{Code: "23505"}
	}
	id := uuid.New()
	var pgID pgtype.UUID
	copy(pgID.Bytes[:], id[:])
	pgID.Valid = true
	user := &db.User{
		ID:           pgID,
		Name:         p.Name,
		Email:        p.Email,
		PhoneNumber:  p.PhoneNumber,
		PasswordHash: p.PasswordHash,
		Percentage:   decimal.Zero,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.users[p.Email] = user
	return *user, nil
}

func (f *fakeUserStore) GetUserByEmail(_ context.Context, email string) (db.User, error) {
	if user, ok := f.users[email]; ok {
		return *user, nil
	}
	return db.User{}, pgx.ErrNoRows
}

func (f *fakeUserStore) GetUserByID(_ context.Context, id pgtype.UUID) (db.User, error) {
	for _, user := range f.users {
		if user.ID == id {
			return *user, nil
		}
	}
	return db.User{}, pgx.ErrNoRows
}

func (f *fakeUserStore) GetUserByRefreshToken(_ context.Context, tokenHash string) (db.User, error) {
	for _, user := range f.users {
		if user.RefreshToken.Valid && user.RefreshToken.String == tokenHash {
			return *user, nil
		}
	}
	return db.User{}, pgx.ErrNoRows
}

func (f *fakeUserStore) SetUserRefreshToken(_ context.Context, id pgtype.UUID, tokenHash pgtype.Text) error {
	for _, user := range f.users {
		if user.ID == id {
			user.RefreshToken = tokenHash
			return nil
		}
	}
	return pgx.ErrNoRows
}

func newTestService(t *testing.T, store *fakeUserStore) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Queries: store,
		Secret:  "test-secret-at-least-32-characters",
	})
	require.NoError(t, err)
	return svc
}

func TestLoginUnknownEmail(t *testing.T) {
	store := newFakeUserStore()
	svc := newTestService(t, store)

	_, err := svc.Login(context.Background(), "nobody@example.com", "password123")
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
}

func TestLoginWrongPassword(t *testing.T) {
	store := newFakeUserStore()
	user := store.addUser("buyer@example.com", "correct-password", true, "2")
	svc := newTestService(t, store)

	_, err := svc.Login(context.Background(), "buyer@example.com", "wrong-password")
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusUnauthorized, appErr.HTTPStatus)
	require.Equal(t, "INVALID_CREDENTIALS", appErr.Code)
	require.False(t, user.RefreshToken.Valid, "failed login must not touch the stored refresh token")
}

func TestLoginIssuesTokenPair(t *testing.T) {
	store := newFakeUserStore()
	user := store.addUser("buyer@example.com", "correct-password", true, "2")
	svc := newTestService(t, store)

	pair, err := svc.Login(context.Background(), "buyer@example.com", "correct-password")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.True(t, user.RefreshToken.Valid)
	require.Equal(t, hashRefreshToken(pair.RefreshToken), user.RefreshToken.String,
		"only the digest of the refresh token is persisted")

	subject, err := svc.ParseAccessToken(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, uuidString(user.ID), subject)
}

func TestRefreshRotation(t *testing.T) {
	store := newFakeUserStore()
	store.addUser("buyer@example.com", "correct-password", true, "2")
	svc := newTestService(t, store)

	pair, err := svc.Login(context.Background(), "buyer@example.com", "correct-password")
	require.NoError(t, err)

	rotated, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The first token was consumed by the rotation.
	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusUnauthorized, appErr.HTTPStatus)

	// The rotated token still works.
	_, err = svc.Refresh(context.Background(), rotated.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshMissingToken(t *testing.T) {
	svc := newTestService(t, newFakeUserStore())

	_, err := svc.Refresh(context.Background(), "   ")
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusUnauthorized, appErr.HTTPStatus)
}

func TestRevokeInvalidatesRefreshToken(t *testing.T) {
	store := newFakeUserStore()
	user := store.addUser("buyer@example.com", "correct-password", true, "2")
	svc := newTestService(t, store)

	pair, err := svc.Login(context.Background(), "buyer@example.com", "correct-password")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(context.Background(), uuidString(user.ID)))
	require.False(t, user.RefreshToken.Valid)

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	require.Error(t, err)
}

func TestExpiredAccessTokenRejected(t *testing.T) {
	store := newFakeUserStore()
	store.addUser("buyer@example.com", "correct-password", true, "2")
	svc := newTestService(t, store)

	issuedAt := time.Now().Add(-time.Hour)
	svc.WithNow(func() time.Time { return issuedAt })
	pair, err := svc.Login(context.Background(), "buyer@example.com", "correct-password")
	require.NoError(t, err)

	svc.WithNow(time.Now)
	_, err = svc.ParseAccessToken(pair.AccessToken)
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusUnauthorized, appErr.HTTPStatus)
}

func TestResolveViewer(t *testing.T) {
	store := newFakeUserStore()
	user := store.addUser("buyer@example.com", "correct-password", true, "2")
	svc := newTestService(t, store)

	pair, err := svc.Login(context.Background(), "buyer@example.com", "correct-password")
	require.NoError(t, err)

	viewer, err := svc.ResolveViewer(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, uuidString(user.ID), viewer.ID)
	require.True(t, viewer.Approved)
	require.True(t, viewer.Percentage.Equal(decimal.RequireFromString("2")))
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t, newFakeUserStore())

	_, err := svc.Register(context.Background(), "", "buyer@example.com", "", "password123")
	require.Error(t, err)

	_, err = svc.Register(context.Background(), "Buyer", "buyer@example.com", "", "short")
	require.Error(t, err)

	user, err := svc.Register(context.Background(), "Buyer", "Buyer@Example.com", "08123456", "password123")
	require.NoError(t, err)
	require.Equal(t, "buyer@example.com", user.Email, "email is normalized to lower case")
	require.NotNil(t, user.PhoneNumber)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := newFakeUserStore()
	store.addUser("buyer@example.com", "correct-password", false, "0")
	svc := newTestService(t, store)

	_, err := svc.Register(context.Background(), "Buyer", "buyer@example.com", "", "password123")
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusConflict, appErr.HTTPStatus)
	require.Equal(t, "EMAIL_ALREADY_USED", appErr.Code)
}
