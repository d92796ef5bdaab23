package user

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/andika-pr/backend-otoparts/internal/common"
	"github.com/andika-pr/backend-otoparts/internal/db"
)

type fakeQueries struct {
	users     map[string]*db.User // keyed by UUID string
	addresses map[int64]*db.Address
	nextID    int64
}

func newFakeQueries() *fakeQueries {
	return &fakeQueries{
		users:     make(map[string]*db.User),
		addresses: make(map[int64]*db.Address),
		nextID:    1,
	}
}

func (f *fakeQueries) addUser(percentage string) *db.User {
	id := uuid.New()
	var pgID pgtype.UUID
	copy(pgID.Bytes[:], id[:])
	pgID.Valid = true
	user := &db.User{
		ID:         pgID,
		Name:       "Test User",
		Email:      id.String() + "@example.com",
		Percentage: decimal.RequireFromString(percentage),
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	f.users[id.String()] = user
	return user
}

func (f *fakeQueries) ListUsers(context.Context) ([]db.User, error) {
	out := make([]db.User, 0, len(f.users))
	for _, u := range f.users {
		if !u.DeletedAt.Valid {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeQueries) GetUserByID(_ context.Context, id pgtype.UUID) (db.User, error) {
	for _, u := range f.users {
		if u.ID == id && !u.DeletedAt.Valid {
			return *u, nil
		}
	}
	return db.User{}, pgx.ErrNoRows
}

func (f *fakeQueries) SetUserPercentage(_ context.Context, id pgtype.UUID, percentage decimal.Decimal) (int64, error) {
	for _, u := range f.users {
		if u.ID == id && !u.DeletedAt.Valid {
			u.Percentage = percentage
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeQueries) SoftDeleteUser(_ context.Context, id pgtype.UUID) (int64, error) {
	for _, u := range f.users {
		if u.ID == id && !u.DeletedAt.Valid {
			u.DeletedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeQueries) RestoreUser(_ context.Context, id pgtype.UUID) error {
	for _, u := range f.users {
		if u.ID == id {
			u.DeletedAt = pgtype.Timestamptz{}
		}
	}
	return nil
}

func (f *fakeQueries) ListAddressesByUser(_ context.Context, userID pgtype.UUID) ([]db.Address, error) {
	var out []db.Address
	for _, a := range f.addresses {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeQueries) CreateAddress(_ context.Context, p db.CreateAddressParams) (db.Address, error) {
	address := &db.Address{
		ID:           f.nextID,
		UserID:       p.UserID,
		BuildingNo:   p.BuildingNo,
		Floor:        p.Floor,
		Unit:         p.Unit,
		AddressTitle: p.AddressTitle,
		Street:       p.Street,
		IsSave:       p.IsSave,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	f.addresses[address.ID] = address
	f.nextID++
	return *address, nil
}

func (f *fakeQueries) UpdateAddress(_ context.Context, id int64, userID pgtype.UUID, p db.UpdateAddressParams) (db.Address, error) {
	address, ok := f.addresses[id]
	if !ok || address.UserID != userID {
		return db.Address{}, pgx.ErrNoRows
	}
	if p.BuildingNo != nil {
		address.BuildingNo = *p.BuildingNo
	}
	if p.Street != nil {
		address.Street = *p.Street
	}
	if p.IsSave != nil {
		address.IsSave = *p.IsSave
	}
	return *address, nil
}

func (f *fakeQueries) DeleteAddress(_ context.Context, id int64, userID pgtype.UUID) (int64, error) {
	address, ok := f.addresses[id]
	if !ok || address.UserID != userID {
		return 0, nil
	}
	delete(f.addresses, id)
	return 1, nil
}

func newTestService(t *testing.T, queries *fakeQueries) *Service {
	t.Helper()
	svc, err := NewService(ServiceConfig{Queries: queries})
	require.NoError(t, err)
	return svc
}

func viewerFor(u *db.User) common.Viewer {
	id, _ := uuid.FromBytes(u.ID.Bytes[:])
	return common.Viewer{ID: id.String(), Approved: u.IsApprove, Percentage: u.Percentage}
}

func TestSetPercentage(t *testing.T) {
	queries := newFakeQueries()
	u := queries.addUser("0")
	svc := newTestService(t, queries)

	view, err := svc.SetPercentage(context.Background(), viewerFor(u).ID, decimal.RequireFromString("2.5"))
	require.NoError(t, err)
	require.True(t, view.Percentage.Equal(decimal.RequireFromString("2.5")))
	require.True(t, u.Percentage.Equal(decimal.RequireFromString("2.5")))
}

func TestSetPercentageRejectsNegative(t *testing.T) {
	queries := newFakeQueries()
	u := queries.addUser("1")
	svc := newTestService(t, queries)

	_, err := svc.SetPercentage(context.Background(), viewerFor(u).ID, decimal.RequireFromString("-1"))
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	require.True(t, u.Percentage.Equal(decimal.NewFromInt(1)), "rejected update must not change the stored factor")
}

func TestSetPercentageUnknownUser(t *testing.T) {
	svc := newTestService(t, newFakeQueries())

	_, err := svc.SetPercentage(context.Background(), uuid.NewString(), decimal.NewFromInt(2))
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
}

func TestDeleteAndRestore(t *testing.T) {
	queries := newFakeQueries()
	u := queries.addUser("0")
	svc := newTestService(t, queries)
	id := viewerFor(u).ID

	require.NoError(t, svc.Delete(context.Background(), id))
	require.True(t, u.DeletedAt.Valid)

	// Deleting an already-deleted user reports not found.
	err := svc.Delete(context.Background(), id)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)

	require.NoError(t, svc.Restore(context.Background(), id))
	require.False(t, u.DeletedAt.Valid)
}

func TestAddressBookOwnership(t *testing.T) {
	queries := newFakeQueries()
	owner := queries.addUser("0")
	other := queries.addUser("0")
	svc := newTestService(t, queries)

	created, err := svc.CreateAddress(context.Background(), viewerFor(owner), AddressInput{
		Street:       "Jl. Sudirman 1",
		AddressTitle: "Office",
		IsSave:       true,
	})
	require.NoError(t, err)

	// Another user cannot see, update, or delete it.
	list, err := svc.ListAddresses(context.Background(), viewerFor(other))
	require.NoError(t, err)
	require.Empty(t, list)

	street := "Jl. Thamrin 2"
	_, err = svc.UpdateAddress(context.Background(), viewerFor(other), created.ID, AddressPatch{Street: &street})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)

	err = svc.DeleteAddress(context.Background(), viewerFor(other), created.ID)
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)

	// The owner can.
	updated, err := svc.UpdateAddress(context.Background(), viewerFor(owner), created.ID, AddressPatch{Street: &street})
	require.NoError(t, err)
	require.Equal(t, street, updated.Street)

	require.NoError(t, svc.DeleteAddress(context.Background(), viewerFor(owner), created.ID))
}

func TestCreateAddressRequiresStreet(t *testing.T) {
	queries := newFakeQueries()
	owner := queries.addUser("0")
	svc := newTestService(t, queries)

	_, err := svc.CreateAddress(context.Background(), viewerFor(owner), AddressInput{Street: "   "})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}
