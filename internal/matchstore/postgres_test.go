package matchstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turumi/turumi-match/internal/common/database"
)

// newPostgresStore connects to TEST_DATABASE_URL and wipes the tables.
func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.NewPostgresDBFromURL(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewPostgresStore(db)
	require.NoError(t, store.Migrate(ctx))
	_, err = db.ExecContext(ctx, `TRUNCATE housing, matches, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return store
}

func TestPostgresStoreMatchLifecycle(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		u := &User{Email: fmt.Sprintf("pg%d@example.com", i), PasswordHash: "x", Name: "pg"}
		require.NoError(t, store.CreateUser(ctx, u))
		ids = append(ids, u.ID)
	}
	assert.ErrorIs(t, store.CreateUser(ctx, &User{Email: "PG0@example.com", PasswordHash: "x"}), ErrEmailTaken)

	exists, err := store.UserExists(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, exists)

	m, err := store.Create(ctx, ids[0], ids[1])
	require.NoError(t, err)
	assert.Equal(t, StatusPending, m.Status)

	_, err = store.Create(ctx, ids[0], ids[1])
	assert.ErrorIs(t, err, ErrConflict)

	_, err = store.Confirm(ctx, m.ID, ids[0])
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = store.Confirm(ctx, "missing", ids[1])
	assert.ErrorIs(t, err, ErrNotFound)

	confirmed, err := store.Confirm(ctx, m.ID, ids[1])
	require.NoError(t, err)
	assert.Equal(t, StatusMatched, confirmed.Status)

	_, err = store.Confirm(ctx, m.ID, ids[1])
	assert.ErrorIs(t, err, ErrConflict)
	_, err = store.Create(ctx, ids[1], ids[0])
	assert.ErrorIs(t, err, ErrConflict)

	matched, err := store.IsMatched(ctx, ids[1], ids[0])
	require.NoError(t, err)
	assert.True(t, matched)

	_, err = store.Create(ctx, ids[2], ids[0])
	require.NoError(t, err)

	page, err := store.List(ctx, ids[0], "", 1)
	require.NoError(t, err)
	require.Len(t, page.Matches, 1)
	require.NotEmpty(t, page.NextCursor)

	page, err = store.List(ctx, ids[0], page.NextCursor, 1)
	require.NoError(t, err)
	require.Len(t, page.Matches, 1)
	assert.Empty(t, page.NextCursor)
	assert.Equal(t, ids[2], page.Matches[0].FromUser)

	recs, err := store.Recommendations(ctx, ids[2], 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, ids[1], recs[0].ID)
}

func TestPostgresStoreUsers(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	u := &User{Email: "ana@example.com", PasswordHash: "x", Name: "Ana", Images: []string{"https://img.example.com/a.jpg"}}
	require.NoError(t, store.CreateUser(ctx, u))

	got, err := store.GetUserByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, []string{"https://img.example.com/a.jpg"}, []string(got.Images))

	got.Age = 30
	require.NoError(t, store.UpdateUser(ctx, got))

	again, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, again.Age)

	_, err = store.GetUser(ctx, 12345)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPostgresStoreHousing(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	u := &User{Email: "host@example.com", PasswordHash: "x", UserType: UserWithHousing}
	require.NoError(t, store.CreateUser(ctx, u))

	got, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, UserWithHousing, got.UserType)
	assert.NotNil(t, got.Images)

	first := &Housing{OwnerID: u.ID, Address: "Av. Siempre Viva 742", Rent: 250000, Size: 60, AvailableRoom: 1}
	require.NoError(t, store.CreateHousing(ctx, first))
	assert.NotZero(t, first.ID)
	second := &Housing{OwnerID: u.ID, Address: "Calle 2", Rent: 300000, Size: 80, AvailableRoom: 2, PetsAllowed: true}
	require.NoError(t, store.CreateHousing(ctx, second))

	h, err := store.GetHousing(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Av. Siempre Viva 742", h.Address)

	list, err := store.ListHousing(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	_, err = store.GetHousing(ctx, 999)
	assert.ErrorIs(t, err, ErrHousingNotFound)
	assert.ErrorIs(t, store.CreateHousing(ctx, &Housing{OwnerID: 999, Address: "x", Rent: 1, Size: 1}), ErrUserNotFound)
}
