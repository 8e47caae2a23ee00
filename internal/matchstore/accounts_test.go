package matchstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAccounts(t *testing.T) (*Accounts, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return NewAccounts(store, AccountsConfig{
		JWTSecret:          "secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: time.Hour,
		BCryptCost:         bcrypt.MinCost,
	}, nil), store
}

func TestRegisterHashesPassword(t *testing.T) {
	accounts, store := newTestAccounts(t)
	ctx := context.Background()

	u, err := accounts.Register(ctx, &RegisterRequest{Email: " Ana@Example.com ", Password: "password123", Name: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)

	stored, err := store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "password123", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("password123")))

	_, err = accounts.Register(ctx, &RegisterRequest{Email: "ana@example.com", Password: "password123", Name: "Ana"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginAndTokens(t *testing.T) {
	accounts, _ := newTestAccounts(t)
	ctx := context.Background()

	u, err := accounts.Register(ctx, &RegisterRequest{Email: "ana@example.com", Password: "password123", Name: "Ana"})
	require.NoError(t, err)

	_, err = accounts.Login(ctx, "ana@example.com", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = accounts.Login(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	resp, err := accounts.Login(ctx, "ANA@example.com", "password123")
	require.NoError(t, err)

	claims, err := accounts.ValidateToken(ctx, resp.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, "access", claims.Type)

	_, err = accounts.Refresh(ctx, resp.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "access token cannot refresh")

	fresh, err := accounts.Refresh(ctx, resp.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, resp.Tokens.AccessToken, fresh.AccessToken)
	assert.Empty(t, fresh.RefreshToken)

	other, err := accounts.Login(ctx, "ana@example.com", "password123")
	require.NoError(t, err)

	require.NoError(t, accounts.Logout(ctx, resp.Tokens.AccessToken))
	_, err = accounts.ValidateToken(ctx, resp.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = accounts.Refresh(ctx, resp.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "refresh token dies with its session")
	_, err = accounts.ValidateToken(ctx, fresh.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "refreshed tokens share the session")

	_, err = accounts.Refresh(ctx, other.Tokens.RefreshToken)
	assert.NoError(t, err, "a separate login is a separate session")
}

func TestLogoutWithRefreshTokenEndsSession(t *testing.T) {
	accounts, _ := newTestAccounts(t)
	ctx := context.Background()

	_, err := accounts.Register(ctx, &RegisterRequest{Email: "ana@example.com", Password: "password123"})
	require.NoError(t, err)
	resp, err := accounts.Login(ctx, "ana@example.com", "password123")
	require.NoError(t, err)

	require.NoError(t, accounts.Logout(ctx, resp.Tokens.RefreshToken))
	_, err = accounts.ValidateToken(ctx, resp.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, accounts.Logout(ctx, resp.Tokens.RefreshToken), ErrInvalidToken)
}

func TestRegisterDefaults(t *testing.T) {
	accounts, _ := newTestAccounts(t)

	u, err := accounts.Register(context.Background(), &RegisterRequest{Email: "ana@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, UserWithoutHousing, u.UserType)
	require.NotNil(t, u.Images)

	raw, err := json.Marshal(u)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"user_images":[]`)
	assert.NotContains(t, string(raw), "password")
}

func TestExpiredTokenIsReportedAsExpired(t *testing.T) {
	accounts, _ := newTestAccounts(t)
	ctx := context.Background()

	_, err := accounts.Register(ctx, &RegisterRequest{Email: "ana@example.com", Password: "password123", Name: "Ana"})
	require.NoError(t, err)

	accounts.now = func() time.Time { return time.Now().Add(-time.Hour) }
	resp, err := accounts.Login(ctx, "ana@example.com", "password123")
	require.NoError(t, err)
	accounts.now = time.Now

	_, err = accounts.ValidateToken(ctx, resp.Tokens.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = accounts.ValidateToken(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
