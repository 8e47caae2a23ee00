package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/turumi/turumi-match/internal/auth"
	"github.com/turumi/turumi-match/internal/identity"
	"github.com/turumi/turumi-match/internal/match"
	"github.com/turumi/turumi-match/internal/matchstore"
)

func newServer(t *testing.T) (*httptest.Server, *matchstore.Accounts) {
	t.Helper()

	store := matchstore.NewMemoryStore()
	service := matchstore.NewService(store, store, nil, 50, nil)
	hub := matchstore.NewHub(service, nil)
	accounts := matchstore.NewAccounts(store, matchstore.AccountsConfig{
		JWTSecret:          "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		BCryptCost:         bcrypt.MinCost,
	}, nil)

	router := mux.NewRouter()
	matchstore.RegisterRoutes(router, matchstore.NewHandler(service, accounts, false, nil), hub, auth.NewMiddleware(accounts))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	_, err := accounts.Register(context.Background(), &matchstore.RegisterRequest{
		Email: "ana@example.com", Password: "password123", Name: "Ana",
	})
	require.NoError(t, err)
	return srv, accounts
}

func newSessionStore(t *testing.T) identity.SessionStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return identity.NewRedisSessionStore(client, "test", time.Hour)
}

func TestLoginStoresSession(t *testing.T) {
	srv, accounts := newServer(t)
	store := newSessionStore(t)
	client := auth.NewClient(srv.URL, http.DefaultClient, store, nil)
	ctx := context.Background()

	sess, err := client.Login(ctx, auth.LoginInput{Email: "ana@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), sess.UserID)
	assert.NotEmpty(t, sess.RefreshToken)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.BearerToken, loaded.BearerToken)

	claims, err := accounts.ValidateToken(ctx, loaded.BearerToken)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, claims.UserID)

	id, err := identity.StoreProvider{Store: store}.Current(ctx)
	require.NoError(t, err)
	_, err = match.NewHTTPRepository(srv.URL, http.DefaultClient, nil).ListMatches(ctx, id)
	assert.NoError(t, err)
}

func TestLoginFailures(t *testing.T) {
	srv, _ := newServer(t)
	store := newSessionStore(t)
	client := auth.NewClient(srv.URL, http.DefaultClient, store, nil)
	ctx := context.Background()

	_, err := client.Login(ctx, auth.LoginInput{Email: "ana@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, match.ErrAuth)

	_, err = client.Login(ctx, auth.LoginInput{Email: "not-an-email", Password: "x"})
	assert.ErrorIs(t, err, match.ErrValidation)
	re, ok := match.AsRequestError(err)
	require.True(t, ok)
	assert.Equal(t, "email", re.Field)

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, identity.ErrNoSession)
}

func TestRefreshAndLogout(t *testing.T) {
	srv, accounts := newServer(t)
	store := newSessionStore(t)
	client := auth.NewClient(srv.URL, http.DefaultClient, store, nil)
	ctx := context.Background()

	first, err := client.Login(ctx, auth.LoginInput{Email: "ana@example.com", Password: "password123"})
	require.NoError(t, err)

	refreshed, err := client.Refresh(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.BearerToken, refreshed.BearerToken)
	assert.Equal(t, first.RefreshToken, refreshed.RefreshToken)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, refreshed.BearerToken, loaded.BearerToken)

	require.NoError(t, client.Logout(ctx))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, identity.ErrNoSession)

	_, err = accounts.ValidateToken(ctx, refreshed.BearerToken)
	assert.Error(t, err, "token revoked remotely")

	// A copy of the old refresh token cannot revive the session.
	stale := newSessionStore(t)
	require.NoError(t, stale.Save(ctx, &identity.Session{
		Identity:     identity.Identity{UserID: first.UserID, BearerToken: refreshed.BearerToken},
		RefreshToken: first.RefreshToken,
	}))
	_, err = auth.NewClient(srv.URL, http.DefaultClient, stale, nil).Refresh(ctx)
	assert.ErrorIs(t, err, match.ErrAuth)

	// Logging out twice is a no-op.
	assert.NoError(t, client.Logout(ctx))

	_, err = client.Refresh(ctx)
	assert.ErrorIs(t, err, identity.ErrNoSession)
}

func TestRegister(t *testing.T) {
	srv, _ := newServer(t)
	store := newSessionStore(t)
	client := auth.NewClient(srv.URL, http.DefaultClient, store, nil)
	ctx := context.Background()

	acct, err := client.Register(ctx, auth.RegisterInput{Email: "host@example.com", Password: "password123", UserType: auth.UserWithHousing})
	require.NoError(t, err)
	assert.Equal(t, int64(2), acct.ID)
	assert.Equal(t, auth.UserWithHousing, acct.UserType)

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, identity.ErrNoSession, "registering does not log in")

	_, err = client.Login(ctx, auth.LoginInput{Email: "host@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = client.Register(ctx, auth.RegisterInput{Email: "host@example.com", Password: "password123", UserType: auth.UserWithHousing})
	assert.ErrorIs(t, err, match.ErrConflict)

	_, err = client.Register(ctx, auth.RegisterInput{Email: "x@example.com", Password: "password123", UserType: "landlord"})
	assert.ErrorIs(t, err, match.ErrValidation)
	re, ok := match.AsRequestError(err)
	require.True(t, ok)
	assert.Equal(t, "user_type", re.Field)

	_, err = client.Register(ctx, auth.RegisterInput{Email: "x@example.com", Password: "short", UserType: auth.UserWithoutHousing})
	assert.ErrorIs(t, err, match.ErrValidation)
}
