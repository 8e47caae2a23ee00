package chat_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/turumi/turumi-match/internal/auth"
	"github.com/turumi/turumi-match/internal/chat"
	"github.com/turumi/turumi-match/internal/identity"
	"github.com/turumi/turumi-match/internal/match"
	"github.com/turumi/turumi-match/internal/matchstore"
)

type env struct {
	srv     *httptest.Server
	service *matchstore.Service
}

func newEnv(t *testing.T) (*env, identity.Identity, identity.Identity) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := matchstore.NewMemoryStore()
	service := matchstore.NewService(store, store, nil, 50, nil)
	hub := matchstore.NewHub(service, nil)
	service.SetNotifier(hub)
	go hub.Run(ctx)

	accounts := matchstore.NewAccounts(store, matchstore.AccountsConfig{
		JWTSecret:          "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: time.Hour,
		BCryptCost:         bcrypt.MinCost,
	}, nil)

	router := mux.NewRouter()
	matchstore.RegisterRoutes(router, matchstore.NewHandler(service, accounts, false, nil), hub, auth.NewMiddleware(accounts))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	login := func(email string) identity.Identity {
		u, err := accounts.Register(ctx, &matchstore.RegisterRequest{Email: email, Password: "password123", Name: email})
		require.NoError(t, err)
		resp, err := accounts.Login(ctx, email, "password123")
		require.NoError(t, err)
		return identity.Identity{UserID: u.ID, BearerToken: resp.Tokens.AccessToken}
	}
	return &env{srv: srv, service: service}, login("ana@example.com"), login("ben@example.com")
}

// connect dials and waits until the hub has registered the connection by
// provoking an error frame.
func connect(t *testing.T, e *env, id identity.Identity) (*chat.Client, <-chan chat.Frame) {
	t.Helper()
	client, err := chat.Dial(context.Background(), e.srv.URL, id, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan chat.Frame, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = client.Run(ctx, func(f chat.Frame) { frames <- f })
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.NoError(t, client.Send(9999, "hello?"))
	f := next(t, frames)
	require.Equal(t, chat.TypeError, f.Type)
	assert.Contains(t, f.ErrorText(), "matches")
	return client, frames
}

func next(t *testing.T, frames <-chan chat.Frame) chat.Frame {
	t.Helper()
	select {
	case f := <-frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return chat.Frame{}
	}
}

func TestMatchedUsersCanChat(t *testing.T) {
	e, ana, ben := newEnv(t)
	anaClient, anaFrames := connect(t, e, ana)
	_, benFrames := connect(t, e, ben)
	ctx := context.Background()

	m, err := e.service.Like(ctx, ana.UserID, ben.UserID)
	require.NoError(t, err)

	f := next(t, benFrames)
	require.Equal(t, chat.TypeNewLike, f.Type)
	rec, err := f.Match()
	require.NoError(t, err)
	assert.Equal(t, match.ID(m.ID), rec.ID)
	assert.Equal(t, match.StatusPending, rec.Status)

	_, err = e.service.Confirm(ctx, ben.UserID, m.ID)
	require.NoError(t, err)
	for _, frames := range []<-chan chat.Frame{anaFrames, benFrames} {
		f := next(t, frames)
		require.Equal(t, chat.TypeNewMatch, f.Type)
		rec, err := f.Match()
		require.NoError(t, err)
		assert.Equal(t, match.StatusMatched, rec.Status)
	}

	require.NoError(t, anaClient.Send(ben.UserID, "  hi ben  "))

	got := next(t, benFrames)
	msg, err := got.Chat()
	require.NoError(t, err)
	assert.Equal(t, ana.UserID, msg.From)
	assert.Equal(t, "hi ben", msg.Text)
	assert.NotEmpty(t, msg.SentAt)

	echo := next(t, anaFrames)
	msg, err = echo.Chat()
	require.NoError(t, err)
	assert.Equal(t, ben.UserID, msg.To)
}

func TestDialRejectsBadSession(t *testing.T) {
	e, _, _ := newEnv(t)

	_, err := chat.Dial(context.Background(), e.srv.URL, identity.Identity{}, nil)
	assert.ErrorIs(t, err, match.ErrAuth)

	_, err = chat.Dial(context.Background(), e.srv.URL, identity.Identity{UserID: 1, BearerToken: "opaque"}, nil)
	assert.ErrorIs(t, err, match.ErrAuth)
}

func TestSendValidates(t *testing.T) {
	e, ana, _ := newEnv(t)
	client, _ := connect(t, e, ana)

	assert.Error(t, client.Send(0, "hi"))
	assert.Error(t, client.Send(2, "   "))
}

func TestFrameDecoders(t *testing.T) {
	f := chat.Frame{Type: chat.TypeError, Data: []byte(`{"message":"nope"}`)}
	assert.Equal(t, "nope", f.ErrorText())

	_, err := f.Chat()
	assert.Error(t, err)
	_, err = f.Match()
	assert.Error(t, err)
}
