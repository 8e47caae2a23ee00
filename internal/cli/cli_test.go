package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/turumi/turumi-match/internal/auth"
	"github.com/turumi/turumi-match/internal/config"
	"github.com/turumi/turumi-match/internal/housing"
	"github.com/turumi/turumi-match/internal/match"
	"github.com/turumi/turumi-match/internal/matchstore"
	"github.com/turumi/turumi-match/internal/profile"
)

type server struct {
	srv     *httptest.Server
	service *matchstore.Service
}

func newServer(t *testing.T) *server {
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
	for _, email := range []string{"ana@example.com", "ben@example.com"} {
		_, err := accounts.Register(ctx, &matchstore.RegisterRequest{Email: email, Password: "password123", Name: strings.Split(email, "@")[0]})
		require.NoError(t, err)
	}

	router := mux.NewRouter()
	matchstore.RegisterRoutes(router, matchstore.NewHandler(service, accounts, false, nil), hub, auth.NewMiddleware(accounts))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &server{srv: srv, service: service}
}

// safeBuffer is written by the watcher goroutine while the test reads it.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestApp(s *server, exports io.Writer) *App {
	cfg := &config.Config{
		APIBaseURL:    s.srv.URL,
		WatchInterval: 50 * time.Millisecond,
	}
	return &App{
		Config:   cfg,
		HTTP:     http.DefaultClient,
		Sessions: NewEnvSessionStore(cfg, exports),
	}
}

func run(ctx context.Context, app *App, out io.Writer, args ...string) error {
	cmd := NewRootCommand(app)
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func runText(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), app, &out, args...)
	return out.String(), err
}

func login(t *testing.T, s *server, email string) (*App, string) {
	t.Helper()
	var exports bytes.Buffer
	app := newTestApp(s, &exports)
	_, err := runText(t, app, "login", "--email", email, "--password", "password123")
	require.NoError(t, err)
	return app, exports.String()
}

func TestLoginPrintsExports(t *testing.T) {
	s := newServer(t)
	_, exports := login(t, s, "ana@example.com")

	assert.Contains(t, exports, "export TURUMI_USER_ID=1\n")
	assert.Contains(t, exports, "export TURUMI_TOKEN=")
	assert.Contains(t, exports, "export TURUMI_REFRESH_TOKEN=")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newServer(t)
	app := newTestApp(s, io.Discard)

	_, err := runText(t, app, "login", "--email", "ana@example.com", "--password", "nope")
	assert.ErrorIs(t, err, match.ErrAuth)

	_, err = runText(t, app, "login", "--email", "ana@example.com")
	assert.Error(t, err, "password flag is required")
}

func TestLikeFlow(t *testing.T) {
	s := newServer(t)
	ana, _ := login(t, s, "ana@example.com")
	ben, _ := login(t, s, "ben@example.com")

	out, err := runText(t, ana, "like", "2")
	require.NoError(t, err)
	assert.Equal(t, "Like sent.\n", out)

	out, err = runText(t, ana, "like", "2")
	require.NoError(t, err)
	assert.Equal(t, "You already liked this person.\n", out)

	out, err = runText(t, ben, "like", "1")
	require.NoError(t, err)
	assert.Equal(t, "It's a match!\n", out)

	out, err = runText(t, ana, "like", "2", "--format", "json")
	require.NoError(t, err)
	var res likeResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, match.AlreadyExists.String(), res.Outcome)
	require.NotNil(t, res.Record)
	assert.Equal(t, match.StatusMatched, res.Record.Status)
}

func TestLikeFailurePrintsRetryMessage(t *testing.T) {
	s := newServer(t)
	ana, _ := login(t, s, "ana@example.com")

	out, err := runText(t, ana, "like", "1")
	assert.ErrorIs(t, err, match.ErrInvalidLike)
	assert.Equal(t, "Something went wrong. Please try again.\n", out)

	_, err = runText(t, ana, "like", "abc")
	assert.Error(t, err)
}

func TestCommandsRequireSession(t *testing.T) {
	s := newServer(t)
	app := newTestApp(s, io.Discard)

	for _, args := range [][]string{{"like", "2"}, {"matches"}, {"feed"}, {"chat", "2"}, {"profile"}, {"housing", "list"}} {
		_, err := runText(t, app, args...)
		require.Error(t, err, args[0])
		assert.Contains(t, err.Error(), "not logged in", args[0])
	}
}

func TestMatchesAndFeed(t *testing.T) {
	s := newServer(t)
	ana, _ := login(t, s, "ana@example.com")

	out, err := runText(t, ana, "feed")
	require.NoError(t, err)
	assert.Contains(t, out, "ben")

	_, err = runText(t, ana, "like", "2")
	require.NoError(t, err)

	out, err = runText(t, ana, "matches")
	require.NoError(t, err)
	assert.Contains(t, out, "outgoing")
	assert.Contains(t, out, "Pending")

	out, err = runText(t, ana, "matches", "--format", "json")
	require.NoError(t, err)
	var records []match.Record
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.Equal(t, int64(2), records[0].ToUser)

	_, err = runText(t, ana, "matches", "--format", "yaml")
	assert.Error(t, err)
}

func TestLogout(t *testing.T) {
	s := newServer(t)
	ana, _ := login(t, s, "ana@example.com")

	_, err := runText(t, ana, "logout")
	require.NoError(t, err)

	_, err = runText(t, ana, "matches")
	assert.Error(t, err)
}

func TestWatchReportsIncomingLike(t *testing.T) {
	s := newServer(t)
	ana, _ := login(t, s, "ana@example.com")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out := &safeBuffer{}
	done := make(chan error, 1)
	go func() { done <- run(ctx, ana, out, "watch", "--ops=false") }()

	// Let the first poll record its baseline.
	time.Sleep(150 * time.Millisecond)
	_, err := s.service.Like(context.Background(), 2, 1)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "User 2 likes you")
	}, time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestChatSendsLinesAndShowsReplies(t *testing.T) {
	s := newServer(t)
	ana, _ := login(t, s, "ana@example.com")

	m, err := s.service.Like(context.Background(), 1, 2)
	require.NoError(t, err)
	_, err = s.service.Confirm(context.Background(), 2, m.ID)
	require.NoError(t, err)

	cmd := NewRootCommand(ana)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader("hello ben\n\n"))
	cmd.SetArgs([]string{"chat", "2"})

	assert.NoError(t, cmd.ExecuteContext(context.Background()))
}

// executeCaptured runs args through Execute and returns stdout and stderr.
func executeCaptured(app *App, args ...string) (string, string, error) {
	var out, errOut bytes.Buffer
	cmd := NewRootCommand(app)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := Execute(context.Background(), cmd, app.Logger)
	return out.String(), errOut.String(), err
}

func TestFailuresShowOnlyRetryPrompt(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"jwt expired"}`))
	}))
	t.Cleanup(api.Close)

	core, logs := observer.New(zapcore.DebugLevel)
	cfg := &config.Config{APIBaseURL: api.URL, UserID: 1, Token: "opaque"}
	app := &App{
		Config:   cfg,
		Logger:   zap.New(core),
		HTTP:     http.DefaultClient,
		Sessions: NewEnvSessionStore(cfg, io.Discard),
	}
	const prompt = "Something went wrong. Please try again."

	out, errOut, err := executeCaptured(app, "like", "2")
	assert.ErrorIs(t, err, match.ErrAuth)
	assert.Equal(t, prompt+"\n", out)
	assert.Empty(t, errOut, "like already printed its message")

	out, errOut, err = executeCaptured(app, "like", "2", "--format", "json")
	assert.ErrorIs(t, err, match.ErrAuth)
	assert.Empty(t, errOut)
	var res map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, map[string]interface{}{"message": prompt}, res)

	out, errOut, err = executeCaptured(app, "matches")
	assert.ErrorIs(t, err, match.ErrAuth)
	assert.Empty(t, out)
	assert.Equal(t, "Error: "+prompt+"\n", errOut)

	for _, text := range []string{out, errOut} {
		assert.NotContains(t, text, "401")
		assert.NotContains(t, text, "jwt expired")
	}

	// The detail is kept for the log.
	entries := logs.FilterMessage("command failed").All()
	require.Len(t, entries, 3)
	assert.Contains(t, fmt.Sprint(entries[2].ContextMap()["error"]), "status 401")
}

func TestLocalErrorsAreShownAsIs(t *testing.T) {
	s := newServer(t)
	app := newTestApp(s, io.Discard)

	_, errOut, err := executeCaptured(app, "matches")
	require.Error(t, err)
	assert.Contains(t, errOut, "Error: not logged in")
}

func TestRegisterAndHousingCommands(t *testing.T) {
	s := newServer(t)
	app := newTestApp(s, io.Discard)

	_, err := runText(t, app, "register", "--email", "carla@example.com", "--password", "password123", "--housing")
	require.NoError(t, err)
	_, err = runText(t, app, "register", "--email", "carla@example.com", "--password", "password123")
	assert.ErrorIs(t, err, match.ErrConflict)
	_, err = runText(t, app, "register", "--email", "dan@example.com", "--password", "short")
	assert.ErrorIs(t, err, match.ErrValidation)

	carla, _ := login(t, s, "carla@example.com")
	out, err := runText(t, carla, "housing", "create", "--address", "Av. Siempre Viva 742", "--rent", "250000", "--size", "60", "--pets")
	require.NoError(t, err)
	assert.Equal(t, "Housing 1 listed.\n", out)

	ana, _ := login(t, s, "ana@example.com")
	out, err = runText(t, ana, "housing", "list", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Av. Siempre Viva 742")
	assert.Contains(t, out, "yes")

	out, err = runText(t, ana, "housing", "get", "1", "--format", "json")
	require.NoError(t, err)
	var l housing.Listing
	require.NoError(t, json.Unmarshal([]byte(out), &l))
	assert.Equal(t, int64(3), l.OwnerID)
	assert.Equal(t, 1, l.AvailableRoom)
	assert.True(t, l.PetsAllowed)

	out, err = runText(t, ana, "housing", "list")
	require.NoError(t, err)
	assert.Equal(t, "No listings.\n", out)

	_, err = runText(t, ana, "housing", "create", "--address", "Calle 2", "--rent", "1", "--size", "1")
	assert.ErrorIs(t, err, match.ErrAuth, "ana registered without housing")

	_, err = runText(t, carla, "housing", "create", "--address", "Calle 2")
	assert.Error(t, err, "rent and size are required")
}

func TestProfileCommands(t *testing.T) {
	s := newServer(t)
	ana, _ := login(t, s, "ana@example.com")

	out, err := runText(t, ana, "profile")
	require.NoError(t, err)
	assert.Contains(t, out, "ana@example.com")

	out, err = runText(t, ana, "profile", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "ben")
	assert.NotContains(t, out, "ben@example.com")

	out, err = runText(t, ana, "profile", "edit", "--name", "Ana", "--age", "30", "--gender", "female", "--phone", "+56 9 1234 5678")
	require.NoError(t, err)
	assert.Contains(t, out, "Ana")
	assert.Contains(t, out, "30")

	out, err = runText(t, ana, "profile", "--format", "json")
	require.NoError(t, err)
	var p profile.Profile
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, "Ana", p.Name)
	assert.Equal(t, 30, p.Age)
	assert.Equal(t, "+56 9 1234 5678", p.PhoneNumber)

	_, err = runText(t, ana, "profile", "edit")
	assert.Error(t, err, "no fields given")
	_, err = runText(t, ana, "profile", "edit", "--age", "12")
	assert.ErrorIs(t, err, match.ErrValidation)
	_, err = runText(t, ana, "profile", "999")
	assert.ErrorIs(t, err, match.ErrNotFound)
}
