// internal/auth/client.go
// Client side of the registration, login, refresh and logout endpoints

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/turumi/turumi-match/internal/common/httpclient"
	"github.com/turumi/turumi-match/internal/common/utils"
	"github.com/turumi/turumi-match/internal/identity"
	"github.com/turumi/turumi-match/internal/match"
)

const (
	opRegister = "register"
	opLogin    = "login"
	opRefresh  = "refresh"
	opLogout   = "logout"
)

// User types an account registers as.
const (
	UserWithHousing    = "user_w_housing"
	UserWithoutHousing = "user_wo_housing"
)

// RegisterInput is the body of POST /user.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=100"`
	UserType string `json:"user_type" validate:"required,oneof=user_w_housing user_wo_housing"`
}

// Account is the registered user as the API returns it.
type Account struct {
	ID       int64  `json:"id_user"`
	Email    string `json:"email"`
	UserType string `json:"user_type"`
}

// LoginInput is validated before anything is sent.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	User struct {
		ID       int64  `json:"id_user"`
		LegacyID int64  `json:"id"`
		Email    string `json:"email"`
	} `json:"user"`
	Tokens struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	} `json:"tokens"`
}

type refreshResponse struct {
	Tokens struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	} `json:"tokens"`
}

// Client authenticates against the remote API and keeps the resulting
// session in a SessionStore.
type Client struct {
	baseURL string
	http    httpclient.Doer
	store   identity.SessionStore
	logger  *zap.Logger
	now     func() time.Time
}

func NewClient(baseURL string, doer httpclient.Doer, store identity.SessionStore, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    doer,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	if err := validate(opRegister, in); err != nil {
		return nil, err
	}

	var resp struct {
		User Account `json:"user"`
	}
	if err := c.call(ctx, opRegister, http.MethodPost, "/user", "", in, &resp); err != nil {
		return nil, err
	}
	c.logger.Info("account registered", zap.Int64("user_id", resp.User.ID), zap.String("user_type", resp.User.UserType))
	return &resp.User, nil
}

// Login exchanges credentials for a session and stores it.
func (c *Client) Login(ctx context.Context, in LoginInput) (*identity.Session, error) {
	if err := validate(opLogin, in); err != nil {
		return nil, err
	}

	var resp loginResponse
	if err := c.call(ctx, opLogin, http.MethodPost, "/auth/login", "", in, &resp); err != nil {
		return nil, err
	}

	userID := resp.User.ID
	if userID == 0 {
		userID = resp.User.LegacyID
	}
	sess := &identity.Session{
		Identity:     identity.Identity{UserID: userID, BearerToken: resp.Tokens.AccessToken},
		RefreshToken: resp.Tokens.RefreshToken,
		Email:        resp.User.Email,
		CreatedAt:    c.now().UTC(),
	}
	if !sess.Valid() {
		return nil, &match.RequestError{Kind: match.ErrTransport, Op: opLogin, Message: "login response without user id or access token"}
	}

	if err := c.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	c.logger.Info("logged in", zap.Int64("user_id", sess.UserID))
	return sess, nil
}

// Refresh replaces the stored access token using the stored refresh token.
func (c *Client) Refresh(ctx context.Context) (*identity.Session, error) {
	sess, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if sess.RefreshToken == "" {
		return nil, &match.RequestError{Kind: match.ErrAuth, Op: opRefresh, Err: identity.ErrNoSession}
	}

	var resp refreshResponse
	if err := c.call(ctx, opRefresh, http.MethodGet, "/auth/refresh", sess.RefreshToken, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Tokens.AccessToken == "" {
		return nil, &match.RequestError{Kind: match.ErrTransport, Op: opRefresh, Message: "refresh response without access token"}
	}

	sess.BearerToken = resp.Tokens.AccessToken
	if resp.Tokens.RefreshToken != "" {
		sess.RefreshToken = resp.Tokens.RefreshToken
	}
	if err := c.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	c.logger.Info("access token refreshed", zap.Int64("user_id", sess.UserID))
	return sess, nil
}

// Logout ends the session remotely, which also invalidates its refresh
// token, and always drops the local session. The remote error, if any, is returned.
func (c *Client) Logout(ctx context.Context) error {
	sess, err := c.store.Load(ctx)
	if errors.Is(err, identity.ErrNoSession) {
		return nil
	}
	if err != nil {
		return err
	}

	remoteErr := c.call(ctx, opLogout, http.MethodPost, "/auth/logout", sess.BearerToken, nil, nil)
	if err := c.store.Delete(ctx); err != nil {
		return err
	}
	if remoteErr != nil {
		c.logger.Warn("remote logout failed", zap.Error(remoteErr))
	}
	return remoteErr
}

// validate reports struct tag failures as validation request errors.
func validate(op string, in interface{}) error {
	err := utils.ValidateStruct(in)
	var fe *utils.FieldError
	if errors.As(err, &fe) {
		return &match.RequestError{Kind: match.ErrValidation, Op: op, Field: fe.Field, Message: fe.Message}
	}
	return err
}

func (c *Client) call(ctx context.Context, op, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &match.RequestError{Kind: match.ErrTransport, Op: op, Err: err}
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &match.RequestError{Kind: match.ErrTransport, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &match.RequestError{Kind: match.ErrTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if err := match.ClassifyResponse(op, resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &match.RequestError{Kind: match.ErrTransport, Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
