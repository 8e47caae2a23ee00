// internal/matchstore/accounts.go
// Password login and token issuing for the reference store

package matchstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/turumi/turumi-match/internal/auth"
	"github.com/turumi/turumi-match/internal/common/utils"
)

const tokenIssuer = "turumi-matchstore"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = auth.ErrTokenExpired
)

// AccountsConfig holds token and hashing settings.
type AccountsConfig struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	BCryptCost         int
}

// Accounts registers users, checks passwords and issues tokens.
type Accounts struct {
	users  UserStore
	cfg    AccountsConfig
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // session or token id -> forget after
}

func NewAccounts(users UserStore, cfg AccountsConfig, logger *zap.Logger) *Accounts {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BCryptCost == 0 {
		cfg.BCryptCost = bcrypt.DefaultCost
	}
	return &Accounts{
		users:   users,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		revoked: make(map[string]time.Time),
	}
}

func (a *Accounts) Register(ctx context.Context, req *RegisterRequest) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), a.cfg.BCryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userType := req.UserType
	if userType == "" {
		userType = UserWithoutHousing
	}
	images := pq.StringArray{}
	if len(req.Images) > 0 {
		images = req.Images
	}

	u := &User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		Name:         req.Name,
		Age:          req.Age,
		Gender:       req.Gender,
		UserType:     userType,
		Images:       images,
	}
	if err := a.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	a.logger.Info("user registered", zap.Int64("user_id", u.ID))
	return u, nil
}

func (a *Accounts) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	u, err := a.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrUserNotFound) {
		loginsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		loginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		loginsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrInvalidCredentials
	}

	tokens, err := a.issue(u, uuid.NewString(), true)
	if err != nil {
		loginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	loginsTotal.WithLabelValues("ok").Inc()
	return &AuthResponse{User: u, Tokens: tokens}, nil
}

// Refresh exchanges a refresh token for a new access token of the same
// session.
func (a *Accounts) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	claims, err := a.parse(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.Type != "refresh" {
		return nil, ErrInvalidToken
	}

	u, err := a.users.GetUser(ctx, claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return a.issue(u, claims.SessionID, false)
}

// Logout ends the session the token belongs to. Every access and refresh
// token of that login is rejected until the refresh token would have expired.
func (a *Accounts) Logout(_ context.Context, token string) error {
	claims, err := a.parse(token)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.revoked[revocationKey(claims)] = a.now().Add(a.cfg.RefreshTokenExpiry)
	a.sweepLocked()

	a.logger.Info("session revoked", zap.Int64("user_id", claims.UserID), zap.String("type", claims.Type))
	return nil
}

// ValidateToken checks signature, expiry and revocation.
func (a *Accounts) ValidateToken(_ context.Context, token string) (*utils.JWTClaims, error) {
	return a.parse(token)
}

func (a *Accounts) parse(token string) (*utils.JWTClaims, error) {
	claims, err := utils.ValidateJWT(token, a.cfg.JWTSecret)
	if utils.IsTokenExpired(err) {
		return nil, ErrTokenExpired
	}
	if err != nil {
		return nil, ErrInvalidToken
	}

	a.mu.Lock()
	_, revoked := a.revoked[revocationKey(claims)]
	a.mu.Unlock()
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// revocationKey is the session id; tokens from other issuers fall back to
// their jti.
func revocationKey(claims *utils.JWTClaims) string {
	if claims.SessionID != "" {
		return "sid:" + claims.SessionID
	}
	return "jti:" + claims.ID
}

func (a *Accounts) issue(u *User, sessionID string, withRefresh bool) (*Tokens, error) {
	now := a.now()
	access, err := utils.GenerateJWT(&utils.JWTClaims{
		UserID:    u.ID,
		Email:     u.Email,
		Type:      "access",
		ExpiresAt: now.Add(a.cfg.AccessTokenExpiry).Unix(),
		IssuedAt:  now.Unix(),
		Issuer:    tokenIssuer,
		ID:        uuid.NewString(),
		SessionID: sessionID,
	}, a.cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	tokens := &Tokens{AccessToken: access, ExpiresIn: int(a.cfg.AccessTokenExpiry.Seconds())}
	if !withRefresh {
		return tokens, nil
	}

	tokens.RefreshToken, err = utils.GenerateJWT(&utils.JWTClaims{
		UserID:    u.ID,
		Email:     u.Email,
		Type:      "refresh",
		ExpiresAt: now.Add(a.cfg.RefreshTokenExpiry).Unix(),
		IssuedAt:  now.Unix(),
		Issuer:    tokenIssuer,
		ID:        uuid.NewString(),
		SessionID: sessionID,
	}, a.cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (a *Accounts) sweepLocked() {
	now := a.now()
	for key, exp := range a.revoked {
		if now.After(exp) {
			delete(a.revoked, key)
		}
	}
}
