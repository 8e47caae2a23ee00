// Package identity supplies the caller's user id and bearer credential.
// Identities are passed explicitly into every remote call; nothing in the
// match core reads them from ambient storage.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/turumi/turumi-match/internal/common/utils"
)

var (
	ErrNoSession      = errors.New("no active session")
	ErrSessionExpired = errors.New("session expired")
)

// Identity is the authenticated caller.
type Identity struct {
	UserID      int64  `json:"userId"`
	BearerToken string `json:"accessToken"`
}

// Valid reports whether both the user id and the token are present.
func (i Identity) Valid() bool {
	return i.UserID > 0 && strings.TrimSpace(i.BearerToken) != ""
}

// Check returns ErrNoSession for an incomplete identity and
// ErrSessionExpired when the token is a JWT whose exp has passed.
// Opaque tokens are accepted as-is; the server is the final judge.
func (i Identity) Check(now time.Time) error {
	if !i.Valid() {
		return ErrNoSession
	}
	claims, err := utils.PeekJWT(i.BearerToken)
	if err != nil {
		return nil
	}
	if claims.Expired(now) {
		return ErrSessionExpired
	}
	return nil
}

// Session is what login returns and what a SessionStore persists.
type Session struct {
	Identity
	RefreshToken string    `json:"refreshToken,omitempty"`
	Email        string    `json:"email,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Provider resolves the current identity.
type Provider interface {
	Current(ctx context.Context) (Identity, error)
}

// Static is a Provider that always returns the same identity.
type Static Identity

func (s Static) Current(context.Context) (Identity, error) {
	id := Identity(s)
	if !id.Valid() {
		return Identity{}, ErrNoSession
	}
	return id, nil
}

// SessionStore persists the local session between runs.
type SessionStore interface {
	Save(ctx context.Context, s *Session) error
	Load(ctx context.Context) (*Session, error)
	Delete(ctx context.Context) error
}

// StoreProvider reads the identity from a SessionStore on every call.
type StoreProvider struct {
	Store SessionStore
}

func (p StoreProvider) Current(ctx context.Context) (Identity, error) {
	s, err := p.Store.Load(ctx)
	if err != nil {
		return Identity{}, err
	}
	if !s.Valid() {
		return Identity{}, ErrNoSession
	}
	return s.Identity, nil
}
