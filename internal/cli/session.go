package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/turumi/turumi-match/internal/config"
	"github.com/turumi/turumi-match/internal/identity"
)

// EnvSessionStore is the fallback SessionStore when no Redis is configured.
// It starts from TURUMI_USER_ID, TURUMI_TOKEN and TURUMI_REFRESH_TOKEN and
// prints shell export lines on Save so the caller can persist them.
type EnvSessionStore struct {
	mu      sync.Mutex
	session *identity.Session
	out     io.Writer
}

func NewEnvSessionStore(cfg *config.Config, out io.Writer) *EnvSessionStore {
	s := &EnvSessionStore{out: out}
	if cfg.UserID > 0 && cfg.Token != "" {
		s.session = &identity.Session{
			Identity:     identity.Identity{UserID: cfg.UserID, BearerToken: cfg.Token},
			RefreshToken: cfg.RefreshToken,
			CreatedAt:    time.Now().UTC(),
		}
	}
	return s
}

func (s *EnvSessionStore) Save(_ context.Context, sess *identity.Session) error {
	if sess == nil || !sess.Valid() {
		return identity.ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *sess
	s.session = &copied
	fmt.Fprintf(s.out, "export TURUMI_USER_ID=%d\n", sess.UserID)
	fmt.Fprintf(s.out, "export TURUMI_TOKEN=%s\n", sess.BearerToken)
	if sess.RefreshToken != "" {
		fmt.Fprintf(s.out, "export TURUMI_REFRESH_TOKEN=%s\n", sess.RefreshToken)
	}
	return nil
}

func (s *EnvSessionStore) Load(context.Context) (*identity.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, identity.ErrNoSession
	}
	copied := *s.session
	return &copied, nil
}

func (s *EnvSessionStore) Delete(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.session = nil
		fmt.Fprintln(s.out, "unset TURUMI_USER_ID TURUMI_TOKEN TURUMI_REFRESH_TOKEN")
	}
	return nil
}
