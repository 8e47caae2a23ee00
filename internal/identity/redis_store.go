package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const sessionKeyPrefix = "turumi:session:"

// RedisSessionStore keeps one session per profile name in Redis.
type RedisSessionStore struct {
	client  *redis.Client
	profile string
	ttl     time.Duration
}

func NewRedisSessionStore(client *redis.Client, profile string, ttl time.Duration) *RedisSessionStore {
	if profile == "" {
		profile = "default"
	}
	return &RedisSessionStore{client: client, profile: profile, ttl: ttl}
}

func (s *RedisSessionStore) key() string {
	return sessionKeyPrefix + s.profile
}

func (s *RedisSessionStore) Save(ctx context.Context, sess *Session) error {
	if sess == nil || !sess.Valid() {
		return ErrNoSession
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Load(ctx context.Context) (*Session, error) {
	raw, err := s.client.Get(ctx, s.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key()).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
