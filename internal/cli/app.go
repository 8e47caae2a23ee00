// internal/cli/app.go
// Shared dependencies for the command line client

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/turumi/turumi-match/internal/auth"
	"github.com/turumi/turumi-match/internal/common/database"
	"github.com/turumi/turumi-match/internal/common/httpclient"
	"github.com/turumi/turumi-match/internal/config"
	"github.com/turumi/turumi-match/internal/housing"
	"github.com/turumi/turumi-match/internal/identity"
	"github.com/turumi/turumi-match/internal/match"
	"github.com/turumi/turumi-match/internal/ops"
	"github.com/turumi/turumi-match/internal/profile"
)

// App holds what every command needs. Fields are exported so tests can wire
// their own doubles.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	HTTP     httpclient.Doer
	Breaker  ops.Breaker
	Sessions identity.SessionStore

	redis *redis.Client
}

// NewApp builds the production dependencies from cfg. Sessions live in Redis
// when REDIS_URL is set and in environment variables otherwise; out receives
// the export lines in the latter case.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, out io.Writer) (*App, error) {
	breaker := httpclient.BreakerConfig{
		Name:             "turumi-api",
		MaxRequests:      cfg.BreakerMaxRequests,
		Interval:         cfg.BreakerInterval,
		Timeout:          cfg.BreakerTimeout,
		FailureThreshold: cfg.BreakerFailureThreshold,
		MinRequests:      cfg.BreakerMinRequests,
	}
	client := httpclient.New(cfg.RequestTimeout, breaker, logger)

	app := &App{
		Config:  cfg,
		Logger:  logger,
		HTTP:    client,
		Breaker: client,
	}

	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClientFromURL(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.redis = rdb
		app.Sessions = identity.NewRedisSessionStore(rdb, cfg.SessionProfile, cfg.SessionTTL)
	} else {
		app.Sessions = NewEnvSessionStore(cfg, out)
	}

	return app, nil
}

// Close releases the Redis connection, if any.
func (a *App) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}

func (a *App) provider() identity.Provider {
	return identity.StoreProvider{Store: a.Sessions}
}

func (a *App) current(ctx context.Context) (identity.Identity, error) {
	id, err := a.provider().Current(ctx)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("not logged in, run `turumi login`: %w", err)
	}
	return id, nil
}

func (a *App) matches() match.Repository {
	return match.NewHTTPRepository(a.Config.APIBaseURL, a.HTTP, a.Logger)
}

func (a *App) accounts() *auth.Client {
	return auth.NewClient(a.Config.APIBaseURL, a.HTTP, a.Sessions, a.Logger)
}

func (a *App) profiles() *profile.Client {
	return profile.NewClient(a.Config.APIBaseURL, a.HTTP, a.Logger)
}

func (a *App) listings() *housing.Client {
	return housing.NewClient(a.Config.APIBaseURL, a.HTTP, a.Logger)
}
