// cmd/matchstore/main.go
// Reference match store: the REST API and websocket hub the client talks to

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/turumi/turumi-match/internal/auth"
	"github.com/turumi/turumi-match/internal/common/database"
	"github.com/turumi/turumi-match/internal/common/utils"
	"github.com/turumi/turumi-match/internal/config"
	"github.com/turumi/turumi-match/internal/logger"
	"github.com/turumi/turumi-match/internal/matchstore"
	"github.com/turumi/turumi-match/internal/ops"
)

var startTime = time.Now()

func main() {
	// 1. Load environment variables
	envErr := godotenv.Load()

	// 2. Load configuration
	cfg := config.Load()
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting turumi match store", zap.String("environment", cfg.Environment))
	if envErr != nil {
		log.Info("no .env file found, using environment variables")
	}

	// 3. Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatal("configuration validation failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]ops.Check{}

	// 4. Storage: PostgreSQL when configured, memory otherwise
	var (
		store matchstore.Store
		users matchstore.UserStore
	)
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgresDBFromURL(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("failed to connect to PostgreSQL", zap.Error(err))
		}
		defer db.Close()

		pg := matchstore.NewPostgresStore(db)
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal("database migrations failed", zap.Error(err))
		}
		store, users = pg, pg
		checks["database"] = pingDB(db)
		log.Info("using PostgreSQL match store")
	} else {
		mem := matchstore.NewMemoryStore()
		store, users = mem, mem
		log.Warn("DATABASE_URL not set, using in-memory match store")
	}

	// 5. Redis is optional here; it only backs the health report
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClientFromURL(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn("redis unavailable, continuing without it", zap.Error(err))
		} else {
			defer rdb.Close()
			checks["redis"] = pingRedis(rdb)
		}
	}

	// 6. Services
	service := matchstore.NewService(store, users, nil, cfg.PageSize, log)
	hub := matchstore.NewHub(service, log)
	service.SetNotifier(hub)
	go hub.Run(ctx)

	accounts := matchstore.NewAccounts(users, matchstore.AccountsConfig{
		JWTSecret:          cfg.JWTSecret,
		AccessTokenExpiry:  cfg.AccessTokenExpiry,
		RefreshTokenExpiry: cfg.RefreshTokenExpiry,
		BCryptCost:         cfg.BCryptCost,
	}, log)
	handler := matchstore.NewHandler(service, accounts, cfg.StrictPayloads, log)

	// 7. Routes
	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck).Methods(http.MethodGet)
	matchstore.RegisterRoutes(router, handler, hub, auth.NewMiddleware(accounts))
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	opsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.OpsPort),
		Handler: ops.NewRouter(ops.Options{Service: "matchstore", Checks: checks, Logger: log}),
	}

	for _, s := range []*http.Server{srv, opsSrv} {
		s := s
		go func() {
			log.Info("server listening", zap.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal("failed to start server", zap.String("addr", s.Addr), zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	_ = opsSrv.Shutdown(shutdownCtx)
	log.Info("server exited gracefully")
}

func pingDB(db *sqlx.DB) ops.Check {
	return func(ctx context.Context) error { return db.PingContext(ctx) }
}

func pingRedis(rdb *redis.Client) ops.Check {
	return func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
}

// healthCheck returns server health status
func healthCheck(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(startTime).String(),
	})
}

func loggingMiddleware(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			log.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.statusCode),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade through the wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, accesstoken")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
