// internal/ops/router.go
// Health and metrics endpoints served on the ops port

package ops

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/turumi/turumi-match/internal/common/utils"
)

const checkTimeout = 3 * time.Second

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

// Breaker is anything exposing a circuit breaker state.
type Breaker interface {
	State() string
}

type Options struct {
	Service string
	Breaker Breaker
	Checks  map[string]Check
	Logger  *zap.Logger
}

type healthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Breaker string            `json:"breaker,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
	Time    time.Time         `json:"time"`
}

// NewRouter builds the ops router with /health and /metrics.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", healthHandler(opts, logger))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func healthHandler(opts Options, logger *zap.Logger) http.HandlerFunc {
	names := make([]string, 0, len(opts.Checks))
	for name := range opts.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "healthy", Service: opts.Service, Time: time.Now().UTC()}
		status := http.StatusOK

		if opts.Breaker != nil {
			resp.Breaker = opts.Breaker.State()
			// An open breaker means the remote API is failing; we are degraded
			// but still serving.
			if resp.Breaker == "open" {
				resp.Status = "degraded"
			}
		}

		if len(names) > 0 {
			resp.Checks = make(map[string]string, len(names))
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			for _, name := range names {
				if err := opts.Checks[name](ctx); err != nil {
					logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
					resp.Checks[name] = err.Error()
					resp.Status = "unhealthy"
					status = http.StatusServiceUnavailable
					continue
				}
				resp.Checks[name] = "ok"
			}
		}

		utils.RespondWithJSON(w, status, resp)
	}
}
