// Package httpserver provides the HTTP/HTTPS server for SigMesh.
package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/sigmesh/internal/server/httpserver/handler"
	"github.com/yndnr/sigmesh/internal/telemetry/metric"
)

// DefaultRateBurst is the per-IP burst when RouterConfig.RateBurst is zero.
const DefaultRateBurst = 20

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Handler serves the API routes.
	Handler *handler.Handler

	// Metrics records request metrics and serves /metrics. Optional.
	Metrics *metric.Registry

	// Logger for request logging.
	Logger *slog.Logger

	// RateLimit is the per-IP rate limit (requests/second). Zero disables it.
	RateLimit float64

	// RateBurst is the per-IP burst size.
	RateBurst int

	// EnableAudit enables audit logging for all requests.
	EnableAudit bool

	// MetricsToken, if set, is required as a bearer token on /metrics.
	MetricsToken string

	// MetricsAllowList restricts /metrics to these IPs or CIDRs.
	MetricsAllowList []string

	// TrustProxy honours X-Forwarded-For and X-Real-IP.
	TrustProxy bool
}

// DefaultRouterConfig returns default router configuration.
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		RateLimit:   50,
		RateBurst:   DefaultRateBurst,
		EnableAudit: true,
	}
}

// NewRouter creates the HTTP router with all routes and middleware.
//
// Every API route runs RequestID, Recover, RateLimit, Audit and Metrics,
// outermost first. Middleware is attached per pattern on the top-level mux
// so the matched pattern is visible to Audit and Metrics.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	middlewares := []Middleware{RequestID(), Recover(log)}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = DefaultRateBurst
		}
		middlewares = append(middlewares, RateLimit(cfg.RateLimit, burst, cfg.TrustProxy))
	}
	if cfg.EnableAudit {
		middlewares = append(middlewares, Audit(log, cfg.TrustProxy))
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, Metrics(cfg.Metrics))
	}

	mux := http.NewServeMux()

	api := Chain(cfg.Handler, middlewares...)
	for _, pattern := range cfg.Handler.Patterns() {
		mux.Handle(pattern, api)
	}

	if cfg.Metrics != nil {
		metrics := Chain(cfg.Metrics.Handler(),
			RequestID(),
			Recover(log),
			NetworkACL(&NetworkACLConfig{
				AllowList:  cfg.MetricsAllowList,
				TrustProxy: cfg.TrustProxy,
				Logger:     log,
			}),
			MetricsAuth(cfg.MetricsToken),
		)
		mux.Handle("GET /metrics", metrics)
	}

	return mux
}
