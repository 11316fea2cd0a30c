package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rasinmuhammed/matrix-admin/internal/audit"
	"github.com/rasinmuhammed/matrix-admin/internal/config"
	"github.com/rasinmuhammed/matrix-admin/internal/crud"
	"github.com/rasinmuhammed/matrix-admin/internal/observability"
	"github.com/rasinmuhammed/matrix-admin/internal/registry"
	"github.com/rasinmuhammed/matrix-admin/internal/token"
)

// Dependencies bundles everything the router needs. Metrics, Audit, and
// Replay may be nil; the corresponding features are then disabled.
type Dependencies struct {
	Config   *config.Config
	Registry *registry.Registry
	Engine   *crud.Engine
	Signer   *token.Signer
	Replay   token.ReplayGuard
	Audit    *audit.Logger
	Metrics  *observability.Metrics
	Logger   *zap.Logger
	Ready    observability.ReadinessChecks
}

// NewRouter builds the full HTTP surface: health and metrics endpoints
// at the root, and every admin route under the configured prefix.
func NewRouter(deps Dependencies) chi.Router {
	cfg := deps.Config
	h := NewHandlers(cfg, deps.Registry, deps.Engine, deps.Signer,
		deps.Replay, deps.Audit, deps.Metrics, deps.Logger)

	r := chi.NewRouter()
	r.Use(Recovery(deps.Logger))
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	r.Use(CORS(cfg.Server.CORS))
	r.Use(observability.TracingMiddleware)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.MetricsMiddleware)
	}

	r.Get("/healthz", observability.HandleHealth())
	r.Get("/readyz", observability.HandleReady(deps.Ready))
	if cfg.Observability.Metrics.Enabled {
		r.Method(http.MethodGet, cfg.Observability.Metrics.Path, observability.Handler())
	}

	limiter := NewRateLimiter(cfg.RateLimit, deps.Metrics)

	r.Route(cfg.Admin.Prefix, func(ar chi.Router) {
		ar.Use(HandlerTimeout(cfg.Server.HandlerTimeout))
		ar.Use(RequestLogging(deps.Logger))
		if cfg.RateLimit.Enabled {
			ar.Use(limiter.Middleware)
		}

		ar.Get("/", h.HandleDashboard)
		ar.Get("/models", h.HandleModels)
		ar.Get("/fragments", h.HandleFragment)

		ar.Route("/{model}", func(mr chi.Router) {
			mr.Get("/", h.HandleList)
			mr.Get("/export.csv", h.HandleExport)
			mr.Get("/new", h.HandleNewForm)
			mr.Post("/", h.HandleCreate)
			mr.Post("/bulk-delete", h.HandleBulkDelete)
			mr.Get("/{id}", h.HandleDetail)
			mr.Post("/{id}", h.HandleUpdate)
			mr.Delete("/{id}", h.HandleDelete)
		})
	})

	return r
}
