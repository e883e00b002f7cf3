package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/climaterisk/internal/api/middleware"
	"github.com/kiranshivaraju/climaterisk/internal/api/response"
	"github.com/kiranshivaraju/climaterisk/internal/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies holds all handler and middleware dependencies for the router.
// A nil handler is served as 501.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit
	Metrics   *observability.Metrics
	Logger    *slog.Logger

	// MetricsHandler defaults to promhttp.Handler().
	MetricsHandler http.Handler

	HealthHandler http.HandlerFunc

	CreateSite http.HandlerFunc
	GetSite    http.HandlerFunc

	StartAnalysis http.HandlerFunc
	JobStatus     http.HandlerFunc
	Callback      http.HandlerFunc

	RiskScores    http.HandlerFunc
	AAL           http.HandlerFunc
	HazardSummary http.HandlerFunc

	HazardTypes http.HandlerFunc
	SiteTypes   http.HandlerFunc

	StartBatch    http.HandlerFunc
	BatchProgress http.HandlerFunc
	BatchResult   http.HandlerFunc
	BatchGeoJSON  http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(mw.Logger(deps.Logger))
	r.Use(mw.Recovery)
	if deps.Metrics != nil {
		r.Use(mw.Metrics(deps.Metrics))
	}

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Get("/api/v1/sites/{siteID}", orNotImplemented(deps.GetSite))
		r.Get("/api/v1/analysis/jobs/{jobID}", orNotImplemented(deps.JobStatus))
		r.Get("/api/v1/sites/{siteID}/risk-scores", orNotImplemented(deps.RiskScores))
		r.Get("/api/v1/sites/{siteID}/aal", orNotImplemented(deps.AAL))
		r.Get("/api/v1/sites/{siteID}/hazard-summary", orNotImplemented(deps.HazardSummary))

		r.Get("/api/v1/meta/hazard-types", orNotImplemented(deps.HazardTypes))
		r.Get("/api/v1/meta/site-types", orNotImplemented(deps.SiteTypes))

		r.Get("/api/v1/recommendations/batches/{batchID}/progress", orNotImplemented(deps.BatchProgress))
		r.Get("/api/v1/recommendations/batches/{batchID}/result", orNotImplemented(deps.BatchResult))
		r.Get("/api/v1/recommendations/batches/{batchID}/result.geojson", orNotImplemented(deps.BatchGeoJSON))

		// Mutations need the write scope.
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(mw.ScopeWrite))

			r.Post("/api/v1/sites", orNotImplemented(deps.CreateSite))
			r.Post("/api/v1/sites/{siteID}/analysis", orNotImplemented(deps.StartAnalysis))
			r.Post("/api/v1/recommendations/batches", orNotImplemented(deps.StartBatch))
		})

		// Status pushes from the analysis service.
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(mw.ScopeUpstream))

			r.Post("/api/v1/analysis/callbacks", orNotImplemented(deps.Callback))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
