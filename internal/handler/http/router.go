package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/EcommerceGo/mediapipeline/internal/service"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/health"
	"github.com/utafrali/EcommerceGo/mediapipeline/pkg/middleware"
)

// ServiceName labels metrics and traces of the HTTP edge.
const ServiceName = "media-pipeline"

// RouterOptions holds the optional middleware of the draft API.
type RouterOptions struct {
	// Limiter guards the upload and render endpoints; nil disables it.
	Limiter *middleware.RateLimiter
	// Auth wraps every draft route; nil leaves the API open.
	Auth func(http.Handler) http.Handler
}

// NewRouter creates a chi router with all media pipeline routes registered.
func NewRouter(
	draftService *service.DraftService,
	healthHandler *health.Handler,
	opts RouterOptions,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogging(logger, "/health/live", "/health/ready", "/metrics"))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	drafts := NewDraftHandler(draftService, logger)

	jsonBody := RequireContentType("application/json")

	r.Route("/api/v1/drafts", func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth)
		}

		r.With(jsonBody).Post("/", drafts.CreateDraft)

		r.Route("/{draftID}", func(r chi.Router) {
			r.Use(middleware.DraftScope("draftID", logger))

			r.With(RequireContentType("multipart/form-data"), opts.Limiter.Middleware).Post("/files", drafts.AddFiles)

			r.Group(func(r chi.Router) {
				r.Use(jsonBody)

				r.Get("/", drafts.GetDraft)
				r.Delete("/", drafts.DiscardDraft)
				r.Post("/submit", drafts.Submit)

				r.Get("/assets", drafts.ListAssets)
				r.Delete("/assets/{assetID}", drafts.RemoveAsset)
				r.Put("/assets/{assetID}/role", drafts.SetRole)
				r.Post("/assets/{assetID}/retry", drafts.RetryUpload)
				r.Post("/reorder", drafts.Reorder)
				r.Post("/drag", drafts.Drag)

				r.Get("/editor", drafts.GetEditor)
				r.Post("/editor", drafts.OpenEditor)
				r.Patch("/editor", drafts.UpdateEditor)
				r.With(opts.Limiter.Middleware).Post("/editor/preview", drafts.PreviewEdit)
				r.With(opts.Limiter.Middleware).Post("/editor/commit", drafts.CommitEdit)
				r.Delete("/editor", drafts.CancelEdit)

				r.Get("/previews/{handle}", drafts.ServePreview)
			})
		})
	})

	return r
}
