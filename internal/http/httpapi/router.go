package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"genvoy/internal/http/handlers"
	"genvoy/internal/metrics"
	"genvoy/internal/middleware"
)

// NewRouter assembles the tool-endpoint surface.
func NewRouter(app *handlers.App, logger zerolog.Logger, ratePerMin int) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimiddleware.RealIP, chimiddleware.Recoverer, middleware.Logger(logger))
	if ratePerMin > 0 {
		r.Use(middleware.RateLimit(ratePerMin, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)
	r.Method(stdhttp.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1/models", func(r chi.Router) {
		r.Get("/", app.ListModels)
		r.Get("/search", app.SearchModels)
		r.Get("/schema", app.GetSchema)
		r.Get("/pricing/estimate", app.EstimateCost)
		r.Get("/recent", app.ListRecent)
	})

	r.Route("/v1/tools", func(r chi.Router) {
		r.Post("/generate", app.Generate)
		r.Post("/generate_batch", app.GenerateBatch)
		r.Post("/generate_compare", app.GenerateCompare)
	})

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Get("/{request_id}/status", app.JobStatus)
		r.Post("/{request_id}/cancel", app.CancelJob)
	})

	return r
}
