package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apihandler "github.com/maraichr/reviewlens/internal/api/handler"
	apimw "github.com/maraichr/reviewlens/internal/api/middleware"
)

// RouterDeps holds optional dependencies for the router.
type RouterDeps struct {
	// Producer enables POST /api/v1/review-jobs.
	Producer apihandler.Enqueuer
	Checks   []apihandler.Check
}

// NewRouter builds the ops API served next to the queue consumers.
func NewRouter(logger *slog.Logger, deps *RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	if deps == nil {
		deps = &RouterDeps{}
	}

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(apimw.Logger(logger))
	r.Use(chimw.Recoverer)

	// Health checks
	health := apihandler.NewHealthHandler(logger, deps.Checks...)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// API v1
	if deps.Producer != nil {
		r.Route("/api/v1", func(r chi.Router) {
			jobs := apihandler.NewReviewJobHandler(logger, deps.Producer)
			r.Post("/review-jobs", jobs.Create)
		})
	}

	return r
}
