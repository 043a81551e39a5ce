package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/kiranshivaraju/eomhub/internal/api/middleware"
	"github.com/kiranshivaraju/eomhub/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc
	StateHandler  http.HandlerFunc

	RunHandler                  http.HandlerFunc
	CancelHandler               http.HandlerFunc
	ConfirmHandler              http.HandlerFunc
	ResetSavingsHandler         http.HandlerFunc
	SetCategoryHandler          http.HandlerFunc
	SetResultTabHandler         http.HandlerFunc
	ToggleConnectionHelpHandler http.HandlerFunc
	ReconnectHandler            http.HandlerFunc

	// History handlers are nil when no database is configured.
	ListJobsHandler http.HandlerFunc
	GetJobHandler   http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)

		r.Get("/api/v1/state", orNotImplemented(deps.StateHandler))
		r.Get("/api/v1/jobs", orNotImplemented(deps.ListJobsHandler))
		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJobHandler))

		// Intents are rate limited; reads are polled and are not.
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimit.Limit)

			r.Post("/api/v1/tools/{toolID}/run", orNotImplemented(deps.RunHandler))
			r.Post("/api/v1/jobs/current/cancel", orNotImplemented(deps.CancelHandler))
			r.Post("/api/v1/confirm", orNotImplemented(deps.ConfirmHandler))
			r.Post("/api/v1/savings/reset", orNotImplemented(deps.ResetSavingsHandler))
			r.Put("/api/v1/category", orNotImplemented(deps.SetCategoryHandler))
			r.Put("/api/v1/result-tab", orNotImplemented(deps.SetResultTabHandler))
			r.Post("/api/v1/connection-help/toggle", orNotImplemented(deps.ToggleConnectionHelpHandler))
			r.Post("/api/v1/reconnect", orNotImplemented(deps.ReconnectHandler))
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
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not available", nil)
	}
}
