package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Generation is the only endpoint behind the rate limiter
		r.With(apiHandler.RateLimitMiddleware).Post("/generate", apiHandler.GenerateTitlesHandler)

		// Saved title routes
		r.Route("/titles", func(r chi.Router) {
			r.Get("/", apiHandler.ListTitlesHandler)
			r.Post("/", apiHandler.SaveTitleHandler)
			r.Route("/{titleID}", func(r chi.Router) {
				r.Get("/", apiHandler.GetTitleHandler)
				r.Put("/", apiHandler.UpdateTitleHandler)
				r.Delete("/", apiHandler.DeleteTitleHandler)
			})
		})
	})

	return r
}
