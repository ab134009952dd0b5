// Package app wires configuration, stores and handlers into a runnable server.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/ai-translator/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-translator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-translator/internal/config"
)

// ParseOrigins splits a comma-separated origin list. Empty means ["*"].
func ParseOrigins(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id", "X-Provider-Key"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", httpserver.HealthzHandler())
	r.Get("/readyz", srv.ReadyzHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		// Streaming stays outside the timeout handler, which cannot flush.
		v1.Get("/events", srv.EventsHandler())

		v1.Group(func(api chi.Router) {
			api.Use(httpserver.TimeoutMiddleware(cfg.HTTPWriteTimeout))
			api.Get("/providers", srv.ListProvidersHandler())
			api.Get("/providers/{provider}", srv.GetProviderHandler())
			api.Get("/providers/{provider}/models", srv.ListModelsHandler())
			api.Get("/scopes/{scope}/selection", srv.SelectionHandler())

			api.Group(func(tr chi.Router) {
				tr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, time.Minute))
				tr.Post("/scopes/{scope}/translate", srv.TranslateHandler())
			})

			// Settings mutations need admin credentials when configured.
			api.Group(func(wr chi.Router) {
				wr.Use(httprate.LimitByIP(cfg.RateLimitPerMin, time.Minute))
				wr.Use(httpserver.AdminGuard(cfg))
				wr.Put("/providers/{provider}/active", srv.ToggleProviderHandler())
				wr.Post("/providers/{provider}/key", srv.VerifyKeyHandler())
				wr.Delete("/providers/{provider}/key", srv.ClearKeyHandler())
				wr.Post("/providers/{provider}/verified-models", srv.AddVerifiedModelHandler())
				wr.Post("/providers/{provider}/verified-models/reorder", srv.ReorderVerifiedModelHandler())
				wr.Delete("/providers/{provider}/verified-models/{index}", srv.RemoveVerifiedModelHandler())
				wr.Put("/scopes/{scope}/provider", srv.SelectProviderHandler())
				wr.Put("/scopes/{scope}/model", srv.SelectModelHandler())
				wr.Post("/scopes/{scope}/reset", srv.ResetScopeHandler())
			})
		})
	})

	return httpserver.SecurityHeaders(r)
}
