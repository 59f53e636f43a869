// Package app wires configuration, adapters, and the HTTP router.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/oceralabs/ocera/internal/adapter/httpserver"
	"github.com/oceralabs/ocera/internal/adapter/observability"
	"github.com/oceralabs/ocera/internal/config"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming
// spaces. An empty input means allow all.
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
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
	// The write timeout must exceed the AI call budget (retries included), so
	// the request deadline is the AI timeout plus headroom.
	r.Use(httpserver.TimeoutMiddleware(cfg.AITimeout + 15*time.Second))
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Authenticated API surface, rate limited per client IP.
	r.Group(func(ar chi.Router) {
		ar.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))
		ar.Use(httpserver.RequireAuth(cfg.AuthJWTSecret, srv.Users))

		ar.Post("/v1/ai/optimize", srv.OptimizeHandler())
		ar.Post("/v1/ai/suggest-subreddits", srv.SuggestHandler())

		ar.Post("/v1/reddit/proxy", srv.RedditProxyHandler())
		ar.Post("/v1/reddit/connect", srv.RedditConnectHandler())
		ar.Delete("/v1/reddit/connection", srv.RedditDisconnectHandler())
		ar.Get("/v1/reddit/connection", srv.RedditStatusHandler())

		ar.Post("/v1/billing/checkout", srv.CheckoutHandler())
	})

	// The OAuth callback arrives as a browser redirect carrying only the state
	// token; webhooks authenticate via body signatures.
	r.Get("/v1/reddit/callback", srv.RedditCallbackHandler())
	r.Post("/v1/billing/webhook/{provider}", srv.WebhookHandler())

	r.Get("/healthz", srv.HealthzHandler())
	r.Get("/readyz", srv.ReadyzHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) })

	return httpserver.SecurityHeaders(r)
}
