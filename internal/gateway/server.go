package gateway

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/engram-dev/engram/internal/security"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(requestMetrics)

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", promhttp.Handler())

	// API endpoints. Auth and rate limiting apply only when configured.
	r.Group(func(r chi.Router) {
		if g.config.RateLimitPerMin > 0 {
			r.Use(rateLimitMiddleware(security.NewRequestLimiter(g.config.RateLimitPerMin)))
		}
		if g.config.Auth.IsConfigured() {
			r.Use(authMiddleware(g.config.Auth))
		}
		r.Route("/api", func(r chi.Router) {
			r.Route("/conversations/{id}", func(r chi.Router) {
				r.Post("/messages", g.handleAppendMessage())
				r.Get("/messages", g.handleRecentMessages())
				r.Get("/board", g.handleGetBoard())
				r.Get("/context", g.handleGetContext())
			})
			r.Post("/search/memory", g.handleSearchMemory())
			r.Post("/search/summaries", g.handleSearchSummaries())
		})
	})

	return r
}

// rateLimitMiddleware rejects requests over the per-client limit with 429.
// Clients are keyed by remote host so one noisy client cannot starve the rest.
func rateLimitMiddleware(limiter *security.RequestLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			if !limiter.Allow(host) {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
