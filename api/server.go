/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for chat bridges and dashboards

ROUTE GROUPS:
  /api/rides/*          Ride registration, amendment, queries
  /api/achievements/*   Catalogue, refresh, manual grants
  /api/riders/*         Per-rider achievements and cost summaries
  /api/analytics/*      Balances, monopolies, divisibility scores

SECURITY NOTE:
  Caller identity comes from the X-Rider header; the deployment in front of
  this server (chat bridge, reverse proxy) is responsible for authenticating
  it. Admin checks happen per handler.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", riderHeader},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Ride routes
		r.Route("/rides", func(r chi.Router) {
			r.Get("/", h.QueryRides)
			r.Post("/", h.RegisterRide)
			r.Patch("/latest", h.AmendLatestRide)
			r.Get("/{id}", h.GetRide)
			r.Patch("/{id}", h.AmendRide)
			r.Delete("/{id}", h.DeleteRide)
		})

		// Achievement routes
		r.Route("/achievements", func(r chi.Router) {
			r.Get("/", h.ListAchievements)
			r.Post("/refresh", h.RefreshAchievements)
			r.Post("/{id}/grants", h.GrantAchievement)
			r.Delete("/{id}/grants/{rider}", h.RevokeAchievement)
		})

		// Per-rider routes
		r.Route("/riders/{rider}", func(r chi.Router) {
			r.Get("/achievements", h.GetRiderAchievements)
			r.Get("/vehicles", h.GetRiderVehicles)
			r.Get("/cost", h.GetRiderCost)
		})

		// Analytics routes
		r.Route("/analytics", func(r chi.Router) {
			r.Get("/balances", h.GetBalances)
			r.Get("/monopolies", h.GetMonopolies)
			r.Get("/scores", h.GetScores)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Ride Ledger</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Ride Ledger API</h1>
<ul>
<li><a href="/api/rides">/api/rides</a> - Query rides</li>
<li><a href="/api/achievements">/api/achievements</a> - Achievement catalogue</li>
<li><a href="/api/analytics/balances">/api/analytics/balances</a> - Takeover balances</li>
<li><a href="/api/analytics/monopolies">/api/analytics/monopolies</a> - Held fixed couplings</li>
<li><a href="/api/analytics/scores">/api/analytics/scores</a> - Divisibility scores</li>
</ul>
</body>
</html>`))
	})

	return r
}
