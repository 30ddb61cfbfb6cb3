/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. Metrics:    Prometheus request counters and latencies
  5. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/session/*        Login, logout, identity
  /api/stats            Progression state
  /api/live-stats       Completion stats
  /api/quests/*         Catalog and completions
  /api/wallet/*         Wallet view and transfers
  /api/presets/*        Demo presets
  /metrics              Prometheus scrape endpoint
  /                     Endpoint index

SECURITY NOTE:
  No authentication middleware. The server manages one local player and
  is meant to listen on loopback.

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
	"github.com/warp/gami-engine/metrics"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(metrics.InstrumentHandler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
		})

		r.Get("/stats", h.GetStats)
		r.Put("/stats", h.UpdateStats)
		r.Get("/live-stats", h.GetLiveStats)
		r.Put("/live-stats", h.UpdateLiveStats)

		r.Route("/quests", func(r chi.Router) {
			r.Get("/", h.ListQuests)
			r.Post("/{id}/complete", h.CompleteQuest)
			r.Post("/{id}/complete-onchain", h.CompleteQuestOnChain)
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", h.GetWallet)
			r.Post("/refresh", h.RefreshWallet)
			r.Post("/transfer", h.Transfer)
		})

		r.Get("/transactions", h.ListTransactions)
		r.Get("/leaderboard", h.GetLeaderboard)

		r.Route("/presets", func(r chi.Router) {
			r.Get("/", h.ListPresets)
			r.Get("/current", h.GetCurrentPreset)
			r.Post("/load", h.LoadPreset)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Gami Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Gami Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/health">/api/health</a> - Storage and canister status</li>
<li><a href="/api/session">/api/session</a> - Current identity</li>
<li><a href="/api/stats">/api/stats</a> - XP, level, completed quests</li>
<li><a href="/api/quests">/api/quests</a> - Quest catalog</li>
<li><a href="/api/wallet">/api/wallet</a> - Wallet</li>
<li><a href="/api/transactions">/api/transactions</a> - Transaction log</li>
<li><a href="/api/presets">/api/presets</a> - Demo presets</li>
<li><a href="/metrics">/metrics</a> - Prometheus metrics</li>
</ul>
</body>
</html>`))
	})

	return r
}
