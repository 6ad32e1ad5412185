// Package handler provides the HTTP surface of the leaderboard backend.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"flexboard/internal/auth"
	"flexboard/internal/config"
	"flexboard/internal/metrics"
)

// Dependencies holds everything the router serves.
type Dependencies struct {
	Config   *config.Config
	Rankings RankingReader
	History  HistoryReader
	Archiver Archiver
	Health   HealthChecker
	Verifier *auth.Verifier
	Socket   http.Handler
	Metrics  *metrics.Metrics
}

// NewRouter wires the routes:
//
//	GET  /health
//	GET  /metrics
//	GET  /ws/leaderboard
//	GET  /api/v1/leaderboard/{global|monthly|weekly|regional}
//	GET  /api/v1/leaderboard/{history|me}           (authenticated)
//	GET  /api/v1/leaderboard/{snapshots|resets}
//	POST /api/v1/admin/leaderboard/reset/{period}   (admin)
//	POST /api/v1/admin/leaderboard/snapshot/{type}  (admin)
func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	lb := NewLeaderboardHandler(deps.Rankings, deps.History, deps.Archiver)
	admin := NewAdminHandler(deps.Archiver, cfg.IsAdmin)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Metrics))
	r.Use(recoverer)
	r.Use(cors(cfg.Server.CORSOrigin))

	r.Get("/health", HandleHealth(deps.Health))
	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, deps.Metrics.Handler())
	}
	if deps.Socket != nil {
		r.Handle("/ws/leaderboard", deps.Socket)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/leaderboard", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(deps.Verifier.RequireUser)
				r.Get("/history", lb.HandleHistory)
				r.Get("/me", lb.HandleMe)
			})

			r.Get("/snapshots", lb.HandleSnapshots)
			r.Get("/resets", lb.HandleResets)
			r.Get("/{type}", lb.HandleRanking)
		})

		r.Route("/admin/leaderboard", func(r chi.Router) {
			r.Use(deps.Verifier.RequireUser)
			r.Use(admin.RequireAdmin)
			r.Post("/reset/{period}", admin.HandleReset)
			r.Post("/snapshot/{type}", admin.HandleSnapshot)
		})
	})

	return r
}
