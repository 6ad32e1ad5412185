package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// HealthChecker pings the store.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HandleHealth reports whether the store answers within two seconds.
func HandleHealth(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.HealthCheck(ctx); err != nil {
			log.Warn().Err(err).Msg("Health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
