package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// health is the liveness probe.
func health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessTimeout bounds the database ping in the readiness probe.
const readinessTimeout = 5 * time.Second

// readiness reports whether the server can reach its database. Pool
// stats are included for operators; a failed ping is 503 so load
// balancers stop routing here.
func readiness(pool *pgxpool.Pool, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			logger.Error("readiness ping failed", "error", err)
			WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "unavailable",
				"database": "unreachable",
			})
			return
		}

		stats := pool.Stat()
		WriteJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"database": "ok",
			"pool": map[string]int32{
				"total_conns": stats.TotalConns(),
				"idle_conns":  stats.IdleConns(),
			},
		})
	})
}
