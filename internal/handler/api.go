package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/karim/bloghub/internal/apperror"
	"github.com/karim/bloghub/internal/repository"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler serves health and content statistics.
type SystemHandler struct {
	db     Pinger
	stats  repository.StatsRepository
	logger *slog.Logger
}

func NewSystemHandler(db Pinger, stats repository.StatsRepository, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{db: db, stats: stats, logger: logger}
}

// HandleHealth is the liveness probe. It checks the database, since a
// server that cannot reach its store is not healthy in any useful sense.
//
// HTTP: GET /health
func (h *SystemHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.Error("health check failed", "error", err)
		writeError(w, apperror.Storage("ping", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleStats returns content counts for the admin dashboard.
//
// HTTP: GET /admin/stats
func (h *SystemHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Counts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
