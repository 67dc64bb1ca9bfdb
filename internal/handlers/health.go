package handlers

import (
	"net/http"
	"time"

	"github.com/civiclens/routing-server/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var startTime = time.Now()

const version = "1.0.0"

// HealthHandler provides health check endpoints. db is nil when running on
// the in-memory store.
type HealthHandler struct {
	db     *pgxpool.Pool
	logger *zap.SugaredLogger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *pgxpool.Pool, logger *zap.SugaredLogger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

// Check handles GET /api/v1/health (liveness probe)
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthStatus{
		Status:  "ok",
		Version: version,
		Uptime:  time.Since(startTime).String(),
	})
}

// Ready handles GET /api/v1/health/ready (readiness probe)
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	dbStatus := "in-memory"
	if h.db != nil {
		dbStatus = "connected"
		if err := h.db.Ping(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, models.HealthStatus{
				Status:   "not ready",
				Version:  version,
				Database: "disconnected",
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, models.HealthStatus{
		Status:   "ready",
		Version:  version,
		Uptime:   time.Since(startTime).String(),
		Database: dbStatus,
	})
}
