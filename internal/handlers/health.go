package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Pinger is satisfied by kv.Store, *pgxpool.Pool, and the app package's
// Redis and no-op pingers — anything health can round-trip against.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	logger zerolog.Logger
	kv     Pinger
	db     Pinger
}

func NewHealthHandler(log zerolog.Logger, kv, db Pinger) *HealthHandler {
	return &HealthHandler{logger: log, kv: kv, db: db}
}

// HandleLive answers liveness probes unconditionally: if the process can
// respond at all, it is live.
func (h *HealthHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"alive"}`))
}

// HandleReady checks dependency connectivity; readiness fails if KV or DB is
// unreachable.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		healthy = false
	} else {
		checks["database"] = "healthy"
	}

	if err := h.kv.Ping(ctx); err != nil {
		checks["kv"] = "unhealthy: " + err.Error()
		healthy = false
	} else {
		checks["kv"] = "healthy"
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
		h.logger.Warn().Interface("checks", checks).Msg("readiness check failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"status": overall, "checks": checks})
}
