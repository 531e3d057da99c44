package handlers

import (
	"net/http"
	"time"

	applog "formulary/internal/log"
)

type healthResponse struct {
	Status   string    `json:"status"`
	Database string    `json:"database"`
	Time     time.Time `json:"time"`
}

// Health is a simple readiness handler suitable for infrastructure probes.
func Health(w http.ResponseWriter, r *http.Request) {
	applog.Debug(r.Context(), "health check requested", "method", r.Method)
	resp := healthResponse{
		Status:   "ok",
		Database: databaseStatus(r),
		Time:     time.Now().UTC(),
	}

	status := http.StatusOK
	if resp.Database == "unreachable" {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
	applog.Debug(r.Context(), "health check responded", "status", resp.Status)
}

func databaseStatus(r *http.Request) string {
	if database == nil {
		return "not configured"
	}
	sqlDB, err := database.DB()
	if err != nil {
		applog.Error(r.Context(), "failed to access database handle", "error", err)
		return "unreachable"
	}
	if err := sqlDB.PingContext(r.Context()); err != nil {
		applog.Error(r.Context(), "database ping failed", "error", err)
		return "unreachable"
	}
	return "ok"
}
