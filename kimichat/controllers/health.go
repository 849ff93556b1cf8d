package controllers

import (
	"encoding/json"
	"net/http"
	"time"
)

type HealthController struct {
	started time.Time
}

func NewHealthController() *HealthController {
	return &HealthController{started: time.Now()}
}

func (h *HealthController) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"uptime_s": int64(time.Since(h.started).Seconds()),
	})
}
