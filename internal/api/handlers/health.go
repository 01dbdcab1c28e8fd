package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/strategylib/control-plane/internal/events"
	"github.com/strategylib/control-plane/internal/store"
)

// HealthHandlers serves liveness and readiness endpoints (spec §6).
type HealthHandlers struct {
	gateway   store.Gateway
	publisher *events.Publisher
}

func NewHealthHandlers(gw store.Gateway, pub *events.Publisher) *HealthHandlers {
	return &HealthHandlers{gateway: gw, publisher: pub}
}

// Live handles GET /health: process is up, no dependency checks.
func (h *HealthHandlers) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type componentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type detailedHealthResponse struct {
	Status     string                      `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

// Detailed handles GET /health/detailed: pings the store gateway and
// reports the event publisher's last delivery outcome.
func (h *HealthHandlers) Detailed(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]componentStatus, 2)
	healthy := true

	if err := h.gateway.Ping(r.Context()); err != nil {
		components["store"] = componentStatus{Status: "down", Error: err.Error()}
		healthy = false
	} else {
		components["store"] = componentStatus{Status: "ok"}
	}

	if ok, err := h.publisher.Healthy(); ok {
		components["event_bus"] = componentStatus{Status: "ok"}
	} else {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		components["event_bus"] = componentStatus{Status: "down", Error: msg}
		healthy = false
	}

	resp := detailedHealthResponse{Components: components}
	status := http.StatusOK
	if healthy {
		resp.Status = "ok"
	} else {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
