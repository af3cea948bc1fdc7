package handler

import (
	"net/http"

	"github.com/angeloszaimis/campus-gateway/internal/discovery"
	"github.com/angeloszaimis/campus-gateway/internal/health"
)

type DiscoveryStatus interface {
	Status() discovery.Status
}

type HealthState interface {
	Snapshot() health.State
}

type statusResponse struct {
	discovery.Status
	Health health.State `json:"health"`
}

type StatusHandler struct {
	discovery DiscoveryStatus
	health    HealthState
}

func NewStatusHandler(d DiscoveryStatus, h HealthState) *StatusHandler {
	return &StatusHandler{discovery: d, health: h}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status: h.discovery.Status(),
		Health: h.health.Snapshot(),
	})
}
