package http

import (
	"net/http"

	"github.com/Strob0t/NexusPM/internal/port/database"
	"github.com/Strob0t/NexusPM/internal/service"
)

// Handlers holds the services behind the REST API.
type Handlers struct {
	Projects     *service.ProjectService
	Connections  *service.ConnectionService
	Orchestrator *service.Orchestrator
	Approvals    *service.ApprovalService
	History      *service.HistoryService
	Admin        *service.AdminService
	Store        database.Store
	Health       HealthInfo
}

// HealthInfo is the static part of the health report.
type HealthInfo struct {
	Version      string          `json:"version"`
	StoreBackend string          `json:"store"`
	Integrations map[string]bool `json:"integrations"`
	Oracle       bool            `json:"oracle"`
}

type healthResponse struct {
	Status string `json:"status"`
	HealthInfo
}

// HealthCheck reports liveness and which integrations are configured.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", HealthInfo: h.Health})
}
