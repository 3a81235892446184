package http

import (
	"net/http"

	"github.com/Strob0t/NexusPM/internal/domain/run"
	"github.com/Strob0t/NexusPM/internal/service"
)

type triggerResponse struct {
	RunID  string     `json:"run_id"`
	Status run.Status `json:"status"`
	Run    *run.Run   `json:"run"`
}

type actionRequest struct {
	Action string `json:"action"`
}

type logsResponse struct {
	Logs  []run.TelemetryEntry `json:"logs"`
	Count int                  `json:"count"`
}

// TriggerRun handles POST /api/v1/projects/{id}/runs
func (h *Handlers) TriggerRun(w http.ResponseWriter, r *http.Request) {
	req, ok := readOptionalJSON[run.TriggerRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	started, err := h.Orchestrator.Trigger(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	writeJSON(w, http.StatusAccepted, triggerResponse{RunID: started.ID, Status: started.Status, Run: started})
}

// ListRuns handles GET /api/v1/projects/{id}/runs
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	handleListByParam("id", h.Store.ListRuns, "project not found")(w, r)
}

// GetRun handles GET /api/v1/projects/{id}/runs/{rid}
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	got, err := h.Store.GetRun(r.Context(), urlParam(r, "id"), urlParam(r, "rid"))
	if err != nil {
		writeDomainError(w, err, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, got)
}

// RunAction handles POST /api/v1/projects/{id}/runs/{rid}/action
func (h *Handlers) RunAction(w http.ResponseWriter, r *http.Request) {
	action, ok := readAction(w, r)
	if !ok {
		return
	}
	got, err := h.Approvals.RunAction(r.Context(), urlParam(r, "id"), urlParam(r, "rid"), action)
	if err != nil {
		writeDomainError(w, err, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, got)
}

// DiffAction handles POST /api/v1/projects/{id}/runs/{rid}/diffs/{did}/action
func (h *Handlers) DiffAction(w http.ResponseWriter, r *http.Request) {
	action, ok := readAction(w, r)
	if !ok {
		return
	}
	res, err := h.Approvals.DiffAction(r.Context(), urlParam(r, "id"), urlParam(r, "rid"), urlParam(r, "did"), action)
	if err != nil {
		writeDomainError(w, err, "run or diff not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RunLogs handles GET /api/v1/projects/{id}/runs/{rid}/logs
func (h *Handlers) RunLogs(w http.ResponseWriter, r *http.Request) {
	pid, rid := urlParam(r, "id"), urlParam(r, "rid")
	if _, err := h.Store.GetRun(r.Context(), pid, rid); err != nil {
		writeDomainError(w, err, "run not found")
		return
	}
	logs, err := h.Store.ListTelemetry(r.Context(), pid, rid)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if logs == nil {
		logs = []run.TelemetryEntry{}
	}
	writeJSON(w, http.StatusOK, logsResponse{Logs: logs, Count: len(logs)})
}

// GetCheckpoint handles GET /api/v1/projects/{id}/checkpoint
func (h *Handlers) GetCheckpoint(w http.ResponseWriter, r *http.Request) {
	cp, err := h.Store.GetCheckpoint(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "no checkpoint")
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

func readAction(w http.ResponseWriter, r *http.Request) (service.Action, bool) {
	req, ok := readJSON[actionRequest](w, r, maxRequestBodySize)
	if !ok {
		return "", false
	}
	action, err := service.ParseAction(req.Action)
	if err != nil {
		writeDomainError(w, err, "")
		return "", false
	}
	return action, true
}
