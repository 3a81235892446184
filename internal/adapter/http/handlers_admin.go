package http

import (
	"net/http"

	"github.com/Strob0t/NexusPM/internal/domain/signal"
)

type messagesResponse struct {
	Messages []signal.Message `json:"messages"`
	Count    int              `json:"count"`
	Offset   int              `json:"offset"`
}

// ListMessages handles GET /api/v1/projects/{id}/messages?limit=&offset=
func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit := min(queryInt(r, "limit", 50), 500)
	offset := queryInt(r, "offset", 0)
	msgs, err := h.History.Messages(r.Context(), urlParam(r, "id"), limit, offset)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{Messages: msgs, Count: len(msgs), Offset: offset})
}

// MessageSummary handles GET /api/v1/projects/{id}/messages/summary
func (h *Handlers) MessageSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.History.Summary(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// ServicesStatus handles GET /api/v1/services/status
func (h *Handlers) ServicesStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Admin.ServicesStatus(r.Context()))
}

// AdminReset handles POST /api/v1/admin/reset
func (h *Handlers) AdminReset(w http.ResponseWriter, r *http.Request) {
	res, err := h.Admin.Reset(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
