package http

import (
	"net/http"

	"github.com/Strob0t/NexusPM/internal/domain/connection"
	"github.com/Strob0t/NexusPM/internal/domain/project"
)

// ListProjects handles GET /api/v1/projects
func (h *Handlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	handleList(h.Projects.List)(w, r)
}

// GetProject handles GET /api/v1/projects/{id}
func (h *Handlers) GetProject(w http.ResponseWriter, r *http.Request) {
	handleGet(h.Projects.Get, "project not found")(w, r)
}

// CreateProject handles POST /api/v1/projects
func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	handleCreate(maxRequestBodySize, h.Projects.Create)(w, r)
}

// UpdateProject handles PUT /api/v1/projects/{id}
func (h *Handlers) UpdateProject(w http.ResponseWriter, r *http.Request) {
	handleUpdate[project.UpdateRequest](maxRequestBodySize, h.Projects.Update, "project not found")(w, r)
}

// DeleteProject handles DELETE /api/v1/projects/{id}
func (h *Handlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	handleDelete(h.Projects.Delete, "project not found")(w, r)
}

// --- Connections ---

// ListConnections handles GET /api/v1/projects/{id}/connections
func (h *Handlers) ListConnections(w http.ResponseWriter, r *http.Request) {
	handleListByParam("id", h.Connections.List, "project not found")(w, r)
}

// CreateConnection handles POST /api/v1/projects/{id}/connections
func (h *Handlers) CreateConnection(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[connection.CreateRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	req.ProjectID = urlParam(r, "id")
	if _, err := h.Projects.Get(r.Context(), req.ProjectID); err != nil {
		writeDomainError(w, err, "project not found")
		return
	}
	c, err := h.Connections.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "creation failed")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GetConnection handles GET /api/v1/projects/{id}/connections/{cid}
func (h *Handlers) GetConnection(w http.ResponseWriter, r *http.Request) {
	c, err := h.Connections.Get(r.Context(), urlParam(r, "id"), urlParam(r, "cid"))
	if err != nil {
		writeDomainError(w, err, "connection not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// UpdateConnection handles PUT /api/v1/projects/{id}/connections/{cid}
func (h *Handlers) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[connection.UpdateRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	c, err := h.Connections.Update(r.Context(), urlParam(r, "id"), urlParam(r, "cid"), req)
	if err != nil {
		writeDomainError(w, err, "connection not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteConnection handles DELETE /api/v1/projects/{id}/connections/{cid}
func (h *Handlers) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.Connections.Delete(r.Context(), urlParam(r, "id"), urlParam(r, "cid")); err != nil {
		writeDomainError(w, err, "connection not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TestConnection handles POST /api/v1/projects/{id}/connections/{cid}/test
func (h *Handlers) TestConnection(w http.ResponseWriter, r *http.Request) {
	res, err := h.Connections.Test(r.Context(), urlParam(r, "id"), urlParam(r, "cid"))
	if err != nil {
		writeDomainError(w, err, "connection not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
