package handler

import (
	"errors"
	"net/http"

	"github.com/odoohq/orchestrator/internal/config"
	"github.com/odoohq/orchestrator/internal/model"
	"github.com/odoohq/orchestrator/internal/server/middleware"
)

// ProjectHandler serves implementation projects, constrained to the caller's
// tenant when the key is company-scoped.
type ProjectHandler struct {
	store *config.Store
}

// NewProjectHandler creates a ProjectHandler.
func NewProjectHandler(store *config.Store) *ProjectHandler {
	return &ProjectHandler{store: store}
}

// List returns the projects visible to the caller. A global caller may
// filter by ?company_id=N.
// GET /api/v1/projects
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	scope := tenantScope(middleware.GetPrincipal(r.Context()))

	filter := scope
	if filter == nil {
		if q := r.URL.Query().Get("company_id"); q != "" {
			id, ok := parsePositive(q)
			if !ok {
				writeError(w, http.StatusBadRequest, "Invalid company_id filter")
				return
			}
			filter = &id
		}
	}

	projects, err := h.store.ListProjects(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list projects: "+err.Error())
		return
	}
	writeData(w, http.StatusOK, projects)
}

// Get returns one project.
// GET /api/v1/projects/{projectId}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, project)
}

type projectRequest struct {
	CompanyID int64  `json:"company_id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	Notes     string `json:"notes"`
}

// Create adds a project. Company-scoped keys may only create projects for
// their own company; an attempt against another tenant is masked as 404.
// POST /api/v1/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	scope := tenantScope(middleware.GetPrincipal(r.Context()))
	if scope != nil && req.CompanyID == 0 {
		req.CompanyID = *scope
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.CompanyID <= 0 {
		writeError(w, http.StatusBadRequest, "company_id is required")
		return
	}
	if req.Status != "" && !model.ValidProjectStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "Invalid status: "+req.Status)
		return
	}
	if !sameTenant(scope, req.CompanyID) {
		writeNotFound(w)
		return
	}

	if _, err := h.store.GetCompany(r.Context(), req.CompanyID); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeNotFound(w)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to validate company: "+err.Error())
		return
	}

	project := &model.Project{
		CompanyID: req.CompanyID,
		Name:      req.Name,
		Status:    req.Status,
		Notes:     req.Notes,
	}
	if err := h.store.CreateProject(r.Context(), project); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create project: "+err.Error())
		return
	}
	writeData(w, http.StatusCreated, project)
}

// Update modifies a project's name, status, or notes.
// PUT /api/v1/projects/{projectId}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadVisible(w, r)
	if !ok {
		return
	}

	var req projectRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Name != "" {
		project.Name = req.Name
	}
	if req.Status != "" {
		if !model.ValidProjectStatus(req.Status) {
			writeError(w, http.StatusBadRequest, "Invalid status: "+req.Status)
			return
		}
		project.Status = req.Status
	}
	if req.Notes != "" {
		project.Notes = req.Notes
	}

	if err := h.store.UpdateProject(r.Context(), project); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update project: "+err.Error())
		return
	}
	writeData(w, http.StatusOK, project)
}

// Delete removes a project.
// DELETE /api/v1/projects/{projectId}
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	project, ok := h.loadVisible(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteProject(r.Context(), project.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete project: "+err.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{"message": "Project deleted"})
}

// loadVisible resolves the {projectId} parameter to a project the caller may
// see, writing the appropriate error response otherwise.
func (h *ProjectHandler) loadVisible(w http.ResponseWriter, r *http.Request) (*model.Project, bool) {
	id, ok := idParam(r, "projectId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid project ID")
		return nil, false
	}

	project, err := h.store.GetProject(r.Context(), id)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeNotFound(w)
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to load project: "+err.Error())
		return nil, false
	}

	scope := tenantScope(middleware.GetPrincipal(r.Context()))
	if !sameTenant(scope, project.CompanyID) {
		writeNotFound(w)
		return nil, false
	}
	return project, true
}
