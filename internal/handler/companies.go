package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/odoohq/orchestrator/internal/config"
	"github.com/odoohq/orchestrator/internal/model"
	"github.com/odoohq/orchestrator/internal/server/middleware"
)

// CompanyHandler serves the tenant records themselves. A company-scoped key
// sees exactly one company; everything else is masked as not-found.
type CompanyHandler struct {
	store *config.Store
}

// NewCompanyHandler creates a CompanyHandler.
func NewCompanyHandler(store *config.Store) *CompanyHandler {
	return &CompanyHandler{store: store}
}

// List returns the companies visible to the caller.
// GET /api/v1/companies
func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	scope := tenantScope(middleware.GetPrincipal(r.Context()))

	if scope != nil {
		company, err := h.store.GetCompany(r.Context(), *scope)
		if err != nil {
			if errors.Is(err, config.ErrNotFound) {
				writeData(w, http.StatusOK, []model.Company{})
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to list companies: "+err.Error())
			return
		}
		writeData(w, http.StatusOK, []model.Company{*company})
		return
	}

	companies, err := h.store.ListCompanies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list companies: "+err.Error())
		return
	}
	writeData(w, http.StatusOK, companies)
}

// Get returns one company.
// GET /api/v1/companies/{companyId}
func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "companyId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid company ID")
		return
	}

	scope := tenantScope(middleware.GetPrincipal(r.Context()))
	if !sameTenant(scope, id) {
		writeNotFound(w)
		return
	}

	company, err := h.store.GetCompany(r.Context(), id)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeNotFound(w)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load company: "+err.Error())
		return
	}
	writeData(w, http.StatusOK, company)
}

type companyRequest struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// Create adds a new company. Only global keys and admins may create tenants.
// POST /api/v1/companies
func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	if tenantScope(middleware.GetPrincipal(r.Context())) != nil {
		writeError(w, http.StatusForbidden, "Company-scoped keys cannot create companies")
		return
	}

	var req companyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Slug == "" {
		req.Slug = model.Slugify(req.Name)
	}

	company := &model.Company{Name: req.Name, Slug: req.Slug, IsActive: true}
	if req.IsActive != nil {
		company.IsActive = *req.IsActive
	}

	if err := h.store.CreateCompany(r.Context(), company); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			writeError(w, http.StatusBadRequest, "A company with that slug already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create company: "+err.Error())
		return
	}
	writeData(w, http.StatusCreated, company)
}

// Update modifies a company.
// PUT /api/v1/companies/{companyId}
func (h *CompanyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "companyId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid company ID")
		return
	}

	scope := tenantScope(middleware.GetPrincipal(r.Context()))
	if !sameTenant(scope, id) {
		writeNotFound(w)
		return
	}

	company, err := h.store.GetCompany(r.Context(), id)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeNotFound(w)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load company: "+err.Error())
		return
	}

	var req companyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Name != "" {
		company.Name = req.Name
	}
	if req.Slug != "" {
		company.Slug = req.Slug
	}
	if req.IsActive != nil {
		company.IsActive = *req.IsActive
	}

	if err := h.store.UpdateCompany(r.Context(), company); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update company: "+err.Error())
		return
	}
	writeData(w, http.StatusOK, company)
}

// Delete removes a company and everything owned by it.
// DELETE /api/v1/companies/{companyId}
func (h *CompanyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "companyId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid company ID")
		return
	}

	scope := tenantScope(middleware.GetPrincipal(r.Context()))
	if !sameTenant(scope, id) {
		writeNotFound(w)
		return
	}

	if err := h.store.DeleteCompany(r.Context(), id); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeNotFound(w)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete company: "+err.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{"message": "Company deleted"})
}
