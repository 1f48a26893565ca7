package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odoohq/orchestrator/internal/config"
	"github.com/odoohq/orchestrator/internal/model"
	"github.com/odoohq/orchestrator/internal/odoo"
	"github.com/odoohq/orchestrator/internal/server/middleware"
)

// OdooDialer builds an RPC client for one instance configuration. A fresh
// client is constructed per request; clients are never pooled or shared
// because credentials differ per tenant.
type OdooDialer func(inst *model.OdooInstance) *odoo.Client

// NewOdooDialer returns the production dialer with the given per-call
// timeout.
func NewOdooDialer(timeout time.Duration) OdooDialer {
	return func(inst *model.OdooInstance) *odoo.Client {
		return odoo.New(odoo.Config{
			URL:      inst.URL,
			Database: inst.Database,
			Username: inst.Username,
			Password: inst.Password,
			Timeout:  timeout,
		})
	}
}

// InstanceHandler serves Odoo instance configurations and proxies model
// operations to the remote ERP.
type InstanceHandler struct {
	store *config.Store
	dial  OdooDialer
}

// NewInstanceHandler creates an InstanceHandler.
func NewInstanceHandler(store *config.Store, dial OdooDialer) *InstanceHandler {
	return &InstanceHandler{store: store, dial: dial}
}

// List returns the instance configurations visible to the caller, passwords
// stripped.
// GET /api/v1/instances
func (h *InstanceHandler) List(w http.ResponseWriter, r *http.Request) {
	scope := tenantScope(middleware.GetPrincipal(r.Context()))
	instances, err := h.store.ListInstances(r.Context(), scope)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list instances: "+err.Error())
		return
	}
	writeData(w, http.StatusOK, instances)
}

// Get returns one instance configuration.
// GET /api/v1/instances/{instanceId}
func (h *InstanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, inst)
}

type instanceRequest struct {
	CompanyID int64  `json:"company_id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Database  string `json:"database"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	IsActive  *bool  `json:"is_active,omitempty"`
}

// Create registers a new Odoo instance for a company.
// POST /api/v1/instances
func (h *InstanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req instanceRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	scope := tenantScope(middleware.GetPrincipal(r.Context()))
	if scope != nil && req.CompanyID == 0 {
		req.CompanyID = *scope
	}

	if req.Name == "" || req.URL == "" || req.Database == "" || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "name, url, database, username, and password are required")
		return
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		writeError(w, http.StatusBadRequest, "url must start with http:// or https://")
		return
	}
	if req.CompanyID <= 0 {
		writeError(w, http.StatusBadRequest, "company_id is required")
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

	inst := &model.OdooInstance{
		CompanyID: req.CompanyID,
		Name:      req.Name,
		URL:       req.URL,
		Database:  req.Database,
		Username:  req.Username,
		Password:  req.Password,
		IsActive:  true,
	}
	if req.IsActive != nil {
		inst.IsActive = *req.IsActive
	}

	if err := h.store.CreateInstance(r.Context(), inst); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create instance: "+err.Error())
		return
	}
	writeData(w, http.StatusCreated, inst)
}

// Update modifies an instance configuration. Omitting the password keeps the
// stored one.
// PUT /api/v1/instances/{instanceId}
func (h *InstanceHandler) Update(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.loadVisible(w, r)
	if !ok {
		return
	}

	var req instanceRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Name != "" {
		inst.Name = req.Name
	}
	if req.URL != "" {
		if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
			writeError(w, http.StatusBadRequest, "url must start with http:// or https://")
			return
		}
		inst.URL = req.URL
	}
	if req.Database != "" {
		inst.Database = req.Database
	}
	if req.Username != "" {
		inst.Username = req.Username
	}
	inst.Password = req.Password // empty keeps the stored secret
	if req.IsActive != nil {
		inst.IsActive = *req.IsActive
	}

	if err := h.store.UpdateInstance(r.Context(), inst); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update instance: "+err.Error())
		return
	}
	inst.Password = ""
	writeData(w, http.StatusOK, inst)
}

// Delete removes an instance configuration.
// DELETE /api/v1/instances/{instanceId}
func (h *InstanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteInstance(r.Context(), inst.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete instance: "+err.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{"message": "Instance deleted"})
}

// Test probes the instance's connectivity and credentials. Always responds
// 200 with a structured result; failures are data, not errors, so UI "test
// my credentials" flows never need special handling.
// POST /api/v1/instances/{instanceId}/test
func (h *InstanceHandler) Test(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	result := h.dial(inst).TestConnection(r.Context())
	writeData(w, http.StatusOK, result)
}

// ---------------------------------------------------------------------------
// Odoo model proxy
// ---------------------------------------------------------------------------

// SearchRecords searches the given model on the remote ERP.
// GET /api/v1/instances/{instanceId}/models/{model}/records
//
// Query parameters: domain (JSON-encoded Odoo filter expression, default
// []), fields (comma-separated; when present the matched records are read
// and returned, otherwise only ids are).
func (h *InstanceHandler) SearchRecords(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	odooModel := chi.URLParam(r, "model")

	domain := []interface{}{}
	if raw := r.URL.Query().Get("domain"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &domain); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid domain: "+err.Error())
			return
		}
	}

	client := h.dial(inst)
	ids, err := client.Search(r.Context(), odooModel, domain)
	if err != nil {
		writeOdooError(w, err)
		return
	}

	fieldsParam := r.URL.Query().Get("fields")
	if fieldsParam == "" {
		writeData(w, http.StatusOK, map[string]interface{}{"ids": ids})
		return
	}

	records, err := client.Read(r.Context(), odooModel, ids, strings.Split(fieldsParam, ","))
	if err != nil {
		writeOdooError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{"ids": ids, "records": records})
}

type createRecordRequest struct {
	Values map[string]interface{} `json:"values"`
}

// CreateRecord creates one record on the remote ERP.
// POST /api/v1/instances/{instanceId}/models/{model}/records
func (h *InstanceHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.loadVisible(w, r)
	if !ok {
		return
	}

	var req createRecordRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Values) == 0 {
		writeError(w, http.StatusBadRequest, "values is required")
		return
	}

	id, err := h.dial(inst).Create(r.Context(), chi.URLParam(r, "model"), req.Values)
	if err != nil {
		writeOdooError(w, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]interface{}{"id": id})
}

type writeRecordsRequest struct {
	IDs    []int64                `json:"ids"`
	Values map[string]interface{} `json:"values"`
}

// WriteRecords updates records on the remote ERP.
// PUT /api/v1/instances/{instanceId}/models/{model}/records
func (h *InstanceHandler) WriteRecords(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.loadVisible(w, r)
	if !ok {
		return
	}

	var req writeRecordsRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.IDs) == 0 || len(req.Values) == 0 {
		writeError(w, http.StatusBadRequest, "ids and values are required")
		return
	}

	updated, err := h.dial(inst).Write(r.Context(), chi.URLParam(r, "model"), req.IDs, req.Values)
	if err != nil {
		writeOdooError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{"updated": updated})
}

// DeleteRecords unlinks records on the remote ERP.
// DELETE /api/v1/instances/{instanceId}/models/{model}/records?ids=1,2,3
func (h *InstanceHandler) DeleteRecords(w http.ResponseWriter, r *http.Request) {
	inst, ok := h.loadVisible(w, r)
	if !ok {
		return
	}

	var ids []int64
	for _, part := range strings.Split(r.URL.Query().Get("ids"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, ok := parsePositive(part)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid id: "+part)
			return
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "ids query parameter is required")
		return
	}

	deleted, err := h.dial(inst).Delete(r.Context(), chi.URLParam(r, "model"), ids)
	if err != nil {
		writeOdooError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{"deleted": deleted})
}

// writeOdooError maps RPC client failures to gateway status codes. Both
// credential rejections and remote faults are upstream problems from the
// API consumer's point of view.
func writeOdooError(w http.ResponseWriter, err error) {
	var authErr *odoo.AuthenticationError
	if errors.As(err, &authErr) {
		writeError(w, http.StatusBadGateway, "Odoo authentication failed: "+authErr.Message)
		return
	}
	writeError(w, http.StatusBadGateway, "Odoo call failed: "+err.Error())
}

// loadVisible resolves {instanceId} to an instance the caller may see.
func (h *InstanceHandler) loadVisible(w http.ResponseWriter, r *http.Request) (*model.OdooInstance, bool) {
	id, ok := idParam(r, "instanceId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid instance ID")
		return nil, false
	}

	inst, err := h.store.GetInstance(r.Context(), id)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeNotFound(w)
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to load instance: "+err.Error())
		return nil, false
	}

	scope := tenantScope(middleware.GetPrincipal(r.Context()))
	if !sameTenant(scope, inst.CompanyID) {
		writeNotFound(w)
		return nil, false
	}
	return inst, true
}
