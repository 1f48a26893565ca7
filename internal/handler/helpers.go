package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odoohq/orchestrator/internal/model"
	"github.com/odoohq/orchestrator/internal/service"
)

// writeData wraps v in the success envelope and writes it with the given
// status code.
func writeData(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.SuccessResponse{Success: true, Data: v})
}

// writeError writes the flat error envelope.
func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(model.ErrorResponse{Error: message})
}

// writeNotFound masks a missing or foreign-tenant resource identically, so a
// response can never confirm that another tenant's resource exists.
func writeNotFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "Not found")
}

// readJSON decodes the request body as JSON into v, closing the body.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// idParam extracts a positive integer URL parameter.
func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parsePositive parses a positive int64 from a string.
func parsePositive(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// tenantScope returns the company the request is confined to, or nil when the
// caller (an admin session or a global key) may see every tenant.
func tenantScope(p *service.Principal) *int64 {
	if p == nil {
		return nil
	}
	return p.CompanyID
}

// sameTenant reports whether a resource owned by companyID is visible under
// the given tenant scope.
func sameTenant(scope *int64, companyID int64) bool {
	return scope == nil || *scope == companyID
}
