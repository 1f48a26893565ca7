package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/odoohq/orchestrator/internal/config"
	"github.com/odoohq/orchestrator/internal/model"
	"github.com/odoohq/orchestrator/internal/service"
)

// KeyHandler manages the API key lifecycle: issuance, listing, revocation,
// and hard deletion. It sits behind the admin session requirement.
type KeyHandler struct {
	store   *config.Store
	authSvc *service.AuthService
}

// NewKeyHandler creates a KeyHandler.
func NewKeyHandler(store *config.Store, authSvc *service.AuthService) *KeyHandler {
	return &KeyHandler{store: store, authSvc: authSvc}
}

// List returns all API keys without hashes or plaintext.
// GET /api/v1/system/api-key
func (h *KeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.ListAPIKeys(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list API keys: "+err.Error())
		return
	}
	writeData(w, http.StatusOK, keys)
}

// Get returns one API key record. The plaintext and the hash are never part
// of any read response.
// GET /api/v1/system/api-key/{keyId}
func (h *KeyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "keyId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid key ID")
		return
	}
	key, err := h.store.GetAPIKey(r.Context(), id)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeNotFound(w)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load API key: "+err.Error())
		return
	}
	writeData(w, http.StatusOK, key)
}

type createKeyRequest struct {
	Name               string     `json:"name"`
	CompanyID          *int64     `json:"company_id,omitempty"`
	UserID             string     `json:"user_id,omitempty"`
	Scopes             []string   `json:"scopes,omitempty"`
	RateLimitPerMinute int        `json:"rate_limit_per_minute,omitempty"`
	RateLimitPerHour   int        `json:"rate_limit_per_hour,omitempty"`
	RateLimitPerDay    int        `json:"rate_limit_per_day,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
}

type createKeyResponse struct {
	Key    string        `json:"key"` // plaintext, shown once only
	APIKey *model.APIKey `json:"api_key"`
}

// Create issues a new API key. The response carries the plaintext key; no
// later read will ever include it again.
// POST /api/v1/system/api-key
func (h *KeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.CompanyID != nil {
		if _, err := h.store.GetCompany(r.Context(), *req.CompanyID); err != nil {
			if errors.Is(err, config.ErrNotFound) {
				writeError(w, http.StatusBadRequest, "Company not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to validate company: "+err.Error())
			return
		}
	}

	plaintext, key, err := h.authSvc.CreateAPIKey(r.Context(), req.Name, service.CreateKeyOptions{
		CompanyID:          req.CompanyID,
		UserID:             req.UserID,
		Scopes:             req.Scopes,
		RateLimitPerMinute: req.RateLimitPerMinute,
		RateLimitPerHour:   req.RateLimitPerHour,
		RateLimitPerDay:    req.RateLimitPerDay,
		ExpiresAt:          req.ExpiresAt,
	})
	if err != nil {
		if errors.Is(err, service.ErrNameRequired) {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create API key: "+err.Error())
		return
	}

	writeData(w, http.StatusCreated, createKeyResponse{Key: plaintext, APIKey: key})
}

// Revoke disables a key, keeping the record for audit. Revoking twice is not
// an error.
// DELETE /api/v1/system/api-key/{keyId}
// DELETE /api/v1/system/api-key/{keyId}?hard=true performs an irreversible
// hard delete instead.
func (h *KeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "keyId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid key ID")
		return
	}

	if r.URL.Query().Get("hard") == "true" {
		if err := h.authSvc.DeleteAPIKey(r.Context(), id); err != nil {
			if errors.Is(err, config.ErrNotFound) {
				writeNotFound(w)
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to delete API key: "+err.Error())
			return
		}
		writeData(w, http.StatusOK, map[string]interface{}{"message": "API key deleted"})
		return
	}

	key, err := h.authSvc.RevokeAPIKey(r.Context(), id)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeNotFound(w)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to revoke API key: "+err.Error())
		return
	}
	writeData(w, http.StatusOK, key)
}
