package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/odoohq/orchestrator/internal/service"
)

// SessionHandler authenticates admin users for the key-management surface.
type SessionHandler struct {
	authSvc    *service.AuthService
	sessionTTL time.Duration
}

// NewSessionHandler creates a SessionHandler. A zero ttl defaults to 24h.
func NewSessionHandler(authSvc *service.AuthService, ttl time.Duration) *SessionHandler {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionHandler{authSvc: authSvc, sessionTTL: ttl}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"session_token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
	AdminID   int64  `json:"admin_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
}

// Login authenticates an admin and returns a session token.
// POST /api/v1/system/admin/session
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	token, admin, err := h.authSvc.LoginAdmin(r.Context(), req.Email, req.Password, h.sessionTTL)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSession) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "Authentication error: "+err.Error())
		return
	}

	writeData(w, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(h.sessionTTL.Seconds()),
		AdminID:   admin.ID,
		Email:     admin.Email,
		Name:      admin.Name,
	})
}

// Logout invalidates the session client-side. Session tokens are stateless,
// so the server has nothing to forget.
// DELETE /api/v1/system/admin/session
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]interface{}{"message": "Session invalidated"})
}
