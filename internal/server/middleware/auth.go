package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/odoohq/orchestrator/internal/service"
)

type contextKeyAuth string

const (
	// PrincipalKey is the context key for the resolved API key principal.
	PrincipalKey contextKeyAuth = "api_key_principal"
	// AdminKey is the context key for the resolved admin session.
	AdminKey contextKeyAuth = "admin_principal"
)

// APIKeyHeader is the header carrying the plaintext API key. The key is also
// accepted as "Authorization: Bearer orch_..." since its prefix makes it
// unambiguous next to session JWTs.
const APIKeyHeader = "X-API-Key"

const keyBearerPrefix = "orch_"

// Authenticate validates the request credential and attaches the resolved
// identity to the context. API keys and admin session tokens are both
// accepted; anything else gets a 401 before any handler logic runs. Revoked
// and expired keys are logged distinctly from unknown ones but produce the
// same 401 so probing cannot tell them apart.
func Authenticate(authSvc *service.AuthService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawKey := r.Header.Get(APIKeyHeader)
			bearer := ""
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				bearer = strings.TrimPrefix(h, "Bearer ")
			}
			if rawKey == "" && strings.HasPrefix(bearer, keyBearerPrefix) {
				rawKey = bearer
			}

			if rawKey != "" {
				principal, err := authSvc.ValidateAPIKey(r.Context(), rawKey)
				if err != nil {
					reason := "invalid"
					switch {
					case errors.Is(err, service.ErrKeyRevoked):
						reason = "revoked"
					case errors.Is(err, service.ErrKeyExpired):
						reason = "expired"
					}
					logger.Warn("api key rejected",
						"reason", reason,
						"path", r.URL.Path,
						"request_id", GetRequestID(r.Context()),
					)
					writeAuthError(w, http.StatusUnauthorized, "Invalid API key")
					return
				}
				ctx := context.WithValue(r.Context(), PrincipalKey, principal)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if bearer != "" {
				admin, err := authSvc.ValidateSession(bearer)
				if err != nil {
					writeAuthError(w, http.StatusUnauthorized, "Invalid session token")
					return
				}
				ctx := context.WithValue(r.Context(), AdminKey, admin)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			writeAuthError(w, http.StatusUnauthorized,
				"Authentication required. Provide an "+APIKeyHeader+" header or a Bearer token.")
		})
	}
}

// RequireScope enforces that the request's API key carries the given scope
// (or the wildcard). Admin sessions pass unconditionally. Must run after
// Authenticate.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetAdmin(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}
			principal := GetPrincipal(r.Context())
			if principal == nil || !principal.HasScope(scope) {
				writeAuthError(w, http.StatusForbidden, "Insufficient scope: "+scope+" required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin enforces an admin session. Must run after Authenticate.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetAdmin(r.Context()) == nil {
				writeAuthError(w, http.StatusForbidden, "Admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipal extracts the API key principal from the context, or nil for
// requests authenticated some other way.
func GetPrincipal(ctx context.Context) *service.Principal {
	if p, ok := ctx.Value(PrincipalKey).(*service.Principal); ok {
		return p
	}
	return nil
}

// GetAdmin extracts the admin principal from the context, or nil.
func GetAdmin(ctx context.Context) *service.AdminPrincipal {
	if a, ok := ctx.Value(AdminKey).(*service.AdminPrincipal); ok {
		return a
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Construct the envelope by hand to avoid an import cycle with handler.
	// Messages here are static strings, so no quoting is needed.
	w.Write([]byte(`{"error":"` + message + `"}`))
}
