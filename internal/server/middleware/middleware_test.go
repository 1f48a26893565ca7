package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/odoohq/orchestrator/internal/service"
)

// ---------------------------------------------------------------------------
// Request IDs
// ---------------------------------------------------------------------------

func TestRequestIDGenerated(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetRequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if got == "" {
		t.Fatal("no request ID in context")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("request ID %q is not a UUID: %v", got, err)
	}
	if rr.Header().Get("X-Request-ID") != got {
		t.Errorf("response header = %q, want %q", rr.Header().Get("X-Request-ID"), got)
	}
}

func TestRequestIDHonorsIncoming(t *testing.T) {
	var got string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != "client-supplied-id" {
		t.Errorf("request ID = %q, want client-supplied-id", got)
	}
}

// ---------------------------------------------------------------------------
// Scope enforcement
// ---------------------------------------------------------------------------

func withPrincipal(r *http.Request, p *service.Principal) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), PrincipalKey, p))
}

func withAdmin(r *http.Request, a *service.AdminPrincipal) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), AdminKey, a))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireScopeGranted(t *testing.T) {
	h := RequireScope("read:companies")(okHandler())

	req := withPrincipal(httptest.NewRequest("GET", "/", nil),
		&service.Principal{KeyID: 1, Scopes: []string{"read:companies"}})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestRequireScopeDenied(t *testing.T) {
	h := RequireScope("write:companies")(okHandler())

	req := withPrincipal(httptest.NewRequest("POST", "/", nil),
		&service.Principal{KeyID: 1, Scopes: []string{"read:companies"}})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}
}

func TestRequireScopeWildcard(t *testing.T) {
	h := RequireScope("write:odoo")(okHandler())

	req := withPrincipal(httptest.NewRequest("POST", "/", nil),
		&service.Principal{KeyID: 1, Scopes: []string{"*"}})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestRequireScopeAdminBypass(t *testing.T) {
	h := RequireScope("write:odoo")(okHandler())

	req := withAdmin(httptest.NewRequest("POST", "/", nil),
		&service.AdminPrincipal{AdminID: 1, Email: "admin@example.com"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestRequireAdminRejectsKeys(t *testing.T) {
	h := RequireAdmin()(okHandler())

	req := withPrincipal(httptest.NewRequest("GET", "/", nil),
		&service.Principal{KeyID: 1, Scopes: []string{"*"}})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// Per-key rate limiting
// ---------------------------------------------------------------------------

func TestKeyLimiterMinuteWindow(t *testing.T) {
	l := NewKeyLimiter()

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow(1, 2, 0, 0); !ok {
			t.Fatalf("request %d denied under limit", i+1)
		}
	}
	ok, retryAfter := l.Allow(1, 2, 0, 0)
	if ok {
		t.Fatal("third request allowed over per-minute limit of 2")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Errorf("retryAfter = %v", retryAfter)
	}
}

func TestKeyLimiterZeroMeansUnlimited(t *testing.T) {
	l := NewKeyLimiter()

	for i := 0; i < 100; i++ {
		if ok, _ := l.Allow(1, 0, 0, 0); !ok {
			t.Fatalf("request %d denied with no limits configured", i+1)
		}
	}
}

func TestKeyLimiterIsolatesKeys(t *testing.T) {
	l := NewKeyLimiter()

	if ok, _ := l.Allow(1, 1, 0, 0); !ok {
		t.Fatal("first request for key 1 denied")
	}
	if ok, _ := l.Allow(1, 1, 0, 0); ok {
		t.Fatal("second request for key 1 allowed over limit")
	}
	// A different key has its own counters.
	if ok, _ := l.Allow(2, 1, 0, 0); !ok {
		t.Error("key 2 should not share key 1's window")
	}
}

func TestKeyLimiterHourWindowBinds(t *testing.T) {
	l := NewKeyLimiter()

	// Generous minute limit, tight hour limit.
	if ok, _ := l.Allow(1, 100, 1, 0); !ok {
		t.Fatal("first request denied")
	}
	ok, retryAfter := l.Allow(1, 100, 1, 0)
	if ok {
		t.Fatal("second request allowed over per-hour limit of 1")
	}
	if retryAfter <= time.Minute {
		t.Errorf("retryAfter = %v, want the hour window's reset", retryAfter)
	}
}

func TestRateLimitByKeyMiddleware(t *testing.T) {
	l := NewKeyLimiter()
	h := RateLimitByKey(l)(okHandler())

	principal := &service.Principal{KeyID: 9, RateLimitPerMinute: 1}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, withPrincipal(httptest.NewRequest("GET", "/", nil), principal))
	if rr.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, withPrincipal(httptest.NewRequest("GET", "/", nil), principal))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}
}

func TestRateLimitByKeyPassesAdmins(t *testing.T) {
	l := NewKeyLimiter()
	h := RateLimitByKey(l)(okHandler())

	// No principal in context: admin sessions are not key-rate-limited.
	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rr.Code)
		}
	}
}
