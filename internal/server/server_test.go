package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/odoohq/orchestrator/internal/config"
	"github.com/odoohq/orchestrator/internal/handler"
	"github.com/odoohq/orchestrator/internal/model"
	"github.com/odoohq/orchestrator/internal/odoo"
	"github.com/odoohq/orchestrator/internal/service"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const (
	testJWTSecret = "test-secret-for-jwt-integration-tests"
	testPassword  = "supersecretpassword"
)

// fakeOdoo scripts responses per RPC method and records calls, standing in
// for a remote Odoo server.
type fakeOdoo struct {
	responses map[string]interface{}
	errs      map[string]error
	calls     []string
}

func newFakeOdoo() *fakeOdoo {
	return &fakeOdoo{
		responses: map[string]interface{}{
			"authenticate": int64(2),
			"version":      map[string]interface{}{"server_version": "17.0"},
		},
		errs: make(map[string]error),
	}
}

func (f *fakeOdoo) Call(ctx context.Context, endpoint, method string, params []interface{}) (interface{}, error) {
	f.calls = append(f.calls, method)
	if err := f.errs[method]; err != nil {
		return nil, err
	}
	return f.responses[method], nil
}

// testEnv holds all the shared state for integration tests.
type testEnv struct {
	server  *Server
	store   *config.Store
	authSvc *service.AuthService
	odoo    *fakeOdoo
}

// newTestEnv creates a fresh test environment with an in-memory config store,
// a default admin account, a fake Odoo backend, and a fully wired Server.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := config.NewStore("") // in-memory SQLite
	if err != nil {
		t.Fatalf("config.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	authSvc := service.NewAuthService(store, testJWTSecret)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fake := newFakeOdoo()
	dial := func(inst *model.OdooInstance) *odoo.Client {
		return odoo.NewWithTransport(odoo.Config{
			URL:      inst.URL,
			Database: inst.Database,
			Username: inst.Username,
			Password: inst.Password,
		}, fake)
	}

	cfg := DefaultConfig()
	cfg.RequestsPerMin = 0 // per-IP limiting off so tests exercise per-key limits
	srv := New(cfg, store, authSvc, handler.OdooDialer(dial), logger)

	return &testEnv{server: srv, store: store, authSvc: authSvc, odoo: fake}
}

// seedAdmin creates a default admin account.
func (e *testEnv) seedAdmin(t *testing.T) *model.Admin {
	t.Helper()
	hash, err := service.HashAdminPassword(testPassword)
	if err != nil {
		t.Fatalf("HashAdminPassword: %v", err)
	}
	admin := &model.Admin{
		Email:        "admin@example.com",
		PasswordHash: hash,
		Name:         "Test Admin",
		IsActive:     true,
	}
	if err := e.store.CreateAdmin(context.Background(), admin); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	return admin
}

// adminToken logs in as the default admin and returns the session token.
func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	rr := e.do(t, "POST", "/api/v1/system/admin/session", jsonBody(t, map[string]string{
		"email":    "admin@example.com",
		"password": testPassword,
	}), nil)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Data struct {
			Token string `json:"session_token"`
		} `json:"data"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Data.Token == "" {
		t.Fatal("adminToken: got empty token from login")
	}
	return resp.Data.Token
}

// seedKey issues an API key directly through the auth service.
func (e *testEnv) seedKey(t *testing.T, name string, opts service.CreateKeyOptions) (string, *model.APIKey) {
	t.Helper()
	plaintext, key, err := e.authSvc.CreateAPIKey(context.Background(), name, opts)
	if err != nil {
		t.Fatalf("seedKey: %v", err)
	}
	return plaintext, key
}

// seedCompany creates a company directly in the store.
func (e *testEnv) seedCompany(t *testing.T, name string) *model.Company {
	t.Helper()
	c := &model.Company{Name: name, Slug: model.Slugify(name), IsActive: true}
	if err := e.store.CreateCompany(context.Background(), c); err != nil {
		t.Fatalf("seedCompany: %v", err)
	}
	return c
}

// seedInstance creates an Odoo instance for a company.
func (e *testEnv) seedInstance(t *testing.T, companyID int64) *model.OdooInstance {
	t.Helper()
	inst := &model.OdooInstance{
		CompanyID: companyID,
		Name:      "production",
		URL:       "https://tenant.odoo.test",
		Database:  "tenant-prod",
		Username:  "api@tenant.test",
		Password:  "odoo-secret",
		IsActive:  true,
	}
	if err := e.store.CreateInstance(context.Background(), inst); err != nil {
		t.Fatalf("seedInstance: %v", err)
	}
	return inst
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) doAuth(t *testing.T, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, body, map[string]string{"Authorization": "Bearer " + token})
}

func (e *testEnv) doAPIKey(t *testing.T, method, path string, body io.Reader, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, body, map[string]string{"X-API-Key": apiKey})
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("jsonBody: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

// assertErrorEnvelope checks the flat {"error": "..."} error shape.
func assertErrorEnvelope(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Error == "" {
		t.Fatalf("error envelope missing message; body = %s", rr.Body.String())
	}
	return resp.Error
}

// ---------------------------------------------------------------------------
// Health and docs
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/healthz", nil, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want ok", resp["status"])
	}
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/readyz", nil, nil)
	assertStatus(t, rr, http.StatusOK)
}

func TestOpenAPIDocServed(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/openapi.json", nil, nil)
	assertStatus(t, rr, http.StatusOK)

	var doc struct {
		OpenAPI string                 `json:"openapi"`
		Paths   map[string]interface{} `json:"paths"`
	}
	decodeJSON(t, rr, &doc)
	if doc.OpenAPI != "3.1.0" {
		t.Errorf("openapi = %q", doc.OpenAPI)
	}
	if _, ok := doc.Paths["/api/v1/companies"]; !ok {
		t.Error("companies path missing from OpenAPI doc")
	}
}

// ---------------------------------------------------------------------------
// Authentication
// ---------------------------------------------------------------------------

func TestNoCredentials(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/v1/companies", nil, nil)
	assertStatus(t, rr, http.StatusUnauthorized)
	assertErrorEnvelope(t, rr)
}

func TestLoginAndSession(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	token := env.adminToken(t)

	// Admin sessions pass every scope gate.
	rr := env.doAuth(t, "GET", "/api/v1/companies", nil, token)
	assertStatus(t, rr, http.StatusOK)
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	rr := env.do(t, "POST", "/api/v1/system/admin/session", jsonBody(t, map[string]string{
		"email":    "admin@example.com",
		"password": "not the password",
	}), nil)
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestUnknownRevokedExpiredKeysAllGet401(t *testing.T) {
	env := newTestEnv(t)

	revokedPlain, revokedKey := env.seedKey(t, "revoked", service.CreateKeyOptions{})
	if _, err := env.authSvc.RevokeAPIKey(context.Background(), revokedKey.ID); err != nil {
		t.Fatalf("RevokeAPIKey: %v", err)
	}

	past := time.Now().UTC().Add(-time.Hour)
	expiredPlain, _ := env.seedKey(t, "expired", service.CreateKeyOptions{ExpiresAt: &past})

	// Unknown, revoked, and expired keys are distinct internally but
	// indistinguishable to the caller.
	for name, key := range map[string]string{
		"unknown": "orch_0000000000000000000000000000000000000000000000000000000000000000",
		"revoked": revokedPlain,
		"expired": expiredPlain,
	} {
		rr := env.doAPIKey(t, "GET", "/api/v1/companies", nil, key)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s key: status = %d, want 401", name, rr.Code)
		}
		if msg := assertErrorEnvelope(t, rr); msg != "Invalid API key" {
			t.Errorf("%s key: message = %q, want identical message for all", name, msg)
		}
	}
}

func TestKeyAcceptedAsBearer(t *testing.T) {
	env := newTestEnv(t)
	plaintext, _ := env.seedKey(t, "bearer key", service.CreateKeyOptions{Scopes: []string{"*"}})

	rr := env.doAuth(t, "GET", "/api/v1/companies", nil, plaintext)
	assertStatus(t, rr, http.StatusOK)
}

// ---------------------------------------------------------------------------
// Key management API
// ---------------------------------------------------------------------------

func TestCreateKeyViaAPI(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	rr := env.doAuth(t, "POST", "/api/v1/system/api-key", jsonBody(t, map[string]interface{}{
		"name":   "integration",
		"scopes": []string{"read:companies"},
	}), token)
	assertStatus(t, rr, http.StatusCreated)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Key    string        `json:"key"`
			APIKey *model.APIKey `json:"api_key"`
		} `json:"data"`
	}
	decodeJSON(t, rr, &resp)
	if !resp.Success {
		t.Error("success envelope not set")
	}
	if resp.Data.Key == "" {
		t.Fatal("plaintext key missing from creation response")
	}

	// The plaintext never appears again: list responses carry the prefix only.
	stored, err := env.store.GetAPIKey(context.Background(), resp.Data.APIKey.ID)
	if err != nil {
		t.Fatalf("GetAPIKey: %v", err)
	}
	rr = env.doAuth(t, "GET", "/api/v1/system/api-key", nil, token)
	assertStatus(t, rr, http.StatusOK)
	if bytes.Contains(rr.Body.Bytes(), []byte(resp.Data.Key)) {
		t.Error("list response leaks the plaintext key")
	}
	if bytes.Contains(rr.Body.Bytes(), []byte(stored.KeyHash)) {
		t.Error("list response leaks the key hash")
	}
}

func TestKeyManagementRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	plaintext, _ := env.seedKey(t, "not admin", service.CreateKeyOptions{Scopes: []string{"*"}})

	rr := env.doAPIKey(t, "GET", "/api/v1/system/api-key", nil, plaintext)
	assertStatus(t, rr, http.StatusForbidden)
}

func TestRevokeKeyViaAPI(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)
	plaintext, key := env.seedKey(t, "doomed", service.CreateKeyOptions{Scopes: []string{"*"}})

	rr := env.doAuth(t, "DELETE", fmt.Sprintf("/api/v1/system/api-key/%d", key.ID), nil, token)
	assertStatus(t, rr, http.StatusOK)

	rr = env.doAPIKey(t, "GET", "/api/v1/companies", nil, plaintext)
	assertStatus(t, rr, http.StatusUnauthorized)
}

// ---------------------------------------------------------------------------
// Scopes
// ---------------------------------------------------------------------------

func TestScopeEnforcement(t *testing.T) {
	env := newTestEnv(t)
	plaintext, _ := env.seedKey(t, "read only", service.CreateKeyOptions{
		Scopes: []string{"read:companies"},
	})

	rr := env.doAPIKey(t, "GET", "/api/v1/companies", nil, plaintext)
	assertStatus(t, rr, http.StatusOK)

	rr = env.doAPIKey(t, "POST", "/api/v1/companies", jsonBody(t, map[string]string{
		"name": "Acme",
	}), plaintext)
	assertStatus(t, rr, http.StatusForbidden)
	assertErrorEnvelope(t, rr)

	rr = env.doAPIKey(t, "GET", "/api/v1/projects", nil, plaintext)
	assertStatus(t, rr, http.StatusForbidden)
}

// ---------------------------------------------------------------------------
// Tenant isolation
// ---------------------------------------------------------------------------

func TestTenantMaskedAs404(t *testing.T) {
	env := newTestEnv(t)
	acme := env.seedCompany(t, "Acme")
	globex := env.seedCompany(t, "Globex")
	globexInst := env.seedInstance(t, globex.ID)

	plaintext, _ := env.seedKey(t, "acme key", service.CreateKeyOptions{
		CompanyID: &acme.ID,
		Scopes:    []string{"*"},
	})

	// Own tenant resolves.
	rr := env.doAPIKey(t, "GET", fmt.Sprintf("/api/v1/companies/%d", acme.ID), nil, plaintext)
	assertStatus(t, rr, http.StatusOK)

	// Another tenant's company and instance are indistinguishable from
	// nonexistent ones.
	for _, path := range []string{
		fmt.Sprintf("/api/v1/companies/%d", globex.ID),
		fmt.Sprintf("/api/v1/instances/%d", globexInst.ID),
		"/api/v1/companies/999999",
	} {
		rr := env.doAPIKey(t, "GET", path, nil, plaintext)
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, rr.Code)
			continue
		}
		if msg := assertErrorEnvelope(t, rr); msg != "Not found" {
			t.Errorf("%s: message = %q, want uniform mask", path, msg)
		}
	}
}

func TestScopedKeyListsOnlyOwnTenant(t *testing.T) {
	env := newTestEnv(t)
	acme := env.seedCompany(t, "Acme")
	env.seedCompany(t, "Globex")

	plaintext, _ := env.seedKey(t, "acme key", service.CreateKeyOptions{
		CompanyID: &acme.ID,
		Scopes:    []string{"read:companies"},
	})

	rr := env.doAPIKey(t, "GET", "/api/v1/companies", nil, plaintext)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Data []model.Company `json:"data"`
	}
	decodeJSON(t, rr, &resp)
	if len(resp.Data) != 1 || resp.Data[0].ID != acme.ID {
		t.Errorf("scoped list = %v", resp.Data)
	}
}

func TestScopedKeyCannotCreateCompanies(t *testing.T) {
	env := newTestEnv(t)
	acme := env.seedCompany(t, "Acme")

	plaintext, _ := env.seedKey(t, "acme key", service.CreateKeyOptions{
		CompanyID: &acme.ID,
		Scopes:    []string{"*"},
	})

	rr := env.doAPIKey(t, "POST", "/api/v1/companies", jsonBody(t, map[string]string{
		"name": "Sneaky Tenant",
	}), plaintext)
	assertStatus(t, rr, http.StatusForbidden)
}

// ---------------------------------------------------------------------------
// Rate limiting
// ---------------------------------------------------------------------------

func TestPerKeyRateLimit(t *testing.T) {
	env := newTestEnv(t)
	plaintext, _ := env.seedKey(t, "throttled", service.CreateKeyOptions{
		Scopes:             []string{"*"},
		RateLimitPerMinute: 2,
	})

	for i := 0; i < 2; i++ {
		rr := env.doAPIKey(t, "GET", "/api/v1/companies", nil, plaintext)
		assertStatus(t, rr, http.StatusOK)
	}

	rr := env.doAPIKey(t, "GET", "/api/v1/companies", nil, plaintext)
	assertStatus(t, rr, http.StatusTooManyRequests)
	if rr.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}
	assertErrorEnvelope(t, rr)
}

func TestUnlimitedKeyNotThrottled(t *testing.T) {
	env := newTestEnv(t)
	plaintext, _ := env.seedKey(t, "unlimited", service.CreateKeyOptions{Scopes: []string{"*"}})

	for i := 0; i < 20; i++ {
		rr := env.doAPIKey(t, "GET", "/api/v1/companies", nil, plaintext)
		assertStatus(t, rr, http.StatusOK)
	}
}

// ---------------------------------------------------------------------------
// Resource CRUD
// ---------------------------------------------------------------------------

func TestCompanyLifecycleViaAPI(t *testing.T) {
	env := newTestEnv(t)
	plaintext, _ := env.seedKey(t, "global", service.CreateKeyOptions{Scopes: []string{"*"}})

	rr := env.doAPIKey(t, "POST", "/api/v1/companies", jsonBody(t, map[string]string{
		"name": "Acme Corp",
	}), plaintext)
	assertStatus(t, rr, http.StatusCreated)

	var created struct {
		Data model.Company `json:"data"`
	}
	decodeJSON(t, rr, &created)
	if created.Data.Slug != "acme-corp" {
		t.Errorf("slug = %q, want acme-corp", created.Data.Slug)
	}

	// Duplicate slug is a client error, not a 500.
	rr = env.doAPIKey(t, "POST", "/api/v1/companies", jsonBody(t, map[string]string{
		"name": "Acme Corp",
	}), plaintext)
	assertStatus(t, rr, http.StatusBadRequest)

	rr = env.doAPIKey(t, "PUT", fmt.Sprintf("/api/v1/companies/%d", created.Data.ID),
		jsonBody(t, map[string]string{"name": "Acme Inc"}), plaintext)
	assertStatus(t, rr, http.StatusOK)

	rr = env.doAPIKey(t, "DELETE", fmt.Sprintf("/api/v1/companies/%d", created.Data.ID), nil, plaintext)
	assertStatus(t, rr, http.StatusOK)

	rr = env.doAPIKey(t, "GET", fmt.Sprintf("/api/v1/companies/%d", created.Data.ID), nil, plaintext)
	assertStatus(t, rr, http.StatusNotFound)
}

func TestProjectStatusValidation(t *testing.T) {
	env := newTestEnv(t)
	acme := env.seedCompany(t, "Acme")
	plaintext, _ := env.seedKey(t, "global", service.CreateKeyOptions{Scopes: []string{"*"}})

	rr := env.doAPIKey(t, "POST", "/api/v1/projects", jsonBody(t, map[string]interface{}{
		"company_id": acme.ID,
		"name":       "Rollout",
		"status":     "bogus",
	}), plaintext)
	assertStatus(t, rr, http.StatusBadRequest)

	rr = env.doAPIKey(t, "POST", "/api/v1/projects", jsonBody(t, map[string]interface{}{
		"company_id": acme.ID,
		"name":       "Rollout",
		"status":     "build",
	}), plaintext)
	assertStatus(t, rr, http.StatusCreated)
}

func TestInstancePasswordNeverReturned(t *testing.T) {
	env := newTestEnv(t)
	acme := env.seedCompany(t, "Acme")
	env.seedInstance(t, acme.ID)
	plaintext, _ := env.seedKey(t, "global", service.CreateKeyOptions{Scopes: []string{"*"}})

	rr := env.doAPIKey(t, "GET", "/api/v1/instances", nil, plaintext)
	assertStatus(t, rr, http.StatusOK)
	if bytes.Contains(rr.Body.Bytes(), []byte("odoo-secret")) {
		t.Error("instance list leaks the Odoo password")
	}
}

// ---------------------------------------------------------------------------
// Odoo proxy
// ---------------------------------------------------------------------------

func TestInstanceConnectionTest(t *testing.T) {
	env := newTestEnv(t)
	acme := env.seedCompany(t, "Acme")
	inst := env.seedInstance(t, acme.ID)
	plaintext, _ := env.seedKey(t, "global", service.CreateKeyOptions{Scopes: []string{"*"}})

	rr := env.doAPIKey(t, "POST", fmt.Sprintf("/api/v1/instances/%d/test", inst.ID), nil, plaintext)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Data odoo.TestResult `json:"data"`
	}
	decodeJSON(t, rr, &resp)
	if !resp.Data.Success || resp.Data.Version != "17.0" {
		t.Errorf("result = %+v", resp.Data)
	}
}

func TestInstanceConnectionTestFailureStill200(t *testing.T) {
	env := newTestEnv(t)
	acme := env.seedCompany(t, "Acme")
	inst := env.seedInstance(t, acme.ID)
	plaintext, _ := env.seedKey(t, "global", service.CreateKeyOptions{Scopes: []string{"*"}})

	env.odoo.responses["authenticate"] = false // bad credentials

	rr := env.doAPIKey(t, "POST", fmt.Sprintf("/api/v1/instances/%d/test", inst.ID), nil, plaintext)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Data odoo.TestResult `json:"data"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Data.Success || resp.Data.Error == "" {
		t.Errorf("result = %+v", resp.Data)
	}
}

func TestOdooProxySearchAndRead(t *testing.T) {
	env := newTestEnv(t)
	acme := env.seedCompany(t, "Acme")
	inst := env.seedInstance(t, acme.ID)
	plaintext, _ := env.seedKey(t, "global", service.CreateKeyOptions{Scopes: []string{"read:odoo"}})

	env.odoo.responses["execute_kw"] = []interface{}{int64(10), int64(11)}

	rr := env.doAPIKey(t, "GET",
		fmt.Sprintf("/api/v1/instances/%d/models/res.partner/records", inst.ID), nil, plaintext)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Data struct {
			IDs []int64 `json:"ids"`
		} `json:"data"`
	}
	decodeJSON(t, rr, &resp)
	if len(resp.Data.IDs) != 2 {
		t.Errorf("ids = %v", resp.Data.IDs)
	}
}

func TestOdooProxyCreate(t *testing.T) {
	env := newTestEnv(t)
	acme := env.seedCompany(t, "Acme")
	inst := env.seedInstance(t, acme.ID)
	plaintext, _ := env.seedKey(t, "writer", service.CreateKeyOptions{Scopes: []string{"write:odoo"}})

	env.odoo.responses["execute_kw"] = int64(42)

	rr := env.doAPIKey(t, "POST",
		fmt.Sprintf("/api/v1/instances/%d/models/res.partner/records", inst.ID),
		jsonBody(t, map[string]interface{}{
			"values": map[string]interface{}{"name": "New Partner"},
		}), plaintext)
	assertStatus(t, rr, http.StatusCreated)

	var resp struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Data.ID != 42 {
		t.Errorf("id = %d, want 42", resp.Data.ID)
	}
}

func TestOdooProxyScopeSplit(t *testing.T) {
	env := newTestEnv(t)
	acme := env.seedCompany(t, "Acme")
	inst := env.seedInstance(t, acme.ID)
	plaintext, _ := env.seedKey(t, "reader", service.CreateKeyOptions{Scopes: []string{"read:odoo"}})

	rr := env.doAPIKey(t, "POST",
		fmt.Sprintf("/api/v1/instances/%d/models/res.partner/records", inst.ID),
		jsonBody(t, map[string]interface{}{
			"values": map[string]interface{}{"name": "Nope"},
		}), plaintext)
	assertStatus(t, rr, http.StatusForbidden)
}

func TestOdooProxyRemoteFailureIs502(t *testing.T) {
	env := newTestEnv(t)
	acme := env.seedCompany(t, "Acme")
	inst := env.seedInstance(t, acme.ID)
	plaintext, _ := env.seedKey(t, "reader", service.CreateKeyOptions{Scopes: []string{"read:odoo"}})

	env.odoo.errs["execute_kw"] = &odoo.Fault{Code: 2, Message: "Access Denied"}

	rr := env.doAPIKey(t, "GET",
		fmt.Sprintf("/api/v1/instances/%d/models/res.partner/records", inst.ID), nil, plaintext)
	assertStatus(t, rr, http.StatusBadGateway)
	assertErrorEnvelope(t, rr)
}
