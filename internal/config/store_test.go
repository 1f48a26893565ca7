package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/odoohq/orchestrator/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore("") // in-memory
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedCompany(t *testing.T, s *Store, name string) *model.Company {
	t.Helper()
	c := &model.Company{Name: name, Slug: model.Slugify(name), IsActive: true}
	if err := s.CreateCompany(context.Background(), c); err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}
	return c
}

func TestCompanyCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := seedCompany(t, s, "Acme Corp")
	if c.ID == 0 {
		t.Fatal("expected non-zero ID after create")
	}

	got, err := s.GetCompany(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCompany: %v", err)
	}
	if got.Name != "Acme Corp" || got.Slug != "acme-corp" {
		t.Errorf("got %q/%q", got.Name, got.Slug)
	}

	bySlug, err := s.GetCompanyBySlug(ctx, "acme-corp")
	if err != nil {
		t.Fatalf("GetCompanyBySlug: %v", err)
	}
	if bySlug.ID != c.ID {
		t.Errorf("got ID %d, want %d", bySlug.ID, c.ID)
	}

	c.Name = "Acme Corporation"
	if err := s.UpdateCompany(ctx, c); err != nil {
		t.Fatalf("UpdateCompany: %v", err)
	}
	got, _ = s.GetCompany(ctx, c.ID)
	if got.Name != "Acme Corporation" {
		t.Errorf("got name %q after update", got.Name)
	}

	list, err := s.ListCompanies(ctx)
	if err != nil {
		t.Fatalf("ListCompanies: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("got %d companies, want 1", len(list))
	}

	if err := s.DeleteCompany(ctx, c.ID); err != nil {
		t.Fatalf("DeleteCompany: %v", err)
	}
	if _, err := s.GetCompany(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCompanySlugUnique(t *testing.T) {
	s := newTestStore(t)
	seedCompany(t, s, "Acme")

	dup := &model.Company{Name: "Acme 2", Slug: "acme", IsActive: true}
	if err := s.CreateCompany(context.Background(), dup); err == nil {
		t.Error("expected unique constraint violation for duplicate slug")
	}
}

func TestProjectCRUDAndFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acme := seedCompany(t, s, "Acme")
	globex := seedCompany(t, s, "Globex")

	p1 := &model.Project{CompanyID: acme.ID, Name: "ERP rollout", Status: model.ProjectStatusBuild}
	p2 := &model.Project{CompanyID: globex.ID, Name: "Migration", Status: model.ProjectStatusDraft}
	for _, p := range []*model.Project{p1, p2} {
		if err := s.CreateProject(ctx, p); err != nil {
			t.Fatalf("CreateProject: %v", err)
		}
	}

	all, err := s.ListProjects(ctx, nil)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d projects, want 2", len(all))
	}

	scoped, err := s.ListProjects(ctx, &acme.ID)
	if err != nil {
		t.Fatalf("ListProjects scoped: %v", err)
	}
	if len(scoped) != 1 || scoped[0].ID != p1.ID {
		t.Errorf("scoped list = %v", scoped)
	}

	p1.Status = model.ProjectStatusLive
	if err := s.UpdateProject(ctx, p1); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	got, _ := s.GetProject(ctx, p1.ID)
	if got.Status != model.ProjectStatusLive {
		t.Errorf("status = %q after update", got.Status)
	}

	if err := s.DeleteProject(ctx, p1.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if _, err := s.GetProject(ctx, p1.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProjectsCascadeWithCompany(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acme := seedCompany(t, s, "Acme")
	p := &model.Project{CompanyID: acme.ID, Name: "Rollout", Status: model.ProjectStatusDraft}
	if err := s.CreateProject(ctx, p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	if err := s.DeleteCompany(ctx, acme.ID); err != nil {
		t.Fatalf("DeleteCompany: %v", err)
	}
	if _, err := s.GetProject(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("project should cascade with company, got %v", err)
	}
}

func TestInstanceCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acme := seedCompany(t, s, "Acme")
	inst := &model.OdooInstance{
		CompanyID: acme.ID,
		Name:      "production",
		URL:       "https://acme.odoo.com",
		Database:  "acme-prod",
		Username:  "api@acme.com",
		Password:  "supersecret",
		IsActive:  true,
	}
	if err := s.CreateInstance(ctx, inst); err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}

	got, err := s.GetInstance(ctx, inst.ID)
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if got.Password != "supersecret" {
		t.Errorf("stored password = %q", got.Password)
	}

	// Empty password on update keeps the stored secret.
	inst.Password = ""
	inst.Name = "prod"
	if err := s.UpdateInstance(ctx, inst); err != nil {
		t.Fatalf("UpdateInstance: %v", err)
	}
	got, _ = s.GetInstance(ctx, inst.ID)
	if got.Name != "prod" {
		t.Errorf("name = %q after update", got.Name)
	}
	if got.Password != "supersecret" {
		t.Errorf("empty update password should keep the stored one, got %q", got.Password)
	}

	if err := s.DeleteInstance(ctx, inst.ID); err != nil {
		t.Fatalf("DeleteInstance: %v", err)
	}
	if _, err := s.GetInstance(ctx, inst.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAPIKeyLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := &model.APIKey{
		KeyHash:   HashAPIKey("orch_test"),
		KeyPrefix: "orch_test",
		Name:      "ci",
		Scopes:    model.ScopeList{"read:companies"},
	}
	if err := s.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}

	byHash, err := s.GetAPIKeyByHash(ctx, HashAPIKey("orch_test"))
	if err != nil {
		t.Fatalf("GetAPIKeyByHash: %v", err)
	}
	if byHash.ID != key.ID {
		t.Errorf("got ID %d, want %d", byHash.ID, key.ID)
	}
	if !byHash.Scopes.Contains("read:companies") {
		t.Errorf("scopes did not round-trip: %v", byHash.Scopes)
	}

	if err := s.TouchAPIKey(ctx, key.ID); err != nil {
		t.Fatalf("TouchAPIKey: %v", err)
	}
	touched, _ := s.GetAPIKey(ctx, key.ID)
	if touched.LastUsedAt == nil {
		t.Error("last_used_at not set after touch")
	}

	revoked, err := s.RevokeAPIKey(ctx, key.ID)
	if err != nil {
		t.Fatalf("RevokeAPIKey: %v", err)
	}
	if !revoked.Revoked() {
		t.Error("key not marked revoked")
	}

	if err := s.DeleteAPIKey(ctx, key.ID); err != nil {
		t.Fatalf("DeleteAPIKey: %v", err)
	}
	if _, err := s.GetAPIKey(ctx, key.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAPIKeyExpiry(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	k := &model.APIKey{}
	if k.Expired(now) {
		t.Error("key without expiry considered expired")
	}
	k.ExpiresAt = &future
	if k.Expired(now) {
		t.Error("future expiry considered expired")
	}
	k.ExpiresAt = &past
	if !k.Expired(now) {
		t.Error("past expiry not considered expired")
	}
}

func TestSettings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetSetting(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := s.SetSetting(ctx, "theme", "dark"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := s.SetSetting(ctx, "theme", "light"); err != nil {
		t.Fatalf("SetSetting upsert: %v", err)
	}

	v, err := s.GetSetting(ctx, "theme")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if v != "light" {
		t.Errorf("value = %q, want light", v)
	}
}
