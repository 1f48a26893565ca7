package config

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/odoohq/orchestrator/internal/model"
)

// Store manages the orchestrator's internal state backed by SQLite. It
// persists companies, projects, Odoo instance configurations, API keys, and
// admin accounts.
type Store struct {
	db *sqlx.DB
}

// NewStore opens (or creates) the store. Pass an empty string for an
// in-memory database, which tests rely on.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "orchestrator.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---------------------------------------------------------------------------
// Companies
// ---------------------------------------------------------------------------

// CreateCompany inserts a new company. ID and timestamps are populated on
// success.
func (s *Store) CreateCompany(ctx context.Context, c *model.Company) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	const q = `INSERT INTO companies (name, slug, is_active, created_at, updated_at)
		VALUES (:name, :slug, :is_active, :created_at, :updated_at)`

	result, err := s.db.NamedExecContext(ctx, q, c)
	if err != nil {
		return fmt.Errorf("insert company: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get company id: %w", err)
	}
	c.ID = id
	return nil
}

// GetCompany returns a company by ID.
func (s *Store) GetCompany(ctx context.Context, id int64) (*model.Company, error) {
	var c model.Company
	if err := s.db.GetContext(ctx, &c, "SELECT * FROM companies WHERE id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &c, nil
}

// GetCompanyBySlug returns a company by its unique slug.
func (s *Store) GetCompanyBySlug(ctx context.Context, slug string) (*model.Company, error) {
	var c model.Company
	if err := s.db.GetContext(ctx, &c, "SELECT * FROM companies WHERE slug = ?", slug); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get company by slug: %w", err)
	}
	return &c, nil
}

// ListCompanies returns all companies ordered by name.
func (s *Store) ListCompanies(ctx context.Context) ([]model.Company, error) {
	var companies []model.Company
	if err := s.db.SelectContext(ctx, &companies, "SELECT * FROM companies ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return companies, nil
}

// UpdateCompany updates an existing company. UpdatedAt is refreshed.
func (s *Store) UpdateCompany(ctx context.Context, c *model.Company) error {
	c.UpdatedAt = time.Now().UTC()

	const q = `UPDATE companies SET name = :name, slug = :slug,
		is_active = :is_active, updated_at = :updated_at WHERE id = :id`

	result, err := s.db.NamedExecContext(ctx, q, c)
	if err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	return rowsAffectedOrNotFound(result, "update company")
}

// DeleteCompany removes a company and, via foreign keys, its projects,
// instances, and company-scoped API keys.
func (s *Store) DeleteCompany(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM companies WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete company: %w", err)
	}
	return rowsAffectedOrNotFound(result, "delete company")
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

// CreateProject inserts a new project.
func (s *Store) CreateProject(ctx context.Context, p *model.Project) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = model.ProjectStatusDraft
	}

	const q = `INSERT INTO projects (company_id, name, status, notes, created_at, updated_at)
		VALUES (:company_id, :name, :status, :notes, :created_at, :updated_at)`

	result, err := s.db.NamedExecContext(ctx, q, p)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get project id: %w", err)
	}
	p.ID = id
	return nil
}

// GetProject returns a project by ID.
func (s *Store) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	var p model.Project
	if err := s.db.GetContext(ctx, &p, "SELECT * FROM projects WHERE id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// ListProjects returns projects, optionally restricted to one company.
// Pass nil to list across all tenants.
func (s *Store) ListProjects(ctx context.Context, companyID *int64) ([]model.Project, error) {
	var projects []model.Project
	var err error
	if companyID != nil {
		err = s.db.SelectContext(ctx, &projects,
			"SELECT * FROM projects WHERE company_id = ? ORDER BY created_at DESC", *companyID)
	} else {
		err = s.db.SelectContext(ctx, &projects,
			"SELECT * FROM projects ORDER BY created_at DESC")
	}
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// UpdateProject updates an existing project.
func (s *Store) UpdateProject(ctx context.Context, p *model.Project) error {
	p.UpdatedAt = time.Now().UTC()

	const q = `UPDATE projects SET name = :name, status = :status, notes = :notes,
		updated_at = :updated_at WHERE id = :id`

	result, err := s.db.NamedExecContext(ctx, q, p)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return rowsAffectedOrNotFound(result, "update project")
}

// DeleteProject removes a project by ID.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return rowsAffectedOrNotFound(result, "delete project")
}

// ---------------------------------------------------------------------------
// Odoo instances
// ---------------------------------------------------------------------------

// CreateInstance inserts a new Odoo instance configuration.
func (s *Store) CreateInstance(ctx context.Context, inst *model.OdooInstance) error {
	now := time.Now().UTC()
	inst.CreatedAt = now
	inst.UpdatedAt = now

	const q = `INSERT INTO odoo_instances
		(company_id, name, url, database_name, username, password, is_active, created_at, updated_at)
		VALUES
		(:company_id, :name, :url, :database_name, :username, :password, :is_active, :created_at, :updated_at)`

	result, err := s.db.NamedExecContext(ctx, q, inst)
	if err != nil {
		return fmt.Errorf("insert instance: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get instance id: %w", err)
	}
	inst.ID = id
	return nil
}

// GetInstance returns an Odoo instance configuration by ID.
func (s *Store) GetInstance(ctx context.Context, id int64) (*model.OdooInstance, error) {
	var inst model.OdooInstance
	if err := s.db.GetContext(ctx, &inst, "SELECT * FROM odoo_instances WHERE id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return &inst, nil
}

// ListInstances returns instance configurations, optionally restricted to one
// company.
func (s *Store) ListInstances(ctx context.Context, companyID *int64) ([]model.OdooInstance, error) {
	var instances []model.OdooInstance
	var err error
	if companyID != nil {
		err = s.db.SelectContext(ctx, &instances,
			"SELECT * FROM odoo_instances WHERE company_id = ? ORDER BY name", *companyID)
	} else {
		err = s.db.SelectContext(ctx, &instances,
			"SELECT * FROM odoo_instances ORDER BY name")
	}
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	return instances, nil
}

// UpdateInstance updates an instance configuration. An empty password leaves
// the stored secret untouched so clients never need to echo it back.
func (s *Store) UpdateInstance(ctx context.Context, inst *model.OdooInstance) error {
	inst.UpdatedAt = time.Now().UTC()

	q := `UPDATE odoo_instances SET name = :name, url = :url,
		database_name = :database_name, username = :username,
		is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if inst.Password != "" {
		q = `UPDATE odoo_instances SET name = :name, url = :url,
			database_name = :database_name, username = :username, password = :password,
			is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	}

	result, err := s.db.NamedExecContext(ctx, q, inst)
	if err != nil {
		return fmt.Errorf("update instance: %w", err)
	}
	return rowsAffectedOrNotFound(result, "update instance")
}

// DeleteInstance removes an instance configuration by ID.
func (s *Store) DeleteInstance(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM odoo_instances WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	return rowsAffectedOrNotFound(result, "delete instance")
}

// ---------------------------------------------------------------------------
// API keys
// ---------------------------------------------------------------------------

// CreateAPIKey inserts a new API key record. The key_hash must already be set
// (use HashAPIKey). ID and CreatedAt are populated after insert.
func (s *Store) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	key.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO api_keys
		(key_hash, key_prefix, name, scopes, company_id, user_id,
		 rate_limit_per_minute, rate_limit_per_hour, rate_limit_per_day,
		 expires_at, created_at)
		VALUES
		(:key_hash, :key_prefix, :name, :scopes, :company_id, :user_id,
		 :rate_limit_per_minute, :rate_limit_per_hour, :rate_limit_per_day,
		 :expires_at, :created_at)`

	result, err := s.db.NamedExecContext(ctx, q, key)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get api key id: %w", err)
	}
	key.ID = id
	return nil
}

// GetAPIKey returns an API key record by ID.
func (s *Store) GetAPIKey(ctx context.Context, id int64) (*model.APIKey, error) {
	var key model.APIKey
	if err := s.db.GetContext(ctx, &key, "SELECT * FROM api_keys WHERE id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return &key, nil
}

// GetAPIKeyByHash looks up an API key by its SHA-256 hash.
func (s *Store) GetAPIKeyByHash(ctx context.Context, hash string) (*model.APIKey, error) {
	var key model.APIKey
	if err := s.db.GetContext(ctx, &key, "SELECT * FROM api_keys WHERE key_hash = ?", hash); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get api key by hash: %w", err)
	}
	return &key, nil
}

// ListAPIKeys returns all API keys, newest first.
func (s *Store) ListAPIKeys(ctx context.Context) ([]model.APIKey, error) {
	var keys []model.APIKey
	if err := s.db.SelectContext(ctx, &keys, "SELECT * FROM api_keys ORDER BY created_at DESC"); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey sets revoked_at on a key. Revoking an already-revoked key is
// not an error; the original revocation timestamp is kept.
func (s *Store) RevokeAPIKey(ctx context.Context, id int64) (*model.APIKey, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		"UPDATE api_keys SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL", now, id)
	if err != nil {
		return nil, fmt.Errorf("revoke api key: %w", err)
	}
	if _, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("revoke api key rows affected: %w", err)
	}
	return s.GetAPIKey(ctx, id)
}

// DeleteAPIKey hard-deletes a key record. Unlike revocation this is
// irreversible and leaves no audit trail.
func (s *Store) DeleteAPIKey(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM api_keys WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	return rowsAffectedOrNotFound(result, "delete api key")
}

// TouchAPIKey sets the last_used_at timestamp for a key.
func (s *Store) TouchAPIKey(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		"UPDATE api_keys SET last_used_at = ? WHERE id = ?", now, id); err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Admins
// ---------------------------------------------------------------------------

// CreateAdmin inserts a new admin account.
func (s *Store) CreateAdmin(ctx context.Context, a *model.Admin) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	const q = `INSERT INTO admins (email, password_hash, name, is_active, created_at, updated_at)
		VALUES (:email, :password_hash, :name, :is_active, :created_at, :updated_at)`

	result, err := s.db.NamedExecContext(ctx, q, a)
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get admin id: %w", err)
	}
	a.ID = id
	return nil
}

// GetAdminByEmail returns an admin account by email.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error) {
	var a model.Admin
	if err := s.db.GetContext(ctx, &a, "SELECT * FROM admins WHERE email = ?", email); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	return &a, nil
}

// ListAdmins returns all admin accounts.
func (s *Store) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	var admins []model.Admin
	if err := s.db.SelectContext(ctx, &admins, "SELECT * FROM admins ORDER BY email"); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// HasAnyAdmin reports whether at least one admin account exists, used for
// first-run detection.
func (s *Store) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM admins"); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count > 0, nil
}

// UpdateAdminLastLogin sets the last_login_at timestamp.
func (s *Store) UpdateAdminLastLogin(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		"UPDATE admins SET last_login_at = ? WHERE id = ?", now, id)
	if err != nil {
		return fmt.Errorf("update admin last login: %w", err)
	}
	return rowsAffectedOrNotFound(result, "update admin last login")
}

// ---------------------------------------------------------------------------
// Settings
// ---------------------------------------------------------------------------

// GetSetting returns the value for a settings key, or ErrNotFound.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	if err := s.db.GetContext(ctx, &value, "SELECT value FROM settings WHERE key = ?", key); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// SetSetting upserts a settings key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	const q = `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := s.db.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Utility
// ---------------------------------------------------------------------------

// HashAPIKey returns the hex-encoded SHA-256 hash of a raw API key string.
func HashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

func rowsAffectedOrNotFound(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
