package model

import (
	"strings"
	"time"
)

// Company is a tenant: a client whose implementation projects and Odoo
// instances are isolated from every other company's data.
type Company struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Slug      string    `json:"slug" db:"slug"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Slugify lowercases and dash-joins a name for use as a URL-safe slug.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		default:
			return -1
		}
	}, slug)
	return strings.Trim(slug, "-")
}

// Project statuses follow the implementation lifecycle.
const (
	ProjectStatusDraft     = "draft"
	ProjectStatusDiscovery = "discovery"
	ProjectStatusBuild     = "build"
	ProjectStatusDeploy    = "deploy"
	ProjectStatusLive      = "live"
)

// Project is an Odoo implementation project owned by a company.
type Project struct {
	ID        int64     `json:"id" db:"id"`
	CompanyID int64     `json:"company_id" db:"company_id"`
	Name      string    `json:"name" db:"name"`
	Status    string    `json:"status" db:"status"`
	Notes     string    `json:"notes" db:"notes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ValidProjectStatus reports whether s is one of the known lifecycle states.
func ValidProjectStatus(s string) bool {
	switch s {
	case ProjectStatusDraft, ProjectStatusDiscovery, ProjectStatusBuild,
		ProjectStatusDeploy, ProjectStatusLive:
		return true
	}
	return false
}
