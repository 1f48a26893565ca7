package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ScopeWildcard authorizes every operation regardless of the required scope.
const ScopeWildcard = "*"

// Scope tokens understood by the API. Read scopes gate GET routes, write
// scopes gate mutations. The odoo scopes gate the remote proxy rather than
// the stored configuration.
const (
	ScopeReadCompanies  = "read:companies"
	ScopeWriteCompanies = "write:companies"
	ScopeReadProjects   = "read:projects"
	ScopeWriteProjects  = "write:projects"
	ScopeReadInstances  = "read:instances"
	ScopeWriteInstances = "write:instances"
	ScopeReadOdoo       = "read:odoo"
	ScopeWriteOdoo      = "write:odoo"
)

// ScopeList is a set of scope tokens granted to an API key, stored as a JSON
// array in a single text column.
type ScopeList []string

// Contains reports whether the list satisfies the required scope, either by
// an exact match or by holding the wildcard scope.
func (s ScopeList) Contains(required string) bool {
	for _, scope := range s {
		if scope == required || scope == ScopeWildcard {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer so sqlx can persist the list as JSON text.
func (s ScopeList) Value() (driver.Value, error) {
	if s == nil {
		s = ScopeList{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for reading the JSON text column back.
func (s *ScopeList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = ScopeList{}
		return nil
	case string:
		return json.Unmarshal([]byte(v), s)
	case []byte:
		return json.Unmarshal(v, s)
	default:
		return fmt.Errorf("cannot scan %T into ScopeList", src)
	}
}

// APIKey represents a credential for the public API. The raw key is disclosed
// exactly once at creation; only a SHA-256 hash and a short display prefix
// are persisted.
type APIKey struct {
	ID                 int64      `json:"id" db:"id"`
	KeyHash            string     `json:"-" db:"key_hash"` // SHA-256 hash, never expose
	KeyPrefix          string     `json:"key_prefix" db:"key_prefix"`
	Name               string     `json:"name" db:"name"`
	Scopes             ScopeList  `json:"scopes" db:"scopes"`
	CompanyID          *int64     `json:"company_id,omitempty" db:"company_id"` // nil means the key is global
	UserID             string     `json:"user_id" db:"user_id"`
	RateLimitPerMinute int        `json:"rate_limit_per_minute" db:"rate_limit_per_minute"`
	RateLimitPerHour   int        `json:"rate_limit_per_hour" db:"rate_limit_per_hour"`
	RateLimitPerDay    int        `json:"rate_limit_per_day" db:"rate_limit_per_day"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	RevokedAt          *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	LastUsedAt         *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
}

// Revoked reports whether the key has been explicitly disabled. Revocation is
// one-way; a revoked key can only be replaced by issuing a new one.
func (k *APIKey) Revoked() bool {
	return k.RevokedAt != nil
}

// Expired reports whether the key's expiry, if set, has passed. Expiry is a
// derived condition evaluated at validation time and never written back.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}
