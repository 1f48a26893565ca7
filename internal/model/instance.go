package model

import "time"

// OdooInstance holds the connection configuration for a company's Odoo
// deployment. The password is an opaque at-rest secret and is stripped from
// every list/read response by the handler layer.
type OdooInstance struct {
	ID        int64     `json:"id" db:"id"`
	CompanyID int64     `json:"company_id" db:"company_id"`
	Name      string    `json:"name" db:"name"`
	URL       string    `json:"url" db:"url"`
	Database  string    `json:"database" db:"database_name"`
	Username  string    `json:"username" db:"username"`
	Password  string    `json:"-" db:"password"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
