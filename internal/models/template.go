// Package models holds the durable database row types owned by the
// template engine.
package models

import "time"

// Template is one versioned row of a (template_code, language) lineage.
// Primary lookup is (template_code, language, is_active=true, max(version)).
type Template struct {
	ID           int64     `db:"id"`
	TemplateCode string    `db:"template_code"`
	Language     string    `db:"language"`
	Version      int       `db:"version"`
	Name         string    `db:"name"`
	Subject      string    `db:"subject"`
	Body         string    `db:"body"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	CreatedBy    string    `db:"created_by"`
}
