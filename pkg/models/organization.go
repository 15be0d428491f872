package models

import (
	"time"
)

// Organization is the tenant boundary. Every playbook, run, and delivery
// record is scoped to exactly one organization.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
