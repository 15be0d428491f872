package models

import (
	"time"
)

// ProjectStatus values for projects created by automation steps
const (
	ProjectStatusActive = "Active"
	ProjectHealthGreen  = "Green"
)

// Project is a delivery-side project record. The automation engine only ever
// inserts projects; editing happens elsewhere in the product.
type Project struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	ClientID       *string   `json:"client_id,omitempty"`
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	Phase          string    `json:"phase"`
	Health         string    `json:"health"`
	StartDate      time.Time `json:"start_date"`
	OwnerID        string    `json:"owner_id"`
	Progress       int       `json:"progress"`
}

// ProjectKickoff carries the kickoff agenda for a newly created project. The
// agenda is a free-form map whose "checklist" key holds the working checklist.
type ProjectKickoff struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	ClientID    *string        `json:"client_id,omitempty"`
	OwnerID     string         `json:"owner_id"`
	KickoffDate time.Time      `json:"kickoff_date"`
	Agenda      map[string]any `json:"agenda"`
}

// InvoiceScheduleStatus values
const (
	InvoiceScheduleStatusScheduled = "scheduled"
)

// InvoiceSchedule is one planned installment of an invoice plan.
type InvoiceSchedule struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	ClientID       string    `json:"client_id"`
	ProjectID      *string   `json:"project_id,omitempty"`
	Amount         float64   `json:"amount"`
	DueDate        time.Time `json:"due_date"`
	Status         string    `json:"status"`
}
