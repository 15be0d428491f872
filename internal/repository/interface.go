package repository

import (
	"context"
	"time"

	"revenueos/backend/pkg/models"
)

// OrganizationStore manages tenant records.
type OrganizationStore interface {
	// GetOrganizationByDomain retrieves an organization by its email domain.
	GetOrganizationByDomain(ctx context.Context, domain string) (*models.Organization, error)
	// CreateOrganization creates a new organization and assigns its ID.
	CreateOrganization(ctx context.Context, org *models.Organization) error
}

// PlaybookStore manages playbook definitions and their steps. Steps are
// replaced wholesale whenever a playbook is upserted.
type PlaybookStore interface {
	// ListPlaybooks returns all playbooks for an organization, newest first.
	ListPlaybooks(ctx context.Context, orgID string) ([]*models.Playbook, error)
	// GetPlaybook returns one playbook scoped to the organization.
	GetPlaybook(ctx context.Context, orgID, id string) (*models.Playbook, error)
	// ListPlaybooksForEvent returns non-archived playbooks whose trigger
	// event matches exactly.
	ListPlaybooksForEvent(ctx context.Context, orgID, triggerEvent string) ([]*models.Playbook, error)
	// UpsertPlaybook creates or replaces a playbook together with its steps.
	UpsertPlaybook(ctx context.Context, playbook *models.Playbook) error
	// SetPlaybookStatus updates the lifecycle status of a playbook.
	SetPlaybookStatus(ctx context.Context, orgID, id string, status models.PlaybookStatus) error
}

// RunStore records playbook runs and their per-step results. Runs are
// append-only except for the single terminal status transition.
type RunStore interface {
	// CreateRun inserts a new run in the processing state and assigns its ID.
	CreateRun(ctx context.Context, run *models.Run) error
	// FinishRun writes the terminal status and completion time of a run.
	FinishRun(ctx context.Context, runID string, status models.RunStatus, completedAt time.Time) error
	// CreateRunStepResult records the outcome of one attempted step.
	CreateRunStepResult(ctx context.Context, result *models.RunStepResult) error
}

// DeliveryStore holds the delivery-side rows written by step handlers.
type DeliveryStore interface {
	CreateProject(ctx context.Context, project *models.Project) error
	CreateProjectKickoff(ctx context.Context, kickoff *models.ProjectKickoff) error
	CreateInvoiceSchedules(ctx context.Context, entries []models.InvoiceSchedule) error
}

// Store is the full persistence surface of the service.
type Store interface {
	OrganizationStore
	PlaybookStore
	RunStore
	DeliveryStore
	Ping(ctx context.Context) error
}
