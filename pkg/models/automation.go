// Package models defines the domain models for the RevenueOS automation service
package models

import (
	"time"
)

// PlaybookStatus represents the lifecycle state of a playbook
type PlaybookStatus string

const (
	PlaybookStatusDraft    PlaybookStatus = "draft"
	PlaybookStatusActive   PlaybookStatus = "active"
	PlaybookStatusArchived PlaybookStatus = "archived"
)

// Workspace tags a step with the business area it belongs to. It is
// informational only and does not affect routing or execution.
type Workspace string

const (
	WorkspaceSales    Workspace = "sales"
	WorkspaceDelivery Workspace = "delivery"
	WorkspaceFinance  Workspace = "finance"
	WorkspaceOps      Workspace = "ops"
)

// RunStatus represents the state of a playbook run
type RunStatus string

const (
	RunStatusProcessing RunStatus = "processing"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
)

// StepStatus represents the outcome of a single step within a run
type StepStatus string

const (
	StepStatusCompleted StepStatus = "completed"
	StepStatusSkipped   StepStatus = "skipped"
	StepStatusFailed    StepStatus = "failed"
)

// Step is one configured action within a playbook. Steps are owned by their
// parent playbook and are replaced wholesale on edit.
type Step struct {
	ID         string         `json:"id"`
	PlaybookID string         `json:"playbook_id"`
	SortOrder  int            `json:"sort_order"`
	Workspace  Workspace      `json:"workspace"`
	Action     string         `json:"action"`
	Config     map[string]any `json:"config"`
}

// Playbook is a named, ordered sequence of automation steps bound to a
// trigger event (e.g. "pipeline.closed_won").
type Playbook struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Name           string         `json:"name"`
	Description    *string        `json:"description,omitempty"`
	TriggerEvent   string         `json:"trigger_event"`
	Status         PlaybookStatus `json:"status"`
	Configuration  map[string]any `json:"configuration"`
	CreatedBy      string         `json:"created_by,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      *time.Time     `json:"updated_at,omitempty"`
	Steps          []Step         `json:"steps"`
}

// Run is one execution instance of a playbook against a specific context.
// Runs are append-only except for their terminal status and timestamp.
type Run struct {
	ID             string         `json:"id"`
	PlaybookID     string         `json:"playbook_id"`
	OrganizationID string         `json:"organization_id"`
	TriggeredBy    string         `json:"triggered_by"`
	Context        map[string]any `json:"context"`
	Status         RunStatus      `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// RunStepResult is the write-once record of one attempted step within a run.
type RunStepResult struct {
	ID          string         `json:"id"`
	RunID       string         `json:"run_id"`
	StepID      string         `json:"step_id"`
	Workspace   Workspace      `json:"workspace"`
	Action      string         `json:"action"`
	Status      StepStatus     `json:"status"`
	Output      map[string]any `json:"output"`
	CompletedAt time.Time      `json:"completed_at"`
}

// StepResult is the in-memory outcome of one step, returned to callers as
// part of a RunResult.
type StepResult struct {
	StepID string         `json:"step_id"`
	Status StepStatus     `json:"status"`
	Output map[string]any `json:"output,omitempty"`
}

// RunResult summarizes a finished orchestration invocation. StepResults stops
// at (and includes) the first failing step.
type RunResult struct {
	RunID       string       `json:"run_id"`
	Status      RunStatus    `json:"status"`
	StepResults []StepResult `json:"step_results"`
}
