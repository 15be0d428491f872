package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"revenueos/backend/internal/auth"
	"revenueos/backend/internal/repository"
	"revenueos/backend/internal/services"
	"revenueos/backend/pkg/models"
)

// Step action names understood by this version of the executor. Playbooks may
// reference actions that are not registered; those steps are skipped, not
// failed, so playbooks stay forward compatible with newer action catalogs.
const (
	ActionLogClosedWonContext  = "log_closed_won_context"
	ActionCreateProjectKickoff = "create_project_kickoff"
	ActionScheduleInvoicePlan  = "schedule_invoice_plan"
)

// StepOutcome is the result of executing one step.
type StepOutcome struct {
	Status models.StepStatus
	Output map[string]any
}

// StepHandler executes one configured step against the run context. A
// returned error is converted by the engine into a failed step result with
// the message captured under output.error.
type StepHandler func(ctx context.Context, ac auth.Context, step models.Step, runContext map[string]any) (StepOutcome, error)

// Registry resolves step actions to handlers. Unregistered actions dispatch
// to a default that skips the step and echoes the action name back.
type Registry struct {
	handlers map[string]StepHandler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]StepHandler)}
}

// Register binds an action name to a handler, replacing any previous binding.
func (r *Registry) Register(action string, handler StepHandler) {
	r.handlers[action] = handler
}

// Dispatch runs the handler registered for the step's action.
func (r *Registry) Dispatch(ctx context.Context, ac auth.Context, step models.Step, runContext map[string]any) (StepOutcome, error) {
	handler, ok := r.handlers[step.Action]
	if !ok {
		return StepOutcome{
			Status: models.StepStatusSkipped,
			Output: map[string]any{"action": step.Action},
		}, nil
	}
	return handler(ctx, ac, step, runContext)
}

// Handlers implements the built-in step actions.
type Handlers struct {
	delivery  repository.DeliveryStore
	analytics services.AnalyticsPublisher
	now       func() time.Time
}

// NewHandlers creates the built-in handler set.
func NewHandlers(delivery repository.DeliveryStore, analytics services.AnalyticsPublisher) *Handlers {
	return &Handlers{
		delivery:  delivery,
		analytics: analytics,
		now:       time.Now,
	}
}

// Registry returns a Registry with all built-in actions registered.
func (h *Handlers) Registry() *Registry {
	registry := NewRegistry()
	registry.Register(ActionLogClosedWonContext, h.LogClosedWonContext)
	registry.Register(ActionCreateProjectKickoff, h.CreateProjectKickoff)
	registry.Register(ActionScheduleInvoicePlan, h.ScheduleInvoicePlan)
	return registry
}

// LogClosedWonContext forwards the run context to the analytics ingestion
// function. A publish failure fails the step.
func (h *Handlers) LogClosedWonContext(ctx context.Context, ac auth.Context, step models.Step, runContext map[string]any) (StepOutcome, error) {
	err := h.analytics.Publish(ctx, services.AnalyticsEvent{
		OrganizationID: ac.OrganizationID,
		UserID:         ac.UserID,
		EventKey:       "automation.closed_won.context",
		Payload:        map[string]any{"context": runContext},
	})
	if err != nil {
		return StepOutcome{}, err
	}
	return StepOutcome{
		Status: models.StepStatusCompleted,
		Output: map[string]any{"analyticsEvent": "automation.closed_won.context"},
	}, nil
}

type kickoffConfig struct {
	Phase           string         `json:"phase"`
	AgendaOverrides map[string]any `json:"agendaOverrides"`
}

// DefaultKickoffChecklist is the checklist attached to every kickoff agenda
// unless a step config overrides it.
func DefaultKickoffChecklist() []any {
	return []any{
		"Confirm project owner + roles",
		"Align on timeline + billing milestones",
	}
}

// CreateProjectKickoff inserts a new active project derived from the run
// context plus a linked kickoff record carrying the agenda checklist.
func (h *Handlers) CreateProjectKickoff(ctx context.Context, ac auth.Context, step models.Step, runContext map[string]any) (StepOutcome, error) {
	var cfg kickoffConfig
	if err := decodeConfig(step.Config, &cfg); err != nil {
		return StepOutcome{}, fmt.Errorf("invalid %s config: %w", step.Action, err)
	}

	name := stringValue(runContext, "projectName")
	if name == "" {
		name = stringValue(runContext, "name")
	}
	if name == "" {
		opportunityName := stringValue(runContext, "opportunityName")
		if opportunityName == "" {
			opportunityName = "new win"
		}
		name = "Implementation for " + opportunityName
	}

	phase := cfg.Phase
	if phase == "" {
		phase = "Discovery"
	}

	ownerID := stringValue(runContext, "ownerId")
	if ownerID == "" {
		ownerID = ac.UserID
	}

	clientID := optionalString(runContext, "clientId")
	today := h.now()

	project := &models.Project{
		OrganizationID: ac.OrganizationID,
		ClientID:       clientID,
		Name:           name,
		Status:         models.ProjectStatusActive,
		Phase:          phase,
		Health:         models.ProjectHealthGreen,
		StartDate:      today,
		OwnerID:        ownerID,
		Progress:       0,
	}
	if err := h.delivery.CreateProject(ctx, project); err != nil {
		return StepOutcome{}, fmt.Errorf("create project: %w", err)
	}

	agenda := map[string]any{
		"source":    "automation",
		"trigger":   step.Action,
		"checklist": DefaultKickoffChecklist(),
	}
	for key, value := range cfg.AgendaOverrides {
		agenda[key] = value
	}

	kickoff := &models.ProjectKickoff{
		ProjectID:   project.ID,
		ClientID:    clientID,
		OwnerID:     ownerID,
		KickoffDate: today,
		Agenda:      agenda,
	}
	if err := h.delivery.CreateProjectKickoff(ctx, kickoff); err != nil {
		return StepOutcome{}, fmt.Errorf("create kickoff: %w", err)
	}

	return StepOutcome{
		Status: models.StepStatusCompleted,
		Output: map[string]any{"projectId": project.ID},
	}, nil
}

type invoicePlanConfig struct {
	Installments *int   `json:"installments"`
	Cadence      string `json:"cadence"`
}

// ScheduleInvoicePlan divides the context amount into evenly rounded
// installments due on a monthly or weekly cadence and inserts one schedule
// row per installment. Without a client id in the context the step is skipped
// rather than failed, so the rest of the run still executes.
func (h *Handlers) ScheduleInvoicePlan(ctx context.Context, ac auth.Context, step models.Step, runContext map[string]any) (StepOutcome, error) {
	var cfg invoicePlanConfig
	if err := decodeConfig(step.Config, &cfg); err != nil {
		return StepOutcome{}, fmt.Errorf("invalid %s config: %w", step.Action, err)
	}

	clientID := stringValue(runContext, "clientId")
	if clientID == "" {
		return StepOutcome{
			Status: models.StepStatusSkipped,
			Output: map[string]any{"reason": "missing-client-id"},
		}, nil
	}

	installments := 3
	if cfg.Installments != nil {
		installments = *cfg.Installments
	}
	if installments < 1 {
		installments = 1
	}

	cadence := cfg.Cadence
	if cadence == "" {
		cadence = "monthly"
	}

	amount := numberValue(runContext, "amount")
	perInstallment := math.Round(amount/float64(installments)*100) / 100
	projectID := optionalString(runContext, "projectId")
	now := h.now()

	entries := make([]models.InvoiceSchedule, 0, installments)
	for i := 0; i < installments; i++ {
		dueDate := now
		switch cadence {
		case "monthly":
			dueDate = now.AddDate(0, i, 0)
		case "weekly":
			dueDate = now.AddDate(0, 0, 7*i)
		}
		entries = append(entries, models.InvoiceSchedule{
			OrganizationID: ac.OrganizationID,
			ClientID:       clientID,
			ProjectID:      projectID,
			Amount:         perInstallment,
			DueDate:        dueDate,
			Status:         models.InvoiceScheduleStatusScheduled,
		})
	}

	if err := h.delivery.CreateInvoiceSchedules(ctx, entries); err != nil {
		return StepOutcome{}, fmt.Errorf("schedule invoices: %w", err)
	}

	return StepOutcome{
		Status: models.StepStatusCompleted,
		Output: map[string]any{"invoicesScheduled": len(entries)},
	}, nil
}

// decodeConfig maps an untyped step config onto the handler's typed config
// struct via a JSON round trip, matching how the config was stored.
func decodeConfig(config map[string]any, target any) error {
	if len(config) == 0 {
		return nil
	}
	raw, err := json.Marshal(config)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, target)
}

func stringValue(values map[string]any, key string) string {
	if s, ok := values[key].(string); ok {
		return s
	}
	return ""
}

func optionalString(values map[string]any, key string) *string {
	if s, ok := values[key].(string); ok && s != "" {
		return &s
	}
	return nil
}

func numberValue(values map[string]any, key string) float64 {
	switch v := values[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}
