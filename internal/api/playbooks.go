package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"revenueos/backend/internal/auth"
	"revenueos/backend/internal/repository"
	"revenueos/backend/internal/services"
	"revenueos/backend/pkg/models"
)

// PlaybookLoader loads playbook definitions for execution.
type PlaybookLoader interface {
	LoadForEvent(ctx context.Context, orgID, triggerEvent string) []*models.Playbook
	LoadByID(ctx context.Context, orgID, id string) *models.Playbook
}

// PlaybookRunner executes one playbook against a run context.
type PlaybookRunner interface {
	Execute(ctx context.Context, ac auth.Context, playbook *models.Playbook, runContext map[string]any) (*models.RunResult, error)
}

// Server holds the dependencies for the API server.
type Server struct {
	store     repository.PlaybookStore
	loader    PlaybookLoader
	runner    PlaybookRunner
	analytics services.AnalyticsPublisher
	logger    Logger
}

// NewServer creates a new Server.
func NewServer(store repository.PlaybookStore, loader PlaybookLoader, runner PlaybookRunner, analytics services.AnalyticsPublisher, logger Logger) *Server {
	return &Server{
		store:     store,
		loader:    loader,
		runner:    runner,
		analytics: analytics,
		logger:    logger,
	}
}

// RegisterHandlers mounts the playbook routes on the given group.
func RegisterHandlers(g *echo.Group, s *Server) {
	g.GET("/playbooks", s.ListPlaybooks)
	g.PUT("/playbooks", s.UpsertPlaybook)
	g.PATCH("/playbooks/:id/status", s.UpdatePlaybookStatus)
	g.POST("/playbooks/:id/run", s.RunPlaybook)
	g.POST("/automations/closed-won", s.TriggerClosedWon)
}

// StepInput is one step of a playbook upsert request. The full step list
// replaces whatever the playbook had before.
type StepInput struct {
	ID        string           `json:"id,omitempty"`
	SortOrder int              `json:"sortOrder"`
	Workspace models.Workspace `json:"workspace"`
	Action    string           `json:"action"`
	Config    map[string]any   `json:"config"`
}

// PlaybookInput is the create-or-replace request body for a playbook.
type PlaybookInput struct {
	ID            string                `json:"id,omitempty"`
	Name          string                `json:"name"`
	Description   *string               `json:"description,omitempty"`
	TriggerEvent  string                `json:"triggerEvent"`
	Status        models.PlaybookStatus `json:"status,omitempty"`
	Configuration map[string]any        `json:"configuration,omitempty"`
	Steps         []StepInput           `json:"steps"`
}

// ListPlaybooks returns all playbooks for the caller's organization
// (GET /api/v1/playbooks)
func (s *Server) ListPlaybooks(c echo.Context) error {
	ctx := c.Request().Context()
	ac, ok := auth.FromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "auth context not found")
	}

	playbooks, err := s.store.ListPlaybooks(ctx, ac.OrganizationID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if playbooks == nil {
		playbooks = []*models.Playbook{}
	}

	return c.JSON(http.StatusOK, playbooks)
}

// UpsertPlaybook creates or replaces a playbook together with its steps
// (PUT /api/v1/playbooks)
func (s *Server) UpsertPlaybook(c echo.Context) error {
	ctx := c.Request().Context()
	ac, ok := auth.FromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "auth context not found")
	}

	var input PlaybookInput
	if err := c.Bind(&input); err != nil {
		return problem(c, http.StatusBadRequest, "invalid request body", err.Error())
	}
	if input.Name == "" || input.TriggerEvent == "" {
		return problem(c, http.StatusBadRequest, "invalid playbook", "name and triggerEvent are required")
	}

	status := input.Status
	if status == "" {
		status = models.PlaybookStatusDraft
	}

	playbook := &models.Playbook{
		ID:             input.ID,
		OrganizationID: ac.OrganizationID,
		Name:           input.Name,
		Description:    input.Description,
		TriggerEvent:   input.TriggerEvent,
		Status:         status,
		Configuration:  input.Configuration,
		CreatedBy:      ac.UserID,
	}
	if playbook.Configuration == nil {
		playbook.Configuration = map[string]any{}
	}
	for _, step := range input.Steps {
		playbook.Steps = append(playbook.Steps, models.Step{
			ID:        step.ID,
			SortOrder: step.SortOrder,
			Workspace: step.Workspace,
			Action:    step.Action,
			Config:    step.Config,
		})
	}

	if err := s.store.UpsertPlaybook(ctx, playbook); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return problem(c, http.StatusNotFound, "playbook not found", "no playbook with id "+input.ID)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save playbook: "+err.Error())
	}

	s.publishEvent(ctx, ac, "automation.playbook.upserted", map[string]any{
		"playbookId":   playbook.ID,
		"triggerEvent": playbook.TriggerEvent,
		"status":       playbook.Status,
	})

	return c.JSON(http.StatusOK, playbook)
}

// UpdatePlaybookStatus sets the lifecycle status of a playbook
// (PATCH /api/v1/playbooks/:id/status)
func (s *Server) UpdatePlaybookStatus(c echo.Context) error {
	ctx := c.Request().Context()
	ac, ok := auth.FromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "auth context not found")
	}

	var body struct {
		Status models.PlaybookStatus `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return problem(c, http.StatusBadRequest, "invalid request body", err.Error())
	}
	switch body.Status {
	case models.PlaybookStatusDraft, models.PlaybookStatusActive, models.PlaybookStatusArchived:
	default:
		return problem(c, http.StatusBadRequest, "invalid status", "status must be draft, active, or archived")
	}

	id := c.Param("id")
	if err := s.store.SetPlaybookStatus(ctx, ac.OrganizationID, id, body.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return problem(c, http.StatusNotFound, "playbook not found", "no playbook with id "+id)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	s.publishEvent(ctx, ac, "automation.playbook.status_changed", map[string]any{
		"playbookId": id,
		"status":     body.Status,
	})

	return c.NoContent(http.StatusNoContent)
}

// RunPlaybook executes one playbook with the request body as run context
// (POST /api/v1/playbooks/:id/run)
func (s *Server) RunPlaybook(c echo.Context) error {
	ctx := c.Request().Context()
	ac, ok := auth.FromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "auth context not found")
	}

	runContext := map[string]any{}
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&runContext); err != nil {
			return problem(c, http.StatusBadRequest, "invalid run context", err.Error())
		}
	}

	id := c.Param("id")
	playbook := s.loader.LoadByID(ctx, ac.OrganizationID, id)
	if playbook == nil {
		return problem(c, http.StatusNotFound, "playbook not found", "no playbook with id "+id)
	}

	result, err := s.runner.Execute(ctx, ac, playbook, runContext)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to run playbook: "+err.Error())
	}

	s.publishEvent(ctx, ac, "automation.run.completed", map[string]any{
		"playbookId": id,
		"runId":      result.RunID,
		"status":     result.Status,
	})

	return c.JSON(http.StatusOK, result)
}

// ClosedWonInput is the trigger payload for a won pipeline opportunity.
type ClosedWonInput struct {
	OpportunityID string   `json:"opportunityId"`
	ClientID      *string  `json:"clientId,omitempty"`
	Amount        *float64 `json:"amount,omitempty"`
	Name          *string  `json:"name,omitempty"`
}

// ClosedWonRun summarizes one playbook run kicked off by the trigger.
type ClosedWonRun struct {
	PlaybookID string           `json:"playbookId"`
	RunID      string           `json:"runId"`
	Status     models.RunStatus `json:"status"`
}

// ClosedWonResponse is the trigger endpoint response.
type ClosedWonResponse struct {
	OK   bool           `json:"ok"`
	Runs []ClosedWonRun `json:"runs"`
}

// TriggerClosedWon runs every active closed-won playbook for the caller's
// organization against the opportunity context
// (POST /api/v1/automations/closed-won)
func (s *Server) TriggerClosedWon(c echo.Context) error {
	ctx := c.Request().Context()
	ac, ok := auth.FromContext(ctx)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "auth context not found")
	}

	var input ClosedWonInput
	if err := c.Bind(&input); err != nil {
		return problem(c, http.StatusBadRequest, "invalid request body", err.Error())
	}
	if input.OpportunityID == "" {
		return problem(c, http.StatusBadRequest, "invalid trigger", "opportunityId is required")
	}

	runContext := map[string]any{
		"opportunityId": input.OpportunityID,
	}
	if input.ClientID != nil {
		runContext["clientId"] = *input.ClientID
	}
	if input.Amount != nil {
		runContext["amount"] = *input.Amount
	}
	if input.Name != nil {
		runContext["opportunityName"] = *input.Name
	}

	playbooks := s.loader.LoadForEvent(ctx, ac.OrganizationID, "pipeline.closed_won")
	runs := []ClosedWonRun{}

	for _, playbook := range playbooks {
		result, err := s.runner.Execute(ctx, ac, playbook, runContext)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to run playbook "+playbook.ID+": "+err.Error())
		}
		runs = append(runs, ClosedWonRun{
			PlaybookID: playbook.ID,
			RunID:      result.RunID,
			Status:     result.Status,
		})
	}

	if len(runs) > 0 {
		s.publishEvent(ctx, ac, "automation.closed_won.triggered", map[string]any{
			"opportunityId": input.OpportunityID,
			"runs":          runs,
		})
	}

	return c.JSON(http.StatusOK, ClosedWonResponse{OK: true, Runs: runs})
}

// publishEvent sends an analytics event and logs failures. Analytics never
// fails the mutation that emitted it.
func (s *Server) publishEvent(ctx context.Context, ac auth.Context, eventKey string, payload map[string]any) {
	if s.analytics == nil {
		return
	}
	err := s.analytics.Publish(ctx, services.AnalyticsEvent{
		OrganizationID: ac.OrganizationID,
		UserID:         ac.UserID,
		EventKey:       eventKey,
		Payload:        payload,
	})
	if err != nil {
		s.logger.Error("analytics: failed to publish %s: %v", eventKey, err)
	}
}
