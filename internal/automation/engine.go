package automation

import (
	"context"
	"fmt"
	"time"

	"revenueos/backend/internal/auth"
	"revenueos/backend/internal/repository"
	"revenueos/backend/pkg/models"
)

// Engine orchestrates playbook runs. Steps execute sequentially in ascending
// sort order; the first failed step ends the run and remaining steps are
// never attempted. There is no retry and no rollback of side effects already
// applied by earlier steps.
type Engine struct {
	runs     repository.RunStore
	registry *Registry
	logger   Logger
	now      func() time.Time
}

// NewEngine creates a new Engine.
func NewEngine(runs repository.RunStore, registry *Registry, logger Logger) *Engine {
	return &Engine{
		runs:     runs,
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

// Execute runs one playbook against the supplied context. A run row is
// created up front in the processing state; every attempted step persists
// exactly one result row, and the run transitions to its terminal status
// exactly once. Step failures are absorbed into the returned RunResult; only
// a failure to create the run row itself propagates as an error.
func (e *Engine) Execute(ctx context.Context, ac auth.Context, playbook *models.Playbook, runContext map[string]any) (*models.RunResult, error) {
	if runContext == nil {
		runContext = map[string]any{}
	}

	run := &models.Run{
		PlaybookID:     playbook.ID,
		OrganizationID: ac.OrganizationID,
		TriggeredBy:    ac.UserID,
		Context:        runContext,
		Status:         models.RunStatusProcessing,
	}
	if err := e.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create automation run: %w", err)
	}

	result := &models.RunResult{RunID: run.ID}

	for _, step := range playbook.Steps {
		outcome, err := e.dispatch(ctx, ac, step, runContext)
		if err != nil {
			e.logger.Error("automation: step %s errored: %v", step.Action, err)
			outcome = StepOutcome{
				Status: models.StepStatusFailed,
				Output: map[string]any{"error": err.Error()},
			}
		}

		e.recordStep(ctx, run.ID, step, outcome)
		result.StepResults = append(result.StepResults, models.StepResult{
			StepID: step.ID,
			Status: outcome.Status,
			Output: outcome.Output,
		})

		if outcome.Status == models.StepStatusFailed {
			e.finishRun(ctx, run.ID, models.RunStatusFailed)
			result.Status = models.RunStatusFailed
			return result, nil
		}
	}

	e.finishRun(ctx, run.ID, models.RunStatusCompleted)
	result.Status = models.RunStatusCompleted
	return result, nil
}

// dispatch runs one step through the registry and converts a handler panic
// into an ordinary step error, so a misbehaving handler fails its run instead
// of taking down the caller.
func (e *Engine) dispatch(ctx context.Context, ac auth.Context, step models.Step, runContext map[string]any) (outcome StepOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s panicked: %v", step.Action, r)
		}
	}()
	return e.registry.Dispatch(ctx, ac, step, runContext)
}

// recordStep persists the result row for one attempted step. A write failure
// is logged rather than failing the run; the in-memory result still reaches
// the caller.
func (e *Engine) recordStep(ctx context.Context, runID string, step models.Step, outcome StepOutcome) {
	output := outcome.Output
	if output == nil {
		output = map[string]any{}
	}
	err := e.runs.CreateRunStepResult(ctx, &models.RunStepResult{
		RunID:       runID,
		StepID:      step.ID,
		Workspace:   step.Workspace,
		Action:      step.Action,
		Status:      outcome.Status,
		Output:      output,
		CompletedAt: e.now(),
	})
	if err != nil {
		e.logger.Error("automation: failed to record step result for %s: %v", step.Action, err)
	}
}

func (e *Engine) finishRun(ctx context.Context, runID string, status models.RunStatus) {
	if err := e.runs.FinishRun(ctx, runID, status, e.now()); err != nil {
		e.logger.Error("automation: failed to finalize run %s as %s: %v", runID, status, err)
	}
}
