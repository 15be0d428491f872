package automation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"revenueos/backend/internal/auth"
	"revenueos/backend/pkg/models"
)

var testAuth = auth.Context{UserID: "user-1", OrganizationID: "org-1"}

func playbookWithSteps(steps ...models.Step) *models.Playbook {
	return &models.Playbook{
		ID:             "pb-1",
		OrganizationID: "org-1",
		Name:           "test playbook",
		TriggerEvent:   TriggerClosedWon,
		Status:         models.PlaybookStatusActive,
		Steps:          steps,
	}
}

func TestExecuteRunsStepsInOrder(t *testing.T) {
	runs := newFakeRunStore()
	registry := NewRegistry()

	var executed []string
	handler := func(ctx context.Context, ac auth.Context, step models.Step, runContext map[string]any) (StepOutcome, error) {
		executed = append(executed, step.ID)
		return StepOutcome{Status: models.StepStatusCompleted}, nil
	}
	registry.Register("noop", handler)

	engine := NewEngine(runs, registry, &noopLogger{})
	playbook := playbookWithSteps(
		models.Step{ID: "s1", SortOrder: 1, Action: "noop"},
		models.Step{ID: "s2", SortOrder: 2, Action: "noop"},
		models.Step{ID: "s3", SortOrder: 3, Action: "noop"},
	)

	result, err := engine.Execute(context.Background(), testAuth, playbook, map[string]any{"amount": 10.0})
	require.NoError(t, err)

	assert.Equal(t, []string{"s1", "s2", "s3"}, executed)
	assert.Equal(t, models.RunStatusCompleted, result.Status)
	assert.Len(t, result.StepResults, 3)
	assert.Len(t, runs.stepResults, 3)
	assert.Equal(t, models.RunStatusCompleted, runs.finished[result.RunID])

	require.Len(t, runs.runs, 1)
	assert.Equal(t, "pb-1", runs.runs[0].PlaybookID)
	assert.Equal(t, "org-1", runs.runs[0].OrganizationID)
	assert.Equal(t, "user-1", runs.runs[0].TriggeredBy)
}

func TestExecuteStopsAtFirstFailure(t *testing.T) {
	runs := newFakeRunStore()
	registry := NewRegistry()

	var executed []string
	registry.Register("ok", func(ctx context.Context, ac auth.Context, step models.Step, runContext map[string]any) (StepOutcome, error) {
		executed = append(executed, step.ID)
		return StepOutcome{Status: models.StepStatusCompleted}, nil
	})
	registry.Register("boom", func(ctx context.Context, ac auth.Context, step models.Step, runContext map[string]any) (StepOutcome, error) {
		executed = append(executed, step.ID)
		return StepOutcome{}, errors.New("downstream unavailable")
	})

	engine := NewEngine(runs, registry, &noopLogger{})
	playbook := playbookWithSteps(
		models.Step{ID: "s1", SortOrder: 1, Action: "ok"},
		models.Step{ID: "s2", SortOrder: 2, Action: "boom"},
		models.Step{ID: "s3", SortOrder: 3, Action: "ok"},
	)

	result, err := engine.Execute(context.Background(), testAuth, playbook, nil)
	require.NoError(t, err)

	// s3 is never attempted and produces no result row
	assert.Equal(t, []string{"s1", "s2"}, executed)
	assert.Equal(t, models.RunStatusFailed, result.Status)
	require.Len(t, result.StepResults, 2)
	assert.Equal(t, models.StepStatusFailed, result.StepResults[1].Status)
	assert.Equal(t, "downstream unavailable", result.StepResults[1].Output["error"])
	assert.Len(t, runs.stepResults, 2)
	assert.Equal(t, models.RunStatusFailed, runs.finished[result.RunID])
}

func TestExecutePanickingStepFailsRun(t *testing.T) {
	runs := newFakeRunStore()
	registry := NewRegistry()
	registry.Register("explode", func(ctx context.Context, ac auth.Context, step models.Step, runContext map[string]any) (StepOutcome, error) {
		panic("nil map write")
	})

	engine := NewEngine(runs, registry, &noopLogger{})
	playbook := playbookWithSteps(
		models.Step{ID: "s1", SortOrder: 1, Action: "explode"},
		models.Step{ID: "s2", SortOrder: 2, Action: "explode"},
	)

	result, err := engine.Execute(context.Background(), testAuth, playbook, nil)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusFailed, result.Status)
	require.Len(t, result.StepResults, 1)
	assert.Equal(t, models.StepStatusFailed, result.StepResults[0].Status)
	assert.Contains(t, result.StepResults[0].Output["error"], "panicked")
	assert.Equal(t, models.RunStatusFailed, runs.finished[result.RunID])
}

func TestExecuteFailedStatusWithoutError(t *testing.T) {
	runs := newFakeRunStore()
	registry := NewRegistry()
	registry.Register("fails", func(ctx context.Context, ac auth.Context, step models.Step, runContext map[string]any) (StepOutcome, error) {
		return StepOutcome{Status: models.StepStatusFailed, Output: map[string]any{"error": "validation"}}, nil
	})

	engine := NewEngine(runs, registry, &noopLogger{})
	playbook := playbookWithSteps(
		models.Step{ID: "s1", SortOrder: 1, Action: "fails"},
		models.Step{ID: "s2", SortOrder: 2, Action: "fails"},
	)

	result, err := engine.Execute(context.Background(), testAuth, playbook, nil)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusFailed, result.Status)
	assert.Len(t, result.StepResults, 1)
}

func TestExecuteContinuesPastSkippedSteps(t *testing.T) {
	runs := newFakeRunStore()
	registry := NewRegistry()
	registry.Register("skip", func(ctx context.Context, ac auth.Context, step models.Step, runContext map[string]any) (StepOutcome, error) {
		return StepOutcome{Status: models.StepStatusSkipped, Output: map[string]any{"reason": "missing-client-id"}}, nil
	})
	registry.Register("ok", func(ctx context.Context, ac auth.Context, step models.Step, runContext map[string]any) (StepOutcome, error) {
		return StepOutcome{Status: models.StepStatusCompleted}, nil
	})

	engine := NewEngine(runs, registry, &noopLogger{})
	playbook := playbookWithSteps(
		models.Step{ID: "s1", SortOrder: 1, Action: "skip"},
		models.Step{ID: "s2", SortOrder: 2, Action: "ok"},
	)

	result, err := engine.Execute(context.Background(), testAuth, playbook, nil)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, result.Status)
	require.Len(t, result.StepResults, 2)
	assert.Equal(t, models.StepStatusSkipped, result.StepResults[0].Status)
	assert.Equal(t, models.StepStatusCompleted, result.StepResults[1].Status)
}

func TestExecuteUnknownActionIsSkipped(t *testing.T) {
	runs := newFakeRunStore()
	engine := NewEngine(runs, NewRegistry(), &noopLogger{})
	playbook := playbookWithSteps(
		models.Step{ID: "s1", SortOrder: 1, Action: "send_carrier_pigeon"},
	)

	result, err := engine.Execute(context.Background(), testAuth, playbook, nil)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, result.Status)
	require.Len(t, result.StepResults, 1)
	assert.Equal(t, models.StepStatusSkipped, result.StepResults[0].Status)
	assert.Equal(t, "send_carrier_pigeon", result.StepResults[0].Output["action"])
}

func TestExecuteRunCreationFailurePropagates(t *testing.T) {
	runs := newFakeRunStore()
	runs.createRunErr = errors.New("connection refused")

	var executed int
	registry := NewRegistry()
	registry.Register("noop", func(ctx context.Context, ac auth.Context, step models.Step, runContext map[string]any) (StepOutcome, error) {
		executed++
		return StepOutcome{Status: models.StepStatusCompleted}, nil
	})

	engine := NewEngine(runs, registry, &noopLogger{})
	playbook := playbookWithSteps(models.Step{ID: "s1", SortOrder: 1, Action: "noop"})

	result, err := engine.Execute(context.Background(), testAuth, playbook, nil)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Zero(t, executed)
}

func TestExecuteRecordsResultRowFailureButContinues(t *testing.T) {
	runs := newFakeRunStore()
	runs.stepResultErr = errors.New("insert failed")

	registry := NewRegistry()
	registry.Register("ok", func(ctx context.Context, ac auth.Context, step models.Step, runContext map[string]any) (StepOutcome, error) {
		return StepOutcome{Status: models.StepStatusCompleted}, nil
	})

	engine := NewEngine(runs, registry, &noopLogger{})
	playbook := playbookWithSteps(models.Step{ID: "s1", SortOrder: 1, Action: "ok"})

	result, err := engine.Execute(context.Background(), testAuth, playbook, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, result.Status)
	assert.Len(t, result.StepResults, 1)
}
