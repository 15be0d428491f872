package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"revenueos/backend/pkg/models"
)

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	if err := EnsureSchema(ctx, pool); err != nil {
		t.Fatal(err)
	}

	store := NewPostgresStore(pool)

	org := &models.Organization{Name: "Acme", Domain: "acme.com"}

	t.Run("Create and get organization", func(t *testing.T) {
		require.NoError(t, store.CreateOrganization(ctx, org))
		require.NotEmpty(t, org.ID)

		found, err := store.GetOrganizationByDomain(ctx, "acme.com")
		require.NoError(t, err)
		assert.Equal(t, org.ID, found.ID)
		assert.Equal(t, "Acme", found.Name)
	})

	t.Run("Upsert playbook replaces steps wholesale", func(t *testing.T) {
		playbook := &models.Playbook{
			OrganizationID: org.ID,
			Name:           "Closed-Won Handoff",
			TriggerEvent:   "pipeline.closed_won",
			Status:         models.PlaybookStatusActive,
			Configuration:  map[string]any{},
			CreatedBy:      "tester",
			Steps: []models.Step{
				{SortOrder: 2, Workspace: models.WorkspaceFinance, Action: "schedule_invoice_plan", Config: map[string]any{"installments": 3}},
				{SortOrder: 1, Workspace: models.WorkspaceSales, Action: "log_closed_won_context", Config: map[string]any{}},
			},
		}
		require.NoError(t, store.UpsertPlaybook(ctx, playbook))
		require.NotEmpty(t, playbook.ID)

		loaded, err := store.GetPlaybook(ctx, org.ID, playbook.ID)
		require.NoError(t, err)
		require.Len(t, loaded.Steps, 2)
		// steps come back in sort order regardless of insert order
		assert.Equal(t, "log_closed_won_context", loaded.Steps[0].Action)
		assert.Equal(t, "schedule_invoice_plan", loaded.Steps[1].Action)
		assert.Equal(t, float64(3), loaded.Steps[1].Config["installments"])

		// edit: the new step list fully replaces the old one
		playbook.Steps = []models.Step{
			{SortOrder: 1, Workspace: models.WorkspaceDelivery, Action: "create_project_kickoff", Config: map[string]any{"phase": "Onboarding"}},
		}
		require.NoError(t, store.UpsertPlaybook(ctx, playbook))
		require.NotNil(t, playbook.UpdatedAt)

		loaded, err = store.GetPlaybook(ctx, org.ID, playbook.ID)
		require.NoError(t, err)
		require.Len(t, loaded.Steps, 1)
		assert.Equal(t, "create_project_kickoff", loaded.Steps[0].Action)
	})

	t.Run("Upsert with unknown id fails", func(t *testing.T) {
		playbook := &models.Playbook{
			ID:             "00000000-0000-0000-0000-000000000000",
			OrganizationID: org.ID,
			Name:           "ghost",
			TriggerEvent:   "pipeline.closed_won",
			Status:         models.PlaybookStatusDraft,
		}
		assert.Error(t, store.UpsertPlaybook(ctx, playbook))
	})

	t.Run("ListPlaybooksForEvent excludes archived and other events", func(t *testing.T) {
		archived := &models.Playbook{
			OrganizationID: org.ID,
			Name:           "Old handoff",
			TriggerEvent:   "pipeline.closed_won",
			Status:         models.PlaybookStatusArchived,
		}
		require.NoError(t, store.UpsertPlaybook(ctx, archived))

		otherEvent := &models.Playbook{
			OrganizationID: org.ID,
			Name:           "Churn saver",
			TriggerEvent:   "pipeline.closed_lost",
			Status:         models.PlaybookStatusActive,
		}
		require.NoError(t, store.UpsertPlaybook(ctx, otherEvent))

		playbooks, err := store.ListPlaybooksForEvent(ctx, org.ID, "pipeline.closed_won")
		require.NoError(t, err)
		for _, p := range playbooks {
			assert.NotEqual(t, models.PlaybookStatusArchived, p.Status)
			assert.Equal(t, "pipeline.closed_won", p.TriggerEvent)
		}
		require.Len(t, playbooks, 1)
	})

	t.Run("SetPlaybookStatus", func(t *testing.T) {
		playbooks, err := store.ListPlaybooks(ctx, org.ID)
		require.NoError(t, err)
		require.NotEmpty(t, playbooks)

		target := playbooks[0]
		require.NoError(t, store.SetPlaybookStatus(ctx, org.ID, target.ID, models.PlaybookStatusArchived))

		reloaded, err := store.GetPlaybook(ctx, org.ID, target.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PlaybookStatusArchived, reloaded.Status)

		assert.Error(t, store.SetPlaybookStatus(ctx, org.ID, "00000000-0000-0000-0000-000000000000", models.PlaybookStatusDraft))
	})

	t.Run("Run lifecycle", func(t *testing.T) {
		playbooks, err := store.ListPlaybooks(ctx, org.ID)
		require.NoError(t, err)
		var playbook *models.Playbook
		for _, p := range playbooks {
			if len(p.Steps) > 0 {
				playbook = p
				break
			}
		}
		require.NotNil(t, playbook)

		run := &models.Run{
			PlaybookID:     playbook.ID,
			OrganizationID: org.ID,
			TriggeredBy:    "tester",
			Context:        map[string]any{"opportunityId": "opp-1"},
			Status:         models.RunStatusProcessing,
		}
		require.NoError(t, store.CreateRun(ctx, run))
		require.NotEmpty(t, run.ID)

		stepID := playbook.Steps[0].ID
		require.NoError(t, store.CreateRunStepResult(ctx, &models.RunStepResult{
			RunID:       run.ID,
			StepID:      stepID,
			Workspace:   models.WorkspaceSales,
			Action:      "log_closed_won_context",
			Status:      models.StepStatusCompleted,
			Output:      map[string]any{"analyticsEvent": "automation.closed_won.context"},
			CompletedAt: time.Now(),
		}))

		require.NoError(t, store.FinishRun(ctx, run.ID, models.RunStatusCompleted, time.Now()))

		var status string
		var completedAt *time.Time
		err = pool.QueryRow(ctx, "SELECT status, completed_at FROM automation_runs WHERE id = $1", run.ID).Scan(&status, &completedAt)
		require.NoError(t, err)
		assert.Equal(t, "completed", status)
		assert.NotNil(t, completedAt)

		var stepCount int
		err = pool.QueryRow(ctx, "SELECT count(*) FROM automation_run_steps WHERE run_id = $1", run.ID).Scan(&stepCount)
		require.NoError(t, err)
		assert.Equal(t, 1, stepCount)
	})

	t.Run("Delivery inserts", func(t *testing.T) {
		clientID := "client-1"
		project := &models.Project{
			OrganizationID: org.ID,
			ClientID:       &clientID,
			Name:           "Implementation for Acme expansion",
			Status:         models.ProjectStatusActive,
			Phase:          "Discovery",
			Health:         models.ProjectHealthGreen,
			StartDate:      time.Now(),
			OwnerID:        "owner-1",
			Progress:       0,
		}
		require.NoError(t, store.CreateProject(ctx, project))

		require.NoError(t, store.CreateProjectKickoff(ctx, &models.ProjectKickoff{
			ProjectID:   project.ID,
			ClientID:    &clientID,
			OwnerID:     "owner-1",
			KickoffDate: time.Now(),
			Agenda:      map[string]any{"source": "automation", "checklist": []any{"Confirm project owner + roles"}},
		}))

		require.NoError(t, store.CreateInvoiceSchedules(ctx, []models.InvoiceSchedule{
			{OrganizationID: org.ID, ClientID: clientID, Amount: 300, DueDate: time.Now(), Status: models.InvoiceScheduleStatusScheduled},
			{OrganizationID: org.ID, ClientID: clientID, Amount: 300, DueDate: time.Now().AddDate(0, 1, 0), Status: models.InvoiceScheduleStatusScheduled},
		}))

		var amount float64
		err = pool.QueryRow(ctx, "SELECT amount FROM invoice_schedules WHERE client_id = $1 LIMIT 1", clientID).Scan(&amount)
		require.NoError(t, err)
		assert.Equal(t, 300.0, amount)

		var agendaSource string
		err = pool.QueryRow(ctx, "SELECT agenda->>'source' FROM project_kickoffs WHERE project_id = $1", project.ID).Scan(&agendaSource)
		require.NoError(t, err)
		assert.Equal(t, "automation", agendaSource)
	})
}
