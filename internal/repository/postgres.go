package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"revenueos/backend/pkg/models"
)

const playbookColumns = "id, organization_id, name, description, trigger_event, status, configuration, created_by, created_at, updated_at"

// PostgresStore is a PostgreSQL implementation of the Store interface.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// GetOrganizationByDomain retrieves an organization by its email domain.
func (s *PostgresStore) GetOrganizationByDomain(ctx context.Context, domain string) (*models.Organization, error) {
	var org models.Organization
	err := s.db.QueryRow(ctx,
		"SELECT id, name, domain, created_at, updated_at FROM organizations WHERE domain = $1",
		domain,
	).Scan(&org.ID, &org.Name, &org.Domain, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// CreateOrganization creates a new organization and assigns its ID.
func (s *PostgresStore) CreateOrganization(ctx context.Context, org *models.Organization) error {
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	return s.db.QueryRow(ctx,
		"INSERT INTO organizations (id, name, domain) VALUES ($1, $2, $3) RETURNING created_at, updated_at",
		org.ID, org.Name, org.Domain,
	).Scan(&org.CreatedAt, &org.UpdatedAt)
}

// ListPlaybooks returns all playbooks for an organization, newest first.
func (s *PostgresStore) ListPlaybooks(ctx context.Context, orgID string) ([]*models.Playbook, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+playbookColumns+" FROM automation_playbooks WHERE organization_id = $1 ORDER BY created_at DESC",
		orgID,
	)
	if err != nil {
		return nil, err
	}
	return s.collectPlaybooks(ctx, rows)
}

// GetPlaybook returns one playbook scoped to the organization.
func (s *PostgresStore) GetPlaybook(ctx context.Context, orgID, id string) (*models.Playbook, error) {
	row := s.db.QueryRow(ctx,
		"SELECT "+playbookColumns+" FROM automation_playbooks WHERE organization_id = $1 AND id = $2",
		orgID, id,
	)
	playbook, err := scanPlaybook(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadSteps(ctx, playbook); err != nil {
		return nil, err
	}
	return playbook, nil
}

// ListPlaybooksForEvent returns non-archived playbooks whose trigger event
// matches exactly.
func (s *PostgresStore) ListPlaybooksForEvent(ctx context.Context, orgID, triggerEvent string) ([]*models.Playbook, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+playbookColumns+" FROM automation_playbooks WHERE organization_id = $1 AND trigger_event = $2 AND status <> $3",
		orgID, triggerEvent, models.PlaybookStatusArchived,
	)
	if err != nil {
		return nil, err
	}
	return s.collectPlaybooks(ctx, rows)
}

// UpsertPlaybook creates or replaces a playbook together with its steps. The
// step set is replaced wholesale inside one transaction, so readers never see
// a partially edited playbook.
func (s *PostgresStore) UpsertPlaybook(ctx context.Context, playbook *models.Playbook) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if playbook.ID == "" {
		playbook.ID = uuid.New().String()
		err = tx.QueryRow(ctx,
			`INSERT INTO automation_playbooks (id, organization_id, name, description, trigger_event, status, configuration, created_by)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`,
			playbook.ID, playbook.OrganizationID, playbook.Name, playbook.Description,
			playbook.TriggerEvent, playbook.Status, playbook.Configuration, playbook.CreatedBy,
		).Scan(&playbook.CreatedAt)
		if err != nil {
			return err
		}
	} else {
		now := time.Now()
		tag, err := tx.Exec(ctx,
			`UPDATE automation_playbooks
			 SET name = $1, description = $2, trigger_event = $3, status = $4, configuration = $5, updated_at = $6
			 WHERE id = $7 AND organization_id = $8`,
			playbook.Name, playbook.Description, playbook.TriggerEvent, playbook.Status,
			playbook.Configuration, now, playbook.ID, playbook.OrganizationID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		playbook.UpdatedAt = &now
	}

	if _, err := tx.Exec(ctx, "DELETE FROM automation_steps WHERE playbook_id = $1", playbook.ID); err != nil {
		return err
	}

	for i := range playbook.Steps {
		step := &playbook.Steps[i]
		if step.ID == "" {
			step.ID = uuid.New().String()
		}
		step.PlaybookID = playbook.ID
		if step.Workspace == "" {
			step.Workspace = models.WorkspaceOps
		}
		_, err := tx.Exec(ctx,
			"INSERT INTO automation_steps (id, playbook_id, sort_order, workspace, action, config) VALUES ($1, $2, $3, $4, $5, $6)",
			step.ID, step.PlaybookID, step.SortOrder, step.Workspace, step.Action, step.Config,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// SetPlaybookStatus updates the lifecycle status of a playbook.
func (s *PostgresStore) SetPlaybookStatus(ctx context.Context, orgID, id string, status models.PlaybookStatus) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE automation_playbooks SET status = $1, updated_at = $2 WHERE id = $3 AND organization_id = $4",
		status, time.Now(), id, orgID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CreateRun inserts a new run in the processing state and assigns its ID.
func (s *PostgresStore) CreateRun(ctx context.Context, run *models.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = models.RunStatusProcessing
	}
	return s.db.QueryRow(ctx,
		"INSERT INTO automation_runs (id, playbook_id, organization_id, triggered_by, context, status) VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at",
		run.ID, run.PlaybookID, run.OrganizationID, run.TriggeredBy, run.Context, run.Status,
	).Scan(&run.CreatedAt)
}

// FinishRun writes the terminal status and completion time of a run.
func (s *PostgresStore) FinishRun(ctx context.Context, runID string, status models.RunStatus, completedAt time.Time) error {
	_, err := s.db.Exec(ctx,
		"UPDATE automation_runs SET status = $1, completed_at = $2 WHERE id = $3",
		status, completedAt, runID,
	)
	return err
}

// CreateRunStepResult records the outcome of one attempted step.
func (s *PostgresStore) CreateRunStepResult(ctx context.Context, result *models.RunStepResult) error {
	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	_, err := s.db.Exec(ctx,
		"INSERT INTO automation_run_steps (id, run_id, step_id, workspace, action, status, output, completed_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		result.ID, result.RunID, result.StepID, result.Workspace, result.Action, result.Status, result.Output, result.CompletedAt,
	)
	return err
}

// CreateProject inserts a new project and assigns its ID.
func (s *PostgresStore) CreateProject(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO projects (id, organization_id, client_id, name, status, phase, health, start_date, owner_id, progress)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		project.ID, project.OrganizationID, project.ClientID, project.Name, project.Status,
		project.Phase, project.Health, project.StartDate, project.OwnerID, project.Progress,
	)
	return err
}

// CreateProjectKickoff inserts a kickoff record for a project.
func (s *PostgresStore) CreateProjectKickoff(ctx context.Context, kickoff *models.ProjectKickoff) error {
	if kickoff.ID == "" {
		kickoff.ID = uuid.New().String()
	}
	_, err := s.db.Exec(ctx,
		"INSERT INTO project_kickoffs (id, project_id, client_id, owner_id, kickoff_date, agenda) VALUES ($1, $2, $3, $4, $5, $6)",
		kickoff.ID, kickoff.ProjectID, kickoff.ClientID, kickoff.OwnerID, kickoff.KickoffDate, kickoff.Agenda,
	)
	return err
}

// CreateInvoiceSchedules inserts one row per planned installment.
func (s *PostgresStore) CreateInvoiceSchedules(ctx context.Context, entries []models.InvoiceSchedule) error {
	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			entry.ID = uuid.New().String()
		}
		_, err := s.db.Exec(ctx,
			"INSERT INTO invoice_schedules (id, organization_id, client_id, project_id, amount, due_date, status) VALUES ($1, $2, $3, $4, $5, $6, $7)",
			entry.ID, entry.OrganizationID, entry.ClientID, entry.ProjectID, entry.Amount, entry.DueDate, entry.Status,
		)
		if err != nil {
			return fmt.Errorf("insert invoice schedule %d: %w", i, err)
		}
	}
	return nil
}

func (s *PostgresStore) collectPlaybooks(ctx context.Context, rows pgx.Rows) ([]*models.Playbook, error) {
	defer rows.Close()

	var playbooks []*models.Playbook
	for rows.Next() {
		playbook, err := scanPlaybook(rows)
		if err != nil {
			return nil, err
		}
		playbooks = append(playbooks, playbook)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, playbook := range playbooks {
		if err := s.loadSteps(ctx, playbook); err != nil {
			return nil, err
		}
	}
	return playbooks, nil
}

// loadSteps attaches a playbook's steps ordered by (sort_order, id). The id
// tie-break keeps replays deterministic when two steps share a sort order.
func (s *PostgresStore) loadSteps(ctx context.Context, playbook *models.Playbook) error {
	rows, err := s.db.Query(ctx,
		"SELECT id, playbook_id, sort_order, workspace, action, config FROM automation_steps WHERE playbook_id = $1 ORDER BY sort_order, id",
		playbook.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var step models.Step
		if err := rows.Scan(&step.ID, &step.PlaybookID, &step.SortOrder, &step.Workspace, &step.Action, &step.Config); err != nil {
			return err
		}
		if step.Config == nil {
			step.Config = map[string]any{}
		}
		playbook.Steps = append(playbook.Steps, step)
	}
	return rows.Err()
}

func scanPlaybook(row pgx.Row) (*models.Playbook, error) {
	var playbook models.Playbook
	var createdBy *string
	err := row.Scan(
		&playbook.ID, &playbook.OrganizationID, &playbook.Name, &playbook.Description,
		&playbook.TriggerEvent, &playbook.Status, &playbook.Configuration,
		&createdBy, &playbook.CreatedAt, &playbook.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if createdBy != nil {
		playbook.CreatedBy = *createdBy
	}
	if playbook.Configuration == nil {
		playbook.Configuration = map[string]any{}
	}
	return &playbook, nil
}
