package automation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"revenueos/backend/internal/services"
	"revenueos/backend/pkg/models"
)

// noopLogger for testing
type noopLogger struct{}

func (l *noopLogger) Debug(msg string, args ...any) {}
func (l *noopLogger) Info(msg string, args ...any)  {}
func (l *noopLogger) Error(msg string, args ...any) {}

// fakeRunStore records runs and step results in memory.
type fakeRunStore struct {
	createRunErr  error
	stepResultErr error

	runs        []*models.Run
	finished    map[string]models.RunStatus
	stepResults []models.RunStepResult
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{finished: make(map[string]models.RunStatus)}
}

func (s *fakeRunStore) CreateRun(ctx context.Context, run *models.Run) error {
	if s.createRunErr != nil {
		return s.createRunErr
	}
	run.ID = uuid.New().String()
	run.CreatedAt = time.Now()
	s.runs = append(s.runs, run)
	return nil
}

func (s *fakeRunStore) FinishRun(ctx context.Context, runID string, status models.RunStatus, completedAt time.Time) error {
	s.finished[runID] = status
	return nil
}

func (s *fakeRunStore) CreateRunStepResult(ctx context.Context, result *models.RunStepResult) error {
	if s.stepResultErr != nil {
		return s.stepResultErr
	}
	result.ID = uuid.New().String()
	s.stepResults = append(s.stepResults, *result)
	return nil
}

// fakeDeliveryStore records delivery-side writes in memory.
type fakeDeliveryStore struct {
	projectErr  error
	kickoffErr  error
	scheduleErr error

	projects  []*models.Project
	kickoffs  []*models.ProjectKickoff
	schedules []models.InvoiceSchedule
}

func (s *fakeDeliveryStore) CreateProject(ctx context.Context, project *models.Project) error {
	if s.projectErr != nil {
		return s.projectErr
	}
	project.ID = uuid.New().String()
	s.projects = append(s.projects, project)
	return nil
}

func (s *fakeDeliveryStore) CreateProjectKickoff(ctx context.Context, kickoff *models.ProjectKickoff) error {
	if s.kickoffErr != nil {
		return s.kickoffErr
	}
	kickoff.ID = uuid.New().String()
	s.kickoffs = append(s.kickoffs, kickoff)
	return nil
}

func (s *fakeDeliveryStore) CreateInvoiceSchedules(ctx context.Context, entries []models.InvoiceSchedule) error {
	if s.scheduleErr != nil {
		return s.scheduleErr
	}
	s.schedules = append(s.schedules, entries...)
	return nil
}

// fakeAnalytics records published events.
type fakeAnalytics struct {
	publishErr error
	events     []services.AnalyticsEvent
}

func (a *fakeAnalytics) Publish(ctx context.Context, event services.AnalyticsEvent) error {
	if a.publishErr != nil {
		return a.publishErr
	}
	a.events = append(a.events, event)
	return nil
}

// fakePlaybookStore serves canned playbooks or a canned error.
type fakePlaybookStore struct {
	playbooks []*models.Playbook
	getResult *models.Playbook
	err       error
}

func (s *fakePlaybookStore) ListPlaybooks(ctx context.Context, orgID string) ([]*models.Playbook, error) {
	return s.playbooks, s.err
}

func (s *fakePlaybookStore) GetPlaybook(ctx context.Context, orgID, id string) (*models.Playbook, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.getResult, nil
}

func (s *fakePlaybookStore) ListPlaybooksForEvent(ctx context.Context, orgID, triggerEvent string) ([]*models.Playbook, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.playbooks, nil
}

func (s *fakePlaybookStore) UpsertPlaybook(ctx context.Context, playbook *models.Playbook) error {
	return s.err
}

func (s *fakePlaybookStore) SetPlaybookStatus(ctx context.Context, orgID, id string, status models.PlaybookStatus) error {
	return s.err
}
