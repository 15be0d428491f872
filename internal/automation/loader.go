// Package automation implements the playbook execution engine: loading
// playbook definitions, dispatching their steps through a handler registry,
// and recording runs and per-step results.
package automation

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"revenueos/backend/internal/repository"
	"revenueos/backend/pkg/models"
)

// TriggerClosedWon is the event key emitted when a pipeline opportunity is
// moved to the won stage.
const TriggerClosedWon = "pipeline.closed_won"

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Loader fetches playbook definitions scoped to an organization. Read
// failures degrade to empty results so that business triggers never fail
// because the playbook table was briefly unreadable; every degraded read is
// logged and counted so the condition stays observable.
type Loader struct {
	store         repository.PlaybookStore
	logger        Logger
	degradedReads metric.Int64Counter
}

// NewLoader creates a new Loader.
func NewLoader(store repository.PlaybookStore, logger Logger) *Loader {
	meter := otel.Meter("revenueos/backend/internal/automation")
	degradedReads, _ := meter.Int64Counter(
		"automation.loader.degraded_reads",
		metric.WithDescription("Playbook lookups that degraded to empty results because of a read error"),
	)
	return &Loader{
		store:         store,
		logger:        logger,
		degradedReads: degradedReads,
	}
}

// LoadForEvent returns all non-archived playbooks for the organization whose
// trigger event matches exactly. A failed lookup behaves identically to "no
// playbooks configured".
func (l *Loader) LoadForEvent(ctx context.Context, orgID, triggerEvent string) []*models.Playbook {
	playbooks, err := l.store.ListPlaybooksForEvent(ctx, orgID, triggerEvent)
	if err != nil {
		l.degrade(ctx, "for-event", triggerEvent, err)
		return nil
	}
	for _, playbook := range playbooks {
		normalizeSteps(playbook)
	}
	return playbooks
}

// LoadByID returns a single playbook scoped to the organization, or nil when
// it is absent or the read fails.
func (l *Loader) LoadByID(ctx context.Context, orgID, id string) *models.Playbook {
	playbook, err := l.store.GetPlaybook(ctx, orgID, id)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			l.degrade(ctx, "by-id", id, err)
		}
		return nil
	}
	normalizeSteps(playbook)
	return playbook
}

func (l *Loader) degrade(ctx context.Context, lookup, key string, err error) {
	l.logger.Error("automation: playbook lookup %s (%s) degraded to empty: %v", lookup, key, err)
	if l.degradedReads != nil {
		l.degradedReads.Add(ctx, 1, metric.WithAttributes(attribute.String("lookup", lookup)))
	}
}

// normalizeSteps puts a playbook's steps into the stable shape the engine
// expects: non-nil config, a default workspace tag, and ascending sort order
// with id as the tie-break.
func normalizeSteps(playbook *models.Playbook) {
	for i := range playbook.Steps {
		step := &playbook.Steps[i]
		if step.Config == nil {
			step.Config = map[string]any{}
		}
		if step.Workspace == "" {
			step.Workspace = models.WorkspaceOps
		}
	}
	sort.SliceStable(playbook.Steps, func(i, j int) bool {
		a, b := playbook.Steps[i], playbook.Steps[j]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.ID < b.ID
	})
}
