package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the DDL for all tables the service touches. It is applied by
// cmd/seed and by the repository tests; production deployments run the same
// statements through their migration tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS organizations (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	domain TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS automation_playbooks (
	id UUID PRIMARY KEY,
	organization_id UUID NOT NULL REFERENCES organizations(id),
	name TEXT NOT NULL,
	description TEXT,
	trigger_event TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'draft',
	configuration JSONB NOT NULL DEFAULT '{}',
	created_by TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS automation_steps (
	id UUID PRIMARY KEY,
	playbook_id UUID NOT NULL REFERENCES automation_playbooks(id) ON DELETE CASCADE,
	sort_order INT NOT NULL,
	workspace TEXT NOT NULL DEFAULT 'ops',
	action TEXT NOT NULL,
	config JSONB NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS automation_runs (
	id UUID PRIMARY KEY,
	playbook_id UUID NOT NULL,
	organization_id UUID NOT NULL,
	triggered_by TEXT NOT NULL,
	context JSONB NOT NULL DEFAULT '{}',
	status TEXT NOT NULL DEFAULT 'processing',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS automation_run_steps (
	id UUID PRIMARY KEY,
	run_id UUID NOT NULL REFERENCES automation_runs(id),
	step_id UUID NOT NULL,
	workspace TEXT NOT NULL,
	action TEXT NOT NULL,
	status TEXT NOT NULL,
	output JSONB NOT NULL DEFAULT '{}',
	completed_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
	id UUID PRIMARY KEY,
	organization_id UUID NOT NULL,
	client_id TEXT,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	phase TEXT NOT NULL,
	health TEXT NOT NULL,
	start_date DATE NOT NULL,
	owner_id TEXT NOT NULL,
	progress INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS project_kickoffs (
	id UUID PRIMARY KEY,
	project_id UUID NOT NULL REFERENCES projects(id),
	client_id TEXT,
	owner_id TEXT NOT NULL,
	kickoff_date DATE NOT NULL,
	agenda JSONB NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS invoice_schedules (
	id UUID PRIMARY KEY,
	organization_id UUID NOT NULL,
	client_id TEXT NOT NULL,
	project_id TEXT,
	amount NUMERIC(12,2) NOT NULL,
	due_date DATE NOT NULL,
	status TEXT NOT NULL DEFAULT 'scheduled'
);
`

// EnsureSchema applies the DDL. All statements are idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}
