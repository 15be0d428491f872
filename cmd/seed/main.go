package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"revenueos/backend/internal/config"
	"revenueos/backend/internal/logging"
	"revenueos/backend/internal/repository"
	"revenueos/backend/pkg/models"
)

func main() {
	ctx := context.Background()
	logger := logging.NewLogger()

	// Load config
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to DB
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pool.Close()

	if err := repository.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	store := repository.NewPostgresStore(pool)

	// 1. Ensure a local organization exists
	domain := "localhost"
	org, err := store.GetOrganizationByDomain(ctx, domain)
	if err != nil {
		logger.Info("Creating default organization for domain %s", domain)
		org = &models.Organization{
			Name:   "Local Dev Org",
			Domain: domain,
		}
		if err := store.CreateOrganization(ctx, org); err != nil {
			log.Fatalf("Failed to create organization: %v", err)
		}
	} else {
		logger.Info("Found existing organization %s", org.ID)
	}

	// 2. Check for existing playbooks to prevent duplicates
	existing, err := store.ListPlaybooks(ctx, org.ID)
	if err != nil {
		log.Fatalf("Failed to list existing playbooks: %v", err)
	}

	existingNames := make(map[string]bool)
	for _, p := range existing {
		existingNames[p.Name] = true
	}

	// 3. Create the stock closed-won playbook
	name := "Closed-Won Handoff"
	if existingNames[name] {
		logger.Info("Skipping existing playbook %q", name)
		logger.Info("Seeding complete!")
		return
	}

	description := "Logs the win, spins up the delivery project, and schedules the invoice plan."
	playbook := &models.Playbook{
		OrganizationID: org.ID,
		Name:           name,
		Description:    &description,
		TriggerEvent:   "pipeline.closed_won",
		Status:         models.PlaybookStatusActive,
		Configuration:  map[string]any{},
		CreatedBy:      "seed-script",
		Steps: []models.Step{
			{
				SortOrder: 1,
				Workspace: models.WorkspaceSales,
				Action:    "log_closed_won_context",
				Config:    map[string]any{},
			},
			{
				SortOrder: 2,
				Workspace: models.WorkspaceDelivery,
				Action:    "create_project_kickoff",
				Config:    map[string]any{"phase": "Discovery"},
			},
			{
				SortOrder: 3,
				Workspace: models.WorkspaceFinance,
				Action:    "schedule_invoice_plan",
				Config:    map[string]any{"installments": 3, "cadence": "monthly"},
			},
		},
	}

	if err := store.UpsertPlaybook(ctx, playbook); err != nil {
		log.Printf("Failed to create playbook %s: %v", name, err)
	} else {
		logger.Info("Seeded playbook %q (%s)", name, playbook.ID)
	}
	logger.Info("Seeding complete!")
}
