package services

import "context"

// AnalyticsEvent is one business event forwarded to the analytics ingest
// function.
type AnalyticsEvent struct {
	OrganizationID string         `json:"organization_id"`
	UserID         string         `json:"user_id"`
	EventKey       string         `json:"event_key"`
	Entity         string         `json:"entity,omitempty"`
	EntityID       string         `json:"entity_id,omitempty"`
	Payload        map[string]any `json:"payload"`
}

// AnalyticsPublisher is an interface for publishing events to the analytics
// ingestion service.
type AnalyticsPublisher interface {
	// Publish sends one event. Callers decide whether a failure is fatal.
	Publish(ctx context.Context, event AnalyticsEvent) error
}
