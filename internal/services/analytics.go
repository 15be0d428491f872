package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPAnalyticsClient is an HTTP implementation of the AnalyticsPublisher
// interface, posting events to the hosted analytics-events function.
type HTTPAnalyticsClient struct {
	url    string
	client *http.Client
}

// NewHTTPAnalyticsClient creates a new HTTPAnalyticsClient.
func NewHTTPAnalyticsClient(url string) *HTTPAnalyticsClient {
	return &HTTPAnalyticsClient{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Publish sends one event to the analytics ingestion endpoint.
func (c *HTTPAnalyticsClient) Publish(ctx context.Context, event AnalyticsEvent) error {
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	event.Payload["emitted_at"] = time.Now().UTC().Format(time.RFC3339)

	requestBody, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/analytics-events", bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("failed to publish event %q: status code %d", event.EventKey, resp.StatusCode)
	}

	return nil
}
