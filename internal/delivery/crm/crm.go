// Package crm pushes trigger actions to the CRM's webhook endpoint.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/pulse/internal/trigger"
)

const httpTimeout = 10 * time.Second

// Client posts trigger actions to a CRM webhook. If baseURL is empty every
// call is a no-op, so the pipeline can run without a CRM attached.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates a new CRM client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: httpTimeout},
	}
}

// actionRequest is the wire shape of one CRM action.
type actionRequest struct {
	Action          string   `json:"action"`
	TriggerID       string   `json:"trigger_id"`
	LeadID          string   `json:"lead_id"`
	Condition       string   `json:"condition"`
	Priority        int      `json:"priority"`
	Urgency         string   `json:"urgency"`
	Confidence      float64  `json:"confidence"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Do posts one action for the trigger to the CRM.
func (c *Client) Do(ctx context.Context, action string, t *trigger.Trigger) error {
	if c.baseURL == "" {
		return nil
	}

	body, err := json.Marshal(actionRequest{
		Action:          action,
		TriggerID:       t.ID,
		LeadID:          t.LeadID,
		Condition:       t.Condition,
		Priority:        t.Priority,
		Urgency:         string(t.Payload.Urgency),
		Confidence:      t.Payload.Confidence,
		Recommendations: t.Payload.Recommendations,
	})
	if err != nil {
		return fmt.Errorf("crm: marshal action: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/actions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("crm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("crm: post action: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("crm: action %s returned %d: %s", action, resp.StatusCode, string(respBody))
	}
	return nil
}
