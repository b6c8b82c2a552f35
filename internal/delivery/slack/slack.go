// Package slack sends high-urgency trigger notifications to Slack via
// incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/pulse/internal/signal"
	"github.com/linnemanlabs/pulse/internal/trigger"
)

const (
	maxRecommendations = 5
	httpTimeout        = 10 * time.Second
)

// Notifier posts trigger notifications to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Post is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Post sends one trigger notification with the given title to the
// configured webhook. If no webhook URL is configured, it returns nil
// immediately.
func (n *Notifier) Post(ctx context.Context, title string, t *trigger.Trigger) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(title, t)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(title string, t *trigger.Trigger) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(title, t),
			{"type": "divider"},
			fieldsBlock(t),
			recommendationsBlock(t),
			{"type": "divider"},
			contextBlock(t),
		},
	}
}

func headerBlock(title string, t *trigger.Trigger) map[string]any {
	text := fmt.Sprintf("%s %s: lead %s", urgencyEmoji(t.Payload.Urgency), title, t.LeadID)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(t *trigger.Trigger) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Urgency:* %s", t.Payload.Urgency),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Priority:* %d/5", t.Priority),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Confidence:* %.0f%%", t.Payload.Confidence*100),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Condition:* %s", t.Condition),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func recommendationsBlock(t *trigger.Trigger) map[string]any {
	recs := t.Payload.Recommendations
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}

	text := "_No recommended actions._"
	if len(recs) > 0 {
		var sb strings.Builder
		for _, r := range recs {
			sb.WriteString("• ")
			sb.WriteString(r)
			sb.WriteString("\n")
		}
		text = sb.String()
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Recommended actions*\n%s", text),
		},
	}
}

func contextBlock(t *trigger.Trigger) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("pulse • trigger %s • %s", t.ID, t.TriggeredAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func urgencyEmoji(u signal.Urgency) string {
	switch u {
	case signal.UrgencyCritical:
		return "\U0001f534" // red circle
	case signal.UrgencyHigh:
		return "\U0001f7e0" // orange circle
	case signal.UrgencyMedium:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}
