package trigger

import (
	"time"

	"github.com/linnemanlabs/pulse/internal/signal"
)

// Status tracks where a trigger is in its lifecycle.
type Status string

const (
	// StatusCreated means generated, not yet handed to the dispatcher
	StatusCreated Status = "created"

	// StatusDispatched means picked for immediate execution within the cycle
	StatusDispatched Status = "dispatched_immediate"

	// StatusQueued means deferred to the throttled background queue
	StatusQueued Status = "queued"

	// StatusExecuted means the single delivery attempt completed (terminal)
	StatusExecuted Status = "executed"

	// StatusExpired means discarded past its expiration, never executed (terminal)
	StatusExpired Status = "expired"
)

// Terminal reports whether no further transition may leave this status.
func (s Status) Terminal() bool {
	return s == StatusExecuted || s == StatusExpired
}

// Payload carries the insight context a delivery collaborator acts on.
type Payload struct {
	InsightID       string         `json:"insight_id"`
	Confidence      float64        `json:"confidence"`
	Urgency         signal.Urgency `json:"urgency"`
	Recommendations []string       `json:"recommendations,omitempty"`
}

// Trigger is a concrete action request derived from one insight suggestion.
// Executed and ExecutionResult are set exactly once, by the dispatcher.
type Trigger struct {
	ID              string             `json:"trigger_id"`
	LeadID          string             `json:"lead_id"`
	Type            signal.TriggerType `json:"trigger_type"`
	Condition       string             `json:"trigger_condition"`
	Payload         Payload            `json:"action_payload"`
	Priority        int                `json:"priority"`
	Status          Status             `json:"status"`
	TriggeredAt     time.Time          `json:"triggered_at"`
	ExpiresAt       time.Time          `json:"expiration_time"`
	Executed        bool               `json:"executed"`
	ExecutedAt      time.Time          `json:"executed_at,omitempty"`
	ExecutionResult string             `json:"execution_result,omitempty"`
}

// ExpiredAt reports whether the trigger's expiration has passed at the given time.
func (t *Trigger) ExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
