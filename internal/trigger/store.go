package trigger

import "context"

// Store is the persistence interface for the trigger audit trail.
type Store interface {
	Get(ctx context.Context, id string) (*Trigger, bool, error)
	Put(ctx context.Context, t *Trigger) error
	ListByLead(ctx context.Context, leadID string, limit int) ([]*Trigger, error)
}

// Delivery is the external collaborator that carries out trigger actions.
// Internals are opaque; each method maps to exactly one trigger type and
// reports success or failure for that single attempt.
type Delivery interface {
	Alert(ctx context.Context, t *Trigger) error
	NotifyAgent(ctx context.Context, t *Trigger) error
	SetPriorityFlag(ctx context.Context, t *Trigger) error
	SendAutomatedResponse(ctx context.Context, t *Trigger) error
	DeliverPersonalizedContent(ctx context.Context, t *Trigger) error
	StartFollowUpSequence(ctx context.Context, t *Trigger) error
	Retarget(ctx context.Context, t *Trigger) error
	Escalate(ctx context.Context, t *Trigger) error
}
