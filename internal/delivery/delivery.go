// Package delivery routes executed triggers to their external collaborators:
// Slack for human-facing notifications, the CRM webhook for everything else.
package delivery

import (
	"context"

	"github.com/linnemanlabs/pulse/internal/delivery/crm"
	"github.com/linnemanlabs/pulse/internal/delivery/slack"
	"github.com/linnemanlabs/pulse/internal/trigger"
)

var _ trigger.Delivery = (*Router)(nil)

// Router implements trigger.Delivery by splitting trigger types between a
// Slack notifier and a CRM client.
type Router struct {
	slack *slack.Notifier
	crm   *crm.Client
}

// NewRouter creates a Router over the two collaborators.
func NewRouter(notifier *slack.Notifier, client *crm.Client) *Router {
	return &Router{slack: notifier, crm: client}
}

// Alert raises an immediate hot-lead notification.
func (r *Router) Alert(ctx context.Context, t *trigger.Trigger) error {
	return r.slack.Post(ctx, "Hot Lead Alert", t)
}

// NotifyAgent tells the assigned human agent to engage the lead.
func (r *Router) NotifyAgent(ctx context.Context, t *trigger.Trigger) error {
	return r.slack.Post(ctx, "Agent Notification", t)
}

// Escalate routes the lead to a manager.
func (r *Router) Escalate(ctx context.Context, t *trigger.Trigger) error {
	return r.slack.Post(ctx, "Escalation", t)
}

// SetPriorityFlag marks the lead high-priority in the CRM.
func (r *Router) SetPriorityFlag(ctx context.Context, t *trigger.Trigger) error {
	return r.crm.Do(ctx, "priority_flag", t)
}

// SendAutomatedResponse queues a templated reply to the lead.
func (r *Router) SendAutomatedResponse(ctx context.Context, t *trigger.Trigger) error {
	return r.crm.Do(ctx, "automated_response", t)
}

// DeliverPersonalizedContent queues tailored listings or market content.
func (r *Router) DeliverPersonalizedContent(ctx context.Context, t *trigger.Trigger) error {
	return r.crm.Do(ctx, "personalized_content", t)
}

// StartFollowUpSequence enrolls the lead in a follow-up drip.
func (r *Router) StartFollowUpSequence(ctx context.Context, t *trigger.Trigger) error {
	return r.crm.Do(ctx, "follow_up_sequence", t)
}

// Retarget adds the lead to a retargeting campaign.
func (r *Router) Retarget(ctx context.Context, t *trigger.Trigger) error {
	return r.crm.Do(ctx, "retargeting_campaign", t)
}
