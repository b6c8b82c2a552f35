// Package signal defines the behavioral-telemetry vocabulary shared by the
// rest of pulse: the signal event itself plus the closed sets of signal
// types, detected patterns, trigger types, and urgency levels.
package signal

import (
	"fmt"
	"time"
)

// Type classifies a behavioral signal by the interaction that produced it.
type Type string

const (
	TypePageView         Type = "page_view"
	TypePropertyView     Type = "property_view"
	TypeSearchQuery      Type = "search_query"
	TypeFormInteraction  Type = "form_interaction"
	TypeEmailOpen        Type = "email_open"
	TypeEmailClick       Type = "email_click"
	TypePhoneCall        Type = "phone_call"
	TypeChatMessage      Type = "chat_message"
	TypeDocumentDownload Type = "document_download"
	TypeCalculatorUsage  Type = "calculator_usage"
	TypeFavoritesAction  Type = "favorites_action"
	TypeSharingAction    Type = "sharing_action"
	TypeTimeOnPage       Type = "time_on_page"
	TypeScrollBehavior   Type = "scroll_behavior"
	TypeClickPattern     Type = "click_pattern"
	TypeDeviceSwitch     Type = "device_switch"
)

// Types lists every known signal type in declaration order.
var Types = []Type{
	TypePageView, TypePropertyView, TypeSearchQuery, TypeFormInteraction,
	TypeEmailOpen, TypeEmailClick, TypePhoneCall, TypeChatMessage,
	TypeDocumentDownload, TypeCalculatorUsage, TypeFavoritesAction,
	TypeSharingAction, TypeTimeOnPage, TypeScrollBehavior,
	TypeClickPattern, TypeDeviceSwitch,
}

var validTypes = func() map[Type]struct{} {
	m := make(map[Type]struct{}, len(Types))
	for _, t := range Types {
		m[t] = struct{}{}
	}
	return m
}()

// ParseType validates a wire-format signal type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if _, ok := validTypes[t]; !ok {
		return "", fmt.Errorf("unknown signal type %q", s)
	}
	return t, nil
}

// Pattern names a behavioral pattern an analysis agent can detect.
type Pattern string

const (
	PatternHighIntentBrowsing Pattern = "high_intent_browsing"
	PatternPriceSensitivity   Pattern = "price_sensitivity"
	PatternUrgencyIndicators  Pattern = "urgency_indicators"
	PatternComparisonShopping Pattern = "comparison_shopping"
	PatternAbandonmentRisk    Pattern = "abandonment_risk"
	PatternEngagementSpike    Pattern = "engagement_spike"
	PatternResearchMode       Pattern = "research_mode"
	PatternDecisionMaking     Pattern = "decision_making"
	PatternSocialValidation   Pattern = "social_validation"
	PatternMobilePreference   Pattern = "mobile_preference"
)

// TriggerType names the action a trigger requests from a delivery collaborator.
type TriggerType string

const (
	TriggerImmediateAlert      TriggerType = "immediate_alert"
	TriggerFollowUpSequence    TriggerType = "follow_up_sequence"
	TriggerPersonalizedContent TriggerType = "personalized_content"
	TriggerAgentNotification   TriggerType = "agent_notification"
	TriggerAutomatedResponse   TriggerType = "automated_response"
	TriggerEscalation          TriggerType = "escalation_trigger"
	TriggerRetargetingCampaign TriggerType = "retargeting_campaign"
	TriggerPriorityFlag        TriggerType = "priority_flag"
)

// Urgency is the ordinal low < medium < high < critical scale used by
// insights and triggers alike.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Rank returns the ordinal position of u, with unknown values ranking
// below low.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyLow:
		return 1
	case UrgencyMedium:
		return 2
	case UrgencyHigh:
		return 3
	case UrgencyCritical:
		return 4
	default:
		return 0
	}
}

// Signal is one timestamped behavioral event tied to a lead. Signals are
// immutable once ingested: producers create them, the network consumes
// them for exactly one cycle and does not retain them afterward.
type Signal struct {
	ID               string         `json:"signal_id"`
	LeadID           string         `json:"lead_id"`
	Type             Type           `json:"signal_type"`
	Timestamp        time.Time      `json:"timestamp"`
	InteractionValue float64        `json:"interaction_value"`
	ContextData      map[string]any `json:"context_data,omitempty"`
}

// PropertyID returns the property identifier from context data, if the
// producer attached one. Used by comparison-shopping detection.
func (s *Signal) PropertyID() string {
	if s.ContextData == nil {
		return ""
	}
	if v, ok := s.ContextData["property_id"].(string); ok {
		return v
	}
	return ""
}
