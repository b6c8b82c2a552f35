package trigger

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/pulse/internal/analysis"
	"github.com/linnemanlabs/pulse/internal/signal"
)

// DefaultTTL is how long a generated trigger stays actionable.
const DefaultTTL = time.Hour

// Generator turns insights into triggers with a computed priority.
type Generator struct {
	ttl time.Duration
}

// NewGenerator creates a Generator. A non-positive ttl falls back to DefaultTTL.
func NewGenerator(ttl time.Duration) *Generator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Generator{ttl: ttl}
}

// Generate creates one trigger per suggested trigger type of every insight.
// An insight without suggestions still yields one low-priority automated
// response, so no insight is silently dropped.
func (g *Generator) Generate(insights []analysis.Insight, now time.Time) []*Trigger {
	var out []*Trigger
	for i := range insights {
		in := &insights[i]

		types := in.TriggerTypes
		if len(types) == 0 {
			types = []signal.TriggerType{signal.TriggerAutomatedResponse}
		}

		for _, tt := range types {
			out = append(out, &Trigger{
				ID:        ulid.Make().String(),
				LeadID:    in.LeadID,
				Type:      tt,
				Condition: fmt.Sprintf("behavioral pattern detected: %s", in.PredictedIntent),
				Payload: Payload{
					InsightID:       in.ID,
					Confidence:      in.ConfidenceScore,
					Urgency:         in.UrgencyLevel,
					Recommendations: in.Recommendations,
				},
				Priority:    priorityFor(in.UrgencyLevel, in.ConfidenceScore),
				Status:      StatusCreated,
				TriggeredAt: now,
				ExpiresAt:   now.Add(g.ttl),
			})
		}
	}
	return out
}

// priorityFor computes a priority in [1,5]: base 2, plus an urgency bonus
// and a high-confidence bonus, capped at 5.
func priorityFor(urgency signal.Urgency, confidence float64) int {
	p := 2
	switch urgency {
	case signal.UrgencyHigh:
		p++
	case signal.UrgencyCritical:
		p += 2
	}
	if confidence > 0.8 {
		p++
	}
	if p > 5 {
		p = 5
	}
	return p
}
