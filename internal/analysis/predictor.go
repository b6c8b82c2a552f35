package analysis

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/pulse/internal/signal"
)

// Intent categories and the signal types that contribute evidence to each.
const (
	IntentBuying     = "buying_intent"
	IntentBrowsing   = "browsing_intent"
	IntentResearch   = "research_intent"
	IntentComparison = "comparison_intent"
)

var intentIndicators = map[string][]signal.Type{
	IntentBuying: {
		signal.TypeCalculatorUsage,
		signal.TypeFormInteraction,
		signal.TypePhoneCall,
		signal.TypeDocumentDownload,
	},
	IntentBrowsing: {
		signal.TypePageView,
		signal.TypePropertyView,
		signal.TypeScrollBehavior,
	},
	IntentResearch: {
		signal.TypeSearchQuery,
		signal.TypeTimeOnPage,
		signal.TypeEmailOpen,
	},
	IntentComparison: {
		signal.TypePropertyView,
		signal.TypeFavoritesAction,
		signal.TypeSharingAction,
	},
}

// Evaluation order keeps score normalization and argmax deterministic.
var intentOrder = []string{IntentBuying, IntentBrowsing, IntentResearch, IntentComparison}

const (
	predictorMinSignals    = 3
	predictorMinConfidence = 0.5
	recencyWindow          = 30 * time.Minute
	recencyShare           = 0.3
	recencyBoost           = 1.2
)

// IntentPredictor scores a lead's signals against the four intent
// categories and emits an insight for the winning intent when the
// evidence is strong enough.
type IntentPredictor struct {
	stats statsTracker
}

// NewIntentPredictor creates an IntentPredictor.
func NewIntentPredictor() *IntentPredictor {
	return &IntentPredictor{}
}

// Type implements Agent.
func (p *IntentPredictor) Type() AgentType { return AgentIntentPredictor }

// Stats snapshots the agent's processing counters.
func (p *IntentPredictor) Stats() AgentStats { return p.stats.snapshot() }

// ProcessBatch implements Agent. Leads with fewer than three signals, or
// whose best intent scores below the confidence floor, yield no insight.
func (p *IntentPredictor) ProcessBatch(ctx context.Context, signals []signal.Signal, bctx Context) []Insight {
	start := time.Now()
	defer func() { p.stats.record(time.Since(start)) }()

	var insights []Insight
	for _, g := range groupByLead(signals) {
		if ctx.Err() != nil {
			return nil
		}
		if in, ok := p.predictLead(g.leadID, g.signals, bctx); ok {
			in.ProcessingTimeMS = float64(time.Since(start).Microseconds()) / 1000.0
			insights = append(insights, in)
		}
	}
	return insights
}

func (p *IntentPredictor) predictLead(leadID string, signals []signal.Signal, bctx Context) (Insight, bool) {
	if len(signals) < predictorMinSignals {
		return Insight{}, false
	}

	scores := intentScores(signals, bctx.Now)

	primary := intentOrder[0]
	for _, intent := range intentOrder[1:] {
		if scores[intent] > scores[primary] {
			primary = intent
		}
	}
	confidence := scores[primary]
	if confidence < predictorMinConfidence {
		return Insight{}, false
	}

	return Insight{
		ID:               ulid.Make().String(),
		AgentType:        AgentIntentPredictor,
		LeadID:           leadID,
		DetectedPatterns: intentPatterns(primary, signals),
		ConfidenceScore:  confidence,
		UrgencyLevel:     intentUrgency(primary, confidence),
		PredictedIntent:  primary,
		Recommendations:  intentRecommendations(primary, confidence),
		TriggerTypes:     intentTriggers(primary, confidence),
		BehavioralScore:  confidence * 100,
	}, true
}

// intentScores computes per-category scores: up to 0.7 from match count,
// up to 0.3 from average interaction strength, times a recency boost when
// at least 30% of the lead's signals landed in the last half hour. Scores
// are divided by the max when it exceeds 1.0 so every score stays in [0,1].
func intentScores(signals []signal.Signal, now time.Time) map[string]float64 {
	recent := 0
	for _, s := range signals {
		if now.Sub(s.Timestamp) < recencyWindow {
			recent++
		}
	}
	boosted := float64(recent) >= float64(len(signals))*recencyShare && recent > 0

	scores := make(map[string]float64, len(intentOrder))
	for _, intent := range intentOrder {
		indicators := intentIndicators[intent]
		var matches int
		var strength float64
		for _, s := range signals {
			for _, t := range indicators {
				if s.Type == t {
					matches++
					strength += s.InteractionValue
					break
				}
			}
		}
		if matches == 0 {
			scores[intent] = 0
			continue
		}

		base := float64(matches) / 10
		if base > 0.7 {
			base = 0.7
		}
		bonus := strength / float64(matches) / 10
		if bonus > 0.3 {
			bonus = 0.3
		}
		score := base + bonus
		if boosted {
			score *= recencyBoost
		}
		scores[intent] = score
	}

	var max float64
	for _, score := range scores {
		if score > max {
			max = score
		}
	}
	if max > 1.0 {
		for intent := range scores {
			scores[intent] /= max
		}
	}
	return scores
}

func intentUrgency(intent string, confidence float64) signal.Urgency {
	switch {
	case intent == IntentBuying && confidence > 0.8:
		return signal.UrgencyCritical
	case (intent == IntentBuying || intent == IntentComparison) && confidence > 0.7:
		return signal.UrgencyHigh
	case confidence > 0.6:
		return signal.UrgencyMedium
	default:
		return signal.UrgencyLow
	}
}

// intentTriggers mirrors the urgency mapping: a confident buyer pages the
// humans, a likely buyer or comparer gets content, everyone else gets the
// automated path.
func intentTriggers(intent string, confidence float64) []signal.TriggerType {
	switch {
	case intent == IntentBuying && confidence > 0.8:
		return []signal.TriggerType{
			signal.TriggerImmediateAlert,
			signal.TriggerAgentNotification,
			signal.TriggerPriorityFlag,
		}
	case intent == IntentBuying || intent == IntentComparison:
		return []signal.TriggerType{
			signal.TriggerPersonalizedContent,
			signal.TriggerFollowUpSequence,
		}
	default:
		return []signal.TriggerType{signal.TriggerAutomatedResponse}
	}
}

func intentPatterns(intent string, signals []signal.Signal) []signal.Pattern {
	var patterns []signal.Pattern
	switch intent {
	case IntentBuying:
		patterns = append(patterns, signal.PatternHighIntentBrowsing, signal.PatternDecisionMaking)
	case IntentComparison:
		patterns = append(patterns, signal.PatternComparisonShopping)
	case IntentResearch:
		patterns = append(patterns, signal.PatternResearchMode)
	}

	propertyViews := 0
	for _, s := range signals {
		if s.Type == signal.TypePropertyView {
			propertyViews++
		}
	}
	if propertyViews >= 5 && !hasPattern(patterns, signal.PatternHighIntentBrowsing) {
		patterns = append(patterns, signal.PatternHighIntentBrowsing)
	}
	return patterns
}

func intentRecommendations(intent string, confidence float64) []string {
	var recs []string
	switch intent {
	case IntentBuying:
		recs = []string{
			"Connect with qualified agent immediately",
			"Provide financing pre-approval information",
			"Schedule property viewing",
		}
	case IntentResearch:
		recs = []string{
			"Provide comprehensive market reports",
			"Send educational content about home buying",
			"Offer neighborhood insights",
		}
	case IntentComparison:
		recs = []string{
			"Provide detailed property comparisons",
			"Send customized property recommendations",
			"Offer professional consultation",
		}
	default:
		recs = []string{
			"Send personalized property alerts",
			"Provide general market information",
		}
	}

	if confidence > 0.8 {
		recs = append([]string{"High-priority lead: immediate action required"}, recs...)
	} else if confidence < 0.6 {
		recs = append(recs, "Monitor behavior for stronger intent signals")
	}
	return recs
}
