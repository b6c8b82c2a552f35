package analysis

import (
	"context"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/pulse/internal/signal"
)

const (
	recognizerHourWindow    = time.Hour
	recognizerResearchSpan  = 2 * time.Hour
	intensityWindow         = 10 * time.Minute
	recognizerMaxConfidence = 0.95
)

// Score weights per recognized pattern; abandonment risk subtracts.
var patternWeights = map[signal.Pattern]float64{
	signal.PatternHighIntentBrowsing: 20.0,
	signal.PatternDecisionMaking:     25.0,
	signal.PatternUrgencyIndicators:  30.0,
	signal.PatternAbandonmentRisk:    -15.0,
	signal.PatternEngagementSpike:    15.0,
}

const patternDefaultWeight = 10.0

// PatternRecognizer finds temporal, sequence, and intensity patterns in
// each lead's time-ordered signals. An optional advisor annotates the
// resulting insight with generated recommendations; its failure never
// changes patterns or scores.
type PatternRecognizer struct {
	advisor *Advisor
	stats   statsTracker
}

// NewPatternRecognizer creates a PatternRecognizer. advisor may be nil.
func NewPatternRecognizer(advisor *Advisor) *PatternRecognizer {
	return &PatternRecognizer{advisor: advisor}
}

// Type implements Agent.
func (r *PatternRecognizer) Type() AgentType { return AgentPatternRecognizer }

// Stats snapshots the agent's processing counters.
func (r *PatternRecognizer) Stats() AgentStats { return r.stats.snapshot() }

// ProcessBatch implements Agent. Leads with no recognized pattern yield
// no insight.
func (r *PatternRecognizer) ProcessBatch(ctx context.Context, signals []signal.Signal, bctx Context) []Insight {
	start := time.Now()
	defer func() { r.stats.record(time.Since(start)) }()

	var insights []Insight
	for _, g := range groupByLead(signals) {
		if ctx.Err() != nil {
			return nil
		}
		if in, ok := r.analyzeLead(ctx, g.leadID, g.signals, bctx); ok {
			in.ProcessingTimeMS = float64(time.Since(start).Microseconds()) / 1000.0
			insights = append(insights, in)
		}
	}
	return insights
}

func (r *PatternRecognizer) analyzeLead(ctx context.Context, leadID string, signals []signal.Signal, bctx Context) (Insight, bool) {
	sorted := make([]signal.Signal, len(signals))
	copy(sorted, signals)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var patterns []signal.Pattern
	patterns = append(patterns, temporalPatterns(sorted, bctx.Now)...)
	patterns = append(patterns, sequencePatterns(sorted)...)
	patterns = append(patterns, intensityPatterns(sorted)...)
	if len(patterns) == 0 {
		return Insight{}, false
	}

	return Insight{
		ID:               ulid.Make().String(),
		AgentType:        AgentPatternRecognizer,
		LeadID:           leadID,
		DetectedPatterns: patterns,
		ConfidenceScore:  patternConfidence(patterns, sorted),
		UrgencyLevel:     patternUrgency(patterns),
		PredictedIntent:  dominantPattern(patterns),
		Recommendations:  r.advisor.Annotate(ctx, leadID, patterns, sorted),
		TriggerTypes:     patternTriggers(patterns),
		BehavioralScore:  patternScore(patterns),
	}, true
}

// temporalPatterns looks at the time distribution of activity: a burst in
// the last hour signals urgency, a long steady spread signals research.
func temporalPatterns(sorted []signal.Signal, now time.Time) []signal.Pattern {
	var patterns []signal.Pattern
	if len(sorted) == 0 {
		return patterns
	}

	recent := 0
	for _, s := range sorted {
		if now.Sub(s.Timestamp) < recognizerHourWindow {
			recent++
		}
	}
	if recent >= 10 {
		patterns = append(patterns, signal.PatternUrgencyIndicators)
	}

	span := sorted[len(sorted)-1].Timestamp.Sub(sorted[0].Timestamp)
	if len(sorted) >= 20 && span > recognizerResearchSpan {
		patterns = append(patterns, signal.PatternResearchMode)
	}
	return patterns
}

// sequencePatterns looks at what the lead did, in order: breadth of
// distinct properties means comparison shopping; calculator plus form in
// the last five signals means an active decision.
func sequencePatterns(sorted []signal.Signal) []signal.Pattern {
	var patterns []signal.Pattern
	if len(sorted) < 3 {
		return patterns
	}

	properties := make(map[string]struct{})
	for _, s := range sorted {
		if s.Type == signal.TypePropertyView {
			if id := s.PropertyID(); id != "" {
				properties[id] = struct{}{}
			}
		}
	}
	if len(properties) >= 3 {
		patterns = append(patterns, signal.PatternComparisonShopping)
	}

	tail := sorted
	if len(tail) > 5 {
		tail = tail[len(tail)-5:]
	}
	var calculator, form bool
	for _, s := range tail {
		switch s.Type {
		case signal.TypeCalculatorUsage:
			calculator = true
		case signal.TypeFormInteraction:
			form = true
		}
	}
	if calculator && form {
		patterns = append(patterns, signal.PatternDecisionMaking)
	}
	return patterns
}

// intensityPatterns buckets signals into ten-minute windows anchored to
// the lead's earliest signal in the batch. Activity in the two most
// recent windows falling below half of the two prior windows marks
// abandonment risk; fewer than four windows of history is inconclusive.
func intensityPatterns(sorted []signal.Signal) []signal.Pattern {
	var patterns []signal.Pattern
	if len(sorted) < 5 {
		return patterns
	}

	anchor := sorted[0].Timestamp
	last := sorted[len(sorted)-1].Timestamp
	n := int(last.Sub(anchor)/intensityWindow) + 1
	if n < 4 {
		return patterns
	}

	counts := make([]int, n)
	for _, s := range sorted {
		counts[int(s.Timestamp.Sub(anchor)/intensityWindow)]++
	}

	recent := counts[n-1] + counts[n-2]
	earlier := counts[n-3] + counts[n-4]
	if float64(recent) < float64(earlier)*0.5 {
		patterns = append(patterns, signal.PatternAbandonmentRisk)
	}
	return patterns
}

func patternConfidence(patterns []signal.Pattern, signals []signal.Signal) float64 {
	quality := float64(len(signals)) / 50.0
	if quality > 1 {
		quality = 1
	}
	confidence := 0.2*float64(len(patterns)) + 0.2*quality
	if confidence > recognizerMaxConfidence {
		confidence = recognizerMaxConfidence
	}
	return confidence
}

// Pattern priority table, first match wins.
func patternUrgency(patterns []signal.Pattern) signal.Urgency {
	if hasPattern(patterns, signal.PatternUrgencyIndicators) || hasPattern(patterns, signal.PatternDecisionMaking) {
		return signal.UrgencyCritical
	}
	if hasPattern(patterns, signal.PatternAbandonmentRisk) || hasPattern(patterns, signal.PatternEngagementSpike) {
		return signal.UrgencyHigh
	}
	return signal.UrgencyMedium
}

// dominantPattern names the insight's predicted intent after the highest
// priority pattern present.
func dominantPattern(patterns []signal.Pattern) string {
	order := []signal.Pattern{
		signal.PatternUrgencyIndicators,
		signal.PatternDecisionMaking,
		signal.PatternAbandonmentRisk,
		signal.PatternEngagementSpike,
		signal.PatternComparisonShopping,
		signal.PatternResearchMode,
		signal.PatternHighIntentBrowsing,
	}
	for _, p := range order {
		if hasPattern(patterns, p) {
			return string(p)
		}
	}
	return string(patterns[0])
}

func patternTriggers(patterns []signal.Pattern) []signal.TriggerType {
	var triggers []signal.TriggerType
	if hasPattern(patterns, signal.PatternAbandonmentRisk) {
		triggers = append(triggers, signal.TriggerImmediateAlert, signal.TriggerRetargetingCampaign)
	}
	if hasPattern(patterns, signal.PatternDecisionMaking) {
		triggers = append(triggers, signal.TriggerAgentNotification, signal.TriggerPriorityFlag)
	}
	if hasPattern(patterns, signal.PatternUrgencyIndicators) {
		triggers = append(triggers, signal.TriggerEscalation)
	}
	if len(triggers) == 0 {
		triggers = append(triggers, signal.TriggerAutomatedResponse)
	}
	return triggers
}

func patternScore(patterns []signal.Pattern) float64 {
	var total float64
	for _, p := range patterns {
		w, ok := patternWeights[p]
		if !ok {
			w = patternDefaultWeight
		}
		total += w
	}
	return clamp(total, 0, 100)
}
