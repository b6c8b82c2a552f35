package analysis

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/pulse/internal/signal"
)

// Per-type significance thresholds. A signal below its threshold carries
// no weight in detection.
var detectorThresholds = map[signal.Type]float64{
	signal.TypePropertyView:    3.0,
	signal.TypeTimeOnPage:      120.0, // seconds on page
	signal.TypeCalculatorUsage: 1.0,   // any usage is significant
	signal.TypePhoneCall:       0,     // a call is significant at any value
}

const detectorDefaultThreshold = 1.0

// Weights for the behavioral engagement score. maxSignalWeight doubles as
// the normalization ceiling.
var detectorWeights = map[signal.Type]float64{
	signal.TypePropertyView:    10.0,
	signal.TypeCalculatorUsage: 15.0,
	signal.TypeFormInteraction: 12.0,
	signal.TypeEmailClick:      8.0,
	signal.TypePhoneCall:       20.0,
}

const (
	detectorDefaultWeight = 5.0
	maxSignalWeight       = 20.0
	detectorConfidence    = 0.8
)

// SignalDetector classifies a batch's raw signals per lead: which are
// significant, which basic patterns they form, and how engaged the lead
// is overall.
type SignalDetector struct {
	stats statsTracker
}

// NewSignalDetector creates a SignalDetector.
func NewSignalDetector() *SignalDetector {
	return &SignalDetector{}
}

// Type implements Agent.
func (d *SignalDetector) Type() AgentType { return AgentSignalDetector }

// Stats snapshots the agent's processing counters.
func (d *SignalDetector) Stats() AgentStats { return d.stats.snapshot() }

// ProcessBatch implements Agent. One insight per lead that produced at
// least one significant signal; leads with none yield no insight.
func (d *SignalDetector) ProcessBatch(ctx context.Context, signals []signal.Signal, bctx Context) []Insight {
	start := time.Now()
	defer func() { d.stats.record(time.Since(start)) }()

	var insights []Insight
	for _, g := range groupByLead(signals) {
		if ctx.Err() != nil {
			return nil
		}
		if in, ok := d.analyzeLead(g.leadID, g.signals, bctx); ok {
			in.ProcessingTimeMS = float64(time.Since(start).Microseconds()) / 1000.0
			insights = append(insights, in)
		}
	}
	return insights
}

func (d *SignalDetector) analyzeLead(leadID string, signals []signal.Signal, bctx Context) (Insight, bool) {
	significant := make([]signal.Signal, 0, len(signals))
	for _, s := range signals {
		if isSignificant(s) {
			significant = append(significant, s)
		}
	}
	if len(significant) == 0 {
		return Insight{}, false
	}

	patterns := detectBasicPatterns(significant, bctx.Now)
	return Insight{
		ID:               ulid.Make().String(),
		AgentType:        AgentSignalDetector,
		LeadID:           leadID,
		DetectedPatterns: patterns,
		ConfidenceScore:  detectorConfidence,
		UrgencyLevel:     detectorUrgency(significant, patterns),
		PredictedIntent:  "signal_analysis",
		Recommendations:  detectorRecommendations(patterns),
		TriggerTypes:     []signal.TriggerType{signal.TriggerAutomatedResponse},
		BehavioralScore:  behavioralScore(significant),
	}, true
}

func isSignificant(s signal.Signal) bool {
	threshold, ok := detectorThresholds[s.Type]
	if !ok {
		threshold = detectorDefaultThreshold
	}
	return s.InteractionValue >= threshold
}

func detectBasicPatterns(signals []signal.Signal, now time.Time) []signal.Pattern {
	var patterns []signal.Pattern

	propertyViews := 0
	calculator := false
	recent := 0
	for _, s := range signals {
		switch s.Type {
		case signal.TypePropertyView:
			propertyViews++
		case signal.TypeCalculatorUsage:
			calculator = true
		}
		if now.Sub(s.Timestamp) < 30*time.Minute {
			recent++
		}
	}

	if propertyViews >= 5 {
		patterns = append(patterns, signal.PatternHighIntentBrowsing)
	}
	if calculator {
		patterns = append(patterns, signal.PatternPriceSensitivity)
	}
	if recent >= 10 {
		patterns = append(patterns, signal.PatternEngagementSpike)
	}
	return patterns
}

// behavioralScore sums weighted interaction values and normalizes against
// the maximum attainable weight, clamped to [0,100].
func behavioralScore(signals []signal.Signal) float64 {
	if len(signals) == 0 {
		return 0
	}
	var total float64
	for _, s := range signals {
		w, ok := detectorWeights[s.Type]
		if !ok {
			w = detectorDefaultWeight
		}
		total += w * s.InteractionValue
	}
	maxPossible := float64(len(signals)) * maxSignalWeight
	score := total / maxPossible * 100
	return clamp(score, 0, 100)
}

// detectorUrgency: a phone call always wins, then an engagement spike,
// then high-intent browsing.
func detectorUrgency(signals []signal.Signal, patterns []signal.Pattern) signal.Urgency {
	for _, s := range signals {
		if s.Type == signal.TypePhoneCall {
			return signal.UrgencyCritical
		}
	}
	if hasPattern(patterns, signal.PatternEngagementSpike) {
		return signal.UrgencyHigh
	}
	if hasPattern(patterns, signal.PatternHighIntentBrowsing) {
		return signal.UrgencyMedium
	}
	return signal.UrgencyLow
}

func detectorRecommendations(patterns []signal.Pattern) []string {
	var recs []string
	if hasPattern(patterns, signal.PatternHighIntentBrowsing) {
		recs = append(recs, "Initiate personalized property recommendations")
	}
	if hasPattern(patterns, signal.PatternPriceSensitivity) {
		recs = append(recs, "Provide financing options and price analysis")
	}
	if hasPattern(patterns, signal.PatternEngagementSpike) {
		recs = append(recs, "Enable live chat or immediate agent contact")
	}
	if len(recs) == 0 {
		recs = append(recs, "Continue monitoring behavioral patterns")
	}
	return recs
}

func hasPattern(patterns []signal.Pattern, p signal.Pattern) bool {
	for _, got := range patterns {
		if got == p {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
