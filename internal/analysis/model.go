package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/linnemanlabs/pulse/internal/signal"
)

// AgentType identifies which agent produced an insight.
type AgentType string

const (
	AgentSignalDetector    AgentType = "signal_detector"
	AgentPatternRecognizer AgentType = "pattern_recognizer"
	AgentIntentPredictor   AgentType = "intent_predictor"
)

// Context carries the read-only cycle context shared by all agents.
// Now anchors every time-window rule so that re-running an agent on the
// same batch and context produces the same patterns and scores.
type Context struct {
	Now       time.Time
	BatchSize int
	CycleID   string
}

// Insight is one agent's summary of detected patterns, intent, and
// urgency for a lead over one batch. Insights are created once per
// (lead, cycle) and never mutated afterward.
type Insight struct {
	ID               string               `json:"insight_id"`
	AgentType        AgentType            `json:"agent_type"`
	LeadID           string               `json:"lead_id"`
	DetectedPatterns []signal.Pattern     `json:"detected_patterns"`
	ConfidenceScore  float64              `json:"confidence_score"`
	UrgencyLevel     signal.Urgency       `json:"urgency_level"`
	PredictedIntent  string               `json:"predicted_intent"`
	Recommendations  []string             `json:"recommended_actions"`
	TriggerTypes     []signal.TriggerType `json:"trigger_suggestions"`
	BehavioralScore  float64              `json:"behavioral_score"`
	ProcessingTimeMS float64              `json:"processing_time_ms"`
}

// HasPattern reports whether the insight detected the given pattern.
func (in *Insight) HasPattern(p signal.Pattern) bool {
	for _, got := range in.DetectedPatterns {
		if got == p {
			return true
		}
	}
	return false
}

// Agent is the capability every analysis variant implements. Agents are
// a fixed closed set; new analyses extend the set rather than subclass.
// ProcessBatch must treat signals and bctx as read-only and must be
// deterministic apart from insight IDs and timing fields.
type Agent interface {
	Type() AgentType
	ProcessBatch(ctx context.Context, signals []signal.Signal, bctx Context) []Insight
}

// AgentStats is a snapshot of one agent's processing counters.
type AgentStats struct {
	BatchesProcessed uint64    `json:"batches_processed"`
	AvgProcessingMS  float64   `json:"avg_processing_ms"`
	LastProcessed    time.Time `json:"last_processed,omitempty"`
}

// statsTracker accumulates per-agent processing stats with a running
// average, safe for the concurrent fan-out.
type statsTracker struct {
	mu      sync.Mutex
	batches uint64
	avgMS   float64
	last    time.Time
}

func (t *statsTracker) record(elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.batches++
	ms := float64(elapsed.Microseconds()) / 1000.0
	t.avgMS += (ms - t.avgMS) / float64(t.batches)
	t.last = time.Now()
}

func (t *statsTracker) snapshot() AgentStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return AgentStats{
		BatchesProcessed: t.batches,
		AvgProcessingMS:  t.avgMS,
		LastProcessed:    t.last,
	}
}

// leadGroup pairs a lead with its signals from the batch.
type leadGroup struct {
	leadID  string
	signals []signal.Signal
}

// groupByLead buckets a batch per lead, preserving first-seen lead order
// so downstream trigger generation is deterministic for a given batch.
func groupByLead(signals []signal.Signal) []leadGroup {
	idx := make(map[string]int, 16)
	var groups []leadGroup
	for _, s := range signals {
		i, ok := idx[s.LeadID]
		if !ok {
			i = len(groups)
			idx[s.LeadID] = i
			groups = append(groups, leadGroup{leadID: s.LeadID})
		}
		groups[i].signals = append(groups[i].signals, s)
	}
	return groups
}
