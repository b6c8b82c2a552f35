package network

import (
	"sync"
	"time"

	"github.com/linnemanlabs/pulse/internal/analysis"
)

// NetworkStats is the point-in-time counter snapshot returned to callers.
type NetworkStats struct {
	SignalsProcessed  uint64                         `json:"signals_processed"`
	InsightsGenerated uint64                         `json:"insights_generated"`
	TriggersGenerated uint64                         `json:"triggers_generated"`
	TriggersExecuted  uint64                         `json:"triggers_executed"`
	TriggersFailed    uint64                         `json:"triggers_failed"`
	DroppedSignals    uint64                         `json:"dropped_signals"`
	ExpiredTriggers   uint64                         `json:"expired_triggers"`
	DeferredDropped   uint64                         `json:"deferred_dropped"`
	CyclesCompleted   uint64                         `json:"cycles_completed"`
	AvgCycleLatencyMS float64                        `json:"avg_cycle_latency_ms"`
	QueueDepths       map[string]int                 `json:"queue_depths"`
	UptimeSeconds     float64                        `json:"uptime_seconds"`
	Agents            map[string]analysis.AgentStats `json:"agents"`
}

// cycleLatency keeps a running average of cycle durations.
type cycleLatency struct {
	mu     sync.Mutex
	cycles uint64
	avgMS  float64
}

func (c *cycleLatency) record(elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycles++
	ms := float64(elapsed.Microseconds()) / 1000.0
	c.avgMS += (ms - c.avgMS) / float64(c.cycles)
}

func (c *cycleLatency) snapshot() (cycles uint64, avgMS float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycles, c.avgMS
}
