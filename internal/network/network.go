package network

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/pulse/internal/analysis"
	"github.com/linnemanlabs/pulse/internal/ingest"
	"github.com/linnemanlabs/pulse/internal/recent"
	"github.com/linnemanlabs/pulse/internal/signal"
	"github.com/linnemanlabs/pulse/internal/trigger"
)

// ErrNoData is returned by AnalyzeLeadRealtime when the lead has no cached
// recent signals.
var ErrNoData = errors.New("no recent signals for lead")

// Config tunes the cycle driver. Zero values take the defaults.
type Config struct {
	// CycleInterval is the fixed pace of analysis cycles (default 5s).
	CycleInterval time.Duration

	// MaxBatchSize caps signals drained per category each cycle (default 100).
	MaxBatchSize int

	// CycleTimeout bounds one cycle's agent fan-out (default CycleInterval).
	CycleTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.CycleInterval <= 0 {
		c.CycleInterval = 5 * time.Second
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 100
	}
	if c.CycleTimeout <= 0 {
		c.CycleTimeout = c.CycleInterval
	}
}

// Network drives the ingest -> analyze -> generate -> dispatch pipeline on
// a fixed cycle. Construct with New, then Start; Stop cancels an in-flight
// cycle and discards its partial results.
type Network struct {
	cfg         Config
	ingestor    *ingest.Ingestor
	agents      []analysis.Agent
	generator   *trigger.Generator
	dispatcher  *trigger.Dispatcher
	recentStore recent.Store
	metrics     *Metrics
	logger      log.Logger

	cancel    context.CancelFunc
	stopOnce  sync.Once
	wg        sync.WaitGroup
	startedAt time.Time

	signalsProcessed  atomic.Uint64
	insightsGenerated atomic.Uint64
	triggersGenerated atomic.Uint64
	latency           cycleLatency

	syncMu       sync.Mutex
	lastExecuted uint64
	lastFailed   uint64
	lastExpired  uint64
	lastDeferred uint64
}

// New assembles a Network from its collaborators. recentStore may be nil,
// which disables the on-demand analysis path. A nil metrics registers on a
// throwaway registry; a nil logger is a no-op.
func New(
	cfg Config,
	ingestor *ingest.Ingestor,
	agents []analysis.Agent,
	generator *trigger.Generator,
	dispatcher *trigger.Dispatcher,
	recentStore recent.Store,
	metrics *Metrics,
	logger log.Logger,
) *Network {
	cfg.applyDefaults()
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Network{
		cfg:         cfg,
		ingestor:    ingestor,
		agents:      agents,
		generator:   generator,
		dispatcher:  dispatcher,
		recentStore: recentStore,
		metrics:     metrics,
		logger:      logger,
	}
}

// Start launches the cycle driver and the dispatcher's deferred drain.
func (n *Network) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.startedAt = time.Now()

	n.dispatcher.Start()
	n.wg.Add(1)
	go n.run(ctx)

	n.logger.Info(ctx, "behavioral network started",
		"cycle_interval", n.cfg.CycleInterval.String(),
		"max_batch_size", n.cfg.MaxBatchSize,
		"agents", len(n.agents),
	)
}

// Stop cancels the cycle driver, waits for an in-flight cycle to unwind,
// then halts the dispatcher.
func (n *Network) Stop() {
	n.stopOnce.Do(func() {
		n.cancel()
		n.wg.Wait()
		n.dispatcher.Stop()
		n.logger.Info(context.Background(), "behavioral network stopped")
	})
}

// Ingest accepts one behavioral signal. Never blocks; a full category
// queue drops the signal and returns false. Safe for concurrent producers.
func (n *Network) Ingest(ctx context.Context, s signal.Signal) bool {
	accepted := n.ingestor.Ingest(s)
	if !accepted {
		n.metrics.SignalsDropped.Inc()
		return false
	}

	n.metrics.SignalsAccepted.Inc()
	if n.recentStore != nil {
		if err := n.recentStore.Append(ctx, s); err != nil {
			n.logger.Warn(ctx, "failed to cache recent signal",
				"signal_id", s.ID, "lead_id", s.LeadID, "error", err)
		}
	}
	return true
}

// AnalyzeLeadRealtime runs all agents over the lead's cached recent signals
// without waiting for the next cycle.
func (n *Network) AnalyzeLeadRealtime(ctx context.Context, leadID string) (*LeadAnalysis, error) {
	if n.recentStore == nil {
		return nil, ErrNoData
	}

	signals, err := n.recentStore.Recent(ctx, leadID)
	if err != nil {
		return nil, fmt.Errorf("fetch recent signals: %w", err)
	}
	if len(signals) == 0 {
		return nil, ErrNoData
	}

	now := time.Now()
	bctx := analysis.Context{
		Now:       now,
		BatchSize: len(signals),
		CycleID:   "realtime-" + ulid.Make().String(),
	}

	out := &LeadAnalysis{
		LeadID:         leadID,
		AnalyzedAt:     now,
		SignalCount:    len(signals),
		OverallUrgency: signal.UrgencyLow,
	}

	var scoreSum float64
	for _, agent := range n.agents {
		for _, in := range agent.ProcessBatch(ctx, signals, bctx) {
			out.Insights = append(out.Insights, in)
			scoreSum += in.BehavioralScore
			if in.UrgencyLevel.Rank() > out.OverallUrgency.Rank() {
				out.OverallUrgency = in.UrgencyLevel
			}
		}
	}
	if len(out.Insights) > 0 {
		out.CombinedScore = scoreSum / float64(len(out.Insights))
	}
	return out, nil
}

// LeadAnalysis is the on-demand analysis summary for a single lead.
type LeadAnalysis struct {
	LeadID         string             `json:"lead_id"`
	AnalyzedAt     time.Time          `json:"analyzed_at"`
	SignalCount    int                `json:"signal_count"`
	Insights       []analysis.Insight `json:"insights"`
	CombinedScore  float64            `json:"combined_score"`
	OverallUrgency signal.Urgency     `json:"overall_urgency"`
}

// Stats returns a point-in-time snapshot of the network's counters.
func (n *Network) Stats() NetworkStats {
	cycles, avgMS := n.latency.snapshot()

	depths := make(map[string]int)
	for st, depth := range n.ingestor.QueueDepths() {
		depths[string(st)] = depth
	}

	agents := make(map[string]analysis.AgentStats, len(n.agents))
	for _, a := range n.agents {
		if s, ok := a.(interface{ Stats() analysis.AgentStats }); ok {
			agents[string(a.Type())] = s.Stats()
		}
	}

	var uptime float64
	if !n.startedAt.IsZero() {
		uptime = time.Since(n.startedAt).Seconds()
	}

	return NetworkStats{
		SignalsProcessed:  n.signalsProcessed.Load(),
		InsightsGenerated: n.insightsGenerated.Load(),
		TriggersGenerated: n.triggersGenerated.Load(),
		TriggersExecuted:  n.dispatcher.Executed(),
		TriggersFailed:    n.dispatcher.Failed(),
		DroppedSignals:    n.ingestor.Dropped(),
		ExpiredTriggers:   n.dispatcher.Expired(),
		DeferredDropped:   n.dispatcher.DeferredDropped(),
		CyclesCompleted:   cycles,
		AvgCycleLatencyMS: avgMS,
		QueueDepths:       depths,
		UptimeSeconds:     uptime,
		Agents:            agents,
	}
}

func (n *Network) run(ctx context.Context) {
	defer n.wg.Done()

	ticker := time.NewTicker(n.cfg.CycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.runCycle(ctx)
		}
	}
}

// RunCycle drains one batch and pushes it through analysis, generation,
// and dispatch. Exposed for the cycle driver and for tests that need a
// deterministic single step.
func (n *Network) RunCycle(ctx context.Context) {
	n.runCycle(ctx)
}

func (n *Network) runCycle(ctx context.Context) {
	start := time.Now()

	batch := n.ingestor.Collect(n.cfg.MaxBatchSize)
	n.syncQueueGauges()
	if len(batch) == 0 {
		return
	}

	cycleID := ulid.Make().String()
	L := n.logger.With("cycle_id", cycleID)

	bctx := analysis.Context{Now: start, BatchSize: len(batch), CycleID: cycleID}

	cycleCtx, cancelCycle := context.WithTimeout(ctx, n.cfg.CycleTimeout)
	defer cancelCycle()

	// Fan out: every agent sees the same read-only batch. A panic in one
	// agent discards only that agent's insights for the cycle.
	results := make([][]analysis.Insight, len(n.agents))
	completed := make([]bool, len(n.agents))
	panicked := make([]bool, len(n.agents))
	g, gctx := errgroup.WithContext(cycleCtx)
	for i, agent := range n.agents {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = nil
					panicked[i] = true
					n.metrics.AgentFailures.WithLabelValues(string(agent.Type())).Inc()
					L.Error(gctx, fmt.Errorf("agent panic: %v", r),
						"agent failed, discarding its insights for this cycle",
						"agent", string(agent.Type()))
				}
			}()
			agentStart := time.Now()
			results[i] = agent.ProcessBatch(gctx, batch, bctx)
			completed[i] = gctx.Err() == nil
			n.metrics.AgentDuration.WithLabelValues(string(agent.Type())).Observe(time.Since(agentStart).Seconds())
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		n.metrics.CyclesTotal.WithLabelValues("cancelled").Inc()
		L.Warn(ctx, "cycle aborted during shutdown, insights discarded")
		return
	}

	// A deadline overrun costs only the overrunning agents their insights.
	// Agents that finished in time still feed trigger generation.
	anyCompleted := false
	for i, agent := range n.agents {
		if panicked[i] {
			continue
		}
		if !completed[i] {
			results[i] = nil
			n.metrics.AgentFailures.WithLabelValues(string(agent.Type())).Inc()
			L.Warn(ctx, "agent missed the cycle deadline, discarding its insights",
				"agent", string(agent.Type()))
			continue
		}
		anyCompleted = true
	}
	if !anyCompleted && cycleCtx.Err() != nil {
		n.metrics.CyclesTotal.WithLabelValues("timeout").Inc()
		L.Warn(ctx, "cycle aborted, no agent finished in time")
		return
	}

	var insights []analysis.Insight
	for i, agent := range n.agents {
		n.metrics.InsightsTotal.WithLabelValues(string(agent.Type())).Add(float64(len(results[i])))
		insights = append(insights, results[i]...)
	}

	triggers := n.generator.Generate(insights, time.Now())
	for _, t := range triggers {
		n.metrics.TriggersGenerated.WithLabelValues(string(t.Type)).Inc()
	}
	n.dispatcher.Dispatch(ctx, triggers, time.Now())
	n.syncDispatcherMetrics()

	n.signalsProcessed.Add(uint64(len(batch)))
	n.insightsGenerated.Add(uint64(len(insights)))
	n.triggersGenerated.Add(uint64(len(triggers)))
	n.metrics.SignalsProcessed.Add(float64(len(batch)))
	n.metrics.BatchSize.Observe(float64(len(batch)))

	elapsed := time.Since(start)
	n.latency.record(elapsed)
	n.metrics.CycleDuration.Observe(elapsed.Seconds())
	n.metrics.CyclesTotal.WithLabelValues("ok").Inc()

	L.Info(ctx, "cycle complete",
		"signals", len(batch),
		"insights", len(insights),
		"triggers", len(triggers),
		"duration", elapsed.Seconds(),
	)
}

func (n *Network) syncQueueGauges() {
	for st, depth := range n.ingestor.QueueDepths() {
		n.metrics.QueueDepth.WithLabelValues(string(st)).Set(float64(depth))
	}
}

// syncDispatcherMetrics mirrors the dispatcher's cumulative counters into
// Prometheus, advancing each counter by the delta since the last sync.
func (n *Network) syncDispatcherMetrics() {
	n.syncMu.Lock()
	defer n.syncMu.Unlock()

	executed := n.dispatcher.Executed()
	failed := n.dispatcher.Failed()
	expired := n.dispatcher.Expired()
	deferred := n.dispatcher.DeferredDropped()

	dExec := executed - n.lastExecuted
	dFail := failed - n.lastFailed
	if dExec >= dFail {
		n.metrics.TriggersExecuted.WithLabelValues("success").Add(float64(dExec - dFail))
	}
	n.metrics.TriggersExecuted.WithLabelValues("failure").Add(float64(dFail))
	n.metrics.TriggersExpired.Add(float64(expired - n.lastExpired))
	n.metrics.DeferredDropped.Add(float64(deferred - n.lastDeferred))

	n.lastExecuted, n.lastFailed = executed, failed
	n.lastExpired, n.lastDeferred = expired, deferred
}
