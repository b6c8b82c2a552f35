package network

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/pulse/internal/analysis"
	"github.com/linnemanlabs/pulse/internal/ingest"
	"github.com/linnemanlabs/pulse/internal/recent"
	recentmem "github.com/linnemanlabs/pulse/internal/recent/memstore"
	"github.com/linnemanlabs/pulse/internal/signal"
	"github.com/linnemanlabs/pulse/internal/trigger"
	triggermem "github.com/linnemanlabs/pulse/internal/trigger/memstore"
)

// countingDelivery implements trigger.Delivery and counts every call.
type countingDelivery struct {
	mu    sync.Mutex
	calls int
}

func (d *countingDelivery) record() error {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	return nil
}

func (d *countingDelivery) total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *countingDelivery) Alert(context.Context, *trigger.Trigger) error       { return d.record() }
func (d *countingDelivery) NotifyAgent(context.Context, *trigger.Trigger) error { return d.record() }
func (d *countingDelivery) SetPriorityFlag(context.Context, *trigger.Trigger) error {
	return d.record()
}
func (d *countingDelivery) SendAutomatedResponse(context.Context, *trigger.Trigger) error {
	return d.record()
}
func (d *countingDelivery) DeliverPersonalizedContent(context.Context, *trigger.Trigger) error {
	return d.record()
}
func (d *countingDelivery) StartFollowUpSequence(context.Context, *trigger.Trigger) error {
	return d.record()
}
func (d *countingDelivery) Retarget(context.Context, *trigger.Trigger) error { return d.record() }
func (d *countingDelivery) Escalate(context.Context, *trigger.Trigger) error { return d.record() }

// panickyAgent always panics inside ProcessBatch.
type panickyAgent struct{}

func (panickyAgent) Type() analysis.AgentType { return analysis.AgentType("panicky") }
func (panickyAgent) ProcessBatch(context.Context, []signal.Signal, analysis.Context) []analysis.Insight {
	panic("boom")
}

// slowAgent blocks until the cycle deadline cancels it, then gives up.
type slowAgent struct{}

func (slowAgent) Type() analysis.AgentType { return analysis.AgentType("slow") }
func (slowAgent) ProcessBatch(ctx context.Context, _ []signal.Signal, _ analysis.Context) []analysis.Insight {
	<-ctx.Done()
	return nil
}

func testNetwork(t *testing.T, agents []analysis.Agent, store *recentmem.Store) (*Network, *countingDelivery) {
	t.Helper()
	deliv := &countingDelivery{}
	dispatcher := trigger.NewDispatcher(deliv, triggermem.New(), nil, trigger.DispatcherConfig{
		DrainInterval: time.Millisecond,
	})
	var recentStore recent.Store
	if store != nil {
		recentStore = store
	}
	n := New(
		Config{CycleInterval: time.Hour, MaxBatchSize: 100},
		ingest.New(100, nil),
		agents,
		trigger.NewGenerator(time.Hour),
		dispatcher,
		recentStore,
		nil,
		nil,
	)
	return n, deliv
}

func defaultAgents() []analysis.Agent {
	return []analysis.Agent{
		analysis.NewSignalDetector(),
		analysis.NewPatternRecognizer(nil),
		analysis.NewIntentPredictor(),
	}
}

func phoneBurst(leadID string, n int) []signal.Signal {
	now := time.Now()
	var out []signal.Signal
	for i := range n {
		out = append(out, signal.Signal{
			ID:               fmt.Sprintf("s-%d", i),
			LeadID:           leadID,
			Type:             signal.TypePhoneCall,
			Timestamp:        now.Add(-time.Duration(i) * time.Minute),
			InteractionValue: 8.0,
		})
	}
	return out
}

func TestNetwork_CycleEndToEnd(t *testing.T) {
	t.Parallel()

	n, deliv := testNetwork(t, defaultAgents(), nil)
	ctx := context.Background()

	for _, s := range phoneBurst("lead-1", 6) {
		if !n.Ingest(ctx, s) {
			t.Fatalf("Ingest(%s) = false, want true", s.ID)
		}
	}

	n.RunCycle(ctx)

	stats := n.Stats()
	if stats.SignalsProcessed != 6 {
		t.Errorf("signals_processed = %d, want 6", stats.SignalsProcessed)
	}
	if stats.InsightsGenerated == 0 {
		t.Error("insights_generated = 0, want > 0")
	}
	if stats.TriggersGenerated == 0 {
		t.Error("triggers_generated = 0, want > 0")
	}
	if stats.CyclesCompleted != 1 {
		t.Errorf("cycles_completed = %d, want 1", stats.CyclesCompleted)
	}
	if stats.AvgCycleLatencyMS < 0 {
		t.Errorf("avg_cycle_latency_ms = %f, want >= 0", stats.AvgCycleLatencyMS)
	}

	// Phone calls make the detector critical, so at least one trigger is
	// priority >= 4 and executes within the cycle.
	if deliv.total() == 0 {
		t.Error("delivery calls = 0, want immediate execution of high-priority triggers")
	}
	if stats.TriggersExecuted == 0 {
		t.Error("triggers_executed = 0, want > 0")
	}
}

func TestNetwork_EmptyCycleIsNoop(t *testing.T) {
	t.Parallel()

	n, deliv := testNetwork(t, defaultAgents(), nil)
	n.RunCycle(context.Background())

	stats := n.Stats()
	if stats.SignalsProcessed != 0 || stats.CyclesCompleted != 0 {
		t.Errorf("stats = %+v, want untouched after empty cycle", stats)
	}
	if deliv.total() != 0 {
		t.Errorf("delivery calls = %d, want 0", deliv.total())
	}
}

func TestNetwork_AgentPanicIsolated(t *testing.T) {
	t.Parallel()

	agents := []analysis.Agent{panickyAgent{}, analysis.NewSignalDetector()}
	n, _ := testNetwork(t, agents, nil)
	ctx := context.Background()

	for _, s := range phoneBurst("lead-1", 4) {
		n.Ingest(ctx, s)
	}
	n.RunCycle(ctx)

	stats := n.Stats()
	if stats.InsightsGenerated == 0 {
		t.Error("insights_generated = 0, want the surviving agent's insights")
	}
	if stats.TriggersGenerated == 0 {
		t.Error("triggers_generated = 0, want triggers from surviving insights")
	}
	if stats.CyclesCompleted != 1 {
		t.Errorf("cycles_completed = %d, want 1; a panic must not abort the cycle", stats.CyclesCompleted)
	}
}

func TestNetwork_SlowAgentDoesNotStarveCycle(t *testing.T) {
	t.Parallel()

	deliv := &countingDelivery{}
	dispatcher := trigger.NewDispatcher(deliv, triggermem.New(), nil, trigger.DispatcherConfig{
		DrainInterval: time.Millisecond,
	})
	n := New(
		Config{CycleInterval: time.Hour, MaxBatchSize: 100, CycleTimeout: 100 * time.Millisecond},
		ingest.New(100, nil),
		[]analysis.Agent{analysis.NewSignalDetector(), slowAgent{}, analysis.NewIntentPredictor()},
		trigger.NewGenerator(time.Hour),
		dispatcher,
		nil,
		nil,
		nil,
	)

	ctx := context.Background()
	for _, s := range phoneBurst("lead-slow", 12) {
		n.Ingest(ctx, s)
	}
	n.RunCycle(ctx)

	stats := n.Stats()
	if stats.InsightsGenerated == 0 {
		t.Fatal("insights_generated = 0, want the fast agents' insights to survive a slow one")
	}
	if stats.TriggersGenerated == 0 {
		t.Error("triggers_generated = 0, want triggers from the surviving insights")
	}
	if stats.CyclesCompleted != 1 {
		t.Errorf("cycles_completed = %d, want 1; one overrunning agent must not abort the cycle", stats.CyclesCompleted)
	}
	if deliv.total() == 0 {
		t.Error("delivery calls = 0, want immediate execution of the critical triggers")
	}
}

func TestNetwork_AllAgentsOverrunAbortsCycle(t *testing.T) {
	t.Parallel()

	deliv := &countingDelivery{}
	dispatcher := trigger.NewDispatcher(deliv, triggermem.New(), nil, trigger.DispatcherConfig{
		DrainInterval: time.Millisecond,
	})
	n := New(
		Config{CycleInterval: time.Hour, MaxBatchSize: 100, CycleTimeout: 20 * time.Millisecond},
		ingest.New(100, nil),
		[]analysis.Agent{slowAgent{}, slowAgent{}},
		trigger.NewGenerator(time.Hour),
		dispatcher,
		nil,
		nil,
		nil,
	)

	ctx := context.Background()
	for _, s := range phoneBurst("lead-slow", 3) {
		n.Ingest(ctx, s)
	}
	n.RunCycle(ctx)

	stats := n.Stats()
	if stats.CyclesCompleted != 0 {
		t.Errorf("cycles_completed = %d, want 0 when no agent finishes in time", stats.CyclesCompleted)
	}
	if deliv.total() != 0 {
		t.Errorf("delivery calls = %d, want 0", deliv.total())
	}
}

func TestNetwork_DroppedSignalsCounted(t *testing.T) {
	t.Parallel()

	deliv := &countingDelivery{}
	dispatcher := trigger.NewDispatcher(deliv, triggermem.New(), nil, trigger.DispatcherConfig{})
	n := New(
		Config{CycleInterval: time.Hour},
		ingest.New(2, nil),
		defaultAgents(),
		trigger.NewGenerator(time.Hour),
		dispatcher,
		nil,
		nil,
		nil,
	)

	ctx := context.Background()
	accepted := 0
	for _, s := range phoneBurst("lead-1", 5) {
		if n.Ingest(ctx, s) {
			accepted++
		}
	}
	if accepted != 2 {
		t.Errorf("accepted = %d, want 2 with capacity 2", accepted)
	}
	if got := n.Stats().DroppedSignals; got != 3 {
		t.Errorf("dropped_signals = %d, want 3", got)
	}
}

func TestNetwork_AnalyzeLeadRealtime(t *testing.T) {
	t.Parallel()

	store := recentmem.New(time.Hour, 50)
	n, _ := testNetwork(t, defaultAgents(), store)
	ctx := context.Background()

	for _, s := range phoneBurst("lead-rt", 5) {
		n.Ingest(ctx, s)
	}

	got, err := n.AnalyzeLeadRealtime(ctx, "lead-rt")
	if err != nil {
		t.Fatalf("AnalyzeLeadRealtime: %v", err)
	}
	if got.LeadID != "lead-rt" {
		t.Errorf("lead_id = %q, want lead-rt", got.LeadID)
	}
	if got.SignalCount != 5 {
		t.Errorf("signal_count = %d, want 5", got.SignalCount)
	}
	if len(got.Insights) == 0 {
		t.Fatal("insights empty, want at least the detector's")
	}
	if got.OverallUrgency != signal.UrgencyCritical {
		t.Errorf("overall_urgency = %q, want critical for phone calls", got.OverallUrgency)
	}
	if got.CombinedScore < 0 || got.CombinedScore > 100 {
		t.Errorf("combined_score = %f out of [0,100]", got.CombinedScore)
	}
}

func TestNetwork_AnalyzeLeadRealtimeNoData(t *testing.T) {
	t.Parallel()

	store := recentmem.New(time.Hour, 50)
	n, _ := testNetwork(t, defaultAgents(), store)

	_, err := n.AnalyzeLeadRealtime(context.Background(), "stranger")
	if !errors.Is(err, ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
}

func TestNetwork_StartStop(t *testing.T) {
	t.Parallel()

	n, _ := testNetwork(t, defaultAgents(), nil)
	n.Start()
	if n.Stats().UptimeSeconds < 0 {
		t.Error("uptime negative after Start")
	}
	n.Stop()
}
