package trigger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/pulse/internal/signal"
)

// DispatcherConfig tunes dispatch behavior. Zero values take the defaults.
type DispatcherConfig struct {
	// ActionTimeout bounds each delivery call (default 10s).
	ActionTimeout time.Duration

	// ImmediatePriority is the minimum priority executed within the cycle
	// instead of being deferred (default 4).
	ImmediatePriority int

	// DeferredCapacity bounds the deferred queue (default 1000). A trigger
	// arriving at a full queue is dropped and counted.
	DeferredCapacity int

	// DrainInterval throttles deferred execution, one trigger per tick
	// (default 100ms).
	DrainInterval time.Duration
}

func (c *DispatcherConfig) applyDefaults() {
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 10 * time.Second
	}
	if c.ImmediatePriority <= 0 {
		c.ImmediatePriority = 4
	}
	if c.DeferredCapacity <= 0 {
		c.DeferredCapacity = 1000
	}
	if c.DrainInterval <= 0 {
		c.DrainInterval = 100 * time.Millisecond
	}
}

// Dispatcher routes triggers to the delivery collaborator: high-priority
// ones immediately under a bounded timeout, the rest through a throttled
// deferred queue. Every trigger gets exactly one delivery attempt.
type Dispatcher struct {
	cfg      DispatcherConfig
	delivery Delivery
	store    Store
	logger   log.Logger

	deferred chan *Trigger
	done     chan struct{}
	wg       sync.WaitGroup

	executed        atomic.Uint64
	failed          atomic.Uint64
	expired         atomic.Uint64
	deferredDropped atomic.Uint64
}

// NewDispatcher creates a Dispatcher. Call Start to begin draining the
// deferred queue and Stop on shutdown.
func NewDispatcher(delivery Delivery, store Store, logger log.Logger, cfg DispatcherConfig) *Dispatcher {
	cfg.applyDefaults()
	if logger == nil {
		logger = log.Nop()
	}
	return &Dispatcher{
		cfg:      cfg,
		delivery: delivery,
		store:    store,
		logger:   logger,
		deferred: make(chan *Trigger, cfg.DeferredCapacity),
		done:     make(chan struct{}),
	}
}

// Start launches the deferred drain loop.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.drainLoop()
}

// Stop halts the drain loop. Triggers still queued are left unexecuted.
func (d *Dispatcher) Stop() {
	close(d.done)
	d.wg.Wait()
}

// Dispatch routes one cycle's triggers in the order given. Expired triggers
// are discarded without a delivery call. A failure for one trigger never
// affects the rest of the slice.
func (d *Dispatcher) Dispatch(ctx context.Context, triggers []*Trigger, now time.Time) {
	for _, t := range triggers {
		if t.Status.Terminal() {
			continue
		}
		if t.ExpiredAt(now) {
			d.markExpired(ctx, t)
			continue
		}

		if t.Priority >= d.cfg.ImmediatePriority {
			t.Status = StatusDispatched
			d.execute(ctx, t)
			continue
		}

		t.Status = StatusQueued
		select {
		case d.deferred <- t:
			d.persist(ctx, t)
		default:
			d.deferredDropped.Add(1)
			d.logger.Warn(ctx, "deferred queue full, trigger dropped",
				"trigger_id", t.ID, "lead_id", t.LeadID, "type", string(t.Type))
		}
	}
}

// Executed reports completed delivery attempts, success and failure alike.
func (d *Dispatcher) Executed() uint64 { return d.executed.Load() }

// Failed reports delivery attempts that ended in error or timeout.
func (d *Dispatcher) Failed() uint64 { return d.failed.Load() }

// Expired reports triggers discarded past their expiration.
func (d *Dispatcher) Expired() uint64 { return d.expired.Load() }

// DeferredDropped reports triggers lost to a full deferred queue.
func (d *Dispatcher) DeferredDropped() uint64 { return d.deferredDropped.Load() }

// DeferredDepth reports how many triggers currently wait in the deferred queue.
func (d *Dispatcher) DeferredDepth() int { return len(d.deferred) }

func (d *Dispatcher) drainLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			select {
			case t := <-d.deferred:
				if t.ExpiredAt(time.Now()) {
					d.markExpired(context.Background(), t)
					continue
				}
				d.execute(context.Background(), t)
			default:
			}
		}
	}
}

// execute performs the single delivery attempt and records the outcome.
// The executed flag transitions false to true exactly once.
func (d *Dispatcher) execute(ctx context.Context, t *Trigger) {
	if t.Executed {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.ActionTimeout)
	err := d.deliver(callCtx, t)
	cancel()

	t.Executed = true
	t.ExecutedAt = time.Now()
	t.Status = StatusExecuted
	d.executed.Add(1)

	if err != nil {
		t.ExecutionResult = "failure: " + err.Error()
		d.failed.Add(1)
		d.logger.Error(ctx, err, "trigger execution failed",
			"trigger_id", t.ID, "lead_id", t.LeadID, "type", string(t.Type))
	} else {
		t.ExecutionResult = "success"
	}

	d.persist(ctx, t)
}

func (d *Dispatcher) deliver(ctx context.Context, t *Trigger) error {
	switch t.Type {
	case signal.TriggerImmediateAlert:
		return d.delivery.Alert(ctx, t)
	case signal.TriggerAgentNotification:
		return d.delivery.NotifyAgent(ctx, t)
	case signal.TriggerPriorityFlag:
		return d.delivery.SetPriorityFlag(ctx, t)
	case signal.TriggerAutomatedResponse:
		return d.delivery.SendAutomatedResponse(ctx, t)
	case signal.TriggerPersonalizedContent:
		return d.delivery.DeliverPersonalizedContent(ctx, t)
	case signal.TriggerFollowUpSequence:
		return d.delivery.StartFollowUpSequence(ctx, t)
	case signal.TriggerRetargetingCampaign:
		return d.delivery.Retarget(ctx, t)
	case signal.TriggerEscalation:
		return d.delivery.Escalate(ctx, t)
	default:
		return fmt.Errorf("unknown trigger type %q", t.Type)
	}
}

func (d *Dispatcher) markExpired(ctx context.Context, t *Trigger) {
	t.Status = StatusExpired
	d.expired.Add(1)
	d.persist(ctx, t)
}

func (d *Dispatcher) persist(ctx context.Context, t *Trigger) {
	if d.store == nil {
		return
	}
	if err := d.store.Put(ctx, t); err != nil {
		d.logger.Error(ctx, err, "failed to persist trigger", "trigger_id", t.ID)
	}
}
