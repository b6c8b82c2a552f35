// Package ingest provides the lossy, non-blocking entry point for
// behavioral signals. Each signal type gets its own fixed-capacity queue;
// producers are never blocked, and overflow drops the new signal.
package ingest

import (
	"sync/atomic"

	"github.com/linnemanlabs/pulse/internal/signal"
)

// DropFunc is invoked (if set) whenever a signal is dropped on overflow.
type DropFunc func(t signal.Type)

// Ingestor accepts signals from any number of concurrent producers and
// buffers them per category until the next collection cycle drains them.
// Buffered channels give FIFO order within a category and safe concurrent
// producer access without an explicit lock.
type Ingestor struct {
	queues   map[signal.Type]chan signal.Signal
	capacity int
	dropped  atomic.Uint64
	accepted atomic.Uint64
	onDrop   DropFunc
}

// New creates an Ingestor with one queue of the given capacity per known
// signal type.
func New(capacity int, onDrop DropFunc) *Ingestor {
	queues := make(map[signal.Type]chan signal.Signal, len(signal.Types))
	for _, t := range signal.Types {
		queues[t] = make(chan signal.Signal, capacity)
	}
	return &Ingestor{
		queues:   queues,
		capacity: capacity,
		onDrop:   onDrop,
	}
}

// Ingest enqueues a signal on its category queue. It never blocks: if the
// queue is full the signal is dropped, the drop counter increments, and
// Ingest returns false. Signals with an unknown type are rejected the same
// way, since there is no queue to order them in.
func (i *Ingestor) Ingest(s signal.Signal) bool {
	q, ok := i.queues[s.Type]
	if !ok {
		i.dropped.Add(1)
		if i.onDrop != nil {
			i.onDrop(s.Type)
		}
		return false
	}
	select {
	case q <- s:
		i.accepted.Add(1)
		return true
	default:
		i.dropped.Add(1)
		if i.onDrop != nil {
			i.onDrop(s.Type)
		}
		return false
	}
}

// Collect drains up to maxPerType signals from every category queue
// without blocking, returning one combined batch. Categories iterate in
// declaration order and signals within a category keep arrival order.
func (i *Ingestor) Collect(maxPerType int) []signal.Signal {
	var batch []signal.Signal
	for _, t := range signal.Types {
		batch = drain(i.queues[t], maxPerType, batch)
	}
	return batch
}

func drain(q chan signal.Signal, max int, into []signal.Signal) []signal.Signal {
	for n := 0; n < max; n++ {
		select {
		case s := <-q:
			into = append(into, s)
		default:
			return into
		}
	}
	return into
}

// Dropped returns the total number of signals dropped on overflow.
func (i *Ingestor) Dropped() uint64 { return i.dropped.Load() }

// Accepted returns the total number of signals accepted.
func (i *Ingestor) Accepted() uint64 { return i.accepted.Load() }

// QueueDepths snapshots the current number of buffered signals per
// category. Depths are approximate under concurrent producers.
func (i *Ingestor) QueueDepths() map[signal.Type]int {
	depths := make(map[signal.Type]int, len(i.queues))
	for t, q := range i.queues {
		depths[t] = len(q)
	}
	return depths
}
