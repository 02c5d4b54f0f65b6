// Package dfc implements the bounded deferred-function-call ring of
// spec.md §4.6, grounded on the teacher's ring-buffer SQ/CQ head/tail
// bookkeeping in internal/uring/minimal.go, generalized from
// submission-queue entries to kernel callbacks.
package dfc

import (
	"sync"

	"github.com/lupi-os/lupi/internal/constants"
	"github.com/lupi-os/lupi/internal/logging"
)

// Fn is a deferred function: the three argument words spec.md §3's
// SuperPage DFC ring carries alongside the function pointer.
type Fn func(a1, a2, a3 uintptr)

type entry struct {
	fn         Fn
	a1, a2, a3 uintptr
}

// Queue is the bounded DFC ring. Posting is safe from interrupt
// context (any goroutine); draining happens on a single dedicated
// goroutine, matching spec.md §4.6's "Drain is serialised in a single
// DFC-drain site".
type Queue struct {
	mu      sync.Mutex
	ring    [constants.DFCRingSize]entry
	pending int
	logger  *logging.Logger
	notify  chan struct{}
}

// New creates an empty DFC queue.
func New() *Queue {
	return &Queue{
		logger: logging.Default(),
		notify: make(chan struct{}, 1),
	}
}

// Post enqueues fn for later execution on the drain goroutine. It
// panics on ring overflow: spec.md §4.3 classifies this as an
// assertion violation that triggers the crash path, not a recoverable
// error — there is no caller in interrupt context that could handle
// an error return.
func (q *Queue) Post(fn Fn, a1, a2, a3 uintptr) {
	q.mu.Lock()
	if q.pending >= len(q.ring) {
		q.mu.Unlock()
		panic("dfc: ring overflow")
	}
	q.ring[q.pending] = entry{fn: fn, a1: a1, a2: a2, a3: a3}
	q.pending++
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Drain snapshots the pending entries, resets the count, and invokes
// them in order. It returns the number of DFCs it ran.
func (q *Queue) Drain() int {
	q.mu.Lock()
	n := q.pending
	var snapshot [constants.DFCRingSize]entry
	copy(snapshot[:n], q.ring[:n])
	q.pending = 0
	q.mu.Unlock()

	for i := 0; i < n; i++ {
		snapshot[i].fn(snapshot[i].a1, snapshot[i].a2, snapshot[i].a3)
	}
	return n
}

// Pending returns the current queue depth, for tests and metrics.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// RunDrainLoop blocks draining the queue whenever Post wakes it, until
// stop is closed. This stands in for spec.md §4.3's dedicated DFC
// kernel-thread (MMU targets) or PendSV-equivalent handler (MPU
// targets) — both boil down to "drain on a dedicated stack with
// interrupts enabled", which a goroutine models directly.
func (q *Queue) RunDrainLoop(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			q.Drain()
			return
		case <-q.notify:
			q.Drain()
		}
	}
}
