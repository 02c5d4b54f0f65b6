// Package timer implements the single-shot timer slot of spec.md
// §4.4/§5's SetTimer: "at most one thread may own it; a second setter
// receives AlreadyExists unless it is the current owner re-arming",
// grounded on the teacher's single-outstanding-request pattern for
// its control-plane RPCs in internal/ctrl.
package timer

import (
	"sync"

	"github.com/lupi-os/lupi/internal/async"
	"github.com/lupi-os/lupi/internal/kerr"
	"github.com/lupi-os/lupi/internal/proc"
)

// Timer owns the single timer slot and its due time.
type Timer struct {
	mu    sync.Mutex
	slot  async.Slot
	owner *proc.Thread
	due   uint32
	armed bool
}

// New creates an unarmed timer.
func New() *Timer {
	return &Timer{}
}

// Set installs req to complete when uptime reaches due. If due has
// already passed, it completes synchronously (spec.md §4.4: "completes
// immediately if due ≤ uptime, else records due time for the tick
// handler").
func (t *Timer) Set(owner *proc.Thread, req *async.Request, due, uptime uint32) error {
	t.mu.Lock()
	if t.armed && t.owner != owner {
		t.mu.Unlock()
		return kerr.New("SetTimer", kerr.CodeAlreadyExists, "timer already armed by another thread")
	}
	if due <= uptime {
		t.armed = false
		t.mu.Unlock()
		req.Result = 0
		req.Flags |= async.FlagCompleted | async.FlagIntResult
		owner.IncrementCompleted()
		return nil
	}
	t.owner = owner
	t.due = due
	t.armed = true
	t.slot.Submit(owner, req)
	t.mu.Unlock()
	return nil
}

// Tick is called once per tick by svc.Dispatcher.Tick; if uptime has
// reached the due time it completes the request with result 0 directly
// on the calling goroutine (spec.md §8 scenario 4). No DFC is posted
// for the completion.
func (t *Timer) Tick(sched async.Scheduler, uptime uint32) {
	t.mu.Lock()
	if !t.armed || uptime < t.due {
		t.mu.Unlock()
		return
	}
	t.armed = false
	k := t.slot.TakeForCompletion()
	t.mu.Unlock()
	if k != nil {
		async.Complete(sched, k, 0)
	}
}
