// Package sched implements the ready-list scheduler of spec.md §4.3:
// thread state transitions, tick-driven preemption, and DFC draining,
// grounded on the teacher's per-queue runner loop in
// internal/queue/runner.go generalized from one I/O queue to the
// single system-wide ready list.
package sched

import (
	"sync"

	"github.com/lupi-os/lupi/internal/atomic"
	"github.com/lupi-os/lupi/internal/constants"
	"github.com/lupi-os/lupi/internal/dfc"
	"github.com/lupi-os/lupi/internal/logging"
	"github.com/lupi-os/lupi/internal/mem/vmm"
	"github.com/lupi-os/lupi/internal/proc"
)

// Metrics tracks scheduler activity, mirroring the teacher's
// atomic-counter Metrics struct.
type Metrics struct {
	Ticks            atomic.Word
	ContextSwitches  atomic.Word
	Preemptions      atomic.Word
	DFCsDrained      atomic.Word
}

// Scheduler owns the system-wide ready list and the current-
// thread/current-process pointers that, on real hardware, would live
// in the SuperPage (spec.md §3).
type Scheduler struct {
	mu sync.Mutex

	ready       proc.List
	current     *proc.Thread
	currentProc *proc.Process

	uptimeMs                  atomic.Word
	rescheduleNeededOnSvcExit bool

	vmm vmm.Manager
	dfc *dfc.Queue

	logger  *logging.Logger
	metrics Metrics
}

// New creates a scheduler bound to a memory manager and DFC queue.
func New(mem vmm.Manager, dfcQueue *dfc.Queue) *Scheduler {
	return &Scheduler{
		vmm:    mem,
		dfc:    dfcQueue,
		logger: logging.Default(),
	}
}

func (s *Scheduler) Metrics() *Metrics { return &s.metrics }

// UptimeMs returns the current uptime in milliseconds (spec.md §4.4's
// GetUptime SVC).
func (s *Scheduler) UptimeMs() uint32 { return s.uptimeMs.Load() }

// CurrentThread returns the currently running thread, or nil if the
// core is idle (spec.md §4.3's reschedule clearing the current-thread
// pointer before sleeping).
func (s *Scheduler) CurrentThread() *proc.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// ThreadSetState is the sole state-transition primitive spec.md §4.3
// requires: entering Ready always inserts at the ready-list head,
// leaving Ready always dequeues first. No other code path is allowed
// to touch ready-list membership, which is what keeps invariant 1
// (spec.md §8) true by construction.
func (s *Scheduler) ThreadSetState(t *proc.Thread, state proc.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStateLocked(t, state)
}

func (s *Scheduler) setStateLocked(t *proc.Thread, state proc.State) {
	if t.State() == proc.Ready && state != proc.Ready {
		s.ready.Dequeue(t)
	}
	t.SetState(state)
	if state == proc.Ready {
		s.ready.EnqueueHead(t)
	}
}

// ThreadYield moves t to the tail of the ready list without
// rescheduling (spec.md §4.3's thread_yield).
func (s *Scheduler) ThreadYield(t *proc.Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.State() == proc.Ready {
		s.ready.Dequeue(t)
	}
	t.SetState(proc.Ready)
	s.ready.EnqueueTail(t)
}

// FindNextReadyThread scans the ready list for the first Ready thread,
// spec.md §4.3.
func (s *Scheduler) FindNextReadyThread() *proc.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready.Head()
}

// ScheduleThread refills t's timeslice, makes it current, and switches
// the active address space (spec.md §4.3's scheduleThread).
func (s *Scheduler) ScheduleThread(t *proc.Thread) {
	t.SetTimeslice(constants.TimesliceMs)

	s.mu.Lock()
	s.current = t
	s.currentProc = t.Process()
	s.mu.Unlock()

	if as, ok := t.Process().AddrSpace().(vmm.AddressSpace); ok {
		s.vmm.SwitchProcess(as)
	}
	s.metrics.ContextSwitches.FetchAdd(1)
}

// Reschedule picks the next Ready thread and schedules it. Unlike the
// real kernel's reschedule, which never returns because it directly
// restores a saved register frame, the hosted model returns the thread
// that is now current: the caller (the dispatcher's SVC return path,
// or the tick handler) is itself running as that thread's goroutine
// and simply continues executing, which is the Go-native analogue of
// "returns to the saved mode" for a cooperatively scheduled goroutine.
// If no thread is ready, Reschedule clears the current-thread pointer
// and returns nil, mirroring spec.md §4.3's idle wait-for-interrupt
// loop (the idle behavior itself — sleeping the core — has no
// equivalent in a hosted process and is left to the caller).
func (s *Scheduler) Reschedule() *proc.Thread {
	s.mu.Lock()
	next := s.ready.Head()
	if next == nil {
		s.current = nil
		s.currentProc = nil
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.ScheduleThread(next)
	return next
}

// Tick is the 1ms timer-interrupt handler of spec.md §4.3.
// interruptedSVC reports whether the tick found the core in SVC context (as opposed
// to running user code); per spec.md, a tick that interrupts an
// in-progress SVC only sets rescheduleNeededOnSvcExit, while one that
// interrupts user code reschedules immediately.
func (s *Scheduler) Tick(interruptedSVC bool) {
	s.uptimeMs.FetchAdd(1)
	s.metrics.Ticks.FetchAdd(1)

	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur == nil || cur.State() != proc.Ready {
		return
	}

	remaining := cur.DecrementTimeslice()
	if remaining > 0 {
		return
	}

	s.metrics.Preemptions.FetchAdd(1)
	s.mu.Lock()
	s.ready.Dequeue(cur)
	s.ready.EnqueueTail(cur)
	s.mu.Unlock()

	if interruptedSVC {
		s.mu.Lock()
		s.rescheduleNeededOnSvcExit = true
		s.mu.Unlock()
		return
	}
	s.Reschedule()
}

// RescheduleNeededOnSvcExit reports and clears the flag the SVC return
// path consults before returning to the caller (spec.md §4.4 step 4).
func (s *Scheduler) RescheduleNeededOnSvcExit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rescheduleNeededOnSvcExit {
		s.rescheduleNeededOnSvcExit = false
		return true
	}
	return false
}

// DFCQueue exposes the scheduler's DFC ring so drivers and IPC can
// post completions from "interrupt context".
func (s *Scheduler) DFCQueue() *dfc.Queue { return s.dfc }

// WakeIfWaiting implements async.Scheduler: if t is currently parked in
// WaitForAnyRequest, it is handed result and moved back to Ready
// (spec.md §4.5 step 4). If t is not waiting, the caller (async.
// Complete) has already recorded the completion in t's counter and
// this is a no-op — the thread will observe it on its next
// WaitForAnyRequest call.
func (s *Scheduler) WakeIfWaiting(t *proc.Thread, result uint32) {
	if t.State() != proc.WaitForRequest {
		return
	}
	t.ResetCompleted()
	s.ThreadSetState(t, proc.Ready)
	t.Wake(result)
}
