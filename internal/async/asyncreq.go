// Package async implements the AsyncRequest/KAsyncRequest completion
// primitive of spec.md §4.5, grounded on the teacher's Result/CQE
// completion model in internal/uring (a kernel subsystem hands back a
// result keyed by user data; exactly one consumer claims it).
package async

import (
	kasync "github.com/lupi-os/lupi/internal/atomic"
	"github.com/lupi-os/lupi/internal/proc"
)

// Flags mirrors the user-visible AsyncRequest.flags bitset (spec.md
// §3/§4.5).
type Flags uint32

const (
	FlagPending Flags = 1 << iota
	FlagAccepted
	FlagCompleted
	FlagIntResult
)

// Request is the two-word struct living in user memory (spec.md §3).
// In the hosted/simulated kernel "user memory" is an ordinary Go
// struct the client and kernel both hold a pointer to, replacing the
// real kernel's "write a word into another address space's user
// window" trick (spec.md §9) — see DESIGN.md.
type Request struct {
	Result int32
	Flags  Flags
}

// KRequest is the kernel's private view: which thread owns the
// request and the (logical) user-space request it points at.
type KRequest struct {
	Owner *proc.Thread
	Req   *Request
}

// Slot is one KAsyncRequest slot (per-subsystem: UART, timer, input,
// or one per IPC message). Ownership is taken by an atomic
// pointer-swap: whoever's swap returns the non-nil owner is
// responsible for delivering the completion, matching spec.md §4.5's
// cancellation-by-nulling protocol and §5's "Cancellation: ... taken
// by atomic swap; if the swap wins, the taker delivers; if it loses,
// the client has already cancelled".
type Slot struct {
	owner kasync.Pointer[KRequest]
}

// Submit installs a new owner for the slot, per spec.md §4.5 step 1-2:
// "User zeros flags, sets Pending/Accepted, submits via SVC."
func (s *Slot) Submit(owner *proc.Thread, req *Request) {
	req.Flags |= FlagPending
	s.owner.Store(&KRequest{Owner: owner, Req: req})
}

// Cancel clears the slot without delivering, the owning thread's way
// of withdrawing interest (spec.md §4.5's "owner nulls the user
// pointer while holding exclusive access").
func (s *Slot) Cancel() {
	s.owner.Store(nil)
}

// TakeForCompletion atomically claims the slot's current owner,
// returning nil if someone else already claimed or cancelled it.
func (s *Slot) TakeForCompletion() *KRequest {
	return s.owner.Swap(nil)
}

// Peek reports the current owner without claiming it, for tests and
// invariant checks only.
func (s *Slot) Peek() *KRequest {
	return s.owner.Load()
}

// Scheduler is the minimal surface package sched exposes back into
// async so Complete can unblock a WaitForAnyRequest-blocked thread
// without async importing the whole scheduler package.
type Scheduler interface {
	WakeIfWaiting(t *proc.Thread, result uint32)
}

// Complete delivers result into k's user-space Request and signals the
// owning thread, per spec.md §4.5 steps 3-4. It always sets IntResult:
// a plain int32 is the only result shape this package delivers, and
// any richer shape (spec.md §9's open question (c)) is treated as an
// error surface.
func Complete(sched Scheduler, k *KRequest, result int32) {
	k.Req.Result = result
	k.Req.Flags |= FlagCompleted | FlagIntResult
	n := k.Owner.IncrementCompleted()
	sched.WakeIfWaiting(k.Owner, n)
}
