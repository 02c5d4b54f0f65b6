// Package uart implements the console ring buffer of spec.md §5/§6: a
// two-counter scheme between the IRQ producer and the consumer thread.
// The ring counts as full when the write index is one slot behind the
// read index, so it holds at most UARTRingCapacity-1 (254) bytes; the
// write==0xFF sentinel (constants.UARTRingFull) is not used. Grounded
// on the teacher's
// ring-buffer head/tail bookkeeping in internal/uring/minimal.go.
package uart

import (
	"sync"

	"github.com/lupi-os/lupi/internal/async"
	"github.com/lupi-os/lupi/internal/constants"
	"github.com/lupi-os/lupi/internal/kerr"
	"github.com/lupi-os/lupi/internal/proc"
)

// Driver is the UART console driver: a bounded byte ring plus a single
// Getch_Async slot and a dropped-byte counter (spec.md §3's SuperPage
// "UART ring buffer (≤255 bytes) and dropped-char counter").
type Driver struct {
	mu      sync.Mutex
	buf     [constants.UARTRingCapacity]byte
	write   int
	read    int
	dropped uint32

	pending async.Slot
	sched   async.Scheduler
}

// New creates an empty UART driver bound to a scheduler for completing
// Getch_Async requests.
func New(sched async.Scheduler) *Driver {
	return &Driver{sched: sched}
}

func (d *Driver) full() bool {
	return (d.write+1)%constants.UARTRingCapacity == d.read
}

func (d *Driver) empty() bool {
	return d.write == d.read
}

// PushByte is the IRQ producer side: it completes a pending
// Getch_Async request if one is outstanding, or else appends to the
// ring, or increments the dropped counter if the ring is full (spec.md
// §4.4's Getch_Async: "completes immediately if a byte is buffered").
func (d *Driver) PushByte(b byte) {
	d.mu.Lock()
	if k := d.pending.TakeForCompletion(); k != nil {
		d.mu.Unlock()
		async.Complete(d.sched, k, int32(b))
		return
	}
	if d.full() {
		d.dropped++
		d.mu.Unlock()
		return
	}
	d.buf[d.write] = b
	d.write = (d.write + 1) % constants.UARTRingCapacity
	d.mu.Unlock()
}

// Dropped returns the count of bytes lost to a full ring.
func (d *Driver) Dropped() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// TryGetch returns the oldest buffered byte without blocking, per
// spec.md §8 scenario 6: "a Getch SVC returns immediately with the
// oldest byte; the ring read-index advances by one."
func (d *Driver) TryGetch() (byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.empty() {
		return 0, false
	}
	b := d.buf[d.read]
	d.read = (d.read + 1) % constants.UARTRingCapacity
	return b, true
}

// GetchAsync installs owner/req as the pending Getch_Async request, or
// completes immediately if a byte is already buffered (spec.md §4.4).
// Only one Getch_Async may be outstanding at a time.
func (d *Driver) GetchAsync(owner *proc.Thread, req *async.Request) error {
	d.mu.Lock()
	if !d.empty() {
		b := d.buf[d.read]
		d.read = (d.read + 1) % constants.UARTRingCapacity
		d.mu.Unlock()
		req.Result = int32(b)
		req.Flags |= async.FlagCompleted | async.FlagIntResult
		owner.IncrementCompleted()
		return nil
	}
	if d.pending.Peek() != nil {
		d.mu.Unlock()
		return kerr.New("Getch_Async", kerr.CodeAlreadyExists, "a Getch_Async request is already pending")
	}
	d.pending.Submit(owner, req)
	d.mu.Unlock()
	return nil
}
