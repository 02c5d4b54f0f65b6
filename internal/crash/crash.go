// Package crash implements the fatal-condition path of spec.md §7/§9:
// saved-register capture into the SuperPage-equivalent, followed by a
// debug-overlay hook, or only a log entry when no overlay is
// installed, grounded on the teacher's panic-
// recovery/last-error capture in internal/ctrl (it records the last
// fault seen by a queue worker for post-mortem inspection).
package crash

import (
	"sync"

	"github.com/lupi-os/lupi/internal/logging"
	"github.com/lupi-os/lupi/internal/proc"
)

// Record captures the state of a fatal condition (spec.md §7: "saved-
// register state is captured ... if a debug overlay is configured,
// the CPU is switched to a reserved stack and the overlay runs
// interactively. Otherwise the kernel hangs.").
type Record struct {
	Op      string
	Regs    proc.SavedRegs
	Thread  *proc.Thread
	Message string
}

// Overlay is the crash-debug overlay: "a mini-kernel that reads but
// does not write ordinary kernel structures" (spec.md §9). It is an
// external collaborator; Recorder only invokes it if one is
// registered.
type Overlay interface {
	Run(rec Record)
}

// Recorder holds the most recent fatal-condition record and an
// optional overlay to hand it to.
type Recorder struct {
	mu      sync.Mutex
	last    *Record
	overlay Overlay
	logger  *logging.Logger
}

// New creates a recorder with no overlay configured; until SetOverlay
// is called, Fatal only records and logs.
func New() *Recorder {
	return &Recorder{logger: logging.Default()}
}

// SetOverlay installs the crash-debug overlay.
func (r *Recorder) SetOverlay(o Overlay) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overlay = o
}

// Last returns the most recently captured record, or nil.
func (r *Recorder) Last() *Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Fatal captures rec and either hands it to the configured overlay or
// logs it. In both cases it returns to its caller; it does not halt or
// hang the kernel, and it never panics:
// callers in the dispatcher treat this as the terminal action for the
// faulting thread/process.
func (r *Recorder) Fatal(rec Record) {
	r.mu.Lock()
	r.last = &rec
	overlay := r.overlay
	r.mu.Unlock()

	r.logger.Errorf("fatal: %s: %s", rec.Op, rec.Message)

	if overlay != nil {
		overlay.Run(rec)
		return
	}
	r.logger.Error("no debug overlay configured")
}
