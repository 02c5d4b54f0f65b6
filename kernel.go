package lupi

import (
	"github.com/lupi-os/lupi/internal/boardinfo"
	"github.com/lupi-os/lupi/internal/crash"
	"github.com/lupi-os/lupi/internal/dfc"
	"github.com/lupi-os/lupi/internal/driver"
	"github.com/lupi-os/lupi/internal/ipc"
	"github.com/lupi-os/lupi/internal/logging"
	"github.com/lupi-os/lupi/internal/mem/pagealloc"
	"github.com/lupi-os/lupi/internal/mem/vmm"
	"github.com/lupi-os/lupi/internal/proc"
	"github.com/lupi-os/lupi/internal/sched"
	"github.com/lupi-os/lupi/internal/svc"
	"github.com/lupi-os/lupi/internal/timer"
	"github.com/lupi-os/lupi/internal/uart"
)

// Config configures a Kernel at boot, standing in for the ATAGS-
// derived boot parameters spec.md §6 describes ("RAM size, board
// revision").
type Config struct {
	// RAMBytes sizes the physical page allocator.
	RAMBytes uint64
	// MMUPresent selects the full MMU memory manager over the
	// MPU-only one (spec.md §4.2/§4.2b).
	MMUPresent bool
	// Board carries the GetInt/GetString-visible board facts.
	Board boardinfo.Info
	// Console backs PrintString/Putch; callers typically pass a
	// *hosted.RawConsole. May be left nil and assigned onto
	// Kernel.Dispatch.Console afterward, since hosted.NewRawConsole
	// itself needs the kernel's UART driver to construct.
	Console svc.Console
	// Reboot backs the Reboot SVC; optional.
	Reboot svc.Rebooter
}

// Kernel is the assembled kernel core: every subsystem spec.md §3's
// SuperPage groups together, held as the concrete Go types that
// replace that single pinned page (see DESIGN.md).
type Kernel struct {
	Alloc    *pagealloc.Allocator
	Mem      vmm.Manager
	Procs    *proc.Table
	Sched    *sched.Scheduler
	DFC      *dfc.Queue
	IPC      *ipc.Manager
	Drivers  *driver.Registry
	UART     *uart.Driver
	Timer    *timer.Timer
	Board    *boardinfo.Info
	Crash    *crash.Recorder
	Dispatch *svc.Dispatcher

	logger *logging.Logger
}

// NewKernel constructs every subsystem and wires them together, the
// Go-native equivalent of spec.md §2's boot-time memory layout and
// SuperPage initialization.
func NewKernel(cfg Config) *Kernel {
	logger := logging.Default()

	numPages := int(cfg.RAMBytes / PageSize)
	alloc := pagealloc.New(numPages)
	mem := vmm.New(cfg.MMUPresent, alloc)

	dfcQueue := dfc.New()
	s := sched.New(mem, dfcQueue)
	procs := proc.NewTable()
	ipcMgr := ipc.New(s)
	drivers := driver.New()
	u := uart.New(s)
	tm := timer.New()
	board := cfg.Board

	dispatch := svc.New(s, procs, mem, ipcMgr, drivers, u, tm, &board, cfg.Console, cfg.Reboot)

	return &Kernel{
		Alloc:    alloc,
		Mem:      mem,
		Procs:    procs,
		Sched:    s,
		DFC:      dfcQueue,
		IPC:      ipcMgr,
		Drivers:  drivers,
		UART:     u,
		Timer:    tm,
		Board:    &board,
		Crash:    crash.New(),
		Dispatch: dispatch,
		logger:   logger,
	}
}

// Boot starts the first process (the interpreter runtime spec.md §1
// describes as "its first-class user-mode workload") and puts its
// first thread on the ready list, then runs the scheduler's first
// Reschedule so Sched.CurrentThread() is populated.
func (k *Kernel) Boot(initName string) (*proc.Process, error) {
	pid, _ := k.Dispatch.SvcCreateProcess(initName)
	if pid < 0 {
		return nil, NewError("Boot", ErrResourceLimit, "failed to create init process")
	}
	p := k.Procs.ByPID(uint32(pid))
	if p == nil {
		return nil, NewError("Boot", ErrNotFound, "init process vanished after creation")
	}
	k.Sched.Reschedule()
	k.logger.Infof("booted process %q (pid=%d)", initName, pid)
	return p, nil
}

// Tick drives one timer-interrupt cycle (spec.md §4.3).
func (k *Kernel) Tick(interruptedSVC bool) {
	k.Dispatch.Tick(interruptedSVC)
}

// Shutdown tears down every live process, releasing shared pages,
// server registrations, and address spaces (spec.md §8 scenario 5
// generalized to every process instead of just the exiting one).
func (k *Kernel) Shutdown() {
	for _, p := range k.Procs.AllProcesses() {
		k.IPC.CancelProcess(p)
		if as, ok := p.AddrSpace().(vmm.AddressSpace); ok {
			k.Mem.DestroyAddressSpace(as)
		}
		k.Procs.FreeProcess(p)
	}
	k.logger.Info("kernel shutdown complete")
}
