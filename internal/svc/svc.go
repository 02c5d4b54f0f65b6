// Package svc implements the synchronous system-call dispatcher of
// spec.md §4.4: decoding call numbers, validating pointers, and
// routing to the relevant kernel subsystem or, for DriverHandle-bit
// calls, to the driver registry, grounded on the teacher's request
// dispatch switch in internal/ctrl/ctrl.go (a fixed opcode table
// routing control-plane requests to handlers).
//
// The hosted/simulated kernel has no user address space to read raw
// pointers out of (spec.md §9's "user-memory access from kernel" is an
// architecture trait the real kernel needs; here caller and kernel
// already share the same Go heap), so each Svc* method takes typed Go values
// instead of the uintptr-per-register ABI a real SVC instruction
// would use. Call numbers and argument order otherwise match spec.md
// §4.4's call table exactly.
package svc

import (
	"sync"

	"github.com/lupi-os/lupi/internal/async"
	kasync "github.com/lupi-os/lupi/internal/atomic"
	"github.com/lupi-os/lupi/internal/boardinfo"
	"github.com/lupi-os/lupi/internal/constants"
	"github.com/lupi-os/lupi/internal/driver"
	"github.com/lupi-os/lupi/internal/ipc"
	"github.com/lupi-os/lupi/internal/kerr"
	"github.com/lupi-os/lupi/internal/mem/vmm"
	"github.com/lupi-os/lupi/internal/proc"
	"github.com/lupi-os/lupi/internal/sched"
	"github.com/lupi-os/lupi/internal/timer"
	"github.com/lupi-os/lupi/internal/uart"
)

// Call identifies a recognized SVC (spec.md §4.4's call table).
type Call int

const (
	Sbrk Call = iota
	PrintString
	Putch
	Getch
	GetchAsync
	CreateProcess
	ThreadCreate
	ThreadExit
	ThreadYield
	WaitForAnyRequest
	GetUptime
	NewSharedPage
	CreateServerCall
	ConnectToServerCall
	RequestServerMsgCall
	CompleteIpcRequestCall
	SetTimer
	GetIntCall
	GetStringCall
	DriverConnectCall
	Reboot
	ReplaceProcess
)

// Console is the minimal console-write surface PrintString/Putch need;
// the hosted binary backs it with os.Stdout, matching the teacher's
// pattern of taking an io.Writer rather than hard-coding os.Stdout.
type Console interface {
	WriteByte(b byte) error
	WriteString(s string) (int, error)
}

// Rebooter performs the hardware-reset side effect of the Reboot SVC.
// The hosted binary backs it with a process-exit callback.
type Rebooter interface {
	Reboot()
}

// Dispatcher wires every SVC-reachable subsystem together, the
// hosted/simulated analogue of spec.md §3's SuperPage.
type Dispatcher struct {
	mu sync.Mutex

	Sched    *sched.Scheduler
	Procs    *proc.Table
	Mem      vmm.Manager
	IPC      *ipc.Manager
	Drivers  *driver.Registry
	UART     *uart.Driver
	Timer    *timer.Timer
	Board    *boardinfo.Info
	Console  Console
	Reboot_  Rebooter

	// nextSharedPageSlot hands out distinct virtual-address slots in
	// the shared-page window (constants.SharedPageBase and up) to
	// SvcNewSharedPage, so every shared page the memory manager maps
	// lands at a unique address.
	nextSharedPageSlot kasync.Word
}

// New assembles a dispatcher from its already-constructed subsystems.
func New(s *sched.Scheduler, procs *proc.Table, mem vmm.Manager, ipcMgr *ipc.Manager, drivers *driver.Registry, u *uart.Driver, tm *timer.Timer, board *boardinfo.Info, console Console, reboot Rebooter) *Dispatcher {
	return &Dispatcher{
		Sched:   s,
		Procs:   procs,
		Mem:     mem,
		IPC:     ipcMgr,
		Drivers: drivers,
		UART:    u,
		Timer:   tm,
		Board:   board,
		Console: console,
		Reboot_: reboot,
	}
}

// finish applies the standard SVC epilogue (spec.md §4.4 step 4): the
// reschedule decision is the logical OR of whatever the handler
// requested and any pending tick-deferred reschedule.
func (d *Dispatcher) finish(result int32, reschedule bool) (int32, bool) {
	if d.Sched.RescheduleNeededOnSvcExit() {
		reschedule = true
	}
	if reschedule {
		d.Sched.Reschedule()
	}
	return result, reschedule
}

// SvcSbrk implements Sbrk(delta) (spec.md §4.4): grows or shrinks the
// current process's heap by an aligned amount, mapping or unmapping
// the affected pages through the memory manager so the MMU variant's
// per-process page tables actually back the new heap boundary instead
// of only the logical limit moving.
func (d *Dispatcher) SvcSbrk(cur *proc.Thread, delta int) (int32, bool) {
	aligned := alignPages(delta)
	prev, err := cur.Process().Sbrk(aligned)
	if err != nil {
		return d.finish(kerr.ResultOf(err), false)
	}
	if as, ok := cur.Process().AddrSpace().(vmm.AddressSpace); ok && aligned != 0 {
		var mapErr error
		if aligned > 0 {
			mapErr = d.Mem.MapPagesInProcess(as, prev, aligned/constants.PageSize)
		} else {
			shrinkBy := -aligned
			mapErr = d.Mem.UnmapPagesInProcess(as, prev-uintptr(shrinkBy), shrinkBy/constants.PageSize)
		}
		if mapErr != nil {
			cur.Process().Sbrk(-aligned)
			return d.finish(kerr.ResultOf(mapErr), false)
		}
		d.Mem.FinishedUpdatingPageTables()
	}
	return d.finish(int32(prev), false)
}

// alignPages rounds delta's magnitude up to a whole number of pages,
// preserving its sign, per spec.md §4.4's "grows/shrinks ... by an
// aligned amount."
func alignPages(delta int) int {
	sign := 1
	magnitude := delta
	if magnitude < 0 {
		sign, magnitude = -1, -magnitude
	}
	aligned := (magnitude + constants.PageSize - 1) &^ (constants.PageSize - 1)
	return sign * aligned
}

// SvcPrintString implements PrintString(s).
func (d *Dispatcher) SvcPrintString(s string) (int32, bool) {
	if d.Console != nil {
		d.Console.WriteString(s)
	}
	return d.finish(0, false)
}

// SvcPutch implements Putch(ch).
func (d *Dispatcher) SvcPutch(ch byte) (int32, bool) {
	if d.Console != nil {
		d.Console.WriteByte(ch)
	}
	return d.finish(0, false)
}

// SvcGetch implements Getch: returns the oldest buffered byte, or
// blocks the calling thread on the UART until one arrives.
func (d *Dispatcher) SvcGetch(cur *proc.Thread) (int32, bool) {
	if b, ok := d.UART.TryGetch(); ok {
		return d.finish(int32(b), false)
	}
	cur.SetBlockReason(proc.BlockReasonUART)
	d.Sched.ThreadSetState(cur, proc.BlockedFromSvc)
	got := cur.Park()
	return d.finish(int32(got), true)
}

// SvcGetchAsync implements Getch_Async(req).
func (d *Dispatcher) SvcGetchAsync(cur *proc.Thread, req *async.Request) (int32, bool) {
	err := d.UART.GetchAsync(cur, req)
	return d.finish(kerr.ResultOf(err), false)
}

// SvcCreateProcess implements CreateProcess(name).
func (d *Dispatcher) SvcCreateProcess(name string) (int32, bool) {
	p, first, err := d.Procs.CreateProcess(name)
	if err != nil {
		return d.finish(kerr.ResultOf(err), false)
	}
	as, err := d.Mem.CreateAddressSpace(int(p.PID()))
	if err != nil {
		return d.finish(kerr.ResultOf(err), false)
	}
	p.SetAddrSpace(as)
	d.Sched.ThreadSetState(first, proc.Ready)
	return d.finish(int32(p.PID()), false)
}

// SvcThreadCreate implements ThreadCreate(ctx).
func (d *Dispatcher) SvcThreadCreate(cur *proc.Thread, ctx uintptr) (int32, bool) {
	th, err := d.Procs.ThreadCreate(cur.Process(), ctx)
	if err != nil {
		return d.finish(kerr.ResultOf(err), false)
	}
	d.Sched.ThreadSetState(th, proc.Ready)
	return d.finish(int32(th.Index()), false)
}

// SvcThreadExit implements ThreadExit(reason): posts a DFC that marks
// the thread Dead and, once every thread of the process is Dead, tears
// the process down (spec.md §8 scenario 5).
func (d *Dispatcher) SvcThreadExit(cur *proc.Thread, reason int32) (int32, bool) {
	cur.SetBlockReason(proc.BlockReasonExited)
	d.Sched.DFCQueue().Post(func(uintptr, uintptr, uintptr) {
		d.Sched.ThreadSetState(cur, proc.Dead)
		for _, th := range cur.Process().Threads() {
			if th.State() != proc.Dead {
				return
			}
		}
		d.teardownProcess(cur.Process())
	}, 0, 0, 0)
	d.Sched.ThreadSetState(cur, proc.Dying)
	return d.finish(0, true)
}

func (d *Dispatcher) teardownProcess(p *proc.Process) {
	d.IPC.CancelProcess(p)
	if as, ok := p.AddrSpace().(vmm.AddressSpace); ok {
		d.Mem.DestroyAddressSpace(as)
	}
	d.Procs.FreeProcess(p)
}

// SvcReplaceProcess implements ReplaceProcess(name) (spec.md §4.4):
// tears down the calling process's shared pages, heap and address
// space, then re-initialises it under a new name while preserving the
// calling thread's identity, grounded on the original's
// KExecReplaceProcess/process_reset (_examples/original_source/k/
// svc.c:224, process.c's process_reset). Like the original, this is
// only meaningful when the caller is the process's sole thread;
// process_reset's own ASSERT(p->numThreads == 1) is enforced by
// proc.Process.Reset.
func (d *Dispatcher) SvcReplaceProcess(cur *proc.Thread, name string) (int32, bool) {
	p := cur.Process()
	heapLimit := p.HeapLimit()

	d.IPC.CancelProcess(p)
	if as, ok := p.AddrSpace().(vmm.AddressSpace); ok && heapLimit > 0 {
		if err := d.Mem.UnmapPagesInProcess(as, 0, int(heapLimit/constants.PageSize)); err != nil {
			return d.finish(kerr.ResultOf(err), false)
		}
		d.Mem.FinishedUpdatingPageTables()
	}

	if err := p.Reset(cur, name); err != nil {
		return d.finish(kerr.ResultOf(err), false)
	}
	cur.SetSavedRegs(proc.SavedRegs{})
	return d.finish(0, true)
}

// SvcThreadYield implements ThreadYield.
func (d *Dispatcher) SvcThreadYield(cur *proc.Thread) (int32, bool) {
	d.Sched.ThreadYield(cur)
	return d.finish(0, true)
}

// SvcWaitForAnyRequest implements WaitForAnyRequest.
func (d *Dispatcher) SvcWaitForAnyRequest(cur *proc.Thread) (int32, bool) {
	if n := cur.ResetCompleted(); n != 0 {
		return d.finish(int32(n), false)
	}
	cur.SetBlockReason(proc.BlockReasonWaitForAnyRequest)
	d.Sched.ThreadSetState(cur, proc.WaitForRequest)
	n := cur.Park()
	return d.finish(int32(n), true)
}

// SvcGetUptime implements GetUptime.
func (d *Dispatcher) SvcGetUptime() (int32, bool) {
	return d.finish(int32(d.Sched.UptimeMs()), true)
}

// SvcSetTimer implements SetTimer(req, due).
func (d *Dispatcher) SvcSetTimer(cur *proc.Thread, req *async.Request, due uint32) (int32, bool) {
	err := d.Timer.Set(cur, req, due, d.Sched.UptimeMs())
	return d.finish(kerr.ResultOf(err), false)
}

// SvcGetInt implements GetInt(which).
func (d *Dispatcher) SvcGetInt(key boardinfo.IntKey) (int32, bool) {
	v, err := d.Board.GetInt(key)
	if err != nil {
		return d.finish(kerr.ResultOf(err), false)
	}
	return d.finish(int32(v), false)
}

// SvcGetString implements GetString(which), returning the empty string
// alongside a negative result on failure.
func (d *Dispatcher) SvcGetString(key boardinfo.StringKey) (string, int32) {
	v, err := d.Board.GetString(key)
	return v, kerr.ResultOf(err)
}

// SvcDriverConnect implements DriverConnect(fourcc).
func (d *Dispatcher) SvcDriverConnect(tag driver.Tag) (int32, bool) {
	handle, err := d.Drivers.Connect(tag)
	if err != nil {
		return d.finish(kerr.ResultOf(err), false)
	}
	return d.finish(int32(handle), false)
}

// SvcDriverCommand routes a call whose number carries the
// DriverHandle bit to the registered driver's handler (spec.md §4.4's
// final call-table row, grounded on the original's svc.c default case:
// "ASSERT(cmd & KDriverHandle, cmd); ... result = d->execFn(d, arg1,
// arg2)").
func (d *Dispatcher) SvcDriverCommand(handle uint32, arg1, arg2 uintptr) (uintptr, int32) {
	result, err := d.Drivers.Dispatch(handle, arg1, arg2)
	return result, kerr.ResultOf(err)
}

// SvcCreateServer implements CreateServer(id).
func (d *Dispatcher) SvcCreateServer(cur *proc.Thread, tag ipc.Tag) (int32, bool) {
	err := d.IPC.CreateServer(tag, cur)
	return d.finish(kerr.ResultOf(err), false)
}

// SvcConnectToServer implements ConnectToServer(id, page): before
// handing the page to the IPC layer, maps it into the client's address
// space at the same virtual address it already has in the owner's, so
// spec.md §4.7's same-virtual-address invariant is enforced by the
// memory manager rather than relied on implicitly.
func (d *Dispatcher) SvcConnectToServer(cur *proc.Thread, tag ipc.Tag, page *ipc.Page) (int32, bool) {
	ownerAS, ownerHasAS := page.Owner.AddrSpace().(vmm.AddressSpace)
	clientAS, clientHasAS := cur.Process().AddrSpace().(vmm.AddressSpace)
	if ownerHasAS && clientHasAS && ownerAS != clientAS {
		if err := d.Mem.SharePage(ownerAS, clientAS, page.VirtAddr); err != nil {
			return d.finish(kerr.ResultOf(err), false)
		}
		d.Mem.FinishedUpdatingPageTables()
	}
	err := d.IPC.ConnectToServer(tag, page, cur)
	return d.finish(kerr.ResultOf(err), true)
}

// SvcRequestServerMsg implements RequestServerMsg(req).
func (d *Dispatcher) SvcRequestServerMsg(tag ipc.Tag, req *async.Request) (int32, bool) {
	err := d.IPC.RequestServerMsg(tag, req)
	return d.finish(kerr.ResultOf(err), false)
}

// SvcCompleteIpcRequestSend implements CompleteIpcRequest(req,
// toServer=true): the client's "send" path (spec.md §4.7).
func (d *Dispatcher) SvcCompleteIpcRequestSend(tag ipc.Tag, msgIndex int) (int32, bool) {
	err := d.IPC.SendMessage(tag, msgIndex)
	return d.finish(kerr.ResultOf(err), false)
}

// SvcCompleteIpcRequestReply implements CompleteIpcRequest(req,
// toServer=false): the server's "reply" path (spec.md §4.7).
func (d *Dispatcher) SvcCompleteIpcRequestReply(page *ipc.Page, msgIndex int, result int32) (int32, bool) {
	err := d.IPC.ReplyMessage(page, msgIndex, d.Sched, result)
	return d.finish(kerr.ResultOf(err), false)
}

// SvcNewSharedPage implements NewSharedPage: allocates a fresh IPC
// page owned by the current process at a freshly-assigned virtual
// address in the shared-page window, mapping it into the owner's
// address space via the memory manager (spec.md §4.4).
func (d *Dispatcher) SvcNewSharedPage(cur *proc.Thread) (*ipc.Page, int32) {
	slot := d.nextSharedPageSlot.FetchAdd(1)
	virt := constants.SharedPageBase + uintptr(slot)*constants.PageSize

	if as, ok := cur.Process().AddrSpace().(vmm.AddressSpace); ok {
		if err := d.Mem.MapPagesInProcess(as, virt, 1); err != nil {
			return nil, kerr.ResultOf(err)
		}
		d.Mem.FinishedUpdatingPageTables()
	}
	return ipc.NewPage(cur.Process(), virt), 0
}

// SvcReboot implements Reboot.
func (d *Dispatcher) SvcReboot() (int32, bool) {
	if d.Reboot_ != nil {
		d.Reboot_.Reboot()
	}
	return d.finish(0, false)
}

// Tick drives the scheduler's tick handler and the timer's due-time
// check every constants.TickInterval (spec.md §4.3/§8 scenario 4).
func (d *Dispatcher) Tick(interruptedSVC bool) {
	d.Sched.Tick(interruptedSVC)
	d.Timer.Tick(d.Sched, d.Sched.UptimeMs())
}
