package svc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lupi-os/lupi/internal/async"
	"github.com/lupi-os/lupi/internal/boardinfo"
	"github.com/lupi-os/lupi/internal/dfc"
	"github.com/lupi-os/lupi/internal/driver"
	"github.com/lupi-os/lupi/internal/ipc"
	"github.com/lupi-os/lupi/internal/mem/pagealloc"
	"github.com/lupi-os/lupi/internal/mem/vmm"
	"github.com/lupi-os/lupi/internal/proc"
	"github.com/lupi-os/lupi/internal/sched"
	"github.com/lupi-os/lupi/internal/timer"
	"github.com/lupi-os/lupi/internal/uart"
)

type fakeConsole struct {
	sb strings.Builder
}

func (c *fakeConsole) WriteByte(b byte) error       { c.sb.WriteByte(b); return nil }
func (c *fakeConsole) WriteString(s string) (int, error) { return c.sb.WriteString(s) }

func newTestDispatcher() (*Dispatcher, *proc.Thread) {
	alloc := pagealloc.New(64)
	mem := vmm.New(true, alloc)
	s := sched.New(mem, dfc.New())
	procs := proc.NewTable()
	ipcMgr := ipc.New(s)
	drivers := driver.New()
	u := uart.New(s)
	tm := timer.New()
	board := &boardinfo.Info{}
	console := &fakeConsole{}

	d := New(s, procs, mem, ipcMgr, drivers, u, tm, board, console, nil)

	p, th, _ := procs.CreateProcess("init")
	as, _ := mem.CreateAddressSpace(int(p.PID()))
	p.SetAddrSpace(as)
	s.ThreadSetState(th, proc.Ready)
	s.Reschedule()
	return d, th
}

func TestSvcSbrkRoundTrip(t *testing.T) {
	d, th := newTestDispatcher()
	prev, _ := d.SvcSbrk(th, 4096)
	assert.Equal(t, int32(0), prev)

	limit := th.Process().HeapLimit()
	assert.Equal(t, uintptr(4096), limit)

	prev2, _ := d.SvcSbrk(th, -4096)
	assert.Equal(t, int32(4096), prev2)
	assert.Equal(t, uintptr(0), th.Process().HeapLimit())
}

func TestSvcPrintStringWritesToConsole(t *testing.T) {
	d, _ := newTestDispatcher()
	d.SvcPrintString("hello")
	assert.Equal(t, "hello", d.Console.(*fakeConsole).sb.String())
}

func TestSvcCreateProcessAssignsPID(t *testing.T) {
	d, _ := newTestDispatcher()
	pid, _ := d.SvcCreateProcess("child")
	assert.Greater(t, pid, int32(0))
}

func TestSvcDriverConnectAndGetUptime(t *testing.T) {
	d, _ := newTestDispatcher()
	require.NoError(t, d.Drivers.Register(driver.Tag{'U', 'A', 'R', 'T'}, func(a1, a2 uintptr) (uintptr, error) {
		return a1 + a2, nil
	}))
	handle, _ := d.SvcDriverConnect(driver.Tag{'U', 'A', 'R', 'T'})
	assert.True(t, driver.IsDriverHandle(uint32(handle)))

	uptime, _ := d.SvcGetUptime()
	assert.Equal(t, int32(0), uptime)
}

func TestSvcWaitForAnyRequestReturnsImmediatelyWhenAlreadyCompleted(t *testing.T) {
	d, th := newTestDispatcher()
	th.IncrementCompleted()

	n, reschedule := d.SvcWaitForAnyRequest(th)
	assert.Equal(t, int32(1), n)
	assert.False(t, reschedule)
}

func TestSvcGetchAsyncCompletesSynchronouslyWhenBuffered(t *testing.T) {
	d, th := newTestDispatcher()
	d.UART.PushByte('x')

	req := &async.Request{}
	result, _ := d.SvcGetchAsync(th, req)
	assert.Equal(t, int32(0), result)
	assert.Equal(t, int32('x'), req.Result)
}

func TestSvcSetTimerPastDueCompletesSynchronously(t *testing.T) {
	d, th := newTestDispatcher()
	req := &async.Request{}
	result, _ := d.SvcSetTimer(th, req, 0)
	assert.Equal(t, int32(0), result)
	assert.True(t, req.Flags&async.FlagCompleted != 0)
}

func TestSvcReplaceProcessResetsHeapAndPreservesThread(t *testing.T) {
	d, th := newTestDispatcher()
	d.SvcSbrk(th, 4096)
	require.Equal(t, uintptr(4096), th.Process().HeapLimit())

	result, _ := d.SvcReplaceProcess(th, "newimage")
	assert.Equal(t, int32(0), result)
	assert.Equal(t, "newimage", th.Process().Name())
	assert.Equal(t, uintptr(0), th.Process().HeapLimit())
	assert.Equal(t, 1, th.Process().NumThreads())
	assert.Equal(t, 0, th.Index())
}

func TestSvcReplaceProcessFailsWithMoreThanOneThread(t *testing.T) {
	d, th := newTestDispatcher()
	_, err := d.Procs.ThreadCreate(th.Process(), 0)
	require.NoError(t, err)

	result, _ := d.SvcReplaceProcess(th, "newimage")
	assert.Less(t, result, int32(0))
	assert.Equal(t, "init", th.Process().Name())
}

func TestSvcDriverCommandRoutesToHandler(t *testing.T) {
	d, _ := newTestDispatcher()
	require.NoError(t, d.Drivers.Register(driver.Tag{'U', 'A', 'R', 'T'}, func(a1, a2 uintptr) (uintptr, error) {
		return a1 + a2, nil
	}))
	handle, _ := d.SvcDriverConnect(driver.Tag{'U', 'A', 'R', 'T'})

	result, status := d.SvcDriverCommand(uint32(handle), 3, 4)
	assert.Equal(t, int32(0), status)
	assert.Equal(t, uintptr(7), result)
}

func TestSvcNewSharedPageMapsIntoOwnerAddressSpace(t *testing.T) {
	d, th := newTestDispatcher()
	page, status := d.SvcNewSharedPage(th)
	require.Equal(t, int32(0), status)
	require.NotNil(t, page)

	as := th.Process().AddrSpace().(vmm.AddressSpace)
	assert.NoError(t, d.Mem.UnmapPagesInProcess(as, page.VirtAddr, 1))
}

func TestSvcConnectToServerSharesPageIntoClientAddressSpace(t *testing.T) {
	d, server := newTestDispatcher()
	page, status := d.SvcNewSharedPage(server)
	require.Equal(t, int32(0), status)

	tag := ipc.Tag{'s', 'v', 'c', '1'}
	require.NoError(t, d.IPC.CreateServer(tag, server))
	require.NoError(t, d.IPC.RequestServerMsg(tag, &async.Request{}))

	clientPID, _ := d.SvcCreateProcess("client")
	clientProc := d.Procs.ByPID(uint32(clientPID))
	clientTh := clientProc.Threads()[0]

	result, _ := d.SvcConnectToServer(clientTh, tag, page)
	assert.Equal(t, int32(0), result)

	clientAS := clientProc.AddrSpace().(vmm.AddressSpace)
	thirdAS, err := d.Mem.CreateAddressSpace(999)
	require.NoError(t, err)
	assert.NoError(t, d.Mem.SharePage(clientAS, thirdAS, page.VirtAddr))
}
