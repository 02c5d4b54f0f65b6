package lupi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lupi-os/lupi/internal/boardinfo"
	"github.com/lupi-os/lupi/internal/proc"
)

func newTestKernel(t *testing.T) *Kernel {
	t.Helper()
	k := NewKernel(Config{
		RAMBytes:   1 << 20,
		MMUPresent: false,
		Board: boardinfo.Info{
			RAMBytes: 1 << 20,
			Version:  "test",
		},
		Console: NewMockConsole(),
	})
	require.NotNil(t, k)
	return k
}

func TestNewKernelWiresSubsystems(t *testing.T) {
	k := newTestKernel(t)
	assert.NotNil(t, k.Alloc)
	assert.NotNil(t, k.Mem)
	assert.NotNil(t, k.Procs)
	assert.NotNil(t, k.Sched)
	assert.NotNil(t, k.IPC)
	assert.NotNil(t, k.Drivers)
	assert.NotNil(t, k.UART)
	assert.NotNil(t, k.Timer)
	assert.NotNil(t, k.Dispatch)
}

func TestBootCreatesProcessAndSchedulesIt(t *testing.T) {
	k := newTestKernel(t)
	p, err := k.Boot("init")
	require.NoError(t, err)
	assert.Equal(t, "init", p.Name())

	cur := k.Sched.CurrentThread()
	require.NotNil(t, cur)
	assert.Equal(t, p, cur.Process())
	assert.Equal(t, proc.Ready, cur.State())
}

func TestTickAdvancesUptime(t *testing.T) {
	k := newTestKernel(t)
	k.Boot("init")
	before := k.Sched.UptimeMs()
	k.Tick(false)
	assert.Greater(t, k.Sched.UptimeMs(), before)
}

func TestShutdownFreesAllProcesses(t *testing.T) {
	k := newTestKernel(t)
	k.Boot("init")
	k.Boot("second")
	assert.Len(t, k.Procs.AllProcesses(), 2)

	k.Shutdown()
	assert.Empty(t, k.Procs.AllProcesses())
}
