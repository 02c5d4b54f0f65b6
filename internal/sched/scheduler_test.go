package sched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lupi-os/lupi/internal/dfc"
	"github.com/lupi-os/lupi/internal/mem/vmm"
	"github.com/lupi-os/lupi/internal/proc"
)

func newTestScheduler() (*Scheduler, *proc.Table) {
	mem := vmm.New(false, nil)
	s := New(mem, dfc.New())
	return s, proc.NewTable()
}

func readyThread(t *testing.T, tbl *proc.Table, name string) *proc.Thread {
	_, th, err := tbl.CreateProcess(name)
	require.NoError(t, err)
	return th
}

func TestThreadSetStateEnqueuesAtHead(t *testing.T) {
	s, tbl := newTestScheduler()
	a := readyThread(t, tbl, "a")
	b := readyThread(t, tbl, "b")

	s.ThreadSetState(a, proc.Ready)
	s.ThreadSetState(b, proc.Ready)

	// b was enqueued at head after a, so b should be first.
	assert.Equal(t, b, s.FindNextReadyThread())
}

func TestThreadSetStateLeavingReadyDequeues(t *testing.T) {
	s, tbl := newTestScheduler()
	a := readyThread(t, tbl, "a")
	s.ThreadSetState(a, proc.Ready)
	require.Equal(t, a, s.FindNextReadyThread())

	s.ThreadSetState(a, proc.BlockedFromSvc)
	assert.Nil(t, s.FindNextReadyThread())
}

func TestThreadYieldMovesToTail(t *testing.T) {
	s, tbl := newTestScheduler()
	a := readyThread(t, tbl, "a")
	b := readyThread(t, tbl, "b")
	s.ThreadSetState(a, proc.Ready)
	s.ThreadSetState(b, proc.Ready)
	require.Equal(t, b, s.FindNextReadyThread())

	s.ThreadYield(b)
	assert.Equal(t, a, s.FindNextReadyThread())
}

func TestRescheduleMakesThreadCurrentAndRefillsTimeslice(t *testing.T) {
	s, tbl := newTestScheduler()
	a := readyThread(t, tbl, "a")
	a.SetTimeslice(0)
	s.ThreadSetState(a, proc.Ready)

	got := s.Reschedule()
	require.Equal(t, a, got)
	assert.Equal(t, a, s.CurrentThread())
	assert.Greater(t, a.Timeslice(), 0)
}

func TestRescheduleWithNoReadyThreadsClearsCurrent(t *testing.T) {
	s, _ := newTestScheduler()
	assert.Nil(t, s.Reschedule())
	assert.Nil(t, s.CurrentThread())
}

func TestTickDecrementsTimesliceAndPreemptsAtZero(t *testing.T) {
	s, tbl := newTestScheduler()
	a := readyThread(t, tbl, "a")
	b := readyThread(t, tbl, "b")
	s.ThreadSetState(a, proc.Ready)
	s.ThreadSetState(b, proc.Ready)
	s.Reschedule() // current = b (last enqueued at head)
	require.Equal(t, b, s.CurrentThread())

	b.SetTimeslice(1)
	s.Tick(false)

	assert.Equal(t, a, s.CurrentThread(), "exhausting the timeslice outside an SVC reschedules immediately")
}

func TestTickDuringSVCDefersReschedule(t *testing.T) {
	s, tbl := newTestScheduler()
	a := readyThread(t, tbl, "a")
	s.ThreadSetState(a, proc.Ready)
	s.Reschedule()
	a.SetTimeslice(1)

	s.Tick(true)

	assert.Equal(t, a, s.CurrentThread(), "a tick during an SVC must not reschedule immediately")
	assert.True(t, s.RescheduleNeededOnSvcExit())
	assert.False(t, s.RescheduleNeededOnSvcExit(), "the flag is consumed by the first check")
}

func TestUptimeAdvancesOnTick(t *testing.T) {
	s, _ := newTestScheduler()
	s.Tick(false)
	s.Tick(false)
	assert.Equal(t, uint32(2), s.UptimeMs())
}

func TestWakeIfWaitingIgnoresNonWaitingThread(t *testing.T) {
	s, tbl := newTestScheduler()
	a := readyThread(t, tbl, "a")
	s.ThreadSetState(a, proc.Ready)

	s.WakeIfWaiting(a, 5)
	assert.Equal(t, proc.Ready, a.State(), "a thread that wasn't waiting is left untouched")
}

func TestWakeIfWaitingWakesParkedThread(t *testing.T) {
	s, tbl := newTestScheduler()
	a := readyThread(t, tbl, "a")
	a.SetState(proc.WaitForRequest)

	done := make(chan uint32, 1)
	go func() { done <- a.Park() }()

	s.WakeIfWaiting(a, 3)

	assert.Equal(t, uint32(3), <-done)
	assert.Equal(t, proc.Ready, a.State())
	assert.Equal(t, a, s.FindNextReadyThread())
}
