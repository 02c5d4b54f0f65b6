package lupi

import "github.com/lupi-os/lupi/internal/sched"

// Metrics is the public view of the scheduler's atomic counters,
// grounded on the teacher's own Metrics struct (a set of atomic
// counters plus a Snapshot method), generalized from block-device I/O
// counters to scheduling counters.
type Metrics = sched.Metrics

// MetricsSnapshot is a point-in-time copy of Metrics, safe to pass
// around without further atomic reads.
type MetricsSnapshot struct {
	Ticks           uint32
	ContextSwitches uint32
	Preemptions     uint32
	DFCsDrained     uint32
}

// Snapshot reads m's counters into a plain struct.
func Snapshot(m *Metrics) MetricsSnapshot {
	return MetricsSnapshot{
		Ticks:           m.Ticks.Load(),
		ContextSwitches: m.ContextSwitches.Load(),
		Preemptions:     m.Preemptions.Load(),
		DFCsDrained:     m.DFCsDrained.Load(),
	}
}

// Observer allows pluggable collection of kernel events, matching the
// teacher's Observer interface shape (pluggable metrics sinks) applied
// to scheduler/DFC events instead of block I/O.
type Observer interface {
	ObserveTick(uptimeMs uint32)
	ObserveContextSwitch(fromPID, toPID uint32)
	ObserveDFCsDrained(n int)
}

// NoOpObserver discards every event.
type NoOpObserver struct{}

func (NoOpObserver) ObserveTick(uint32)             {}
func (NoOpObserver) ObserveContextSwitch(uint32, uint32) {}
func (NoOpObserver) ObserveDFCsDrained(int)         {}

var _ Observer = (*NoOpObserver)(nil)
