package hosted

import (
	"time"

	"github.com/lupi-os/lupi/internal/constants"
)

// Ticker drives a tick callback once per constants.TickInterval,
// standing in for the hardware timer interrupt of spec.md §4.3.
type Ticker struct {
	stop chan struct{}
}

// NewTicker starts calling tick once per TickInterval on its own
// goroutine until Stop is called. interruptedSVC always reports false
// from the hosted driver, since the hosted dispatcher runs each SVC to
// completion on the calling goroutine rather than truly interrupting
// it. A hosted tick that exhausts the current thread's timeslice
// therefore reschedules at once and never sets the scheduler's
// RescheduleNeededOnSvcExit flag, so svc.Dispatcher's SVC epilogue sees
// no tick-deferred reschedule from this ticker.
func NewTicker(tick func(interruptedSVC bool)) *Ticker {
	t := &Ticker{stop: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(constants.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				tick(false)
			}
		}
	}()
	return t
}

// Stop halts the ticker goroutine.
func (t *Ticker) Stop() {
	close(t.stop)
}
