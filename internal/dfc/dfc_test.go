package dfc

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lupi-os/lupi/internal/constants"
)

func TestPostAndDrainRunsInOrder(t *testing.T) {
	q := New()
	var order []uintptr
	for i := uintptr(1); i <= 3; i++ {
		i := i
		q.Post(func(a1, a2, a3 uintptr) { order = append(order, a1) }, i, 0, 0)
	}
	n := q.Drain()
	require.Equal(t, 3, n)
	assert.Equal(t, []uintptr{1, 2, 3}, order)
	assert.Equal(t, 0, q.Pending())
}

func TestOverflowPanics(t *testing.T) {
	q := New()
	for i := 0; i < constants.DFCRingSize; i++ {
		q.Post(func(uintptr, uintptr, uintptr) {}, 0, 0, 0)
	}
	assert.Panics(t, func() {
		q.Post(func(uintptr, uintptr, uintptr) {}, 0, 0, 0)
	})
}

func TestRunDrainLoopWakesOnPost(t *testing.T) {
	q := New()
	stop := make(chan struct{})
	go q.RunDrainLoop(stop)

	var ran atomic.Bool
	q.Post(func(uintptr, uintptr, uintptr) { ran.Store(true) }, 0, 0, 0)

	require.Eventually(t, ran.Load, time.Second, time.Millisecond)
	close(stop)
}
