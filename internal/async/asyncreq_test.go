package async

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lupi-os/lupi/internal/proc"
)

type fakeScheduler struct {
	mu     sync.Mutex
	woken  map[*proc.Thread]uint32
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{woken: make(map[*proc.Thread]uint32)}
}

func (f *fakeScheduler) WakeIfWaiting(t *proc.Thread, result uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.woken[t] = result
	t.Wake(result)
}

func newTestThread() *proc.Thread {
	tbl := proc.NewTable()
	_, th, err := tbl.CreateProcess("p")
	if err != nil {
		panic(err)
	}
	return th
}

func TestSubmitCompleteDeliversResult(t *testing.T) {
	owner := newTestThread()
	owner.SetState(proc.WaitForRequest)

	var slot Slot
	req := &Request{}
	slot.Submit(owner, req)
	assert.NotNil(t, slot.Peek())

	k := slot.TakeForCompletion()
	require.NotNil(t, k)
	assert.Nil(t, slot.TakeForCompletion(), "a second take must see no owner")

	sched := newFakeScheduler()

	done := make(chan uint32, 1)
	go func() { done <- owner.Park() }()

	Complete(sched, k, 7)

	assert.Equal(t, int32(7), req.Result)
	assert.True(t, req.Flags&FlagCompleted != 0)
	assert.True(t, req.Flags&FlagIntResult != 0)
	assert.Equal(t, uint32(1), owner.CompletedRequests())
	assert.Equal(t, uint32(1), <-done)
}

func TestCancelPreventsCompletion(t *testing.T) {
	owner := newTestThread()

	var slot Slot
	slot.Submit(owner, &Request{})
	slot.Cancel()

	assert.Nil(t, slot.TakeForCompletion(), "a cancelled slot has no owner to take")
}

func TestTakeForCompletionIsExclusive(t *testing.T) {
	owner := newTestThread()
	var slot Slot
	slot.Submit(owner, &Request{})

	results := make(chan *KRequest, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg.Done()
			results <- slot.TakeForCompletion()
		}()
	}
	wg.Wait()
	close(results)

	nonNil := 0
	for k := range results {
		if k != nil {
			nonNil++
		}
	}
	assert.Equal(t, 1, nonNil, "exactly one concurrent take should win ownership")
}
