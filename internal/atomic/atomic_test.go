package atomic

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordSwapAndCAS(t *testing.T) {
	var w Word
	w.Store(5)
	assert.Equal(t, uint32(5), w.Swap(9))
	assert.Equal(t, uint32(9), w.Load())

	assert.True(t, w.CompareAndSwap(9, 42))
	assert.False(t, w.CompareAndSwap(9, 100))
	assert.Equal(t, uint32(42), w.Load())
}

func TestWordFetchAddConcurrent(t *testing.T) {
	var w Word
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.FetchAdd(1)
		}()
	}
	wg.Wait()
	assert.Equal(t, uint32(100), w.Load())
}

func TestByteWrapsAndCAS(t *testing.T) {
	var b Byte
	b.Store(250)
	old := b.FetchAdd(10)
	assert.Equal(t, uint8(250), old)
	assert.Equal(t, uint8(4), b.Load()) // wraps past 255 like the UART ring index

	assert.True(t, b.CompareAndSwap(4, 99))
	assert.False(t, b.CompareAndSwap(4, 1))
}

func TestPointerSwapOwnershipIsExclusive(t *testing.T) {
	type req struct{ n int }
	var p Pointer[req]
	p.Store(&req{n: 1})

	var wg sync.WaitGroup
	wins := make(chan *req, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := p.Swap(nil); got != nil {
				wins <- got
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count, "exactly one swap should observe the non-nil owner")
}
