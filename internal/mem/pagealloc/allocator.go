// Package pagealloc implements the byte-per-page physical page map
// described in spec.md §3/§4.1, grounded on the bitmap/byte-map
// allocators in gopheros's kernel/mem/pmm/allocator package and on
// original_source/k/pageAllocator.c.
package pagealloc

import (
	"sync"

	"github.com/lupi-os/lupi/internal/kerr"
)

// Type is the page-type tag stamped on every physical page.
type Type byte

const (
	Free Type = iota
	Sect0
	AllocatorPage
	ProcessPage
	UserPde
	UserPt
	User
	DebuggerHeap
	KernPtForProcPts
	SharedPage
	ThreadSvcStack
)

// Allocator tracks physical-page ownership with a byte-per-page type
// map and a "first-free" hint, per spec.md §4.1. No coalescing
// metadata is kept: the array itself encodes the free structure.
type Allocator struct {
	mu        sync.Mutex
	pages     []Type
	firstFree int
}

// New creates an allocator covering numPages physical pages, all
// initially Free.
func New(numPages int) *Allocator {
	return &Allocator{
		pages:     make([]Type, numPages),
		firstFree: 0,
	}
}

// NumPages returns the total number of pages tracked.
func (a *Allocator) NumPages() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pages)
}

// Alloc finds a run of count contiguous Free pages starting at an
// index that is a multiple of alignment (in pages), scanning from the
// first-free hint. On success every entry in the run is stamped with
// typ and the hint advances past the run. Returns (0, err) when no run
// satisfies the request. Index 0 is itself a valid result when page 0
// is Free, so failure is signalled by the error, not by the index.
func (a *Allocator) Alloc(typ Type, count, alignment int) (int, error) {
	if count <= 0 {
		return 0, kerr.New("PageAlloc", kerr.CodeArgument, "count must be positive")
	}
	if alignment <= 0 {
		alignment = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	start := a.alignUp(a.firstFree, alignment)
	for start+count <= len(a.pages) {
		if a.runIsFree(start, count) {
			for i := start; i < start+count; i++ {
				a.pages[i] = typ
			}
			a.advanceHint(start + count)
			return start, nil
		}
		start = a.alignUp(start+1, alignment)
	}
	return 0, kerr.New("PageAlloc", kerr.CodeNoMemory, "no contiguous run satisfies request")
}

func (a *Allocator) alignUp(index, alignment int) int {
	if rem := index % alignment; rem != 0 {
		return index + (alignment - rem)
	}
	return index
}

func (a *Allocator) runIsFree(start, count int) bool {
	for i := start; i < start+count; i++ {
		if a.pages[i] != Free {
			return false
		}
	}
	return true
}

// advanceHint sets firstFree to the next Free entry at or after from.
func (a *Allocator) advanceHint(from int) {
	for i := from; i < len(a.pages); i++ {
		if a.pages[i] == Free {
			a.firstFree = i
			return
		}
	}
	a.firstFree = len(a.pages)
}

// Free resets count pages starting at index back to Free, moving the
// first-free hint back if the freed run starts below it.
func (a *Allocator) Free(index, count int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := index; i < index+count && i < len(a.pages); i++ {
		a.pages[i] = Free
	}
	if index < a.firstFree {
		a.firstFree = index
	}
}

// PagesInUse returns the count of non-Free pages.
func (a *Allocator) PagesInUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, t := range a.pages {
		if t != Free {
			n++
		}
	}
	return n
}

// TypeOf reports the page type at index, for invariant checks in
// tests (spec.md §8, invariant 3).
func (a *Allocator) TypeOf(index int) Type {
	a.mu.Lock()
	defer a.mu.Unlock()
	if index < 0 || index >= len(a.pages) {
		return Free
	}
	return a.pages[index]
}
