package proc

import (
	"sync"

	"github.com/lupi-os/lupi/internal/constants"
	"github.com/lupi-os/lupi/internal/kerr"
)

// Process is exactly one page's worth of state in the original design
// (spec.md §3): a PID, page-directory handle, heap limit, name, and an
// inline array of threads. The Go model keeps the same shape as a
// single struct rather than literally placing it on one physical page
// — see DESIGN.md for why that substitution is safe for every
// invariant spec.md names.
type Process struct {
	mu sync.Mutex

	pid       uint32
	name      string
	heapLimit uintptr
	addrSpace any // vmm.AddressSpace, stored as any to avoid an import cycle

	threads    [constants.MaxThreadsPerProcess]*Thread
	numThreads int
}

// PID returns the process id; 0 means the slot is free (spec.md §3).
func (p *Process) PID() uint32 { return p.pid }

func (p *Process) Name() string { return p.name }

func (p *Process) AddrSpace() any { return p.addrSpace }

func (p *Process) SetAddrSpace(as any) { p.addrSpace = as }

func (p *Process) HeapLimit() uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.heapLimit
}

// Sbrk adjusts the heap limit by delta, returning the previous limit.
// The caller (package svc) is responsible for actually mapping or
// unmapping the affected pages via the memory manager before this
// commits; Sbrk itself only tracks the logical boundary.
func (p *Process) Sbrk(delta int) (previous uintptr, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	previous = p.heapLimit
	next := int64(previous) + int64(delta)
	if next < 0 {
		return previous, kerr.New("Sbrk", kerr.CodeArgument, "heap limit would go negative")
	}
	p.heapLimit = uintptr(next)
	return previous, nil
}

// Reset tears down the process's logical heap and renames it, standing
// in for the original's process_exit followed by process_init
// (_examples/original_source/k/process.c's process_reset). It only
// succeeds when the calling thread is the process's sole surviving
// thread and is that process's first thread (index 0), matching
// process_reset's ASSERT(p->numThreads == 1) and
// ASSERT(t == firstThreadForProcess(p)) — anything else would need to
// tear down other threads too, which ReplaceProcess does not attempt.
func (p *Process) Reset(caller *Thread, name string) error {
	if len(name) == 0 {
		return kerr.New("ReplaceProcess", kerr.CodeBadName, "process name must not be empty")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.numThreads != 1 || caller.index != 0 || caller.proc != p {
		return kerr.New("ReplaceProcess", kerr.CodeNotSupported, "caller must be the process's sole thread")
	}
	p.heapLimit = 0
	p.name = name
	return nil
}

// Threads returns the live thread slots 0..numThreads-1 (spec.md §8,
// invariant 2).
func (p *Process) Threads() []*Thread {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Thread, p.numThreads)
	copy(out, p.threads[:p.numThreads])
	return out
}

// NumThreads returns the live thread count.
func (p *Process) NumThreads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.numThreads
}

// addThread appends a new thread, failing with ResourceLimit once the
// table is full (spec.md §8, invariant 2: numThreads never decremented
// below the largest live index — enforced here by only ever growing,
// never compacting; a dead thread keeps its slot with state Dead, and
// no function removes or shifts slots).
func (p *Process) addThread() (*Thread, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.numThreads >= constants.MaxThreadsPerProcess {
		return nil, kerr.New("ThreadCreate", kerr.CodeResourceLimit, "thread table full")
	}
	t := &Thread{proc: p, index: p.numThreads, state: Dead}
	p.threads[p.numThreads] = t
	p.numThreads++
	return t, nil
}
