package proc

import (
	"sync"

	"github.com/lupi-os/lupi/internal/constants"
	"github.com/lupi-os/lupi/internal/kerr"
)

// Table is the fixed-size process table (spec.md §3's process
// lifecycle: created by CreateProcess, destroyed when its last thread
// exits).
type Table struct {
	mu         sync.Mutex
	processes  [constants.MaxProcesses]*Process
	nextPID    uint32
}

// NewTable creates an empty process table.
func NewTable() *Table {
	return &Table{nextPID: 1}
}

// CreateProcess allocates a free process slot and returns its first
// thread, ready for the caller to install saved registers and mark
// Ready (spec.md §4.4's CreateProcess SVC).
func (t *Table) CreateProcess(name string) (*Process, *Thread, error) {
	if len(name) == 0 {
		return nil, nil, kerr.New("CreateProcess", kerr.CodeBadName, "process name must not be empty")
	}

	t.mu.Lock()
	var slot int = -1
	for i, p := range t.processes {
		if p == nil {
			slot = i
			break
		}
	}
	if slot == -1 {
		t.mu.Unlock()
		return nil, nil, kerr.New("CreateProcess", kerr.CodeResourceLimit, "process table full")
	}
	pid := t.nextPID
	t.nextPID++
	p := &Process{pid: pid, name: name}
	t.processes[slot] = p
	t.mu.Unlock()

	first, err := p.addThread()
	if err != nil {
		t.FreeProcess(p)
		return nil, nil, err
	}
	first.SetState(Dead) // caller transitions to Ready once its context is loaded
	return p, first, nil
}

// ThreadCreate allocates a new thread within an existing process
// (spec.md §4.4's ThreadCreate).
func (t *Table) ThreadCreate(p *Process, ctx uintptr) (*Thread, error) {
	th, err := p.addThread()
	if err != nil {
		return nil, err
	}
	th.SetSavedRegs(SavedRegs{Arg: ctx})
	return th, nil
}

// ByPID looks up a live process by id.
func (t *Table) ByPID(pid uint32) *Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.processes {
		if p != nil && p.pid == pid {
			return p
		}
	}
	return nil
}

// FreeProcess clears a process's slot, making the PID reusable (spec.md
// §8's "PID slot becomes reusable" assertion from scenario 5). Callers
// must have already torn down the process's threads, heap, page
// tables, and shared-page ownership.
func (t *Table) FreeProcess(p *Process) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, cur := range t.processes {
		if cur == p {
			t.processes[i] = nil
			return
		}
	}
}

// AllProcesses returns every live process, for crash/debug reporting.
func (t *Table) AllProcesses() []*Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Process, 0, constants.MaxProcesses)
	for _, p := range t.processes {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
