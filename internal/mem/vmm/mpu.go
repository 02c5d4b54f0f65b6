package vmm

import "sync"

// mpuAddrSpace carries nothing but the process index: on an MPU-only
// target physical RAM *is* the user address space (spec.md §4.2b), so
// there is no per-process translation state to hold.
type mpuAddrSpace struct {
	proc int
}

func (a *mpuAddrSpace) procIndex() int { return a.proc }

// mpuManager implements spec.md §4.2b: protection regions are
// programmed once at boot (outside this package's scope — that is the
// board-specific region table, an external collaborator per spec.md
// §1) and switch_process only moves a pointer.
type mpuManager struct {
	mu      sync.Mutex
	current AddressSpace
}

func newMPUManager() *mpuManager {
	return &mpuManager{}
}

func (m *mpuManager) CreateAddressSpace(procIndex int) (AddressSpace, error) {
	return &mpuAddrSpace{proc: procIndex}, nil
}

func (m *mpuManager) DestroyAddressSpace(as AddressSpace) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == as {
		m.current = nil
	}
}

// MapPagesInProcess is a no-op: heap growth on MPU targets is bounded
// by the next thread's stack base, not page-table capacity.
func (m *mpuManager) MapPagesInProcess(as AddressSpace, virt uintptr, n int) error {
	return nil
}

func (m *mpuManager) UnmapPagesInProcess(as AddressSpace, virt uintptr, n int) error {
	return nil
}

// SharePage is a no-op: every process already sees the same flat RAM,
// so a "shared" page is shared from the moment it's allocated.
func (m *mpuManager) SharePage(src, dst AddressSpace, virt uintptr) error {
	return nil
}

func (m *mpuManager) SwitchProcess(as AddressSpace) AddressSpace {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.current
	if prev == as {
		return nil
	}
	m.current = as
	return prev
}

func (m *mpuManager) FinishedUpdatingPageTables() {}
