package vmm

import (
	"sync"

	"github.com/lupi-os/lupi/internal/constants"
	"github.com/lupi-os/lupi/internal/kerr"
	"github.com/lupi-os/lupi/internal/logging"
	"github.com/lupi-os/lupi/internal/mem/pagealloc"
)

// entriesPerSection is the number of 4 KB pages described by one
// second-level table (spec.md §4.2: "256 x 4 KB pages").
const entriesPerSection = constants.SectionSize / constants.PageSize

// l2Table is one second-level page table: 256 entries, each either 0
// (unmapped) or the physical page index backing that virtual page.
// ptPage is the physical page (tagged UserPt) the table itself lives
// on, freed once the table is empty.
type l2Table struct {
	entries [entriesPerSection]int // 0 means unmapped; pages are 1-indexed internally
	ptPage  int
	mapped  int
}

// mmuAddrSpace is a per-process page directory: one L2 table per
// section that process has touched.
type mmuAddrSpace struct {
	proc     int
	sections map[uintptr]*l2Table // keyed by section-aligned virtual address
}

func (a *mmuAddrSpace) procIndex() int { return a.proc }

// mmuManager is the MMU variant of spec.md §4.2.
type mmuManager struct {
	mu      sync.Mutex
	alloc   *pagealloc.Allocator
	current AddressSpace
	logger  *logging.Logger
}

func newMMUManager(alloc *pagealloc.Allocator) *mmuManager {
	return &mmuManager{alloc: alloc, logger: logging.Default()}
}

func (m *mmuManager) CreateAddressSpace(procIndex int) (AddressSpace, error) {
	return &mmuAddrSpace{proc: procIndex, sections: make(map[uintptr]*l2Table)}, nil
}

func (m *mmuManager) DestroyAddressSpace(as AddressSpace) {
	mas, ok := as.(*mmuAddrSpace)
	if !ok {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for sectionVirt, table := range mas.sections {
		for _, phys := range table.entries {
			if phys != 0 {
				m.alloc.Free(phys-1, 1)
			}
		}
		m.alloc.Free(table.ptPage, 1)
		delete(mas.sections, sectionVirt)
	}
	if m.current == as {
		m.current = nil
	}
}

func sectionOf(virt uintptr) uintptr {
	return virt - (virt % constants.SectionSize)
}

func pageIndexInSection(virt uintptr) int {
	return int((virt % constants.SectionSize) / constants.PageSize)
}

// createSection allocates the L2 table for sectionVirt if it does not
// exist yet, per spec.md §4.2's createSection.
func (m *mmuManager) createSection(mas *mmuAddrSpace, sectionVirt uintptr) (*l2Table, error) {
	if t, ok := mas.sections[sectionVirt]; ok {
		return t, nil
	}
	ptPage, err := m.alloc.Alloc(pagealloc.UserPt, 1, 1)
	if err != nil {
		return nil, kerr.Wrap("CreateSection", err)
	}
	t := &l2Table{ptPage: ptPage}
	mas.sections[sectionVirt] = t
	return t, nil
}

// MapPagesInProcess allocates n fresh User pages and maps them
// starting at virt, creating any missing L2 tables on demand, per
// spec.md §4.2's mapPagesInProcess.
func (m *mmuManager) MapPagesInProcess(as AddressSpace, virt uintptr, n int) error {
	mas, ok := as.(*mmuAddrSpace)
	if !ok {
		return kerr.New("MapPagesInProcess", kerr.CodeArgument, "not an MMU address space")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := 0; i < n; i++ {
		pageVirt := virt + uintptr(i)*constants.PageSize
		sectionVirt := sectionOf(pageVirt)
		table, err := m.createSection(mas, sectionVirt)
		if err != nil {
			return err
		}
		idx := pageIndexInSection(pageVirt)
		if table.entries[idx] != 0 {
			continue // already mapped; idempotent like the original mapPageInSection
		}
		phys, err := m.alloc.Alloc(pagealloc.User, 1, 1)
		if err != nil {
			return kerr.Wrap("MapPagesInProcess", err)
		}
		table.entries[idx] = phys + 1
		table.mapped++
	}
	return nil
}

// UnmapPagesInProcess clears n mappings at virt, freeing both the
// backing pages and, once empty, the owning L2 table.
func (m *mmuManager) UnmapPagesInProcess(as AddressSpace, virt uintptr, n int) error {
	mas, ok := as.(*mmuAddrSpace)
	if !ok {
		return kerr.New("UnmapPagesInProcess", kerr.CodeArgument, "not an MMU address space")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := 0; i < n; i++ {
		pageVirt := virt + uintptr(i)*constants.PageSize
		sectionVirt := sectionOf(pageVirt)
		table, ok := mas.sections[sectionVirt]
		if !ok {
			continue
		}
		idx := pageIndexInSection(pageVirt)
		if phys := table.entries[idx]; phys != 0 {
			m.alloc.Free(phys-1, 1)
			table.entries[idx] = 0
			table.mapped--
		}
		if table.mapped == 0 {
			m.alloc.Free(table.ptPage, 1)
			delete(mas.sections, sectionVirt)
		}
	}
	return nil
}

// SharePage duplicates the physical mapping at virt from src into dst
// without reallocating the underlying page, per spec.md §4.2.
func (m *mmuManager) SharePage(src, dst AddressSpace, virt uintptr) error {
	msrc, ok := src.(*mmuAddrSpace)
	if !ok {
		return kerr.New("SharePage", kerr.CodeArgument, "not an MMU address space")
	}
	mdst, ok := dst.(*mmuAddrSpace)
	if !ok {
		return kerr.New("SharePage", kerr.CodeArgument, "not an MMU address space")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sectionVirt := sectionOf(virt)
	srcTable, ok := msrc.sections[sectionVirt]
	if !ok {
		return kerr.New("SharePage", kerr.CodeArgument, "source page not mapped")
	}
	idx := pageIndexInSection(virt)
	phys := srcTable.entries[idx]
	if phys == 0 {
		return kerr.New("SharePage", kerr.CodeArgument, "source page not mapped")
	}

	dstTable, err := m.createSection(mdst, sectionVirt)
	if err != nil {
		return err
	}
	if dstTable.entries[idx] == 0 {
		dstTable.mapped++
	}
	dstTable.entries[idx] = phys
	return nil
}

// SwitchProcess writes the simulated TTBR/ASID pair by updating the
// manager's notion of the current address space.
func (m *mmuManager) SwitchProcess(as AddressSpace) AddressSpace {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.current
	if prev == as {
		return nil
	}
	m.current = as
	return prev
}

func (m *mmuManager) FinishedUpdatingPageTables() {
	// A real target issues DSB/ISB here; the Go model has no TLB to
	// invalidate, so this is a no-op retained purely as the hook the
	// rest of the kernel calls after a batch of mapping changes.
}
