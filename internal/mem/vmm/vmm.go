// Package vmm implements the split MemoryManager of spec.md §4.2/§4.2b:
// a full two-level-page-table manager for MMU targets, and a
// protection-region no-op manager for MPU-only targets, behind a
// single Manager interface the way the teacher repo puts multiple
// io_uring ring implementations behind its Ring interface.
package vmm

import (
	"github.com/lupi-os/lupi/internal/logging"
	"github.com/lupi-os/lupi/internal/mem/pagealloc"
)

// Manager is the MemoryManager contract spec.md §4.2/§4.2b both
// implementations satisfy.
type Manager interface {
	// CreateAddressSpace allocates whatever per-process address-space
	// state the variant needs (a page directory on MMU targets,
	// nothing on MPU targets) and returns an opaque handle.
	CreateAddressSpace(procIndex int) (AddressSpace, error)

	// DestroyAddressSpace releases everything CreateAddressSpace
	// allocated, including any mapped user pages.
	DestroyAddressSpace(as AddressSpace)

	// MapPagesInProcess maps n fresh pages at virt in as's address
	// space, allocating backing physical pages of type User.
	MapPagesInProcess(as AddressSpace, virt uintptr, n int) error

	// UnmapPagesInProcess clears the mapping at virt and frees the n
	// backing physical pages.
	UnmapPagesInProcess(as AddressSpace, virt uintptr, n int) error

	// SharePage duplicates the mapping at virt from src into dst
	// without reallocating the underlying physical page (spec.md
	// §4.2's sharePage / §4.7's shared-page IPC).
	SharePage(src, dst AddressSpace, virt uintptr) error

	// SwitchProcess switches the active address space, returning the
	// previously active one (or nil if unchanged), per spec.md's
	// switch_process.
	SwitchProcess(as AddressSpace) AddressSpace

	// FinishedUpdatingPageTables issues whatever barrier sequence the
	// variant needs after a batch of mapping changes.
	FinishedUpdatingPageTables()
}

// AddressSpace is an opaque per-process handle returned by
// CreateAddressSpace. Its concrete type differs between the MMU and
// MPU managers.
type AddressSpace interface {
	procIndex() int
}

// New picks the MMU or MPU-only manager based on mmuPresent, mirroring
// the teacher's NewRing factory selecting a concrete Ring
// implementation from a Config.
func New(mmuPresent bool, alloc *pagealloc.Allocator) Manager {
	logger := logging.Default()
	if mmuPresent {
		logger.Debug("constructing MMU memory manager")
		return newMMUManager(alloc)
	}
	logger.Debug("constructing MPU-only memory manager")
	return newMPUManager()
}
