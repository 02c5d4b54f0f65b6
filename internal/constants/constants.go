// Package constants holds the fixed kernel limits referenced across
// the memory manager, scheduler, and SVC dispatcher.
package constants

import "time"

// Page geometry.
const (
	// PageSize is the size of one physical page (4 KB), per spec.md §4.2's
	// second-level tables describing 256 x 4 KB pages.
	PageSize = 4096

	// SectionSize is one MMU section (1 MB, 256 pages), per spec.md §4.2.
	SectionSize = 256 * PageSize
)

// Process/thread table limits.
const (
	// MaxProcesses bounds the process table (spec.md §9's "processes x
	// threads <= 256 x 48" sizing note).
	MaxProcesses = 64

	// MaxThreadsPerProcess bounds the inline thread array in each
	// Process page.
	MaxThreadsPerProcess = 48
)

// Scheduler timing.
const (
	// TimesliceMs is the fixed quantum after which a Ready thread moves
	// to the ready-list tail (spec.md §4.3, Glossary "Timeslice").
	TimesliceMs = 25

	// TickInterval is the simulated 1ms timer-interrupt period.
	TickInterval = time.Millisecond
)

// DFC ring.
const (
	// DFCRingSize bounds the deferred-function-call ring (spec.md §4.6).
	DFCRingSize = 64
)

// SharedPageBase is the reserved virtual-address window shared pages
// are mapped into, separate from the per-process heap that grows from
// address 0 (spec.md §4.2/§4.7's "shared pages appear at the same
// virtual address in every process that maps them").
const SharedPageBase uintptr = 0x10000000

// Driver/server registries.
const (
	// MaxDrivers bounds the driver registry (spec.md §4.8).
	MaxDrivers = 16

	// MaxServers bounds the IPC server table (spec.md §4.7).
	MaxServers = 16

	// MaxMessagesPerPage bounds the per-shared-page message array.
	MaxMessagesPerPage = 8
)

// UART ring buffer.
const (
	// UARTRingCapacity is the size of the UART ring's backing array
	// (spec.md §3, "UART ring buffer (<=255 bytes)"). uart.Driver keeps
	// one slot empty to tell full from empty, so it buffers at most
	// UARTRingCapacity-1 bytes.
	UARTRingCapacity = 255

	// UARTRingFull is the two-counter scheme's full-state sentinel
	// (spec.md §5: "a full state is encoded by write == 0xFF").
	// uart.Driver does not use it; it detects a full ring from its read
	// and write indices.
	UARTRingFull = 0xFF
)

// DriverHandleBit, when set in an SVC call number, routes the call to
// the registered driver handler (spec.md §4.4/§4.8, Glossary).
const DriverHandleBit = 1 << 30
