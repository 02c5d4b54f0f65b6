package lupi

import "github.com/lupi-os/lupi/internal/constants"

// Re-export the kernel's sizing constants for the public API.
const (
	PageSize             = constants.PageSize
	SectionSize          = constants.SectionSize
	MaxProcesses         = constants.MaxProcesses
	MaxThreadsPerProcess = constants.MaxThreadsPerProcess
	TimesliceMs          = constants.TimesliceMs
	DFCRingSize          = constants.DFCRingSize
	MaxDrivers           = constants.MaxDrivers
	MaxServers           = constants.MaxServers
	MaxMessagesPerPage   = constants.MaxMessagesPerPage
	UARTRingCapacity     = constants.UARTRingCapacity
	DriverHandleBit      = constants.DriverHandleBit
)
