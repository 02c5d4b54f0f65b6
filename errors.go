// Package lupi is the public API for the kernel core: boot, the
// memory manager, process/thread table, scheduler, SVC dispatcher, and
// IPC, assembled from the internal/ subsystems.
package lupi

import "github.com/lupi-os/lupi/internal/kerr"

// Error, Code, and the helpers below re-export the internal error
// taxonomy so callers outside the module need only import the root
// package, matching the teacher's own top-level Error/IsCode surface.
type Error = kerr.Error
type Code = kerr.Code

const (
	ErrNotFound      = kerr.CodeNotFound
	ErrNoMemory      = kerr.CodeNoMemory
	ErrNotSupported  = kerr.CodeNotSupported
	ErrArgument      = kerr.CodeArgument
	ErrBadHandle     = kerr.CodeBadHandle
	ErrAlreadyExists = kerr.CodeAlreadyExists
	ErrBadName       = kerr.CodeBadName
	ErrResourceLimit = kerr.CodeResourceLimit
	ErrCancelled     = kerr.CodeCancelled
	ErrBusy          = kerr.CodeBusy
)

// NewError creates a structured kernel error.
func NewError(op string, code Code, msg string) *Error {
	return kerr.New(op, code, msg)
}

// WrapError wraps an existing error with kernel operation context.
func WrapError(op string, inner error) *Error {
	return kerr.Wrap(op, inner)
}

// IsCode reports whether err's code matches code.
func IsCode(err error, code Code) bool {
	return kerr.Is(err, code)
}

// ResultOf converts an error into the SVC negative-result convention.
func ResultOf(err error) int32 {
	return kerr.ResultOf(err)
}
