// Package driver implements the fixed-size driver registry of spec.md
// §4.8: a 4-byte-tag table routing DriverHandle-bit SVCs to their
// handler, grounded on the teacher's backend registry in backend.go
// (a name keyed lookup table of pluggable I/O implementations).
package driver

import (
	"sync"

	"github.com/lupi-os/lupi/internal/constants"
	"github.com/lupi-os/lupi/internal/kerr"
)

// Tag is the 4-byte driver identifier passed to DriverConnect.
type Tag [4]byte

// Handler is a driver's dispatch function, called with the SVC's arg1
// and arg2 (spec.md §4.8's fn(driver, arg1, arg2)); the driver itself
// is not passed as an argument.
type Handler func(arg1, arg2 uintptr) (uintptr, error)

type entry struct {
	tag     Tag
	handler Handler
}

// Registry is the fixed driver table (spec.md §3's "fixed-size driver
// table").
type Registry struct {
	mu      sync.Mutex
	drivers [constants.MaxDrivers]*entry
}

// New creates an empty driver registry.
func New() *Registry {
	return &Registry{}
}

// Register adds (tag, handler) to the first free slot, per spec.md
// §4.8's kern_registerDriver.
func (r *Registry) Register(tag Tag, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.drivers {
		if e != nil && e.tag == tag {
			return kerr.New("RegisterDriver", kerr.CodeAlreadyExists, "driver tag already registered")
		}
	}
	for i, e := range r.drivers {
		if e == nil {
			r.drivers[i] = &entry{tag: tag, handler: handler}
			return nil
		}
	}
	return kerr.New("RegisterDriver", kerr.CodeResourceLimit, "driver table full")
}

// Connect looks up tag, returning a handle of DriverHandleBit|index on
// success (spec.md §4.8's DriverConnect).
func (r *Registry) Connect(tag Tag) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.drivers {
		if e != nil && e.tag == tag {
			return constants.DriverHandleBit | uint32(i), nil
		}
	}
	return 0, kerr.New("DriverConnect", kerr.CodeNotFound, "no driver with that tag")
}

// IsDriverHandle reports whether an SVC call number carries the
// DriverHandle bit (spec.md §4.8).
func IsDriverHandle(callNumber uint32) bool {
	return callNumber&constants.DriverHandleBit != 0
}

// Dispatch invokes the handler addressed by a driver-routed call
// number, per spec.md §4.8: "subsequent SVCs whose call number has
// DriverHandle set are dispatched to fn(driver, arg1, arg2)."
func (r *Registry) Dispatch(callNumber uint32, arg1, arg2 uintptr) (uintptr, error) {
	index := callNumber &^ constants.DriverHandleBit
	r.mu.Lock()
	if int(index) >= len(r.drivers) || r.drivers[index] == nil {
		r.mu.Unlock()
		return 0, kerr.New("Dispatch", kerr.CodeBadHandle, "no driver at that handle index")
	}
	h := r.drivers[index].handler
	r.mu.Unlock()
	return h(arg1, arg2)
}
