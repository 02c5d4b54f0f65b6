package lupi

import (
	"strings"
	"sync"
)

// MockConsole is an in-memory svc.Console for unit tests, standing in
// for the teacher's MockBackend (an in-memory stand-in for a real
// backend, with call tracking and a Reset method) applied to the
// console surface instead of block I/O.
type MockConsole struct {
	mu         sync.Mutex
	out        strings.Builder
	putchCalls int
	strCalls   int
}

// NewMockConsole creates an empty mock console.
func NewMockConsole() *MockConsole {
	return &MockConsole{}
}

// WriteByte implements svc.Console.
func (c *MockConsole) WriteByte(b byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putchCalls++
	c.out.WriteByte(b)
	return nil
}

// WriteString implements svc.Console.
func (c *MockConsole) WriteString(s string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strCalls++
	return c.out.WriteString(s)
}

// Output returns everything written so far.
func (c *MockConsole) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.String()
}

// CallCounts returns the number of WriteByte/WriteString calls made.
func (c *MockConsole) CallCounts() (putch, writeString int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.putchCalls, c.strCalls
}

// Reset clears recorded output and counters.
func (c *MockConsole) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out.Reset()
	c.putchCalls = 0
	c.strCalls = 0
}

// MockRebooter records Reboot calls instead of tearing anything down,
// for tests of the Reboot SVC path.
type MockRebooter struct {
	mu      sync.Mutex
	rebooted bool
	calls    int
}

// NewMockRebooter creates a mock rebooter.
func NewMockRebooter() *MockRebooter {
	return &MockRebooter{}
}

// Reboot implements svc.Rebooter.
func (r *MockRebooter) Reboot() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebooted = true
	r.calls++
}

// Rebooted reports whether Reboot has been called at least once.
func (r *MockRebooter) Rebooted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rebooted
}

// Calls returns the number of times Reboot was called.
func (r *MockRebooter) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// MockDriverHandler builds a driver.Handler suitable for
// Registry.Register in tests: it records every call and returns a
// fixed result, echoing the teacher's pattern of tracking calls on a
// fake backend rather than exercising real hardware.
type MockDriverHandler struct {
	mu      sync.Mutex
	calls   [][2]uintptr
	result  uintptr
	err     error
}

// NewMockDriverHandler creates a handler that always returns (result, err).
func NewMockDriverHandler(result uintptr, err error) *MockDriverHandler {
	return &MockDriverHandler{result: result, err: err}
}

// Handle implements the driver.Handler signature.
func (h *MockDriverHandler) Handle(arg1, arg2 uintptr) (uintptr, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, [2]uintptr{arg1, arg2})
	return h.result, h.err
}

// Calls returns every (arg1, arg2) pair the handler was invoked with.
func (h *MockDriverHandler) Calls() [][2]uintptr {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([][2]uintptr, len(h.calls))
	copy(out, h.calls)
	return out
}
