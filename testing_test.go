package lupi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMockConsoleRecordsOutput(t *testing.T) {
	c := NewMockConsole()
	assert.NoError(t, c.WriteByte('a'))
	n, err := c.WriteString("bc")
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "abc", c.Output())

	putch, str := c.CallCounts()
	assert.Equal(t, 1, putch)
	assert.Equal(t, 1, str)

	c.Reset()
	assert.Equal(t, "", c.Output())
}

func TestMockRebooterTracksCalls(t *testing.T) {
	r := NewMockRebooter()
	assert.False(t, r.Rebooted())
	r.Reboot()
	r.Reboot()
	assert.True(t, r.Rebooted())
	assert.Equal(t, 2, r.Calls())
}

func TestMockDriverHandlerRecordsCallsAndReturnsFixedResult(t *testing.T) {
	wantErr := errors.New("boom")
	h := NewMockDriverHandler(42, wantErr)

	result, err := h.Handle(1, 2)
	assert.Equal(t, uintptr(42), result)
	assert.Equal(t, wantErr, err)

	_, _ = h.Handle(3, 4)
	calls := h.Calls()
	assert.Equal(t, [][2]uintptr{{1, 2}, {3, 4}}, calls)
}
