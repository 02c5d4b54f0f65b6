package pagealloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lupi-os/lupi/internal/kerr"
)

func TestAllocStampsRun(t *testing.T) {
	a := New(16)
	idx, err := a.Alloc(User, 4, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	for i := 0; i < 4; i++ {
		assert.Equal(t, User, a.TypeOf(i))
	}
	assert.Equal(t, 4, a.PagesInUse())
}

func TestAllocRespectsAlignment(t *testing.T) {
	a := New(16)
	_, err := a.Alloc(UserPt, 1, 1) // consumes index 0
	require.NoError(t, err)

	idx, err := a.Alloc(SharedPage, 2, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, idx)
}

func TestAllocZeroFreePagesReturnsFailure(t *testing.T) {
	a := New(2)
	_, err := a.Alloc(User, 2, 1)
	require.NoError(t, err)

	_, err = a.Alloc(User, 1, 1)
	require.Error(t, err)
	assert.True(t, kerr.Is(err, kerr.CodeNoMemory))
}

func TestFreeMovesHintBack(t *testing.T) {
	a := New(8)
	_, err := a.Alloc(User, 4, 1)
	require.NoError(t, err)

	a.Free(1, 1)
	idx, err := a.Alloc(User, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, idx, "freed page below the hint should be reused first")
}

func TestFreeResetsToFree(t *testing.T) {
	a := New(4)
	idx, err := a.Alloc(User, 2, 1)
	require.NoError(t, err)
	a.Free(idx, 2)
	assert.Equal(t, 0, a.PagesInUse())
	assert.Equal(t, Free, a.TypeOf(idx))
}
