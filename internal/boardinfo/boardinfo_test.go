package boardinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetIntAndGetString(t *testing.T) {
	info := &Info{
		RAMBytes:      256 * 1024 * 1024,
		BootMode:      2,
		ScreenWidth:   640,
		ScreenHeight:  480,
		Version:       "lupi-1.0",
		BoardRevision: "rev-b",
	}

	ram, err := info.GetInt(IntRAMBytes)
	require.NoError(t, err)
	assert.Equal(t, uint32(256*1024*1024), ram)

	w, err := info.GetInt(IntScreenWidth)
	require.NoError(t, err)
	assert.Equal(t, uint32(640), w)

	v, err := info.GetString(StringVersion)
	require.NoError(t, err)
	assert.Equal(t, "lupi-1.0", v)

	_, err = info.GetInt(IntKey(99))
	require.Error(t, err)
	_, err = info.GetString(StringKey(99))
	require.Error(t, err)
}
