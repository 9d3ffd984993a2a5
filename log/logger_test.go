package log

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	require.NoError(t, SetLevel("debug"))
	assert.True(t, Global.levels.Debug)
	assert.True(t, Global.levels.Error)

	require.NoError(t, SetLevel("warn"))
	assert.False(t, Global.levels.Info)
	assert.True(t, Global.levels.Warn)

	require.NoError(t, SetLevel("INFO|ERROR"))
	assert.True(t, Global.levels.Info)
	assert.False(t, Global.levels.Warn)

	assert.ErrorIs(t, SetLevel("shouty"), errUnknownLevel)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)
	require.NoError(t, SetLevel("info"))

	Debugf(SupervisorMgr, "hidden %d", 1)
	assert.Zero(t, buf.Len())

	Infof(SupervisorMgr, "visible %d", 2)
	assert.Contains(t, buf.String(), "visible 2")
	assert.Contains(t, buf.String(), "SUPERVISOR")
	assert.Contains(t, buf.String(), "[INFO]")
}
