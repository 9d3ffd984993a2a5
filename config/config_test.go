package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	c := New()
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, DefaultHeartbeatInterval, c.HeartbeatInterval)
	assert.Equal(t, DefaultHeartbeatTimeout, c.HeartbeatTimeout)
	assert.Equal(t, DefaultMaintenanceInterval, c.MaintenanceInterval)
	assert.Equal(t, DefaultConnectTimeout, c.ConnectTimeout)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("FCS_DATABASE", "postgres://localhost/fcs")
	t.Setenv("FCS_HEARTBEAT_TIMEOUT", "10s")

	c := New()
	assert.Equal(t, "postgres://localhost/fcs", c.DatabaseURL)
	assert.Equal(t, 10*time.Second, c.HeartbeatTimeout)
}

func TestValidate(t *testing.T) {
	c := New()
	c.DatabaseURL = "postgres://localhost/fcs"
	require.NoError(t, c.Validate())

	c.DatabaseURL = ""
	assert.Error(t, c.Validate())

	c.DatabaseURL = "postgres://localhost/fcs"
	c.HeartbeatTimeout = c.HeartbeatInterval
	assert.Error(t, c.Validate())
}
