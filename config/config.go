// Package config supplies runtime settings for every subcommand. Defaults
// are registered with viper and can be overridden through FCS_-prefixed
// environment variables; command line flags take precedence over both
package config

import (
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/spf13/viper"
)

// Default timing constants for the cluster. The heartbeat timeout must
// exceed the heartbeat interval or the supervisor would garbage-collect
// perfectly healthy workers
const (
	DefaultHeartbeatInterval   = time.Second
	DefaultHeartbeatTimeout    = 3 * time.Second
	DefaultMaintenanceInterval = time.Second
	DefaultConnectTimeout      = 5 * time.Second

	envPrefix = "fcs"
)

// Config holds the settings shared by the init, supervise and work
// subcommands
type Config struct {
	// DatabaseURL is the PostgreSQL connection string; the database is the
	// single source of truth for the whole cluster
	DatabaseURL string

	// LogLevel selects the minimum level emitted by all subloggers
	LogLevel string

	// HeartbeatInterval is how often each worker reports liveness
	HeartbeatInterval time.Duration

	// HeartbeatTimeout is how long the supervisor waits before considering
	// a silent worker dead
	HeartbeatTimeout time.Duration

	// MaintenanceInterval is the period of the supervisor's roster gc tick
	MaintenanceInterval time.Duration

	// ConnectTimeout bounds database connection acquisition
	ConnectTimeout time.Duration
}

// New returns settings assembled from defaults and the environment
func New() *Config {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("database", "")
	v.SetDefault("log", "info")
	v.SetDefault("heartbeat-interval", DefaultHeartbeatInterval)
	v.SetDefault("heartbeat-timeout", DefaultHeartbeatTimeout)
	v.SetDefault("maintenance-interval", DefaultMaintenanceInterval)
	v.SetDefault("connect-timeout", DefaultConnectTimeout)

	return &Config{
		DatabaseURL:         v.GetString("database"),
		LogLevel:            v.GetString("log"),
		HeartbeatInterval:   v.GetDuration("heartbeat-interval"),
		HeartbeatTimeout:    v.GetDuration("heartbeat-timeout"),
		MaintenanceInterval: v.GetDuration("maintenance-interval"),
		ConnectTimeout:      v.GetDuration("connect-timeout"),
	}
}

// Validate checks the settings invariants
func (c *Config) Validate() error {
	return vala.BeginValidation().Validate(
		vala.StringNotEmpty(c.DatabaseURL, "database"),
		vala.GreaterThan(int(c.HeartbeatTimeout), int(c.HeartbeatInterval),
			"heartbeat-timeout"),
		vala.GreaterThan(int(c.ConnectTimeout), 0, "connect-timeout"),
		vala.GreaterThan(int(c.MaintenanceInterval), 0, "maintenance-interval"),
	).Check()
}
