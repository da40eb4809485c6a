// Package config loads process-wide configuration for the replica-set
// monitor: seeds, timeouts, logging, metrics, and the debug HTTP surface.
package config

import (
	"time"

	rsmonerrors "github.com/devrev/rsmon/internal/errors"
)

// Config is the top-level configuration tree.
type Config struct {
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Watcher   WatcherConfig   `mapstructure:"watcher"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	DebugHTTP DebugHTTPConfig `mapstructure:"debug_http"`
}

// ReplicaSetSeeds names the seed addresses for one replica set at
// process start. Additional sets may be registered later at runtime
// through the MonitorRegistry directly; this section only bootstraps
// whatever is known up front.
type ReplicaSetSeeds struct {
	Name  string   `mapstructure:"name"`
	Seeds []string `mapstructure:"seeds"`
}

// MonitorConfig controls probe and full-check behavior shared by every
// ReplicaSetMonitor in the process.
type MonitorConfig struct {
	ReplicaSets    []ReplicaSetSeeds `mapstructure:"replica_sets"`
	ConnectTimeout time.Duration     `mapstructure:"connect_timeout"`
	CheckRounds    int               `mapstructure:"check_rounds"`
	RoundInterval  time.Duration     `mapstructure:"round_interval"`
}

// WatcherConfig controls the background periodic re-check loop.
type WatcherConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// LoggingConfig controls the zap logger built at startup.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds settings for the Prometheus scrape endpoint.
// Neither field is read elsewhere: the debug HTTP server always serves
// metrics at /metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DebugHTTPConfig controls the read-only introspection HTTP surface.
type DebugHTTPConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Port              int           `mapstructure:"port"`
	RateLimitEnabled  bool          `mapstructure:"rate_limit_enabled"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	BurstSize         int           `mapstructure:"burst_size"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

// DefaultConfig returns the configuration used when no file and no
// environment overrides are present.
func DefaultConfig() *Config {
	return &Config{
		Monitor: MonitorConfig{
			ConnectTimeout: 5 * time.Second,
			CheckRounds:    2,
			RoundInterval:  1 * time.Second,
		},
		Watcher: WatcherConfig{
			Interval: 20 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		DebugHTTP: DebugHTTPConfig{
			Enabled:           true,
			Port:              8090,
			RateLimitEnabled:  true,
			RequestsPerSecond: 20,
			BurstSize:         40,
			ReadTimeout:       5 * time.Second,
			WriteTimeout:      5 * time.Second,
		},
	}
}

// Validate rejects configuration that would leave the monitor unable to
// do useful work before any Monitor is constructed from it.
func (c *Config) Validate() error {
	if c.Monitor.ConnectTimeout <= 0 {
		return rsmonerrors.NewConfigError("monitor.connect_timeout must be positive")
	}
	if c.Monitor.CheckRounds <= 0 {
		return rsmonerrors.NewConfigError("monitor.check_rounds must be positive")
	}
	if c.Watcher.Interval <= 0 {
		return rsmonerrors.NewConfigError("watcher.interval must be positive")
	}
	if !isValidLogLevel(c.Logging.Level) {
		return rsmonerrors.NewConfigError("logging.level must be one of: debug, info, warn, error")
	}
	for _, rs := range c.Monitor.ReplicaSets {
		if rs.Name == "" {
			return rsmonerrors.NewConfigError("monitor.replica_sets entries require a name")
		}
		if len(rs.Seeds) == 0 {
			return rsmonerrors.NewConfigError("replica set %q has no seeds", rs.Name)
		}
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}
