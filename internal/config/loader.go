package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads configuration from an optional YAML file at path, then
// applies RSMON_-prefixed environment variable overrides, then
// validates the result. A missing file is not an error: defaults and
// environment variables still apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Printf("warning: could not read config file %s: %v; using defaults and environment variables\n", path, err)
		}
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvironmentOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvironmentOverrides layers RSMON_-prefixed environment
// variables over whatever the file (or defaults) produced.
func applyEnvironmentOverrides(cfg *Config) {
	if level := os.Getenv("RSMON_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("RSMON_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
	if interval := os.Getenv("RSMON_WATCHER_INTERVAL_SECONDS"); interval != "" {
		if secs, err := strconv.Atoi(interval); err == nil {
			cfg.Watcher.Interval = time.Duration(secs) * time.Second
		}
	}
	if seeds := os.Getenv("RSMON_SEEDS"); seeds != "" {
		// RSMON_SEEDS=rs0=A:27017,B:27017;rs1=X:27017
		cfg.Monitor.ReplicaSets = parseSeedsEnv(seeds)
	}
	if port := os.Getenv("RSMON_DEBUG_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.DebugHTTP.Port = p
		}
	}
}

func parseSeedsEnv(raw string) []ReplicaSetSeeds {
	var out []ReplicaSetSeeds
	for _, group := range strings.Split(raw, ";") {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		nameAndSeeds := strings.SplitN(group, "=", 2)
		if len(nameAndSeeds) != 2 {
			continue
		}
		out = append(out, ReplicaSetSeeds{
			Name:  nameAndSeeds[0],
			Seeds: strings.Split(nameAndSeeds[1], ","),
		})
	}
	return out
}

