package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/rsmon.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Watcher.Interval, cfg.Watcher.Interval)
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	t.Setenv("RSMON_LOG_LEVEL", "debug")
	t.Setenv("RSMON_WATCHER_INTERVAL_SECONDS", "45")
	t.Setenv("RSMON_SEEDS", "rs0=a:1,b:2;rs1=c:3")

	cfg, err := Load("/nonexistent/path/rsmon.yaml")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 45*time.Second, cfg.Watcher.Interval)
	require.Len(t, cfg.Monitor.ReplicaSets, 2)
	assert.Equal(t, "rs0", cfg.Monitor.ReplicaSets[0].Name)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Monitor.ReplicaSets[0].Seeds)
	assert.Equal(t, "rs1", cfg.Monitor.ReplicaSets[1].Name)
}

func TestParseSeedsEnvIgnoresMalformedGroups(t *testing.T) {
	out := parseSeedsEnv("rs0=a:1;garbage;rs1=b:2")
	require.Len(t, out, 2)
	assert.Equal(t, "rs0", out[0].Name)
	assert.Equal(t, "rs1", out[1].Name)
}
