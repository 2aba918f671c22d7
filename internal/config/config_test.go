package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 0.4, cfg.Router.Threshold)
	assert.Equal(t, 0.05, cfg.Router.AdaptRate)
	assert.Equal(t, 100, cfg.System1.MaxLatencyMs)
	assert.Equal(t, 0.6, cfg.System1.MinConfidence)
	assert.Equal(t, 3, cfg.System2.MaxRetries)
	assert.True(t, cfg.System2.SandboxEnabled)
	assert.Equal(t, 30000, cfg.Sandbox.TimeoutMs)
	assert.Equal(t, 300000, cfg.Sandbox.MaxLifetimeMs)
	assert.Equal(t, 50, cfg.Learning.BatchSize)
	assert.Equal(t, 5, cfg.Learning.GRPOGroupSize)
	assert.Equal(t, 0.1, cfg.Learning.LearningRate)
	assert.Equal(t, "session", cfg.Swarm.Schedule)
	assert.Equal(t, 0.7, cfg.Swarm.MergeRatio)
	assert.Equal(t, 0.01, cfg.Swarm.NoiseSigma)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0.4, cfg.Router.Threshold)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
router:
  threshold: 0.55
  adapt_rate: 0.02
swarm:
  schedule: hourly
  endpoint: https://swarm.example.com/v1
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.55, cfg.Router.Threshold)
	assert.Equal(t, 0.02, cfg.Router.AdaptRate)
	assert.Equal(t, "hourly", cfg.Swarm.Schedule)
	assert.Equal(t, "https://swarm.example.com/v1", cfg.Swarm.Endpoint)
	// Untouched areas keep defaults.
	assert.Equal(t, 3, cfg.System2.MaxRetries)
}

func TestLoad_ClampsOutOfRangeValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
router:
  threshold: 0.95
  adapt_rate: 0.5
swarm:
  schedule: weekly
  merge_ratio: 1.8
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.Router.Threshold)
	assert.Equal(t, 0.2, cfg.Router.AdaptRate)
	assert.Equal(t, "session", cfg.Swarm.Schedule)
	assert.Equal(t, 1.0, cfg.Swarm.MergeRatio)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("COGITO_SWARM_ENDPOINT", func(t *testing.T) {
		t.Setenv("COGITO_SWARM_ENDPOINT", "https://env.example.com")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.Equal(t, "https://env.example.com", cfg.Swarm.Endpoint)
	})

	t.Run("COGITO_DEBUG", func(t *testing.T) {
		t.Setenv("COGITO_DEBUG", "true")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		assert.True(t, cfg.Logging.DebugMode)
	})

	t.Run("COGITO_ROUTER_THRESHOLD clamped after override", func(t *testing.T) {
		t.Setenv("COGITO_ROUTER_THRESHOLD", "0.1")
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		cfg.clamp()
		assert.Equal(t, 0.2, cfg.Router.Threshold)
	})
}

func TestLearningDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workspace = "/tmp/ws"
	assert.Equal(t, filepath.Join("/tmp/ws", ".cogito", "learning"), cfg.LearningDir())
}
