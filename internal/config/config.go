// Package config holds all cogito configuration.
// Defaults are defined here; a .cogito/config.yaml in the workspace overrides
// them, and a handful of COGITO_* environment variables override both.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"cogito/internal/logging"
)

// Config holds all cogito configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Workspace root; discovered when empty.
	Workspace string `yaml:"workspace"`

	Router            RouterConfig            `yaml:"router"`
	System1           System1Config           `yaml:"system1"`
	System2           System2Config           `yaml:"system2"`
	Sandbox           SandboxConfig           `yaml:"sandbox"`
	Learning          LearningConfig          `yaml:"learning"`
	KnowledgeTransfer KnowledgeTransferConfig `yaml:"knowledge_transfer"`
	Swarm             SwarmConfig             `yaml:"swarm"`
	Logging           LoggingConfig           `yaml:"logging"`
}

// RouterConfig tunes complexity routing.
type RouterConfig struct {
	// Threshold is the S1/S2 routing boundary, clamped to [0.2, 0.7].
	Threshold float64 `yaml:"threshold"`
	// AdaptRate is the threshold adaptation step, clamped to [0.001, 0.2].
	AdaptRate float64 `yaml:"adapt_rate"`
}

// System1Config tunes the fast path.
type System1Config struct {
	MaxLatencyMs  int     `yaml:"max_latency_ms"`
	MinConfidence float64 `yaml:"min_confidence"`
}

// System2Config tunes the deliberative path.
type System2Config struct {
	MaxRetries     int  `yaml:"max_retries"`
	SandboxEnabled bool `yaml:"sandbox_enabled"`
}

// SandboxConfig tunes the execution safety gate.
type SandboxConfig struct {
	TimeoutMs     int  `yaml:"timeout_ms"`
	MaxLifetimeMs int  `yaml:"max_lifetime_ms"`
	AllowNetwork  bool `yaml:"allow_network"`
}

// LearningConfig tunes GRPO batch learning.
type LearningConfig struct {
	BatchSize     int     `yaml:"batch_size"`
	GRPOGroupSize int     `yaml:"grpo_group_size"`
	LearningRate  float64 `yaml:"learning_rate"`
}

// KnowledgeTransferConfig tunes S1<->S2 pattern promotion/demotion.
type KnowledgeTransferConfig struct {
	PromotionThreshold int `yaml:"promotion_threshold"`
	DemotionThreshold  int `yaml:"demotion_threshold"`
}

// SwarmConfig tunes the federated client.
type SwarmConfig struct {
	Endpoint   string  `yaml:"endpoint"`
	Schedule   string  `yaml:"schedule"` // session|hourly|daily
	MergeRatio float64 `yaml:"merge_ratio"`
	NoiseSigma float64 `yaml:"noise_sigma"`
	TimeoutMs  int     `yaml:"timeout_ms"`
	MaxRetries int     `yaml:"max_retries"`
}

// LoggingConfig mirrors the logging package's file-based config.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "cogito",
		Version: "1.0.0",

		Router: RouterConfig{
			Threshold: 0.4,
			AdaptRate: 0.05,
		},
		System1: System1Config{
			MaxLatencyMs:  100,
			MinConfidence: 0.6,
		},
		System2: System2Config{
			MaxRetries:     3,
			SandboxEnabled: true,
		},
		Sandbox: SandboxConfig{
			TimeoutMs:     30000,
			MaxLifetimeMs: 300000,
			AllowNetwork:  true,
		},
		Learning: LearningConfig{
			BatchSize:     50,
			GRPOGroupSize: 5,
			LearningRate:  0.1,
		},
		KnowledgeTransfer: KnowledgeTransferConfig{
			PromotionThreshold: 3,
			DemotionThreshold:  2,
		},
		Swarm: SwarmConfig{
			Schedule:   "session",
			MergeRatio: 0.7,
			NoiseSigma: 0.01,
			TimeoutMs:  10000,
			MaxRetries: 3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads config from path, merging over defaults. A missing file is not
// an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			cfg.clamp()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.clamp()
	logging.Boot("Config loaded from %s", path)
	return cfg, nil
}

// LoadFromWorkspace discovers the workspace root and loads its config.
func LoadFromWorkspace() (*Config, error) {
	ws, err := FindWorkspaceRoot()
	if err != nil {
		ws = "."
	}
	cfg, err := Load(filepath.Join(ws, ".cogito", "config.yaml"))
	if err != nil {
		return nil, err
	}
	if cfg.Workspace == "" {
		cfg.Workspace = ws
	}
	return cfg, nil
}

// clamp forces out-of-range values back into their documented ranges.
func (c *Config) clamp() {
	c.Router.Threshold = clampF(c.Router.Threshold, 0.2, 0.7)
	c.Router.AdaptRate = clampF(c.Router.AdaptRate, 0.001, 0.2)
	c.System1.MinConfidence = clampF(c.System1.MinConfidence, 0, 1)
	if c.System1.MaxLatencyMs <= 0 {
		c.System1.MaxLatencyMs = 100
	}
	if c.System2.MaxRetries < 0 {
		c.System2.MaxRetries = 0
	}
	if c.Sandbox.TimeoutMs <= 0 {
		c.Sandbox.TimeoutMs = 30000
	}
	if c.Sandbox.MaxLifetimeMs <= 0 {
		c.Sandbox.MaxLifetimeMs = 300000
	}
	if c.Learning.BatchSize <= 0 {
		c.Learning.BatchSize = 50
	}
	if c.Learning.GRPOGroupSize <= 0 {
		c.Learning.GRPOGroupSize = 5
	}
	c.Learning.LearningRate = clampF(c.Learning.LearningRate, 0.001, 1)
	if c.KnowledgeTransfer.PromotionThreshold <= 0 {
		c.KnowledgeTransfer.PromotionThreshold = 3
	}
	if c.KnowledgeTransfer.DemotionThreshold <= 0 {
		c.KnowledgeTransfer.DemotionThreshold = 2
	}
	switch c.Swarm.Schedule {
	case "session", "hourly", "daily":
	default:
		c.Swarm.Schedule = "session"
	}
	c.Swarm.MergeRatio = clampF(c.Swarm.MergeRatio, 0, 1)
	if c.Swarm.NoiseSigma < 0 {
		c.Swarm.NoiseSigma = 0.01
	}
	if c.Swarm.TimeoutMs <= 0 {
		c.Swarm.TimeoutMs = 10000
	}
	if c.Swarm.MaxRetries <= 0 {
		c.Swarm.MaxRetries = 3
	}
}

// LearningDir returns the directory holding persisted learning state.
func (c *Config) LearningDir() string {
	ws := c.Workspace
	if ws == "" {
		ws = "."
	}
	return filepath.Join(ws, ".cogito", "learning")
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
