// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the orchestrator configuration.
type Config struct {
	Run      RunConfig      `toml:"run"`
	Memory   MemoryConfig   `toml:"memory"`
	Episodic EpisodicConfig `toml:"episodic"`
	Log      LogConfig      `toml:"log"`
}

// RunConfig bounds a single run.
type RunConfig struct {
	AgentTimeout duration `toml:"agent_timeout"` // per-leaf ceiling unless the node sets its own
	GateTimeout  duration `toml:"gate_timeout"`
	SimilarLimit int      `toml:"similar_limit"` // episodes consulted before a run
}

// MemoryConfig tunes the working-memory store.
type MemoryConfig struct {
	FactTTL duration `toml:"fact_ttl"`
}

// EpisodicConfig selects and locates the episodic store.
type EpisodicConfig struct {
	Store string `toml:"store"` // jsonl or sqlite
	Path  string `toml:"path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// duration lets TOML carry values like "30s" or "5m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		Run: RunConfig{
			AgentTimeout: duration{2 * time.Minute},
			GateTimeout:  duration{time.Minute},
			SimilarLimit: 5,
		},
		Memory: MemoryConfig{
			FactTTL: duration{30 * time.Minute},
		},
		Episodic: EpisodicConfig{
			Store: "jsonl",
			Path:  "episodes.jsonl",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	// Store paths like "$HOME/.taskweave/episodes.jsonl" resolve at load time.
	cfg.Episodic.Path = os.ExpandEnv(cfg.Episodic.Path)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads configuration from taskweave.toml in the current
// directory, falling back to defaults when the file does not exist.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	path := filepath.Join(cwd, "taskweave.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(), nil
	}
	return LoadFile(path)
}

func (c *Config) validate() error {
	switch c.Episodic.Store {
	case "jsonl", "sqlite":
	default:
		return fmt.Errorf("unknown episodic store %q (want jsonl or sqlite)", c.Episodic.Store)
	}
	if c.Run.SimilarLimit < 0 {
		return fmt.Errorf("similar_limit must not be negative")
	}
	return nil
}

// AgentTimeout returns the configured per-leaf timeout.
func (c *Config) AgentTimeout() time.Duration { return c.Run.AgentTimeout.Duration }

// GateTimeout returns the configured gate timeout.
func (c *Config) GateTimeout() time.Duration { return c.Run.GateTimeout.Duration }

// FactTTL returns the working-memory fact lifetime.
func (c *Config) FactTTL() time.Duration { return c.Memory.FactTTL.Duration }
