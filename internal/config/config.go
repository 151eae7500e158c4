// Package config loads the YAML configuration of the server binary.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/janus-web/janus-db/pkg/chunker"
	"github.com/janus-web/janus-db/pkg/types"
)

type Config struct {
	// Listen is the address the HTTP adapter binds to.
	Listen string `yaml:"listen"`
	// DataDir is the engine's storage directory.
	DataDir string `yaml:"dataDir"`
	// Secret seals chunk bytes at rest. Required.
	Secret string `yaml:"secret"`
	// MinimumFreeGB is a free-space threshold for on-disk operations.
	MinimumFreeGB uint `yaml:"minimumFreeGB"`

	// ChunkMode selects "fixed" or "buzhash" chunking; ChunkSize the fixed
	// slot size in bytes.
	ChunkMode chunker.Mode `yaml:"chunkMode"`
	ChunkSize int          `yaml:"chunkSize"`

	// PricePerKiB is the per-started-KiB chunk price of the built-in ledger.
	PricePerKiB uint64 `yaml:"pricePerKiB"`

	// Tokens maps bearer tokens to subject names.
	Tokens map[string]string `yaml:"tokens"`
	// Roles maps subject names to the roles they hold.
	Roles map[string][]types.RoleId `yaml:"roles"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel"`
}

// Load reads and validates a config file, applying defaults for everything
// that can safely default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if config.Listen == "" {
		config.Listen = ":4242"
	}
	if config.DataDir == "" {
		config.DataDir = "./data"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}

	if config.Secret == "" {
		return Config{}, fmt.Errorf("config %s: secret must be set", path)
	}
	switch config.ChunkMode {
	case "", chunker.ModeFixed, chunker.ModeBuzhash:
	default:
		return Config{}, fmt.Errorf("config %s: unknown chunkMode %q", path, config.ChunkMode)
	}

	return config, nil
}
