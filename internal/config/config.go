// Package config loads Duro's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all duro configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	Search    SearchConfig    `yaml:"search"`
	Embedding EmbeddingConfig `yaml:"embedding"`
}

// SearchConfig tunes retrieval.
type SearchConfig struct {
	MaxResults int `yaml:"max_results"`
}

// EmbeddingConfig selects the embedding provider for the semantic leg.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // "hash" (built-in) or "none"
	Dimensions int    `yaml:"dimensions"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir: filepath.Join(home, ".duro"),
		Search: SearchConfig{
			MaxResults: 20,
		},
		Embedding: EmbeddingConfig{
			Provider:   "hash",
			Dimensions: 256,
		},
	}
}

// DefaultPath returns the default config location: ~/.duro/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".duro", "config.yaml"), nil
}

// Load reads the config at path, layered over defaults. A missing file is
// not an error: defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Search.MaxResults <= 0 {
		cfg.Search.MaxResults = 20
	}
	if cfg.Embedding.Dimensions <= 0 {
		cfg.Embedding.Dimensions = 256
	}
	return cfg, nil
}
