package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/durolabs/duro/internal/config"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.MaxResults != 20 {
		t.Errorf("MaxResults = %d, want 20", cfg.Search.MaxResults)
	}
	if cfg.Embedding.Provider != "hash" || cfg.Embedding.Dimensions != 256 {
		t.Errorf("Embedding = %+v", cfg.Embedding)
	}
	if cfg.DataDir == "" {
		t.Error("DataDir should default to a home path")
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
data_dir: /var/lib/duro
search:
  max_results: 50
embedding:
  provider: none
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataDir != "/var/lib/duro" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Search.MaxResults != 50 {
		t.Errorf("MaxResults = %d, want 50", cfg.Search.MaxResults)
	}
	if cfg.Embedding.Provider != "none" {
		t.Errorf("Provider = %q, want none", cfg.Embedding.Provider)
	}
	// Unset fields keep their defaults.
	if cfg.Embedding.Dimensions != 256 {
		t.Errorf("Dimensions = %d, want default 256", cfg.Embedding.Dimensions)
	}
}

func TestLoad_FloorsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
search:
  max_results: -5
embedding:
  dimensions: 0
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Search.MaxResults != 20 {
		t.Errorf("MaxResults = %d, want floored 20", cfg.Search.MaxResults)
	}
	if cfg.Embedding.Dimensions != 256 {
		t.Errorf("Dimensions = %d, want floored 256", cfg.Embedding.Dimensions)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{not yaml::"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(path); err == nil {
		t.Error("malformed yaml should error")
	}
}
