package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pellucidb/pellucid/pkg/pellucid"
)

// Config represents the pellucid.yaml configuration file.
type Config struct {
	SchemaDir     string `yaml:"schema_dir"`
	ProjectRoot   string `yaml:"project_root"`
	DefaultModule string `yaml:"default_module"`
}

// loadConfig loads configuration from file, env vars, and CLI flags.
// Precedence: CLI flags > env vars > config file > defaults
func loadConfig() (*Config, error) {
	cfg := &Config{
		SchemaDir:     "./schema",
		ProjectRoot:   ".",
		DefaultModule: "default",
	}

	// Load config file if it exists
	if data, err := os.ReadFile(configFile); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Override with env vars
	if env := os.Getenv("PELLUCID_SCHEMA_DIR"); env != "" && schemaDir == "" {
		cfg.SchemaDir = env
	}
	if env := os.Getenv("PELLUCID_PROJECT_ROOT"); env != "" {
		cfg.ProjectRoot = env
	}

	// Override with CLI flags (highest priority)
	if schemaDir != "" {
		cfg.SchemaDir = schemaDir
	}

	return cfg, nil
}

// newClient creates a new pellucid client from config.
func newClient() (*pellucid.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	return pellucid.New(
		pellucid.WithProjectRoot(cfg.ProjectRoot),
		pellucid.WithSchemaDir(cfg.SchemaDir),
		pellucid.WithDefaultModule(cfg.DefaultModule),
	)
}

// newCachelessClient creates a client without opening the snapshot
// cache. Use for operations that only read schema documents.
func newCachelessClient() (*pellucid.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	return pellucid.New(
		pellucid.WithProjectRoot(cfg.ProjectRoot),
		pellucid.WithSchemaDir(cfg.SchemaDir),
		pellucid.WithDefaultModule(cfg.DefaultModule),
		pellucid.WithoutCache(),
	)
}
