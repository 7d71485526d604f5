package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EnvAPIURL overrides the configured API base URL when set.
const EnvAPIURL = "SCRAPEDASH_API_URL"

type Config struct {
	API APIConfig `yaml:"api"`
	Log LogConfig `yaml:"log"`
}

type APIConfig struct {
	BaseURL string `yaml:"base_url"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		API: APIConfig{BaseURL: "http://localhost:8000"},
		Log: LogConfig{
			File:  "~/.local/state/scrapedash/scrapedash.log",
			Level: "info",
		},
	}
}

// Load reads configuration from file. A missing file is not an error:
// defaults are returned so the dashboard works against a local service
// with no setup. The SCRAPEDASH_API_URL environment variable overrides
// the file value either way.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// fall through to defaults
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = Default().API.BaseURL
	}
	if cfg.Log.File == "" {
		cfg.Log.File = Default().Log.File
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = Default().Log.Level
	}

	if url := os.Getenv(EnvAPIURL); url != "" {
		cfg.API.BaseURL = url
	}

	cfg.Log.File = expandPath(cfg.Log.File)

	return cfg, nil
}

// Save writes configuration to file
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "scrapedash", "config.yaml")
}
