// Package config provides configuration loading and structs for the boutique client.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// EnvAPIURL overrides the backend base URL from the environment.
const EnvAPIURL = "BOUTIQUE_API_URL"

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	API     APIConfig     `yaml:"api"`
	Search  SearchConfig  `yaml:"search"`
	Watch   WatchConfig   `yaml:"watch"`
	Backend BackendConfig `yaml:"backend"`
}

// APIConfig locates the search backend. The request timeout is fixed by apiclient.DefaultTimeout.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
}

// SearchConfig holds per-surface search settings.
type SearchConfig struct {
	TopK   int    `yaml:"top_k"`
	Output string `yaml:"output"`
}

// WatchConfig holds drop-folder settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to false when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return false
}

// BackendConfig holds settings for the local development backend.
type BackendConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	CatalogPath string `yaml:"catalog_path"`
}

// Addr returns host:port.
func (b *BackendConfig) Addr() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

// Default returns the configuration used when no file is given: defaults plus environment.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	applyEnv(&cfg, os.Getenv)
	return &cfg
}

// Load reads and parses the config file at path, expands paths, applies defaults,
// then lets the environment override the API base URL.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}

	ApplyDefaults(&cfg)
	applyEnv(&cfg, os.Getenv)

	configDir := filepath.Dir(path)
	if cfg.Backend.CatalogPath != "" {
		cfg.Backend.CatalogPath = expandPath(cfg.Backend.CatalogPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvAPIURL)); v != "" {
		cfg.API.BaseURL = v
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
