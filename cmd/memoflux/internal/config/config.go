// Package config loads the memoflux server configuration.
//
// The file lives at os.UserConfigDir()/memoflux/config.yaml unless a path is
// given explicitly. $VAR and ${VAR} references are expanded before parsing.
//
//	listen: ":8000"
//	models_dir: ./models
//	generators:
//	  schedule: openai/gpt-4o-mini
//	  knowledge: openai/gpt-4o-mini
//	  information: gemini/flash
//	store: ./data        # or "memory"
//	auth:
//	  required: true     # false opens /aigen* to anonymous callers
//	  token_ttl: 1h
//	enrich:
//	  api_key: $JINA_API_KEY
//	objects:
//	  bucket: memoflux
//	jobs:
//	  workers: 4
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/MemoFlux/MemoFluxServer/pkg/aigen"
	"github.com/MemoFlux/MemoFluxServer/pkg/jobs"
	"github.com/MemoFlux/MemoFluxServer/pkg/objects"
)

const (
	appDir     = "memoflux"
	configFile = "config.yaml"

	// StoreMemory selects the in-memory kv store.
	StoreMemory = "memory"
)

type Config struct {
	// Path is the file the config was read from; empty for defaults.
	Path string `yaml:"-"`

	Listen     string           `yaml:"listen"`
	ModelsDir  string           `yaml:"models_dir"`
	Generators aigen.Generators `yaml:"generators"`

	// Store is a badger directory or "memory".
	Store string `yaml:"store"`

	Auth    Auth            `yaml:"auth"`
	Enrich  *Enrich         `yaml:"enrich"`
	Objects *objects.Config `yaml:"objects"`
	Jobs    jobs.Config     `yaml:"jobs"`
}

type Auth struct {
	Required        bool          `yaml:"required"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

type Enrich struct {
	APIKey    string  `yaml:"api_key"`
	BaseURL   string  `yaml:"base_url"`
	Model     string  `yaml:"model"`
	Task      string  `yaml:"task"`
	Dimension int     `yaml:"dimension"`
	TopK      int     `yaml:"top_k"`
	MinScore  float32 `yaml:"min_score"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Listen:    ":8000",
		ModelsDir: "models",
		Store:     StoreMemory,
		Auth: Auth{
			Required:        true,
			TokenTTL:        time.Hour,
			CleanupInterval: time.Minute,
		},
	}
}

// DefaultPath returns os.UserConfigDir()/memoflux/config.yaml.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appDir, configFile), nil
}

// Load reads path, or the default path when path is empty. A missing default
// file yields Default(); a missing explicit file is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	if cfg.ModelsDir != "" && !filepath.IsAbs(cfg.ModelsDir) {
		cfg.ModelsDir = filepath.Join(filepath.Dir(path), cfg.ModelsDir)
	}
	if cfg.Store != StoreMemory && cfg.Store != "" && !filepath.IsAbs(cfg.Store) {
		cfg.Store = filepath.Join(filepath.Dir(path), cfg.Store)
	}
	return cfg, nil
}

// Parse expands environment references in data and decodes it over
// Default().
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Store == "" {
		cfg.Store = StoreMemory
	}
	return cfg, nil
}
