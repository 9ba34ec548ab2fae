// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/osa030/sagaplayer/internal/domain/catalog"
	"github.com/osa030/sagaplayer/internal/domain/track"
)

// Config represents the application configuration.
type Config struct {
	Log     LogConfig               `yaml:"log"`
	Audio   AudioConfig             `yaml:"audio"`
	Catalog CatalogConfig           `yaml:"catalog"`
	Filters map[string]FilterConfig `yaml:"filters"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Output     string `yaml:"output" default:"stderr" validate:"oneof=stdout stderr file"`
	File       string `yaml:"file" validate:"required_if=Output file"`
	MaxSizeMB  int    `yaml:"max_size_mb" default:"10" validate:"gte=1"`
	MaxBackups int    `yaml:"max_backups" default:"3" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" default:"28" validate:"gte=0"`
	Compress   bool   `yaml:"compress"`
}

// AudioConfig represents audio backend configuration.
// Settings are decoded by the selected backend.
type AudioConfig struct {
	Backend  string         `yaml:"backend" default:"speaker" validate:"oneof=speaker silent"`
	Settings map[string]any `yaml:"settings"`
}

// CatalogConfig represents the saga catalog shown in the menu.
type CatalogConfig struct {
	Title    string       `yaml:"title" default:"Epic Music Player"`
	Subtitle string       `yaml:"subtitle"`
	MusicDir string       `yaml:"music_dir"`
	Watch    bool         `yaml:"watch"`
	Sagas    []SagaConfig `yaml:"sagas" validate:"required,min=1,dive"`
}

// FilterConfig represents the configuration of one add filter.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// SagaConfig represents a single saga. Tracks may be empty.
type SagaConfig struct {
	Name   string   `yaml:"name" validate:"required"`
	Tracks []string `yaml:"tracks"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	// Relative music directories are relative to the config file
	if cfg.Catalog.MusicDir != "" && !filepath.IsAbs(cfg.Catalog.MusicDir) {
		cfg.Catalog.MusicDir = filepath.Join(filepath.Dir(path), cfg.Catalog.MusicDir)
	}

	return &cfg, nil
}

// LoadCatalog loads the configuration file and builds its catalog.
func LoadCatalog(path string) (*catalog.Catalog, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return cfg.Catalog.Build(), nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SAGAPLAYER_MUSIC_DIR"); v != "" {
		c.Catalog.MusicDir = v
	}
	if v := os.Getenv("SAGAPLAYER_AUDIO_BACKEND"); v != "" {
		c.Audio.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("SAGAPLAYER_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	seen := make(map[string]bool, len(c.Catalog.Sagas))
	for _, s := range c.Catalog.Sagas {
		if seen[s.Name] {
			return errors.Newf("duplicate saga name: %s", s.Name)
		}
		seen[s.Name] = true
	}

	return nil
}

// Build converts the catalog configuration into the domain catalog.
// Relative track paths are resolved against MusicDir.
func (c *CatalogConfig) Build() *catalog.Catalog {
	sagas := make([]catalog.Saga, 0, len(c.Sagas))
	for _, s := range c.Sagas {
		tracks := make([]track.Track, 0, len(s.Tracks))
		for _, p := range s.Tracks {
			tracks = append(tracks, track.New(c.Resolve(p)))
		}
		sagas = append(sagas, catalog.Saga{Name: s.Name, Tracks: tracks})
	}

	return &catalog.Catalog{
		Title:    c.Title,
		Subtitle: c.Subtitle,
		Sagas:    sagas,
	}
}

// Resolve joins a relative track path with MusicDir.
func (c *CatalogConfig) Resolve(p string) string {
	if c.MusicDir == "" || filepath.IsAbs(p) || strings.Contains(p, "://") {
		return p
	}
	return filepath.Join(c.MusicDir, filepath.FromSlash(p))
}
