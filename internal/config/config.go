// Package config loads the bsengine YAML configuration.
//
// A file only needs the keys it changes; everything else keeps the value
// from Default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/yourusername/bsengine/internal/logging"
	"github.com/yourusername/bsengine/pkg/game"
)

// Config is the complete configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Pool     PoolConfig     `yaml:"pool"`
	Store    StoreConfig    `yaml:"store"`
	Log      logging.Config `yaml:"log"`
	External ExternalConfig `yaml:"external"`
	Game     game.FleetSpec `yaml:"game"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port" validate:"gte=0,lte=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" validate:"gte=0"`
}

// PoolConfig bounds concurrent request work.
type PoolConfig struct {
	MaxFastWorkers int `yaml:"max_fast_workers" validate:"gt=0"`
	MaxSlowWorkers int `yaml:"max_slow_workers" validate:"gt=0"`
}

// StoreConfig configures session persistence.
type StoreConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Path       string        `yaml:"path" validate:"required_if=Enabled true InMemory false"`
	InMemory   bool          `yaml:"in_memory"`
	SyncWrites bool          `yaml:"sync_writes"`
	GCInterval time.Duration `yaml:"gc_interval" validate:"gte=0"`
}

// ExternalConfig configures the line protocol listener.
type ExternalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port" validate:"gte=0,lte=65535"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:         "localhost",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Pool: PoolConfig{
			MaxFastWorkers: 100,
			MaxSlowWorkers: 4,
		},
		Store: StoreConfig{
			Path:       "bsengine-data",
			SyncWrites: true,
			GCInterval: 5 * time.Minute,
		},
		Log: logging.Config{
			Level:  "info",
			Format: "text",
		},
		External: ExternalConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    8081,
		},
		Game: game.StandardFleetSpec(),
	}
}

var validate = validator.New()

// Validate checks field constraints and that the default fleet builds.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Game.Build(); err != nil {
		return fmt.Errorf("invalid config: game: %w", err)
	}
	return nil
}

// Parse reads YAML over the defaults and validates the result.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()

	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the file at path. An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Parse(f)
}
