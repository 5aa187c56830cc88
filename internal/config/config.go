// Package config loads cozoq settings from an optional YAML file and
// COZOQ_* environment variables. Environment values override the file;
// the file overrides defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config aggregates application configuration values.
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Journal JournalConfig `yaml:"journal"`
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig selects the engine backend sessions open.
type EngineConfig struct {
	Kind    string         `yaml:"kind"` // mem|sqlite|rocksdb
	Path    string         `yaml:"path"`
	Options map[string]any `yaml:"options"`
}

// JournalConfig locates the script journal.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"` // text|json
	IncludeCaller bool   `yaml:"include_caller"`
}

const (
	defaultEngineKind    = "mem"
	defaultJournalPath   = "cozoq-journal.db"
	defaultLoggingLevel  = "info"
	defaultLoggingFormat = "text"

	envPrefix = "COZOQ_"
)

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Engine:  EngineConfig{Kind: defaultEngineKind},
		Journal: JournalConfig{Path: defaultJournalPath},
		Logging: LoggingConfig{Level: defaultLoggingLevel, Format: defaultLoggingFormat},
	}
}

// Load reads path (skipped when empty; a missing file is an error) and then
// applies environment overrides from the process environment.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, getenv func(string) string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config file not found: %s", path)
		}
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	env := envReader{getenv: getenv}
	cfg.Engine.Kind = env.valueOrDefault("ENGINE", cfg.Engine.Kind)
	cfg.Engine.Path = env.valueOrDefault("ENGINE_PATH", cfg.Engine.Path)
	cfg.Journal.Path = env.valueOrDefault("JOURNAL", cfg.Journal.Path)
	cfg.Logging.Level = env.valueOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = env.valueOrDefault("LOG_FORMAT", cfg.Logging.Format)

	var err error
	if cfg.Logging.IncludeCaller, err = env.parseBool("LOG_INCLUDE_CALLER", cfg.Logging.IncludeCaller); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated values and required combinations.
func (c Config) Validate() error {
	switch strings.ToLower(c.Engine.Kind) {
	case "mem", "":
	case "sqlite", "rocksdb":
		if c.Engine.Path == "" {
			return fmt.Errorf("engine kind %q requires engine.path", c.Engine.Kind)
		}
	default:
		return fmt.Errorf("invalid engine kind %q (mem, sqlite or rocksdb)", c.Engine.Kind)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging format %q (text or json)", c.Logging.Format)
	}
	return nil
}

type envReader struct {
	getenv func(string) string
}

func (e envReader) valueOrDefault(key, fallback string) string {
	if v := e.getenv(envPrefix + key); v != "" {
		return v
	}
	return fallback
}

func (e envReader) parseBool(key string, fallback bool) (bool, error) {
	v := e.getenv(envPrefix + key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s%s value %q: %w", envPrefix, key, v, err)
	}
	return b, nil
}
