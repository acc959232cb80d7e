// Package config loads process-level settings from PHISAVE_* environment
// variables and builds the logger they describe.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	env "github.com/caarlos0/env/v11"
	"github.com/twinfer/phisave/pkg/bitstream"
)

const envPrefix = "PHISAVE_"

// Config holds the settings of an embedded codec library.
type Config struct {
	Logger       LoggerConfig `json:"logger"        envPrefix:"LOG_"`
	StringPolicy string       `json:"string_policy" env:"STRING_POLICY" envDefault:"strict"` // strict|lossy
}

type LoggerConfig struct {
	Level  string `json:"level"  env:"LEVEL"  envDefault:"warn"` // debug|info|warn|error
	Format string `json:"format" env:"FORMAT" envDefault:"text"` // text|json
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return load(env.Options{Prefix: envPrefix})
}

// LoadFrom reads the configuration from environ instead of the process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return load(env.Options{Prefix: envPrefix, Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown levels, formats and string policies.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.Logger.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Logger.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format '%s'", c.Logger.Format)
	}
	if _, err := bitstream.ParseStringPolicy(c.StringPolicy); err != nil {
		return err
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level '%s'", s)
}

func (c *Config) LogLevel() slog.Level {
	lvl, err := parseLevel(c.Logger.Level)
	if err != nil {
		return slog.LevelWarn
	}
	return lvl
}

// Strings returns the configured string policy, strict when unset or invalid.
func (c *Config) Strings() bitstream.StringPolicy {
	p, err := bitstream.ParseStringPolicy(c.StringPolicy)
	if err != nil {
		return bitstream.Strict
	}
	return p
}

// NewLogger builds a slog logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel()}
	if strings.EqualFold(c.Logger.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
