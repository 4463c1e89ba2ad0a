// Package config loads switchboard's runtime configuration from
// switchboard.yaml. Unknown fields are rejected; a missing file yields the
// defaults. SWITCHBOARD_DATA_DIR and SWITCHBOARD_LOG_LEVEL override the
// file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/switchboard/internal/memory"
	"github.com/HendryAvila/switchboard/internal/profiles"
	"github.com/HendryAvila/switchboard/internal/quality"
)

const (
	// FileName is the config file looked up in the data directory.
	FileName = "switchboard.yaml"

	EnvDataDir  = "SWITCHBOARD_DATA_DIR"
	EnvLogLevel = "SWITCHBOARD_LOG_LEVEL"

	defaultProfilesFile = "profiles.yaml"
	defaultRulesFile    = "rules.yaml"

	maxContextMemoryLimit = 10
)

var (
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats = map[string]bool{"json": true, "console": true}
)

// Config is the full runtime configuration.
type Config struct {
	DataDir string `yaml:"data_dir"`
	// ProfilesFile and RulesFile are resolved against DataDir when relative.
	ProfilesFile    string `yaml:"profiles_file"`
	RulesFile       string `yaml:"rules_file"`
	FallbackProfile string `yaml:"fallback_profile"`

	StorageTimeout     time.Duration `yaml:"storage_timeout"`
	QueryLimit         int           `yaml:"query_limit"`
	ContextMemoryLimit int           `yaml:"context_memory_limit"`
	ActivityCacheSize  int           `yaml:"activity_cache_size"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// MetricsAddr enables the Prometheus endpoint in serve when set.
	MetricsAddr string `yaml:"metrics_addr"`

	Quality QualityConfig `yaml:"quality"`
	Watch   WatchConfig   `yaml:"watch"`
}

// QualityConfig configures the quality gate.
type QualityConfig struct {
	Enabled     bool           `yaml:"enabled"`
	Concurrency int            `yaml:"concurrency"`
	Tools       []quality.Tool `yaml:"tools"`
}

// WatchConfig configures the file activity watcher.
type WatchConfig struct {
	Root     string        `yaml:"root"`
	Exclude  []string      `yaml:"exclude"`
	Debounce time.Duration `yaml:"debounce"`
	Profile  string        `yaml:"profile"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	mem := memory.DefaultConfig()
	return Config{
		DataDir:            mem.DataDir,
		ProfilesFile:       defaultProfilesFile,
		RulesFile:          defaultRulesFile,
		FallbackProfile:    profiles.DefaultFallback,
		StorageTimeout:     mem.StorageTimeout,
		QueryLimit:         mem.QueryLimit,
		ContextMemoryLimit: 10,
		ActivityCacheSize:  mem.ActivityCacheSize,
		LogLevel:           "info",
		LogFormat:          "json",
		Quality: QualityConfig{
			Enabled:     true,
			Concurrency: 4,
			Tools:       quality.DefaultTools(),
		},
		Watch: WatchConfig{
			Root:     ".",
			Debounce: 500 * time.Millisecond,
		},
	}
}

// DefaultPath returns switchboard.yaml inside the data directory, honouring
// SWITCHBOARD_DATA_DIR.
func DefaultPath() string {
	dir := DefaultConfig().DataDir
	if env := os.Getenv(EnvDataDir); env != "" {
		dir = env
	}
	return filepath.Join(dir, FileName)
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := decodeStrict(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		c.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
}

// Validate checks every field and reports the first problem found.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.DataDir) == "":
		return fmt.Errorf("config: data_dir is required")
	case c.StorageTimeout <= 0:
		return fmt.Errorf("config: storage_timeout must be positive, got %s", c.StorageTimeout)
	case c.QueryLimit <= 0:
		return fmt.Errorf("config: query_limit must be positive, got %d", c.QueryLimit)
	case c.ContextMemoryLimit <= 0 || c.ContextMemoryLimit > maxContextMemoryLimit:
		return fmt.Errorf("config: context_memory_limit must be between 1 and %d, got %d", maxContextMemoryLimit, c.ContextMemoryLimit)
	case c.ActivityCacheSize <= 0:
		return fmt.Errorf("config: activity_cache_size must be positive, got %d", c.ActivityCacheSize)
	case !validLevels[c.LogLevel]:
		return fmt.Errorf("config: invalid log_level %q: must be one of: debug, info, warn, error", c.LogLevel)
	case !validFormats[c.LogFormat]:
		return fmt.Errorf("config: invalid log_format %q: must be json or console", c.LogFormat)
	case c.Watch.Debounce < 0:
		return fmt.Errorf("config: watch.debounce must not be negative")
	}
	for _, t := range c.Quality.Tools {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	for _, g := range c.Watch.Exclude {
		if !doublestar.ValidatePattern(g) {
			return fmt.Errorf("config: invalid watch.exclude glob %q", g)
		}
	}
	return nil
}

// ProfilePaths returns the registry file locations with relative paths
// resolved against the data directory.
func (c Config) ProfilePaths() profiles.Paths {
	return profiles.Paths{
		ProfilesFile: c.resolve(c.ProfilesFile),
		RulesFile:    c.resolve(c.RulesFile),
		Fallback:     c.FallbackProfile,
	}
}

// Memory returns the memory store configuration.
func (c Config) Memory() memory.Config {
	return memory.Config{
		DataDir:           c.DataDir,
		StorageTimeout:    c.StorageTimeout,
		QueryLimit:        c.QueryLimit,
		ActivityCacheSize: c.ActivityCacheSize,
	}
}

func (c Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// decodeStrict decodes a single YAML document, rejecting unknown fields.
func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return fmt.Errorf("multiple YAML documents are not supported")
	}
	return nil
}
