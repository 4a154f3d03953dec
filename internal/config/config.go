// Package config loads auditor settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sprite-ai/auditor/internal/pathfilter"
	"github.com/sprite-ai/auditor/internal/store"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DefaultPort     = 3000
	DefaultStore    = store.KindSQLite
	DefaultLogLevel = "info"
	DefaultDebounce = 250 * time.Millisecond
)

// DefaultExtensions are the file types tracked when none are configured.
var DefaultExtensions = []string{".go", ".c", ".cpp", ".h"}

// Config holds every runtime setting.
type Config struct {
	RepoPath          string        `yaml:"repo_path"`
	DBPath            string        `yaml:"db_path"`
	Port              int           `yaml:"port"`
	Store             store.Kind    `yaml:"store"`
	AllowedExtensions []string      `yaml:"allowed_extensions"`
	ExcludedPrefixes  []string      `yaml:"excluded_prefixes"`
	ExcludedGlobs     []string      `yaml:"excluded_globs"`
	LogLevel          string        `yaml:"log_level"`
	WatchDebounce     time.Duration `yaml:"watch_debounce"`
}

// Load reads the YAML file at path, if any, and applies environment
// overrides. A missing file is not an error when path is empty.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("REPO_PATH"); ok {
		c.RepoPath = v
	}
	if v, ok := lookup("DB_PATH"); ok {
		c.DBPath = v
	}
	if v, ok := lookup("PORT"); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: PORT %q", ErrInvalidConfig, v)
		}
		c.Port = port
	}
	if v, ok := lookup("STORE"); ok {
		c.Store = store.Kind(strings.ToLower(strings.TrimSpace(v)))
	}
	if v, ok := lookup("ALLOWED_EXTENSIONS"); ok {
		c.AllowedExtensions = splitList(v)
	}
	if v, ok := lookup("EXCLUDED_PREFIXES"); ok {
		c.ExcludedPrefixes = splitList(v)
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	return nil
}

// Build fills defaults and validates the result.
func (c Config) Build() (Config, error) {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Store == "" {
		c.Store = DefaultStore
	}
	if c.AllowedExtensions == nil {
		c.AllowedExtensions = DefaultExtensions
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.WatchDebounce == 0 {
		c.WatchDebounce = DefaultDebounce
	}

	if c.RepoPath == "" {
		return Config{}, fmt.Errorf("%w: repository path is required (REPO_PATH)", ErrInvalidConfig)
	}
	if c.DBPath == "" && c.Store != store.KindMemory {
		return Config{}, fmt.Errorf("%w: database path is required (DB_PATH)", ErrInvalidConfig)
	}
	if c.Port < 1 || c.Port > 65535 {
		return Config{}, fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	switch c.Store {
	case store.KindMemory, store.KindFile, store.KindSQLite:
	default:
		return Config{}, fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return Config{}, err
	}
	if err := c.Filter().Validate(); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return c, nil
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Filter returns the path filter described by the config.
func (c Config) Filter() pathfilter.Filter {
	return pathfilter.Filter{
		Extensions:       c.AllowedExtensions,
		ExcludedPrefixes: c.ExcludedPrefixes,
		ExcludedGlobs:    c.ExcludedGlobs,
	}
}

// NewLogger returns a text logger at the configured level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalidConfig, s)
	}
	return level, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
