// Package config loads the per-project .declgraph.yaml file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/DeusData/declgraph/internal/lang"
)

// FileName is the config file looked up in the project root.
const FileName = ".declgraph.yaml"

// Config holds user-overridable analysis settings.
type Config struct {
	// Builtins are added to (not replacing) the language's built-in type allowlist.
	Builtins []string `yaml:"builtins"`

	// Exclude are doublestar globs, relative to the project root, of files
	// and directories to skip during discovery.
	Exclude []string `yaml:"exclude"`

	// Workers bounds parallel file analysis. Default: runtime.NumCPU().
	Workers *int `yaml:"workers"`

	// TolerateSyntaxErrors extracts from files with error regions.
	// Default: false.
	TolerateSyntaxErrors *bool `yaml:"tolerate_syntax_errors"`

	TestPatterns TestPatterns `yaml:"test_patterns"`
	Store        StoreConfig  `yaml:"store"`
}

// TestPatterns override the language's test-file conventions. An empty
// list keeps the default for that half.
type TestPatterns struct {
	Suffixes []string `yaml:"suffixes"`
	Dirs     []string `yaml:"dirs"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{}
}

// Load reads FileName from dir. A missing file yields the defaults; an
// unreadable or invalid file is an error.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile reads the config at path. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Workers != nil && *cfg.Workers < 0 {
		return nil, fmt.Errorf("config: %s: workers must not be negative, got %d", path, *cfg.Workers)
	}
	return cfg, nil
}

// EffectiveWorkers returns the configured worker count, or runtime.NumCPU()
// if unset or zero.
func (c *Config) EffectiveWorkers() int {
	if c.Workers != nil && *c.Workers > 0 {
		return *c.Workers
	}
	return runtime.NumCPU()
}

// EffectiveTolerateSyntaxErrors returns the configured setting, or false.
func (c *Config) EffectiveTolerateSyntaxErrors() bool {
	if c.TolerateSyntaxErrors != nil {
		return *c.TolerateSyntaxErrors
	}
	return false
}

// AllBuiltins returns the language's built-in allowlist followed by the
// user-configured extras.
func (c *Config) AllBuiltins(language lang.Language) []string {
	var defaults []string
	if spec := lang.ForLanguage(language); spec != nil {
		defaults = spec.BuiltinTypes
	}
	combined := make([]string, 0, len(defaults)+len(c.Builtins))
	combined = append(combined, defaults...)
	combined = append(combined, c.Builtins...)
	return combined
}

// EffectiveTestPatterns returns the test-file suffixes and directories,
// falling back to the language defaults for any half left empty.
func (c *Config) EffectiveTestPatterns(language lang.Language) (suffixes, dirs []string) {
	suffixes, dirs = c.TestPatterns.Suffixes, c.TestPatterns.Dirs
	spec := lang.ForLanguage(language)
	if spec == nil {
		return suffixes, dirs
	}
	if len(suffixes) == 0 {
		suffixes = spec.TestFileSuffixes
	}
	if len(dirs) == 0 {
		dirs = spec.TestDirs
	}
	return suffixes, dirs
}

// EffectiveStorePath returns the configured database path resolved against
// root, or fallback when unset.
func (c *Config) EffectiveStorePath(root, fallback string) string {
	p := c.Store.Path
	if p == "" {
		return fallback
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	return p
}
