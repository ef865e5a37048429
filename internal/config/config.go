// Package config loads kernelfuzz.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const FileName = "kernelfuzz.toml"

// MaxInputLimit caps [fuzz].max_input.
const MaxInputLimit = 1 << 24

type Config struct {
	// Path of the loaded file; empty for defaults.
	Path string `toml:"-"`
	// Root is the directory relative paths are resolved against.
	Root string `toml:"-"`

	Prelude PreludeConfig `toml:"prelude"`
	Fuzz    FuzzConfig    `toml:"fuzz"`
	Cache   CacheConfig   `toml:"cache"`
}

type PreludeConfig struct {
	Path        string `toml:"path"`
	AllowAxioms bool   `toml:"allow_axioms"`
}

type FuzzConfig struct {
	Strings     string `toml:"strings"`
	Corpus      string `toml:"corpus"`
	MaxInput    int    `toml:"max_input"`
	ProbeFalse  bool   `toml:"probe_false"`
	Jobs        int    `toml:"jobs"`
	MaxMemoryMB int    `toml:"max_memory_mb"`
}

type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// Default is the configuration used when no file is found.
func Default() *Config {
	return &Config{
		Root:    ".",
		Prelude: PreludeConfig{AllowAxioms: true},
		Fuzz:    FuzzConfig{MaxInput: 1 << 16, ProbeFalse: true},
		Cache:   CacheConfig{Enabled: true},
	}
}

// Find walks up from startDir looking for kernelfuzz.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover loads the nearest kernelfuzz.toml above startDir, or the defaults
// when there is none. The bool reports whether a file was found.
func Discover(startDir string) (*Config, bool, error) {
	path, ok, err := Find(startDir)
	if err != nil || !ok {
		return Default(), false, err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}

// Load decodes path over the defaults. Keys the file leaves out keep their
// default values; unknown keys are an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("prelude") && (!meta.IsDefined("prelude", "path") || strings.TrimSpace(cfg.Prelude.Path) == "") {
		return nil, fmt.Errorf("%s: missing [prelude].path", path)
	}
	cfg.Path = path
	cfg.Root = filepath.Dir(path)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Fuzz.MaxInput <= 0 || c.Fuzz.MaxInput > MaxInputLimit:
		return fmt.Errorf("[fuzz].max_input must be in 1..%d, got %d", MaxInputLimit, c.Fuzz.MaxInput)
	case c.Fuzz.Jobs < 0:
		return fmt.Errorf("[fuzz].jobs must not be negative, got %d", c.Fuzz.Jobs)
	case c.Fuzz.MaxMemoryMB < 0:
		return fmt.Errorf("[fuzz].max_memory_mb must not be negative, got %d", c.Fuzz.MaxMemoryMB)
	}
	return nil
}

// Resolve makes p absolute relative to the config root. Empty stays empty.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, filepath.FromSlash(p))
}
