// Package manifest handles dora.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/docker/go-units"

	"github.com/chazu/dora/pkg/asm"
)

// FileName is the name of the project configuration file.
const FileName = "dora.toml"

// Defaults applied to values the file leaves out.
const (
	DefaultArch      = "x64"
	DefaultWorkers   = 4
	DefaultCachePath = ".dora/cache.db"
	DefaultCacheSize = "64MB"
)

// Manifest represents a dora.toml project configuration.
type Manifest struct {
	Project  Project        `toml:"project"`
	Compiler CompilerConfig `toml:"compiler"`
	Cache    CacheConfig    `toml:"cache"`
	Log      LogConfig      `toml:"log"`

	// Dir is the directory containing the dora.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
}

// CompilerConfig selects the target and the amount of parallelism.
type CompilerConfig struct {
	Arch     string `toml:"arch"`
	Workers  int    `toml:"workers"`
	Baseline bool   `toml:"baseline"`
}

// CacheConfig locates the compiled-function cache.
type CacheConfig struct {
	Path    string `toml:"path"`
	MaxSize string `toml:"max-size"`
}

// LogConfig sets the log verbosity (0 quiet, higher is chattier).
type LogConfig struct {
	Verbosity int `toml:"verbosity"`
}

// Default returns the configuration used when no dora.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

// Load parses a dora.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a dora.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) applyDefaults() {
	if m.Compiler.Arch == "" {
		m.Compiler.Arch = DefaultArch
	}
	if m.Compiler.Workers <= 0 {
		m.Compiler.Workers = DefaultWorkers
	}
	if m.Cache.Path == "" {
		m.Cache.Path = DefaultCachePath
	}
	if m.Cache.MaxSize == "" {
		m.Cache.MaxSize = DefaultCacheSize
	}
}

func (m *Manifest) validate() error {
	if _, err := asm.ArchByName(m.Compiler.Arch); err != nil {
		return fmt.Errorf("[compiler] %w", err)
	}
	if _, err := m.MaxCacheBytes(); err != nil {
		return err
	}
	if m.Log.Verbosity < 0 {
		return fmt.Errorf("[log] verbosity must not be negative, got %d", m.Log.Verbosity)
	}
	return nil
}

// Arch returns the configured target architecture.
func (m *Manifest) Arch() *asm.Arch {
	a, err := asm.ArchByName(m.Compiler.Arch)
	if err != nil {
		panic(err)
	}
	return a
}

// MaxCacheBytes parses the cache size limit, e.g. "64MB" or "1GiB".
func (m *Manifest) MaxCacheBytes() (int64, error) {
	n, err := units.RAMInBytes(m.Cache.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("[cache] invalid max-size %q: %w", m.Cache.MaxSize, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("[cache] max-size must be positive, got %q", m.Cache.MaxSize)
	}
	return n, nil
}

// CachePath returns the cache database path, resolved against the
// project directory.
func (m *Manifest) CachePath() string {
	if filepath.IsAbs(m.Cache.Path) || m.Dir == "" {
		return m.Cache.Path
	}
	return filepath.Join(m.Dir, m.Cache.Path)
}
