// Package manifest handles aiscript.toml project configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/aiscript/vm"
)

// FileName is the name of the project configuration file.
const FileName = "aiscript.toml"

// Manifest represents an aiscript.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	VM      VMSection   `toml:"vm"`
	GC      GCSection   `toml:"gc"`
	Cache   CacheConfig `toml:"cache"`
	Log     LogConfig   `toml:"log"`

	// Dir is the directory containing the aiscript.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"`
}

// VMSection overrides interpreter limits. Zero values keep the defaults.
type VMSection struct {
	MaxFrames           int `toml:"max_frames"`
	StackSize           int `toml:"stack_size"`
	CancelCheckInterval int `toml:"cancel_check_interval"`
}

// GCSection overrides collector pacing.
type GCSection struct {
	InitialThreshold int     `toml:"initial_threshold"`
	GrowthFactor     float64 `toml:"growth_factor"`
	Stress           bool    `toml:"stress"`
}

// CacheConfig configures the compiled program cache.
type CacheConfig struct {
	Path    string `toml:"path"`
	Enabled *bool  `toml:"enabled"`
}

// LogConfig configures logging for the aiscript binary.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Load parses an aiscript.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Project.Entry == "" {
		m.Project.Entry = "main.ais"
	}
	if m.Cache.Path == "" {
		m.Cache.Path = filepath.Join(".aiscript", "cache.db")
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	switch {
	case m.VM.MaxFrames < 0:
		return errors.New("vm.max_frames must not be negative")
	case m.VM.StackSize < 0:
		return errors.New("vm.stack_size must not be negative")
	case m.VM.CancelCheckInterval < 0:
		return errors.New("vm.cancel_check_interval must not be negative")
	case m.GC.InitialThreshold < 0:
		return errors.New("gc.initial_threshold must not be negative")
	case m.GC.GrowthFactor != 0 && m.GC.GrowthFactor <= 1:
		return errors.New("gc.growth_factor must be greater than 1")
	}
	return nil
}

// FindAndLoad walks up from startDir to find an aiscript.toml file,
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
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Write encodes m into dir/aiscript.toml, replacing any existing file.
func Write(dir string, m *Manifest) error {
	path := filepath.Join(dir, FileName)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	if err := toml.NewEncoder(f).Encode(m); err != nil {
		f.Close()
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return f.Close()
}

// VMConfig overlays the non-zero [vm] and [gc] settings on the VM defaults.
func (m *Manifest) VMConfig() vm.Config {
	cfg := vm.DefaultConfig()
	if m.VM.MaxFrames > 0 {
		cfg.MaxFrames = m.VM.MaxFrames
	}
	if m.VM.StackSize > 0 {
		cfg.StackSize = m.VM.StackSize
	}
	if m.VM.CancelCheckInterval > 0 {
		cfg.CancelCheckInterval = m.VM.CancelCheckInterval
	}
	if m.GC.InitialThreshold > 0 {
		cfg.GCInitialThreshold = m.GC.InitialThreshold
	}
	if m.GC.GrowthFactor > 0 {
		cfg.GCGrowthFactor = m.GC.GrowthFactor
	}
	cfg.GCStress = m.GC.Stress
	return cfg
}

// EntryPath returns the absolute path of the entry script.
func (m *Manifest) EntryPath() string {
	return m.resolve(m.Project.Entry)
}

// CacheEnabled reports whether the program cache should be used. The cache
// is on unless the manifest turns it off.
func (m *Manifest) CacheEnabled() bool {
	return m.Cache.Enabled == nil || *m.Cache.Enabled
}

// CachePath returns the absolute path of the program cache database.
func (m *Manifest) CachePath() string {
	return m.resolve(m.Cache.Path)
}

// LogPath returns the absolute log file path, or "" to log to stderr.
func (m *Manifest) LogPath() string {
	if m.Log.File == "" {
		return ""
	}
	return m.resolve(m.Log.File)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
