// Package manifest handles slotvm.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/slotvm/pkg/mem"
)

// FileName is the name of the configuration file.
const FileName = "slotvm.toml"

// Manifest represents a slotvm.toml configuration.
type Manifest struct {
	Engine  Engine  `toml:"engine"`
	Log     Log     `toml:"log"`
	Journal Journal `toml:"journal"`

	// Dir is the directory containing the slotvm.toml file (set at load time).
	// Empty for the built-in defaults.
	Dir string `toml:"-"`
}

// Engine configures the arena and interpreter.
type Engine struct {
	ArenaLimit int  `toml:"arena-limit"`
	Trace      bool `toml:"trace"`
	Verify     bool `toml:"verify"`
}

// Log configures commonlog output.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Journal configures the run journal. An empty path disables it.
type Journal struct {
	Path string `toml:"path"`
}

// Default returns the configuration used when no slotvm.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Engine.ArenaLimit == 0 {
		m.Engine.ArenaLimit = mem.DefaultLimit
	}
}

// Load parses a slotvm.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses the configuration file at path.
func LoadFile(path string) (*Manifest, error) {
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
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if m.Engine.ArenaLimit < 0 {
		return nil, fmt.Errorf("invalid engine.arena-limit %d in %s", m.Engine.ArenaLimit, path)
	}

	m.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a slotvm.toml file,
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

// resolve makes a configured path absolute relative to the manifest's
// directory.
func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// JournalPath returns the journal database path, or "" when journaling is
// off.
func (m *Manifest) JournalPath() string {
	return m.resolve(m.Journal.Path)
}

// LogFile returns the log file path, or "" for stderr.
func (m *Manifest) LogFile() string {
	return m.resolve(m.Log.File)
}
