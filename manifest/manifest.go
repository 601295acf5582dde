// Package manifest handles corvus.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/corvus/sema"
)

// Manifest represents a corvus.toml project configuration.
type Manifest struct {
	Project      Project               `toml:"project"`
	Source       Source                `toml:"source"`
	Dependencies map[string]Dependency `toml:"dependencies"`
	Pickle       PickleConfig          `toml:"pickle"`
	Engine       EngineConfig          `toml:"engine"`

	// Dir is the directory containing the corvus.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata. Namespace is the package path the
// project's own definitions live under, e.g. "geo" or "acme.geo".
type Project struct {
	Name      string `toml:"name"`
	Namespace string `toml:"namespace"`
	Version   string `toml:"version"`
}

// Source configures where definitions come from: source directories for a
// front end, and host packages mirrored into the world by import path.
type Source struct {
	Dirs  []string `toml:"dirs"`
	Hosts []string `toml:"hosts"`
}

// Dependency represents a single project dependency: either another corvus
// project by directory (path) or a prebuilt symbol pickle (pickle).
type Dependency struct {
	Path      string `toml:"path"`
	Pickle    string `toml:"pickle"`
	Namespace string `toml:"namespace"`
}

// PickleConfig configures symbol-pickle output.
type PickleConfig struct {
	Output string `toml:"output"`
}

// EngineConfig tunes the semantic engine.
type EngineConfig struct {
	MemberCacheSize int `toml:"member-cache-size"`
	Verbosity       int `toml:"verbosity"`
}

// Load parses a corvus.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "corvus.toml")
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

	// Defaults
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"src"}
	}
	if m.Pickle.Output == "" {
		if m.Project.Name != "" {
			m.Pickle.Output = m.Project.Name + ".cvp"
		} else {
			m.Pickle.Output = "corvus.cvp"
		}
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a corvus.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "corvus.toml")
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

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// PickleOutputPath returns the absolute path the project's pickle is
// written to.
func (m *Manifest) PickleOutputPath() string {
	if filepath.IsAbs(m.Pickle.Output) {
		return m.Pickle.Output
	}
	return filepath.Join(m.Dir, m.Pickle.Output)
}

// EngineSettings converts the [engine] section into engine settings.
// Zero values defer to the engine's own defaults.
func (m *Manifest) EngineSettings() sema.Settings {
	return sema.Settings{MemberCacheSize: m.Engine.MemberCacheSize}
}

// LockFilePath returns the path to .corvus/lock.toml.
func (m *Manifest) LockFilePath() string {
	return filepath.Join(m.Dir, ".corvus", "lock.toml")
}
