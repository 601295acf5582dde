package manifest

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// LockFile records what the last dependency resolution produced. Where a
// source package manager would pin a commit, a corvus dependency is pinned
// by the content hash of its pickle.
type LockFile struct {
	Deps []LockedDep `toml:"deps"`
}

// LockedDep is one resolved dependency as recorded in the lock file.
type LockedDep struct {
	Name      string `toml:"name"`
	Path      string `toml:"path,omitempty"`
	Pickle    string `toml:"pickle,omitempty"`
	Namespace string `toml:"namespace"`
	Hash      string `toml:"hash,omitempty"`
}

// ReadLock reads a lock file. A missing file is not an error; it returns
// nil, nil so first-time resolution proceeds without a lock.
func ReadLock(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var lf LockFile
	if err := toml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return &lf, nil
}

// WriteLock writes a lock file.
func WriteLock(path string, lf *LockFile) error {
	data, err := toml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("encoding lock file: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// FindLockedDep returns the locked entry for name, or nil.
func (lf *LockFile) FindLockedDep(name string) *LockedDep {
	if lf == nil {
		return nil
	}
	for i := range lf.Deps {
		if lf.Deps[i].Name == name {
			return &lf.Deps[i]
		}
	}
	return nil
}
