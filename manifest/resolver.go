package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("corvus.manifest")

// ResolvedDep represents a dependency resolved to a pickle on disk.
type ResolvedDep struct {
	Name       string    // dependency name
	PicklePath string    // absolute path to the dependency's pickle
	Namespace  string    // package path the dependency's world lives under
	Manifest   *Manifest // the dependency's own manifest (nil for bare pickles)
}

// Resolver manages dependency resolution.
type Resolver struct {
	manifest *Manifest
	lock     *LockFile
}

// NewResolver creates a new dependency resolver.
func NewResolver(m *Manifest) *Resolver {
	return &Resolver{manifest: m}
}

// Resolve resolves all dependencies and returns them in load order
// (topologically sorted: dependencies before dependents).
func (r *Resolver) Resolve() ([]ResolvedDep, error) {
	// Read existing lock file
	lock, err := ReadLock(r.manifest.LockFilePath())
	if err != nil {
		return nil, fmt.Errorf("reading lock file: %w", err)
	}
	r.lock = lock

	// Resolve each direct dependency
	resolved := make(map[string]*ResolvedDep)
	order, err := r.resolveAll(r.manifest, r.manifest.Dependencies, resolved)
	if err != nil {
		return nil, err
	}

	// Write updated lock file
	if err := r.writeLock(resolved); err != nil {
		return nil, fmt.Errorf("writing lock file: %w", err)
	}

	return order, nil
}

// resolveAll resolves a set of dependencies recursively.
// Returns dependencies in topological order (deps before dependents).
func (r *Resolver) resolveAll(owner *Manifest, deps map[string]Dependency, resolved map[string]*ResolvedDep) ([]ResolvedDep, error) {
	var order []ResolvedDep

	for name, dep := range deps {
		if _, ok := resolved[name]; ok {
			continue // already resolved
		}

		rd, err := r.resolveOne(owner, name, dep)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", name, err)
		}

		resolved[name] = rd

		// Check for transitive dependencies
		if rd.Manifest != nil && len(rd.Manifest.Dependencies) > 0 {
			transitive, err := r.resolveAll(rd.Manifest, rd.Manifest.Dependencies, resolved)
			if err != nil {
				return nil, err
			}
			order = append(order, transitive...)
		}

		order = append(order, *rd)
	}

	return order, nil
}

// resolveNamespace determines the effective namespace for a dependency using
// the three-level resolution order:
//  1. Consumer override (dep.Namespace from TOML)
//  2. Producer manifest (depManifest.Project.Namespace)
//  3. Lower-case fallback (ToPackageName(name))
func resolveNamespace(name string, dep Dependency, depManifest *Manifest) (string, error) {
	var ns string
	switch {
	case dep.Namespace != "":
		ns = dep.Namespace
	case depManifest != nil && depManifest.Project.Namespace != "":
		ns = depManifest.Project.Namespace
	default:
		ns = ToPackageName(name)
	}

	if ns == "" {
		return "", fmt.Errorf("dependency %q has no usable namespace; add namespace = \"...\" in [dependencies]", name)
	}
	if IsReservedNamespace(ns) {
		return "", fmt.Errorf("dependency %q resolves to reserved namespace %q (a package the engine populates); add namespace = \"...\" override in [dependencies]", name, ns)
	}

	return ns, nil
}

// resolveOne resolves a single dependency declared in owner's manifest.
func (r *Resolver) resolveOne(owner *Manifest, name string, dep Dependency) (*ResolvedDep, error) {
	if dep.Path != "" {
		// Another corvus project by directory
		localPath := dep.Path
		if !filepath.IsAbs(localPath) {
			localPath = filepath.Join(owner.Dir, localPath)
		}

		localPath, err := filepath.Abs(localPath)
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", dep.Path, err)
		}

		if _, err := os.Stat(localPath); err != nil {
			return nil, fmt.Errorf("local dependency %q not found at %s: %w", name, localPath, err)
		}

		depManifest, err := Load(localPath)
		if err != nil {
			return nil, fmt.Errorf("local dependency %q has no loadable corvus.toml: %w", name, err)
		}

		ns, err := resolveNamespace(name, dep, depManifest)
		if err != nil {
			return nil, err
		}

		picklePath := depManifest.PickleOutputPath()
		if _, err := os.Stat(picklePath); err != nil {
			// Not an error yet: the dependency may simply not be built.
			// Loading it later will fail with a clear message.
			log.Debugf("dependency %s is not built (%s missing)", name, picklePath)
		}

		return &ResolvedDep{
			Name:       name,
			PicklePath: picklePath,
			Namespace:  ns,
			Manifest:   depManifest,
		}, nil
	}

	if dep.Pickle != "" {
		// A bare pickle artifact
		picklePath := dep.Pickle
		if !filepath.IsAbs(picklePath) {
			picklePath = filepath.Join(owner.Dir, picklePath)
		}

		picklePath, err := filepath.Abs(picklePath)
		if err != nil {
			return nil, fmt.Errorf("invalid pickle path %q: %w", dep.Pickle, err)
		}

		if _, err := os.Stat(picklePath); err != nil {
			return nil, fmt.Errorf("pickle dependency %q not found at %s: %w", name, picklePath, err)
		}

		ns, err := resolveNamespace(name, dep, nil)
		if err != nil {
			return nil, err
		}

		return &ResolvedDep{
			Name:       name,
			PicklePath: picklePath,
			Namespace:  ns,
		}, nil
	}

	return nil, fmt.Errorf("dependency %q has no path or pickle specified", name)
}

// writeLock writes the resolved dependencies to the lock file.
func (r *Resolver) writeLock(resolved map[string]*ResolvedDep) error {
	lf := &LockFile{}

	for _, rd := range resolved {
		ld := LockedDep{
			Name:      rd.Name,
			Namespace: rd.Namespace,
		}

		dep := r.manifest.Dependencies[rd.Name]
		ld.Path = dep.Path
		ld.Pickle = dep.Pickle
		ld.Hash = hashFile(rd.PicklePath)

		if old := r.lock.FindLockedDep(rd.Name); old != nil &&
			old.Hash != "" && ld.Hash != "" && old.Hash != ld.Hash {
			log.Infof("dependency %s changed since last resolve", rd.Name)
		}

		lf.Deps = append(lf.Deps, ld)
	}

	// Ensure directory exists
	lockDir := filepath.Dir(r.manifest.LockFilePath())
	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return err
	}

	return WriteLock(r.manifest.LockFilePath(), lf)
}

// hashFile returns the hex SHA-256 of a file's contents, or "" if the
// file cannot be read (an unbuilt dependency has no hash to pin).
func hashFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
