package lockfile

import (
	"io/fs"
	"path/filepath"

	"github.com/repo-health-scanner/pkg/backend"
)

// Directories that never hold a project's own lockfiles.
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"testdata":     true,
}

var lockfileNames = map[string]bool{
	"package-lock.json": true,
	"requirements.txt":  true,
	"go.sum":            true,
}

// Collect walks the tree and parses every recognized lockfile. A lockfile
// that fails to parse is skipped rather than failing the whole collection;
// the remaining files still describe most of the dependency surface.
func Collect(repoPath string) ([]Dependency, error) {
	var deps []Dependency
	err := filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !lockfileNames[d.Name()] {
			return nil
		}
		parser, err := ParserFor(path)
		if err != nil {
			return nil
		}
		parsed, err := parser.Parse(path)
		if err != nil {
			return nil
		}
		deps = append(deps, parsed...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deps, nil
}

// Packages adapts Collect to the shape the advisory backend consumes,
// dropping unversioned entries (they cannot be matched against advisories)
// and collapsing duplicates.
func Packages(repoPath string) ([]backend.Package, error) {
	deps, err := Collect(repoPath)
	if err != nil {
		return nil, err
	}

	seen := make(map[Dependency]bool, len(deps))
	packages := make([]backend.Package, 0, len(deps))
	for _, dep := range deps {
		if dep.Version == "" || seen[dep] {
			continue
		}
		seen[dep] = true
		packages = append(packages, backend.Package{
			Name:      dep.Name,
			Version:   dep.Version,
			Ecosystem: dep.Ecosystem,
		})
	}
	return packages, nil
}
