// Package lockfile lists the pinned dependencies of a checked-out tree so
// API-driven backends know which packages to query. It reads lockfiles only;
// it does not resolve manifests or build a dependency graph.
package lockfile

import (
	"fmt"
	"path/filepath"
)

// Dependency is one pinned package as recorded in a lockfile.
type Dependency struct {
	Name      string
	Version   string
	Ecosystem string
}

// Parser reads one lockfile format.
type Parser interface {
	Parse(path string) ([]Dependency, error)
	Ecosystem() string
}

// ParserFor picks a parser by lockfile basename. Unrecognized files get an
// error; callers walking a tree skip those.
func ParserFor(path string) (Parser, error) {
	switch filepath.Base(path) {
	case "package-lock.json":
		return &NPMParser{}, nil
	case "requirements.txt":
		return &PyPIParser{}, nil
	case "go.sum":
		return &GoSumParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported lockfile %q", filepath.Base(path))
	}
}
