package lockfile

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// NPMParser reads package-lock.json, covering both the v2+ "packages" map
// and the legacy "dependencies" map.
type NPMParser struct{}

func (p *NPMParser) Ecosystem() string { return "npm" }

func (p *NPMParser) Parse(path string) ([]Dependency, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var lock struct {
		Packages map[string]struct {
			Version string `json:"version"`
		} `json:"packages"`
		Dependencies map[string]struct {
			Version string `json:"version"`
		} `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	seen := make(map[string]bool)
	var deps []Dependency
	add := func(name, version string) {
		key := name + "@" + version
		if name == "" || seen[key] {
			return
		}
		seen[key] = true
		deps = append(deps, Dependency{Name: name, Version: version, Ecosystem: "npm"})
	}

	for key, entry := range lock.Packages {
		if key == "" {
			// The root project itself.
			continue
		}
		add(npmNameFromKey(key), entry.Version)
	}
	for name, entry := range lock.Dependencies {
		add(name, entry.Version)
	}
	return deps, nil
}

// npmNameFromKey strips the node_modules path prefix from a v2+ packages
// key. Nested installs repeat the prefix, so keep everything after the last
// one ("node_modules/a/node_modules/@scope/b" is "@scope/b").
func npmNameFromKey(key string) string {
	const marker = "node_modules/"
	if i := strings.LastIndex(key, marker); i >= 0 {
		return key[i+len(marker):]
	}
	return key
}
