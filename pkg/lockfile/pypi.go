package lockfile

import (
	"bufio"
	"os"
	"strings"
)

// PyPIParser reads requirements.txt. Only pinned or lower-bounded
// requirements carry a usable version; bare names come back unversioned and
// are filtered out before querying.
type PyPIParser struct{}

func (p *PyPIParser) Ecosystem() string { return "PyPI" }

var requirementOps = []string{"==", ">=", "<=", "~=", "!=", ">", "<"}

func (p *PyPIParser) Parse(path string) ([]Dependency, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var deps []Dependency
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			// Comments and pip directives like -r / --index-url.
			continue
		}
		name, version := splitRequirement(line)
		if name == "" {
			continue
		}
		deps = append(deps, Dependency{Name: name, Version: version, Ecosystem: "PyPI"})
	}
	return deps, sc.Err()
}

func splitRequirement(line string) (name, version string) {
	// Environment markers follow a semicolon.
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)

	for _, op := range requirementOps {
		i := strings.Index(line, op)
		if i < 0 {
			continue
		}
		name = strings.TrimSpace(line[:i])
		version = strings.TrimSpace(line[i+len(op):])
		// Compound constraints keep only the first bound.
		if j := strings.IndexByte(version, ','); j >= 0 {
			version = strings.TrimSpace(version[:j])
		}
		return name, version
	}
	return line, ""
}
