package lockfile

import (
	"bufio"
	"os"
	"strings"
)

// GoSumParser reads go.sum. Each module appears twice (tree hash and go.mod
// hash), so entries are collapsed by module and version.
type GoSumParser struct{}

func (p *GoSumParser) Ecosystem() string { return "Go" }

func (p *GoSumParser) Parse(path string) ([]Dependency, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	seen := make(map[string]bool)
	var deps []Dependency

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		module := fields[0]
		version := strings.TrimSuffix(fields[1], "/go.mod")

		key := module + "@" + version
		if seen[key] {
			continue
		}
		seen[key] = true
		deps = append(deps, Dependency{Name: module, Version: version, Ecosystem: "Go"})
	}
	return deps, sc.Err()
}
