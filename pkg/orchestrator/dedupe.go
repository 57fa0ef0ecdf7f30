package orchestrator

import "github.com/repo-health-scanner/pkg/backend"

type dedupeKey struct {
	packageName    string
	packageVersion string
	id             string
}

func keyFor(v backend.Vulnerability) dedupeKey {
	id := v.ID
	if v.CVE != "" {
		id = v.CVE
	}
	return dedupeKey{packageName: v.PackageName, packageVersion: v.PackageVersion, id: id}
}

// Deduplicate collapses findings that describe the same vulnerability,
// keyed by (package, version, CVE) when a CVE is known and by (package,
// version, backend-native id) otherwise. Survivors keep the position of
// their first occurrence.
//
// On a collision the rules below are checked in order and only the FIRST
// matching rule is applied; when it fires, the incoming record replaces the
// kept one wholesale. An incoming duplicate carrying both a fixed-version
// and a summary the kept record lacks therefore contributes only via the
// fixed-version rule. This single-field-per-collision policy is deliberate:
// downstream consumers depend on it, so it must not be "fixed" into a full
// field-by-field merge.
//
//  1. incoming has a CVSS score, kept does not
//  2. incoming has a fixed-version, kept does not
//  3. incoming has a summary, kept does not
//  4. otherwise the first-seen record wins
func Deduplicate(vulns []backend.Vulnerability) []backend.Vulnerability {
	if len(vulns) == 0 {
		return nil
	}

	out := make([]backend.Vulnerability, 0, len(vulns))
	index := make(map[dedupeKey]int, len(vulns))

	for _, incoming := range vulns {
		key := keyFor(incoming)
		at, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, incoming)
			continue
		}

		kept := out[at]
		switch {
		case incoming.CVSSScore != nil && kept.CVSSScore == nil:
			out[at] = incoming
		case incoming.FixedVersion != "" && kept.FixedVersion == "":
			out[at] = incoming
		case incoming.Summary != "" && kept.Summary == "":
			out[at] = incoming
		}
	}

	return out
}
