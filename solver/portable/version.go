package portable

import (
	"strconv"
	"strings"

	"github.com/rattler-go/repodata-solver/query"
)

// compareVersions orders two conda-style version strings. It splits each
// on run boundaries between digits and non-digits ("1.2.0rc1" ->
// ["1",".","2",".","0","rc","1"]) and compares component by component,
// numerically when both sides parse as integers and lexically otherwise.
// This is not a full conda/PEP440 version comparator — it is deliberately
// the minimal ordering the portable backend's "pick newest first" and
// constraint checks need, grounded on the simplified version handling the
// pack's distillation left unspecified (spec.md §9 open question).
func compareVersions(a, b string) int {
	ca, cb := splitVersion(a), splitVersion(b)
	for i := 0; i < len(ca) || i < len(cb); i++ {
		var pa, pb string
		if i < len(ca) {
			pa = ca[i]
		}
		if i < len(cb) {
			pb = cb[i]
		}
		if pa == pb {
			continue
		}
		na, errA := strconv.Atoi(pa)
		nb, errB := strconv.Atoi(pb)
		if errA == nil && errB == nil {
			if na != nb {
				return na - nb
			}
			continue
		}
		if pa < pb {
			return -1
		}
		return 1
	}
	return 0
}

func splitVersion(v string) []string {
	var parts []string
	var cur strings.Builder
	var curIsDigit bool
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
		}
	}
	for i, r := range v {
		isDigit := r >= '0' && r <= '9'
		if i > 0 && isDigit != curIsDigit {
			flush()
		}
		cur.WriteRune(r)
		curIsDigit = isDigit
	}
	flush()
	return parts
}

// satisfiesConstraint reports whether version satisfies one parsed
// VersionConstraint.
func satisfiesConstraint(version string, c query.VersionConstraint) bool {
	switch c.Op {
	case query.OpEqualFuzzy:
		return version == c.Version || strings.HasPrefix(version, c.Version+".")
	case query.OpEqualExact:
		return compareVersions(version, c.Version) == 0
	case query.OpNotEqual:
		return compareVersions(version, c.Version) != 0
	case query.OpGreaterEq:
		return compareVersions(version, c.Version) >= 0
	case query.OpLessEq:
		return compareVersions(version, c.Version) <= 0
	case query.OpGreater:
		return compareVersions(version, c.Version) > 0
	case query.OpLess:
		return compareVersions(version, c.Version) < 0
	default:
		return false
	}
}

// satisfiesSpec reports whether a candidate's version and build satisfy
// every constraint in spec.
func satisfiesSpec(version, build string, spec query.MatchSpec) bool {
	if spec.Build != "" && spec.Build != build {
		return false
	}
	for _, c := range spec.Constraints {
		if !satisfiesConstraint(version, c) {
			return false
		}
	}
	return true
}
