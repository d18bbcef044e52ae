package solver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rattler-go/repodata-solver/index"
)

// TopoSort orders records so that every dependency appears before its
// dependents (spec.md §6 "install plan: topologically sorted by
// dependency"), and is deterministic on ties (property P4): when more than
// one record has no remaining unsorted dependency, ties are broken by
// stable input order — the one that appeared earliest in records is
// emitted next, never by name.
//
// It returns an error if the selected records contain a dependency cycle
// — a condition a correct Backend should never produce, since it means
// the backend picked an unsatisfiable set, but one this function refuses
// to silently mis-order rather than guess at.
func TopoSort(records []index.Record) ([]index.Record, error) {
	byName := make(map[string]index.Record, len(records))
	position := make(map[string]int, len(records))
	for i, r := range records {
		byName[r.Name] = r
		position[r.Name] = i
	}

	indegree := make(map[string]int, len(records))
	dependents := make(map[string][]string, len(records))
	for _, r := range records {
		if _, ok := indegree[r.Name]; !ok {
			indegree[r.Name] = 0
		}
		for _, dep := range r.Depends {
			depName := dependencyName(dep)
			if _, ok := byName[depName]; !ok {
				// Dependency outside the selected set (e.g. a virtual
				// package) never gates ordering.
				continue
			}
			indegree[r.Name]++
			dependents[depName] = append(dependents[depName], r.Name)
		}
	}

	byPosition := func(names []string) {
		sort.Slice(names, func(i, j int) bool { return position[names[i]] < position[names[j]] })
	}

	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	byPosition(ready)

	sorted := make([]index.Record, 0, len(records))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		sorted = append(sorted, byName[name])

		var newlyReady []string
		for _, dependent := range dependents[name] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				newlyReady = append(newlyReady, dependent)
			}
		}
		if len(newlyReady) > 0 {
			ready = append(ready, newlyReady...)
			byPosition(ready)
		}
	}

	if len(sorted) != len(records) {
		return nil, fmt.Errorf("toposort: dependency cycle detected among %d unresolved record(s)", len(records)-len(sorted))
	}
	return sorted, nil
}

// dependencyName extracts the package name from a dependency string such
// as "python >=3.8" or "numpy>=1.20,<2", ignoring the version constraint.
func dependencyName(dep string) string {
	dep = strings.TrimSpace(dep)
	for i, r := range dep {
		if r == ' ' || r == '=' || r == '<' || r == '>' || r == '!' {
			return dep[:i]
		}
	}
	return dep
}
