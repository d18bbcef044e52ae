// Package query parses and validates the four kinds of user input the
// /solve request carries: match specs, virtual packages, channels, and the
// target platform (spec.md §4.5 "Validation").
package query

import (
	"fmt"
	"regexp"
	"strings"
)

// Operator is a version comparison operator recognized in a match spec's
// version constraint.
type Operator string

const (
	OpEqualExact  Operator = "=="
	OpNotEqual    Operator = "!="
	OpGreaterEq   Operator = ">="
	OpLessEq      Operator = "<="
	OpGreater     Operator = ">"
	OpLess        Operator = "<"
	OpEqualFuzzy  Operator = "=" // conda's "starts with" / fuzzy match
)

// VersionConstraint is one parsed comparison within a match spec.
type VersionConstraint struct {
	Op      Operator
	Version string
}

// MatchSpec is a parsed dependency constraint: a package name plus zero or
// more version/build constraints (spec.md §3 "Match spec").
type MatchSpec struct {
	Name        string
	Constraints []VersionConstraint
	Build       string // exact build string pin, if present; "" means unconstrained
	Raw         string
}

var nameRE = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9._-]*$`)

var operatorsByLength = []Operator{OpEqualExact, OpNotEqual, OpGreaterEq, OpLessEq, OpGreater, OpLess, OpEqualFuzzy}

// ParseMatchSpec parses one match spec string. Accepted forms:
//
//	foo                     (any version)
//	foo 1.0                 (exact version, conda's bare space-separated form)
//	foo 1.0 0               (exact version and build string)
//	foo >=1.0,<2.0          (operator constraints after a space)
//	foo>=1.0,<2.0           (comma-separated operator constraints)
//	foo==1.0
//
// Returns an error carrying the offending input for spec.md §7's
// Validation mapping.
func ParseMatchSpec(raw string) (MatchSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return MatchSpec{}, fmt.Errorf("match spec is empty")
	}

	// Bare space-separated form: "name [version [build]]".
	if fields := strings.Fields(s); len(fields) > 1 && !strings.ContainsAny(fields[0], "=<>!,") {
		name := fields[0]
		if !nameRE.MatchString(name) {
			return MatchSpec{}, fmt.Errorf("invalid package name %q", name)
		}
		spec := MatchSpec{Name: name, Raw: raw}
		if len(fields) >= 2 && fields[1] != "*" {
			if strings.ContainsAny(fields[1][:1], "=<>!") {
				for _, clause := range strings.Split(fields[1], ",") {
					c, err := parseConstraint(clause)
					if err != nil {
						return MatchSpec{}, fmt.Errorf("match spec %q: %w", raw, err)
					}
					spec.Constraints = append(spec.Constraints, c)
				}
			} else {
				spec.Constraints = append(spec.Constraints, VersionConstraint{Op: OpEqualExact, Version: fields[1]})
			}
		}
		if len(fields) >= 3 {
			spec.Build = fields[2]
		}
		if len(fields) > 3 {
			return MatchSpec{}, fmt.Errorf("too many fields in match spec %q", raw)
		}
		return spec, nil
	}

	name, rest, hasConstraint := cutFirstOperator(s)
	if !nameRE.MatchString(name) {
		return MatchSpec{}, fmt.Errorf("invalid package name %q", name)
	}

	spec := MatchSpec{Name: name, Raw: raw}
	if !hasConstraint {
		return spec, nil
	}

	for _, clause := range strings.Split(rest, ",") {
		c, err := parseConstraint(clause)
		if err != nil {
			return MatchSpec{}, fmt.Errorf("match spec %q: %w", raw, err)
		}
		spec.Constraints = append(spec.Constraints, c)
	}
	return spec, nil
}

// cutFirstOperator splits s at the first recognized operator, returning the
// name, the remainder starting at the operator, and whether an operator was
// found at all.
func cutFirstOperator(s string) (name string, rest string, found bool) {
	idx := strings.IndexAny(s, "=<>!")
	if idx < 0 {
		return s, "", false
	}
	return s[:idx], s[idx:], true
}

func parseConstraint(clause string) (VersionConstraint, error) {
	clause = strings.TrimSpace(clause)
	for _, op := range operatorsByLength {
		if strings.HasPrefix(clause, string(op)) {
			version := strings.TrimSpace(strings.TrimPrefix(clause, string(op)))
			if version == "" {
				return VersionConstraint{}, fmt.Errorf("missing version after operator %q", op)
			}
			return VersionConstraint{Op: op, Version: version}, nil
		}
	}
	return VersionConstraint{}, fmt.Errorf("unrecognized constraint %q", clause)
}

func (m MatchSpec) String() string {
	if m.Raw != "" {
		return m.Raw
	}
	return m.Name
}
