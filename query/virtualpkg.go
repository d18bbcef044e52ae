package query

import (
	"fmt"
	"strings"
)

// VirtualPackage is a synthetic capability the environment advertises to
// satisfy constraints it cannot install (spec.md §3, glossary). Parsed from
// name[=version[=build]]; version defaults to "0", build defaults to "0"
// per spec.md §4.5.
type VirtualPackage struct {
	Name    string
	Version string
	Build   string
}

// ParseVirtualPackage parses one virtual package declaration.
func ParseVirtualPackage(raw string) (VirtualPackage, error) {
	parts := strings.Split(raw, "=")
	if len(parts) > 3 {
		return VirtualPackage{}, fmt.Errorf("virtual package %q: too many equals signs", raw)
	}

	name := parts[0]
	if !nameRE.MatchString(name) {
		return VirtualPackage{}, fmt.Errorf("virtual package %q: invalid name %q", raw, name)
	}

	vp := VirtualPackage{Name: name, Version: "0", Build: "0"}
	if len(parts) >= 2 && parts[1] != "" {
		vp.Version = parts[1]
	}
	if len(parts) == 3 && parts[2] != "" {
		vp.Build = parts[2]
	}
	return vp, nil
}

func (v VirtualPackage) String() string {
	return fmt.Sprintf("%s=%s=%s", v.Name, v.Version, v.Build)
}
