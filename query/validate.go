package query

import (
	"fmt"
	"strings"
)

// FieldError names the raw input that failed to parse, for spec.md §4.5's
// "accumulate failures, report all malformed inputs in one response".
type FieldError struct {
	Input string
	Err   string
}

// ValidationErrors aggregates every FieldError found while parsing the
// request's fields (match specs, virtual packages, channels, platform).
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fe.Input + ": " + fe.Err
	}
	return fmt.Sprintf("%d invalid value(s): %s", len(v), strings.Join(parts, "; "))
}

// ParseMatchSpecs parses every spec, accumulating failures instead of
// stopping at the first one.
func ParseMatchSpecs(raw []string) ([]MatchSpec, ValidationErrors) {
	specs := make([]MatchSpec, 0, len(raw))
	var errs ValidationErrors
	for _, s := range raw {
		spec, err := ParseMatchSpec(s)
		if err != nil {
			errs = append(errs, FieldError{Input: s, Err: err.Error()})
			continue
		}
		specs = append(specs, spec)
	}
	return specs, errs
}

// ParseVirtualPackages parses every virtual package, accumulating failures.
func ParseVirtualPackages(raw []string) ([]VirtualPackage, ValidationErrors) {
	vps := make([]VirtualPackage, 0, len(raw))
	var errs ValidationErrors
	for _, s := range raw {
		vp, err := ParseVirtualPackage(s)
		if err != nil {
			errs = append(errs, FieldError{Input: s, Err: err.Error()})
			continue
		}
		vps = append(vps, vp)
	}
	return vps, errs
}

// ParseChannels parses every channel under alias, accumulating failures.
func ParseChannels(alias Alias, raw []string) ([]Channel, ValidationErrors) {
	channels := make([]Channel, 0, len(raw))
	var errs ValidationErrors
	for _, s := range raw {
		ch, err := alias.ParseChannel(s)
		if err != nil {
			errs = append(errs, FieldError{Input: s, Err: err.Error()})
			continue
		}
		channels = append(channels, ch)
	}
	return channels, errs
}
