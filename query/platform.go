package query

import "fmt"

// Platform is a validated target platform tag (spec.md glossary
// "Subdirectory"). Noarch is deliberately excluded from this set: it is
// always expanded into alongside the target platform (§4.5 "Channel ×
// subdir expansion"), never itself a valid --platform value.
type Platform string

var knownPlatforms = map[Platform]bool{
	"linux-64":     true,
	"linux-32":     true,
	"linux-aarch64": true,
	"linux-armv6l": true,
	"linux-armv7l": true,
	"linux-ppc64le": true,
	"linux-ppc64":  true,
	"linux-s390x":  true,
	"osx-64":       true,
	"osx-arm64":    true,
	"win-64":       true,
	"win-32":       true,
	"win-arm64":    true,
}

// Noarch is the platform-independent subdirectory every channel expansion
// includes in addition to the target platform.
const Noarch Platform = "noarch"

// ParsePlatform validates s against the closed set of known platform tags.
// Unlike the other parsers in this package, an invalid platform must fail
// fast (spec.md §4.5): it is checked before any other validation work or
// network call.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !knownPlatforms[p] {
		return "", fmt.Errorf("invalid platform %q", s)
	}
	return p, nil
}
