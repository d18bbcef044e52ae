package query

import (
	"fmt"
	"strings"
)

// Alias resolves a bare channel name (e.g. "conda-forge") to its base URL
// under the configured channel alias (spec.md §4.5: "parse each under the
// configured channel alias").
type Alias struct {
	BaseURL string // e.g. "https://conda.anaconda.org"
}

// DefaultAlias matches the conda ecosystem's default channel host.
var DefaultAlias = Alias{BaseURL: "https://conda.anaconda.org"}

// Channel is a named source of package indices (spec.md glossary). Subdirs
// is nil when the channel did not declare an explicit subdir list, in which
// case expansion defaults to [target_platform, noarch].
type Channel struct {
	Name    string
	BaseURL string
	Subdirs []string // explicit subdirs, or nil for the default
}

// ParseChannel parses one channel entry. A bare name ("conda-forge") or a
// full URL are both accepted; a bare name may carry an optional
// "/subdir1,subdir2" suffix that declares explicit subdirs. A full URL is
// taken as the channel's base URL as given and uses the default subdirs.
func (a Alias) ParseChannel(raw string) (Channel, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Channel{}, fmt.Errorf("channel is empty")
	}

	var name, subdirPart, base string
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		base = strings.TrimSuffix(s, "/")
		name = base
	} else {
		name, subdirPart, _ = strings.Cut(s, "/")
		if !nameRE.MatchString(name) {
			return Channel{}, fmt.Errorf("invalid channel %q", raw)
		}
		base = strings.TrimSuffix(a.BaseURL, "/") + "/" + name
	}

	ch := Channel{Name: name, BaseURL: base}
	if subdirPart != "" {
		for _, sd := range strings.Split(subdirPart, ",") {
			sd = strings.TrimSpace(sd)
			if sd == "" {
				continue
			}
			ch.Subdirs = append(ch.Subdirs, sd)
		}
	}
	return ch, nil
}

// ExpandPairs expands declared channels into a flat, order-preserving
// sequence of (channel, subdir) URL pairs (spec.md §4.5 "Channel × subdir
// expansion"). Duplicates are not removed here — the cache absorbs repeated
// keys cheaply (spec.md §9 open question).
func ExpandPairs(channels []Channel, targetPlatform Platform) []Pair {
	pairs := make([]Pair, 0, len(channels)*2)
	for _, ch := range channels {
		subdirs := ch.Subdirs
		if len(subdirs) == 0 {
			subdirs = []string{string(targetPlatform), string(Noarch)}
		}
		for _, sd := range subdirs {
			pairs = append(pairs, Pair{
				Channel: ch.Name,
				Subdir:  sd,
				URL:     ch.BaseURL + "/" + sd,
			})
		}
	}
	return pairs
}

// Pair is one expanded (channel, subdir) addressable as a single cache key
// (its URL).
type Pair struct {
	Channel string
	Subdir  string
	URL     string
}
