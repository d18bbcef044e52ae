// Package index fetches and parses a channel subdirectory's package index
// (repodata.json and its compressed variants) into normalized records.
//
// Per spec.md §4.2, the network/decompression/parse work here is the other
// half of this service's core difficulty: a variant probe picks the best
// available compression, the body is streamed through the matching
// decoder into one contiguous buffer, and the buffer is deserialized on a
// blocking worker (never on the async path).
package index

// Record is one package's metadata entry, augmented with the channel and
// subdir it came from (spec.md §3, §4.2 "record normalization").
type Record struct {
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	Build      string   `json:"build"`
	BuildNumber int64   `json:"build_number"`
	Subdir     string   `json:"subdir"`
	Depends    []string `json:"depends,omitempty"`
	Constrains []string `json:"constrains,omitempty"`
	Size       int64    `json:"size,omitempty"`
	SHA256     string   `json:"sha256,omitempty"`

	// Channel and URL are filled in during normalization; they never
	// appear in the raw repodata.json document itself.
	Channel string `json:"channel"`
	URL     string `json:"url"`
}

// Artifact is the parsed, immutable result of fetching one (channel,
// subdir) index (spec.md §3 "Package index artifact"). Precomputed is
// filled in by the caller (indexcache) after a successful fetch; it is
// opaque to this package.
type Artifact struct {
	Records     []Record
	Precomputed any
}
