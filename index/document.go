package index

import "encoding/json"

// rawPackage mirrors one entry of repodata.json's "packages" or
// "packages.conda" maps. Fields not needed by the solver are still kept so
// normalization can surface them on Record.
type rawPackage struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Build       string          `json:"build"`
	BuildNumber int64           `json:"build_number"`
	Depends     []string        `json:"depends"`
	Constrains  []string        `json:"constrains"`
	Size        int64           `json:"size"`
	SHA256      string          `json:"sha256"`
	Subdir      string          `json:"subdir"`
	_           json.RawMessage `json:"-"`
}

// document is the top-level shape of a repodata.json file.
type document struct {
	Info struct {
		Subdir string `json:"subdir"`
	} `json:"info"`
	// Packages holds legacy .tar.bz2 package entries, keyed by filename.
	Packages map[string]rawPackage `json:"packages"`
	// PackagesConda holds .conda package entries, keyed by filename. When
	// both a .tar.bz2 and a .conda entry exist for the same package
	// build, the .conda entry wins (see ParseDocument).
	PackagesConda map[string]rawPackage `json:"packages.conda"`
}

// ParseDocument deserializes a decoded repodata.json buffer and normalizes
// it into records carrying their origin channel and URL. This is the
// CPU-bound step spec.md §4.2 requires to run on a blocking worker, never on
// the async path.
func ParseDocument(buf []byte, channel, channelURL string) ([]Record, error) {
	var doc document
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, err
	}

	subdir := doc.Info.Subdir

	merged := make(map[string]rawPackage, len(doc.Packages)+len(doc.PackagesConda))
	for fn, p := range doc.Packages {
		merged[packageKey(p)] = p
		_ = fn
	}
	// .conda entries take precedence over .tar.bz2 entries for the same
	// name/version/build tuple (conda-build prefers .conda
	// when both are present).
	for fn, p := range doc.PackagesConda {
		merged[packageKey(p)] = p
		_ = fn
	}

	records := make([]Record, 0, len(merged))
	for _, p := range merged {
		rec := Record{
			Name:        p.Name,
			Version:     p.Version,
			Build:       p.Build,
			BuildNumber: p.BuildNumber,
			Subdir:      firstNonEmpty(p.Subdir, subdir),
			Depends:     p.Depends,
			Constrains:  p.Constrains,
			Size:        p.Size,
			SHA256:      p.SHA256,
			Channel:     channel,
			URL:         channelURL,
		}
		records = append(records, rec)
	}

	return records, nil
}

func packageKey(p rawPackage) string {
	return p.Name + "-" + p.Version + "-" + p.Build
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
