package index

import (
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// variant is a compressed repodata encoding, tried in the preference order
// spec.md §4.2 fixes: zstd, then bzip2, then uncompressed.
type variant struct {
	suffix string
	decode func(io.Reader) (io.Reader, func(), error)
}

var variantsInPreferenceOrder = []variant{
	{suffix: ".zst", decode: decodeZstd},
	{suffix: ".bz2", decode: decodeBzip2},
	{suffix: "", decode: decodeIdentity},
}

func decodeZstd(r io.Reader) (io.Reader, func(), error) {
	d, err := zstd.NewReader(r)
	if err != nil {
		return nil, nil, err
	}
	return d, d.Close, nil
}

func decodeBzip2(r io.Reader) (io.Reader, func(), error) {
	return bzip2.NewReader(r), func() {}, nil
}

func decodeIdentity(r io.Reader) (io.Reader, func(), error) {
	return r, func() {}, nil
}

// Error is the single user-visible error kind spec.md §4.2 mandates for
// fetch failures: network errors, non-2xx statuses, decompression errors,
// and parse errors all collapse into FetchIndex(url, cause).
type Error struct {
	URL   string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fetch index %s: %v", e.URL, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Fetcher retrieves and parses a channel subdirectory's repodata. The
// subdirURL passed to Fetch must already include the trailing subdir path segment (e.g.
// https://conda.anaconda.org/conda-forge/linux-64).
type Fetcher struct {
	HTTPClient *http.Client
}

// NewFetcher builds a Fetcher using client, or http.DefaultClient if nil.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{HTTPClient: client}
}

// Fetch probes for the best available variant, streams and decodes it, and
// parses the result into normalized records. Parsing happens inline here;
// callers that must keep it off the async path (the request pipeline) are
// expected to invoke Fetch itself from inside a blocking-pool job, since the
// parse is the dominant cost and inseparable from the decode stream.
func (f *Fetcher) Fetch(ctx context.Context, channel, subdirURL string) ([]Record, error) {
	base := strings.TrimSuffix(subdirURL, "/")

	v, resp, err := f.probe(ctx, base)
	if err != nil {
		return nil, &Error{URL: base, Cause: err}
	}
	defer resp.Body.Close()
	fileURL := base + "/repodata.json" + v.suffix

	decoded, closeDecoder, err := v.decode(resp.Body)
	if err != nil {
		return nil, &Error{URL: fileURL, Cause: fmt.Errorf("decompress: %w", err)}
	}
	defer closeDecoder()

	buf, err := io.ReadAll(decoded)
	if err != nil {
		return nil, &Error{URL: fileURL, Cause: fmt.Errorf("read: %w", err)}
	}

	records, err := ParseDocument(buf, channel, base)
	if err != nil {
		return nil, &Error{URL: fileURL, Cause: fmt.Errorf("parse: %w", err)}
	}

	return records, nil
}

// probe performs the authoritative variant selection: it tries each
// candidate URL, in preference order, and returns the response for the
// first one that answers with a success status. No fallback is attempted
// once a variant is chosen (spec.md §4.2): if that download later fails,
// the whole fetch fails.
func (f *Fetcher) probe(ctx context.Context, base string) (variant, *http.Response, error) {
	var lastErr error
	for _, v := range variantsInPreferenceOrder {
		url := base + "/repodata.json" + v.suffix
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return variant{}, nil, err
		}

		resp, err := f.HTTPClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("%s: unexpected status %d", url, resp.StatusCode)
			resp.Body.Close()
			continue
		}
		return v, resp, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no repodata variant available at %s", base)
	}
	return variant{}, nil, lastErr
}
