// Package indexcache specializes cache.Cache to the available-index cache
// spec.md §4.3 describes: it fetches and parses one (channel, subdir)'s
// repodata, runs a solver-owned precompute step over the result, and
// publishes the combined index.Artifact — all guarded by the single-flight
// cache so concurrent requests hitting the same channel×subdir never fetch
// it twice.
package indexcache

import (
	"context"
	"fmt"
	"time"

	"github.com/rattler-go/repodata-solver/cache"
	"github.com/rattler-go/repodata-solver/index"
	"github.com/rattler-go/repodata-solver/workerpool"
)

// Fetcher downloads and parses one channel subdirectory's index.
type Fetcher interface {
	Fetch(ctx context.Context, channel, subdirURL string) ([]index.Record, error)
}

// Precomputer derives a solver-owned, opaque precomputation from a freshly
// fetched set of records (spec.md §4.3 "solver-native precompute"). It
// runs on the blocking worker pool alongside parsing, since a real
// implementation may build non-trivial indices over the records.
type Precomputer interface {
	Precompute(records []index.Record) (any, error)
}

// NoopPrecomputer performs no precomputation; used when no solver backend
// requires one.
type NoopPrecomputer struct{}

func (NoopPrecomputer) Precompute([]index.Record) (any, error) { return nil, nil }

// Cache is the available-index cache: a single-flight, expiring cache of
// index.Artifact keyed by the fully qualified subdir URL.
type Cache struct {
	cache       *cache.Cache[string, *index.Artifact]
	fetcher     Fetcher
	precomputer Precomputer
	pool        *workerpool.Pool
}

// New constructs a Cache. expiration is the per-entry freshness window
// (spec.md §4.1/§6 "repodata_cache_expiration_seconds").
func New(expiration time.Duration, fetcher Fetcher, precomputer Precomputer, pool *workerpool.Pool) *Cache {
	if precomputer == nil {
		precomputer = NoopPrecomputer{}
	}
	return &Cache{
		cache:       cache.New[string, *index.Artifact](expiration),
		fetcher:     fetcher,
		precomputer: precomputer,
		pool:        pool,
	}
}

// Get returns the cached or freshly fetched+precomputed Artifact for one
// (channel, subdirURL) pair. On a miss it becomes the single writer for
// subdirURL (spec.md §4.1 property P1): it fetches off the blocking pool,
// precomputes off the blocking pool, and either publishes or discards its
// token, depending on which step failed.
func (c *Cache) Get(ctx context.Context, channel, subdirURL string) (*index.Artifact, error) {
	result := c.cache.GetCached(subdirURL)
	if result.Found {
		return result.Value, nil
	}

	published := false
	defer func() {
		if !published {
			result.Token.Discard()
		}
	}()

	fetched, err := c.pool.Submit(ctx, func() (any, error) {
		return c.fetcher.Fetch(ctx, channel, subdirURL)
	})
	if err != nil {
		return nil, err
	}
	records := fetched.([]index.Record)

	precomputed, err := c.pool.Submit(ctx, func() (any, error) {
		return c.precomputer.Precompute(records)
	})
	if err != nil {
		return nil, fmt.Errorf("indexcache: precompute %s: %w", subdirURL, err)
	}

	artifact := &index.Artifact{Records: records, Precomputed: precomputed}
	c.cache.Set(&result.Token, artifact)
	published = true
	return artifact, nil
}

// Forget evicts one subdir URL's cached artifact immediately. The admin
// purge endpoint uses ForgetMatching instead.
func (c *Cache) Forget(subdirURL string) bool {
	return c.cache.Forget(subdirURL)
}

// ForgetMatching evicts every cached subdir URL for which match returns
// true.
func (c *Cache) ForgetMatching(match func(string) bool) int {
	return c.cache.ForgetMatching(match)
}

// GC removes expired entries; intended to be driven by sweeper on a fixed
// tick (spec.md §4.4).
func (c *Cache) GC() int {
	return c.cache.GC()
}

// Len reports the number of currently published entries, for /metrics.
func (c *Cache) Len() int {
	return c.cache.Len()
}
