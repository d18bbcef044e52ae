package indexcache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rattler-go/repodata-solver/index"
	"github.com/rattler-go/repodata-solver/workerpool"
)

type fakeFetcher struct {
	calls   int32
	records []index.Record
	err     error
}

func (f *fakeFetcher) Fetch(ctx context.Context, channel, subdirURL string) ([]index.Record, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func TestGetFetchesOnceAndCaches(t *testing.T) {
	fetcher := &fakeFetcher{records: []index.Record{{Name: "foo", Version: "1.0"}}}
	pool := workerpool.New(2)
	defer pool.Shutdown()

	c := New(time.Minute, fetcher, nil, pool)

	a1, err := c.Get(context.Background(), "conda-forge", "https://example/conda-forge/linux-64")
	require.NoError(t, err)
	a2, err := c.Get(context.Background(), "conda-forge", "https://example/conda-forge/linux-64")
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls))
}

func TestGetDoesNotCacheOnFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("network down")}
	pool := workerpool.New(2)
	defer pool.Shutdown()

	c := New(time.Minute, fetcher, nil, pool)

	_, err := c.Get(context.Background(), "conda-forge", "u")
	require.Error(t, err)

	fetcher.err = nil
	fetcher.records = []index.Record{{Name: "foo", Version: "1.0"}}
	a, err := c.Get(context.Background(), "conda-forge", "u")
	require.NoError(t, err, "a subsequent getter must become the new writer, not wait forever")
	assert.Len(t, a.Records, 1)
}

type recordingPrecomputer struct {
	called int32
}

func (r *recordingPrecomputer) Precompute(records []index.Record) (any, error) {
	atomic.AddInt32(&r.called, 1)
	return len(records), nil
}

func TestPrecomputeRunsOnceAndIsStored(t *testing.T) {
	fetcher := &fakeFetcher{records: []index.Record{{Name: "a"}, {Name: "b"}}}
	precomp := &recordingPrecomputer{}
	pool := workerpool.New(2)
	defer pool.Shutdown()

	c := New(time.Minute, fetcher, precomp, pool)
	a, err := c.Get(context.Background(), "ch", "u")
	require.NoError(t, err)
	assert.Equal(t, 2, a.Precomputed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&precomp.called))
}

func TestForgetEvictsEntry(t *testing.T) {
	fetcher := &fakeFetcher{records: []index.Record{{Name: "a"}}}
	pool := workerpool.New(2)
	defer pool.Shutdown()

	c := New(time.Minute, fetcher, nil, pool)
	_, err := c.Get(context.Background(), "ch", "u")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	assert.True(t, c.Forget("u"))
	assert.Equal(t, 0, c.Len())
}
