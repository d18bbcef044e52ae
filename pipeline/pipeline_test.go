package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rattler-go/repodata-solver/apierrors"
	"github.com/rattler-go/repodata-solver/index"
	"github.com/rattler-go/repodata-solver/indexcache"
	"github.com/rattler-go/repodata-solver/metrics"
	"github.com/rattler-go/repodata-solver/query"
	"github.com/rattler-go/repodata-solver/solver"
	"github.com/rattler-go/repodata-solver/solver/noop"
	"github.com/rattler-go/repodata-solver/solver/portable"
	"github.com/rattler-go/repodata-solver/workerpool"
)

type mockFetcher struct {
	bySubdirURL map[string][]index.Record
	delay       map[string]time.Duration
}

func (m *mockFetcher) Fetch(ctx context.Context, channel, subdirURL string) ([]index.Record, error) {
	time.Sleep(m.delay[subdirURL])
	if recs, ok := m.bySubdirURL[subdirURL]; ok {
		return recs, nil
	}
	return nil, &index.Error{URL: subdirURL, Cause: assert.AnError}
}

func newTestPipeline(t *testing.T, fetcher *mockFetcher, backend solver.Backend) *Pipeline {
	t.Helper()
	pool := workerpool.New(2)
	t.Cleanup(pool.Shutdown)
	ic := indexcache.New(time.Minute, fetcher, nil, pool)
	return &Pipeline{
		IndexCache:   ic,
		Backend:      backend,
		Pool:         pool,
		Metrics:      metrics.New(),
		ChannelAlias: query.DefaultAlias,
		Concurrency:  2,
	}
}

// TestSolveHappyPath is scenario S5.
func TestSolveHappyPath(t *testing.T) {
	fetcher := &mockFetcher{bySubdirURL: map[string][]index.Record{
		"https://conda.anaconda.org/conda-forge/linux-64": {
			{Name: "foo", Version: "3.0.2"},
			{Name: "bar", Version: "1.0", Depends: []string{"__unix"}},
		},
		"https://conda.anaconda.org/conda-forge/noarch": {},
	}}

	p := newTestPipeline(t, fetcher, portable.New(0))
	resp, err := p.Solve(context.Background(), Request{
		Specs:           []string{"foo", "bar"},
		VirtualPackages: []string{"__unix"},
		Platform:        "linux-64",
		Channels:        []string{"conda-forge"},
	})
	require.NoError(t, err)

	names := make([]string, len(resp.Packages))
	for i, r := range resp.Packages {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"foo", "bar"}, names)
}

// TestSolveUnsolvable is scenario S6.
func TestSolveUnsolvable(t *testing.T) {
	fetcher := &mockFetcher{bySubdirURL: map[string][]index.Record{
		"https://conda.anaconda.org/conda-forge/linux-64": {
			{Name: "foo", Version: "3.0.2"},
			{Name: "bar", Version: "1.0", Depends: []string{"__unix"}},
		},
		"https://conda.anaconda.org/conda-forge/noarch": {},
	}}

	p := newTestPipeline(t, fetcher, portable.New(0))
	_, err := p.Solve(context.Background(), Request{
		Specs:    []string{"bar"},
		Platform: "linux-64",
		Channels: []string{"conda-forge"},
	})
	require.Error(t, err)
	mapped := apierrors.Map(err)
	assert.Equal(t, apierrors.SolverUnsolvable, mapped.Kind)
}

// TestSolveInvalidPlatform is scenario S3.
func TestSolveInvalidPlatform(t *testing.T) {
	p := newTestPipeline(t, &mockFetcher{}, noop.New())
	_, err := p.Solve(context.Background(), Request{
		Specs:    []string{"foo"},
		Platform: "asdfasdf",
		Channels: []string{"conda-forge"},
	})
	require.Error(t, err)
	mapped := apierrors.Map(err)
	assert.Equal(t, apierrors.Validation, mapped.Kind)
	assert.Contains(t, mapped.Message, "asdfasdf")
}

// TestSolveChannelUnreachable is scenario S4.
func TestSolveChannelUnreachable(t *testing.T) {
	p := newTestPipeline(t, &mockFetcher{}, noop.New())
	_, err := p.Solve(context.Background(), Request{
		Specs:    []string{"foo"},
		Platform: "linux-64",
		Channels: []string{"conda-forge"},
	})
	require.Error(t, err)
	mapped := apierrors.Map(err)
	assert.Equal(t, apierrors.Fetch, mapped.Kind)
	assert.Contains(t, mapped.Message, "unable to retrieve")
}

// capturingBackend records the candidates it is handed, then reports
// Unsolvable.
type capturingBackend struct {
	candidates []index.Record
}

func (b *capturingBackend) Name() string { return "capturing" }

func (b *capturingBackend) Solve(ctx context.Context, req solver.Request) (solver.Plan, error) {
	b.candidates = req.Candidates
	return solver.Plan{}, &solver.Error{Kind: solver.Unsolvable, Message: "capturing backend: no solution"}
}

func TestSolvePreservesChannelOrderRegardlessOfFetchCompletionOrder(t *testing.T) {
	fetcher := &mockFetcher{
		bySubdirURL: map[string][]index.Record{
			"https://conda.anaconda.org/slow/linux-64":  {{Name: "slowpkg", Version: "1.0"}},
			"https://conda.anaconda.org/slow/noarch":    {},
			"https://conda.anaconda.org/fast/linux-64":  {{Name: "fastpkg", Version: "1.0"}},
			"https://conda.anaconda.org/fast/noarch":    {},
		},
		delay: map[string]time.Duration{
			"https://conda.anaconda.org/slow/linux-64": 50 * time.Millisecond,
		},
	}
	backend := &capturingBackend{}
	p := newTestPipeline(t, fetcher, backend)

	_, err := p.Solve(context.Background(), Request{
		Specs:    []string{"fastpkg"},
		Platform: "linux-64",
		Channels: []string{"slow", "fast"},
	})
	// The backend always reports Unsolvable, but the pipeline must still
	// have fetched both channels without error and handed the candidates
	// over in channel order, although the slow channel finished last.
	require.Error(t, err)
	mapped := apierrors.Map(err)
	assert.Equal(t, apierrors.SolverUnsolvable, mapped.Kind)

	names := make([]string, len(backend.candidates))
	for i, r := range backend.candidates {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"slowpkg", "fastpkg"}, names)
}
