// Package pipeline implements the request pipeline spec.md §4.5 and §5
// describe: parse → validate → expand (channel × subdir) pairs →
// bounded-parallel cache lookup → collect → submit to the solver on a
// blocking worker → topologically sort → respond.
package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rattler-go/repodata-solver/apierrors"
	"github.com/rattler-go/repodata-solver/index"
	"github.com/rattler-go/repodata-solver/indexcache"
	"github.com/rattler-go/repodata-solver/metrics"
	"github.com/rattler-go/repodata-solver/query"
	"github.com/rattler-go/repodata-solver/solver"
	"github.com/rattler-go/repodata-solver/workerpool"
)

// Request is the raw, unvalidated shape of an inbound /solve call.
type Request struct {
	Specs           []string
	VirtualPackages []string
	Platform        string
	Channels        []string
}

// Response is a successful solve's result: an install plan topologically
// sorted by dependency (spec.md §3, property P4).
type Response struct {
	Packages []index.Record
}

// Pipeline wires every collaborator the request flow needs: the
// available-index cache, the configured solver backend, the shared
// blocking worker pool, and the channel alias used to resolve bare
// channel names.
type Pipeline struct {
	IndexCache  *indexcache.Cache
	Backend     solver.Backend
	Pool        *workerpool.Pool
	Metrics     *metrics.Collector
	ChannelAlias query.Alias
	Concurrency int // bound on parallel index fetches within one request
}

// Solve runs the full pipeline for one request. Every returned error is
// already one apierrors.Map can classify; callers should pass it straight
// through to apierrors.Map rather than re-wrapping it.
func (p *Pipeline) Solve(ctx context.Context, req Request) (Response, error) {
	platform, specs, virtualPkgs, channels, err := p.validate(req)
	if err != nil {
		return Response{}, err
	}

	pairs := query.ExpandPairs(channels, platform)

	artifacts, err := p.fetchAll(ctx, pairs)
	if err != nil {
		return Response{}, err
	}

	var candidates []index.Record
	for _, a := range artifacts {
		candidates = append(candidates, a.Records...)
	}

	solveStart := time.Now()
	result, err := p.Pool.Submit(ctx, func() (any, error) {
		return p.Backend.Solve(ctx, solver.Request{
			Specs:       specs,
			VirtualPkgs: virtualPkgs,
			Candidates:  candidates,
		})
	})
	if p.Metrics != nil {
		_, unsolvable := isUnsolvable(err)
		p.Metrics.RecordSolve(time.Since(solveStart), err, unsolvable)
	}
	if err != nil {
		return Response{}, err
	}

	plan := result.(solver.Plan)
	sorted, serr := solver.TopoSort(plan.Records)
	if serr != nil {
		return Response{}, &apierrors.Error{Kind: apierrors.Internal, Status: 500, Message: serr.Error()}
	}

	return Response{Packages: sorted}, nil
}

func isUnsolvable(err error) (*solver.Error, bool) {
	serr, ok := err.(*solver.Error)
	if !ok {
		return nil, false
	}
	return serr, serr.Kind == solver.Unsolvable
}

// validate parses and validates every field of req. An invalid platform is
// reported on its own before anything else is parsed; failures among the
// match specs, virtual packages and channels are accumulated into one
// combined error (property P5's idempotent classification).
func (p *Pipeline) validate(req Request) (query.Platform, []query.MatchSpec, []query.VirtualPackage, []query.Channel, error) {
	platform, platformErr := query.ParsePlatform(req.Platform)
	if platformErr != nil {
		return "", nil, nil, nil, query.ValidationErrors{{Input: req.Platform, Err: platformErr.Error()}}
	}

	specs, specErrs := query.ParseMatchSpecs(req.Specs)
	virtualPkgs, vpErrs := query.ParseVirtualPackages(req.VirtualPackages)
	channels, chErrs := query.ParseChannels(p.ChannelAlias, req.Channels)

	var all query.ValidationErrors
	all = append(all, specErrs...)
	all = append(all, vpErrs...)
	all = append(all, chErrs...)

	if len(all) > 0 {
		return "", nil, nil, nil, all
	}
	return platform, specs, virtualPkgs, channels, nil
}

// fetchAll looks up every expanded (channel, subdir) pair with a
// concurrency bound of p.Concurrency (spec.md §4.5). Results are written
// into a preallocated slice indexed by the pair's original position, so
// channel ordering is preserved in the candidate list regardless of which
// fetch completes first. The first failure cancels outstanding work via
// ctx and is returned; the group's context is itself responsible for
// propagating cancellation to every child's errgroup-tracked goroutine.
func (p *Pipeline) fetchAll(ctx context.Context, pairs []query.Pair) ([]*index.Artifact, error) {
	concurrency := p.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	artifacts := make([]*index.Artifact, len(pairs))
	for i, pair := range pairs {
		i, pair := i, pair
		g.Go(func() error {
			a, err := p.IndexCache.Get(gctx, pair.Channel, pair.URL)
			if err != nil {
				return err
			}
			artifacts[i] = a
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return artifacts, nil
}
