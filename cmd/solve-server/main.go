// Command solve-server runs the repodata solver HTTP service: it wires
// configuration, logging, the available-index cache, the background
// sweeper, the blocking worker pool, the request pipeline and solver
// backend, and the HTTP surface together, then serves until it receives
// SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/zapr"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/rattler-go/repodata-solver/config"
	"github.com/rattler-go/repodata-solver/httpapi"
	"github.com/rattler-go/repodata-solver/index"
	"github.com/rattler-go/repodata-solver/indexcache"
	"github.com/rattler-go/repodata-solver/metrics"
	"github.com/rattler-go/repodata-solver/pipeline"
	"github.com/rattler-go/repodata-solver/query"
	"github.com/rattler-go/repodata-solver/solver"
	"github.com/rattler-go/repodata-solver/solver/noop"
	"github.com/rattler-go/repodata-solver/solver/portable"
	"github.com/rattler-go/repodata-solver/sweeper"
	"github.com/rattler-go/repodata-solver/workerpool"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "solve-server: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := config.New()
	fs := pflag.NewFlagSet("solve-server", pflag.ExitOnError)
	if err := cfg.BindFlags(fs); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	zapLog, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("construct logger: %w", err)
	}
	defer zapLog.Sync() //nolint:errcheck
	log := zapr.NewLogger(zapLog)

	backend, err := selectBackend(cfg.SolverBackend())
	if err != nil {
		return err
	}

	pool := workerpool.New(0)
	defer pool.Shutdown()

	metricsCollector := metrics.New()

	fetcher := index.NewFetcher(&http.Client{Timeout: 60 * time.Second})
	ic := indexcache.New(cfg.CacheExpiration(), fetcher, indexcache.NoopPrecomputer{}, pool)

	sw := sweeper.New(ic, sweeper.DefaultInterval, func(evicted int) {
		metricsCollector.RecordCacheEvictions(evicted)
		if evicted > 0 {
			log.V(1).Info("sweep evicted stale entries", "count", evicted)
		}
	})
	sw.Start()
	defer sw.Stop()

	p := &pipeline.Pipeline{
		IndexCache:   ic,
		Backend:      backend,
		Pool:         pool,
		Metrics:      metricsCollector,
		ChannelAlias: query.DefaultAlias,
		Concurrency:  cfg.ConcurrentDownloadsPerRequest(),
	}

	server := httpapi.NewServer(p, ic, metricsCollector, log)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port()),
		Handler: server.Handler(),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", httpServer.Addr, "solver", backend.Name())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-serveErr:
		return err
	}
}

func selectBackend(name string) (solver.Backend, error) {
	switch name {
	case "", "portable":
		return portable.New(0), nil
	case "noop":
		return noop.New(), nil
	default:
		return nil, fmt.Errorf("unknown solver backend %q", name)
	}
}
