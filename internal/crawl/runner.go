// Package crawl wires the catalog builder, scheduler and stores into a full
// crawl run.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/novelgrab/novelgrab/internal/api"
	"github.com/novelgrab/novelgrab/internal/assembler"
	"github.com/novelgrab/novelgrab/internal/catalog"
	"github.com/novelgrab/novelgrab/internal/clock/system"
	"github.com/novelgrab/novelgrab/internal/config"
	"github.com/novelgrab/novelgrab/internal/extractor"
	collyfetcher "github.com/novelgrab/novelgrab/internal/fetcher/colly"
	"github.com/novelgrab/novelgrab/internal/fetcher/headless"
	"github.com/novelgrab/novelgrab/internal/hash/sha256"
	"github.com/novelgrab/novelgrab/internal/metrics"
	"github.com/novelgrab/novelgrab/internal/novel"
	"github.com/novelgrab/novelgrab/internal/progress"
	"github.com/novelgrab/novelgrab/internal/scheduler"
	"github.com/novelgrab/novelgrab/internal/storage/local"
)

// Options select what a single run does.
type Options struct {
	StartLocator string
	// ChapterStart means StartLocator points at a chapter page and the
	// catalog is discovered by walking next links.
	ChapterStart bool
	Resume       bool
}

// Report summarizes a finished run.
type Report struct {
	NovelID  string
	NovelDir string
	Catalog  novel.Catalog
	Plan     progress.Plan
	Summary  scheduler.Summary
}

// Runner owns the long-lived pieces of a crawl.
type Runner struct {
	cfg     config.Config
	logger  *zap.Logger
	met     *metrics.Metrics
	clock   novel.Clock
	fetcher novel.Fetcher
	closeFn func()
}

// Option customizes a Runner, mainly for tests.
type Option func(*Runner)

// WithFetcher replaces the fetcher chosen from configuration.
func WithFetcher(f novel.Fetcher) Option {
	return func(r *Runner) { r.fetcher = f }
}

// WithClock replaces the wall clock.
func WithClock(c novel.Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// NewRunner builds a Runner from configuration. Call Close when done.
func NewRunner(cfg config.Config, logger *zap.Logger, opts ...Option) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		cfg:    cfg,
		logger: logger,
		met:    metrics.New(),
		clock:  system.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.fetcher == nil {
		if cfg.Headless.Enabled {
			hf, err := headless.NewChromedp(headless.Config{
				MaxParallel:       cfg.Headless.MaxParallel,
				UserAgent:         cfg.Crawler.UserAgent,
				NavigationTimeout: cfg.Headless.NavTimeout(),
			})
			if err != nil {
				return nil, err
			}
			r.fetcher = hf
			r.closeFn = hf.Close
		} else {
			r.fetcher = collyfetcher.New(collyfetcher.Config{
				UserAgent: cfg.Crawler.UserAgent,
				Timeout:   cfg.Crawler.Timeout(),
			})
		}
	}
	return r, nil
}

// Close releases fetcher resources.
func (r *Runner) Close() {
	if r.closeFn != nil {
		r.closeFn()
	}
}

// Metrics exposes the run's collectors.
func (r *Runner) Metrics() *metrics.Metrics { return r.met }

// Run executes a full crawl: build the catalog, reconcile progress, fetch
// everything outstanding.
func (r *Runner) Run(ctx context.Context, opts Options) (Report, error) {
	if opts.StartLocator == "" {
		return Report{}, fmt.Errorf("start locator required")
	}

	ex := extractor.NewSite(r.fetcher, extractor.Generic(), r.logger)
	builder := catalog.New(ex, r.cfg.Crawler.MaxChapters, r.logger)

	cat, err := builder.Build(ctx, opts.StartLocator, opts.ChapterStart)
	if err != nil {
		return Report{}, err
	}

	novelID := sha256.NovelID(opts.StartLocator)
	dir := filepath.Join(r.cfg.Output.Dir, novelID)

	store, err := local.NewChapterStore(filepath.Join(dir, "chapters"), r.logger)
	if err != nil {
		return Report{}, err
	}
	prog, err := progress.New(dir, r.clock, r.logger)
	if err != nil {
		return Report{}, err
	}

	plan, err := prog.Reconcile(ctx, novelID, cat, opts.Resume)
	if err != nil {
		return Report{}, err
	}
	if plan.Stale {
		r.logger.Warn("catalog changed since the saved run, refetching every chapter",
			zap.String("novel", cat.NovelName),
			zap.Int("chapters", cat.Len()),
		)
	}

	report := Report{NovelID: novelID, NovelDir: dir, Catalog: cat, Plan: plan}
	if len(plan.ToFetch) == 0 {
		r.logger.Info("nothing to fetch, all chapters already stored",
			zap.String("novel", cat.NovelName))
		return report, nil
	}

	stopServer := r.maybeServe(prog)
	defer stopServer()

	sched, err := scheduler.New(ex, store, prog, r.clock, novel.JobConfig{
		Concurrency: r.cfg.Crawler.Concurrency,
		DelayMin:    r.cfg.Crawler.DelayMin(),
		DelayMax:    r.cfg.Crawler.DelayMax(),
		MaxRetries:  uint(r.cfg.Crawler.MaxRetries),
		MaxChapters: r.cfg.Crawler.MaxChapters,
		Resume:      opts.Resume,
	}, r.met, r.logger)
	if err != nil {
		return Report{}, err
	}

	summary, err := sched.Run(ctx, plan.ToFetch)
	report.Summary = summary
	if err != nil {
		return report, err
	}
	if summary.Aborted {
		return report, fmt.Errorf("crawl aborted: %w", summary.AbortErr)
	}

	r.logger.Info("crawl finished",
		zap.String("novel", cat.NovelName),
		zap.Int("done", summary.Done),
		zap.Int("failed", len(summary.Failed)),
		zap.Int("skipped", plan.Skipped),
	)
	return report, nil
}

// maybeServe starts the status server when enabled and returns a stopper.
func (r *Runner) maybeServe(prog *progress.Store) func() {
	if !r.cfg.Server.Enabled {
		return func() {}
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", r.cfg.Server.Port),
		Handler:           api.NewServer(prog, r.met, r.logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("status server", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// Assemble builds the combined document for a previously crawled novel.
func Assemble(ctx context.Context, cfg config.Config, startLocator, outPath string, partial bool, logger *zap.Logger) (assembler.Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	novelID := sha256.NovelID(startLocator)
	dir := filepath.Join(cfg.Output.Dir, novelID)

	prog, err := progress.New(dir, system.New(), logger)
	if err != nil {
		return assembler.Result{}, err
	}
	st, err := prog.Load(ctx)
	if err != nil {
		return assembler.Result{}, err
	}
	store, err := local.NewChapterStore(filepath.Join(dir, "chapters"), logger)
	if err != nil {
		return assembler.Result{}, err
	}
	if outPath == "" {
		name := extractor.SanitizeFilename(st.NovelName)
		outPath = filepath.Join(dir, name+".md")
	}
	return assembler.New(store, logger).Assemble(ctx, st, outPath, partial)
}

// Status loads the saved progress for a start locator.
func Status(ctx context.Context, cfg config.Config, startLocator string) (progress.State, error) {
	novelID := sha256.NovelID(startLocator)
	dir := filepath.Join(cfg.Output.Dir, novelID)
	prog, err := progress.New(dir, system.New(), nil)
	if err != nil {
		return progress.State{}, err
	}
	return prog.Load(ctx)
}
