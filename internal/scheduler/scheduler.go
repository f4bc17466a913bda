// Package scheduler runs the bounded worker pool that fetches chapters with
// politeness delays and retry.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"

	"github.com/novelgrab/novelgrab/internal/metrics"
	"github.com/novelgrab/novelgrab/internal/novel"
)

// maxAttemptDelay caps the exponential growth of retry delays.
const maxAttemptDelay = 2 * time.Minute

// Scheduler coordinates a fixed pool of workers over a list of chapters.
// Each claimed chapter is fetched, stored and durably recorded before the
// worker claims the next one, so a crash loses at most one in-flight chapter
// per worker.
type Scheduler struct {
	ex       novel.PageExtractor
	store    novel.ChapterStore
	recorder novel.ResultRecorder
	clock    novel.Clock
	cfg      novel.JobConfig
	met      *metrics.Metrics
	logger   *zap.Logger
}

// Summary reports what a run accomplished.
type Summary struct {
	Done     int
	Failed   map[int]novel.FailureKind
	Aborted  bool
	AbortErr error
}

// FailedPermanent counts chapters that failed with a permanent kind.
func (s Summary) FailedPermanent() int {
	n := 0
	for _, kind := range s.Failed {
		if kind == novel.FailurePermanentParse || kind == novel.FailurePermanentAccess {
			n++
		}
	}
	return n
}

// FailedTransientExhausted counts chapters that ran out of retries.
func (s Summary) FailedTransientExhausted() int {
	n := 0
	for _, kind := range s.Failed {
		if kind == novel.FailureTransientExhausted {
			n++
		}
	}
	return n
}

// New builds a scheduler. The metrics instance must not be nil; pass a fresh
// metrics.New() when nothing scrapes it.
func New(
	ex novel.PageExtractor,
	store novel.ChapterStore,
	recorder novel.ResultRecorder,
	clock novel.Clock,
	cfg novel.JobConfig,
	met *metrics.Metrics,
	logger *zap.Logger,
) (*Scheduler, error) {
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be >= 1, got %d", cfg.Concurrency)
	}
	if cfg.DelayMax < cfg.DelayMin {
		return nil, fmt.Errorf("delay max %s below delay min %s", cfg.DelayMax, cfg.DelayMin)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		ex:       ex,
		store:    store,
		recorder: recorder,
		clock:    clock,
		cfg:      cfg,
		met:      met,
		logger:   logger,
	}, nil
}

// Run fetches every chapter in refs and blocks until all workers drain or
// the run aborts. Chapters claimed but unfinished at abort time are left
// unrecorded so a resumed run picks them up again.
func (s *Scheduler) Run(ctx context.Context, refs []novel.ChapterRef) (Summary, error) {
	runCtx, abort := context.WithCancel(ctx)
	defer abort()

	claims := make(chan novel.ChapterRef)
	go func() {
		defer close(claims)
		for _, ref := range refs {
			select {
			case claims <- ref:
			case <-runCtx.Done():
				return
			}
		}
	}()

	var (
		mu      sync.Mutex
		summary = Summary{Failed: make(map[int]novel.FailureKind)}
	)
	record := func(out novel.Outcome, filename string) {
		if err := s.recorder.RecordResult(runCtx, out, filename); err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Error("record result", zap.Int("index", out.Index), zap.Error(err))
			}
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if out.Done() {
			summary.Done++
		} else {
			summary.Failed[out.Index] = out.Kind
		}
	}

	workers := s.cfg.Concurrency
	if n := len(refs); n < workers {
		workers = n
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			s.met.WorkerStarted()
			defer s.met.WorkerStopped()

			for ref := range claims {
				if runCtx.Err() != nil {
					return
				}
				out := s.fetchOne(runCtx, ref)
				if runCtx.Err() != nil && !out.Done() {
					// Cancelled mid-fetch; leave the chapter unrecorded.
					return
				}
				var filename string
				if out.Done() {
					var err error
					filename, err = s.store.SaveChapter(runCtx, out.Record)
					if err != nil {
						s.logger.Error("save chapter",
							zap.Int("index", ref.Index), zap.Error(err))
						out = novel.Outcome{
							Index: ref.Index,
							Kind:  novel.FailureTransientExhausted,
							Err:   err,
						}
					}
				}
				record(out, filename)

				if out.Kind == novel.FailurePermanentAccess {
					mu.Lock()
					summary.Aborted = true
					summary.AbortErr = out.Err
					mu.Unlock()
					s.logger.Error("access denied by site, aborting run",
						zap.Int("index", ref.Index), zap.Error(out.Err))
					abort()
					return
				}
			}
		}(w)
	}
	wg.Wait()

	if ctx.Err() != nil && !summary.Aborted {
		return summary, ctx.Err()
	}
	return summary, nil
}

// fetchOne runs the full retry sequence for a single chapter.
func (s *Scheduler) fetchOne(ctx context.Context, ref novel.ChapterRef) novel.Outcome {
	s.politeDelay(ctx)

	var page novel.ChapterPage
	start := time.Now()
	err := retry.Do(
		func() error {
			var err error
			page, err = s.ex.FetchChapterPage(ctx, ref.Locator)
			if err != nil && novel.ClassOf(err) != novel.ClassTransient {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(s.cfg.MaxRetries+1),
		retry.DelayType(s.retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.met.RetryObserved()
			s.logger.Warn("retrying chapter",
				zap.Int("index", ref.Index),
				zap.Uint("attempt", n+1),
				zap.Error(err),
			)
		}),
	)
	s.met.FetchObserved(time.Since(start).Seconds())

	if err != nil {
		kind := novel.KindForClass(novel.ClassOf(err))
		s.met.ChapterFailed(string(kind))
		return novel.Outcome{Index: ref.Index, Kind: kind, Err: err}
	}

	title := page.Title
	if title == "" {
		title = ref.Title
	}
	s.met.ChapterDone()
	return novel.Outcome{
		Index: ref.Index,
		Record: novel.ChapterRecord{
			Index:     ref.Index,
			Title:     title,
			Body:      page.Body,
			Locator:   ref.Locator,
			FetchedAt: s.clock.Now(),
			Status:    novel.StatusDone,
		},
	}
}

// retryDelay grows the politeness jitter exponentially with the attempt
// number. n is zero based, so the first retry waits one doubled jitter.
func (s *Scheduler) retryDelay(n uint, _ error, _ *retry.Config) time.Duration {
	d := s.jitter() << (n + 1)
	if d > maxAttemptDelay || d < 0 {
		d = maxAttemptDelay
	}
	return d
}

// politeDelay sleeps a random duration inside the configured window before a
// chapter's first attempt. A zero window means no sleep, which tests rely on.
func (s *Scheduler) politeDelay(ctx context.Context) {
	d := s.jitter()
	if d <= 0 {
		return
	}
	s.met.DelayObserved(d.Seconds())
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (s *Scheduler) jitter() time.Duration {
	min, max := s.cfg.DelayMin, s.cfg.DelayMax
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}
