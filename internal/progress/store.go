// Package progress persists crawl state so interrupted runs resume without
// refetching finished chapters.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/novelgrab/novelgrab/internal/novel"
)

const stateFile = "progress.json"

// Entry is the persisted state of one chapter.
type Entry struct {
	Index       int               `json:"index"`
	Title       string            `json:"title"`
	Locator     string            `json:"locator"`
	Filename    string            `json:"filename,omitempty"`
	Status      novel.FetchStatus `json:"status"`
	FailureKind novel.FailureKind `json:"failure_kind,omitempty"`
	FetchedAt   time.Time         `json:"fetched_at,omitempty"`
}

// State is the full progress file contents.
type State struct {
	NovelID          string        `json:"novel_id"`
	RunID            string        `json:"run_id"`
	NovelName        string        `json:"novel_name"`
	Author           string        `json:"author,omitempty"`
	CatalogSignature string        `json:"catalog_signature"`
	TotalChapters    int           `json:"total_chapters"`
	Chapters         map[int]Entry `json:"chapters"`
	LastUpdated      time.Time     `json:"last_updated"`
}

// Completed counts chapters recorded as done.
func (s State) Completed() int {
	n := 0
	for _, e := range s.Chapters {
		if e.Status == novel.StatusDone {
			n++
		}
	}
	return n
}

// Failed counts chapters recorded as failed.
func (s State) Failed() int {
	n := 0
	for _, e := range s.Chapters {
		if e.Status == novel.StatusFailed {
			n++
		}
	}
	return n
}

// Plan is the outcome of reconciling saved progress with a fresh catalog.
// Stale means a resume was requested but the saved signature no longer
// matches, so the plan refetches everything.
type Plan struct {
	ToFetch []novel.ChapterRef
	Skipped int
	Stale   bool
}

// Store is a file-backed progress store. Every mutation is written through
// to disk before it returns, via a temp file and rename so a crash never
// leaves a torn progress file behind.
type Store struct {
	mu     sync.Mutex
	dir    string
	state  State
	clock  novel.Clock
	logger *zap.Logger
}

// New opens a store rooted at dir, creating the directory if needed.
func New(dir string, clock novel.Clock, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create progress dir %s: %w", dir, err)
	}
	return &Store{dir: dir, clock: clock, logger: logger}, nil
}

// Path returns the progress file location.
func (s *Store) Path() string { return filepath.Join(s.dir, stateFile) }

// Load reads the progress file from disk. It returns ErrProgressNotFound if
// no previous run saved state here.
func (s *Store) Load(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	raw, err := os.ReadFile(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return State{}, novel.ErrProgressNotFound
	}
	if err != nil {
		return State{}, fmt.Errorf("read progress: %w", err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, fmt.Errorf("decode progress: %w", err)
	}
	if st.Chapters == nil {
		st.Chapters = make(map[int]Entry)
	}
	return st, nil
}

// Reconcile matches saved progress against a freshly built catalog and
// returns the chapters that still need fetching. With resume false any
// saved state is discarded. With resume true a catalog whose signature
// differs from the saved one marks the plan stale: the saved completed set
// cannot be trusted against shifted indices, so everything is refetched,
// but the condition is surfaced on the plan instead of failing the run.
func (s *Store) Reconcile(ctx context.Context, novelID string, cat novel.Catalog, resume bool) (Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.Load(ctx)
	fresh := false
	stale := false
	switch {
	case errors.Is(err, novel.ErrProgressNotFound):
		fresh = true
	case err != nil:
		return Plan{}, err
	case !resume:
		fresh = true
	case prev.CatalogSignature != cat.Signature:
		fresh = true
		stale = true
		s.logger.Warn("saved progress does not match the current catalog, starting fresh",
			zap.Int("saved_chapters", len(prev.Chapters)),
			zap.Error(novel.ErrStaleProgress),
		)
	}

	st := State{
		NovelID:          novelID,
		RunID:            uuid.NewString(),
		NovelName:        cat.NovelName,
		Author:           cat.Author,
		CatalogSignature: cat.Signature,
		TotalChapters:    cat.Len(),
		Chapters:         make(map[int]Entry, cat.Len()),
		LastUpdated:      s.clock.Now(),
	}

	plan := Plan{Stale: stale}
	for _, ref := range cat.Refs {
		if !fresh {
			if e, ok := prev.Chapters[ref.Index]; ok && e.Status == novel.StatusDone {
				st.Chapters[ref.Index] = e
				plan.Skipped++
				continue
			}
		}
		st.Chapters[ref.Index] = Entry{
			Index:   ref.Index,
			Title:   ref.Title,
			Locator: ref.Locator,
			Status:  novel.StatusPending,
		}
		plan.ToFetch = append(plan.ToFetch, ref)
	}

	s.state = st
	if err := s.persistLocked(); err != nil {
		return Plan{}, err
	}
	s.logger.Info("progress reconciled",
		zap.String("run_id", st.RunID),
		zap.Int("to_fetch", len(plan.ToFetch)),
		zap.Int("skipped", plan.Skipped),
	)
	return plan, nil
}

// RecordResult durably records the outcome for one chapter. Finished
// chapters are never demoted, so replaying an outcome is harmless.
func (s *Store) RecordResult(ctx context.Context, outcome novel.Outcome, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.state.Chapters[outcome.Index]
	if e.Status == novel.StatusDone {
		return nil
	}
	e.Index = outcome.Index
	if outcome.Done() {
		e.Title = outcome.Record.Title
		e.Locator = outcome.Record.Locator
		e.Filename = filename
		e.Status = novel.StatusDone
		e.FailureKind = novel.FailureNone
		e.FetchedAt = outcome.Record.FetchedAt
	} else {
		e.Status = novel.StatusFailed
		e.FailureKind = outcome.Kind
	}
	s.state.Chapters[outcome.Index] = e
	s.state.LastUpdated = s.clock.Now()
	return s.persistLocked()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := s.state
	cp.Chapters = make(map[int]Entry, len(s.state.Chapters))
	for k, v := range s.state.Chapters {
		cp.Chapters[k] = v
	}
	return cp
}

func (s *Store) persistLocked() error {
	raw, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, stateFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp progress file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write progress: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close progress file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace progress file: %w", err)
	}
	return nil
}
