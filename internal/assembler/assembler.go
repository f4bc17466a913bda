// Package assembler stitches fetched chapters into a single document in
// catalog order.
package assembler

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/novelgrab/novelgrab/internal/novel"
	"github.com/novelgrab/novelgrab/internal/progress"
)

// Assembler reads stored chapters and writes the combined novel file.
type Assembler struct {
	store  novel.ChapterStore
	logger *zap.Logger
}

// New builds an assembler over a chapter store.
func New(store novel.ChapterStore, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{store: store, logger: logger}
}

// Result describes an assembled document.
type Result struct {
	Path     string
	Included int
	Missing  int
}

// Assemble writes the novel to outPath. In strict mode any chapter that is
// not done fails the whole assembly with ErrIncompleteCatalog. With partial
// true the longest contiguous run of done chapters starting at index zero is
// written instead and the missing count reported.
func (a *Assembler) Assemble(ctx context.Context, st progress.State, outPath string, partial bool) (Result, error) {
	entries, missing, err := selectEntries(st, partial)
	if err != nil {
		return Result{}, err
	}
	if len(entries) == 0 {
		return Result{}, fmt.Errorf("%w: nothing fetched yet", novel.ErrIncompleteCatalog)
	}

	var b strings.Builder
	writeHeader(&b, st, entries)

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		rec, err := a.store.LoadChapter(ctx, e.Filename)
		if err != nil {
			return Result{}, fmt.Errorf("chapter %d: %w", e.Index, err)
		}
		b.WriteString("## ")
		b.WriteString(e.Title)
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(rec.Body))
		b.WriteString("\n\n---\n\n")
	}

	if err := os.WriteFile(outPath, []byte(b.String()), 0o644); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", outPath, err)
	}

	a.logger.Info("novel assembled",
		zap.String("path", outPath),
		zap.Int("chapters", len(entries)),
		zap.Int("missing", missing),
	)
	return Result{Path: outPath, Included: len(entries), Missing: missing}, nil
}

// selectEntries walks indices in order and decides which chapters to
// include. Order comes from the catalog indices, never from re-sorting.
func selectEntries(st progress.State, partial bool) ([]progress.Entry, int, error) {
	var entries []progress.Entry
	for i := 0; i < st.TotalChapters; i++ {
		e, ok := st.Chapters[i]
		if !ok || e.Status != novel.StatusDone {
			if !partial {
				return nil, 0, fmt.Errorf("%w: chapter %d not fetched",
					novel.ErrIncompleteCatalog, i)
			}
			return entries, st.TotalChapters - len(entries), nil
		}
		entries = append(entries, e)
	}
	return entries, 0, nil
}

func writeHeader(b *strings.Builder, st progress.State, entries []progress.Entry) {
	b.WriteString("# ")
	b.WriteString(st.NovelName)
	b.WriteString("\n\n")
	if st.Author != "" {
		b.WriteString("作者: ")
		b.WriteString(st.Author)
		b.WriteString("\n\n")
	}
	b.WriteString("## 目录\n\n")
	for i, e := range entries {
		fmt.Fprintf(b, "%d. %s\n", i+1, e.Title)
	}
	b.WriteString("\n---\n\n")
}
