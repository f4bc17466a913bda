// Package catalog turns a starting point into a strictly ordered, signed
// sequence of chapter references.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/novelgrab/novelgrab/internal/extractor"
	"github.com/novelgrab/novelgrab/internal/hash/sha256"
	"github.com/novelgrab/novelgrab/internal/novel"
)

// Builder constructs catalogs via the page extraction capability.
type Builder struct {
	ex          novel.PageExtractor
	maxChapters int
	logger      *zap.Logger
}

// New creates a Builder. maxChapters of 0 means unlimited.
func New(ex novel.PageExtractor, maxChapters int, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{ex: ex, maxChapters: maxChapters, logger: logger}
}

// Build produces an immutable catalog from a start point. When chapterStart
// is true the start point is a single chapter page and the chapter chain is
// walked via "next" pointers; otherwise the start point is a catalog page.
func (b *Builder) Build(ctx context.Context, start string, chapterStart bool) (novel.Catalog, error) {
	if chapterStart {
		return b.buildFromChain(ctx, start)
	}
	return b.buildFromCatalogPage(ctx, start)
}

func (b *Builder) buildFromCatalogPage(ctx context.Context, start string) (novel.Catalog, error) {
	page, err := b.ex.FetchCatalogPage(ctx, start)
	if err != nil {
		return novel.Catalog{}, fmt.Errorf("%w: %w", novel.ErrExtractionFailed, err)
	}
	if len(page.Entries) == 0 {
		return novel.Catalog{}, fmt.Errorf("%w: %s", novel.ErrCatalogEmpty, start)
	}

	entries := page.Entries
	if b.maxChapters > 0 && len(entries) > b.maxChapters {
		entries = entries[:b.maxChapters]
	}

	cat := novel.Catalog{
		NovelName: page.NovelName,
		Author:    page.Author,
		Refs:      make([]novel.ChapterRef, 0, len(entries)),
	}
	locators := make([]string, 0, len(entries))
	for i, e := range entries {
		cat.Refs = append(cat.Refs, novel.ChapterRef{Index: i, Title: e.Title, Locator: e.Locator})
		locators = append(locators, e.Locator)
	}
	cat.Signature = sha256.Signature(locators)

	b.warnOnTitleOrder(cat)
	b.logger.Info("catalog built",
		zap.String("novel", cat.NovelName),
		zap.Int("chapters", cat.Len()),
		zap.String("signature", cat.Signature[:12]),
	)
	return cat, nil
}

// buildFromChain walks "next" pointers starting from a chapter page. The walk
// stops when no next pointer is returned, the pointer escapes to an index
// page, the configured limit is reached, or a locator repeats (cycle).
func (b *Builder) buildFromChain(ctx context.Context, start string) (novel.Catalog, error) {
	seen := make(map[string]struct{})
	cat := novel.Catalog{}
	var locators []string

	current := start
	for current != "" {
		if _, cycle := seen[current]; cycle {
			b.logger.Warn("next-chain cycle detected, stopping traversal",
				zap.String("locator", current))
			break
		}
		if b.maxChapters > 0 && len(cat.Refs) >= b.maxChapters {
			break
		}
		seen[current] = struct{}{}

		page, err := b.ex.FetchChapterPage(ctx, current)
		if err != nil {
			if len(cat.Refs) == 0 {
				return novel.Catalog{}, fmt.Errorf("%w: %w", novel.ErrExtractionFailed, err)
			}
			// A broken link mid-chain ends discovery; the chapters found so
			// far are still a valid catalog.
			b.logger.Warn("next-chain broken, stopping traversal",
				zap.String("locator", current), zap.Error(err))
			break
		}

		if cat.NovelName == "" {
			cat.NovelName = page.NovelName
		}
		if cat.Author == "" {
			cat.Author = page.Author
		}
		cat.Refs = append(cat.Refs, novel.ChapterRef{
			Index:   len(cat.Refs),
			Title:   page.Title,
			Locator: current,
		})
		locators = append(locators, current)

		next := page.NextLocator
		if next == "" || next == current {
			break
		}
		if extractor.IsIndexLocator(next) {
			b.logger.Debug("next pointer leads to index page, stopping",
				zap.String("next", next))
			break
		}
		current = next
	}

	if len(cat.Refs) == 0 {
		return novel.Catalog{}, fmt.Errorf("%w: %s", novel.ErrCatalogEmpty, start)
	}
	cat.Signature = sha256.Signature(locators)

	b.logger.Info("catalog built from chapter chain",
		zap.String("novel", cat.NovelName),
		zap.Int("chapters", cat.Len()),
		zap.String("signature", cat.Signature[:12]),
	)
	return cat, nil
}

// warnOnTitleOrder flags catalogs whose numbered titles disagree with the
// document order. The order is never changed: silently reordering chapters
// would corrupt the output with no detectable signal, so the operator is
// warned instead.
func (b *Builder) warnOnTitleOrder(cat novel.Catalog) {
	prev, prevOK := 0, false
	inversions := 0
	for _, ref := range cat.Refs {
		n, ok := extractor.ChapterNumber(ref.Title)
		if !ok {
			continue
		}
		if prevOK && n < prev {
			inversions++
		}
		prev, prevOK = n, true
	}
	if inversions > 0 {
		b.logger.Warn("chapter titles disagree with catalog order",
			zap.Int("inversions", inversions),
			zap.String("novel", cat.NovelName),
		)
	}
}

// IsFatal reports whether a build error leaves nothing to fetch.
func IsFatal(err error) bool {
	return errors.Is(err, novel.ErrCatalogEmpty) || errors.Is(err, novel.ErrExtractionFailed)
}
