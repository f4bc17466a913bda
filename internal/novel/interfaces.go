package novel

import (
	"context"
	"time"
)

// Fetcher retrieves a raw document for a locator. Implementations classify
// their errors with MarkTransient, MarkParseFailure or MarkAccessFailure so
// callers can decide whether to retry.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) (Page, error)
}

// PageExtractor fetches and parses site pages into domain objects.
type PageExtractor interface {
	FetchChapterPage(ctx context.Context, locator string) (ChapterPage, error)
	FetchCatalogPage(ctx context.Context, locator string) (CatalogPage, error)
}

// ChapterStore persists fetched chapter bodies.
type ChapterStore interface {
	SaveChapter(ctx context.Context, rec ChapterRecord) (filename string, err error)
	LoadChapter(ctx context.Context, filename string) (ChapterRecord, error)
}

// ResultRecorder durably records the outcome of one chapter fetch. The
// scheduler calls it synchronously after the chapter body is stored and
// before the worker claims its next index.
type ResultRecorder interface {
	RecordResult(ctx context.Context, outcome Outcome, filename string) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}
