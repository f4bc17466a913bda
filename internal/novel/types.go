// Package novel holds the domain types shared across the crawler: chapter
// references, catalogs, fetched pages and job configuration. Packages deeper
// in the stack depend on this one and never the other way around.
package novel

import "time"

// FetchStatus is the lifecycle state of a single chapter.
type FetchStatus string

const (
	StatusPending  FetchStatus = "pending"
	StatusFetching FetchStatus = "fetching"
	StatusDone     FetchStatus = "done"
	StatusFailed   FetchStatus = "failed"
)

// FailureKind records why a chapter ended up failed. Empty means no failure.
type FailureKind string

const (
	FailureNone               FailureKind = ""
	FailureTransientExhausted FailureKind = "transient_exhausted"
	FailurePermanentParse     FailureKind = "permanent_parse"
	FailurePermanentAccess    FailureKind = "permanent_access"
)

// ChapterRef is one entry of a catalog: a position plus the locator to fetch.
type ChapterRef struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Locator string `json:"locator"`
}

// Catalog is the ordered, immutable list of chapters discovered for a novel.
// Signature fingerprints the ordered locator sequence so a resumed run can
// detect that the source changed underneath saved progress.
type Catalog struct {
	NovelName string       `json:"novel_name"`
	Author    string       `json:"author"`
	Refs      []ChapterRef `json:"refs"`
	Signature string       `json:"signature"`
}

// Len returns the number of chapters in the catalog.
func (c Catalog) Len() int { return len(c.Refs) }

// ChapterRecord is a fetched chapter ready for persistence.
type ChapterRecord struct {
	Index     int         `json:"index"`
	Title     string      `json:"title"`
	Body      string      `json:"body"`
	Locator   string      `json:"locator"`
	FetchedAt time.Time   `json:"fetched_at"`
	Status    FetchStatus `json:"status"`
}

// ChapterPage is the parsed form of a single chapter page.
type ChapterPage struct {
	Title        string
	Body         string
	NextLocator  string
	PrevLocator  string
	IndexLocator string
	NovelName    string
	Author       string
}

// CatalogEntry is one chapter link found on a catalog page.
type CatalogEntry struct {
	Title   string
	Locator string
}

// CatalogPage is the parsed form of a catalog (table of contents) page.
type CatalogPage struct {
	NovelName string
	Author    string
	Entries   []CatalogEntry
}

// Page is a raw fetched document.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// JobConfig bounds a crawl run.
type JobConfig struct {
	Concurrency int
	DelayMin    time.Duration
	DelayMax    time.Duration
	MaxRetries  uint
	MaxChapters int
	Resume      bool
}

// Outcome is the terminal result of one chapter fetch attempt sequence.
type Outcome struct {
	Index  int
	Record ChapterRecord
	Kind   FailureKind
	Err    error
}

// Done reports whether the outcome is a successful fetch.
func (o Outcome) Done() bool { return o.Err == nil && o.Kind == FailureNone }
