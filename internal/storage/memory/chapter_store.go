// Package memory provides an in-memory chapter store used in tests and dry
// runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/novelgrab/novelgrab/internal/novel"
	"github.com/novelgrab/novelgrab/internal/storage/local"
)

// ChapterStore keeps chapters in a map keyed by filename.
type ChapterStore struct {
	mu       sync.Mutex
	chapters map[string]novel.ChapterRecord
}

// NewChapterStore returns an empty in-memory store.
func NewChapterStore() *ChapterStore {
	return &ChapterStore{chapters: make(map[string]novel.ChapterRecord)}
}

// SaveChapter stores the record under the same filename the local store would
// use, so both stores are interchangeable in progress files.
func (s *ChapterStore) SaveChapter(_ context.Context, rec novel.ChapterRecord) (string, error) {
	name := local.Filename(rec.Index, rec.Title)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chapters[name] = rec
	return name, nil
}

// LoadChapter returns a previously saved record.
func (s *ChapterStore) LoadChapter(_ context.Context, filename string) (novel.ChapterRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.chapters[filename]
	if !ok {
		return novel.ChapterRecord{}, fmt.Errorf("chapter %s not stored", filename)
	}
	return rec, nil
}

// Len reports how many chapters are stored.
func (s *ChapterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chapters)
}
