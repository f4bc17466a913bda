// Package local persists chapters as markdown files on the local filesystem.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/novelgrab/novelgrab/internal/extractor"
	"github.com/novelgrab/novelgrab/internal/novel"
)

// ChapterStore writes one markdown file per chapter under dir. Filenames are
// zero padded so a plain directory listing is already in catalog order.
type ChapterStore struct {
	dir    string
	logger *zap.Logger
}

// NewChapterStore creates the chapter directory and returns a store over it.
func NewChapterStore(dir string, logger *zap.Logger) (*ChapterStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chapter dir %s: %w", dir, err)
	}
	return &ChapterStore{dir: dir, logger: logger}, nil
}

// Dir returns the directory chapters are written to.
func (s *ChapterStore) Dir() string { return s.dir }

// SaveChapter writes the chapter to disk and returns the filename relative to
// the store directory.
func (s *ChapterStore) SaveChapter(ctx context.Context, rec novel.ChapterRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := Filename(rec.Index, rec.Title)
	path := filepath.Join(s.dir, name)

	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(rec.Title)
	b.WriteString("\n\n")
	b.WriteString(rec.Body)
	b.WriteString("\n")

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write chapter %d: %w", rec.Index, err)
	}
	s.logger.Debug("chapter saved",
		zap.Int("index", rec.Index),
		zap.String("file", name),
	)
	return name, nil
}

// LoadChapter reads a chapter file back. The index is recovered from the
// filename prefix and the title from the heading line.
func (s *ChapterStore) LoadChapter(ctx context.Context, filename string) (novel.ChapterRecord, error) {
	if err := ctx.Err(); err != nil {
		return novel.ChapterRecord{}, err
	}
	raw, err := os.ReadFile(filepath.Join(s.dir, filename))
	if err != nil {
		return novel.ChapterRecord{}, fmt.Errorf("read chapter file %s: %w", filename, err)
	}

	rec := novel.ChapterRecord{Status: novel.StatusDone}
	if idx, ok := indexFromFilename(filename); ok {
		rec.Index = idx
	}
	content := string(raw)
	if title, rest, ok := splitHeading(content); ok {
		rec.Title = title
		rec.Body = rest
	} else {
		rec.Body = strings.TrimSpace(content)
	}
	return rec, nil
}

// Filename builds the on-disk name for a chapter: a zero padded index and the
// sanitized title.
func Filename(index int, title string) string {
	return fmt.Sprintf("%03d_%s.md", index, extractor.SanitizeFilename(title))
}

func indexFromFilename(name string) (int, bool) {
	base := filepath.Base(name)
	us := strings.IndexByte(base, '_')
	if us <= 0 {
		return 0, false
	}
	idx, err := strconv.Atoi(base[:us])
	if err != nil {
		return 0, false
	}
	return idx, true
}

func splitHeading(content string) (title, body string, ok bool) {
	content = strings.TrimLeft(content, "\n")
	if !strings.HasPrefix(content, "# ") {
		return "", "", false
	}
	nl := strings.IndexByte(content, '\n')
	if nl < 0 {
		return strings.TrimSpace(content[2:]), "", true
	}
	return strings.TrimSpace(content[2:nl]), strings.TrimSpace(content[nl:]), true
}
