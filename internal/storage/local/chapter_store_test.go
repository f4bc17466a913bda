package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/novelgrab/novelgrab/internal/novel"
)

func TestSaveAndLoadChapter(t *testing.T) {
	t.Parallel()

	store, err := NewChapterStore(t.TempDir(), nil)
	require.NoError(t, err)

	rec := novel.ChapterRecord{
		Index:     7,
		Title:     "第七章 山雨欲来",
		Body:      "雨下了整整一夜。\n\n天亮时分才停。",
		Locator:   "https://example.com/7.html",
		FetchedAt: time.Now().UTC(),
		Status:    novel.StatusDone,
	}
	name, err := store.SaveChapter(context.Background(), rec)
	require.NoError(t, err)
	require.Equal(t, "007_第七章 山雨欲来.md", name)

	raw, err := os.ReadFile(filepath.Join(store.Dir(), name))
	require.NoError(t, err)
	require.Contains(t, string(raw), "# 第七章 山雨欲来\n\n雨下了整整一夜。")

	loaded, err := store.LoadChapter(context.Background(), name)
	require.NoError(t, err)
	require.Equal(t, 7, loaded.Index)
	require.Equal(t, rec.Title, loaded.Title)
	require.Equal(t, rec.Body, loaded.Body)
	require.Equal(t, novel.StatusDone, loaded.Status)
}

func TestFilenameSanitizesTitle(t *testing.T) {
	t.Parallel()

	require.Equal(t, "012_a_b_c.md", Filename(12, `a/b:c`))
	require.Equal(t, "000_unknown.md", Filename(0, ""))
}

func TestLoadChapterMissing(t *testing.T) {
	t.Parallel()

	store, err := NewChapterStore(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = store.LoadChapter(context.Background(), "001_nope.md")
	require.Error(t, err)
}
