package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/novelgrab/novelgrab/internal/config"
	"github.com/novelgrab/novelgrab/internal/novel"
)

// fakeSite serves a small five chapter novel and counts requests per path.
type fakeSite struct {
	mu   sync.Mutex
	hits map[string]int
	srv  *httptest.Server
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	site := &fakeSite{hits: make(map[string]int)}

	titles := []string{"第一章 出门", "第二章 过河", "第三章 入城", "第四章 访友", "第五章 归家"}
	mux := http.NewServeMux()
	mux.HandleFunc("/book/", func(w http.ResponseWriter, r *http.Request) {
		site.count(r.URL.Path)
		var links strings.Builder
		for i, title := range titles {
			fmt.Fprintf(&links, `<dd><a href="/book/%d.html">%s</a></dd>`, i+1, title)
		}
		fmt.Fprintf(w, `<html><head><title>长风行 - 最新章节</title></head><body>
<h1>长风行</h1>
<p>作者：江客</p>
<div id="list"><dl>%s</dl></div>
</body></html>`, links.String())
	})
	for i, title := range titles {
		path := fmt.Sprintf("/book/%d.html", i+1)
		body := fmt.Sprintf(`<html><head><title>%s - 长风行</title></head><body>
<div class="bookname"><h1>%s</h1></div>
<div id="content"><p>这一章讲的是%s的故事，路上风景如画。</p><p>他走了很久很久。</p></div>
</body></html>`, title, title, title)
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			site.count(r.URL.Path)
			_, _ = w.Write([]byte(body))
		})
	}

	site.srv = httptest.NewServer(mux)
	t.Cleanup(site.srv.Close)
	return site
}

func (s *fakeSite) count(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[path]++
}

func (s *fakeSite) hitsFor(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Crawler: config.CrawlerConfig{
			Concurrency:    2,
			DelayMinSec:    0,
			DelayMaxSec:    0,
			MaxRetries:     1,
			UserAgent:      "novelgrab-test",
			TimeoutSeconds: 5,
		},
		Output: config.OutputConfig{Dir: t.TempDir()},
	}
}

func TestRunCrawlsWholeNovel(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t)
	cfg := testConfig(t)
	runner, err := NewRunner(cfg, nil)
	require.NoError(t, err)
	defer runner.Close()

	start := site.srv.URL + "/book/"
	report, err := runner.Run(context.Background(), Options{StartLocator: start, Resume: true})
	require.NoError(t, err)
	require.Equal(t, "长风行", report.Catalog.NovelName)
	require.Equal(t, "江客", report.Catalog.Author)
	require.Equal(t, 5, report.Catalog.Len())
	require.Equal(t, 5, report.Summary.Done)
	require.Empty(t, report.Summary.Failed)

	entries, err := os.ReadDir(filepath.Join(report.NovelDir, "chapters"))
	require.NoError(t, err)
	require.Len(t, entries, 5)
	require.FileExists(t, filepath.Join(report.NovelDir, "progress.json"))
	for i := 1; i <= 5; i++ {
		require.Equal(t, 1, site.hitsFor(fmt.Sprintf("/book/%d.html", i)))
	}
}

func TestRunResumeRefetchesNothing(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t)
	cfg := testConfig(t)
	start := site.srv.URL + "/book/"

	first, err := NewRunner(cfg, nil)
	require.NoError(t, err)
	defer first.Close()
	_, err = first.Run(context.Background(), Options{StartLocator: start, Resume: true})
	require.NoError(t, err)

	second, err := NewRunner(cfg, nil)
	require.NoError(t, err)
	defer second.Close()
	report, err := second.Run(context.Background(), Options{StartLocator: start, Resume: true})
	require.NoError(t, err)
	require.Empty(t, report.Plan.ToFetch)
	require.Equal(t, 5, report.Plan.Skipped)
	require.Zero(t, report.Summary.Done)

	// The catalog page is fetched again, the chapters are not.
	for i := 1; i <= 5; i++ {
		require.Equal(t, 1, site.hitsFor(fmt.Sprintf("/book/%d.html", i)))
	}
}

func TestRunResumeWithChangedCatalogRefetches(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t)
	cfg := testConfig(t)
	start := site.srv.URL + "/book/"

	runner, err := NewRunner(cfg, nil)
	require.NoError(t, err)
	defer runner.Close()
	first, err := runner.Run(context.Background(), Options{StartLocator: start, Resume: true})
	require.NoError(t, err)

	// Simulate the site reshuffling its catalog between runs by corrupting
	// the saved signature.
	progressPath := filepath.Join(first.NovelDir, "progress.json")
	raw, err := os.ReadFile(progressPath)
	require.NoError(t, err)
	var saved map[string]any
	require.NoError(t, json.Unmarshal(raw, &saved))
	saved["catalog_signature"] = "0000000000000000"
	raw, err = json.Marshal(saved)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(progressPath, raw, 0o644))

	report, err := runner.Run(context.Background(), Options{StartLocator: start, Resume: true})
	require.NoError(t, err)
	require.True(t, report.Plan.Stale)
	require.Len(t, report.Plan.ToFetch, 5)
	require.Zero(t, report.Plan.Skipped)
	require.Equal(t, 5, report.Summary.Done)
	require.Equal(t, 2, site.hitsFor("/book/1.html"))
}

func TestRunWithoutResumeStartsOver(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t)
	cfg := testConfig(t)
	start := site.srv.URL + "/book/"

	runner, err := NewRunner(cfg, nil)
	require.NoError(t, err)
	defer runner.Close()

	_, err = runner.Run(context.Background(), Options{StartLocator: start, Resume: true})
	require.NoError(t, err)
	report, err := runner.Run(context.Background(), Options{StartLocator: start, Resume: false})
	require.NoError(t, err)
	require.Len(t, report.Plan.ToFetch, 5)
	require.Equal(t, 5, report.Summary.Done)
	require.Equal(t, 2, site.hitsFor("/book/1.html"))
}

func TestAssembleAfterCrawl(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t)
	cfg := testConfig(t)
	start := site.srv.URL + "/book/"

	runner, err := NewRunner(cfg, nil)
	require.NoError(t, err)
	defer runner.Close()
	_, err = runner.Run(context.Background(), Options{StartLocator: start, Resume: true})
	require.NoError(t, err)

	res, err := Assemble(context.Background(), cfg, start, "", false, nil)
	require.NoError(t, err)
	require.Equal(t, 5, res.Included)
	require.Zero(t, res.Missing)

	raw, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	text := string(raw)
	require.True(t, strings.HasPrefix(text, "# 长风行"))
	first := strings.Index(text, "## 第一章 出门")
	last := strings.Index(text, "## 第五章 归家")
	require.True(t, first > 0 && first < last)
}

func TestStatusReportsProgress(t *testing.T) {
	t.Parallel()

	site := newFakeSite(t)
	cfg := testConfig(t)
	start := site.srv.URL + "/book/"

	_, err := Status(context.Background(), cfg, start)
	require.ErrorIs(t, err, novel.ErrProgressNotFound)

	runner, err := NewRunner(cfg, nil)
	require.NoError(t, err)
	defer runner.Close()
	_, err = runner.Run(context.Background(), Options{StartLocator: start, Resume: true})
	require.NoError(t, err)

	st, err := Status(context.Background(), cfg, start)
	require.NoError(t, err)
	require.Equal(t, 5, st.TotalChapters)
	require.Equal(t, 5, st.Completed())
}
