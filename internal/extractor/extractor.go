// Package extractor implements the page extraction capability: turning raw
// page content into parsed chapters and catalogs according to a site profile.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/novelgrab/novelgrab/internal/novel"
)

// Site implements novel.PageExtractor for one target site layout.
type Site struct {
	fetcher novel.Fetcher
	profile Profile
	cleaner *Cleaner
	logger  *zap.Logger
}

// NewSite builds a Site extractor around a fetcher and profile.
func NewSite(fetcher novel.Fetcher, profile Profile, logger *zap.Logger) *Site {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Site{
		fetcher: fetcher,
		profile: profile,
		cleaner: NewCleaner(),
		logger:  logger,
	}
}

// FetchChapterPage retrieves and parses a single chapter page.
func (s *Site) FetchChapterPage(ctx context.Context, locator string) (novel.ChapterPage, error) {
	page, err := s.fetcher.Fetch(ctx, locator)
	if err != nil {
		return novel.ChapterPage{}, fmt.Errorf("fetch chapter %s: %w", locator, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return novel.ChapterPage{}, novel.MarkParseFailure(
			fmt.Errorf("parse chapter %s: %w", locator, err))
	}

	rawContent := s.selectContent(doc)
	body := s.cleaner.Clean(rawContent)
	if len([]rune(body)) < s.profile.MinContentRunes {
		return novel.ChapterPage{}, novel.ParseFailuref(
			"no readable content at %s (%d runes)", locator, len([]rune(body)))
	}

	cp := novel.ChapterPage{
		Title:        s.selectTitle(doc, locator),
		Body:         body,
		NextLocator:  s.findNavLink(doc, locator, s.profile.NextLinkTexts, "next"),
		PrevLocator:  s.findNavLink(doc, locator, s.profile.PrevLinkTexts, "prev"),
		IndexLocator: s.findNavLink(doc, locator, s.profile.IndexLinkTexts, ""),
		NovelName:    metaContent(doc, "og:novel:book_name"),
		Author:       metaContent(doc, "og:novel:author"),
	}
	if cp.Author == "" {
		cp.Author = metaNameContent(doc, "author")
	}
	return cp, nil
}

// FetchCatalogPage retrieves a catalog page and returns the chapter links in
// document order. Order is never re-derived from titles or URL numbers; the
// page's own listing is the catalog's order.
func (s *Site) FetchCatalogPage(ctx context.Context, locator string) (novel.CatalogPage, error) {
	page, err := s.fetcher.Fetch(ctx, locator)
	if err != nil {
		return novel.CatalogPage{}, fmt.Errorf("fetch catalog %s: %w", locator, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return novel.CatalogPage{}, novel.MarkParseFailure(
			fmt.Errorf("parse catalog %s: %w", locator, err))
	}

	cp := novel.CatalogPage{
		NovelName: s.catalogName(doc),
		Author:    s.catalogAuthor(doc),
	}

	scope := s.catalogScope(doc)
	cp.Entries = s.collectChapterLinks(scope, locator, nil)
	if len(cp.Entries) < 10 {
		// Sparse result usually means the container heuristic missed; rescan
		// the whole page for additional chapter-looking links.
		seen := make(map[string]struct{}, len(cp.Entries))
		for _, e := range cp.Entries {
			seen[e.Locator] = struct{}{}
		}
		extra := s.collectChapterLinks(doc.Selection, locator, seen)
		cp.Entries = append(cp.Entries, extra...)
	}

	s.logger.Debug("catalog extracted",
		zap.String("locator", locator),
		zap.String("novel", cp.NovelName),
		zap.Int("chapters", len(cp.Entries)),
	)
	return cp, nil
}

func (s *Site) selectTitle(doc *goquery.Document, locator string) string {
	for _, sel := range s.profile.TitleSelectors {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if title := strings.TrimSpace(node.Text()); title != "" {
				return title
			}
		}
	}
	if raw := strings.TrimSpace(doc.Find("title").First().Text()); raw != "" {
		if cut := strings.IndexAny(raw, "-_|"); cut > 0 {
			return strings.TrimSpace(raw[:cut])
		}
		return raw
	}
	// Last resort: the locator's final path element.
	if u, err := url.Parse(locator); err == nil {
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		return parts[len(parts)-1]
	}
	return locator
}

func (s *Site) selectContent(doc *goquery.Document) string {
	for _, sel := range s.profile.ContentSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if html, err := node.Html(); err == nil && strings.TrimSpace(html) != "" {
			return html
		}
	}
	return ""
}

func (s *Site) findNavLink(doc *goquery.Document, base string, texts []string, rel string) string {
	if rel != "" {
		if href, ok := doc.Find("link[rel="+rel+"], a[rel="+rel+"]").First().Attr("href"); ok {
			return resolveRef(base, href)
		}
	}
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		label := strings.TrimSpace(a.Text())
		if label == "" {
			return true
		}
		for _, want := range texts {
			if label == want || strings.Contains(label, want) {
				if href, ok := a.Attr("href"); ok {
					found = resolveRef(base, href)
					return false
				}
			}
		}
		return true
	})
	return found
}

var authorTextRe = regexp.MustCompile(`作\s*者[：:]\s*([^<>\s]+)`)

func (s *Site) catalogName(doc *goquery.Document) string {
	if name := metaContent(doc, "og:novel:book_name"); name != "" {
		return name
	}
	if name := metaContent(doc, "og:title"); name != "" {
		return trimSubtitle(name)
	}
	if name := strings.TrimSpace(doc.Find("h1").First().Text()); name != "" {
		return trimSubtitle(name)
	}
	if raw := strings.TrimSpace(doc.Find("title").First().Text()); raw != "" {
		return trimSubtitle(raw)
	}
	return ""
}

func (s *Site) catalogAuthor(doc *goquery.Document) string {
	if author := metaContent(doc, "og:novel:author"); author != "" {
		return author
	}
	if author := metaNameContent(doc, "author"); author != "" {
		return author
	}
	var author string
	doc.Find("p, span, div").EachWithBreak(func(_ int, node *goquery.Selection) bool {
		if m := authorTextRe.FindStringSubmatch(node.Text()); m != nil {
			author = strings.TrimSpace(m[1])
			return false
		}
		return true
	})
	return author
}

// catalogScope picks the chapter list container, falling back to the link
// densest selector match and finally the whole document.
func (s *Site) catalogScope(doc *goquery.Document) *goquery.Selection {
	var best *goquery.Selection
	bestLinks := 0
	for _, sel := range s.profile.CatalogSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if n := node.Find("a[href]").Length(); n > bestLinks {
			best = node
			bestLinks = n
		}
	}
	if best != nil {
		return best
	}
	return doc.Selection
}

var (
	numberedTitleRe = regexp.MustCompile(`第.+[章节回]`)
	digitPrefixRe   = regexp.MustCompile(`^\d+\.?\s*\D+`)
)

var nonChapterWords = []string{"登录", "注册", "首页", "登陆", "帮助", "设置"}

var specialChapterWords = []string{"序言", "序章", "前言", "引言", "楔子", "尾声", "后记", "番外"}

func (s *Site) collectChapterLinks(scope *goquery.Selection, base string, seen map[string]struct{}) []novel.CatalogEntry {
	var entries []novel.CatalogEntry
	if seen == nil {
		seen = make(map[string]struct{})
	}
	scope.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		title := strings.TrimSpace(a.Text())
		href, ok := a.Attr("href")
		if !ok || !s.likelyChapterLink(title, href) {
			return
		}
		resolved := resolveRef(base, href)
		if resolved == "" {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		entries = append(entries, novel.CatalogEntry{Title: title, Locator: resolved})
	})
	return entries
}

func (s *Site) likelyChapterLink(title, href string) bool {
	if len([]rune(title)) < 2 {
		return false
	}
	for _, word := range nonChapterWords {
		if strings.Contains(title, word) {
			return false
		}
	}
	if numberedTitleRe.MatchString(title) {
		return true
	}
	if digitPrefixRe.MatchString(title) {
		return true
	}
	for _, word := range specialChapterWords {
		if strings.Contains(title, word) {
			return true
		}
	}
	if s.profile.ChapterURLRe != nil && s.profile.ChapterURLRe.MatchString(href) {
		return true
	}
	return false
}

func metaContent(doc *goquery.Document, property string) string {
	content, _ := doc.Find(`meta[property="` + property + `"]`).First().Attr("content")
	return strings.TrimSpace(content)
}

func metaNameContent(doc *goquery.Document, name string) string {
	content, _ := doc.Find(`meta[name="` + name + `"]`).First().Attr("content")
	return strings.TrimSpace(content)
}

func trimSubtitle(name string) string {
	if cut := strings.IndexAny(name, "-_|"); cut > 0 {
		name = name[:cut]
	}
	return strings.TrimSpace(name)
}

func resolveRef(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || href == "#" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(ref).String()
}

// IsIndexLocator reports whether a locator looks like a table-of-contents
// page rather than a chapter page. Used to stop next-chain traversal when a
// "next" pointer escapes back to the index.
func IsIndexLocator(locator string) bool {
	if strings.HasSuffix(locator, "/") {
		return true
	}
	if !strings.HasSuffix(locator, ".html") {
		return true
	}
	return false
}
