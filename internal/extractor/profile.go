package extractor

import "regexp"

// Profile carries the site-specific selectors and patterns that drive page
// extraction. Profiles are chosen once at startup; the pipeline only ever
// sees the PageExtractor contract.
type Profile struct {
	Name string

	// Chapter pages.
	TitleSelectors   []string
	ContentSelectors []string
	NextLinkTexts    []string
	PrevLinkTexts    []string
	IndexLinkTexts   []string

	// Catalog pages.
	CatalogSelectors []string
	ChapterURLRe     *regexp.Regexp

	// Minimum rune count for a chapter body to count as readable content.
	MinContentRunes int
}

// Generic returns a heuristic profile that works across the common
// serialized-fiction site layouts.
func Generic() Profile {
	return Profile{
		Name: "generic",
		TitleSelectors: []string{
			"div.bookname h1",
			"div.chapter-title",
			"h1",
		},
		ContentSelectors: []string{
			"div#content",
			"div.content",
			"div.chapter-content",
			"div.article-content",
			"article",
		},
		NextLinkTexts:  []string{"下一章", "下一页", "下章", "Next", "next"},
		PrevLinkTexts:  []string{"上一章", "上一页", "上章", "Prev", "prev"},
		IndexLinkTexts: []string{"目录", "章节目录", "回目录", "返回目录", "Index"},
		CatalogSelectors: []string{
			"div#list",
			"div.listmain",
			"dl#chapterlist",
			"ul.chapter",
			"div#content_1",
		},
		ChapterURLRe:    regexp.MustCompile(`/\d+\.html$`),
		MinContentRunes: 20,
	}
}
