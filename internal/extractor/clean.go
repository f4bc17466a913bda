package extractor

import (
	"regexp"
	"strings"
)

// entityReplacer rewrites the HTML entities that show up in chapter bodies on
// most serialized-fiction sites.
var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&ldquo;", "“",
	"&rdquo;", "”",
	"&lsquo;", "‘",
	"&rsquo;", "’",
	"&mdash;", "—",
	"&ndash;", "–",
	"&hellip;", "…",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
)

var (
	brRe    = regexp.MustCompile(`(?i)\s*<br\s*/?\s*>\s*`)
	paraRe  = regexp.MustCompile(`(?is)\s*<p[^>]*>\s*(.*?)\s*</p>\s*`)
	tagRe   = regexp.MustCompile(`<[^>]+>`)
	blankRe = regexp.MustCompile(`\n{3,}`)
)

// defaultAdPatterns match the promotional filler injected into chapter bodies
// by aggregator sites. Applied line by line after tag stripping.
var defaultAdPatterns = []string{
	`新书推荐：.*`,
	`请记住本[站书].*?。`,
	`[一此本][书站]首发`,
	`天才一秒记住.*?。`,
	`热门推荐.*`,
	`\(https?://[^)]+\)`,
	`手机用户请浏览.*`,
	`txt下载.*`,
	`本章未完.*`,
	`未完待续.*`,
	`（.*?未完.*?）`,
	`（.*?请到.*?）`,
	`（.*?记住网址.*?）`,
	`请到.*?阅读`,
	`本书来自.*`,
	`本作品来自.*`,
	`本小说.*?更新最快`,
	`喜欢本书请收藏.*`,
	`章节报错.*`,
	`加入书架.*`,
	`求收藏.*`,
	`求月票.*`,
	`感谢.*?打赏`,
	`【.*?】`,
	`\[.*?\]`,
}

// Cleaner normalizes raw chapter HTML into plain paragraph text.
type Cleaner struct {
	adPatterns []*regexp.Regexp
}

// NewCleaner builds a Cleaner with the default ad patterns plus any extras.
func NewCleaner(extraPatterns ...string) *Cleaner {
	patterns := make([]*regexp.Regexp, 0, len(defaultAdPatterns)+len(extraPatterns))
	for _, p := range defaultAdPatterns {
		patterns = append(patterns, regexp.MustCompile(p))
	}
	for _, p := range extraPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		patterns = append(patterns, re)
	}
	return &Cleaner{adPatterns: patterns}
}

// Clean strips markup and advertising filler from a chapter fragment and
// reflows the remainder into blank-line separated paragraphs.
func (c *Cleaner) Clean(content string) string {
	content = entityReplacer.Replace(content)
	content = brRe.ReplaceAllString(content, "\n")
	content = paraRe.ReplaceAllString(content, "$1\n\n")
	content = tagRe.ReplaceAllString(content, "")

	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		for _, re := range c.adPatterns {
			line = re.ReplaceAllString(line, "")
		}
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}

	out := strings.Join(kept, "\n\n")
	out = blankRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

var invalidFilenameChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// SanitizeFilename removes characters that are not portable in filenames.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	return invalidFilenameChars.ReplaceAllString(name, "_")
}
