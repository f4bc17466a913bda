package extractor

import (
	"regexp"
	"strconv"
)

var (
	hanChapterRe   = regexp.MustCompile(`第([0-9一二两三四五六七八九十百千万零〇]+)[章节回]`)
	bareChapterRe  = regexp.MustCompile(`([0-9]+)[章节]`)
	leadingDigitRe = regexp.MustCompile(`^[\s0-9.]*?([0-9]+)[\s.:、]`)
)

// ChapterNumber extracts the ordinal from a chapter title, handling "第N章"
// with Arabic or Chinese numerals, "N章", and plain numeric prefixes. Used
// only as an ordering-consistency check: the catalog order itself is always
// taken from the source document, never re-derived from titles.
func ChapterNumber(title string) (int, bool) {
	if m := hanChapterRe.FindStringSubmatch(title); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, true
		}
		if n, ok := chineseNumeral(m[1]); ok {
			return n, true
		}
		return 0, false
	}
	if m := bareChapterRe.FindStringSubmatch(title); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, true
		}
	}
	if m := leadingDigitRe.FindStringSubmatch(title); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n, true
		}
	}
	return 0, false
}

var hanDigits = map[rune]int{
	'零': 0, '〇': 0,
	'一': 1, '二': 2, '两': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

var hanUnits = map[rune]int{
	'十': 10, '百': 100, '千': 1000, '万': 10000,
}

// chineseNumeral converts simple Chinese numerals (一 through 千万-scale
// compositions like 一千二百三十四). Compound scales such as 二十万 are out of
// scope; the caller falls back to treating the title as unnumbered.
func chineseNumeral(s string) (int, bool) {
	total, num := 0, 0
	seen := false
	for _, r := range s {
		if d, ok := hanDigits[r]; ok {
			num = d
			seen = true
			continue
		}
		if u, ok := hanUnits[r]; ok {
			if num == 0 {
				num = 1
			}
			total += num * u
			num = 0
			seen = true
			continue
		}
		return 0, false
	}
	if !seen {
		return 0, false
	}
	return total + num, true
}
