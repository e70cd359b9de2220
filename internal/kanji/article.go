package kanji

import (
	"strconv"
	"strings"
)

// ArticleTitle builds the canonical display title of an article, for example
// ArticleTitle(42, 2) == "第四十二条の二" and ArticleTitle(70, 2, 4) == "第七十条の二の四".
func ArticleTitle(num int, subs ...int) string {
	var b strings.Builder
	b.WriteString("第")
	b.WriteString(FromInt(num))
	b.WriteString("条")
	for _, s := range subs {
		b.WriteString("の")
		b.WriteString(FromInt(s))
	}
	return b.String()
}

// ParseArticleTitle parses an article reference such as "第七十条の二の四",
// "第209条の2", "557条" or "五百五十七" into its number and branch numbers.
// The leading 第 and the 条 marker are optional when no branch follows.
func ParseArticleTitle(title string) (num int, subs []int, ok bool) {
	s := strings.TrimSpace(title)
	s = strings.TrimPrefix(s, "第")
	head, rest, hasJo := strings.Cut(s, "条")
	if !hasJo {
		if strings.Contains(s, "の") {
			return 0, nil, false
		}
		head, rest = s, ""
	}
	num, ok = ParseNumber(head)
	if !ok || num < 1 {
		return 0, nil, false
	}
	if rest == "" {
		return num, nil, true
	}
	if !strings.HasPrefix(rest, "の") {
		return 0, nil, false
	}
	for _, part := range strings.Split(strings.TrimPrefix(rest, "の"), "の") {
		n, valid := ParseNumber(part)
		if !valid || n < 1 {
			return 0, nil, false
		}
		subs = append(subs, n)
	}
	return num, subs, true
}

// CanonicalTitle reparses title and renders it in canonical kanji form, so that
// "第209条の2" and "第二百九条の二" compare equal. Unparsable titles are returned as-is.
func CanonicalTitle(title string) string {
	num, subs, ok := ParseArticleTitle(title)
	if !ok {
		return title
	}
	return ArticleTitle(num, subs...)
}

// ArticleID returns the reference-index id of an article:
// lawID + "_Art" + number, followed by "_" + branch for each branch level.
// It returns "" when title cannot be parsed.
func ArticleID(lawID, title string) string {
	num, subs, ok := ParseArticleTitle(title)
	if !ok {
		return ""
	}
	var b strings.Builder
	b.WriteString(lawID)
	b.WriteString("_Art")
	b.WriteString(strconv.Itoa(num))
	for _, s := range subs {
		b.WriteByte('_')
		b.WriteString(strconv.Itoa(s))
	}
	return b.String()
}

// LeadingNumber returns the main article number of title, ignoring branches.
func LeadingNumber(title string) (int, bool) {
	num, _, ok := ParseArticleTitle(title)
	return num, ok
}
