// Package models defines the statute data structures shared by the search,
// storage and presentation layers: laws, articles, article keys and search hits.
package models

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/hyperjump/joubun/internal/kanji"
)

// Law is one statute as stored in a shard: metadata plus its article list.
type Law struct {
	LawID    string    `json:"law_id"`
	LawNum   string    `json:"law_num"`
	LawTitle string    `json:"law_title"`
	Articles []Article `json:"articles"`
}

// Article is a single article of a statute.
type Article struct {
	Title      string      `json:"title"`
	Caption    string      `json:"caption,omitempty"`
	Paragraphs []Paragraph `json:"paragraphs"`
}

// Paragraph is a numbered paragraph (項) of an article.
type Paragraph struct {
	Num       Num        `json:"num"`
	Sentences []Sentence `json:"sentences"`
	Items     []Item     `json:"items,omitempty"`
}

// Item is a numbered item (号). Items nest to arbitrary depth through SubItems.
type Item struct {
	Title     string     `json:"item_title"`
	Sentences []Sentence `json:"sentences"`
	SubItems  []Item     `json:"sub_items,omitempty"`
}

// Sentence is one sentence of statute text.
type Sentence struct {
	Text string `json:"text"`
}

// Num is a paragraph number. Shards written by different ingestion runs encode
// it either as a JSON string or a JSON number.
type Num string

// UnmarshalJSON accepts both "2" and 2.
func (n *Num) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Num(s)
		return nil
	}
	var f json.Number
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Num(f.String())
	return nil
}

// Int returns the paragraph number, or 0 when it is not numeric.
func (n Num) Int() int {
	v, err := strconv.Atoi(string(n))
	if err != nil {
		return 0
	}
	return v
}

// Text flattens the article into plain text, one line per sentence group.
// Paragraph sentences repeated verbatim inside the paragraph's items are
// emitted only once, under the item.
func (a *Article) Text() string {
	var b strings.Builder
	for i := range a.Paragraphs {
		p := &a.Paragraphs[i]
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		if p.Num != "" && p.Num != "1" {
			b.WriteString(string(p.Num))
			b.WriteByte(' ')
		}
		itemTexts := make(map[string]struct{})
		collectItemTexts(p.Items, itemTexts)
		for _, s := range p.Sentences {
			if _, dup := itemTexts[s.Text]; dup {
				continue
			}
			b.WriteString(s.Text)
		}
		writeItems(&b, p.Items, 1)
	}
	return b.String()
}

func collectItemTexts(items []Item, into map[string]struct{}) {
	for _, it := range items {
		for _, s := range it.Sentences {
			into[s.Text] = struct{}{}
		}
		collectItemTexts(it.SubItems, into)
	}
}

func writeItems(b *strings.Builder, items []Item, depth int) {
	for _, it := range items {
		b.WriteByte('\n')
		b.WriteString(strings.Repeat("  ", depth))
		if it.Title != "" {
			b.WriteString(it.Title)
			b.WriteByte(' ')
		}
		for _, s := range it.Sentences {
			b.WriteString(s.Text)
		}
		writeItems(b, it.SubItems, depth+1)
	}
}

// FindArticle returns the article whose title matches title. Titles are compared
// in canonical kanji form, so "第3条の2" finds "第三条の二".
func (l *Law) FindArticle(title string) (*Article, bool) {
	want := kanji.CanonicalTitle(title)
	for i := range l.Articles {
		if l.Articles[i].Title == title || kanji.CanonicalTitle(l.Articles[i].Title) == want {
			return &l.Articles[i], true
		}
	}
	return nil, false
}

// MergeArticles appends articles not already present (by title) to the law.
func (l *Law) MergeArticles(articles []Article) {
	seen := make(map[string]struct{}, len(l.Articles))
	for _, a := range l.Articles {
		seen[a.Title] = struct{}{}
	}
	for _, a := range articles {
		if _, ok := seen[a.Title]; ok {
			continue
		}
		seen[a.Title] = struct{}{}
		l.Articles = append(l.Articles, a)
	}
}
