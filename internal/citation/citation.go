// Package citation extracts statute citations ("民法第四十二条の二", "法第三条",
// "前条") from Japanese free text.
//
// Parsing runs an ordered list of matcher stages. A later stage never accepts a
// span that overlaps one accepted by an earlier stage, so a full law-name
// reference always wins over the abbreviated and same-law forms it contains.
package citation

import (
	"regexp"
	"sort"

	"github.com/hyperjump/joubun/internal/kanji"
)

// Span is a half-open byte range [Start, End) into the parsed text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Overlaps reports whether s and o share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Citation is one parsed reference to a statute article.
type Citation struct {
	LawName    string `json:"law_name"`
	LawID      string `json:"law_id,omitempty"`
	HasLawID   bool   `json:"has_law_id"`
	ArticleNum int    `json:"article_num"`
	SubNums    []int  `json:"sub_nums,omitempty"`
	Paragraph  int    `json:"paragraph,omitempty"`
	Item       int    `json:"item,omitempty"`
	IsOtherLaw bool   `json:"is_other_law"`
	IsShortRef bool   `json:"is_short_ref"`
	IsRelative bool   `json:"is_relative"`
	Span       Span   `json:"span"`
	Raw        string `json:"raw"`

	anaphor string
}

// ArticleTitle returns the canonical kanji title of the cited article.
func (c *Citation) ArticleTitle() string {
	return kanji.ArticleTitle(c.ArticleNum, c.SubNums...)
}

// Options carries the context a text is parsed in.
type Options struct {
	// CurrentLaw is the display name of the law whose text is being parsed.
	CurrentLaw string
	// CurrentArticle is the number of the article being parsed; 0 disables
	// relative references.
	CurrentArticle int
}

const numClass = `[0-9０-９〇一二三四五六七八九十百千]+`

// articleTail matches 条 followed by branch, paragraph and item suffixes.
// Groups: 1 article number, 2 chained branches, 3 paragraph, 4 item.
const articleTail = `(` + numClass + `)条((?:の` + numClass + `)*)(?:第(` + numClass + `)項)?(?:第(` + numClass + `)号)?`

// Parser extracts citations. It is safe for concurrent use.
type Parser struct {
	relativePattern *regexp.Regexp
	fullLawPattern  *regexp.Regexp
	shortPattern    *regexp.Regexp
	sameLawPattern  *regexp.Regexp
	branchPattern   *regexp.Regexp
	linkPattern     *regexp.Regexp

	parents *ParentMap
	stages  []stage
}

// NewParser compiles the citation grammar. parents may be nil, which disables
// abbreviated references entirely.
func NewParser(parents *ParentMap) *Parser {
	p := &Parser{
		relativePattern: regexp.MustCompile(`(前|次)条`),
		// Law name: at least one Han rune before the type suffix, so the shortest
		// accepted name is two characters ("民法").
		fullLawPattern: regexp.MustCompile(`(\p{Han}+?(?:法律|法|令|規則|条例|規程|憲章))[\s　]*第?` + articleTail),
		shortPattern:   regexp.MustCompile(`(法|令)第` + articleTail),
		sameLawPattern: regexp.MustCompile(`第` + articleTail),
		branchPattern:  regexp.MustCompile(`の(` + numClass + `)`),
		linkPattern:    regexp.MustCompile(`【([^】第]+?)[\s　]*(第` + numClass + `条[^】]*)】`),
		parents:        parents,
	}
	p.stages = []stage{
		{name: "relative", match: p.matchRelative},
		{name: "full", match: p.matchFullLaw},
		{name: "short", match: p.matchShort},
		{name: "same", match: p.matchSameLaw},
	}
	return p
}

// Parse returns the citations found in text ordered by position.
func (p *Parser) Parse(text string, opts Options) []Citation {
	var (
		accepted spanSet
		out      []Citation
	)
	for _, st := range p.stages {
		for _, c := range st.match(text, opts) {
			if accepted.overlaps(c.Span) {
				continue
			}
			accepted.add(c.Span)
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Span.Start < out[j].Span.Start })
	return bindAnaphors(out, opts)
}

// ParseQuery parses a user question, which has no surrounding law context.
func (p *Parser) ParseQuery(text string) []Citation {
	return p.Parse(text, Options{})
}

type spanSet []Span

func (s spanSet) overlaps(sp Span) bool {
	for _, a := range s {
		if a.Overlaps(sp) {
			return true
		}
	}
	return false
}

func (s *spanSet) add(sp Span) {
	*s = append(*s, sp)
}
