package citation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/joubun/internal/kanji"
)

type stage struct {
	name  string
	match func(text string, opts Options) []Citation
}

// Names that look like a law but refer back to another one: 同 to the law
// cited just before, 本 to the law being parsed.
var anaphoricNames = map[string]struct{}{
	"同法": {}, "本法": {}, "同令": {}, "本令": {}, "同規則": {}, "本規則": {},
}

// Particles allowed directly before an abbreviated 法/令 reference.
var permittedParticles = []string{
	"より", "から", "まで", "の", "は", "が", "を", "に", "で", "と", "へ", "も", "や", "及び", "並びに", "又は",
}

func (p *Parser) matchRelative(text string, opts Options) []Citation {
	if opts.CurrentArticle <= 0 {
		return nil
	}
	var out []Citation
	for _, m := range p.relativePattern.FindAllStringSubmatchIndex(text, -1) {
		num := opts.CurrentArticle - 1
		if text[m[2]:m[3]] == "次" {
			num = opts.CurrentArticle + 1
		}
		if num <= 0 {
			continue
		}
		out = append(out, Citation{
			LawName:    opts.CurrentLaw,
			ArticleNum: num,
			IsRelative: true,
			Span:       Span{Start: m[0], End: m[1]},
			Raw:        text[m[0]:m[1]],
		})
	}
	return out
}

func (p *Parser) matchFullLaw(text string, opts Options) []Citation {
	var out []Citation
	for _, m := range p.fullLawPattern.FindAllStringSubmatchIndex(text, -1) {
		name := text[m[2]:m[3]]
		c, ok := p.buildCitation(text, m, 4)
		if !ok {
			continue
		}
		if _, ok := anaphoricNames[name]; ok {
			c.anaphor = name
			out = append(out, c)
			continue
		}
		c.LawName = name
		c.IsOtherLaw = opts.CurrentLaw == "" || name != opts.CurrentLaw
		out = append(out, c)
	}
	return out
}

func (p *Parser) matchShort(text string, opts Options) []Citation {
	if opts.CurrentLaw == "" || p.parents == nil {
		return nil
	}
	parent, ok := p.parents.Lookup(opts.CurrentLaw)
	if !ok {
		return nil
	}
	var out []Citation
	for _, m := range p.shortPattern.FindAllStringSubmatchIndex(text, -1) {
		if !acceptsShortRefAt(text, m[0]) {
			continue
		}
		target := parent.Law
		if text[m[2]:m[3]] == "令" {
			target = parent.Order
		}
		if target == "" {
			continue
		}
		c, ok := p.buildCitation(text, m, 4)
		if !ok {
			continue
		}
		c.LawName = target
		c.IsOtherLaw = true
		c.IsShortRef = true
		out = append(out, c)
	}
	return out
}

func (p *Parser) matchSameLaw(text string, opts Options) []Citation {
	var out []Citation
	for _, m := range p.sameLawPattern.FindAllStringSubmatchIndex(text, -1) {
		c, ok := p.buildCitation(text, m, 2)
		if !ok {
			continue
		}
		c.LawName = opts.CurrentLaw
		out = append(out, c)
	}
	return out
}

// bindAnaphors resolves 同法 and 本法 style citations in sorted order. 同 binds
// to the nearest preceding citation that names a law, 本 to the current law.
// Citations with nothing to bind to are dropped; their span stays claimed so
// the trailing 第X条 is not misread as a same-law reference.
func bindAnaphors(cs []Citation, opts Options) []Citation {
	out := cs[:0]
	previous := ""
	for _, c := range cs {
		if c.anaphor == "" {
			if c.LawName != "" && !c.IsRelative {
				previous = c.LawName
			}
			out = append(out, c)
			continue
		}
		target := previous
		if strings.HasPrefix(c.anaphor, "本") {
			target = opts.CurrentLaw
		}
		c.anaphor = ""
		if target == "" {
			continue
		}
		c.LawName = target
		c.IsOtherLaw = opts.CurrentLaw == "" || target != opts.CurrentLaw
		out = append(out, c)
	}
	return out
}

// buildCitation fills the article part of a citation from a submatch index
// slice whose article-number group starts at group index first/2.
func (p *Parser) buildCitation(text string, m []int, first int) (Citation, bool) {
	num, ok := kanji.ParseNumber(group(text, m, first))
	if !ok || num < 1 {
		return Citation{}, false
	}
	c := Citation{
		ArticleNum: num,
		Span:       Span{Start: m[0], End: m[1]},
		Raw:        text[m[0]:m[1]],
	}
	if branches := group(text, m, first+2); branches != "" {
		for _, bm := range p.branchPattern.FindAllStringSubmatch(branches, -1) {
			n, ok := kanji.ParseNumber(bm[1])
			if !ok || n < 1 {
				return Citation{}, false
			}
			c.SubNums = append(c.SubNums, n)
		}
	}
	if s := group(text, m, first+4); s != "" {
		c.Paragraph, _ = kanji.ParseNumber(s)
	}
	if s := group(text, m, first+6); s != "" {
		c.Item, _ = kanji.ParseNumber(s)
	}
	return c, true
}

func group(text string, m []int, i int) string {
	if i+1 >= len(m) || m[i] < 0 {
		return ""
	}
	return text[m[i]:m[i+1]]
}

// acceptsShortRefAt reports whether an abbreviated reference may start at pos.
// A preceding kana or Han rune means 法/令 is the tail of a longer word
// ("法人税法第…"), unless the text before pos ends in a particle.
func acceptsShortRefAt(text string, pos int) bool {
	if pos == 0 {
		return true
	}
	before := text[:pos]
	for _, particle := range permittedParticles {
		if strings.HasSuffix(before, particle) {
			return true
		}
	}
	r, _ := utf8.DecodeLastRuneInString(before)
	return !isJapaneseLetter(r)
}

func isJapaneseLetter(r rune) bool {
	return unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r)
}
