package citation

import (
	"context"
	"strings"
)

// ExtractLinks finds bracketed references of the form 【民法 第九十条】 or
// 【会社法第三百五十条第一項】 that generated explanations use to point at
// articles. Each link becomes an other-law citation whose span covers the brackets.
func (p *Parser) ExtractLinks(text string) []Citation {
	var out []Citation
	for _, m := range p.linkPattern.FindAllStringSubmatchIndex(text, -1) {
		name := strings.TrimSpace(text[m[2]:m[3]])
		if name == "" {
			continue
		}
		articlePart := text[m[4]:m[5]]
		am := p.sameLawPattern.FindStringSubmatchIndex(articlePart)
		if am == nil || am[0] != 0 {
			continue
		}
		c, ok := p.buildCitation(articlePart, am, 2)
		if !ok {
			continue
		}
		c.LawName = name
		c.IsOtherLaw = true
		c.Span = Span{Start: m[0], End: m[1]}
		c.Raw = text[m[0]:m[1]]
		out = append(out, c)
	}
	return out
}

// DirectQuery renders a citation as a normalized lookup query, for example
// "民法 第三条の二".
func DirectQuery(c Citation) string {
	if c.LawName == "" {
		return c.ArticleTitle()
	}
	return c.LawName + " " + c.ArticleTitle()
}

// LawResolver maps a law display name to its law id.
type LawResolver interface {
	Resolve(ctx context.Context, lawName string) (string, bool)
}

// ResolveLawIDs returns a copy of cits with LawID filled for every citation
// whose law name resolves. Unresolved citations are kept with HasLawID false.
func ResolveLawIDs(ctx context.Context, cits []Citation, resolver LawResolver) []Citation {
	out := make([]Citation, len(cits))
	copy(out, cits)
	cache := make(map[string]string)
	for i := range out {
		name := out[i].LawName
		if name == "" || out[i].HasLawID {
			continue
		}
		id, seen := cache[name]
		if !seen {
			id, _ = resolver.Resolve(ctx, name)
			cache[name] = id
		}
		if id != "" {
			out[i].LawID = id
			out[i].HasLawID = true
		}
	}
	return out
}
