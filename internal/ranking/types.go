// Package ranking provides the deterministic scoring applied on top of
// reciprocal rank fusion: RRF contributions and citation match bonuses.
package ranking

// MatchType records how strongly a fused entry matches the citations parsed
// from the query. Values are ordered: a higher value always dominates.
type MatchType int

const (
	// MatchTypeNone indicates no citation matched.
	MatchTypeNone MatchType = iota
	// MatchTypeLawName indicates the law title contains a cited law name.
	MatchTypeLawName
	// MatchTypeExact indicates both the law and the article title match.
	MatchTypeExact
)

// String returns a string representation of the match type.
func (m MatchType) String() string {
	switch m {
	case MatchTypeNone:
		return "none"
	case MatchTypeLawName:
		return "law-name"
	case MatchTypeExact:
		return "exact"
	default:
		return "unknown"
	}
}

// MarshalText encodes the match type by name.
func (m MatchType) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Target is a cited article the fused list is scored against.
type Target struct {
	LawName      string
	ArticleTitle string
}
