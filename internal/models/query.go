package models

import (
	"errors"
	"strings"
)

// ErrEmptyQuery is returned when a search request carries no usable query text.
var ErrEmptyQuery = errors.New("query cannot be empty")

const (
	// DefaultTopN is the number of fused results returned when TopN is unset.
	DefaultTopN = 20
	// MaxTopN caps TopN.
	MaxTopN = 100
)

// SearchRequest asks for the fused ranking of one or more expanded queries.
// OriginalQuery is the user's question as typed; citations are parsed from it.
type SearchRequest struct {
	Queries       []string `json:"queries"`
	OriginalQuery string   `json:"original_query"`
	TopN          int      `json:"top_n,omitempty"`
	// CurrentLaw optionally names the law the question is asked in the context of,
	// enabling abbreviated 法/令 references for subordinate regulations.
	CurrentLaw string `json:"current_law,omitempty"`
}

// Validate drops blank queries, falls back to the original query when no
// expanded query remains, and normalizes TopN.
func (r *SearchRequest) Validate() error {
	r.OriginalQuery = strings.TrimSpace(r.OriginalQuery)
	queries := r.Queries[:0]
	for _, q := range r.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	r.Queries = queries
	if len(r.Queries) == 0 {
		if r.OriginalQuery == "" {
			return ErrEmptyQuery
		}
		r.Queries = []string{r.OriginalQuery}
	}
	if r.OriginalQuery == "" {
		r.OriginalQuery = r.Queries[0]
	}
	if r.TopN <= 0 {
		r.TopN = DefaultTopN
	}
	if r.TopN > MaxTopN {
		r.TopN = MaxTopN
	}
	return nil
}
