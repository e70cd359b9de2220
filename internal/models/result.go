package models

import "github.com/hyperjump/joubun/internal/kanji"

// ArticleKey identifies an article by law id and canonical kanji title.
type ArticleKey struct {
	LawID        string `json:"law_id"`
	ArticleTitle string `json:"article_title"`
}

// NewArticleKey builds a key, canonicalizing the title ("第3条の2" → "第三条の二").
func NewArticleKey(lawID, title string) ArticleKey {
	return ArticleKey{LawID: lawID, ArticleTitle: kanji.CanonicalTitle(title)}
}

// String returns lawID + "_" + articleTitle, the fusion map key.
func (k ArticleKey) String() string {
	return k.LawID + "_" + k.ArticleTitle
}

// SearchHit is one vector-search result. Rank is the 0-based position in its list.
type SearchHit struct {
	LawID          string  `json:"law_id"`
	LawTitle       string  `json:"law_title"`
	ArticleTitle   string  `json:"article_title"`
	ArticleCaption string  `json:"article_caption,omitempty"`
	Rank           int     `json:"rank"`
	Score          float64 `json:"score"`
}

// Key returns the hit's ArticleKey.
func (h *SearchHit) Key() ArticleKey {
	return ArticleKey{LawID: h.LawID, ArticleTitle: h.ArticleTitle}
}

// LawRef is the law-level metadata attached to results.
type LawRef struct {
	LawID    string `json:"law_id"`
	LawTitle string `json:"law_title"`
	LawNum   string `json:"law_num,omitempty"`
}

// SearchResult is one ranked article. Article is nil when the body could not be
// fetched; clients render a "content unavailable" placeholder.
type SearchResult struct {
	Key        string   `json:"key"`
	Law        LawRef   `json:"law"`
	Title      string   `json:"article_title"`
	Caption    string   `json:"article_caption,omitempty"`
	Article    *Article `json:"article,omitempty"`
	Similarity float64  `json:"similarity"`
	Score      float64  `json:"score"`
	RRFScore   float64  `json:"rrf_score"`
	Bonus      float64  `json:"bonus"`
	MatchType  string   `json:"match_type"`
	Forced     bool     `json:"forced,omitempty"`
	Rank       int      `json:"rank"`
}

// SearchResponse is the response of a fused search.
type SearchResponse struct {
	Results       []*SearchResult `json:"results"`
	TotalSearched int             `json:"total_searched"`
	Citations     []CitationRef   `json:"citations,omitempty"`
	Message       string          `json:"message,omitempty"`
	QueryTime     int64           `json:"query_time_ms"`
	Query         string          `json:"query"`
}

// CitationRef summarizes a citation parsed from the query for API consumers.
type CitationRef struct {
	LawName      string `json:"law_name"`
	LawID        string `json:"law_id,omitempty"`
	ArticleTitle string `json:"article_title"`
	Raw          string `json:"raw"`
}

// ResolvedArticle is the answer to a single law + article lookup.
type ResolvedArticle struct {
	Law     LawRef   `json:"law"`
	Article *Article `json:"article"`
}
