// Package cli renders search results, articles, references and answers for
// the joubun command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/joubun/internal/models"
	"github.com/hyperjump/joubun/internal/qa"
	"github.com/hyperjump/joubun/internal/refgraph"
	"github.com/hyperjump/joubun/internal/search"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// SnippetLength is the number of runes of article text shown per result.
const SnippetLength = 200

const rule = "─────────────────────────────────────────────────────────"

// ParseFormat maps a flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes a search response to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms (%d articles searched)\n",
		len(response.Results), response.QueryTime, response.TotalSearched)
	if response.Message != "" {
		fmt.Fprintf(w, "%s\n", response.Message)
	}
	for _, c := range response.Citations {
		fmt.Fprintf(w, "Citation: %s → %s %s\n", c.Raw, c.LawName, c.ArticleTitle)
	}
	fmt.Fprintln(w)
	for _, result := range response.Results {
		writeOneResult(w, result)
	}
	return nil
}

func writeOneResult(w io.Writer, result *models.SearchResult) {
	fmt.Fprintln(w, rule)
	marker := ""
	if result.Forced {
		marker = " [cited]"
	}
	fmt.Fprintf(w, "Rank: %d | Score: %.4f (RRF: %.4f, Bonus: %.2f, Similarity: %.4f) %s%s\n",
		result.Rank, result.Score, result.RRFScore, result.Bonus, result.Similarity, result.MatchType, marker)
	fmt.Fprintf(w, "%s %s%s\n", result.Law.LawTitle, result.Title, result.Caption)
	if result.Article == nil {
		fmt.Fprintf(w, "\n(content unavailable)\n\n")
		return
	}
	fmt.Fprintf(w, "\n%s\n\n", search.Snippet(result.Article, SnippetLength))
}

// WriteArticle writes a resolved article with its full text.
func WriteArticle(w io.Writer, article *models.ResolvedArticle, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, article)
	}
	fmt.Fprintf(w, "%s", article.Law.LawTitle)
	if article.Law.LawNum != "" {
		fmt.Fprintf(w, "（%s）", article.Law.LawNum)
	}
	fmt.Fprintln(w)
	if article.Article == nil {
		fmt.Fprintln(w, "(content unavailable)")
		return nil
	}
	fmt.Fprintf(w, "%s%s\n\n%s\n", article.Article.Title, article.Article.Caption, article.Article.Text())
	return nil
}

// WriteReferences writes reference sets. Reverse references beyond
// refgraph.MaxReverseRefs are summarized as a count in text output.
func WriteReferences(w io.Writer, refs []refgraph.ArticleRefs, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, refs)
	}
	for _, r := range refs {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "%s %s\n", r.LawID, r.ArticleTitle)
		if len(r.Refs) == 0 && len(r.ReverseRefs) == 0 {
			fmt.Fprintln(w, "  (no references)")
			continue
		}
		for _, ref := range r.Refs {
			fmt.Fprintf(w, "  → %s  %s\n", ref.Target, ref.Text)
		}
		shown := r.ReverseRefs
		if len(shown) > refgraph.MaxReverseRefs {
			shown = shown[:refgraph.MaxReverseRefs]
		}
		for _, id := range shown {
			fmt.Fprintf(w, "  ← %s\n", id)
		}
		if extra := len(r.ReverseRefs) - len(shown); extra > 0 {
			fmt.Fprintf(w, "  ← ... and %d more\n", extra)
		}
	}
	return nil
}

// WriteAnswer writes a question answer with its selected articles.
func WriteAnswer(w io.Writer, answer *qa.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, answer)
	}
	fmt.Fprintf(w, "\n%s\n\n", answer.Answer)
	if len(answer.Articles) == 0 {
		return nil
	}
	fmt.Fprintln(w, "--- Articles ---")
	for _, result := range answer.Articles {
		writeOneResult(w, result)
	}
	if len(answer.Links) > 0 {
		fmt.Fprintln(w, "--- Linked ---")
		for _, l := range answer.Links {
			title := ""
			if l.Article.Article != nil {
				title = l.Article.Article.Title
			}
			fmt.Fprintf(w, "%s → %s %s\n", l.Raw, l.Article.Law.LawTitle, title)
		}
	}
	return nil
}
