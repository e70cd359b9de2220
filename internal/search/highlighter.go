package search

import (
	"strings"

	"github.com/hyperjump/joubun/internal/models"
	"github.com/hyperjump/joubun/pkg/utils"
)

// Snippet returns the article's text flattened to one line and truncated to
// maxLen runes, for previews in result listings.
func Snippet(article *models.Article, maxLen int) string {
	if article == nil {
		return ""
	}
	text := strings.Join(strings.Fields(article.Text()), " ")
	return utils.Truncate(text, maxLen)
}
