// Package keyword provides a keyword index over statute articles. It supplies
// an extra ranked list for fusion that catches literal terms (defined words,
// captions) the embedding model blurs.
package keyword

import (
	"context"

	"github.com/hyperjump/joubun/internal/models"
)

// ArticleDoc is the indexed form of one article.
type ArticleDoc struct {
	LawID        string `json:"law_id"`
	LawTitle     string `json:"law_title"`
	ArticleTitle string `json:"article_title"`
	Caption      string `json:"caption"`
	Content      string `json:"content"`
}

// Key returns the document id under which the article is indexed.
func (d *ArticleDoc) Key() models.ArticleKey {
	return models.NewArticleKey(d.LawID, d.ArticleTitle)
}

// KeywordIndex defines keyword search operations.
type KeywordIndex interface {
	Index(ctx context.Context, doc *ArticleDoc) error
	IndexBatch(ctx context.Context, docs []*ArticleDoc) error
	Query(ctx context.Context, text string, k int) ([]models.SearchHit, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}
