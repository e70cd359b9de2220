// Package vector provides the local vector index over article embeddings and
// the Search interface the ranking engine queries.
package vector

import (
	"context"

	"github.com/hyperjump/joubun/internal/models"
)

// Search is a ranked article retrieval: up to k hits for text, best first.
// Implemented by Searcher (local index) and by the keyword index.
type Search interface {
	Query(ctx context.Context, text string, k int) ([]models.SearchHit, error)
}

// VectorIndex defines vector storage and similarity search.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Remove(ctx context.Context, ids []string) error
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// VectorResult is a single vector search hit. ID is the article's vector id
// (models.ArticleKey.String()).
type VectorResult struct {
	ID    string
	Score float64 // Inner product; cosine similarity for normalized vectors
}
