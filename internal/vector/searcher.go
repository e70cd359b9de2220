package vector

import (
	"context"
	"fmt"

	"github.com/hyperjump/joubun/internal/embedding"
	"github.com/hyperjump/joubun/internal/models"
	"github.com/hyperjump/joubun/internal/storage"
)

// Catalog resolves vector ids to article metadata.
type Catalog interface {
	GetArticles(ctx context.Context, vectorIDs []string) (map[string]*storage.CatalogEntry, error)
}

// Searcher answers text queries from the local index: it embeds the query,
// searches the vector index and joins the catalog metadata.
type Searcher struct {
	embedder embedding.Embedder
	index    VectorIndex
	catalog  Catalog
}

// NewSearcher creates a searcher.
func NewSearcher(embedder embedding.Embedder, index VectorIndex, catalog Catalog) *Searcher {
	return &Searcher{embedder: embedder, index: index, catalog: catalog}
}

// Query returns up to k hits for text. Vector ids missing from the catalog
// are dropped; Rank is the position in the returned list.
func (s *Searcher) Query(ctx context.Context, text string, k int) ([]models.SearchHit, error) {
	queryEmbedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	results, err := s.index.Search(ctx, queryEmbedding, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	entries, err := s.catalog.GetArticles(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup failed: %w", err)
	}
	hits := make([]models.SearchHit, 0, len(results))
	for _, r := range results {
		e, ok := entries[r.ID]
		if !ok {
			continue
		}
		hit := e.Hit(r.Score)
		hit.Rank = len(hits)
		hits = append(hits, hit)
	}
	return hits, nil
}
