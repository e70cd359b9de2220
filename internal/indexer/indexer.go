// Package indexer builds the local retrieval indices from the statute corpus:
// article embeddings in the vector index, article metadata in the SQLite
// catalog and, optionally, article text in the keyword index.
package indexer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/joubun/internal/embedding"
	"github.com/hyperjump/joubun/internal/keyword"
	"github.com/hyperjump/joubun/internal/models"
	"github.com/hyperjump/joubun/internal/shard"
	"github.com/hyperjump/joubun/internal/storage"
	"github.com/hyperjump/joubun/internal/vector"
)

const (
	// DefaultMaxTextRunes bounds the text embedded per article.
	DefaultMaxTextRunes = 6000
	defaultBatchSize    = 64
)

// Catalog stores article metadata.
type Catalog interface {
	UpsertArticles(ctx context.Context, entries []*storage.CatalogEntry) error
}

// Stats summarizes an indexing run.
type Stats struct {
	Shards       int `json:"shards"`
	Laws         int `json:"laws"`
	Articles     int `json:"articles"`
	SkippedLarge int `json:"skipped_large"`
}

// Indexer indexes laws into the catalog, the vector index and the keyword index.
type Indexer struct {
	fetcher      *shard.Fetcher
	locator      *shard.Locator
	catalog      Catalog
	embedder     embedding.Embedder
	vectorIndex  vector.VectorIndex
	keywordIndex keyword.KeywordIndex
	maxTextRunes int
	batchSize    int
	logger       *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for progress output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithKeywordIndex also indexes article text for keyword search.
func WithKeywordIndex(k keyword.KeywordIndex) IndexerOption {
	return func(idx *Indexer) { idx.keywordIndex = k }
}

// WithMaxTextRunes sets the per-article embedding text limit.
func WithMaxTextRunes(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.maxTextRunes = n
		}
	}
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(
	fetcher *shard.Fetcher,
	locator *shard.Locator,
	catalog Catalog,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		fetcher:      fetcher,
		locator:      locator,
		catalog:      catalog,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		maxTextRunes: DefaultMaxTextRunes,
		batchSize:    defaultBatchSize,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexCorpus indexes every law reachable through the chunk map and the
// range-sharded law tables. Laws stored per article (LARGE) are skipped.
func (idx *Indexer) IndexCorpus(ctx context.Context) (*Stats, error) {
	cm, err := idx.fetcher.ChunkMap(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{}
	keySet := make(map[string]struct{})
	lawIDs := make([]string, 0, len(cm))
	for id := range cm {
		lawIDs = append(lawIDs, id)
	}
	for id := range idx.locator.Layout().RangeLaws {
		if _, ok := cm[id]; !ok {
			lawIDs = append(lawIDs, id)
		}
	}
	sort.Strings(lawIDs)

	for _, lawID := range lawIDs {
		strategy, ok := idx.locator.StrategyFor(cm, lawID)
		if !ok {
			continue
		}
		switch s := strategy.(type) {
		case shard.RangeSharded:
			for _, key := range s.Keys() {
				keySet[key] = struct{}{}
			}
		case shard.PerArticle:
			stats.SkippedLarge++
			idx.logger.Debug("skipping per-article law", zap.String("law_id", lawID))
		default:
			objects, _ := strategy.Objects(lawID, nil)
			for _, obj := range objects {
				keySet[obj.Key] = struct{}{}
			}
		}
	}
	keys := make([]string, 0, len(keySet))
	for key := range keySet {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	seenLaws := make(map[string]struct{})
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		laws, err := idx.fetcher.LoadShard(ctx, key)
		if err != nil {
			return stats, err
		}
		if laws == nil {
			continue
		}
		stats.Shards++
		ids := make([]string, 0, len(laws))
		for id := range laws {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			law := laws[id]
			if law.LawID == "" {
				law.LawID = id
			}
			n, err := idx.IndexLaw(ctx, law)
			if err != nil {
				return stats, fmt.Errorf("failed to index %s: %w", id, err)
			}
			stats.Articles += n
			seenLaws[id] = struct{}{}
		}
		idx.logger.Info("shard indexed", zap.String("key", key), zap.Int("laws", len(ids)))
	}
	stats.Laws = len(seenLaws)
	return stats, nil
}

// IndexLaw indexes the articles of law and returns how many were indexed.
// Re-indexing an article replaces its previous entries.
func (idx *Indexer) IndexLaw(ctx context.Context, law *models.Law) (int, error) {
	indexed := 0
	for start := 0; start < len(law.Articles); start += idx.batchSize {
		end := min(start+idx.batchSize, len(law.Articles))
		n, err := idx.indexBatch(ctx, law, law.Articles[start:end])
		if err != nil {
			return indexed, err
		}
		indexed += n
	}
	return indexed, nil
}

func (idx *Indexer) indexBatch(ctx context.Context, law *models.Law, articles []models.Article) (int, error) {
	now := time.Now()
	var (
		ids     []string
		texts   []string
		entries []*storage.CatalogEntry
		docs    []*keyword.ArticleDoc
	)
	for i := range articles {
		a := &articles[i]
		if a.Title == "" {
			continue
		}
		key := models.NewArticleKey(law.LawID, a.Title)
		content := a.Text()
		ids = append(ids, key.String())
		texts = append(texts, EmbeddingText(law.LawTitle, a, idx.maxTextRunes))
		entries = append(entries, &storage.CatalogEntry{
			VectorID:       key.String(),
			LawID:          law.LawID,
			LawTitle:       law.LawTitle,
			LawNum:         law.LawNum,
			ArticleTitle:   key.ArticleTitle,
			ArticleCaption: a.Caption,
			IndexedAt:      now,
		})
		docs = append(docs, &keyword.ArticleDoc{
			LawID:        law.LawID,
			LawTitle:     law.LawTitle,
			ArticleTitle: key.ArticleTitle,
			Caption:      a.Caption,
			Content:      content,
		})
	}
	if len(ids) == 0 {
		return 0, nil
	}

	embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if err := idx.catalog.UpsertArticles(ctx, entries); err != nil {
		return 0, fmt.Errorf("failed to store catalog entries: %w", err)
	}
	if err := idx.vectorIndex.Add(ctx, ids, embeddings); err != nil {
		return 0, fmt.Errorf("failed to index vectors: %w", err)
	}
	if idx.keywordIndex != nil {
		if err := idx.keywordIndex.IndexBatch(ctx, docs); err != nil {
			return 0, fmt.Errorf("failed to index keywords: %w", err)
		}
	}
	return len(ids), nil
}

// EmbeddingText is the text embedded for an article: law title, article
// title and caption on the first line, then the body, cut to maxRunes.
func EmbeddingText(lawTitle string, a *models.Article, maxRunes int) string {
	var b strings.Builder
	b.WriteString(lawTitle)
	b.WriteString(" ")
	b.WriteString(a.Title)
	if a.Caption != "" {
		b.WriteString(" ")
		b.WriteString(a.Caption)
	}
	b.WriteString("\n")
	b.WriteString(a.Text())
	text := b.String()
	if maxRunes <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) > maxRunes {
		return string(runes[:maxRunes])
	}
	return text
}
