package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/joubun/internal/models"
)

// DefaultTitleBoost weights matches in the law title, article title and caption.
const DefaultTitleBoost = 2.0

var storedFields = []string{"law_id", "law_title", "article_title", "caption"}

// BleveIndex implements KeywordIndex using Bleve with the CJK bigram analyzer.
type BleveIndex struct {
	index      bleve.Index
	titleBoost float64
}

// NewBleveIndex creates or opens a Bleve index at path.
// If the path already exists, the existing index is opened and reused.
// If you change the index mapping in code, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Japanese has no word boundaries; the CJK analyzer indexes character bigrams.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = cjk.AnalyzerName
	textFieldMapping.Store = false
	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = cjk.AnalyzerName
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("law_title", titleFieldMapping)
	docMapping.AddFieldMappingsAt("caption", titleFieldMapping)

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	keywordFieldMapping.Analyzer = keywordanalyzer.Name
	docMapping.AddFieldMappingsAt("law_id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("article_title", keywordFieldMapping)
	im.AddDocumentMapping("article", docMapping)
	im.DefaultType = "article"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index, titleBoost: DefaultTitleBoost}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index, titleBoost: DefaultTitleBoost}, nil
}

// Index indexes an article under its key.
func (b *BleveIndex) Index(ctx context.Context, doc *ArticleDoc) error {
	return b.index.Index(doc.Key().String(), doc)
}

// IndexBatch indexes many articles in one batch.
func (b *BleveIndex) IndexBatch(ctx context.Context, docs []*ArticleDoc) error {
	batch := b.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.Key().String(), doc); err != nil {
			return fmt.Errorf("failed to add %s to batch: %w", doc.Key(), err)
		}
	}
	return b.index.Batch(batch)
}

// Query runs the query against content and title fields and returns up to k
// hits ordered by additive score (title score × boost + content score).
func (b *BleveIndex) Query(ctx context.Context, text string, k int) ([]models.SearchHit, error) {
	if k <= 0 {
		return nil, nil
	}
	// Request enough from each so the merged top k is correct (same doc can appear in both).
	reqSize := k * 2
	if reqSize < 50 {
		reqSize = 50
	}

	scores := make(map[string]float64)
	meta := make(map[string]models.SearchHit)
	fields := []struct {
		names []string
		boost float64
	}{
		{names: []string{"law_title", "caption"}, boost: b.titleBoost},
		{names: []string{"content"}, boost: 1},
	}
	for _, f := range fields {
		queries := make([]blevequery.Query, 0, len(f.names))
		for _, name := range f.names {
			mq := bleve.NewMatchQuery(text)
			mq.SetField(name)
			queries = append(queries, mq)
		}
		req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(queries...))
		req.Size = reqSize
		req.Fields = storedFields
		results, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("Bleve search failed: %w", err)
		}
		for _, hit := range results.Hits {
			scores[hit.ID] += hit.Score * f.boost
			if _, ok := meta[hit.ID]; !ok {
				meta[hit.ID] = hitFromFields(hit.Fields)
			}
		}
	}

	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if scores[ids[i]] != scores[ids[j]] {
			return scores[ids[i]] > scores[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > k {
		ids = ids[:k]
	}
	out := make([]models.SearchHit, len(ids))
	for i, id := range ids {
		h := meta[id]
		h.Score = scores[id]
		h.Rank = i
		out[i] = h
	}
	return out, nil
}

func hitFromFields(fields map[string]interface{}) models.SearchHit {
	str := func(name string) string {
		s, _ := fields[name].(string)
		return s
	}
	return models.SearchHit{
		LawID:          str("law_id"),
		LawTitle:       str("law_title"),
		ArticleTitle:   str("article_title"),
		ArticleCaption: str("caption"),
	}
}

// Delete removes a document from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the total number of documents in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
