// Package refgraph reads the sharded cross-reference graph between articles.
// A root index maps each law id to a reference shard; each shard holds the
// forward references and the reverse references of its laws, keyed by
// article id (see kanji.ArticleID).
package refgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/joubun/internal/enrich"
	"github.com/hyperjump/joubun/internal/kanji"
	"github.com/hyperjump/joubun/internal/models"
	"github.com/hyperjump/joubun/internal/storage"
)

// MaxReverseRefs is the number of reverse references kept by consumers.
const MaxReverseRefs = 5

const (
	DefaultIndexKey       = "refs/refs_index.json"
	DefaultShardKeyFormat = "refs/refs_chunk_%03d.json"
)

// Ref is one outgoing reference found in an article's text.
type Ref struct {
	Target    string `json:"target"`
	Text      string `json:"text"`
	Paragraph int    `json:"paragraph,omitempty"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
}

// ArticleRefs is the reference set of one requested article. Refs and
// ReverseRefs are never nil.
type ArticleRefs struct {
	LawID        string   `json:"law_id"`
	ArticleTitle string   `json:"article_title"`
	Refs         []Ref    `json:"refs"`
	ReverseRefs  []string `json:"reverse_refs"`
}

// CapReverse truncates ReverseRefs to MaxReverseRefs.
func (a *ArticleRefs) CapReverse() {
	if len(a.ReverseRefs) > MaxReverseRefs {
		a.ReverseRefs = a.ReverseRefs[:MaxReverseRefs]
	}
}

type lawEntry struct {
	Refs        map[string][]Ref    `json:"refs"`
	ReverseRefs map[string][]string `json:"reverse_refs"`
}

type shardFile map[string]lawEntry

// Config names the storage objects of the graph.
type Config struct {
	IndexKey       string `yaml:"index_key"`
	ShardKeyFormat string `yaml:"shard_key_format"`
}

// Accessor answers reference lookups from an object store.
type Accessor struct {
	store  storage.ObjectStore
	config Config
	logger *zap.Logger
}

// NewAccessor creates an accessor. Empty config fields take the defaults.
func NewAccessor(store storage.ObjectStore, cfg Config, logger *zap.Logger) *Accessor {
	if cfg.IndexKey == "" {
		cfg.IndexKey = DefaultIndexKey
	}
	if cfg.ShardKeyFormat == "" {
		cfg.ShardKeyFormat = DefaultShardKeyFormat
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accessor{store: store, config: cfg, logger: logger}
}

// GetReferences returns the references of every key, in key order. Missing
// index, shards or entries yield empty lists; storage failures are logged and
// treated the same way.
func (a *Accessor) GetReferences(ctx context.Context, keys []models.ArticleKey) []ArticleRefs {
	out := make([]ArticleRefs, len(keys))
	for i, k := range keys {
		out[i] = ArticleRefs{LawID: k.LawID, ArticleTitle: k.ArticleTitle, Refs: []Ref{}, ReverseRefs: []string{}}
	}
	if len(keys) == 0 {
		return out
	}

	index := enrich.OrElse(a.logger, "refgraph.index",
		enrich.Attempt(func() (map[string]int, error) { return a.loadIndex(ctx) }), nil)
	if len(index) == 0 {
		return out
	}

	needed := make(map[int]struct{})
	for _, k := range keys {
		if n, ok := index[k.LawID]; ok {
			needed[n] = struct{}{}
		}
	}
	shardNums := make([]int, 0, len(needed))
	for n := range needed {
		shardNums = append(shardNums, n)
	}
	sort.Ints(shardNums)

	var (
		shards = make([]shardFile, len(shardNums))
		wg     sync.WaitGroup
	)
	for i, n := range shardNums {
		wg.Add(1)
		go func(i, n int) {
			defer wg.Done()
			shards[i] = enrich.OrElse(a.logger, "refgraph.shard",
				enrich.Attempt(func() (shardFile, error) { return a.loadShard(ctx, n) }), nil)
		}(i, n)
	}
	wg.Wait()

	byNum := make(map[int]shardFile, len(shardNums))
	for i, n := range shardNums {
		byNum[n] = shards[i]
	}
	for i, k := range keys {
		n, ok := index[k.LawID]
		if !ok {
			continue
		}
		entry, ok := byNum[n][k.LawID]
		if !ok {
			continue
		}
		id := kanji.ArticleID(k.LawID, k.ArticleTitle)
		if id == "" {
			continue
		}
		if refs := entry.Refs[id]; len(refs) > 0 {
			out[i].Refs = refs
		}
		if rev := entry.ReverseRefs[id]; len(rev) > 0 {
			out[i].ReverseRefs = rev
		}
	}
	return out
}

func (a *Accessor) loadIndex(ctx context.Context) (map[string]int, error) {
	data, err := a.store.Get(ctx, a.config.IndexKey)
	if errors.Is(err, storage.ErrNotFound) {
		a.logger.Debug("reference index not found", zap.String("key", a.config.IndexKey))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reference index: %w", err)
	}
	var index map[string]int
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse reference index: %w", err)
	}
	return index, nil
}

func (a *Accessor) loadShard(ctx context.Context, n int) (shardFile, error) {
	key := fmt.Sprintf(a.config.ShardKeyFormat, n)
	data, err := a.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		a.logger.Debug("reference shard not found", zap.String("key", key))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reference shard %s: %w", key, err)
	}
	var sf shardFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse reference shard %s: %w", key, err)
	}
	return sf, nil
}
