package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/joubun/internal/citation"
	"github.com/hyperjump/joubun/internal/config"
	"github.com/hyperjump/joubun/internal/embedding"
	"github.com/hyperjump/joubun/internal/indexer"
	"github.com/hyperjump/joubun/internal/keyword"
	"github.com/hyperjump/joubun/internal/lawid"
	"github.com/hyperjump/joubun/internal/llm"
	"github.com/hyperjump/joubun/internal/qa"
	"github.com/hyperjump/joubun/internal/refgraph"
	"github.com/hyperjump/joubun/internal/search"
	"github.com/hyperjump/joubun/internal/shard"
	"github.com/hyperjump/joubun/internal/storage"
	"github.com/hyperjump/joubun/internal/vector"
)

// Components holds initialized dependencies for server and CLI.
type Components struct {
	Store        storage.ObjectStore
	Catalog      *storage.SQLiteStore
	Embedder     *embedding.CachedEmbedder
	VectorIndex  vector.VectorIndex
	KeywordIndex keyword.KeywordIndex
	Names        *lawid.Names
	Engine       *search.Engine
	References   *refgraph.Accessor
	Indexer      *indexer.Indexer
	// QA is nil when no language model API key is configured.
	QA *qa.Service

	closers []io.Closer
}

// Close releases resources held by components, newest first.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i].Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	store, err := newObjectStore(ctx, cfg, c, logger)
	if err != nil {
		return nil, err
	}
	c.Store = store

	catalog, err := storage.NewSQLiteStore(cfg.Index.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}
	c.Catalog = catalog
	c.closers = append(c.closers, catalog)

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.Embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)
	c.closers = append(c.closers, embedder)

	vectorIndex, err := vector.NewVectorIndex(string(vector.IndexTypeMemory), cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if cfg.Index.VectorPath != "" {
		if loadErr := vectorIndex.Load(cfg.Index.VectorPath); loadErr != nil {
			logger.Warn("vector index load skipped (run index)", zap.String("path", cfg.Index.VectorPath), zap.Error(loadErr))
		}
	}
	c.VectorIndex = vectorIndex
	c.closers = append(c.closers, vectorIndex)
	logger.Info("vector index initialized", zap.Int("size", vectorIndex.Size()))

	if cfg.Index.KeywordEnabled {
		kw, err := keyword.NewBleveIndex(cfg.Index.KeywordPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
		}
		c.KeywordIndex = kw
		c.closers = append(c.closers, kw)
	}

	c.Names = loadNames(cfg.Laws.NamesFile, logger)
	common := lawid.NewTable(lawid.DefaultCommonTable(), cfg.Laws.CommonOverrides)
	searcher := vector.NewSearcher(c.Embedder, vectorIndex, catalog)
	resolver := lawid.NewResolver(common,
		lawid.WithNames(c.Names),
		lawid.WithSearch(searcher),
		lawid.WithLogger(logger),
	)
	parser := citation.NewParser(citation.NewParentMap(cfg.Laws.ParentExceptions))

	locator := shard.NewLocator(cfg.Sharding)
	fetcher := shard.NewFetcher(store, locator, shard.WithLogger(logger))

	engineOpts := []search.Option{search.WithLogger(logger)}
	if c.KeywordIndex != nil {
		engineOpts = append(engineOpts, search.WithKeyword(c.KeywordIndex))
	}
	c.Engine = search.NewEngine(
		searcher,
		parser,
		resolver,
		search.NewFuser(&cfg.Ranking, common),
		fetcher,
		&cfg.Ranking,
		engineOpts...,
	)
	c.References = refgraph.NewAccessor(store, cfg.References, logger)

	idxOpts := []indexer.IndexerOption{
		indexer.WithLogger(logger),
		indexer.WithMaxTextRunes(cfg.Index.MaxTextRunes),
	}
	if c.KeywordIndex != nil {
		idxOpts = append(idxOpts, indexer.WithKeywordIndex(c.KeywordIndex))
	}
	c.Indexer = indexer.NewIndexer(fetcher, locator, catalog, c.Embedder, vectorIndex, idxOpts...)

	if cfg.LLM.APIKey != "" {
		client, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{
			APIKey:            cfg.LLM.APIKey,
			Model:             cfg.LLM.Model,
			Temperature:       cfg.LLM.Temperature,
			MaxOutputTokens:   cfg.LLM.MaxOutputTokens,
			RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize language model: %w", err)
		}
		c.closers = append(c.closers, client)
		c.QA = qa.NewService(c.Engine, client,
			qa.WithReferences(c.References),
			qa.WithCandidates(cfg.LLM.Candidates),
			qa.WithLogger(logger),
		)
	} else {
		logger.Warn("no language model API key configured, question answering disabled",
			zap.String("env", config.EnvGeminiAPIKey))
	}

	ok = true
	return c, nil
}

// newObjectStore opens the configured store and wraps it in the configured cache.
func newObjectStore(ctx context.Context, cfg *config.Config, c *Components, logger *zap.Logger) (storage.ObjectStore, error) {
	store, err := storage.NewObjectStore(ctx, storage.Config{
		Type:         storage.StoreType(cfg.Storage.Type),
		DiskPath:     cfg.Storage.DiskPath,
		S3Bucket:     cfg.Storage.S3Bucket,
		S3Region:     cfg.Storage.S3Region,
		S3Endpoint:   cfg.Storage.S3Endpoint,
		AccessKey:    cfg.Storage.AccessKey,
		SecretKey:    cfg.Storage.SecretKey,
		UsePathStyle: cfg.Storage.UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	cacheCfg := cfg.Storage.Cache
	var cache storage.BlobCache
	switch cacheCfg.Type {
	case "", "none":
		return store, nil
	case "sqlite":
		s, err := storage.NewSQLiteStore(cacheCfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize blob cache: %w", err)
		}
		c.closers = append(c.closers, s)
		cache = s
	case "redis":
		r, err := storage.NewRedisCache(ctx, storage.RedisCacheConfig{
			URL:      cacheCfg.RedisURL,
			Password: cacheCfg.Password,
			DB:       cacheCfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, r)
		cache = r
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cacheCfg.Type)
	}
	logger.Info("storage cache enabled", zap.String("type", cacheCfg.Type), zap.Duration("ttl", cacheCfg.TTL))
	return storage.NewCachedStore(store, cache, cacheCfg.TTL, logger), nil
}

func newEmbedder(ctx context.Context, cfg *config.Config) (embedding.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimensions), nil
	case "gemini", "":
		e, err := embedding.NewGeminiEmbedder(ctx, embedding.GeminiConfig{
			APIKey:            cfg.Embedding.APIKey,
			Model:             cfg.Embedding.Model,
			Dimensions:        cfg.Embedding.Dimensions,
			RequestsPerMinute: cfg.Embedding.RequestsPerMinute,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}
}

// loadNames loads the law names file. A missing or broken file leaves the
// table empty; resolution then relies on the common table and vector search.
func loadNames(path string, logger *zap.Logger) *lawid.Names {
	if path == "" {
		return lawid.NewNames(nil)
	}
	if _, err := os.Stat(path); err != nil {
		logger.Warn("law names file not found", zap.String("path", path))
		return lawid.NewNames(nil)
	}
	table, err := lawid.LoadTable(path)
	if err != nil {
		logger.Warn("law names file skipped", zap.String("path", path), zap.Error(err))
		return lawid.NewNames(nil)
	}
	logger.Info("law names loaded", zap.String("path", path), zap.Int("laws", table.Len()))
	return lawid.NewNames(table)
}

// status reports component statistics for the status endpoint and command.
func (c *Components) status(ctx context.Context) map[string]interface{} {
	out := map[string]interface{}{
		"vector_index_size": c.VectorIndex.Size(),
		"law_names":         c.Names.Len(),
		"qa_enabled":        c.QA != nil,
		"checked_at":        time.Now().UTC(),
	}
	if n, err := c.Catalog.CountArticles(ctx); err == nil {
		out["articles"] = n
	}
	if n, err := c.Catalog.CountLaws(ctx); err == nil {
		out["laws"] = n
	}
	out["embedding_cache"] = c.Embedder.Stats()
	if c.KeywordIndex != nil {
		if n, err := c.KeywordIndex.DocCount(); err == nil {
			out["keyword_docs"] = n
		}
	}
	return out
}
