package config

import (
	"time"

	"github.com/hyperjump/joubun/internal/ranking"
	"github.com/hyperjump/joubun/internal/shard"
)

const dataDir = "/usr/local/var/joubun/data"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 120 * time.Second
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "disk"
	}
	if cfg.Storage.DiskPath == "" {
		cfg.Storage.DiskPath = dataDir + "/corpus"
	}
	if cfg.Storage.Cache.Type == "" {
		cfg.Storage.Cache.Type = "none"
	}
	if cfg.Storage.Cache.Type == "sqlite" && cfg.Storage.Cache.Path == "" {
		cfg.Storage.Cache.Path = dataDir + "/cache/blobs.db"
	}
	if cfg.Storage.Cache.TTL == 0 {
		cfg.Storage.Cache.TTL = 24 * time.Hour
	}

	defaults := shard.DefaultLayout()
	if cfg.Sharding.ChunkMapKey == "" {
		cfg.Sharding.ChunkMapKey = defaults.ChunkMapKey
	}
	if cfg.Sharding.ShardKeyFormat == "" {
		cfg.Sharding.ShardKeyFormat = defaults.ShardKeyFormat
	}
	if cfg.Sharding.ArticleKeyFormat == "" {
		cfg.Sharding.ArticleKeyFormat = defaults.ArticleKeyFormat
	}
	if cfg.Sharding.RangeLaws == nil {
		cfg.Sharding.RangeLaws = defaults.RangeLaws
	}

	if cfg.Index.VectorPath == "" {
		cfg.Index.VectorPath = dataDir + "/indices/vectors.bin"
	}
	if cfg.Index.CatalogPath == "" {
		cfg.Index.CatalogPath = dataDir + "/db/catalog.db"
	}
	if cfg.Index.KeywordPath == "" {
		cfg.Index.KeywordPath = dataDir + "/indices/bleve"
	}
	if cfg.Index.MaxTextRunes == 0 {
		cfg.Index.MaxTextRunes = 6000
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "gemini"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}

	if cfg.LLM.Candidates == 0 {
		cfg.LLM.Candidates = 20
	}

	if cfg.Ranking == (ranking.Config{}) {
		cfg.Ranking = *ranking.DefaultConfig()
	}
	cfg.Ranking.ApplyDefaults()
}
