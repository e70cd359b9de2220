// Package config provides configuration loading and structs for the joubun server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/joubun/internal/ranking"
	"github.com/hyperjump/joubun/internal/refgraph"
	"github.com/hyperjump/joubun/internal/shard"
)

// Environment variables holding secrets. They are never read from the YAML file.
const (
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvAccessKey       = "AWS_ACCESS_KEY_ID"
	EnvSecretKey       = "AWS_SECRET_ACCESS_KEY"
	EnvRedisPassword   = "REDIS_PASSWORD"
	EnvStorageBucket   = "JOUBUN_S3_BUCKET"
	EnvStorageEndpoint = "JOUBUN_S3_ENDPOINT"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool            `yaml:"debug"`
	Server     ServerConfig    `yaml:"server"`
	Storage    StorageConfig   `yaml:"storage"`
	Sharding   shard.Layout    `yaml:"sharding"`
	References refgraph.Config `yaml:"references"`
	Index      IndexConfig     `yaml:"index"`
	Embedding  EmbeddingConfig `yaml:"embedding"`
	LLM        LLMConfig       `yaml:"llm"`
	Ranking    ranking.Config  `yaml:"ranking"`
	Laws       LawsConfig      `yaml:"laws"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StorageConfig selects the object store holding the statute shards.
type StorageConfig struct {
	Type         string      `yaml:"type"` // disk, s3 or memory
	DiskPath     string      `yaml:"disk_path"`
	S3Bucket     string      `yaml:"s3_bucket"`
	S3Region     string      `yaml:"s3_region"`
	S3Endpoint   string      `yaml:"s3_endpoint"`
	UsePathStyle bool        `yaml:"use_path_style"`
	AccessKey    string      `yaml:"-"`
	SecretKey    string      `yaml:"-"`
	Cache        CacheConfig `yaml:"cache"`
}

// CacheConfig configures the read-through blob cache in front of the store.
type CacheConfig struct {
	Type     string        `yaml:"type"` // none, sqlite or redis
	Path     string        `yaml:"path"`
	RedisURL string        `yaml:"redis_url"`
	RedisDB  int           `yaml:"redis_db"`
	Password string        `yaml:"-"`
	TTL      time.Duration `yaml:"ttl"`
}

// IndexConfig holds the paths of the local retrieval indices.
type IndexConfig struct {
	VectorPath     string `yaml:"vector_path"`
	CatalogPath    string `yaml:"catalog_path"`
	KeywordPath    string `yaml:"keyword_path"`
	KeywordEnabled bool   `yaml:"keyword_enabled"`
	// MaxTextRunes truncates article text before embedding.
	MaxTextRunes int `yaml:"max_text_runes"`
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	Provider          string `yaml:"provider"` // gemini or mock
	Model             string `yaml:"model"`
	Dimensions        int    `yaml:"dimensions"`
	CacheSize         int    `yaml:"cache_size"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	APIKey            string `yaml:"-"`
}

// LLMConfig holds text completion settings.
type LLMConfig struct {
	Model             string  `yaml:"model"`
	Temperature       float32 `yaml:"temperature"`
	MaxOutputTokens   int32   `yaml:"max_output_tokens"`
	RequestsPerMinute int     `yaml:"requests_per_minute"`
	Candidates        int     `yaml:"candidates"`
	APIKey            string  `yaml:"-"`
}

// LawsConfig holds the injected law tables.
type LawsConfig struct {
	// NamesFile is a JSON list of {law_id, law_title, abbrev} used for name resolution.
	NamesFile string `yaml:"names_file"`
	// WatchNames reloads NamesFile when it changes.
	WatchNames bool `yaml:"watch_names"`
	// CommonOverrides adds to or replaces entries of the built-in common law table.
	CommonOverrides map[string]string `yaml:"common_overrides"`
	// ParentExceptions maps regulation names to parent laws the suffix rules get wrong.
	ParentExceptions map[string]string `yaml:"parent_exceptions"`
}

// Load reads and parses the config file at path, loads secrets from the
// environment (and a .env file next to the config, if any), expands paths,
// and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Config{Ranking: *ranking.DefaultConfig()}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if err := loadDotEnv(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}
	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)

	cfg.Storage.DiskPath = expandPath(cfg.Storage.DiskPath, configDir)
	cfg.Storage.Cache.Path = expandPath(cfg.Storage.Cache.Path, configDir)
	cfg.Index.VectorPath = expandPath(cfg.Index.VectorPath, configDir)
	cfg.Index.CatalogPath = expandPath(cfg.Index.CatalogPath, configDir)
	cfg.Index.KeywordPath = expandPath(cfg.Index.KeywordPath, configDir)
	if cfg.Laws.NamesFile != "" {
		cfg.Laws.NamesFile = expandPath(cfg.Laws.NamesFile, configDir)
	}

	return &cfg, nil
}

// ApplyEnv copies secrets and deployment overrides from the environment.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvGeminiAPIKey); v != "" {
		cfg.Embedding.APIKey = v
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv(EnvAccessKey); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv(EnvSecretKey); v != "" {
		cfg.Storage.SecretKey = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Storage.Cache.Password = v
	}
	if v := os.Getenv(EnvStorageBucket); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv(EnvStorageEndpoint); v != "" {
		cfg.Storage.S3Endpoint = v
	}
}

// loadDotEnv loads path into the process environment when it exists.
// Variables already set take precedence.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
