package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/joubun/internal/config"
	"github.com/hyperjump/joubun/internal/models"
)

func TestSearchArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"手付解除", "-limit", "5"},
			expected: []string{"-limit", "5", "手付解除"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-limit", "5", "手付解除"},
			expected: []string{"-limit", "5", "手付解除"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"手付解除"},
			expected: []string{"手付解除"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"民法", "第五百五十七条", "-output", "json"},
			expected: []string{"-output", "json", "民法", "第五百五十七条"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchArgsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("searchArgsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"寄与分"}, "寄与分"},
		{"multiple words", []string{"民法", "第九十条"}, "民法 第九十条"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildSearchQuery(tt.args); got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestParseArticleKeys(t *testing.T) {
	keys, err := parseArticleKeys([]string{"129AC0000000089:第557条", "417AC0000000086:第三百五十五条"})
	if err != nil {
		t.Fatal(err)
	}
	want := []models.ArticleKey{
		{LawID: "129AC0000000089", ArticleTitle: "第五百五十七条"},
		{LawID: "417AC0000000086", ArticleTitle: "第三百五十五条"},
	}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("keys = %+v", keys)
	}
	for _, bad := range []string{"129AC0000000089", ":第一条", "129AC0000000089:"} {
		if _, err := parseArticleKeys([]string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

const fictionalLawID = "999AC0000000001"

func writeJSONFile(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestInitializeComponents_IndexAndSearch(t *testing.T) {
	t.Setenv(config.EnvGeminiAPIKey, "")
	dir := t.TempDir()
	law := &models.Law{
		LawID:    fictionalLawID,
		LawTitle: "架空法",
		Articles: []models.Article{{
			Title:   "第一条",
			Caption: "（目的）",
			Paragraphs: []models.Paragraph{{
				Num:       "1",
				Sentences: []models.Sentence{{Text: "この法律は、試験のために定める。"}},
			}},
		}},
	}
	writeJSONFile(t, filepath.Join(dir, "corpus", "law_chunk_map.json"), map[string]int{fictionalLawID: 1})
	writeJSONFile(t, filepath.Join(dir, "corpus", "laws_chunk_001.json"), map[string]any{
		"laws": map[string]*models.Law{fictionalLawID: law},
	})
	writeJSONFile(t, filepath.Join(dir, "names.json"), map[string]string{"架空法": fictionalLawID})

	configPath := filepath.Join(dir, "config.yaml")
	content := `
storage:
  type: disk
  disk_path: ./corpus
sharding:
  range_laws: {}
index:
  vector_path: ./data/vectors.bin
  catalog_path: ./data/catalog.db
embedding:
  provider: mock
  dimensions: 8
laws:
  names_file: ./names.json
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("initializeComponents: %v", err)
	}
	defer components.Close()
	if components.QA != nil {
		t.Error("question answering should be disabled without an API key")
	}

	stats, err := components.Indexer.IndexCorpus(ctx)
	if err != nil {
		t.Fatalf("IndexCorpus: %v", err)
	}
	if stats.Articles != 1 || stats.Laws != 1 {
		t.Errorf("stats = %+v", stats)
	}

	resp, err := components.Engine.Search(ctx, &models.SearchRequest{OriginalQuery: "架空法第一条の目的"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("expected results")
	}
	top := resp.Results[0]
	if top.MatchType != "exact" || top.Law.LawID != fictionalLawID || top.Article == nil {
		t.Errorf("top result = %+v", top)
	}

	status := components.status(ctx)
	if status["vector_index_size"] != 1 {
		t.Errorf("status = %+v", status)
	}
}
