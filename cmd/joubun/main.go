// Package main is the joubun CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/joubun/internal/cli"
	"github.com/hyperjump/joubun/internal/config"
	"github.com/hyperjump/joubun/internal/models"
	"github.com/hyperjump/joubun/internal/qa"
	"github.com/hyperjump/joubun/internal/server"
	"github.com/hyperjump/joubun/internal/watcher"
	"github.com/hyperjump/joubun/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/joubun/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory takes precedence if it exists, so that running from
// the project dir uses the project's config.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "resolve":
		runResolve()
	case "refs":
		runRefs()
	case "ask":
		runAsk()
	case "index":
		runIndex()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("joubun version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config, creates the logger and initializes components. It exits
// the process on failure.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger, *Components, string) {
	cfg, resolvedConfigPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)
	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components, resolvedConfigPath
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components, resolvedConfigPath := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()
	logger.Info("config loaded", zap.String("config_path", resolvedConfigPath))

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Laws.WatchNames && cfg.Laws.NamesFile != "" {
		names := components.Names
		watchSvc := watcher.NewWatcher(
			[]string{cfg.Laws.NamesFile},
			func(path string) {
				if err := names.Reload(path); err != nil {
					logger.Warn("law names reload failed", zap.String("path", path), zap.Error(err))
					return
				}
				logger.Info("law names reloaded", zap.String("path", path), zap.Int("laws", names.Len()))
			},
			watcher.WithLogger(logger),
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Warn("law names watcher not started", zap.Error(err))
		} else {
			logger.Info("watching law names", zap.Strings("files", watchSvc.Files()))
			defer watchSvc.Stop()
		}
	}

	opts := []server.Option{
		server.WithReferences(components.References),
		server.WithStatus(components.status),
	}
	if components.QA != nil {
		opts = append(opts, server.WithAsker(components.QA))
	}
	srv := server.NewServer(components.Engine, &cfg.Server, logger, opts...)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: joubun search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Article citations in the query (民法第五百五十七条, 会社法355条) are always ranked first.
Use -q to add expanded queries; the positional query is used for citations.

Examples:
  joubun search 手付解除の要件
  joubun search 民法第1050条の特別の寄与
  joubun search -q 取締役の忠実義務 -q 利益相反取引 取締役の責任
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = search local indices directly)")
	limit := fs.Int("limit", 10, "number of results")
	currentLaw := fs.String("law", "", "law the question is asked in the context of (enables 法/令 references)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	var queries stringList
	fs.Var(&queries, "q", "expanded query (repeatable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" && len(queries) == 0 {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)
	req := &models.SearchRequest{
		Queries:       queries,
		OriginalQuery: queryStr,
		TopN:          *limit,
		CurrentLaw:    *currentLaw,
	}

	var response models.SearchResponse
	if *serverURL != "" {
		if err := postJSON(*serverURL+"/api/v1/search", req, &response); err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		_, logger, components, _ := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		res, err := components.Engine.Search(context.Background(), req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		response = *res
	}
	if err := cli.WriteSearchResults(os.Stdout, &response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runResolve() {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: joubun resolve [flags] <law name or id> <article>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))
	if fs.NArg() != 2 {
		fs.Usage()
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	_, logger, components, _ := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()
	article, found, err := components.Engine.ResolveArticle(context.Background(), fs.Arg(0), fs.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Resolve failed: %v\n", err)
		os.Exit(1)
	}
	if !found {
		fmt.Fprintf(os.Stderr, "Article not found: %s %s\n", fs.Arg(0), fs.Arg(1))
		os.Exit(1)
	}
	if err := cli.WriteArticle(os.Stdout, article, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// parseArticleKeys parses "lawID:articleTitle" arguments.
func parseArticleKeys(args []string) ([]models.ArticleKey, error) {
	keys := make([]models.ArticleKey, 0, len(args))
	for _, a := range args {
		lawID, title, ok := strings.Cut(a, ":")
		if !ok || lawID == "" || title == "" {
			return nil, fmt.Errorf("invalid article key %q (want lawID:articleTitle)", a)
		}
		keys = append(keys, models.NewArticleKey(lawID, title))
	}
	return keys, nil
}

func runRefs() {
	fs := flag.NewFlagSet("refs", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: joubun refs [flags] <lawID:articleTitle>...\n\n")
		fs.PrintDefaults()
		fmt.Fprintf(fs.Output(), "\nExample:\n  joubun refs 129AC0000000089:第五百五十七条\n")
	}
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))
	keys, err := parseArticleKeys(fs.Args())
	if err != nil || len(keys) == 0 {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		fs.Usage()
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)

	_, logger, components, _ := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()
	refs := components.References.GetReferences(context.Background(), keys)
	if err := cli.WriteReferences(os.Stdout, refs, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = answer locally)")
	concise := fs.Bool("concise", false, "list articles with one line of relevance each")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	question := buildSearchQuery(fs.Args())
	if question == "" {
		fmt.Fprintf(os.Stderr, "Usage: joubun ask [flags] <question>\n")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)
	req := &qa.Request{Question: question, Concise: *concise}

	var answer qa.Answer
	if *serverURL != "" {
		if err := postJSON(*serverURL+"/api/v1/ask", req, &answer); err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		_, logger, components, _ := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		if components.QA == nil {
			fmt.Fprintf(os.Stderr, "Question answering requires %s\n", config.EnvGeminiAPIKey)
			os.Exit(1)
		}
		res, err := components.QA.Ask(context.Background(), req)
		if err != nil {
			if qa.IsUnavailable(err) {
				fmt.Fprintln(os.Stderr, "Language model temporarily unavailable, try again later")
				os.Exit(1)
			}
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		answer = *res
	}
	if err := cli.WriteAnswer(os.Stdout, &answer, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components, _ := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	stats, err := components.Indexer.IndexCorpus(context.Background())
	if err != nil {
		logger.Fatal("Index failed", zap.Error(err))
	}
	if cfg.Index.VectorPath != "" {
		if err := components.VectorIndex.Save(cfg.Index.VectorPath); err != nil {
			logger.Fatal("vector index save failed", zap.String("path", cfg.Index.VectorPath), zap.Error(err))
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(stats)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = read local indices)")
	_ = fs.Parse(os.Args[2:])

	var status map[string]interface{}
	if *serverURL != "" {
		if err := getJSON(*serverURL+"/api/v1/status", &status); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		_, logger, components, _ := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		status = components.status(context.Background())
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func postJSON(url string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func getJSON(url string, out interface{}) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func printUsage() {
	fmt.Println(`joubun - Japanese statute citation resolution and search

Usage:
  joubun server [flags]                    Start the HTTP server
  joubun search [flags] <query>            Search articles (citations ranked first)
  joubun resolve [flags] <law> <article>   Show one article, e.g. 民法 第五百五十七条
  joubun refs [flags] <lawID:article>...   Show cross-references of articles
  joubun ask [flags] <question>            Answer a question with cited articles
  joubun index [flags]                     Build the local vector and keyword indices
  joubun status [flags]                    Show index statistics
  joubun version                           Show version

Use "joubun <command> -h" for command flags.`)
}
