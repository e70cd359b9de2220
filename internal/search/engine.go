package search

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/hyperjump/joubun/internal/citation"
	"github.com/hyperjump/joubun/internal/kanji"
	"github.com/hyperjump/joubun/internal/models"
	"github.com/hyperjump/joubun/internal/ranking"
	"github.com/hyperjump/joubun/internal/shard"
	"github.com/hyperjump/joubun/internal/vector"
)

// NoResultsMessage is reported when a search legitimately finds nothing.
const NoResultsMessage = "no results"

// lawIDPattern matches e-Gov law ids such as 129AC0000000089 or 321CONSTITUTION.
var lawIDPattern = regexp.MustCompile(`^[0-9]{3}[A-Z0-9]{7,}$`)

// Engine runs fused statute search and article lookup.
type Engine struct {
	vector   vector.Search
	keyword  vector.Search
	parser   *citation.Parser
	resolver citation.LawResolver
	fuser    *Fuser
	fetcher  *shard.Fetcher
	config   *ranking.Config
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithKeyword adds a keyword hit list per query to the fusion.
func WithKeyword(k vector.Search) Option {
	return func(e *Engine) { e.keyword = k }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(
	vec vector.Search,
	parser *citation.Parser,
	resolver citation.LawResolver,
	fuser *Fuser,
	fetcher *shard.Fetcher,
	cfg *ranking.Config,
	opts ...Option,
) *Engine {
	if cfg == nil {
		cfg = ranking.DefaultConfig()
	}
	e := &Engine{
		vector:   vec,
		parser:   parser,
		resolver: resolver,
		fuser:    fuser,
		fetcher:  fetcher,
		config:   cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Parser returns the citation parser used for queries.
func (e *Engine) Parser() *citation.Parser {
	return e.parser
}

// Search runs every query in parallel, fuses the hit lists with the citations
// parsed from the original query and fetches the bodies of the top results.
// An empty ranking is not an error: the response carries NoResultsMessage.
func (e *Engine) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	startTime := time.Now()
	ctx, span := otel.Tracer("joubun/search").Start(ctx, "search.Search")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	cits := e.parser.Parse(req.OriginalQuery, citation.Options{CurrentLaw: req.CurrentLaw})
	cits = citation.ResolveLawIDs(ctx, cits, e.resolver)
	span.SetAttributes(
		attribute.Int("search.queries", len(req.Queries)),
		attribute.Int("search.citations", len(cits)),
		attribute.Int("search.top_n", req.TopN),
	)

	lists, err := e.collect(ctx, req.Queries)
	if err != nil {
		span.SetAttributes(attribute.Bool("search.error", true))
		return nil, err
	}

	entries, total := e.fuser.Fuse(lists, cits, req.TopN)
	response := &models.SearchResponse{
		Results:       make([]*models.SearchResult, 0, len(entries)),
		TotalSearched: total,
		Citations:     citationRefs(cits),
		Query:         req.OriginalQuery,
	}
	if len(entries) == 0 {
		response.Message = NoResultsMessage
		response.QueryTime = time.Since(startTime).Milliseconds()
		return response, nil
	}

	keys := make([]models.ArticleKey, len(entries))
	for i, entry := range entries {
		keys[i] = entry.ArticleKey()
	}
	lib, err := e.fetcher.Fetch(ctx, keys)
	if err != nil {
		span.SetAttributes(attribute.Bool("search.error", true))
		return nil, fmt.Errorf("failed to fetch articles: %w", err)
	}

	missing := 0
	for i, entry := range entries {
		result := &models.SearchResult{
			Key:        entry.Key,
			Law:        models.LawRef{LawID: entry.Hit.LawID, LawTitle: entry.Hit.LawTitle},
			Title:      entry.Hit.ArticleTitle,
			Caption:    entry.Hit.ArticleCaption,
			Similarity: entry.Hit.Score,
			Score:      entry.FinalScore,
			RRFScore:   entry.RRFScore,
			Bonus:      entry.Bonus,
			MatchType:  entry.MatchType.String(),
			Forced:     entry.Forced,
			Rank:       i + 1,
		}
		law, article, ok := lib.Article(keys[i])
		if law != nil {
			if law.LawTitle != "" {
				result.Law.LawTitle = law.LawTitle
			}
			result.Law.LawNum = law.LawNum
		}
		if ok {
			result.Article = article
			if result.Caption == "" {
				result.Caption = article.Caption
			}
		} else {
			missing++
		}
		response.Results = append(response.Results, result)
	}

	span.SetAttributes(
		attribute.Int("search.results", len(response.Results)),
		attribute.Int("search.missing_bodies", missing),
	)
	e.logger.Debug("search completed",
		zap.String("query", req.OriginalQuery),
		zap.Int("lists", len(lists)),
		zap.Int("fused", total),
		zap.Int("missing_bodies", missing),
	)
	response.QueryTime = time.Since(startTime).Milliseconds()
	return response, nil
}

// collect runs the vector (and keyword) search for every query in parallel.
// Lists are written into fixed slots so fusion sees them in query order
// whatever order they complete in.
func (e *Engine) collect(ctx context.Context, queries []string) ([][]models.SearchHit, error) {
	sources := []vector.Search{e.vector}
	if e.keyword != nil {
		sources = append(sources, e.keyword)
	}
	var (
		lists   = make([][]models.SearchHit, len(queries)*len(sources))
		errChan = make(chan error, len(lists))
		wg      sync.WaitGroup
	)
	for s, source := range sources {
		for q, query := range queries {
			wg.Add(1)
			go func(slot int, source vector.Search, query string) {
				defer wg.Done()
				hits, err := source.Query(ctx, query, e.config.CandidatesPerQuery)
				if err != nil {
					errChan <- fmt.Errorf("search for %q failed: %w", query, err)
					return
				}
				for i := range hits {
					hits[i].Rank = i
				}
				lists[slot] = hits
			}(s*len(queries)+q, source, query)
		}
	}
	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}
	return lists, nil
}

// ResolveArticle looks up a single article. lawIDOrName may be an e-Gov law
// id or a law name; articleNumber accepts "557", "第五百五十七条", "3条の2" and
// similar forms. It returns false when the law or article cannot be found.
func (e *Engine) ResolveArticle(ctx context.Context, lawIDOrName, articleNumber string) (*models.ResolvedArticle, bool, error) {
	lawIDOrName = strings.TrimSpace(lawIDOrName)
	num, subs, ok := kanji.ParseArticleTitle(kanji.NormalizeDigits(articleNumber))
	if lawIDOrName == "" || !ok {
		return nil, false, nil
	}
	lawID, lawName := lawIDOrName, ""
	if !lawIDPattern.MatchString(lawIDOrName) {
		lawName = lawIDOrName
		id, found := e.resolver.Resolve(ctx, lawName)
		if !found {
			return nil, false, nil
		}
		lawID = id
	}

	key := models.ArticleKey{LawID: lawID, ArticleTitle: kanji.ArticleTitle(num, subs...)}
	lib, err := e.fetcher.Fetch(ctx, []models.ArticleKey{key})
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch %s: %w", key, err)
	}
	law, article, ok := lib.Article(key)
	if !ok {
		return nil, false, nil
	}
	ref := models.LawRef{LawID: lawID, LawTitle: law.LawTitle, LawNum: law.LawNum}
	if ref.LawTitle == "" {
		ref.LawTitle = lawName
	}
	return &models.ResolvedArticle{Law: ref, Article: article}, true, nil
}

func citationRefs(cits []citation.Citation) []models.CitationRef {
	var out []models.CitationRef
	for i := range cits {
		c := &cits[i]
		if c.LawName == "" {
			continue
		}
		out = append(out, models.CitationRef{
			LawName:      c.LawName,
			LawID:        c.LawID,
			ArticleTitle: c.ArticleTitle(),
			Raw:          c.Raw,
		})
	}
	return out
}
