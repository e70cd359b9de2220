// Package qa answers statute questions end to end: it classifies and expands
// the question, runs the fused search, asks the language model to select and
// explain the relevant articles, then resolves the articles the explanation
// links to and attaches their cross-references.
package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/joubun/internal/citation"
	"github.com/hyperjump/joubun/internal/enrich"
	"github.com/hyperjump/joubun/internal/llm"
	"github.com/hyperjump/joubun/internal/models"
	"github.com/hyperjump/joubun/internal/refgraph"
)

// DefaultCandidates is the number of ranked articles offered to the model.
const DefaultCandidates = 20

// Engine is the search surface the service depends on.
type Engine interface {
	Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error)
	ResolveArticle(ctx context.Context, lawIDOrName, articleNumber string) (*models.ResolvedArticle, bool, error)
	Parser() *citation.Parser
}

// References looks up article cross-references.
type References interface {
	GetReferences(ctx context.Context, keys []models.ArticleKey) []refgraph.ArticleRefs
}

// Request is a question with optional conversation history.
type Request struct {
	Question string     `json:"question"`
	History  []llm.Turn `json:"history,omitempty"`
	// Concise asks for a list of articles with one line of relevance each.
	Concise bool `json:"concise,omitempty"`
	TopN    int  `json:"top_n,omitempty"`
}

// Answer is the response to a question.
type Answer struct {
	ID         string                 `json:"id"`
	Type       llm.QueryType          `json:"type"`
	Queries    []string               `json:"queries,omitempty"`
	Answer     string                 `json:"answer"`
	Articles   []*models.SearchResult `json:"articles"`
	Links      []*LinkedArticle       `json:"links,omitempty"`
	References []refgraph.ArticleRefs `json:"references,omitempty"`
	Citations  []models.CitationRef   `json:"citations,omitempty"`
	Fallback   bool                   `json:"fallback,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// LinkedArticle is an article referenced as 【法令名 第X条】 in the explanation.
type LinkedArticle struct {
	Raw     string                  `json:"raw"`
	Article *models.ResolvedArticle `json:"article"`
}

// Service runs the question answering pipeline.
type Service struct {
	engine     Engine
	completion llm.TextCompletion
	refs       References
	candidates int
	logger     *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithReferences attaches cross-references to answers.
func WithReferences(r References) Option {
	return func(s *Service) { s.refs = r }
}

// WithCandidates sets the number of articles offered to the model.
func WithCandidates(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.candidates = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a question answering service.
func NewService(engine Engine, completion llm.TextCompletion, opts ...Option) *Service {
	s := &Service{
		engine:     engine,
		completion: completion,
		candidates: DefaultCandidates,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask answers req.Question. Classification failures fall back to a plain
// legal search; search and selection failures are returned.
func (s *Service) Ask(ctx context.Context, req *Request) (*Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, models.ErrEmptyQuery
	}
	answer := &Answer{
		ID:        uuid.New().String(),
		Articles:  []*models.SearchResult{},
		CreatedAt: time.Now(),
	}

	class := s.classify(ctx, question, req.History)
	answer.Type = class.Type
	if class.Type == llm.QueryGreeting {
		answer.Answer = class.GreetingResponse
		return answer, nil
	}

	queries := class.Queries
	if class.Type == llm.QueryDirect {
		queries = s.directQueries(question, queries)
	}
	answer.Queries = queries

	topN := req.TopN
	if topN <= 0 {
		topN = s.candidates
	}
	resp, err := s.engine.Search(ctx, &models.SearchRequest{
		Queries:       queries,
		OriginalQuery: question,
		TopN:          topN,
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	answer.Citations = resp.Citations
	if len(resp.Results) == 0 {
		answer.Answer = llm.NotFoundExplanation
		return answer, nil
	}

	prompt := llm.BuildSelectionPrompt(question, candidates(resp.Results), req.Concise)
	messages := make([]llm.Message, 0, len(req.History)*2+1)
	for _, turn := range req.History {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: turn.Question},
			llm.Message{Role: llm.RoleAssistant, Content: turn.Answer},
		)
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})
	raw, err := s.completion.Complete(ctx, "", messages)
	if err != nil {
		return nil, fmt.Errorf("article selection failed: %w", err)
	}

	selection := llm.ParseSelection(raw, len(resp.Results))
	if selection.Fallback {
		s.logger.Warn("selection output was not valid JSON, using top results",
			zap.String("answer_id", answer.ID))
	}
	answer.Answer = selection.Explanation
	answer.Fallback = selection.Fallback
	for _, idx := range selection.Indices {
		answer.Articles = append(answer.Articles, resp.Results[idx])
	}
	answer.Links = s.resolveLinks(ctx, selection.Explanation)

	if s.refs != nil && len(answer.Articles) > 0 {
		keys := make([]models.ArticleKey, len(answer.Articles))
		for i, a := range answer.Articles {
			keys[i] = models.ArticleKey{LawID: a.Law.LawID, ArticleTitle: a.Title}
		}
		answer.References = s.refs.GetReferences(ctx, keys)
		for i := range answer.References {
			answer.References[i].CapReverse()
		}
	}

	s.logger.Info("question answered",
		zap.String("answer_id", answer.ID),
		zap.String("type", string(answer.Type)),
		zap.Int("queries", len(queries)),
		zap.Int("candidates", len(resp.Results)),
		zap.Int("selected", len(answer.Articles)),
		zap.Int("links", len(answer.Links)),
	)
	return answer, nil
}

func (s *Service) classify(ctx context.Context, question string, history []llm.Turn) llm.Classification {
	raw := enrich.OrElse(s.logger, "qa.classify", enrich.Attempt(func() (string, error) {
		return s.completion.Complete(ctx, llm.ClassifySystemPrompt, llm.BuildClassifyMessages(question, history))
	}), "")
	if raw == "" {
		return llm.FallbackClassification(question)
	}
	return llm.ParseClassification(raw, question)
}

// directQueries replaces the expanded queries of a direct citation with its
// normalized form, for example "民法 第三条の二".
func (s *Service) directQueries(question string, queries []string) []string {
	for _, c := range s.engine.Parser().ParseQuery(question) {
		if c.LawName != "" && c.ArticleNum > 0 {
			return []string{citation.DirectQuery(c)}
		}
	}
	return queries
}

// resolveLinks resolves the bracketed article links of an explanation.
// Unresolvable links are dropped.
func (s *Service) resolveLinks(ctx context.Context, explanation string) []*LinkedArticle {
	var (
		out  []*LinkedArticle
		seen = make(map[string]struct{})
	)
	for _, c := range s.engine.Parser().ExtractLinks(explanation) {
		id := c.LawName + "_" + c.ArticleTitle()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		resolved := enrich.OrElse(s.logger, "qa.resolve_link", enrich.Attempt(func() (*models.ResolvedArticle, error) {
			a, ok, err := s.engine.ResolveArticle(ctx, c.LawName, c.ArticleTitle())
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, nil
			}
			return a, nil
		}), nil)
		if resolved == nil {
			continue
		}
		out = append(out, &LinkedArticle{Raw: c.Raw, Article: resolved})
	}
	return out
}

func candidates(results []*models.SearchResult) []llm.Candidate {
	out := make([]llm.Candidate, len(results))
	for i, r := range results {
		out[i] = llm.Candidate{
			Score:        r.Score,
			LawTitle:     r.Law.LawTitle,
			ArticleTitle: r.Title,
			Caption:      r.Caption,
		}
		if r.Article != nil {
			out[i].Text = r.Article.Text()
		}
	}
	return out
}

// IsUnavailable reports whether err means the language model is temporarily
// unavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, llm.ErrUnavailable)
}
