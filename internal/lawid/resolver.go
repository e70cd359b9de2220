package lawid

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/joubun/internal/enrich"
	"github.com/hyperjump/joubun/internal/kanji"
	"github.com/hyperjump/joubun/internal/models"
)

// Searcher is the vector search used as the last resolution step.
type Searcher interface {
	Query(ctx context.Context, text string, k int) ([]models.SearchHit, error)
}

// Resolver maps law names to law ids: common table first, then the full
// names table, then a one-hit vector search for "<name> 第一条".
type Resolver struct {
	common *Table
	names  *Names
	search Searcher
	logger *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithNames sets the full names table.
func WithNames(n *Names) Option {
	return func(r *Resolver) { r.names = n }
}

// WithSearch enables the vector-search fallback.
func WithSearch(s Searcher) Option {
	return func(r *Resolver) { r.search = s }
}

// WithLogger sets a logger; fallback failures are logged through it.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver over the given common table.
func NewResolver(common *Table, opts ...Option) *Resolver {
	r := &Resolver{common: common, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Common returns the common table.
func (r *Resolver) Common() *Table {
	return r.common
}

// Resolve returns the law id for lawName, or false when no source knows it.
// Search failures during the fallback are logged and treated as a miss.
func (r *Resolver) Resolve(ctx context.Context, lawName string) (string, bool) {
	if lawName == "" {
		return "", false
	}
	if id, ok := r.common.Lookup(lawName); ok {
		return id, true
	}
	if id, ok := r.names.Lookup(lawName); ok {
		return id, true
	}
	if r.search == nil {
		return "", false
	}
	id := enrich.OrElse(r.logger, "lawid.search_fallback",
		enrich.Attempt(func() (string, error) { return r.searchFallback(ctx, lawName) }), "")
	if id == "" {
		r.logger.Debug("law name unresolved", zap.String("law", lawName))
		return "", false
	}
	return id, true
}

func (r *Resolver) searchFallback(ctx context.Context, lawName string) (string, error) {
	hits, err := r.search.Query(ctx, lawName+" "+kanji.ArticleTitle(1), 1)
	if err != nil {
		return "", fmt.Errorf("vector lookup for %q: %w", lawName, err)
	}
	if len(hits) == 0 || hits[0].LawTitle != lawName {
		return "", nil
	}
	return hits[0].LawID, nil
}
