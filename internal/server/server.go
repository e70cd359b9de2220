// Package server provides the HTTP API for joubun.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/joubun/internal/config"
	"github.com/hyperjump/joubun/internal/models"
	"github.com/hyperjump/joubun/internal/qa"
	"github.com/hyperjump/joubun/internal/refgraph"
)

// Searcher is the search surface served over HTTP.
type Searcher interface {
	Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error)
	ResolveArticle(ctx context.Context, lawIDOrName, articleNumber string) (*models.ResolvedArticle, bool, error)
}

// References looks up article cross-references.
type References interface {
	GetReferences(ctx context.Context, keys []models.ArticleKey) []refgraph.ArticleRefs
}

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, req *qa.Request) (*qa.Answer, error)
}

// StatusFunc reports component statistics for GET /api/v1/status.
type StatusFunc func(ctx context.Context) map[string]interface{}

// Server is the HTTP server for the joubun API.
type Server struct {
	engine Searcher
	refs   References
	asker  Asker
	status StatusFunc
	config *config.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithReferences enables POST /api/v1/references.
func WithReferences(r References) Option {
	return func(s *Server) { s.refs = r }
}

// WithAsker enables POST /api/v1/ask.
func WithAsker(a Asker) Option {
	return func(s *Server) { s.asker = a }
}

// WithStatus enables GET /api/v1/status.
func WithStatus(f StatusFunc) Option {
	return func(s *Server) { s.status = f }
}

// NewServer creates a server with the given dependencies.
func NewServer(engine Searcher, cfg *config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine: engine,
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/articles", s.handleGetArticle)
	r.Post("/api/v1/references", s.handleReferences)
	r.Post("/api/v1/ask", s.handleAsk)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
