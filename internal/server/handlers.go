package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/joubun/internal/models"
	"github.com/hyperjump/joubun/internal/qa"
)

// maxReferenceKeys bounds a single references request.
const maxReferenceKeys = 100

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request",
		zap.String("request_id", RequestIDFrom(r.Context())),
		zap.String("query", req.OriginalQuery),
		zap.Int("queries", len(req.Queries)))
	response, err := s.engine.Search(r.Context(), &req)
	if errors.Is(err, models.ErrEmptyQuery) {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("search failed", zap.String("request_id", RequestIDFrom(r.Context())), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	law := strings.TrimSpace(r.URL.Query().Get("law"))
	article := strings.TrimSpace(r.URL.Query().Get("article"))
	if law == "" || article == "" {
		s.respondError(w, http.StatusBadRequest, "law and article are required")
		return
	}
	resolved, ok, err := s.engine.ResolveArticle(r.Context(), law, article)
	if err != nil {
		s.logger.Error("article lookup failed", zap.String("law", law), zap.String("article", article), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		s.respondError(w, http.StatusNotFound, "article not found")
		return
	}
	s.respondJSON(w, http.StatusOK, resolved)
}

type referencesRequest struct {
	Articles []models.ArticleKey `json:"articles"`
}

func (s *Server) handleReferences(w http.ResponseWriter, r *http.Request) {
	if s.refs == nil {
		s.respondError(w, http.StatusNotImplemented, "references not enabled")
		return
	}
	var req referencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Articles) == 0 {
		s.respondError(w, http.StatusBadRequest, "articles is required")
		return
	}
	if len(req.Articles) > maxReferenceKeys {
		s.respondError(w, http.StatusBadRequest, "too many articles")
		return
	}
	keys := make([]models.ArticleKey, len(req.Articles))
	for i, k := range req.Articles {
		keys[i] = models.NewArticleKey(k.LawID, k.ArticleTitle)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": s.refs.GetReferences(r.Context(), keys)})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.asker == nil {
		s.respondError(w, http.StatusNotImplemented, "question answering not enabled")
		return
	}
	var req qa.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	answer, err := s.asker.Ask(r.Context(), &req)
	switch {
	case errors.Is(err, models.ErrEmptyQuery):
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	case qa.IsUnavailable(err):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		s.logger.Error("ask failed", zap.String("request_id", RequestIDFrom(r.Context())), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, answer)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		s.respondError(w, http.StatusNotImplemented, "status not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, s.status(r.Context()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
