package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/joubun/internal/config"
	"github.com/hyperjump/joubun/internal/llm"
	"github.com/hyperjump/joubun/internal/models"
	"github.com/hyperjump/joubun/internal/qa"
	"github.com/hyperjump/joubun/internal/refgraph"
	"github.com/hyperjump/joubun/internal/storage"
)

const minpoID = "129AC0000000089"

type mockEngine struct {
	err error
	req *models.SearchRequest
}

func (m *mockEngine) Search(_ context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	m.req = req
	if m.err != nil {
		return nil, m.err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &models.SearchResponse{
		Results: []*models.SearchResult{{
			Key:       minpoID + "_第九十条",
			Law:       models.LawRef{LawID: minpoID, LawTitle: "民法"},
			Title:     "第九十条",
			MatchType: "exact",
			Rank:      1,
		}},
		TotalSearched: 1,
		Query:         req.OriginalQuery,
	}, nil
}

func (m *mockEngine) ResolveArticle(_ context.Context, law, article string) (*models.ResolvedArticle, bool, error) {
	switch {
	case law == "壊れた法":
		return nil, false, errors.New("storage down")
	case law == "民法" && article == "90":
		return &models.ResolvedArticle{
			Law:     models.LawRef{LawID: minpoID, LawTitle: "民法"},
			Article: &models.Article{Title: "第九十条"},
		}, true, nil
	}
	return nil, false, nil
}

type mockAsker struct {
	err error
}

func (m *mockAsker) Ask(_ context.Context, req *qa.Request) (*qa.Answer, error) {
	if m.err != nil {
		return nil, m.err
	}
	if req.Question == "" {
		return nil, models.ErrEmptyQuery
	}
	return &qa.Answer{ID: "a1", Type: llm.QueryLegal, Answer: "回答", Articles: []*models.SearchResult{}}, nil
}

func newTestServer(t *testing.T, engine Searcher, opts ...Option) http.Handler {
	t.Helper()
	return NewServer(engine, &config.ServerConfig{Port: 8080}, zap.NewNop(), opts...).Handler()
}

func do(t *testing.T, h http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandleSearch(t *testing.T) {
	engine := &mockEngine{}
	h := newTestServer(t, engine)

	w := do(t, h, http.MethodPost, "/api/v1/search", models.SearchRequest{Queries: []string{"公序良俗"}, OriginalQuery: "民法90条"})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].MatchType != "exact" {
		t.Errorf("response = %+v", resp)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("response should carry a request id")
	}

	if w := do(t, h, http.MethodPost, "/api/v1/search", "{"); w.Code != http.StatusBadRequest {
		t.Errorf("invalid body: got %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/v1/search", models.SearchRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty query: got %d", w.Code)
	}

	engine.err = errors.New("vector service down")
	w = do(t, h, http.MethodPost, "/api/v1/search", models.SearchRequest{OriginalQuery: "q"})
	if w.Code != http.StatusInternalServerError {
		t.Errorf("upstream failure: got %d", w.Code)
	}
	var errBody map[string]string
	_ = json.NewDecoder(w.Body).Decode(&errBody)
	if errBody["error"] == "" {
		t.Error("error response should carry a reason")
	}
}

func TestRequestIDPropagates(t *testing.T) {
	h := newTestServer(t, &mockEngine{})
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if got := w.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("request id = %q", got)
	}
}

func TestHandleGetArticle(t *testing.T) {
	h := newTestServer(t, &mockEngine{})
	tests := []struct {
		target string
		want   int
	}{
		{"/api/v1/articles?law=" + url.QueryEscape("民法") + "&article=90", http.StatusOK},
		{"/api/v1/articles?law=" + url.QueryEscape("民法") + "&article=91", http.StatusNotFound},
		{"/api/v1/articles?law=" + url.QueryEscape("民法"), http.StatusBadRequest},
		{"/api/v1/articles?law=" + url.QueryEscape("壊れた法") + "&article=1", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if w := do(t, h, http.MethodGet, tt.target, nil); w.Code != tt.want {
			t.Errorf("%s: got %d, want %d", tt.target, w.Code, tt.want)
		}
	}
}

func TestHandleReferences(t *testing.T) {
	mem := storage.NewMemoryStore()
	_ = mem.Put(context.Background(), refgraph.DefaultIndexKey, []byte(`{"`+minpoID+`": 1}`))
	_ = mem.Put(context.Background(), "refs/refs_chunk_001.json", []byte(`{"`+minpoID+`": {
		"refs": {"`+minpoID+`_Art90": [{"target": "`+minpoID+`_Art91", "text": "次条", "start": 0, "end": 2}]},
		"reverse_refs": {"`+minpoID+`_Art90": ["1","2","3","4","5","6"]}}}`))
	acc := refgraph.NewAccessor(mem, refgraph.Config{}, zap.NewNop())
	h := newTestServer(t, &mockEngine{}, WithReferences(acc))

	w := do(t, h, http.MethodPost, "/api/v1/references", referencesRequest{Articles: []models.ArticleKey{
		{LawID: minpoID, ArticleTitle: "第90条"},
		{LawID: minpoID, ArticleTitle: "第五条"},
	}})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var out struct {
		Results []refgraph.ArticleRefs `json:"results"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Results) != 2 || len(out.Results[0].Refs) != 1 || len(out.Results[0].ReverseRefs) != 6 {
		t.Errorf("results = %+v", out.Results)
	}
	if out.Results[1].Refs == nil || len(out.Results[1].Refs) != 0 {
		t.Errorf("miss should be an empty list: %+v", out.Results[1])
	}

	if w := do(t, h, http.MethodPost, "/api/v1/references", referencesRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty request: got %d", w.Code)
	}
	if w := do(t, newTestServer(t, &mockEngine{}), http.MethodPost, "/api/v1/references", referencesRequest{}); w.Code != http.StatusNotImplemented {
		t.Errorf("disabled references: got %d", w.Code)
	}
}

func TestHandleAsk(t *testing.T) {
	asker := &mockAsker{}
	h := newTestServer(t, &mockEngine{}, WithAsker(asker))

	w := do(t, h, http.MethodPost, "/api/v1/ask", qa.Request{Question: "手付とは"})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var answer qa.Answer
	if err := json.NewDecoder(w.Body).Decode(&answer); err != nil {
		t.Fatal(err)
	}
	if answer.ID != "a1" || answer.Answer != "回答" {
		t.Errorf("answer = %+v", answer)
	}

	if w := do(t, h, http.MethodPost, "/api/v1/ask", qa.Request{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty question: got %d", w.Code)
	}
	asker.err = llm.ErrUnavailable
	if w := do(t, h, http.MethodPost, "/api/v1/ask", qa.Request{Question: "q"}); w.Code != http.StatusServiceUnavailable {
		t.Errorf("unavailable model: got %d", w.Code)
	}
	asker.err = errors.New("boom")
	if w := do(t, h, http.MethodPost, "/api/v1/ask", qa.Request{Question: "q"}); w.Code != http.StatusInternalServerError {
		t.Errorf("failure: got %d", w.Code)
	}
}

func TestHandleStatusAndHealth(t *testing.T) {
	h := newTestServer(t, &mockEngine{}, WithStatus(func(context.Context) map[string]interface{} {
		return map[string]interface{}{"law_names": 3}
	}))
	w := do(t, h, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]interface{}
	_ = json.NewDecoder(w.Body).Decode(&out)
	if out["law_names"] != float64(3) {
		t.Errorf("status = %v", out)
	}
	if w := do(t, h, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Errorf("health: got %d", w.Code)
	}
}
