package qa

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/joubun/internal/citation"
	"github.com/hyperjump/joubun/internal/llm"
	"github.com/hyperjump/joubun/internal/models"
	"github.com/hyperjump/joubun/internal/refgraph"
)

const minpoID = "129AC0000000089"

type fakeCompletion struct {
	mu          sync.Mutex
	classify    string
	classifyErr error
	selection   string
	selectErr   error
	prompts     []string
}

func (f *fakeCompletion) Complete(_ context.Context, system string, messages []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, messages[len(messages)-1].Content)
	if system == llm.ClassifySystemPrompt {
		return f.classify, f.classifyErr
	}
	return f.selection, f.selectErr
}

type fakeEngine struct {
	parser   *citation.Parser
	results  []*models.SearchResult
	err      error
	requests []*models.SearchRequest
	articles map[string]*models.ResolvedArticle
}

func (f *fakeEngine) Search(_ context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &models.SearchResponse{Results: f.results}, nil
}

func (f *fakeEngine) ResolveArticle(_ context.Context, law, article string) (*models.ResolvedArticle, bool, error) {
	if law == "壊れた法" {
		return nil, false, errors.New("storage down")
	}
	a, ok := f.articles[law+" "+article]
	return a, ok, nil
}

func (f *fakeEngine) Parser() *citation.Parser { return f.parser }

type fakeRefs struct{}

func (fakeRefs) GetReferences(_ context.Context, keys []models.ArticleKey) []refgraph.ArticleRefs {
	out := make([]refgraph.ArticleRefs, len(keys))
	for i, k := range keys {
		out[i] = refgraph.ArticleRefs{
			LawID: k.LawID, ArticleTitle: k.ArticleTitle,
			Refs:        []refgraph.Ref{},
			ReverseRefs: []string{"a", "b", "c", "d", "e", "f", "g", "h"},
		}
	}
	return out
}

func result(title, caption, text string) *models.SearchResult {
	return &models.SearchResult{
		Law:     models.LawRef{LawID: minpoID, LawTitle: "民法"},
		Title:   title,
		Caption: caption,
		Score:   0.1,
		Article: &models.Article{
			Title:      title,
			Paragraphs: []models.Paragraph{{Num: "1", Sentences: []models.Sentence{{Text: text}}}},
		},
	}
}

func newEngine() *fakeEngine {
	return &fakeEngine{
		parser: citation.NewParser(nil),
		results: []*models.SearchResult{
			result("第五百五十七条", "（手付）", "買主が売主に手付を交付したときは..."),
			result("第九十条", "（公序良俗）", "公の秩序又は善良の風俗に反する法律行為は、無効とする。"),
			result("第一条", "（基本原則）", "私権は、公共の福祉に適合しなければならない。"),
			result("第二条", "（解釈の基準）", "この法律は、個人の尊厳と両性の本質的平等を旨として..."),
		},
		articles: map[string]*models.ResolvedArticle{
			"民法 第五百五十七条": {Law: models.LawRef{LawID: minpoID, LawTitle: "民法"}, Article: &models.Article{Title: "第五百五十七条"}},
		},
	}
}

func TestAsk_LegalQuestion(t *testing.T) {
	engine := newEngine()
	llmStub := &fakeCompletion{
		classify:  `{"type":"legal","queries":["手付解除","手付の放棄による契約解除","解約手付"]}`,
		selection: "```json\n{\"selected_indices\":[1,3],\"explanation\":\"【民法 第五百五十七条】により解除できます。【壊れた法 第一条】【民法 第五百五十七条】\"}\n```",
	}
	svc := NewService(engine, llmStub, WithReferences(fakeRefs{}), WithLogger(zap.NewNop()))

	answer, err := svc.Ask(context.Background(), &Request{Question: "手付を放棄して契約を解除できますか"})
	if err != nil {
		t.Fatal(err)
	}
	if answer.ID == "" || answer.Type != llm.QueryLegal || len(answer.Queries) != 3 {
		t.Errorf("answer = %+v", answer)
	}
	if got := engine.requests[0]; got.OriginalQuery != "手付を放棄して契約を解除できますか" || got.TopN != DefaultCandidates {
		t.Errorf("search request = %+v", got)
	}
	if len(answer.Articles) != 2 || answer.Articles[0].Title != "第五百五十七条" || answer.Articles[1].Title != "第一条" {
		t.Errorf("selected = %+v", answer.Articles)
	}
	if len(answer.Links) != 1 || answer.Links[0].Article.Article.Title != "第五百五十七条" {
		t.Errorf("links = %+v", answer.Links)
	}
	if len(answer.References) != 2 || len(answer.References[0].ReverseRefs) != refgraph.MaxReverseRefs {
		t.Errorf("references = %+v", answer.References)
	}
	selectionPrompt := llmStub.prompts[len(llmStub.prompts)-1]
	if !strings.Contains(selectionPrompt, "公の秩序又は善良の風俗") {
		t.Error("selection prompt should carry article text")
	}
}

func TestAsk_Greeting(t *testing.T) {
	engine := newEngine()
	svc := NewService(engine, &fakeCompletion{classify: `{"type":"greeting"}`})
	answer, err := svc.Ask(context.Background(), &Request{Question: "こんにちは"})
	if err != nil {
		t.Fatal(err)
	}
	if answer.Type != llm.QueryGreeting || answer.Answer != llm.DefaultGreeting || len(engine.requests) != 0 {
		t.Errorf("greeting should skip search: %+v", answer)
	}
}

func TestAsk_DirectQueryIsNormalized(t *testing.T) {
	engine := newEngine()
	svc := NewService(engine, &fakeCompletion{
		classify:  `{"type":"direct","queries":["民法3条の2"]}`,
		selection: `{"selected_indices":[1],"explanation":"意思能力"}`,
	})
	if _, err := svc.Ask(context.Background(), &Request{Question: "民法3条の2"}); err != nil {
		t.Fatal(err)
	}
	if q := engine.requests[0].Queries; len(q) != 1 || q[0] != "民法 第三条の二" {
		t.Errorf("queries = %v", q)
	}
}

func TestAsk_ClassificationFailureFallsBack(t *testing.T) {
	engine := newEngine()
	svc := NewService(engine, &fakeCompletion{
		classifyErr: errors.New("quota exceeded"),
		selection:   "民法第九十条が関係します。",
	})
	answer, err := svc.Ask(context.Background(), &Request{Question: "公序良俗違反の契約"})
	if err != nil {
		t.Fatal(err)
	}
	if q := engine.requests[0].Queries; len(q) != 1 || q[0] != "公序良俗違反の契約" {
		t.Errorf("queries = %v", q)
	}
	if !answer.Fallback || len(answer.Articles) != 3 || answer.Answer != "民法第九十条が関係します。" {
		t.Errorf("selection fallback = %+v", answer)
	}
}

func TestAsk_Failures(t *testing.T) {
	if _, err := NewService(newEngine(), &fakeCompletion{}).Ask(context.Background(), &Request{Question: " "}); !errors.Is(err, models.ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}

	engine := newEngine()
	engine.err = errors.New("vector down")
	if _, err := NewService(engine, &fakeCompletion{}).Ask(context.Background(), &Request{Question: "手付"}); err == nil {
		t.Error("search failure should propagate")
	}

	svc := NewService(newEngine(), &fakeCompletion{selectErr: llm.ErrUnavailable})
	_, err := svc.Ask(context.Background(), &Request{Question: "手付"})
	if !IsUnavailable(err) {
		t.Errorf("expected unavailable, got %v", err)
	}
}

func TestAsk_NoResults(t *testing.T) {
	engine := newEngine()
	engine.results = nil
	llmStub := &fakeCompletion{classify: `{"type":"legal","queries":["x"]}`}
	answer, err := NewService(engine, llmStub).Ask(context.Background(), &Request{Question: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if answer.Answer != llm.NotFoundExplanation || len(answer.Articles) != 0 || len(llmStub.prompts) != 1 {
		t.Errorf("answer = %+v", answer)
	}
}
