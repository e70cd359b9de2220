package llm

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseClassification(t *testing.T) {
	const question = "手付を放棄して契約を解除できますか"
	tests := []struct {
		name        string
		raw         string
		wantType    QueryType
		wantQueries []string
	}{
		{
			name:        "legal with fences",
			raw:         "```json\n{\"type\":\"legal\",\"queries\":[\"a\",\" \",\"b\",\"c\",\"d\"]}\n```",
			wantType:    QueryLegal,
			wantQueries: []string{"a", "b", "c"},
		},
		{
			name:        "direct",
			raw:         `{"type":"direct","queries":["民法3条の2"]}`,
			wantType:    QueryDirect,
			wantQueries: []string{"民法3条の2"},
		},
		{
			name:        "legal without queries",
			raw:         `{"type":"legal","queries":[]}`,
			wantType:    QueryLegal,
			wantQueries: []string{question},
		},
		{
			name:        "prose around object",
			raw:         `分類結果です: {"type":"legal","queries":["x"]} 以上`,
			wantType:    QueryLegal,
			wantQueries: []string{"x"},
		},
		{"not json", "I cannot help", QueryLegal, []string{question}},
		{"unknown type", `{"type":"other","queries":["x"]}`, QueryLegal, []string{question}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseClassification(tt.raw, question)
			if got.Type != tt.wantType || !reflect.DeepEqual(got.Queries, tt.wantQueries) {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestParseClassification_Greeting(t *testing.T) {
	got := ParseClassification(`{"type":"greeting","queries":["x"]}`, "こんにちは")
	if got.Type != QueryGreeting || got.GreetingResponse != DefaultGreeting || got.Queries != nil {
		t.Errorf("got %+v", got)
	}
	got = ParseClassification(`{"type":"greeting","greeting_response":"どうも"}`, "やあ")
	if got.GreetingResponse != "どうも" {
		t.Errorf("got %+v", got)
	}
}

func TestParseSelection(t *testing.T) {
	got := ParseSelection("```json\n{\"selected_indices\":[2,0,5,2,1],\"explanation\":\"結論\"}\n```", 4)
	if got.Fallback || got.Explanation != "結論" || !reflect.DeepEqual(got.Indices, []int{1, 0}) {
		t.Errorf("got %+v", got)
	}

	got = ParseSelection(`{"selected_indices":[],"explanation":"`+NotFoundExplanation+`"}`, 4)
	if got.Fallback || len(got.Indices) != 0 {
		t.Errorf("empty selection should stay empty, got %+v", got)
	}

	got = ParseSelection("民法第九十条が該当します。", 10)
	if !got.Fallback || got.Explanation != "民法第九十条が該当します。" || !reflect.DeepEqual(got.Indices, []int{0, 1, 2}) {
		t.Errorf("fallback = %+v", got)
	}

	got = ParseSelection("not json", 2)
	if !reflect.DeepEqual(got.Indices, []int{0, 1}) {
		t.Errorf("fallback with few candidates = %+v", got)
	}
}

func TestBuildClassifyMessages(t *testing.T) {
	history := []Turn{
		{Question: "q1", Answer: "a1"},
		{Question: "q2", Answer: strings.Repeat("あ", 300)},
		{Question: "q3", Answer: "a3"},
	}
	msgs := BuildClassifyMessages("今の質問", history)
	if len(msgs) != 5 {
		t.Fatalf("expected 2 turns + question, got %d messages", len(msgs))
	}
	if msgs[0].Content != "q2" || msgs[0].Role != RoleUser {
		t.Errorf("oldest turn should be dropped: %+v", msgs[0])
	}
	if n := len([]rune(msgs[1].Content)); n != historyAnswerRunes+3 {
		t.Errorf("answer should be truncated, got %d runes", n)
	}
	if msgs[4].Content != "今の質問" {
		t.Errorf("last message = %+v", msgs[4])
	}
}

func TestBuildSelectionPrompt(t *testing.T) {
	cands := []Candidate{
		{Score: 2.0164, LawTitle: "民法", ArticleTitle: "第五百五十七条", Caption: "（手付）", Text: "買主が売主に手付を交付したときは..."},
		{Score: 0.16, LawTitle: "民法", ArticleTitle: "第九十条", Text: "公の秩序..."},
	}
	p := BuildSelectionPrompt("手付とは", cands, false)
	for _, want := range []string{"手付とは", "1. 【スコア: 2.0164】 民法 第五百五十七条 （手付）", "2. 【スコア: 0.1600】 民法 第九十条", "1〜2", "selected_indices"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if !strings.Contains(BuildSelectionPrompt("q", cands, true), "簡潔回答") {
		t.Error("concise prompt should carry concise instructions")
	}
}
