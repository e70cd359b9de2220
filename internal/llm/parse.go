package llm

import (
	"encoding/json"
	"strings"
)

// QueryType is the classification of a user question.
type QueryType string

const (
	QueryGreeting QueryType = "greeting"
	QueryDirect   QueryType = "direct"
	QueryLegal    QueryType = "legal"
)

// MaxExpandedQueries bounds the number of expanded queries kept.
const MaxExpandedQueries = 3

// DefaultGreeting answers greetings the model left unanswered.
const DefaultGreeting = "こんにちは！法令に関する質問があればお気軽にどうぞ。"

// Classification is the parsed result of the classification prompt.
type Classification struct {
	Type             QueryType `json:"type"`
	Queries          []string  `json:"queries"`
	GreetingResponse string    `json:"greeting_response,omitempty"`
}

// FallbackClassification treats question as a legal question with itself as
// the only query.
func FallbackClassification(question string) Classification {
	return Classification{Type: QueryLegal, Queries: []string{question}}
}

// ParseClassification parses model output. Unparsable output or an unknown
// type yields FallbackClassification.
func ParseClassification(raw, question string) Classification {
	var c Classification
	if err := decodeJSON(raw, &c); err != nil {
		return FallbackClassification(question)
	}
	switch c.Type {
	case QueryGreeting:
		if strings.TrimSpace(c.GreetingResponse) == "" {
			c.GreetingResponse = DefaultGreeting
		}
		c.Queries = nil
		return c
	case QueryDirect, QueryLegal:
	default:
		return FallbackClassification(question)
	}
	queries := make([]string, 0, MaxExpandedQueries)
	for _, q := range c.Queries {
		if q = strings.TrimSpace(q); q != "" && len(queries) < MaxExpandedQueries {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		queries = []string{question}
	}
	c.Queries = queries
	c.GreetingResponse = ""
	return c
}

// FallbackSelectionSize is the number of top candidates used when the
// selection output cannot be parsed.
const FallbackSelectionSize = 3

// Selection is the parsed result of the selection prompt. Indices are
// 0-based positions in the candidate list.
type Selection struct {
	Indices     []int
	Explanation string
	// Fallback is set when the output was not valid JSON.
	Fallback bool
}

type selectionPayload struct {
	SelectedIndices []int  `json:"selected_indices"`
	Explanation     string `json:"explanation"`
}

// ParseSelection parses model output against n candidates. The model's
// indices are 1-based; out-of-range and repeated ones are dropped. When the
// output is not valid JSON the top candidates are selected and the raw text
// becomes the explanation.
func ParseSelection(raw string, n int) Selection {
	var p selectionPayload
	if err := decodeJSON(raw, &p); err != nil {
		sel := Selection{Explanation: strings.TrimSpace(raw), Fallback: true}
		for i := 0; i < n && i < FallbackSelectionSize; i++ {
			sel.Indices = append(sel.Indices, i)
		}
		return sel
	}
	sel := Selection{Explanation: p.Explanation, Indices: []int{}}
	seen := make(map[int]struct{}, len(p.SelectedIndices))
	for _, idx := range p.SelectedIndices {
		if idx < 1 || idx > n {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		sel.Indices = append(sel.Indices, idx-1)
	}
	return sel
}

// StripCodeFences removes markdown code fence markers from model output.
func StripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// decodeJSON decodes the JSON object in raw, tolerating code fences and
// prose around the object.
func decodeJSON(raw string, v any) error {
	s := StripCodeFences(raw)
	err := json.Unmarshal([]byte(s), v)
	if err == nil {
		return nil
	}
	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return err
	}
	return json.Unmarshal([]byte(s[start:end+1]), v)
}
