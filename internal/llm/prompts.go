package llm

import (
	"fmt"
	"strings"

	"github.com/hyperjump/joubun/pkg/utils"
)

// historyTurns and historyAnswerRunes bound the conversation context sent
// with the classification prompt.
const (
	historyTurns       = 2
	historyAnswerRunes = 200
)

// ClassifySystemPrompt instructs the model to classify a question and expand it.
const ClassifySystemPrompt = `あなたは日本の法令検索システムのクエリ分析器です。
ユーザーの入力を次の3種類に分類してください。
- greeting: 挨拶や雑談で、法令検索が不要なもの
- direct: 「民法3条の2」「会社法第三百五十五条」のように条文を直接指定しているもの
- legal: 法的な質問

legal の場合は検索用クエリを3つ生成してください。
1. 元の質問をそのまま
2. 法律用語に言い換えた質問
3. 関連する論点を広く拾う質問

direct の場合は queries に元の入力のみを入れてください。
greeting の場合は greeting_response に短い返答を入れてください。

必ず次のJSON形式のみで回答してください。
{"type": "legal", "queries": ["...", "...", "..."], "greeting_response": ""}`

// Turn is a past question and answer.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// BuildClassifyMessages builds the classification conversation from the
// question and the most recent turns of history.
func BuildClassifyMessages(question string, history []Turn) []Message {
	if len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}
	messages := make([]Message, 0, len(history)*2+1)
	for _, turn := range history {
		messages = append(messages,
			Message{Role: RoleUser, Content: turn.Question},
			Message{Role: RoleAssistant, Content: utils.Truncate(turn.Answer, historyAnswerRunes)},
		)
	}
	return append(messages, Message{Role: RoleUser, Content: question})
}

// Candidate is one ranked article offered to the model for selection.
type Candidate struct {
	Score        float64
	LawTitle     string
	ArticleTitle string
	Caption      string
	Text         string
}

// NotFoundExplanation is the explanation the model is told to give when no
// candidate answers the question.
const NotFoundExplanation = "お探しの内容に直接該当する条文は見つかりませんでした。"

// BuildSelectionPrompt renders the prompt asking the model to pick the
// candidates that answer question and explain them. Concise mode asks for a
// list of articles with one line of relevance each.
func BuildSelectionPrompt(question string, candidates []Candidate, concise bool) string {
	var b strings.Builder
	b.WriteString("あなたは法令検索のアシスタントです。\n\n【ユーザーの質問】\n")
	b.WriteString(question)
	fmt.Fprintf(&b, "\n\n【候補条文データ（スコア順Top%d）】\n", len(candidates))
	for i, c := range candidates {
		fmt.Fprintf(&b, "\n%d. 【スコア: %.4f】 %s %s", i+1, c.Score, c.LawTitle, c.ArticleTitle)
		if c.Caption != "" {
			b.WriteString(" ")
			b.WriteString(c.Caption)
		}
		b.WriteString("\n")
		b.WriteString(c.Text)
		b.WriteString("\n")
	}

	b.WriteString(`
【重要な選択基準】
- 候補条文は「スコア」の高い順に並んでいます
- スコアが高い条文を優先し、条文の内容全体を見て判断してください

【絶対厳守】
- 回答には上記の候補条文リストに含まれる条文のみを使用してください
- 候補リストにない条文には言及しないでください

`)
	if concise {
		b.WriteString(`【指示（簡潔回答）】
- 関連条文を列挙し、各条文の関連性を簡潔に記載
- 「【法令名 第X条】：関連性」の形式で
`)
	} else {
		b.WriteString(`【指示】
- まず結論を述べる
- 関連条文を「【法令名 第X条】」形式で引用しつつ、平易な言葉で説明
- 注意点や例外があれば明記
`)
	}
	fmt.Fprintf(&b, `
【回答形式】
必ず以下のJSON形式で回答してください：

{"selected_indices": [1, 2, 3], "explanation": "ここに解説文を記載"}

- selected_indices: 使用した条文の番号（1〜%d、該当がなければ空配列[]）
- explanation: 質問への回答文。該当がなければ「%s」と記載
`, len(candidates), NotFoundExplanation)
	return b.String()
}
