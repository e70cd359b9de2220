// Package llm holds the text-completion abstraction used by the question
// answering pipeline, a Gemini-backed implementation, the prompts and the
// tolerant parsers for model output.
package llm

import "context"

// Roles used in Message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TextCompletion completes a conversation. The last message is the prompt.
type TextCompletion interface {
	Complete(ctx context.Context, systemPrompt string, messages []Message) (string, error)
}
