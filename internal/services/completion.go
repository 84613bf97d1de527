package services

import (
	"context"

	"tidytabs/internal/store" // For ProviderStatus
)

// ChatMessageRole defines the role of the message sender (system, user, assistant).
type ChatMessageRole string

const (
	ChatMessageRoleSystem    ChatMessageRole = "system"
	ChatMessageRoleUser      ChatMessageRole = "user"
	ChatMessageRoleAssistant ChatMessageRole = "assistant" // "model" for Gemini
)

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    ChatMessageRole
	Content string
}

// CompletionService defines the interface for generating text completions or chat responses.
type CompletionService interface {
	GenerateChatCompletion(ctx context.Context, messages []ChatMessage) (string, error)
	Status() store.ProviderStatus
	Name() string      // Provider name (e.g., "openai", "gemini")
	ModelName() string // Specific model used
}

// PromptCompleter adapts a CompletionService to the single-prompt
// interface the tab generator consumes.
type PromptCompleter struct {
	Service CompletionService
	System  string // optional system message sent before every prompt
}

// Complete sends prompt as a single user message.
func (c PromptCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	msgs := make([]ChatMessage, 0, 2)
	if c.System != "" {
		msgs = append(msgs, ChatMessage{Role: ChatMessageRoleSystem, Content: c.System})
	}
	msgs = append(msgs, ChatMessage{Role: ChatMessageRoleUser, Content: prompt})
	return c.Service.GenerateChatCompletion(ctx, msgs)
}
