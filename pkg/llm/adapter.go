package llm

import "context"

// Context is the prompt sent to a chat model.
type Context struct {
	Messages    []map[string]any
	Temperature float64
	MaxTokens   int
}

// UserMessage builds a single-message context.
func UserMessage(content string) Context {
	return Context{Messages: []map[string]any{{"role": "user", "content": content}}}
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
}

type LLMAdapter interface {
	Generate(ctx context.Context, input Context) (Response, error)
	Name() string
}
