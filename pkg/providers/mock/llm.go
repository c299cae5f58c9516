package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/tablecall/pkg/llm"
)

type LLMAdapter struct {
	cfg LLMConfig

	mu    sync.Mutex
	calls []llm.Context
}

// LLMConfig scripts the adapter. Responses are returned in order, one per
// call; once exhausted every call gets ResponseText.
type LLMConfig struct {
	ResponseText string
	Responses    []string
	Err          error
}

func NewLLMAdapter(cfg LLMConfig) *LLMAdapter {
	if cfg.ResponseText == "" {
		cfg.ResponseText = `{"intent":"generic","entities":null,"language":"en"}`
	}
	return &LLMAdapter{cfg: cfg}
}

func (a *LLMAdapter) Name() string { return "mock_llm" }

func (a *LLMAdapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	a.mu.Lock()
	n := len(a.calls)
	a.calls = append(a.calls, input)
	a.mu.Unlock()
	if a.cfg.Err != nil {
		return llm.Response{}, a.cfg.Err
	}
	text := a.cfg.ResponseText
	if n < len(a.cfg.Responses) {
		text = a.cfg.Responses[n]
	}
	return llm.Response{Text: text, FinishReason: "stop"}, nil
}

// Calls returns every input passed to Generate.
func (a *LLMAdapter) Calls() []llm.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]llm.Context(nil), a.calls...)
}

var _ llm.LLMAdapter = (*LLMAdapter)(nil)
