package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/tablecall/pkg/errorsx"
	"github.com/harunnryd/tablecall/pkg/llm"
	"github.com/harunnryd/tablecall/pkg/resilience"
)

const DefaultBaseURL = "https://api.openai.com/v1"

type Adapter struct {
	APIKey  string
	Model   string
	BaseURL string
	Client  *http.Client
	Retry   resilience.RetryPolicy
}

func NewAdapter(apiKey, model string) *Adapter {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Adapter{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: DefaultBaseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Retry: resilience.RetryPolicy{
			OnRetry: func(attempt int, err error) {
				slog.Warn("external_api_retry", "service", "openai", "attempt", attempt, "error", err)
			},
		},
	}
}

func (a *Adapter) Name() string { return "openai" }

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []map[string]any `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (a *Adapter) Generate(ctx context.Context, input llm.Context) (llm.Response, error) {
	body, err := json.Marshal(chatRequest{
		Model:       a.Model,
		Messages:    input.Messages,
		Temperature: input.Temperature,
		MaxTokens:   input.MaxTokens,
	})
	if err != nil {
		return llm.Response{}, err
	}
	raw, err := resilience.Retry(ctx, a.Retry, "openai", func(ctx context.Context) ([]byte, error) {
		return a.post(ctx, "/chat/completions", body)
	})
	if resilience.IsRateLimit(err) {
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonLLMRateLimit)
	}
	if err != nil {
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonLLMGenerate)
	}
	var payload chatResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return llm.Response{}, errorsx.Wrap(err, errorsx.ReasonLLMGenerate)
	}
	if len(payload.Choices) == 0 {
		return llm.Response{}, errorsx.Wrap(errors.New("no choices"), errorsx.ReasonLLMGenerate)
	}
	first := payload.Choices[0]
	return llm.Response{
		Text:         strings.TrimSpace(first.Message.Content),
		FinishReason: first.FinishReason,
		Usage: llm.Usage{
			PromptTokens:     payload.Usage.PromptTokens,
			CompletionTokens: payload.Usage.CompletionTokens,
			TotalTokens:      payload.Usage.TotalTokens,
		},
	}, nil
}

// Ping checks that the API key is accepted. Used by readiness probes.
func (a *Adapter) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL()+"/models", nil)
	if err != nil {
		return err
	}
	a.applyHeaders(req)
	resp, err := a.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resilience.CheckStatus("openai", resp, data)
}

func (a *Adapter) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL()+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	a.applyHeaders(req)
	resp, err := a.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := resilience.CheckStatus("openai", resp, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (a *Adapter) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.APIKey)
}

func (a *Adapter) baseURL() string {
	if a.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(a.BaseURL, "/")
}

func (a *Adapter) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return http.DefaultClient
}

var _ llm.LLMAdapter = (*Adapter)(nil)
