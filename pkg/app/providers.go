package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harunnryd/tablecall/pkg/adapters/stt"
	"github.com/harunnryd/tablecall/pkg/config"
	"github.com/harunnryd/tablecall/pkg/llm"
	"github.com/harunnryd/tablecall/pkg/menu"
	"github.com/harunnryd/tablecall/pkg/providers/deepgram"
	"github.com/harunnryd/tablecall/pkg/providers/mock"
	"github.com/harunnryd/tablecall/pkg/providers/openai"
)

// ErrNoCredential is returned by a factory whose provider is configured
// without an API key. The caller decides whether that is fatal.
var ErrNoCredential = errors.New("provider credential not configured")

type LLMFactory func(cfg config.Config) (llm.LLMAdapter, error)
type STTFactory func(cfg config.Config) (stt.Transcriber, error)
type EmbedderFactory func(cfg config.Config) (menu.Embedder, error)

// ProviderRegistry maps provider names from the config file to factories.
type ProviderRegistry struct {
	llm      map[string]LLMFactory
	stt      map[string]STTFactory
	embedder map[string]EmbedderFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		llm:      make(map[string]LLMFactory),
		stt:      make(map[string]STTFactory),
		embedder: make(map[string]EmbedderFactory),
	}
}

// DefaultProviders registers every provider shipped with the service.
func DefaultProviders() *ProviderRegistry {
	r := NewProviderRegistry()
	r.RegisterLLM("openai", newOpenAILLM)
	r.RegisterLLM("mock", newMockLLM)
	r.RegisterSTT("deepgram", newDeepgramSTT)
	r.RegisterSTT("mock", newMockSTT)
	r.RegisterSTT("none", func(config.Config) (stt.Transcriber, error) { return nil, nil })
	r.RegisterEmbedder("openai", newOpenAIEmbedder)
	return r
}

func providerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *ProviderRegistry) RegisterLLM(name string, factory LLMFactory) {
	r.llm[providerKey(name)] = factory
}

func (r *ProviderRegistry) RegisterSTT(name string, factory STTFactory) {
	r.stt[providerKey(name)] = factory
}

func (r *ProviderRegistry) RegisterEmbedder(name string, factory EmbedderFactory) {
	r.embedder[providerKey(name)] = factory
}

func (r *ProviderRegistry) BuildLLM(provider string, cfg config.Config) (llm.LLMAdapter, error) {
	fn := r.llm[providerKey(provider)]
	if fn == nil {
		return nil, fmt.Errorf("llm provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildSTT(provider string, cfg config.Config) (stt.Transcriber, error) {
	fn := r.stt[providerKey(provider)]
	if fn == nil {
		return nil, fmt.Errorf("stt provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildEmbedder(provider string, cfg config.Config) (menu.Embedder, error) {
	fn := r.embedder[providerKey(provider)]
	if fn == nil {
		return nil, fmt.Errorf("embedder provider not registered: %s", provider)
	}
	return fn(cfg)
}

type openAISettings struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

var openAISchema = config.Schema{Optional: []string{"api_key", "model", "base_url"}}

func decodeOpenAI(settings map[string]any, section string, cfg config.Config) (*openai.Adapter, openAISettings, error) {
	var s openAISettings
	if err := config.ValidateSettings(settings, openAISchema); err != nil {
		return nil, s, fmt.Errorf("%s.settings: %w", section, err)
	}
	if err := config.DecodeSettings(settings, &s); err != nil {
		return nil, s, fmt.Errorf("%s.settings: %w", section, err)
	}
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, s, fmt.Errorf("%s: %w", section, ErrNoCredential)
	}
	a := openai.NewAdapter(s.APIKey, s.Model)
	if s.BaseURL != "" {
		a.BaseURL = s.BaseURL
	}
	policy := cfg.Retry.Policy()
	a.Retry.MaxAttempts = policy.MaxAttempts
	a.Retry.BaseDelay = policy.BaseDelay
	a.Retry.MaxDelay = policy.MaxDelay
	return a, s, nil
}

func newOpenAILLM(cfg config.Config) (llm.LLMAdapter, error) {
	a, _, err := decodeOpenAI(cfg.Classifier.Settings, "classifier", cfg)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func newOpenAIEmbedder(cfg config.Config) (menu.Embedder, error) {
	a, s, err := decodeOpenAI(cfg.Menu.Embedder.Settings, "menu.embedder", cfg)
	if err != nil {
		return nil, err
	}
	// the chat model setting names the embedding model here
	return openai.NewEmbedder(a, s.Model), nil
}

func newMockLLM(cfg config.Config) (llm.LLMAdapter, error) {
	var s struct {
		ResponseText string `mapstructure:"response_text"`
	}
	if err := config.DecodeSettings(cfg.Classifier.Settings, &s); err != nil {
		return nil, fmt.Errorf("classifier.settings: %w", err)
	}
	return mock.NewLLMAdapter(mock.LLMConfig{ResponseText: s.ResponseText}), nil
}

func newDeepgramSTT(cfg config.Config) (stt.Transcriber, error) {
	var dc deepgram.Config
	if err := config.ValidateSettings(cfg.STT.Settings, config.Schema{
		Required: []string{"api_key"},
		Optional: []string{"model", "smart_format"},
	}); err != nil {
		return nil, fmt.Errorf("stt.settings: %w", err)
	}
	if err := config.DecodeSettings(cfg.STT.Settings, &dc); err != nil {
		return nil, fmt.Errorf("stt.settings: %w", err)
	}
	return deepgram.New(dc)
}

func newMockSTT(cfg config.Config) (stt.Transcriber, error) {
	var s struct {
		Transcript string `mapstructure:"transcript"`
		Language   string `mapstructure:"language"`
	}
	if err := config.DecodeSettings(cfg.STT.Settings, &s); err != nil {
		return nil, fmt.Errorf("stt.settings: %w", err)
	}
	return mock.NewTranscriber(mock.STTConfig{Transcript: s.Transcript, Language: s.Language}), nil
}
