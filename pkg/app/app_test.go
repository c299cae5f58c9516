package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/tablecall/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Environment: "test",
		LogFormat:   "text",
		Server: config.ServerConfig{
			Addr:           "127.0.0.1:0",
			ReadyTimeoutMS: 500,
			AdminEnabled:   true,
			AudioDir:       t.TempDir(),
		},
		Agent:      config.AgentConfig{MaxTurns: 2},
		Classifier: config.ClassifierConfig{Provider: "openai", CircuitThreshold: 3, CircuitCooldownMS: 1000},
		Retry:      config.RetryConfig{MaxAttempts: 1, BackoffInitialMS: 1, BackoffMaxMS: 1},
		Storage:    config.StorageConfig{Driver: "memory"},
		Menu:       config.MenuConfig{Provider: "static", TopK: 5},
		STT:        config.VendorConfig{Provider: "none"},
		Chat:       config.ChatConfig{Path: "/chat/ws", IdleTimeoutMS: 1000},
		Metrics:    config.MetricsConfig{Enabled: true, Namespace: "apptest"},
	}
}

func build(t *testing.T, cfg config.Config) *App {
	t.Helper()
	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func postText(t *testing.T, a *App, text string) map[string]any {
	t.Helper()
	body := `{"text":` + jsonString(text) + `,"language":"en"}`
	req := httptest.NewRequest(http.MethodPost, "/mvp/text", strings.NewReader(body))
	rec := httptest.NewRecorder()
	a.Server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func get(a *App, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.Server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestBuildInMemoryAnswersText(t *testing.T) {
	a := build(t, testConfig(t))

	out := postText(t, a, "What are your opening hours?")
	assert.Equal(t, "hours_info", out["intent"])
	assert.Contains(t, out["answer_text"], "10:00")

	assert.Equal(t, http.StatusOK, get(a, "/health").Code)
	assert.Equal(t, http.StatusOK, get(a, "/admin/calls").Code)
	assert.Contains(t, get(a, "/metrics").Body.String(), "apptest_")
}

func TestBuildLoadsStaticMenu(t *testing.T) {
	cfg := testConfig(t)
	cfg.Menu.File = filepath.Join(t.TempDir(), "menu.yaml")
	require.NoError(t, os.WriteFile(cfg.Menu.File, []byte("items:\n  - name: Garlic soup\n    price: 4\n"), 0o600))
	a := build(t, cfg)

	out := postText(t, a, "Do you have garlic soup on the menu?")
	assert.Equal(t, "menu_question", out["intent"])
	assert.Contains(t, out["answer_text"], "Garlic soup")
}

func TestBuildRejectsBadMenuFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Menu.File = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := Build(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "menu")
}

func TestBuildRejectsUnknownProviders(t *testing.T) {
	cfg := testConfig(t)
	cfg.STT.Provider = "whisper"
	_, err := Build(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "stt provider not registered: whisper")

	cfg = testConfig(t)
	cfg.Classifier.RemoteEnabled = true
	cfg.Classifier.Provider = "anthropic"
	_, err = Build(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "llm provider not registered: anthropic")
}

func TestBuildRemoteWithoutKeyUsesFallback(t *testing.T) {
	cfg := testConfig(t)
	cfg.Classifier.RemoteEnabled = true
	a := build(t, cfg)

	rec := get(a, "/ready")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "classifier")
	assert.Equal(t, "hours_info", postText(t, a, "When are you open?")["intent"])
}

func TestBuildMockRemoteClassifier(t *testing.T) {
	cfg := testConfig(t)
	cfg.Classifier.RemoteEnabled = true
	cfg.Classifier.Provider = "mock"
	cfg.Classifier.Settings = map[string]any{
		"response_text": `{"intent":"hours_info","entities":null,"language":"en"}`,
	}
	a := build(t, cfg)

	out := postText(t, a, "hello there")
	assert.Equal(t, "hours_info", out["intent"])
}

func TestBuildSQLiteStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage = config.StorageConfig{
		Driver:      "sqlite",
		DSN:         filepath.Join(t.TempDir(), "tablecall.db"),
		AutoMigrate: true,
	}
	a := build(t, cfg)

	rec := get(a, "/ready")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"storage":{"status":"ok"}`)

	out := postText(t, a, "I want to book a table for 2 on 2025-05-10 18:30, my name is Alice.")
	assert.Equal(t, "create_reservation", out["intent"])
	assert.EqualValues(t, 1, out["reservation_id"])
}

func TestBuildMountsTwilioAndChat(t *testing.T) {
	cfg := testConfig(t)
	cfg.Twilio = config.TwilioConfig{
		AccountSID:   "AC123",
		IncomingPath: "/twilio/incoming",
		VoicePath:    "/twilio/voice",
		StatusPath:   "/twilio/status",
	}
	cfg.Chat.Enabled = true
	a := build(t, cfg)

	form := url.Values{"CallSid": {"CA1"}, "From": {"+14155550100"}}
	req := httptest.NewRequest(http.MethodPost, "/twilio/incoming", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	a.Server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "<Gather")

	// a plain GET is not a websocket handshake
	assert.Equal(t, http.StatusBadRequest, get(a, "/chat/ws").Code)
}

func TestBuildWithoutTwilioOrChat(t *testing.T) {
	a := build(t, testConfig(t))
	assert.Equal(t, http.StatusNotFound, get(a, "/chat/ws").Code)

	req := httptest.NewRequest(http.MethodPost, "/twilio/incoming", strings.NewReader("CallSid=CA1"))
	rec := httptest.NewRecorder()
	a.Server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDrain(t *testing.T) {
	a := build(t, testConfig(t))
	a.drainPoll = 5 * time.Millisecond

	require.NoError(t, a.Drain(context.Background()))
	assert.True(t, a.Sessions.Draining())
	assert.Equal(t, http.StatusServiceUnavailable, get(a, "/ready").Code)

	a.Sessions.GetOrCreate("CA1", "")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Drain(ctx), context.DeadlineExceeded)
	assert.Zero(t, a.Sessions.Count())
}

func TestProviderRegistry(t *testing.T) {
	r := NewProviderRegistry()
	_, err := r.BuildEmbedder("openai", config.Config{})
	assert.ErrorContains(t, err, "embedder provider not registered: openai")

	r = DefaultProviders()
	cfg := config.Config{Menu: config.MenuConfig{Embedder: config.VendorConfig{Provider: "openai"}}}
	_, err = r.BuildEmbedder(" OpenAI ", cfg)
	assert.ErrorIs(t, err, ErrNoCredential)

	cfg.Menu.Embedder.Settings = map[string]any{"api_key": "sk-test", "dimensions": 3}
	_, err = r.BuildEmbedder("openai", cfg)
	assert.ErrorContains(t, err, "unknown: dimensions")

	cfg.Menu.Embedder.Settings = map[string]any{"api_key": "sk-test"}
	emb, err := r.BuildEmbedder("openai", cfg)
	require.NoError(t, err)
	assert.NotNil(t, emb)

	tr, err := r.BuildSTT("none", cfg)
	require.NoError(t, err)
	assert.Nil(t, tr)

	_, err = r.BuildSTT("deepgram", cfg)
	assert.ErrorContains(t, err, "missing: api_key")

	cfg.STT.Settings = map[string]any{"transcript": "hi", "language": "sk"}
	tr, err = r.BuildSTT("mock", cfg)
	require.NoError(t, err)
	got, err := tr.Transcribe(context.Background(), strings.NewReader("x"), "audio/wav", "en")
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Text)
	assert.Equal(t, "sk", got.Language)
}

func TestQdrantConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Menu.QdrantURL = "http://qdrant:6333"
	cfg.Menu.Collection = "dishes"
	cfg.Menu.ScoreThreshold = 0.4
	q := QdrantConfig(cfg)
	assert.Equal(t, "http://qdrant:6333", q.URL)
	assert.Equal(t, "dishes", q.Collection)
	assert.Equal(t, 5, q.TopK)
	assert.Equal(t, 1, q.Retry.MaxAttempts)
}
