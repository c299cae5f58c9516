package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 2, cfg.Agent.MaxTurns)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "static", cfg.Menu.Provider)
	assert.Equal(t, 5, cfg.Menu.TopK)
	assert.InDelta(t, 0.2, cfg.Menu.ScoreThreshold, 1e-9)
	assert.Equal(t, "none", cfg.STT.Provider)
	assert.False(t, cfg.Classifier.RemoteEnabled)
	assert.True(t, cfg.Privacy.RedactPII)
	assert.False(t, cfg.TwilioEnabled())
	assert.Equal(t, "/twilio/incoming", cfg.Twilio.IncomingPath)
	assert.Equal(t, "/twilio/status", cfg.Twilio.StatusPath)
	assert.True(t, cfg.Chat.Enabled)
	assert.Equal(t, "/chat/ws", cfg.Chat.Path)
	assert.Equal(t, "storage/audio", cfg.Server.AudioDir)

	policy := cfg.Retry.Policy()
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, policy.BaseDelay)
	assert.Equal(t, 2*time.Second, policy.MaxDelay)
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	t.Setenv("TEST_DB_PATH", "/tmp/tablecall.db")
	path := writeConfig(t, `
storage:
  driver: sqlite
  dsn: file:${TEST_DB_PATH}
classifier:
  remote_enabled: true
  provider: openai
  settings:
    api_key: ${TEST_OPENAI_KEY}
    model: gpt-4o-mini
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "file:/tmp/tablecall.db", cfg.Storage.DSN)
	assert.Equal(t, "sk-test", cfg.Classifier.Settings["api_key"])
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("TABLECALL_AGENT_MAX_TURNS", "4")
	cfg, err := LoadConfig(writeConfig(t, "agent:\n  max_turns: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Agent.MaxTurns)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"bad log format":       "log_format: xml\n",
		"zero turns":           "agent:\n  max_turns: 0\n",
		"unknown driver":       "storage:\n  driver: mongo\n",
		"sqlite without dsn":   "storage:\n  driver: sqlite\n",
		"qdrant without url":   "menu:\n  provider: qdrant\n",
		"unknown stt":          "stt:\n  provider: whisper\n",
		"twilio without token": "twilio:\n  account_sid: AC123\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestDecodeSettings(t *testing.T) {
	var out struct {
		APIKey    string  `mapstructure:"api_key"`
		Model     string  `mapstructure:"model"`
		Threshold int     `mapstructure:"circuit_threshold"`
		Score     float64 `mapstructure:"score"`
	}
	err := DecodeSettings(map[string]any{
		"API-Key":           "k",
		"model":             "m",
		"circuit_threshold": "5",
		"score":             0.5,
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "k", out.APIKey)
	assert.Equal(t, "m", out.Model)
	assert.Equal(t, 5, out.Threshold)
	assert.InDelta(t, 0.5, out.Score, 1e-9)

	require.NoError(t, DecodeSettings(nil, &out))
}

func TestValidateSettings(t *testing.T) {
	schema := Schema{Required: []string{"api_key"}, Optional: []string{"model"}}

	assert.NoError(t, ValidateSettings(map[string]any{"api_key": "k", "model": "m"}, schema))

	err := ValidateSettings(map[string]any{"api_key": " ", "voice": "x"}, schema)
	require.Error(t, err)
	assert.Equal(t, "missing: api_key; unknown: voice", err.Error())

	schema.AllowUnknown = true
	err = ValidateSettings(map[string]any{"voice": "x"}, schema)
	require.Error(t, err)
	assert.Equal(t, "missing: api_key", err.Error())
}

func TestLoadExampleConfig(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("OPENAI_API_KEY", "sk-example")

	cfg, err := LoadConfig(filepath.Join("..", "..", "config.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "configs/menu.yaml", cfg.Menu.File)
	assert.Equal(t, "sk-example", cfg.Classifier.Settings["api_key"])
	assert.Equal(t, "deepgram", cfg.STT.Provider)
	assert.False(t, cfg.TwilioEnabled())
}
