// Package config loads the service configuration from YAML, the process
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/harunnryd/tablecall/pkg/resilience"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	LogFormat   string           `mapstructure:"log_format"`
	Server      ServerConfig     `mapstructure:"server"`
	Agent       AgentConfig      `mapstructure:"agent"`
	Classifier  ClassifierConfig `mapstructure:"classifier"`
	Retry       RetryConfig      `mapstructure:"retry"`
	Storage     StorageConfig    `mapstructure:"storage"`
	Menu        MenuConfig       `mapstructure:"menu"`
	STT         VendorConfig     `mapstructure:"stt"`
	Twilio      TwilioConfig     `mapstructure:"twilio"`
	Chat        ChatConfig       `mapstructure:"chat"`
	Privacy     PrivacyConfig    `mapstructure:"privacy"`
	Metrics     MetricsConfig    `mapstructure:"metrics"`
}

// VendorConfig names a provider and carries its free-form settings, decoded
// later with DecodeSettings.
type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type ServerConfig struct {
	Addr              string `mapstructure:"addr"`
	PublicURL         string `mapstructure:"public_url"`
	ReadTimeoutMS     int    `mapstructure:"read_timeout_ms"`
	WriteTimeoutMS    int    `mapstructure:"write_timeout_ms"`
	ShutdownTimeoutMS int    `mapstructure:"shutdown_timeout_ms"`
	ReadyTimeoutMS    int    `mapstructure:"ready_timeout_ms"`
	AdminEnabled      bool   `mapstructure:"admin_enabled"`
	AudioDir          string `mapstructure:"audio_dir"`
}

type AgentConfig struct {
	MaxTurns int `mapstructure:"max_turns"`
}

type ClassifierConfig struct {
	RemoteEnabled     bool           `mapstructure:"remote_enabled"`
	Provider          string         `mapstructure:"provider"`
	Settings          map[string]any `mapstructure:"settings"`
	CircuitThreshold  int            `mapstructure:"circuit_threshold"`
	CircuitCooldownMS int            `mapstructure:"circuit_cooldown_ms"`
}

type RetryConfig struct {
	MaxAttempts      int `mapstructure:"max_attempts"`
	BackoffInitialMS int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMS     int `mapstructure:"backoff_max_ms"`
}

// Policy converts the retry section for outbound HTTP collaborators.
func (r RetryConfig) Policy() resilience.RetryPolicy {
	return resilience.NewRetryPolicy(
		r.MaxAttempts,
		time.Duration(r.BackoffInitialMS)*time.Millisecond,
		time.Duration(r.BackoffMaxMS)*time.Millisecond,
	)
}

type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
	MaxConns    int    `mapstructure:"max_conns"`
}

type MenuConfig struct {
	Provider       string       `mapstructure:"provider"`
	File           string       `mapstructure:"file"`
	QdrantURL      string       `mapstructure:"qdrant_url"`
	QdrantAPIKey   string       `mapstructure:"qdrant_api_key"`
	Collection     string       `mapstructure:"collection"`
	TopK           int          `mapstructure:"top_k"`
	ScoreThreshold float64      `mapstructure:"score_threshold"`
	Embedder       VendorConfig `mapstructure:"embedder"`
}

type TwilioConfig struct {
	AccountSID        string `mapstructure:"account_sid"`
	AuthToken         string `mapstructure:"auth_token"`
	PhoneNumber       string `mapstructure:"phone_number"`
	IncomingPath      string `mapstructure:"incoming_path"`
	VoicePath         string `mapstructure:"voice_path"`
	StatusPath        string `mapstructure:"status_path"`
	ValidateSignature bool   `mapstructure:"validate_signature"`
	SpeechTimeout     string `mapstructure:"speech_timeout"`
}

type ChatConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Path           string   `mapstructure:"path"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	IdleTimeoutMS  int      `mapstructure:"idle_timeout_ms"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// LoadConfig reads path, applies defaults and environment overrides, expands
// ${VAR} references in every string and validates the result. A .env file
// next to the working directory is loaded first when present.
func LoadConfig(path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	v.SetEnvPrefix("TABLECALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout_ms", 15000)
	v.SetDefault("server.write_timeout_ms", 30000)
	v.SetDefault("server.shutdown_timeout_ms", 10000)
	v.SetDefault("server.ready_timeout_ms", 1500)
	v.SetDefault("server.admin_enabled", true)
	v.SetDefault("server.audio_dir", "storage/audio")
	v.SetDefault("agent.max_turns", 2)
	v.SetDefault("classifier.remote_enabled", false)
	v.SetDefault("classifier.provider", "openai")
	v.SetDefault("classifier.circuit_threshold", 3)
	v.SetDefault("classifier.circuit_cooldown_ms", 30000)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.backoff_initial_ms", 200)
	v.SetDefault("retry.backoff_max_ms", 2000)
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.auto_migrate", true)
	v.SetDefault("menu.provider", "static")
	v.SetDefault("menu.collection", "menu")
	v.SetDefault("menu.top_k", 5)
	v.SetDefault("menu.score_threshold", 0.2)
	v.SetDefault("menu.embedder.provider", "openai")
	v.SetDefault("stt.provider", "none")
	v.SetDefault("twilio.incoming_path", "/twilio/incoming")
	v.SetDefault("twilio.voice_path", "/twilio/voice")
	v.SetDefault("twilio.status_path", "/twilio/status")
	v.SetDefault("twilio.validate_signature", true)
	v.SetDefault("twilio.speech_timeout", "auto")
	v.SetDefault("chat.enabled", true)
	v.SetDefault("chat.path", "/chat/ws")
	v.SetDefault("chat.idle_timeout_ms", 300000)
	v.SetDefault("privacy.redact_pii", true)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "tablecall")
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

var (
	storageDrivers  = []string{"memory", "sqlite", "postgres"}
	menuProviders   = []string{"static", "qdrant"}
	classifierProvs = []string{"openai", "mock"}
	sttProviders    = []string{"none", "deepgram", "mock"}
	logFormats      = []string{"text", "json"}
)

func (c *Config) Validate() error {
	if err := oneOf("log_format", c.LogFormat, logFormats); err != nil {
		return err
	}
	if c.Agent.MaxTurns < 1 {
		return fmt.Errorf("agent.max_turns must be at least 1")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if err := oneOf("storage.driver", c.Storage.Driver, storageDrivers); err != nil {
		return err
	}
	if c.Storage.Driver != "memory" {
		if err := RequireString(c.Storage.DSN, "storage.dsn"); err != nil {
			return err
		}
	}
	if err := oneOf("menu.provider", c.Menu.Provider, menuProviders); err != nil {
		return err
	}
	if c.Menu.Provider == "qdrant" {
		if err := RequireString(c.Menu.QdrantURL, "menu.qdrant_url"); err != nil {
			return err
		}
		if err := RequireString(c.Menu.Embedder.Provider, "menu.embedder.provider"); err != nil {
			return err
		}
	}
	if c.Classifier.RemoteEnabled {
		if err := oneOf("classifier.provider", c.Classifier.Provider, classifierProvs); err != nil {
			return err
		}
	}
	if err := oneOf("stt.provider", c.STT.Provider, sttProviders); err != nil {
		return err
	}
	if c.Twilio.ValidateSignature && strings.TrimSpace(c.Twilio.AccountSID) != "" {
		if err := RequireString(c.Twilio.AuthToken, "twilio.auth_token"); err != nil {
			return err
		}
	}
	return nil
}

// TwilioEnabled reports whether the voice webhooks should be mounted.
func (c *Config) TwilioEnabled() bool {
	return strings.TrimSpace(c.Twilio.AccountSID) != ""
}

func oneOf(path, value string, allowed []string) error {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", path, strings.Join(allowed, ", "), value)
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Classifier.Settings = expandSettings(cfg.Classifier.Settings)
	cfg.Menu.Embedder.Settings = expandSettings(cfg.Menu.Embedder.Settings)
	cfg.STT.Settings = expandSettings(cfg.STT.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	}
}
