// Package app assembles the service from its configuration: storage, menu
// search, the intent classifier, speech recognition, the conversation
// driver and every HTTP entry point.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/harunnryd/tablecall/pkg/agent"
	"github.com/harunnryd/tablecall/pkg/config"
	"github.com/harunnryd/tablecall/pkg/convlog"
	"github.com/harunnryd/tablecall/pkg/crm"
	"github.com/harunnryd/tablecall/pkg/intent"
	"github.com/harunnryd/tablecall/pkg/llm"
	"github.com/harunnryd/tablecall/pkg/menu"
	"github.com/harunnryd/tablecall/pkg/metrics"
	"github.com/harunnryd/tablecall/pkg/observers"
	"github.com/harunnryd/tablecall/pkg/redact"
	"github.com/harunnryd/tablecall/pkg/resilience"
	"github.com/harunnryd/tablecall/pkg/server"
	"github.com/harunnryd/tablecall/pkg/session"
	"github.com/harunnryd/tablecall/pkg/store/sqlstore"
	"github.com/harunnryd/tablecall/pkg/telephony/twilio"
	"github.com/harunnryd/tablecall/pkg/tools"
	"github.com/harunnryd/tablecall/pkg/transports/chat"
)

type App struct {
	Config   config.Config
	Server   *server.Server
	Sessions *session.Registry
	Calls    convlog.Store
	Service  *session.Service

	drainPoll time.Duration
	closers   []func() error
}

// Build wires every component named by cfg. providers may be nil, in which
// case DefaultProviders is used.
func Build(ctx context.Context, cfg config.Config, providers *ProviderRegistry) (*App, error) {
	if providers == nil {
		providers = DefaultProviders()
	}
	redact.SetEnabled(cfg.Privacy.RedactPII)

	slog.Info("tablecall_init",
		"environment", cfg.Environment,
		"storage", cfg.Storage.Driver,
		"menu_provider", cfg.Menu.Provider,
		"classifier_remote", cfg.Classifier.RemoteEnabled,
		"classifier_provider", cfg.Classifier.Provider,
		"stt_provider", cfg.STT.Provider,
		"twilio", cfg.TwilioEnabled(),
		"chat", cfg.Chat.Enabled,
	)

	a := &App{Config: cfg, drainPoll: 100 * time.Millisecond}
	checks := make(map[string]server.Checker)

	var (
		obs         metrics.Observer
		promHandler http.Handler
	)
	obsList := []metrics.Observer{observers.NewLoggerObserver(slog.Default())}
	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheusObserver(cfg.Metrics.Namespace)
		promHandler = prom.Handler()
		obsList = append(obsList, prom)
	}
	obs = observers.NewMultiObserver(obsList...)

	reservations, calls, err := a.openStorage(ctx, cfg.Storage, checks)
	if err != nil {
		return nil, err
	}
	a.Calls = calls

	searcher, err := buildMenu(cfg, providers, checks)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	remote, err := buildRemote(cfg, providers, obs, checks)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	transcriber, err := providers.BuildSTT(cfg.STT.Provider, cfg)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("stt: %w", err)
	}

	classifier := intent.NewClassifier(remote, obs)
	dispatcher := tools.NewDispatcher(reservations, searcher, obs)
	driver := agent.NewDriver(classifier, dispatcher, agent.Config{MaxTurns: cfg.Agent.MaxTurns}, obs)
	a.Service = session.NewService(driver, calls)
	a.Sessions = session.NewRegistry(obs)

	var mounts []server.Mounter
	if cfg.TwilioEnabled() {
		mounts = append(mounts, twilio.NewHandler(TwilioConfig(cfg), a.Service, a.Sessions, calls))
	}
	if cfg.Chat.Enabled {
		mounts = append(mounts, chat.NewHandler(chat.Config{
			Path:           cfg.Chat.Path,
			AllowedOrigins: cfg.Chat.AllowedOrigins,
			IdleTimeout:    time.Duration(cfg.Chat.IdleTimeoutMS) * time.Millisecond,
		}, a.Service, a.Sessions, calls))
	}

	a.Server = server.New(server.Options{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutMS) * time.Millisecond,
		Service:      a.Service,
		Calls:        calls,
		Transcriber:  transcriber,
		AudioDir:     cfg.Server.AudioDir,
		ReadyTimeout: time.Duration(cfg.Server.ReadyTimeoutMS) * time.Millisecond,
		Checks:       checks,
		Draining:     a.Sessions.Draining,
		AdminEnabled: cfg.Server.AdminEnabled,
		Metrics:      promHandler,
		Observer:     obs,
		Mounts:       mounts,
	})
	return a, nil
}

func (a *App) openStorage(ctx context.Context, cfg config.StorageConfig, checks map[string]server.Checker) (tools.ReservationStore, convlog.Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "memory" {
		return crm.NewMemoryStore(), convlog.NewMemoryStore(), nil
	}
	db, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver:      sqlstore.Driver(driver),
		DSN:         cfg.DSN,
		AutoMigrate: cfg.AutoMigrate,
		MaxConns:    cfg.MaxConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("storage: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	checks["storage"] = db.Ping
	return sqlstore.NewReservationStore(db), sqlstore.NewConversationStore(db), nil
}

func buildMenu(cfg config.Config, providers *ProviderRegistry, checks map[string]server.Checker) (menu.Searcher, error) {
	if strings.EqualFold(cfg.Menu.Provider, "qdrant") {
		embedder, err := providers.BuildEmbedder(cfg.Menu.Embedder.Provider, cfg)
		if err != nil {
			return nil, fmt.Errorf("menu embedder: %w", err)
		}
		client := menu.NewQdrantClient(QdrantConfig(cfg))
		checks["qdrant"] = client.Ping
		return menu.NewQdrantSearcher(client, embedder), nil
	}
	var items []menu.Item
	if cfg.Menu.File != "" {
		var err error
		if items, err = menu.LoadFile(cfg.Menu.File); err != nil {
			return nil, fmt.Errorf("menu: %w", err)
		}
	} else {
		slog.Warn("menu_file_not_configured")
	}
	return menu.NewStaticSearcher(items, cfg.Menu.TopK), nil
}

// QdrantConfig maps the menu section onto the Qdrant client settings.
func QdrantConfig(cfg config.Config) menu.QdrantConfig {
	policy := cfg.Retry.Policy()
	return menu.QdrantConfig{
		URL:            cfg.Menu.QdrantURL,
		APIKey:         cfg.Menu.QdrantAPIKey,
		Collection:     cfg.Menu.Collection,
		TopK:           cfg.Menu.TopK,
		ScoreThreshold: cfg.Menu.ScoreThreshold,
		Retry:          policy,
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// buildRemote returns nil when the remote classifier is off or has no
// credential. The keyword fallback then answers every utterance.
func buildRemote(cfg config.Config, providers *ProviderRegistry, obs metrics.Observer, checks map[string]server.Checker) (intent.RemoteModel, error) {
	if !cfg.Classifier.RemoteEnabled {
		return nil, nil
	}
	adapter, err := providers.BuildLLM(cfg.Classifier.Provider, cfg)
	if errors.Is(err, ErrNoCredential) {
		slog.Warn("classifier_remote_disabled", "provider", cfg.Classifier.Provider, "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	if p, ok := adapter.(pinger); ok {
		checks["classifier"] = p.Ping
	}
	breaker := llm.NewCircuitBreakerAdapter(adapter, resilience.NewCircuitBreaker(
		cfg.Classifier.CircuitThreshold,
		time.Duration(cfg.Classifier.CircuitCooldownMS)*time.Millisecond,
	))
	breaker.SetObserver(obs)
	return intent.NewLLMModel(breaker), nil
}

// TwilioConfig maps the server and twilio sections onto the webhook and
// dialer settings.
func TwilioConfig(cfg config.Config) twilio.Config {
	return twilio.Config{
		ServerAddr:        cfg.Server.Addr,
		PublicURL:         cfg.Server.PublicURL,
		AccountSID:        cfg.Twilio.AccountSID,
		AuthToken:         cfg.Twilio.AuthToken,
		PhoneNumber:       cfg.Twilio.PhoneNumber,
		IncomingPath:      cfg.Twilio.IncomingPath,
		VoicePath:         cfg.Twilio.VoicePath,
		StatusPath:        cfg.Twilio.StatusPath,
		ValidateSignature: cfg.Twilio.ValidateSignature,
		SpeechTimeout:     cfg.Twilio.SpeechTimeout,
	}
}

// Drain stops new calls, waits for live ones to finish within ctx and then
// drops whatever is left.
func (a *App) Drain(ctx context.Context) error {
	a.Sessions.SetDraining(true)
	if !a.Sessions.WaitForEmpty(ctx, a.drainPoll) {
		slog.Warn("drain_incomplete", "sessions", a.Sessions.Count())
		a.Sessions.CloseAll()
		return ctx.Err()
	}
	return nil
}

// Close releases storage handles.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
