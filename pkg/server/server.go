// Package server is the HTTP front door: the text and audio endpoints, the
// admin call browser, health and readiness probes, and mounts for the
// telephony and chat handlers.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/harunnryd/tablecall/pkg/adapters/stt"
	"github.com/harunnryd/tablecall/pkg/convlog"
	"github.com/harunnryd/tablecall/pkg/metrics"
	"github.com/harunnryd/tablecall/pkg/session"
)

// Checker probes one dependency for the readiness endpoint.
type Checker func(ctx context.Context) error

// Mounter registers extra routes, such as the Twilio webhooks.
type Mounter interface {
	Register(mux *http.ServeMux)
}

type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	Service     *session.Service
	Calls       convlog.Store
	Transcriber stt.Transcriber
	AudioDir    string

	ReadyTimeout time.Duration
	Checks       map[string]Checker
	Draining     func() bool

	AdminEnabled bool
	Metrics      http.Handler
	Observer     metrics.Observer
	Mounts       []Mounter
}

type Server struct {
	opts    Options
	mux     *http.ServeMux
	handler http.Handler
	http    *http.Server
}

func New(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 1500 * time.Millisecond
	}
	if opts.AudioDir == "" {
		opts.AudioDir = "storage/audio"
	}
	if opts.Observer == nil {
		opts.Observer = metrics.NoopObserver{}
	}
	s := &Server{opts: opts, mux: http.NewServeMux()}
	s.routes()
	s.handler = s.requestContext(s.mux)
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)
	s.mux.HandleFunc("POST /mvp/text", s.handleText)
	s.mux.HandleFunc("POST /mvp/audio", s.handleAudio)
	if s.opts.Metrics != nil {
		s.mux.Handle("GET /metrics", s.opts.Metrics)
	}
	if s.opts.AdminEnabled && s.opts.Calls != nil {
		s.mux.HandleFunc("GET /admin/calls", s.handleListCalls)
		s.mux.HandleFunc("GET /admin/calls/{call_id}", s.handleGetCall)
	}
	for _, m := range s.opts.Mounts {
		m.Register(s.mux)
	}
}

// Handler is the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start binds the listener and serves in the background until Shutdown.
// ctx only bounds the bind, so live calls keep being served while the
// process drains.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.http.Addr)
	if err != nil {
		return err
	}
	slog.Info("http_server_listening", "addr", ln.Addr().String())
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http_server_error", "error", err.Error())
		}
	}()
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
