package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harunnryd/tablecall/pkg/app"
	"github.com/harunnryd/tablecall/pkg/config"
	"github.com/harunnryd/tablecall/pkg/logging"
	"github.com/harunnryd/tablecall/pkg/runner"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "tablecall:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logging.InitLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, nil)
	if err != nil {
		return err
	}

	hooks := runner.Hooks{
		OnStart: func(ctx context.Context) error {
			if err := a.Server.Start(ctx); err != nil {
				return err
			}
			slog.Info("tablecall_ready", "addr", cfg.Server.Addr, "public_url", cfg.Server.PublicURL)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			err := a.Server.Shutdown(ctx)
			if cerr := a.Close(); cerr != nil {
				err = errors.Join(err, cerr)
			}
			slog.Info("shutdown", "active_calls", a.Sessions.Count())
			return err
		},
	}
	timeout := time.Duration(cfg.Server.ShutdownTimeoutMS) * time.Millisecond
	lc := runner.NewLifecycleRunner(runner.DrainerFunc(a.Drain), hooks, timeout)
	return lc.Run(ctx)
}
