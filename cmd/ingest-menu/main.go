// Command ingest-menu embeds the menu file and upserts it into the Qdrant
// collection used by the menu search tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/harunnryd/tablecall/pkg/app"
	"github.com/harunnryd/tablecall/pkg/config"
	"github.com/harunnryd/tablecall/pkg/logging"
	"github.com/harunnryd/tablecall/pkg/menu"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	file := flag.String("file", "", "menu YAML, defaults to menu.file from the config")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall deadline")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	logging.InitLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	path := *file
	if path == "" {
		path = cfg.Menu.File
	}
	if err := config.RequireString(path, "menu.file"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	n, err := ingest(ctx, cfg, path)
	if err != nil {
		slog.Error("menu_ingest_failed", "error", err)
		os.Exit(1)
	}
	slog.Info("menu_ingested", "items", n, "collection", cfg.Menu.Collection)
}

func ingest(ctx context.Context, cfg config.Config, path string) (int, error) {
	items, err := menu.LoadFile(path)
	if err != nil {
		return 0, err
	}
	embedder, err := app.DefaultProviders().BuildEmbedder(cfg.Menu.Embedder.Provider, cfg)
	if err != nil {
		return 0, err
	}
	client := menu.NewQdrantClient(app.QdrantConfig(cfg))
	return client.Ingest(ctx, embedder, items)
}
