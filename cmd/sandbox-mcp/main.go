package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/gasandbox/sandbox-server/internal/catalog"
	"github.com/gasandbox/sandbox-server/internal/config"
	"github.com/gasandbox/sandbox-server/internal/deck"
	"github.com/gasandbox/sandbox-server/internal/logging"
	sandboxmcp "github.com/gasandbox/sandbox-server/internal/mcp"
	sandbox "github.com/gasandbox/sandbox-server/internal/server"
	"github.com/gasandbox/sandbox-server/internal/table"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	decks := flag.String("decks", "", "path to decks YAML file (overrides decks.path)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *decks != "" {
		cfg.Decks.Path = *decks
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("mcp server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	cards, err := catalog.Open(context.Background(), cfg.Catalog, logger)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer cards.Close()

	library, err := deck.LoadLibrary(cfg.Decks.Path)
	if err != nil {
		return fmt.Errorf("load decks: %w", err)
	}

	tables := table.NewManager(table.Options{MaxTables: 1, ShuffleSeed: cfg.Game.ShuffleSeed}, logger)
	tools, err := sandboxmcp.NewTools(sandbox.NewService(tables, cards, library, logger), logger)
	if err != nil {
		return err
	}

	s := server.NewMCPServer("sandbox", version, server.WithToolCapabilities(false))
	tools.Register(s)

	logger.Info("serving MCP over stdio", zap.String("table_id", tools.TableID()))
	return server.ServeStdio(s)
}
