package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gasandbox/sandbox-server/internal/catalog"
	"github.com/gasandbox/sandbox-server/internal/config"
	"github.com/gasandbox/sandbox-server/internal/logging"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	sets := flag.String("sets", "", "comma-separated set prefixes to import (default catalog.api.set)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, splitSets(*sets, cfg.Catalog.API.Set), logger); err != nil {
		logger.Error("import failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, sets []string, logger *zap.Logger) error {
	if cfg.Catalog.Driver == "memory" {
		return fmt.Errorf("catalog driver %q does not persist; configure sqlite or postgres", cfg.Catalog.Driver)
	}

	store, err := catalog.Open(ctx, cfg.Catalog, logger)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()

	client := catalog.NewClient(cfg.Catalog.API, logger)
	start := time.Now()
	imported := 0
	for _, set := range sets {
		n, err := catalog.Sync(ctx, client, store, set)
		if err != nil {
			return err
		}
		logger.Info("imported set", zap.String("set", set), zap.Int("cards", n))
		imported += n
	}

	total, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count catalog: %w", err)
	}
	logger.Info("import complete",
		zap.Int("imported", imported),
		zap.Int("catalog_total", total),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func splitSets(flagValue, fallback string) []string {
	if strings.TrimSpace(flagValue) == "" {
		return []string{fallback}
	}
	var sets []string
	for _, s := range strings.Split(flagValue, ",") {
		if s = strings.TrimSpace(s); s != "" {
			sets = append(sets, s)
		}
	}
	return sets
}
