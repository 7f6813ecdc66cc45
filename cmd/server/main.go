package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gasandbox/sandbox-server/internal/catalog"
	"github.com/gasandbox/sandbox-server/internal/config"
	"github.com/gasandbox/sandbox-server/internal/deck"
	"github.com/gasandbox/sandbox-server/internal/game"
	"github.com/gasandbox/sandbox-server/internal/logging"
	"github.com/gasandbox/sandbox-server/internal/server"
	"github.com/gasandbox/sandbox-server/internal/table"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting sandbox server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open card catalog
	cards, err := catalog.Open(ctx, cfg.Catalog, logger)
	if err != nil {
		logger.Fatal("failed to open card catalog", zap.Error(err))
	}
	defer cards.Close()

	if n, err := cards.Count(ctx); err == nil {
		logger.Info("card catalog ready", zap.String("driver", cfg.Catalog.Driver), zap.Int("cards", n))
		if n == 0 {
			logger.Warn("card catalog is empty; run import-catalog to fill it")
		}
	}

	// Load deck library
	library, err := deck.LoadLibrary(cfg.Decks.Path)
	if err != nil {
		logger.Warn("deck library unavailable; named decks disabled",
			zap.String("path", cfg.Decks.Path),
			zap.Error(err),
		)
	} else {
		logger.Info("deck library loaded", zap.Strings("decks", library.Names()))
	}

	// Initialize table manager
	opts := table.Options{MaxTables: cfg.Game.MaxTables, ShuffleSeed: cfg.Game.ShuffleSeed}
	if cfg.Game.Replay.Enabled {
		opts.Recorder = game.NewReplayRecorder(logger, cfg.Game.Replay.Directory)
		logger.Info("replay recording enabled", zap.String("directory", cfg.Game.Replay.Directory))
	}
	tables := table.NewManager(opts, logger)

	var svcOpts []server.ServiceOption
	if cfg.Catalog.API.BaseURL != "" {
		svcOpts = append(svcOpts, server.WithCatalogClient(catalog.NewClient(cfg.Catalog.API, logger), cfg.Catalog.API.Set))
	}
	svc := server.NewService(tables, cards, library, logger, svcOpts...)
	hub := server.NewHub(svc, cfg.Server.WebSocket, logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.HTTP.Address,
		Handler:      server.NewHTTPHandler(svc, hub, logger),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 2)

	// Start HTTP + WebSocket server
	go func() {
		logger.Info("starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Start gRPC server
	var grpcServer *grpc.Server
	if cfg.Server.GRPC.Enabled {
		lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
		if err != nil {
			logger.Fatal("failed to listen", zap.Error(err))
		}
		grpcServer = server.NewGRPCServer(svc, cfg.Server.GRPC, logger)
		go func() {
			logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	logger.Info("sandbox server initialized",
		zap.String("version", version),
		zap.String("http_address", cfg.Server.HTTP.Address),
		zap.Bool("grpc_enabled", cfg.Server.GRPC.Enabled),
		zap.Int("max_tables", cfg.Game.MaxTables),
	)

	// Wait for termination signal or a server failure
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	// Graceful shutdown
	logger.Info("shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	hub.Close()
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	// Closing tables writes their replays
	tables.CloseAll()

	logger.Info("sandbox server stopped")
}
