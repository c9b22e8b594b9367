// Package main runs the game server: the gRPC game service, the HTTP read
// API and the maintenance scheduler.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/bitcory/knight/internal/config"
	"github.com/bitcory/knight/internal/observability"
	"github.com/bitcory/knight/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the configuration")
	migrateUp := flag.Bool("migrate", false, "apply pending migrations before starting")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("no %s file loaded, using the process environment", *envFile)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "gameserver")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = observability.Sync(logger) }()

	logger.Info("starting game server",
		zap.String("name", cfg.Server.Name),
		zap.String("grpc_addr", cfg.GameServer.Addr()),
		zap.String("loot_policy", cfg.Economy.LootPolicy),
	)

	if *migrateUp {
		if err := postgres.MigrateUp(cfg.Database.DSN()); err != nil {
			logger.Fatal("applying migrations", zap.Error(err))
		}
		logger.Info("migrations applied")
	}

	ctx := context.Background()
	a, cleanup, err := initApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("wiring game server", zap.Error(err))
	}
	defer cleanup()

	if err := a.service.Hydrate(ctx); err != nil {
		logger.Fatal("loading feed backlog", zap.Error(err))
	}

	logger.Info("game server initialized", zap.Duration("startup", time.Since(start)))
	if err := a.lifecycle.Run(ctx); err != nil {
		logger.Error("server error", zap.Error(err))
	}
}
