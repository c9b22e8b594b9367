// Package main runs the Telnet frontend: players connect with any Telnet
// client and play through the game server's gRPC API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/bitcory/knight/internal/config"
	"github.com/bitcory/knight/internal/frontend/handlers"
	"github.com/bitcory/knight/internal/frontend/telnet"
	"github.com/bitcory/knight/internal/gameserver"
	"github.com/bitcory/knight/internal/observability"
	"github.com/bitcory/knight/internal/server"
)

const callTimeout = 10 * time.Second

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the configuration")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("no %s file loaded, using the process environment", *envFile)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "frontend")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = observability.Sync(logger) }()

	logger.Info("starting frontend",
		zap.String("telnet_addr", cfg.Telnet.Addr()),
		zap.String("gameserver_addr", cfg.GameServer.Addr()),
	)

	cc, err := grpc.NewClient(cfg.GameServer.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.Fatal("creating game server client", zap.Error(err))
	}
	defer cc.Close()

	newGame := func() handlers.Game { return gameserver.NewClient(cc) }
	acceptor := telnet.NewAcceptor(cfg.Telnet, handlers.NewAuthHandler(newGame, logger, callTimeout), logger)

	lifecycle := server.NewLifecycle(logger, cfg.Server.ShutdownTimeout)
	lifecycle.Add("telnet", acceptor)

	health := healthpb.NewHealthClient(cc)
	lifecycle.Add("gameserver-health", &server.TickerService{
		Name:     "gameserver-health",
		Interval: cfg.Maintenance.HealthCheckInterval,
		Logger:   logger,
		Fn: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			resp, err := health.Check(ctx, &healthpb.HealthCheckRequest{Service: gameserver.ServiceName})
			if err != nil {
				return fmt.Errorf("checking game server: %w", err)
			}
			if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
				return fmt.Errorf("game server status %s", resp.GetStatus())
			}
			logger.Debug("game server healthy", zap.Int64("telnet_sessions", acceptor.Active()))
			return nil
		},
	})

	logger.Info("frontend initialized", zap.Duration("startup", time.Since(start)))
	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Error("server error", zap.Error(err))
	}
}
