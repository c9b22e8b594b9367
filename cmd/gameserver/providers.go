package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/bitcory/knight/internal/config"
	"github.com/bitcory/knight/internal/flavor"
	"github.com/bitcory/knight/internal/game/battle"
	"github.com/bitcory/knight/internal/game/dice"
	"github.com/bitcory/knight/internal/game/enhance"
	"github.com/bitcory/knight/internal/game/feed"
	"github.com/bitcory/knight/internal/game/session"
	"github.com/bitcory/knight/internal/gameserver"
	"github.com/bitcory/knight/internal/httpapi"
	"github.com/bitcory/knight/internal/quota"
	"github.com/bitcory/knight/internal/scheduler"
	"github.com/bitcory/knight/internal/scripting"
	"github.com/bitcory/knight/internal/server"
	"github.com/bitcory/knight/internal/storage/postgres"
)

const (
	healthCheckTimeout = 5 * time.Second
	redisDialTimeout   = 5 * time.Second
)

func provideDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*postgres.Pool, func(), error) {
	start := time.Now()
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	logger.Info("database connected",
		zap.String("host", cfg.Host),
		zap.Duration("elapsed", time.Since(start)),
	)
	return pool, pool.Close, nil
}

func provideAccounts(pool *postgres.Pool) *postgres.AccountRepository {
	return postgres.NewAccountRepository(pool.DB())
}

func providePlayers(pool *postgres.Pool) *postgres.PlayerRepository {
	return postgres.NewPlayerRepository(pool.DB())
}

func provideFeeds(pool *postgres.Pool) *postgres.FeedRepository {
	return postgres.NewFeedRepository(pool.DB())
}

func provideClock(cfg config.EconomyConfig) (quota.Clock, error) {
	return quota.NewClock(cfg.Timezone)
}

// provideQuota selects the Redis counter when enabled so several game
// servers share one allowance; otherwise counts are kept in memory.
func provideQuota(ctx context.Context, rc config.RedisConfig, ec config.EconomyConfig, clock quota.Clock, logger *zap.Logger) (quota.Counter, func(), error) {
	if !rc.Enabled {
		logger.Info("battle quota kept in memory", zap.Int("daily_limit", ec.DailyBattleLimit))
		return quota.NewMemoryCounter(ec.DailyBattleLimit, clock), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        rc.Addr,
		Password:    rc.Password,
		DB:          rc.DB,
		DialTimeout: redisDialTimeout,
	})
	counter := quota.NewRedisCounter(rdb, ec.DailyBattleLimit, clock)
	if err := counter.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("connecting to redis %s: %w", rc.Addr, err)
	}
	logger.Info("battle quota kept in redis", zap.String("addr", rc.Addr), zap.Int("daily_limit", ec.DailyBattleLimit))
	return counter, func() { _ = rdb.Close() }, nil
}

// provideScripts loads the Lua flavor hooks. It returns nil when no script
// directory is configured.
func provideScripts(ctx context.Context, cfg config.FlavorConfig, logger *zap.Logger) (*scripting.Manager, func(), error) {
	if cfg.ScriptDir == "" {
		return nil, func() {}, nil
	}
	mgr := scripting.NewManager(cfg.InstructionLimit, logger)
	n, err := mgr.LoadDir(ctx, cfg.ScriptDir)
	if err != nil {
		mgr.Close()
		return nil, nil, fmt.Errorf("loading flavor scripts: %w", err)
	}
	logger.Info("flavor scripts loaded", zap.String("dir", cfg.ScriptDir), zap.Int("files", n))
	return mgr, mgr.Close, nil
}

// provideFlavor orders the generators by provider: anthropic falls back to
// scripts when loaded, and every chain ends in canned text.
func provideFlavor(cfg config.FlavorConfig, scripts *scripting.Manager, logger *zap.Logger) flavor.Generator {
	var gens []flavor.Generator
	if cfg.Provider == "anthropic" {
		gens = append(gens, flavor.NewAnthropicGenerator(flavor.AnthropicConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		}))
	}
	if scripts != nil {
		gens = append(gens, flavor.NewScriptGenerator(scripts))
	}
	logger.Info("flavor generator ready", zap.String("provider", cfg.Provider), zap.Int("generators", len(gens)))
	return flavor.NewChain(logger, gens...)
}

func provideSource(logger *zap.Logger) dice.Source {
	return dice.NewLoggedRoller(dice.NewCryptoSource(), logger)
}

func provideSessions(cfg config.GameServerConfig) *session.Manager {
	return session.NewManager(cfg.DedupeWindow)
}

func provideHub(cfg config.GameServerConfig) *feed.Hub {
	return feed.NewHub(cfg.FeedBacklog)
}

func provideEnhancer(gen flavor.Generator, logger *zap.Logger) *enhance.Resolver {
	return enhance.NewResolver(gen, logger)
}

func provideFighter(gen flavor.Generator, logger *zap.Logger) *battle.Resolver {
	return battle.NewResolver(gen, logger)
}

func provideGRPC(svc *gameserver.Service, logger *zap.Logger) *grpc.Server {
	srv, _ := gameserver.NewGRPCServer(gameserver.NewGameServiceServer(svc, logger))
	return srv
}

func provideScheduler(cfg config.MaintenanceConfig, clock quota.Clock, svc *gameserver.Service, logger *zap.Logger) (*scheduler.Scheduler, error) {
	s, err := scheduler.New(logger, clock.Loc)
	if err != nil {
		return nil, err
	}
	if err := scheduler.RegisterMaintenance(s, cfg, svc, time.Now); err != nil {
		return nil, err
	}
	return s, nil
}

// app is everything the binary runs.
type app struct {
	lifecycle *server.Lifecycle
	service   *gameserver.Service
}

func provideApp(
	cfg config.Config,
	pool *postgres.Pool,
	svc *gameserver.Service,
	grpcServer *grpc.Server,
	sched *scheduler.Scheduler,
	logger *zap.Logger,
) *app {
	lc := server.NewLifecycle(logger, cfg.Server.ShutdownTimeout)

	addr := cfg.GameServer.Addr()
	lc.Add("grpc", &server.FuncService{
		StartFn: func() error {
			lis, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listening on %s: %w", addr, err)
			}
			logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
			return grpcServer.Serve(lis)
		},
		StopFn: grpcServer.GracefulStop,
	})

	if cfg.HTTP.Enabled {
		ping := func(ctx context.Context) error { return pool.Health(ctx, healthCheckTimeout) }
		lc.Add("http", httpapi.New(cfg.HTTP, svc, ping, logger))
	}

	lc.Add("scheduler", sched)
	lc.Add("postgres-health", &server.TickerService{
		Name:     "postgres-health",
		Interval: cfg.Maintenance.HealthCheckInterval,
		Logger:   logger,
		Fn: func(ctx context.Context) error {
			return pool.Health(ctx, healthCheckTimeout)
		},
	})
	return &app{lifecycle: lc, service: svc}
}
