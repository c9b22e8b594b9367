//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/bitcory/knight/internal/config"
	"github.com/bitcory/knight/internal/gameserver"
	"github.com/bitcory/knight/internal/storage/postgres"
)

func initApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, func(), error) {
	wire.Build(
		wire.FieldsOf(new(config.Config), "Database", "Redis", "GameServer", "Flavor", "Economy", "Maintenance"),
		provideDB,
		provideAccounts,
		providePlayers,
		provideFeeds,
		wire.Bind(new(gameserver.Accounts), new(*postgres.AccountRepository)),
		wire.Bind(new(gameserver.Players), new(*postgres.PlayerRepository)),
		wire.Bind(new(gameserver.FeedStore), new(*postgres.FeedRepository)),
		provideClock,
		provideQuota,
		provideScripts,
		provideFlavor,
		provideSource,
		provideSessions,
		provideHub,
		provideEnhancer,
		provideFighter,
		gameserver.NewService,
		provideGRPC,
		provideScheduler,
		provideApp,
	)
	return nil, nil, nil
}
