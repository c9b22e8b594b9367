// Package handlers drives terminal sessions: the login loop and the chat
// bridge to the game server.
package handlers

import (
	"context"

	"google.golang.org/grpc/status"

	"github.com/bitcory/knight/internal/game/feed"
	"github.com/bitcory/knight/internal/gameserver"
)

// Game is the per-session view of the game service. *gameserver.Client
// satisfies it; each terminal session gets its own so tokens never mix.
type Game interface {
	Register(ctx context.Context, username, password string) (gameserver.PlayerView, error)
	Login(ctx context.Context, username, password string) (gameserver.LoginReply, error)
	Logout(ctx context.Context) error
	State(ctx context.Context) (gameserver.PlayerView, error)
	Chat(ctx context.Context, req gameserver.ChatRequest) (gameserver.ChatReply, error)
	Enhance(ctx context.Context, req gameserver.EnhanceRequest) (gameserver.EnhanceReply, error)
	EnhanceElement(ctx context.Context, req gameserver.EnhanceElementRequest) (gameserver.EnhanceReply, error)
	BuyScrolls(ctx context.Context, count int) (gameserver.PlayerView, error)
	AssignElement(ctx context.Context, element string) (gameserver.PlayerView, error)
	ResetWeapon(ctx context.Context, weaponType string) (gameserver.PlayerView, error)
	ClaimAttendance(ctx context.Context) (gameserver.PlayerView, error)
	Leaderboard(ctx context.Context, limit int) (gameserver.LeaderboardReply, error)
	Odds(ctx context.Context, req gameserver.OddsRequest) (gameserver.OddsReply, error)
	Subscribe(ctx context.Context, fn func(feed.Message) error) error
}

// GameFactory opens a fresh Game for one session.
type GameFactory func() Game

// errorText is the player-facing text of a failed call.
func errorText(err error) string {
	if s, ok := status.FromError(err); ok {
		return s.Message()
	}
	return err.Error()
}
