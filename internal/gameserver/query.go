package gameserver

import (
	"context"
	"fmt"

	"github.com/bitcory/knight/internal/game/economy"
	"github.com/bitcory/knight/internal/game/enhance"
	"github.com/bitcory/knight/internal/game/ranking"
	"github.com/bitcory/knight/internal/game/tier"
	"github.com/bitcory/knight/internal/game/weapon"
)

// Leaderboard returns the top req.Limit players by wins.
func (s *Service) Leaderboard(ctx context.Context, req LeaderboardRequest) (LeaderboardReply, error) {
	_, entries, err := s.snapshot(ctx)
	if err != nil {
		return LeaderboardReply{}, err
	}
	board := ranking.Leaderboard(entries)
	if req.Limit > 0 {
		board = ranking.Top(board, req.Limit)
	}
	return LeaderboardReply{Entries: board}, nil
}

// Odds previews the enhancement odds at req.Level under the given modifiers.
// The chances are the bands the roll is checked against: success first, then
// the level's maintain width, and destroy takes whatever remains. The
// blessing draw is not included.
func Odds(req OddsRequest) (OddsReply, error) {
	if req.Level < 0 || req.Level >= weapon.MaxLevel {
		return OddsReply{}, fmt.Errorf("level %d outside [0,%d): %w", req.Level, weapon.MaxLevel, economy.ErrInvalidAmount)
	}
	cfg := tier.Weapon(req.Level)
	success, _ := enhance.AdjustedOdds(cfg, req.UseScroll, req.TopWinner, false)
	maintain := min(cfg.MaintainChance, 1-success)
	return OddsReply{
		Level:          req.Level,
		Cost:           cfg.Cost,
		SuccessChance:  success,
		MaintainChance: maintain,
		DestroyChance:  max(0, 1-success-maintain),
	}, nil
}

// OddsTable returns the unmodified odds for every enhanceable level.
func OddsTable() []OddsReply {
	out := make([]OddsReply, 0, weapon.MaxLevel)
	for l := range weapon.MaxLevel {
		r, _ := Odds(OddsRequest{Level: l})
		out = append(out, r)
	}
	return out
}
