package gameserver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/bitcory/knight/internal/config"
	"github.com/bitcory/knight/internal/game/battle"
	"github.com/bitcory/knight/internal/game/economy"
	"github.com/bitcory/knight/internal/game/feed"
	"github.com/bitcory/knight/internal/game/ranking"
	"github.com/bitcory/knight/internal/game/session"
	"github.com/bitcory/knight/internal/storage/postgres"
)

// lootRetries bounds how often a stale victim balance is re-read before the
// battle is abandoned and its quota refunded.
const lootRetries = 3

// Battle fights req.Opponent, or a random other player when it is empty.
// One battle of the daily quota is taken before resolution and refunded if
// the result cannot be saved.
func (s *Service) Battle(ctx context.Context, sess *session.Session, req BattleRequest) (BattleReply, error) {
	players, entries, err := s.snapshot(ctx)
	if err != nil {
		return BattleReply{}, err
	}
	target, err := s.pickOpponent(players, entries, sess.AccountID, req.Opponent)
	if err != nil {
		return BattleReply{}, err
	}

	unlock := s.lockPair(sess.AccountID, target)
	defer unlock()
	return replay(s, sess.AccountID, req.RequestID, func() (BattleReply, error) {
		me, err := s.players.Get(ctx, sess.AccountID)
		if err != nil {
			return BattleReply{}, err
		}
		opp, err := s.players.Get(ctx, target)
		if errors.Is(err, postgres.ErrPlayerNotFound) {
			return BattleReply{}, economy.ErrOpponentNotFound
		}
		if err != nil {
			return BattleReply{}, err
		}

		now := s.now()
		remaining, err := s.quota.Take(ctx, sess.AccountID, now)
		if err != nil {
			return BattleReply{}, err
		}

		out := s.fighter.Fight(ctx,
			battle.Challenger{Weapon: me.Weapon, TopWinner: ranking.IsTopWinner(entries, sess.AccountID)},
			battle.Opponent{AccountID: opp.AccountID, Name: opp.Username, Weapon: opp.Weapon, Gold: opp.Stats.Gold},
			s.src,
		)

		saved, res, transferred, err := s.settleBattle(ctx, me, opp, out.Result)
		if err != nil {
			if rerr := s.quota.Refund(ctx, sess.AccountID, now); rerr != nil {
				s.logger.Error("refunding battle quota", zap.Int64("account_id", sess.AccountID), zap.Error(rerr))
			}
			return BattleReply{}, err
		}

		ev := feed.BattleEvent{
			OpponentName: opp.Username,
			Win:          res.IsWin,
			GoldChange:   res.Reward,
			Spirit:       res.Spirit != nil,
			WeaponLevel:  me.Weapon.Level,
			OpponentLvl:  opp.Weapon.Level,
			Log:          out.Narrative,
		}
		if res.Spirit != nil {
			ev.Loot = res.Spirit.Loot
		}
		s.publish(ctx, feed.NewMessage(sess.AccountID, sess.Username, feed.BattleBody(sess.Username, ev), ev, now))

		return BattleReply{
			Opponent:           opp.Username,
			OpponentLevel:      opp.Weapon.Level,
			Win:                res.IsWin,
			Reward:             res.Reward,
			BaseReward:         res.BaseReward,
			UnderdogMultiplier: res.UnderdogMultiplier,
			Odds:               res.Odds,
			Spirit:             res.Spirit != nil,
			Loot:               ev.Loot,
			LootTransferred:    transferred,
			Log:                out.Narrative,
			BattlesLeft:        remaining,
			Player:             newPlayerView(saved, remaining),
		}, nil
	})
}

func (s *Service) pickOpponent(players []postgres.Player, entries []ranking.Entry, self int64, name string) (int64, error) {
	if name == "" {
		e, ok := ranking.PickOpponent(entries, self, s.src)
		if !ok {
			return 0, economy.ErrOpponentNotFound
		}
		return e.AccountID, nil
	}
	for _, p := range players {
		if p.Username == name && p.AccountID != self {
			return p.AccountID, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", name, economy.ErrOpponentNotFound)
}

// settleBattle persists the attacker's result. Under the transfer loot
// policy a spirit victory also debits the victim through a compare-and-swap;
// a stale victim balance recomputes the loot without re-fighting.
func (s *Service) settleBattle(ctx context.Context, me, opp postgres.Player, res battle.Result) (postgres.Player, battle.Result, bool, error) {
	before := me.Stats
	me.Stats = battle.Settle(before, res)

	if s.loot != config.LootTransfer || res.Spirit == nil || res.Spirit.Loot == 0 {
		saved, err := s.players.Save(ctx, me)
		if err != nil {
			return postgres.Player{}, res, false, fmt.Errorf("saving battle: %w", err)
		}
		return saved, res, false, nil
	}

	for attempt := 1; ; attempt++ {
		saved, err := s.players.SaveWithLoot(ctx, me, opp.AccountID, res.Spirit.OpponentGold, res.Spirit.Loot)
		if err == nil {
			s.logger.Info("loot transferred",
				zap.Int64("account_id", me.AccountID),
				zap.Int64("victim_id", opp.AccountID),
				zap.Int64("loot", res.Spirit.Loot),
			)
			return saved, res, true, nil
		}
		if !errors.Is(err, postgres.ErrStaleSnapshot) || attempt == lootRetries {
			return postgres.Player{}, res, false, fmt.Errorf("saving battle with loot: %w", err)
		}
		fresh, err := s.players.Get(ctx, opp.AccountID)
		if err != nil {
			return postgres.Player{}, res, false, fmt.Errorf("re-reading victim: %w", err)
		}
		res = battle.WithLoot(res, fresh.Stats.Gold)
		me.Stats = battle.Settle(before, res)
		if res.Spirit.Loot == 0 {
			saved, err := s.players.Save(ctx, me)
			if err != nil {
				return postgres.Player{}, res, false, fmt.Errorf("saving battle: %w", err)
			}
			return saved, res, false, nil
		}
	}
}
