package gameserver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bitcory/knight/internal/game/economy"
	"github.com/bitcory/knight/internal/game/enhance"
	"github.com/bitcory/knight/internal/game/feed"
	"github.com/bitcory/knight/internal/game/ranking"
	"github.com/bitcory/knight/internal/game/session"
	"github.com/bitcory/knight/internal/game/weapon"
	"github.com/bitcory/knight/internal/storage/postgres"
)

// Enhance attempts one weapon enhancement for the caller. The top-winner
// penalty comes from the current leaderboard and an armed debug boost is
// consumed by the attempt.
func (s *Service) Enhance(ctx context.Context, sess *session.Session, req EnhanceRequest) (EnhanceReply, error) {
	return locked(s, sess, req.RequestID, func() (EnhanceReply, error) {
		players, entries, err := s.snapshot(ctx)
		if err != nil {
			return EnhanceReply{}, err
		}
		p, ok := findPlayer(players, sess.AccountID)
		if !ok {
			return EnhanceReply{}, postgres.ErrPlayerNotFound
		}

		boosted, boostGen := s.sessions.Boost(sess.AccountID)
		ectx := enhance.Context{
			UseScroll:   req.UseScroll,
			IsTopWinner: ranking.IsTopWinner(entries, sess.AccountID),
			DebugBoost:  boosted,
		}
		res, err := s.enhancer.Enhance(ctx, p.Weapon, p.Stats, ectx, s.src)
		if err != nil {
			return EnhanceReply{}, err
		}

		before := p.Weapon
		p.Weapon, p.Stats = res.Weapon, res.Stats
		saved, err := s.players.Save(ctx, p)
		if err != nil {
			return EnhanceReply{}, fmt.Errorf("saving enhancement: %w", err)
		}
		if res.Outcome.BoostConsumed && !s.sessions.DisarmBoost(sess.AccountID, boostGen) {
			s.logger.Info("debug boost re-armed during attempt, keeping it",
				zap.Int64("account_id", sess.AccountID),
			)
		}

		ev := feed.EnhancementEvent{
			Result:      string(res.Outcome.Result),
			PrevLevel:   res.Outcome.PrevLevel,
			NewLevel:    res.Outcome.NewLevel,
			WeaponName:  before.Name,
			WeaponType:  before.Type,
			WeaponElem:  before.Element,
			Blessed:     res.Outcome.Blessed,
			GoldChange:  res.Outcome.Refund - res.Outcome.Cost,
			Quote:       res.Narrative.Quote,
			Description: saved.Weapon.Description,
		}
		if res.Outcome.Result == enhance.Success {
			ev.WeaponName = saved.Weapon.Name
		}
		s.publish(ctx, feed.NewMessage(sess.AccountID, sess.Username, feed.EnhancementBody(sess.Username, ev), ev, s.now()))

		return enhanceReply(res, newPlayerView(saved, s.battlesLeft(ctx, sess.AccountID))), nil
	})
}

// EnhanceElement attempts one element enhancement for the caller.
func (s *Service) EnhanceElement(ctx context.Context, sess *session.Session, req EnhanceElementRequest) (EnhanceReply, error) {
	return locked(s, sess, req.RequestID, func() (EnhanceReply, error) {
		p, err := s.players.Get(ctx, sess.AccountID)
		if err != nil {
			return EnhanceReply{}, err
		}
		res, err := s.enhancer.EnhanceElement(ctx, p.Weapon, p.Stats, s.src)
		if err != nil {
			return EnhanceReply{}, err
		}
		p.Weapon, p.Stats = res.Weapon, res.Stats
		saved, err := s.players.Save(ctx, p)
		if err != nil {
			return EnhanceReply{}, fmt.Errorf("saving element enhancement: %w", err)
		}

		ev := feed.EnhancementEvent{
			Result:       string(res.Outcome.Result),
			Element:      true,
			PrevLevel:    res.Outcome.PrevLevel,
			NewLevel:     res.Outcome.NewLevel,
			WeaponName:   saved.Weapon.Name,
			WeaponType:   saved.Weapon.Type,
			WeaponElem:   saved.Weapon.Element,
			GoldChange:   -res.Outcome.Cost,
			Quote:        res.Narrative.Quote,
			ElementLevel: saved.Weapon.ElementLevel,
		}
		s.publish(ctx, feed.NewMessage(sess.AccountID, sess.Username, feed.EnhancementBody(sess.Username, ev), ev, s.now()))

		return enhanceReply(res, newPlayerView(saved, s.battlesLeft(ctx, sess.AccountID))), nil
	})
}

func enhanceReply(res enhance.Resolution, pv PlayerView) EnhanceReply {
	o := res.Outcome
	return EnhanceReply{
		Result:        o.Result,
		PrevLevel:     o.PrevLevel,
		NewLevel:      o.NewLevel,
		Cost:          o.Cost,
		Refund:        o.Refund,
		Blessed:       o.Blessed,
		ScrollUsed:    o.ScrollUsed,
		BoostConsumed: o.BoostConsumed,
		SuccessChance: o.SuccessChance,
		DestroyChance: o.DestroyChance,
		Quote:         res.Narrative.Quote,
		Player:        pv,
	}
}

// mutate loads the caller, applies fn and saves the result under the
// account lock.
func (s *Service) mutate(ctx context.Context, sess *session.Session, requestID, action string, fn func(p postgres.Player) (postgres.Player, error)) (PlayerView, error) {
	return locked(s, sess, requestID, func() (PlayerView, error) {
		p, err := s.players.Get(ctx, sess.AccountID)
		if err != nil {
			return PlayerView{}, err
		}
		next, err := fn(p)
		if err != nil {
			return PlayerView{}, err
		}
		saved, err := s.players.Save(ctx, next)
		if err != nil {
			return PlayerView{}, fmt.Errorf("saving %s: %w", action, err)
		}
		s.logger.Info(action,
			zap.Int64("account_id", sess.AccountID),
			zap.Int64("gold", saved.Stats.Gold),
		)
		return newPlayerView(saved, s.battlesLeft(ctx, sess.AccountID)), nil
	})
}

// BuyScrolls buys req.Count protection scrolls.
func (s *Service) BuyScrolls(ctx context.Context, sess *session.Session, req BuyScrollsRequest) (PlayerView, error) {
	return s.mutate(ctx, sess, req.RequestID, "scrolls bought", func(p postgres.Player) (postgres.Player, error) {
		stats, err := economy.BuyScrolls(p.Stats, req.Count)
		p.Stats = stats
		return p, err
	})
}

// AssignElement sets the weapon's element for the flat fee.
func (s *Service) AssignElement(ctx context.Context, sess *session.Session, req AssignElementRequest) (PlayerView, error) {
	el, err := weapon.ParseElement(req.Element)
	if err != nil {
		return PlayerView{}, fmt.Errorf("%w: %v", economy.ErrInvalidElement, err)
	}
	return s.mutate(ctx, sess, req.RequestID, "element assigned", func(p postgres.Player) (postgres.Player, error) {
		w, stats, err := economy.AssignElement(p.Weapon, p.Stats, el)
		p.Weapon, p.Stats = w, stats
		return p, err
	})
}

// ResetWeapon replaces the caller's weapon with a fresh one of req.Type.
func (s *Service) ResetWeapon(ctx context.Context, sess *session.Session, req ResetWeaponRequest) (PlayerView, error) {
	return s.mutate(ctx, sess, req.RequestID, "weapon reset", func(p postgres.Player) (postgres.Player, error) {
		w, err := economy.ResetWeapon(weapon.Type(req.Type))
		if err != nil {
			return p, err
		}
		p.Weapon = w
		return p, nil
	})
}

// ClaimAttendance grants the periodic attendance reward.
func (s *Service) ClaimAttendance(ctx context.Context, sess *session.Session, req ClaimAttendanceRequest) (PlayerView, error) {
	return s.mutate(ctx, sess, req.RequestID, "attendance claimed", func(p postgres.Player) (postgres.Player, error) {
		stats, err := economy.ClaimAttendance(p.Stats, s.now())
		p.Stats = stats
		return p, err
	})
}

// Showoff publishes the caller's weapon card to the feed.
func (s *Service) Showoff(ctx context.Context, sess *session.Session) (feed.Message, error) {
	p, err := s.players.Get(ctx, sess.AccountID)
	if err != nil {
		return feed.Message{}, err
	}
	w := p.Weapon
	ev := feed.ShowoffEvent{
		WeaponLevel:  w.Level,
		WeaponName:   w.Name,
		WeaponType:   w.Type,
		Description:  w.Description,
		Element:      w.Element,
		ElementLevel: w.ElementLevel,
		AttackPower:  weapon.AttackPower(w),
		Grade:        weapon.GradeOf(w.Level),
	}
	m := feed.NewMessage(sess.AccountID, sess.Username, feed.ShowoffBody(ev), ev, s.now())
	s.publish(ctx, m)
	return m, nil
}

func findPlayer(players []postgres.Player, accountID int64) (postgres.Player, bool) {
	for _, p := range players {
		if p.AccountID == accountID {
			return p, true
		}
	}
	return postgres.Player{}, false
}
