package gameserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bitcory/knight/internal/game/economy"
	"github.com/bitcory/knight/internal/game/feed"
	"github.com/bitcory/knight/internal/game/session"
	"github.com/bitcory/knight/internal/quota"
	"github.com/bitcory/knight/internal/storage/postgres"
)

const day = 24 * time.Hour

func requireAdmin(sess *session.Session) error {
	if sess == nil || !sess.IsAdmin() {
		return ErrPermissionDenied
	}
	return nil
}

func (s *Service) accountOf(ctx context.Context, username string) (postgres.Player, error) {
	p, err := s.players.GetByUsername(ctx, username)
	if errors.Is(err, postgres.ErrPlayerNotFound) {
		return postgres.Player{}, fmt.Errorf("%q: %w", username, postgres.ErrAccountNotFound)
	}
	return p, err
}

// GiftGold credits req.Amount gold to req.Username.
//
// Precondition: sess must be an admin session.
func (s *Service) GiftGold(ctx context.Context, sess *session.Session, req GiftGoldRequest) (PlayerView, error) {
	if err := requireAdmin(sess); err != nil {
		return PlayerView{}, err
	}
	target, err := s.accountOf(ctx, req.Username)
	if err != nil {
		return PlayerView{}, err
	}

	unlock := s.sessions.Lock(target.AccountID)
	defer unlock()
	p, err := s.players.Get(ctx, target.AccountID)
	if err != nil {
		return PlayerView{}, err
	}
	if p.Stats, err = economy.Gift(p.Stats, req.Amount); err != nil {
		return PlayerView{}, err
	}
	saved, err := s.players.Save(ctx, p)
	if err != nil {
		return PlayerView{}, fmt.Errorf("saving gift: %w", err)
	}
	s.logger.Info("gold gifted",
		zap.String("admin", sess.Username),
		zap.Int64("account_id", saved.AccountID),
		zap.Int64("amount", req.Amount),
	)
	s.publish(ctx, feed.NewMessage(0, "system",
		fmt.Sprintf("%s received %d gold from the realm.", saved.Username, req.Amount), feed.SystemEvent{}, s.now()))
	return newPlayerView(saved, s.battlesLeft(ctx, saved.AccountID)), nil
}

// ArmBoost arms the one-shot debug boost for req.Username. The next weapon
// enhancement by that player succeeds with 90% and disarms it.
//
// Precondition: sess must be an admin session.
func (s *Service) ArmBoost(ctx context.Context, sess *session.Session, req ArmBoostRequest) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	target, err := s.accountOf(ctx, req.Username)
	if err != nil {
		return err
	}
	s.sessions.ArmBoost(target.AccountID)
	s.logger.Info("debug boost armed", zap.String("admin", sess.Username), zap.Int64("account_id", target.AccountID))
	return nil
}

// PurgeFeed removes feed messages older than req.OlderThanDays days, or all
// of them when it is zero.
//
// Precondition: sess must be an admin session.
func (s *Service) PurgeFeed(ctx context.Context, sess *session.Session, req PurgeFeedRequest) (CountReply, error) {
	if err := requireAdmin(sess); err != nil {
		return CountReply{}, err
	}
	if req.OlderThanDays < 0 {
		return CountReply{}, fmt.Errorf("older than %d days: %w", req.OlderThanDays, economy.ErrInvalidAmount)
	}
	var cutoff time.Time
	if req.OlderThanDays > 0 {
		cutoff = s.now().Add(-time.Duration(req.OlderThanDays) * day)
	}
	n, err := s.PurgeFeedBefore(ctx, cutoff)
	if err != nil {
		return CountReply{}, err
	}
	s.logger.Info("feed purged", zap.String("admin", sess.Username), zap.Int64("count", n))
	return CountReply{Count: n}, nil
}

// PurgeInactiveAccounts removes non-admin accounts that have not logged in
// for req.Days days.
//
// Precondition: sess must be an admin session; req.Days > 0.
func (s *Service) PurgeInactiveAccounts(ctx context.Context, sess *session.Session, req PurgeInactiveRequest) (CountReply, error) {
	if err := requireAdmin(sess); err != nil {
		return CountReply{}, err
	}
	if req.Days <= 0 {
		return CountReply{}, fmt.Errorf("inactive for %d days: %w", req.Days, economy.ErrInvalidAmount)
	}
	names, err := s.PurgeInactive(ctx, s.now().Add(-time.Duration(req.Days)*day))
	if err != nil {
		return CountReply{}, err
	}
	return CountReply{Count: int64(len(names)), Names: names}, nil
}

// ResetAll restores every non-admin player to the starter state and clears
// the battle counters.
//
// Precondition: sess must be an admin session.
func (s *Service) ResetAll(ctx context.Context, sess *session.Session) (CountReply, error) {
	if err := requireAdmin(sess); err != nil {
		return CountReply{}, err
	}
	n, err := s.players.ResetAll(ctx)
	if err != nil {
		return CountReply{}, err
	}
	if err := s.quota.Reset(ctx); err != nil {
		return CountReply{}, fmt.Errorf("clearing battle counters: %w", err)
	}
	s.logger.Warn("all player data reset", zap.String("admin", sess.Username), zap.Int64("players", n))
	s.publish(ctx, feed.NewMessage(0, "system", "The realm has been reset. Every adventurer starts anew.", feed.SystemEvent{}, s.now()))
	return CountReply{Count: n}, nil
}

// RolloverQuota discards in-memory battle counters from previous days.
// Redis counters expire on their own.
func (s *Service) RolloverQuota(_ context.Context, now time.Time) error {
	if mem, ok := s.quota.(*quota.MemoryCounter); ok {
		if n := mem.Prune(now); n > 0 {
			s.logger.Info("battle counters pruned", zap.Int("count", n))
		}
	}
	return nil
}

// PurgeFeedBefore removes messages older than cutoff from storage and the
// hub. A zero cutoff removes everything.
func (s *Service) PurgeFeedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.feeds.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.hub.PurgeBefore(cutoff)
	return n, nil
}

// PurgeInactive removes non-admin accounts idle since before cutoff.
func (s *Service) PurgeInactive(ctx context.Context, cutoff time.Time) ([]string, error) {
	names, err := s.accounts.DeleteInactive(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if id, ok := s.sessions.AccountOf(name); ok {
			s.sessions.Forget(id)
		}
	}
	if len(names) > 0 {
		s.logger.Info("inactive accounts purged", zap.Strings("usernames", names))
	}
	return names, nil
}
