package gameserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/bitcory/knight/internal/config"
	"github.com/bitcory/knight/internal/game/battle"
	"github.com/bitcory/knight/internal/game/dice"
	"github.com/bitcory/knight/internal/game/enhance"
	"github.com/bitcory/knight/internal/game/feed"
	"github.com/bitcory/knight/internal/game/ranking"
	"github.com/bitcory/knight/internal/game/session"
	"github.com/bitcory/knight/internal/quota"
	"github.com/bitcory/knight/internal/storage/postgres"
)

// Transport-level rejections. Economy sentinels pass through unchanged.
var (
	ErrUnauthenticated   = errors.New("not logged in")
	ErrPermissionDenied  = errors.New("admin role required")
	ErrInvalidUsername   = errors.New("username must be 1-32 characters without spaces or a leading '/'")
	ErrInvalidPassword   = errors.New("password must be at least 6 characters")
	ErrEmptyMessage      = errors.New("message is empty")
	ErrMessageTooLong    = errors.New("message is too long")
	ErrRecipientNotFound = errors.New("recipient not found")
)

// MaxMessageLength bounds chat and whisper lines in runes.
const MaxMessageLength = 500

// Accounts is the account store the service needs.
type Accounts interface {
	Register(ctx context.Context, username, password string, starter postgres.Player) (postgres.Account, postgres.Player, error)
	Authenticate(ctx context.Context, username, password string) (postgres.Account, error)
	DeleteInactive(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Players is the player-state store the service needs.
type Players interface {
	Get(ctx context.Context, accountID int64) (postgres.Player, error)
	GetByUsername(ctx context.Context, username string) (postgres.Player, error)
	ListAll(ctx context.Context) ([]postgres.Player, error)
	Save(ctx context.Context, p postgres.Player) (postgres.Player, error)
	SaveWithLoot(ctx context.Context, attacker postgres.Player, victimID, expectedGold, loot int64) (postgres.Player, error)
	ResetAll(ctx context.Context) (int64, error)
}

// FeedStore persists feed messages.
type FeedStore interface {
	Append(ctx context.Context, m feed.Message) error
	Recent(ctx context.Context, limit int) ([]feed.Message, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service implements every game operation on top of the resolvers. Actions
// for one account are serialized and replay the stored reply for a repeated
// request id.
type Service struct {
	accounts Accounts
	players  Players
	feeds    FeedStore
	hub      *feed.Hub
	sessions *session.Manager
	quota    quota.Counter
	enhancer *enhance.Resolver
	fighter  *battle.Resolver
	src      dice.Source
	loot     string
	backlog  int
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a Service.
//
// Precondition: every dependency must be non-nil.
// Postcondition: The hub is empty until Hydrate is called.
func NewService(
	accounts Accounts,
	players Players,
	feeds FeedStore,
	hub *feed.Hub,
	sessions *session.Manager,
	counter quota.Counter,
	enhancer *enhance.Resolver,
	fighter *battle.Resolver,
	src dice.Source,
	economy config.EconomyConfig,
	gs config.GameServerConfig,
	logger *zap.Logger,
) *Service {
	backlog := gs.FeedBacklog
	if backlog <= 0 {
		backlog = feed.DefaultBacklog
	}
	return &Service{
		accounts: accounts,
		players:  players,
		feeds:    feeds,
		hub:      hub,
		sessions: sessions,
		quota:    counter,
		enhancer: enhancer,
		fighter:  fighter,
		src:      src,
		loot:     economy.LootPolicy,
		backlog:  backlog,
		logger:   logger,
		now:      time.Now,
	}
}

// Hydrate loads the most recent persisted messages into the hub.
func (s *Service) Hydrate(ctx context.Context) error {
	msgs, err := s.feeds.Recent(ctx, s.backlog)
	if err != nil {
		return fmt.Errorf("hydrating feed: %w", err)
	}
	s.hub.Hydrate(msgs)
	s.logger.Info("feed hydrated", zap.Int("messages", len(msgs)))
	return nil
}

func validateUsername(name string) error {
	n := utf8.RuneCountInString(name)
	if n == 0 || n > 32 || strings.HasPrefix(name, "/") || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return ErrInvalidUsername
	}
	return nil
}

// Register creates an account with the starter stats and weapon.
//
// Postcondition: Returns postgres.ErrAccountExists for a taken username.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (PlayerView, error) {
	if err := validateUsername(req.Username); err != nil {
		return PlayerView{}, err
	}
	if len(req.Password) < 6 {
		return PlayerView{}, ErrInvalidPassword
	}
	acct, p, err := s.accounts.Register(ctx, req.Username, req.Password, postgres.NewStarterPlayer())
	if err != nil {
		return PlayerView{}, err
	}
	p.Role = acct.Role
	s.logger.Info("account registered", zap.Int64("account_id", acct.ID), zap.String("username", acct.Username))
	s.publish(ctx, feed.NewMessage(0, "system", fmt.Sprintf("%s joined the realm.", acct.Username), feed.SystemEvent{}, s.now()))
	return newPlayerView(p, s.battlesLeft(ctx, acct.ID)), nil
}

// Login authenticates and opens a session, replacing any previous one.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginReply, *session.Session, error) {
	acct, err := s.accounts.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, postgres.ErrAccountNotFound) {
			return LoginReply{}, nil, postgres.ErrInvalidCredentials
		}
		return LoginReply{}, nil, err
	}
	p, err := s.players.Get(ctx, acct.ID)
	if err != nil {
		return LoginReply{}, nil, err
	}
	sess, err := s.sessions.Open(acct.ID, acct.Username, acct.Role)
	if err != nil {
		return LoginReply{}, nil, err
	}
	s.logger.Info("player logged in", zap.Int64("account_id", acct.ID), zap.String("username", acct.Username))
	return LoginReply{Token: sess.Token, Player: newPlayerView(p, s.battlesLeft(ctx, acct.ID))}, sess, nil
}

// Logout closes the session.
func (s *Service) Logout(_ context.Context, sess *session.Session) error {
	return s.sessions.Close(sess.Token)
}

// Authorize resolves a session token.
func (s *Service) Authorize(token string) (*session.Session, error) {
	sess, ok := s.sessions.Get(token)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return sess, nil
}

// State returns the caller's current player state.
func (s *Service) State(ctx context.Context, sess *session.Session) (PlayerView, error) {
	p, err := s.players.Get(ctx, sess.AccountID)
	if err != nil {
		return PlayerView{}, err
	}
	return newPlayerView(p, s.battlesLeft(ctx, sess.AccountID)), nil
}

func (s *Service) battlesLeft(ctx context.Context, accountID int64) int {
	used, err := s.quota.Used(ctx, accountID, s.now())
	if err != nil {
		s.logger.Warn("reading battle quota", zap.Int64("account_id", accountID), zap.Error(err))
		return 0
	}
	return quota.Remaining(s.quota.Limit(), used)
}

// snapshot loads the population and its leaderboard projection.
func (s *Service) snapshot(ctx context.Context) ([]postgres.Player, []ranking.Entry, error) {
	players, err := s.players.ListAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	return players, postgres.Entries(players), nil
}

// publish fans m out to subscribers and persists it. A storage failure is
// logged; the action that produced m has already been committed.
func (s *Service) publish(ctx context.Context, m feed.Message) {
	s.hub.Publish(m)
	if err := s.feeds.Append(ctx, m); err != nil {
		s.logger.Error("persisting feed message",
			zap.String("message_id", m.ID),
			zap.String("kind", string(m.Kind)),
			zap.Error(err),
		)
	}
}

// replay runs fn once per request id. The caller must hold the account lock.
func replay[T any](s *Service, accountID int64, requestID string, fn func() (T, error)) (T, error) {
	if prev, ok := s.sessions.Reply(accountID, requestID); ok {
		if reply, ok := prev.(T); ok {
			s.logger.Debug("replaying duplicate request",
				zap.Int64("account_id", accountID),
				zap.String("request_id", requestID),
			)
			return reply, nil
		}
	}
	reply, err := fn()
	if err != nil {
		return reply, err
	}
	s.sessions.Remember(accountID, requestID, reply)
	return reply, nil
}

// locked runs a deduplicated action under the caller's account lock.
func locked[T any](s *Service, sess *session.Session, requestID string, fn func() (T, error)) (T, error) {
	unlock := s.sessions.Lock(sess.AccountID)
	defer unlock()
	return replay(s, sess.AccountID, requestID, fn)
}

// lockPair locks two accounts in id order so concurrent battles between the
// same pair cannot deadlock.
func (s *Service) lockPair(a, b int64) (unlock func()) {
	if a == b {
		return s.sessions.Lock(a)
	}
	first, second := min(a, b), max(a, b)
	u1 := s.sessions.Lock(first)
	u2 := s.sessions.Lock(second)
	return func() {
		u2()
		u1()
	}
}
