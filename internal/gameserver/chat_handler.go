package gameserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/bitcory/knight/internal/game/feed"
	"github.com/bitcory/knight/internal/game/session"
	"github.com/bitcory/knight/internal/storage/postgres"
)

// Chat handles one line from the global chat. Command lines run the matching
// action under the same request id; anything else is published as chat.
// "/scroll" buys a single scroll.
func (s *Service) Chat(ctx context.Context, sess *session.Session, req ChatRequest) (ChatReply, error) {
	cmd := feed.ParseCommand(req.Text)
	switch cmd.Kind {
	case feed.CommandEnhance:
		r, err := s.Enhance(ctx, sess, EnhanceRequest{RequestID: req.RequestID})
		if err != nil {
			return ChatReply{}, err
		}
		return ChatReply{Enhance: &r}, nil
	case feed.CommandScroll:
		pv, err := s.BuyScrolls(ctx, sess, BuyScrollsRequest{RequestID: req.RequestID, Count: 1})
		if err != nil {
			return ChatReply{}, err
		}
		return ChatReply{Player: &pv}, nil
	case feed.CommandBattle:
		r, err := s.Battle(ctx, sess, BattleRequest{RequestID: req.RequestID})
		if err != nil {
			return ChatReply{}, err
		}
		return ChatReply{Battle: &r}, nil
	case feed.CommandShowoff:
		m, err := s.Showoff(ctx, sess)
		if err != nil {
			return ChatReply{}, err
		}
		return ChatReply{Message: &m}, nil
	case feed.CommandWhisper:
		m, err := s.Whisper(ctx, sess, WhisperRequest{To: cmd.Target, Text: cmd.Body})
		if err != nil {
			return ChatReply{}, err
		}
		return ChatReply{Message: &m}, nil
	}

	body, err := cleanMessage(cmd.Body)
	if err != nil {
		return ChatReply{}, err
	}
	m, err := locked(s, sess, req.RequestID, func() (feed.Message, error) {
		m := feed.NewMessage(sess.AccountID, sess.Username, body, feed.ChatEvent{}, s.now())
		s.publish(ctx, m)
		return m, nil
	})
	if err != nil {
		return ChatReply{}, err
	}
	return ChatReply{Message: &m}, nil
}

// Whisper sends a private line visible only to the sender and req.To.
func (s *Service) Whisper(ctx context.Context, sess *session.Session, req WhisperRequest) (feed.Message, error) {
	body, err := cleanMessage(req.Text)
	if err != nil {
		return feed.Message{}, err
	}
	if req.To == sess.Username {
		return feed.Message{}, fmt.Errorf("whispering to yourself: %w", ErrRecipientNotFound)
	}
	if _, err := s.players.GetByUsername(ctx, req.To); err != nil {
		if errors.Is(err, postgres.ErrPlayerNotFound) {
			return feed.Message{}, fmt.Errorf("%q: %w", req.To, ErrRecipientNotFound)
		}
		return feed.Message{}, err
	}
	m := feed.NewWhisper(sess.AccountID, sess.Username, req.To, body, s.now())
	s.publish(ctx, m)
	return m, nil
}

func cleanMessage(text string) (string, error) {
	body := strings.TrimSpace(text)
	if body == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return "", fmt.Errorf("%w: limit %d characters", ErrMessageTooLong, MaxMessageLength)
	}
	return body, nil
}

// Feed returns the backlog visible to the caller.
func (s *Service) Feed(_ context.Context, sess *session.Session) FeedReply {
	return FeedReply{Messages: s.hub.Recent(sess.Username)}
}

// PublicFeed returns the backlog visible to an anonymous reader.
func (s *Service) PublicFeed() FeedReply {
	return FeedReply{Messages: s.hub.Recent("")}
}

// Subscribe streams feed messages visible to the caller to send until ctx
// is done or send fails. The backlog is sent first.
func (s *Service) Subscribe(ctx context.Context, sess *session.Session, send func(feed.Message) error) error {
	ch := make(chan feed.Message, s.backlog)
	backlog := s.hub.Subscribe(sess.Username, ch)
	defer s.hub.Unsubscribe(ch)

	s.logger.Debug("feed subscriber joined", zap.String("username", sess.Username), zap.Int("subscribers", s.hub.Subscribers()))
	for _, m := range backlog {
		if err := send(m); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-ch:
			if err := send(m); err != nil {
				return err
			}
		}
	}
}
