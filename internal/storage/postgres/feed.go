package postgres

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bitcory/knight/internal/game/feed"
)

// FeedRepository persists activity feed messages so the hub can be rebuilt
// after a restart.
type FeedRepository struct {
	db *pgxpool.Pool
}

// NewFeedRepository creates a FeedRepository backed by the given pool.
func NewFeedRepository(db *pgxpool.Pool) *FeedRepository {
	return &FeedRepository{db: db}
}

// Append stores m.
//
// Precondition: m.Kind must be valid and match m.Event.
func (r *FeedRepository) Append(ctx context.Context, m feed.Message) error {
	if !m.Kind.Valid() {
		return fmt.Errorf("invalid feed kind %q", m.Kind)
	}
	payload, err := feed.EncodePayload(m.Event)
	if err != nil {
		return fmt.Errorf("encoding feed payload: %w", err)
	}
	var accountID, whisperTo any
	if m.AccountID != 0 {
		accountID = m.AccountID
	}
	if m.WhisperTo != "" {
		whisperTo = m.WhisperTo
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO feed_messages (id, kind, account_id, sender, whisper_to, body, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, string(m.Kind), accountID, m.Sender, whisperTo, m.Body, payload, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting feed message: %w", err)
	}
	return nil
}

// Recent returns the newest limit messages in chronological order.
//
// Precondition: limit > 0.
func (r *FeedRepository) Recent(ctx context.Context, limit int) ([]feed.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, kind, account_id, sender, whisper_to, body, payload, created_at
		 FROM feed_messages
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying feed: %w", err)
	}
	defer rows.Close()

	var out []feed.Message
	for rows.Next() {
		var (
			m         feed.Message
			kind      string
			accountID *int64
			whisperTo *string
			payload   []byte
		)
		if err := rows.Scan(&m.ID, &kind, &accountID, &m.Sender, &whisperTo, &m.Body, &payload, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning feed message: %w", err)
		}
		m.Kind = feed.Kind(kind)
		if accountID != nil {
			m.AccountID = *accountID
		}
		if whisperTo != nil {
			m.WhisperTo = *whisperTo
		}
		if m.Event, err = feed.DecodePayload(m.Kind, payload); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating feed: %w", err)
	}
	slices.Reverse(out)
	return out, nil
}

// PurgeBefore deletes messages created before cutoff. A zero cutoff deletes
// everything.
//
// Postcondition: Returns the number of messages removed.
func (r *FeedRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	sql := `DELETE FROM feed_messages WHERE created_at < $1`
	args := []any{cutoff}
	if cutoff.IsZero() {
		sql = `DELETE FROM feed_messages`
		args = nil
	}
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("purging feed: %w", err)
	}
	return tag.RowsAffected(), nil
}
