package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bitcory/knight/internal/game/economy"
)

// KeyPrefix namespaces the battle counters in Redis.
const KeyPrefix = "knight:battles:"

// expiryGrace keeps a counter readable briefly past midnight.
const expiryGrace = time.Hour

// RedisCounter is a Counter shared by every gameserver instance.
type RedisCounter struct {
	rdb   redis.UniversalClient
	limit int
	clock Clock
}

// NewRedisCounter creates a RedisCounter.
//
// Precondition: rdb must be non-nil; limit > 0.
func NewRedisCounter(rdb redis.UniversalClient, limit int, clock Clock) *RedisCounter {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	return &RedisCounter{rdb: rdb, limit: limit, clock: clock}
}

// Limit is the daily allowance.
func (c *RedisCounter) Limit() int { return c.limit }

func (c *RedisCounter) key(accountID int64, now time.Time) string {
	return accountKey(KeyPrefix, c.clock.Day(now), accountID)
}

// Take increments the counter and expiry in one transaction. A take that
// overshoots the limit is undone before returning.
func (c *RedisCounter) Take(ctx context.Context, accountID int64, now time.Time) (int, error) {
	key := c.key(accountID, now)

	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireAt(ctx, key, c.clock.NextMidnight(now).Add(expiryGrace))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("incrementing battle counter: %w", err)
	}

	used := int(incr.Val())
	if used > c.limit {
		if err := c.rdb.Decr(ctx, key).Err(); err != nil {
			return 0, fmt.Errorf("undoing battle counter overshoot: %w", err)
		}
		return 0, economy.ErrDailyQuotaExceeded
	}
	return Remaining(c.limit, used), nil
}

// Refund decrements the counter. A counter that would go negative is
// removed instead.
func (c *RedisCounter) Refund(ctx context.Context, accountID int64, now time.Time) error {
	key := c.key(accountID, now)
	n, err := c.rdb.Decr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("refunding battle counter: %w", err)
	}
	if n < 0 {
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("clamping battle counter: %w", err)
		}
	}
	return nil
}

// Used reads the counter; a missing key is zero.
func (c *RedisCounter) Used(ctx context.Context, accountID int64, now time.Time) (int, error) {
	n, err := c.rdb.Get(ctx, c.key(accountID, now)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading battle counter: %w", err)
	}
	return n, nil
}

// Reset deletes every battle counter in batches.
func (c *RedisCounter) Reset(ctx context.Context) error {
	const batchSize = 500
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, KeyPrefix+"*", batchSize).Result()
		if err != nil {
			return fmt.Errorf("scanning battle counters: %w", err)
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("deleting battle counters: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Ping checks connectivity.
func (c *RedisCounter) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
