// Package quota enforces the daily battle allowance. Counters are keyed by
// account and local calendar day, so they reset at local midnight.
package quota

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bitcory/knight/internal/game/economy"
)

// DefaultDailyLimit is the number of battles an account may start per day.
const DefaultDailyLimit = 20

// Counter tracks battles started per account per local day.
type Counter interface {
	// Take consumes one battle for accountID and returns how many remain.
	// It returns economy.ErrDailyQuotaExceeded without consuming anything
	// once the limit is reached.
	Take(ctx context.Context, accountID int64, now time.Time) (remaining int, err error)
	// Refund returns a battle taken by a resolution that failed afterwards.
	Refund(ctx context.Context, accountID int64, now time.Time) error
	// Used reports how many battles accountID has started today.
	Used(ctx context.Context, accountID int64, now time.Time) (int, error)
	// Reset clears every counter.
	Reset(ctx context.Context) error
	// Limit is the daily allowance.
	Limit() int
}

// Clock resolves calendar days in a fixed location.
type Clock struct {
	Loc *time.Location
}

// NewClock loads the named IANA zone. An empty name selects UTC.
func NewClock(zone string) (Clock, error) {
	if zone == "" {
		return Clock{Loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return Clock{}, fmt.Errorf("loading timezone %q: %w", zone, err)
	}
	return Clock{Loc: loc}, nil
}

func (c Clock) loc() *time.Location {
	if c.Loc == nil {
		return time.UTC
	}
	return c.Loc
}

// Day returns the local calendar day of now as YYYY-MM-DD.
func (c Clock) Day(now time.Time) string {
	return now.In(c.loc()).Format(time.DateOnly)
}

// NextMidnight returns the first local midnight strictly after now.
func (c Clock) NextMidnight(now time.Time) time.Time {
	local := now.In(c.loc())
	y, m, d := local.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, c.loc())
}

// Remaining returns limit-used floored at zero.
func Remaining(limit, used int) int {
	return max(0, limit-used)
}

type memKey struct {
	day     string
	account int64
}

// MemoryCounter is an in-process Counter for single-node deployments and tests.
type MemoryCounter struct {
	mu     sync.Mutex
	limit  int
	clock  Clock
	counts map[memKey]int
}

// NewMemoryCounter creates a MemoryCounter.
//
// Precondition: limit > 0.
func NewMemoryCounter(limit int, clock Clock) *MemoryCounter {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	return &MemoryCounter{limit: limit, clock: clock, counts: make(map[memKey]int)}
}

func (c *MemoryCounter) Limit() int { return c.limit }

func (c *MemoryCounter) Take(_ context.Context, accountID int64, now time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := memKey{day: c.clock.Day(now), account: accountID}
	if c.counts[k] >= c.limit {
		return 0, economy.ErrDailyQuotaExceeded
	}
	c.counts[k]++
	return Remaining(c.limit, c.counts[k]), nil
}

func (c *MemoryCounter) Refund(_ context.Context, accountID int64, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := memKey{day: c.clock.Day(now), account: accountID}
	if c.counts[k] > 0 {
		c.counts[k]--
	}
	return nil
}

func (c *MemoryCounter) Used(_ context.Context, accountID int64, now time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[memKey{day: c.clock.Day(now), account: accountID}], nil
}

func (c *MemoryCounter) Reset(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.counts)
	return nil
}

// Prune drops counters for days before now's day and reports how many were
// removed.
func (c *MemoryCounter) Prune(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	today := c.clock.Day(now)
	removed := 0
	for k := range c.counts {
		if k.day < today {
			delete(c.counts, k)
			removed++
		}
	}
	return removed
}

func accountKey(prefix, day string, accountID int64) string {
	return prefix + day + ":" + strconv.FormatInt(accountID, 10)
}
