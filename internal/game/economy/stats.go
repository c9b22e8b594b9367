// Package economy defines a player's counters and the exact mutation
// contract every resolver and shop operation follows.
package economy

import (
	"fmt"
	"time"
)

// Starter values applied at account creation.
const (
	StarterGold    int64 = 300000
	StarterScrolls       = 5
)

// Stats is a player's economic state.
//
// Invariant: Gold >= 0; Scrolls >= 0; Wins and Losses never decrease.
type Stats struct {
	Gold           int64
	Scrolls        int
	Wins           int
	Losses         int
	LastAttendance time.Time
}

// NewStarter returns the stats every new account begins with.
func NewStarter() Stats {
	return Stats{Gold: StarterGold, Scrolls: StarterScrolls}
}

// CanAfford reports whether the player holds at least amount gold.
func (s Stats) CanAfford(amount int64) bool {
	return s.Gold >= amount
}

// Debit removes amount gold.
//
// Precondition: amount >= 0.
// Postcondition: Returns the reduced Stats, or ErrInsufficientGold with s unchanged.
func (s Stats) Debit(amount int64) (Stats, error) {
	if amount < 0 {
		return s, fmt.Errorf("debit %d: %w", amount, ErrInvalidAmount)
	}
	if !s.CanAfford(amount) {
		return s, fmt.Errorf("need %d gold, have %d: %w", amount, s.Gold, ErrInsufficientGold)
	}
	s.Gold -= amount
	return s, nil
}

// Credit adds amount gold. Negative amounts are ignored.
func (s Stats) Credit(amount int64) Stats {
	if amount > 0 {
		s.Gold += amount
	}
	return s
}

// UseScroll consumes one scroll if any remain.
//
// Postcondition: used is true iff Scrolls was positive; Scrolls decreased by one in that case.
func (s Stats) UseScroll() (out Stats, used bool) {
	if s.Scrolls <= 0 {
		return s, false
	}
	s.Scrolls--
	return s, true
}

// RecordWin increments Wins.
func (s Stats) RecordWin() Stats {
	s.Wins++
	return s
}

// RecordLoss increments Losses.
func (s Stats) RecordLoss() Stats {
	s.Losses++
	return s
}

// Validate checks the ledger invariants.
func (s Stats) Validate() error {
	switch {
	case s.Gold < 0:
		return fmt.Errorf("gold must be >= 0, got %d", s.Gold)
	case s.Scrolls < 0:
		return fmt.Errorf("scrolls must be >= 0, got %d", s.Scrolls)
	case s.Wins < 0 || s.Losses < 0:
		return fmt.Errorf("wins/losses must be >= 0, got %d/%d", s.Wins, s.Losses)
	}
	return nil
}
