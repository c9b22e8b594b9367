package economy

import (
	"fmt"
	"time"

	"github.com/bitcory/knight/internal/game/weapon"
)

// Shop prices and rewards.
const (
	ScrollPrice        int64 = 100000
	ElementAssignCost  int64 = 50000
	AttendanceReward   int64 = 500000
	AttendanceInterval       = 4 * time.Hour
)

// BuyScrolls purchases n scrolls at ScrollPrice each.
//
// Precondition: n > 0.
// Postcondition: Gold reduced by n*ScrollPrice and Scrolls increased by n, or an error with s unchanged.
func BuyScrolls(s Stats, n int) (Stats, error) {
	if n <= 0 {
		return s, fmt.Errorf("buying %d scrolls: %w", n, ErrInvalidAmount)
	}
	out, err := s.Debit(ScrollPrice * int64(n))
	if err != nil {
		return s, err
	}
	out.Scrolls += n
	return out, nil
}

// AssignElement sets or replaces the weapon's element for a flat fee.
// There is no randomness; ElementLevel always restarts at 0.
//
// Precondition: el must be a valid non-None element.
// Postcondition: Returns the updated weapon and stats, or an error with both unchanged.
func AssignElement(w weapon.Weapon, s Stats, el weapon.Element) (weapon.Weapon, Stats, error) {
	if el == weapon.None || !el.Valid() {
		return w, s, fmt.Errorf("assigning %q: %w", el, ErrInvalidElement)
	}
	out, err := s.Debit(ElementAssignCost)
	if err != nil {
		return w, s, err
	}
	w.Element = el
	w.ElementLevel = 0
	return w, out, nil
}

// ResetWeapon discards the current weapon for a fresh level-0 weapon of family t.
// The old instance, its enhancement spend and its element are gone.
func ResetWeapon(t weapon.Type) (weapon.Weapon, error) {
	if !t.Valid() {
		return weapon.Weapon{}, fmt.Errorf("resetting to %q: %w", t, ErrInvalidWeaponType)
	}
	return weapon.Reset(t), nil
}

// NextAttendance returns the earliest time the attendance reward can be claimed.
func NextAttendance(s Stats) time.Time {
	if s.LastAttendance.IsZero() {
		return time.Time{}
	}
	return s.LastAttendance.Add(AttendanceInterval)
}

// ClaimAttendance grants AttendanceReward once per AttendanceInterval.
//
// Postcondition: Gold increased and LastAttendance set to now, or
// ErrAttendanceNotReady wrapped with the remaining wait.
func ClaimAttendance(s Stats, now time.Time) (Stats, error) {
	if next := NextAttendance(s); now.Before(next) {
		return s, fmt.Errorf("%s remaining: %w", next.Sub(now).Round(time.Second), ErrAttendanceNotReady)
	}
	out := s.Credit(AttendanceReward)
	out.LastAttendance = now
	return out, nil
}

// Gift credits an operator-granted amount.
//
// Precondition: amount > 0.
func Gift(s Stats, amount int64) (Stats, error) {
	if amount <= 0 {
		return s, fmt.Errorf("gift %d: %w", amount, ErrInvalidAmount)
	}
	return s.Credit(amount), nil
}
