package economy

import "errors"

// Precondition violations. Every operation checks these before mutating
// anything, so a returned error always means the state is unchanged.
var (
	// ErrAlreadyMaxLevel is returned when enhancing a weapon at MaxLevel.
	ErrAlreadyMaxLevel = errors.New("weapon is already at max level")
	// ErrAlreadyMaxElementLevel is returned when enhancing an element at MaxElementLevel.
	ErrAlreadyMaxElementLevel = errors.New("element is already at max level")
	// ErrInsufficientGold is returned when a cost exceeds the player's gold.
	ErrInsufficientGold = errors.New("insufficient gold")
	// ErrNoElementAssigned is returned when enhancing an element on a weapon without one.
	ErrNoElementAssigned = errors.New("no element assigned")
	// ErrDailyQuotaExceeded is returned when the daily battle allowance is used up.
	ErrDailyQuotaExceeded = errors.New("daily battle quota exceeded")
	// ErrOpponentNotFound is returned when the battle target does not exist.
	ErrOpponentNotFound = errors.New("opponent not found")

	// ErrInsufficientScrolls is returned when a scroll is required but none remain.
	ErrInsufficientScrolls = errors.New("insufficient scrolls")
	// ErrAttendanceNotReady is returned when the attendance reward is claimed too early.
	ErrAttendanceNotReady = errors.New("attendance reward not ready")
	// ErrInvalidAmount is returned for non-positive quantities.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrInvalidElement is returned when assigning None or an unknown element.
	ErrInvalidElement = errors.New("invalid element")
	// ErrInvalidWeaponType is returned when resetting to an unknown weapon family.
	ErrInvalidWeaponType = errors.New("invalid weapon type")
)

// IsPrecondition reports whether err is one of the rejection errors above.
func IsPrecondition(err error) bool {
	for _, target := range []error{
		ErrAlreadyMaxLevel, ErrAlreadyMaxElementLevel, ErrInsufficientGold,
		ErrNoElementAssigned, ErrDailyQuotaExceeded, ErrOpponentNotFound,
		ErrInsufficientScrolls, ErrAttendanceNotReady, ErrInvalidAmount,
		ErrInvalidElement, ErrInvalidWeaponType,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
