// Package ranking orders players for the leaderboard and picks opponents.
package ranking

import (
	"cmp"
	"slices"

	"github.com/bitcory/knight/internal/game/dice"
)

// Entry is one player's leaderboard row.
type Entry struct {
	AccountID  int64  `json:"accountId"`
	Name       string `json:"name"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
	Level      int    `json:"level"`
	WeaponName string `json:"weaponName"`
}

// WinRate returns wins / (wins + losses), or 0 before the first battle.
func (e Entry) WinRate() float64 {
	total := e.Wins + e.Losses
	if total == 0 {
		return 0
	}
	return float64(e.Wins) / float64(total)
}

// Leaderboard returns a sorted copy of entries: wins descending, then weapon
// level descending, then name ascending.
//
// Postcondition: entries is not modified.
func Leaderboard(entries []Entry) []Entry {
	out := slices.Clone(entries)
	slices.SortStableFunc(out, func(a, b Entry) int {
		if c := cmp.Compare(b.Wins, a.Wins); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Level, a.Level); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

// Top returns at most n leading entries of the leaderboard.
func Top(entries []Entry, n int) []Entry {
	board := Leaderboard(entries)
	if n >= 0 && n < len(board) {
		board = board[:n]
	}
	return board
}

// IsTopWinner reports whether accountID holds first place outright. It
// requires more than one player and strictly more wins than second place, so
// a tie for first never triggers the leader penalty.
func IsTopWinner(entries []Entry, accountID int64) bool {
	if len(entries) < 2 {
		return false
	}
	board := Leaderboard(entries)
	return board[0].AccountID == accountID && board[0].Wins > board[1].Wins
}

// PickOpponent returns a uniformly chosen entry other than self.
//
// Precondition: src must be non-nil.
// Postcondition: ok is false when no other player exists.
func PickOpponent(entries []Entry, self int64, src dice.Source) (Entry, bool) {
	candidates := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.AccountID != self {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return Entry{}, false
	}
	return candidates[src.Intn(len(candidates))], true
}
