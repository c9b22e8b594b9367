package ranking_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/bitcory/knight/internal/game/dice"
	"github.com/bitcory/knight/internal/game/ranking"
)

func sample() []ranking.Entry {
	return []ranking.Entry{
		{AccountID: 1, Name: "bora", Wins: 4, Level: 3},
		{AccountID: 2, Name: "anna", Wins: 9, Level: 1},
		{AccountID: 3, Name: "cho", Wins: 4, Level: 8},
		{AccountID: 4, Name: "aaron", Wins: 4, Level: 3},
	}
}

func TestLeaderboard_Ordering(t *testing.T) {
	in := sample()
	board := ranking.Leaderboard(in)

	var ids []int64
	for _, e := range board {
		ids = append(ids, e.AccountID)
	}
	assert.Equal(t, []int64{2, 3, 4, 1}, ids)
	assert.Equal(t, int64(1), in[0].AccountID, "input must not be reordered")
}

func TestTop(t *testing.T) {
	assert.Len(t, ranking.Top(sample(), 2), 2)
	assert.Len(t, ranking.Top(sample(), 10), 4)
	assert.Empty(t, ranking.Top(nil, 3))
}

func TestIsTopWinner(t *testing.T) {
	assert.True(t, ranking.IsTopWinner(sample(), 2))
	assert.False(t, ranking.IsTopWinner(sample(), 3))

	tied := []ranking.Entry{{AccountID: 1, Wins: 5}, {AccountID: 2, Wins: 5}}
	assert.False(t, ranking.IsTopWinner(tied, 1))
	assert.False(t, ranking.IsTopWinner(tied, 2))

	alone := []ranking.Entry{{AccountID: 1, Wins: 50}}
	assert.False(t, ranking.IsTopWinner(alone, 1), "a lone player is never penalized")
}

func TestWinRate(t *testing.T) {
	assert.Zero(t, ranking.Entry{}.WinRate())
	assert.InDelta(t, 0.75, ranking.Entry{Wins: 3, Losses: 1}.WinRate(), 1e-12)
}

func TestPickOpponent_NeverSelf(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(rt, "n")
		entries := make([]ranking.Entry, n)
		for i := range entries {
			entries[i] = ranking.Entry{AccountID: int64(i + 1)}
		}
		self := int64(rapid.IntRange(1, n).Draw(rt, "self"))
		src := dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed"))

		got, ok := ranking.PickOpponent(entries, self, src)
		if n == 1 {
			if ok {
				rt.Fatalf("picked %d with no other players", got.AccountID)
			}
			return
		}
		if !ok || got.AccountID == self {
			rt.Fatalf("picked %d (ok=%v) for self %d", got.AccountID, ok, self)
		}
	})
}

func TestPickOpponent_UsesSource(t *testing.T) {
	got, ok := ranking.PickOpponent(sample(), 2, dice.NewSequenceSource(0.99))
	require.True(t, ok)
	assert.Equal(t, int64(4), got.AccountID)
}
