package enhance_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/bitcory/knight/internal/flavor"
	"github.com/bitcory/knight/internal/game/dice"
	"github.com/bitcory/knight/internal/game/economy"
	"github.com/bitcory/knight/internal/game/enhance"
	"github.com/bitcory/knight/internal/game/tier"
	"github.com/bitcory/knight/internal/game/weapon"
)

// Draw order for Attempt is (blessing, roll). noBlessing keeps the first
// value above the 10% blessing threshold.
const noBlessing = 0.5

func weaponAt(level int) weapon.Weapon {
	w := weapon.NewStarter()
	w.Level = level
	return w
}

func TestAttempt_Level19RollZeroReachesMax(t *testing.T) {
	src := dice.NewSequenceSource(noBlessing, 0)
	res, err := enhance.Attempt(weaponAt(19), economy.Stats{Gold: 2_000_000}, enhance.Context{}, src)
	require.NoError(t, err)

	assert.Equal(t, enhance.Success, res.Outcome.Result)
	assert.False(t, res.Outcome.Blessed)
	assert.Equal(t, 19, res.Outcome.PrevLevel)
	assert.Equal(t, 20, res.Outcome.NewLevel)
	assert.Equal(t, 20, res.Weapon.Level)
}

func TestAttempt_ForcedDestroy(t *testing.T) {
	w := weaponAt(10)
	w.TotalEnhanceCost = 50000
	w.Element = weapon.Dark
	w.ElementLevel = 3
	old := economy.Stats{Gold: 100000, Scrolls: 2}

	res, err := enhance.Attempt(w, old, enhance.Context{}, dice.NewSequenceSource(noBlessing, 0.999))
	require.NoError(t, err)

	cost := tier.Weapon(10).Cost
	refund := int64(math.Floor(float64(w.TotalEnhanceCost+cost) * 0.2))
	assert.Equal(t, enhance.Destroy, res.Outcome.Result)
	assert.Equal(t, refund, res.Outcome.Refund)
	assert.Equal(t, int64(16600), refund)
	assert.Equal(t, old.Gold-cost+refund, res.Stats.Gold)
	assert.Equal(t, 2, res.Stats.Scrolls)

	assert.Equal(t, 0, res.Weapon.Level)
	assert.Equal(t, int64(0), res.Weapon.TotalEnhanceCost)
	assert.Equal(t, "Rusty Sword", res.Weapon.Name)
	assert.Equal(t, weapon.None, res.Weapon.Element)
	assert.NotEqual(t, w.ID, res.Weapon.ID)
	assert.Equal(t, 0, res.Outcome.NewLevel)
}

func TestAttempt_InsufficientGoldNoMutation(t *testing.T) {
	src := dice.NewSequenceSource(0)
	w := weapon.NewStarter()
	s := economy.Stats{Gold: 50, Scrolls: 1}

	_, err := enhance.Attempt(w, s, enhance.Context{UseScroll: true}, src)
	require.ErrorIs(t, err, economy.ErrInsufficientGold)
	assert.Equal(t, int64(50), s.Gold)
	assert.Equal(t, 0, src.Consumed(), "rejection must not draw")
}

func TestAttempt_AlreadyMaxCheckedFirst(t *testing.T) {
	_, err := enhance.Attempt(weaponAt(20), economy.Stats{}, enhance.Context{}, dice.NewSequenceSource(0))
	assert.ErrorIs(t, err, economy.ErrAlreadyMaxLevel)
}

func TestAttempt_Maintain(t *testing.T) {
	w := weaponAt(3)
	w.TotalEnhanceCost = 1000
	// success .90, maintain .10: roll .95 lands in maintain.
	res, err := enhance.Attempt(w, economy.NewStarter(), enhance.Context{}, dice.NewSequenceSource(noBlessing, 0.95))
	require.NoError(t, err)
	assert.Equal(t, enhance.Maintain, res.Outcome.Result)
	assert.Equal(t, 3, res.Weapon.Level)
	assert.Equal(t, w.ID, res.Weapon.ID)
	assert.Equal(t, int64(1000+800), res.Weapon.TotalEnhanceCost)
}

// A roll exactly on the success boundary is not a success.
func TestAttempt_HalfOpenBoundary(t *testing.T) {
	res, err := enhance.Attempt(weaponAt(0), economy.NewStarter(), enhance.Context{}, dice.NewSequenceSource(noBlessing, 0.95))
	require.NoError(t, err)
	assert.Equal(t, enhance.Maintain, res.Outcome.Result)
}

func TestAttempt_ScrollBonus(t *testing.T) {
	s := economy.Stats{Gold: 10000, Scrolls: 1}
	res, err := enhance.Attempt(weaponAt(8), s, enhance.Context{UseScroll: true}, dice.NewSequenceSource(noBlessing, 0.8))
	require.NoError(t, err)
	assert.True(t, res.Outcome.ScrollUsed)
	assert.Equal(t, 0, res.Stats.Scrolls)
	assert.InDelta(t, 0.85, res.Outcome.SuccessChance, 1e-9)
	assert.InDelta(t, 0.0, res.Outcome.DestroyChance, 1e-9)
	assert.Equal(t, enhance.Success, res.Outcome.Result, "0.8 < 0.65+0.20")
}

func TestAttempt_ScrollRequestedButNoneLeft(t *testing.T) {
	s := economy.Stats{Gold: 10000}
	res, err := enhance.Attempt(weaponAt(8), s, enhance.Context{UseScroll: true}, dice.NewSequenceSource(noBlessing, 0.8))
	require.NoError(t, err)
	assert.False(t, res.Outcome.ScrollUsed)
	assert.Equal(t, 0, res.Stats.Scrolls)
	assert.InDelta(t, 0.65, res.Outcome.SuccessChance, 1e-9)
	assert.Equal(t, enhance.Maintain, res.Outcome.Result)
}

func TestAttempt_TopWinnerPenalty(t *testing.T) {
	res, err := enhance.Attempt(weaponAt(13), economy.Stats{Gold: 200000}, enhance.Context{IsTopWinner: true}, dice.NewSequenceSource(noBlessing, 0.35))
	require.NoError(t, err)
	assert.InDelta(t, 0.30, res.Outcome.SuccessChance, 1e-9)
	assert.InDelta(t, 0.20, res.Outcome.DestroyChance, 1e-9)
	assert.Equal(t, enhance.Maintain, res.Outcome.Result)
}

func TestAttempt_BlessingAddsThreeLevels(t *testing.T) {
	res, err := enhance.Attempt(weaponAt(5), economy.NewStarter(), enhance.Context{}, dice.NewSequenceSource(0.05, 0.999))
	require.NoError(t, err)
	assert.True(t, res.Outcome.Blessed)
	assert.Equal(t, enhance.Success, res.Outcome.Result, "blessing overrides a destroy roll")
	assert.Equal(t, 8, res.Weapon.Level)
}

func TestAttempt_BlessingCappedAtMax(t *testing.T) {
	res, err := enhance.Attempt(weaponAt(18), economy.Stats{Gold: 1_000_000}, enhance.Context{}, dice.NewSequenceSource(0.01, 0.999))
	require.NoError(t, err)
	assert.Equal(t, weapon.MaxLevel, res.Weapon.Level)
}

func TestAttempt_DebugBoost(t *testing.T) {
	ctx := enhance.Context{DebugBoost: true, IsTopWinner: true, UseScroll: true}
	s := economy.Stats{Gold: 2_000_000, Scrolls: 3}
	res, err := enhance.Attempt(weaponAt(19), s, ctx, dice.NewSequenceSource(noBlessing, 0.89))
	require.NoError(t, err)
	assert.True(t, res.Outcome.BoostConsumed)
	assert.Equal(t, 0.90, res.Outcome.SuccessChance)
	assert.Equal(t, 0.0, res.Outcome.DestroyChance)
	assert.Equal(t, enhance.Success, res.Outcome.Result)
	assert.Equal(t, 2, res.Stats.Scrolls, "the scroll is still spent")
}

func TestAdjustedOdds_Bounds_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		lvl := rapid.IntRange(0, weapon.MaxLevel-1).Draw(rt, "level")
		scroll := rapid.Bool().Draw(rt, "scroll")
		top := rapid.Bool().Draw(rt, "top")
		s, d := enhance.AdjustedOdds(tier.Weapon(lvl), scroll, top, false)
		if s < enhance.MinSuccessChance || s > enhance.MaxSuccessChance {
			rt.Fatalf("success %v out of bounds", s)
		}
		if d < 0 {
			rt.Fatalf("destroy %v negative", d)
		}
	})
}

// Property: the ledger always balances and levels stay in range.
func TestAttempt_Accounting_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		w := weapon.New(rapid.SampledFrom(weapon.Types).Draw(rt, "type"), "")
		w.Level = rapid.IntRange(0, weapon.MaxLevel-1).Draw(rt, "level")
		w.TotalEnhanceCost = rapid.Int64Range(0, 5_000_000).Draw(rt, "total")
		s := economy.Stats{
			Gold:    rapid.Int64Range(0, 3_000_000).Draw(rt, "gold"),
			Scrolls: rapid.IntRange(0, 3).Draw(rt, "scrolls"),
		}
		ctx := enhance.Context{
			UseScroll:   rapid.Bool().Draw(rt, "use_scroll"),
			IsTopWinner: rapid.Bool().Draw(rt, "top"),
			DebugBoost:  rapid.Bool().Draw(rt, "boost"),
		}
		src := dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed"))

		res, err := enhance.Attempt(w, s, ctx, src)
		cost := tier.Weapon(w.Level).Cost
		if s.Gold < cost {
			if !errors.Is(err, economy.ErrInsufficientGold) {
				rt.Fatalf("expected ErrInsufficientGold, got %v", err)
			}
			return
		}
		if err != nil {
			rt.Fatalf("unexpected error: %v", err)
		}
		if res.Stats.Gold != s.Gold-cost+res.Outcome.Refund {
			rt.Fatalf("gold %d != %d - %d + %d", res.Stats.Gold, s.Gold, cost, res.Outcome.Refund)
		}
		if res.Stats.Scrolls < 0 || res.Weapon.Level < 0 || res.Weapon.Level > weapon.MaxLevel {
			rt.Fatalf("invariant broken: %+v %+v", res.Stats, res.Weapon)
		}
		switch res.Outcome.Result {
		case enhance.Destroy:
			if res.Weapon.Level != 0 || res.Weapon.TotalEnhanceCost != 0 {
				rt.Fatalf("destroy left %+v", res.Weapon)
			}
			if res.Outcome.Refund != enhance.DestroyRefund(w.TotalEnhanceCost+cost) {
				rt.Fatalf("refund %d", res.Outcome.Refund)
			}
		default:
			if res.Weapon.TotalEnhanceCost != w.TotalEnhanceCost+cost {
				rt.Fatalf("total cost %d", res.Weapon.TotalEnhanceCost)
			}
			if res.Outcome.Refund != 0 {
				rt.Fatalf("refund on %s", res.Outcome.Result)
			}
		}
	})
}

// Starter sword, 1000 seeded attempts at level 0: ~95.5% success including blessings.
func TestAttempt_StarterScenario(t *testing.T) {
	src := dice.NewSeededSource(20240601)
	successes := 0
	const attempts = 1000
	for i := 0; i < attempts; i++ {
		res, err := enhance.Attempt(weapon.NewStarter(), economy.NewStarter(), enhance.Context{}, src)
		require.NoError(t, err)
		if res.Outcome.Result == enhance.Success {
			successes++
		}
	}
	rate := float64(successes) / attempts
	assert.GreaterOrEqual(t, rate, 0.90)
	assert.LessOrEqual(t, rate, 1.00)
}

func TestAttemptElement_Preconditions(t *testing.T) {
	src := dice.NewSequenceSource(0)
	_, err := enhance.AttemptElement(weapon.NewStarter(), economy.NewStarter(), src)
	assert.ErrorIs(t, err, economy.ErrNoElementAssigned)

	w := weapon.NewStarter()
	w.Element = weapon.Fire
	w.ElementLevel = weapon.MaxElementLevel
	_, err = enhance.AttemptElement(w, economy.NewStarter(), src)
	assert.ErrorIs(t, err, economy.ErrAlreadyMaxElementLevel)

	w.ElementLevel = 0
	_, err = enhance.AttemptElement(w, economy.Stats{Gold: 4999}, src)
	assert.ErrorIs(t, err, economy.ErrInsufficientGold)
	assert.Equal(t, 0, src.Consumed())
}

func TestAttemptElement_Outcomes(t *testing.T) {
	w := weaponAt(9)
	w.Element = weapon.Light
	w.ElementLevel = 4 // cost 125000, success .60, maintain .35

	res, err := enhance.AttemptElement(w, economy.NewStarter(), dice.NewSequenceSource(0.1))
	require.NoError(t, err)
	assert.Equal(t, enhance.Success, res.Outcome.Result)
	assert.Equal(t, 5, res.Weapon.ElementLevel)
	assert.Equal(t, int64(300000-125000), res.Stats.Gold)

	res, err = enhance.AttemptElement(w, economy.NewStarter(), dice.NewSequenceSource(0.9))
	require.NoError(t, err)
	assert.Equal(t, enhance.Maintain, res.Outcome.Result)
	assert.Equal(t, 4, res.Weapon.ElementLevel)

	res, err = enhance.AttemptElement(w, economy.NewStarter(), dice.NewSequenceSource(0.99))
	require.NoError(t, err)
	assert.Equal(t, enhance.Destroy, res.Outcome.Result)
	assert.Equal(t, 0, res.Weapon.ElementLevel)
	assert.Equal(t, weapon.Light, res.Weapon.Element, "element survives")
	assert.Equal(t, 9, res.Weapon.Level, "weapon level untouched")
	assert.Equal(t, w.ID, res.Weapon.ID)
	assert.Equal(t, int64(0), res.Outcome.Refund)
}

type brokenGenerator struct{}

func (brokenGenerator) Flavor(context.Context, weapon.Weapon, bool, int) (flavor.Text, error) {
	return flavor.Text{}, errors.New("timeout")
}

func (brokenGenerator) BattleLog(context.Context, weapon.Weapon, flavor.Opponent, bool) (string, error) {
	return "", errors.New("timeout")
}

type blankGenerator struct{}

func (blankGenerator) Flavor(context.Context, weapon.Weapon, bool, int) (flavor.Text, error) {
	return flavor.Text{WeaponName: "  "}, nil
}

func (blankGenerator) BattleLog(context.Context, weapon.Weapon, flavor.Opponent, bool) (string, error) {
	return "", nil
}

func TestResolver_BlankFlavorKeepsWeaponNamed(t *testing.T) {
	r := enhance.NewResolver(blankGenerator{}, zaptest.NewLogger(t))
	res, err := r.Enhance(context.Background(), weapon.NewStarter(), economy.NewStarter(), enhance.Context{}, dice.NewSequenceSource(noBlessing, 0))
	require.NoError(t, err)
	require.Equal(t, enhance.Success, res.Outcome.Result)
	assert.Equal(t, "Enhanced Rusty Sword", res.Weapon.Name)
	assert.NotEmpty(t, res.Weapon.Description)
	assert.NotEmpty(t, res.Narrative.Quote)
}

func TestResolver_RenamesOnSuccess(t *testing.T) {
	r := enhance.NewResolver(flavor.Canned{}, zaptest.NewLogger(t))
	res, err := r.Enhance(context.Background(), weapon.NewStarter(), economy.NewStarter(), enhance.Context{}, dice.NewSequenceSource(noBlessing, 0))
	require.NoError(t, err)
	assert.Equal(t, "Enhanced Rusty Sword", res.Weapon.Name)
	assert.Equal(t, res.Narrative.WeaponName, res.Weapon.Name)
}

func TestResolver_GeneratorFailureStillResolves(t *testing.T) {
	r := enhance.NewResolver(brokenGenerator{}, zaptest.NewLogger(t))
	w := weaponAt(4)
	res, err := r.Enhance(context.Background(), w, economy.NewStarter(), enhance.Context{}, dice.NewSequenceSource(noBlessing, 0.95))
	require.NoError(t, err)
	assert.Equal(t, enhance.Maintain, res.Outcome.Result)
	assert.Equal(t, w.Name, res.Weapon.Name)
	assert.NotEmpty(t, res.Narrative.Quote)
	assert.Equal(t, int64(300000-1000), res.Stats.Gold)
}

func TestResolver_EnhanceElementAnnouncement(t *testing.T) {
	r := enhance.NewResolver(brokenGenerator{}, zaptest.NewLogger(t))
	w := weapon.NewStarter()
	w.Element = weapon.Fire
	res, err := r.EnhanceElement(context.Background(), w, economy.NewStarter(), dice.NewSequenceSource(0))
	require.NoError(t, err)
	assert.Equal(t, "The fire affinity of [+0] Rusty Sword rose to +1!", res.Narrative.Quote)
}
