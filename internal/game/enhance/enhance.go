// Package enhance resolves weapon and element enhancement attempts.
//
// Attempt and AttemptElement are pure: given the same state, context and
// random draws they always produce the same Resolution. Resolver layers the
// narrative on top without letting it affect the economy.
package enhance

import (
	"math"

	"github.com/bitcory/knight/internal/flavor"
	"github.com/bitcory/knight/internal/game/dice"
	"github.com/bitcory/knight/internal/game/economy"
	"github.com/bitcory/knight/internal/game/tier"
	"github.com/bitcory/knight/internal/game/weapon"
)

// Tuning constants for weapon enhancement.
const (
	ScrollBonus         = 0.20
	TopWinnerPenalty    = 0.10
	BlessingChance      = 0.10
	BlessingLevels      = 3
	BoostSuccessChance  = 0.90
	MinSuccessChance    = 0.05
	MaxSuccessChance    = 0.95
	DestroyRefundFactor = 0.2
)

// Result is the outcome branch of an attempt.
type Result string

const (
	Success  Result = "success"
	Maintain Result = "maintain"
	Destroy  Result = "destroy"
)

// Context carries the per-attempt modifiers supplied by the caller.
type Context struct {
	// UseScroll spends one scroll, if any remain, for +20% success.
	UseScroll bool
	// IsTopWinner applies the leaderboard leader penalty.
	IsTopWinner bool
	// DebugBoost is the one-shot 90% override. The caller disarms it when
	// Outcome.BoostConsumed is set.
	DebugBoost bool
}

// Outcome is the structured record of one attempt.
type Outcome struct {
	Result    Result
	PrevLevel int
	NewLevel  int
	Cost      int64
	Refund    int64

	Blessed       bool
	ScrollUsed    bool
	BoostConsumed bool

	// SuccessChance and DestroyChance are the adjusted odds the attempt ran with.
	SuccessChance float64
	DestroyChance float64
	Roll          float64
}

// Resolution is the full result of an attempt: the state to persist, the
// outcome record and the narrative.
type Resolution struct {
	Weapon    weapon.Weapon
	Stats     economy.Stats
	Outcome   Outcome
	Narrative flavor.Text
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// AdjustedOdds returns the success and destroy chances for cfg under the
// given modifiers, without drawing anything.
//
// Postcondition: without boost, success is in [0.05, 0.95] and destroy >= 0.
func AdjustedOdds(cfg tier.Config, scrollUsed, topWinner, boost bool) (success, destroy float64) {
	if boost {
		return BoostSuccessChance, 0
	}
	bonus := 0.0
	if scrollUsed {
		bonus = ScrollBonus
	}
	penalty := 0.0
	if topWinner {
		penalty = TopWinnerPenalty
	}
	success = clamp(cfg.SuccessChance+bonus-penalty, MinSuccessChance, MaxSuccessChance)
	destroy = math.Max(cfg.DestroyChance-bonus+penalty*0.5, 0)
	return success, destroy
}

// DestroyRefund returns floor(total * 0.2) where total already includes the
// cost of the attempt that destroyed the weapon.
func DestroyRefund(totalIncludingCost int64) int64 {
	return int64(math.Floor(float64(totalIncludingCost) * DestroyRefundFactor))
}

// Attempt resolves one weapon enhancement.
//
// Precondition: src must be non-nil.
// Postcondition: On error (ErrAlreadyMaxLevel, ErrInsufficientGold) nothing is
// drawn and the inputs are untouched. Otherwise exactly two values are drawn
// from src (blessing, then roll) and the Resolution carries the new state.
// Narrative is left empty; Resolver fills it.
func Attempt(w weapon.Weapon, s economy.Stats, ctx Context, src dice.Source) (Resolution, error) {
	if w.Level >= weapon.MaxLevel {
		return Resolution{}, economy.ErrAlreadyMaxLevel
	}
	cfg := tier.Weapon(w.Level)
	stats, err := s.Debit(cfg.Cost)
	if err != nil {
		return Resolution{}, err
	}

	scrollUsed := false
	if ctx.UseScroll {
		stats, scrollUsed = stats.UseScroll()
	}

	success, destroy := AdjustedOdds(cfg, scrollUsed, ctx.IsTopWinner, ctx.DebugBoost)
	blessing := dice.Chance(src, "blessing", BlessingChance)
	roll := src.Float64()

	out := Outcome{
		PrevLevel:     w.Level,
		Cost:          cfg.Cost,
		Blessed:       blessing.Hit,
		ScrollUsed:    scrollUsed,
		BoostConsumed: ctx.DebugBoost,
		SuccessChance: success,
		DestroyChance: destroy,
		Roll:          roll,
	}
	total := w.TotalEnhanceCost + cfg.Cost

	switch {
	case blessing.Hit || roll < success:
		step := 1
		if blessing.Hit {
			step = BlessingLevels
		}
		out.Result = Success
		w.Level = min(w.Level+step, weapon.MaxLevel)
		w.TotalEnhanceCost = total
	case roll < success+cfg.MaintainChance:
		out.Result = Maintain
		w.TotalEnhanceCost = total
	default:
		out.Result = Destroy
		out.Refund = DestroyRefund(total)
		stats = stats.Credit(out.Refund)
		w = w.Rebuilt()
	}
	out.NewLevel = w.Level

	return Resolution{Weapon: w, Stats: stats, Outcome: out}, nil
}

// AttemptElement resolves one element enhancement. There is no scroll, rank,
// blessing or boost modifier, and a destroy only resets the element level.
//
// Precondition: src must be non-nil.
// Postcondition: On error (ErrNoElementAssigned, ErrAlreadyMaxElementLevel,
// ErrInsufficientGold) nothing is drawn. Otherwise exactly one value is drawn.
func AttemptElement(w weapon.Weapon, s economy.Stats, src dice.Source) (Resolution, error) {
	if !w.HasElement() {
		return Resolution{}, economy.ErrNoElementAssigned
	}
	if w.ElementLevel >= weapon.MaxElementLevel {
		return Resolution{}, economy.ErrAlreadyMaxElementLevel
	}
	cfg := tier.Element(w.ElementLevel)
	stats, err := s.Debit(cfg.Cost)
	if err != nil {
		return Resolution{}, err
	}

	roll := src.Float64()
	out := Outcome{
		PrevLevel:     w.ElementLevel,
		Cost:          cfg.Cost,
		SuccessChance: cfg.SuccessChance,
		DestroyChance: cfg.DestroyChance,
		Roll:          roll,
	}

	switch {
	case roll < cfg.SuccessChance:
		out.Result = Success
		w.ElementLevel++
	case roll < cfg.SuccessChance+cfg.MaintainChance:
		out.Result = Maintain
	default:
		out.Result = Destroy
		w.ElementLevel = 0
	}
	out.NewLevel = w.ElementLevel

	return Resolution{Weapon: w, Stats: stats, Outcome: out}, nil
}
