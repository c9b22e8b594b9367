// Package battle resolves asynchronous PvP battles: the attacker fights a
// snapshot of the opponent's saved loadout.
package battle

import (
	"math"

	"github.com/bitcory/knight/internal/game/matchup"
	"github.com/bitcory/knight/internal/game/weapon"
)

// Win-probability calibration.
const (
	BaseWinChance             = 0.5
	LevelBonusPerLevel        = 0.05
	LevelBonusCap             = 0.25
	PowerBonusFactor          = 0.3
	PowerBonusCap             = 0.15
	TypeBonus                 = 0.08
	ElementBonus              = 0.05
	ElementLevelBonusPerLevel = 0.008
	ElementLevelBonusCap      = 0.08
	MinWinChance              = 0.20
	MaxWinChance              = 0.80
)

// Power is the battle power of a weapon: base + L*30 + L²*3.
func Power(w weapon.Weapon) int {
	return w.BaseDamage + w.Level*30 + w.Level*w.Level*3
}

// Odds is the breakdown of one matchup's win chance.
//
// Invariant: WinChance == clamp(0.5 + sum of bonuses, 0.20, 0.80).
type Odds struct {
	MyPower           int
	OpponentPower     int
	LevelBonus        float64
	PowerBonus        float64
	TypeMatchup       matchup.Result
	TypeBonus         float64
	ElementMatchup    matchup.Result
	ElementBonus      float64
	ElementLevelBonus float64
	WinChance         float64
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ComputeOdds synthesizes the attacker's win chance against opp. Each term is
// bounded individually for calibration; only the final sum is clamped to the
// contestable range.
//
// Postcondition: 0.20 <= WinChance <= 0.80.
func ComputeOdds(mine, opp weapon.Weapon) Odds {
	o := Odds{
		MyPower:        Power(mine),
		OpponentPower:  Power(opp),
		TypeMatchup:    matchup.TypeAdvantage(mine.Type, opp.Type),
		ElementMatchup: matchup.ElementAdvantage(mine.Element, opp.Element),
	}

	o.LevelBonus = clamp(float64(mine.Level-opp.Level)*LevelBonusPerLevel, -LevelBonusCap, LevelBonusCap)
	if o.OpponentPower > 0 {
		ratio := float64(o.MyPower) / float64(o.OpponentPower)
		o.PowerBonus = clamp((ratio-1)*PowerBonusFactor, -PowerBonusCap, PowerBonusCap)
	} else {
		o.PowerBonus = PowerBonusCap
	}
	o.TypeBonus = o.TypeMatchup.Sign() * TypeBonus
	o.ElementBonus = o.ElementMatchup.Sign() * ElementBonus

	myElementLevel, oppElementLevel := 0, 0
	if mine.HasElement() {
		myElementLevel = mine.ElementLevel
	}
	if opp.HasElement() {
		oppElementLevel = opp.ElementLevel
	}
	o.ElementLevelBonus = clamp(float64(myElementLevel-oppElementLevel)*ElementLevelBonusPerLevel,
		-ElementLevelBonusCap, ElementLevelBonusCap)

	sum := BaseWinChance + o.LevelBonus + o.PowerBonus + o.TypeBonus + o.ElementBonus + o.ElementLevelBonus
	o.WinChance = clamp(sum, MinWinChance, MaxWinChance)
	return o
}
