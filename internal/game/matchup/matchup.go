// Package matchup computes weapon-type and element affinities between two loadouts.
package matchup

import "github.com/bitcory/knight/internal/game/weapon"

// Result is the affinity of one side against the other.
type Result int

const (
	Neutral Result = iota
	Advantage
	Disadvantage
)

// String returns the lowercase name of the result.
func (r Result) String() string {
	switch r {
	case Advantage:
		return "advantage"
	case Disadvantage:
		return "disadvantage"
	default:
		return "neutral"
	}
}

// Sign returns +1 for Advantage, -1 for Disadvantage and 0 for Neutral.
func (r Result) Sign() float64 {
	switch r {
	case Advantage:
		return 1
	case Disadvantage:
		return -1
	default:
		return 0
	}
}

// typeCycle maps each family to the one it beats.
var typeCycle = map[weapon.Type]weapon.Type{
	weapon.Sword:  weapon.Spear,
	weapon.Spear:  weapon.Axe,
	weapon.Axe:    weapon.Hammer,
	weapon.Hammer: weapon.Sword,
}

// elementCycle maps each element to the one it beats.
var elementCycle = map[weapon.Element]weapon.Element{
	weapon.Fire:  weapon.Curse,
	weapon.Curse: weapon.Light,
	weapon.Light: weapon.Dark,
	weapon.Dark:  weapon.Water,
	weapon.Water: weapon.Fire,
}

// Beats returns the family t beats.
func Beats(t weapon.Type) weapon.Type {
	return typeCycle[t]
}

// BeatsElement returns the element e beats, or None for None.
func BeatsElement(e weapon.Element) weapon.Element {
	return elementCycle[e]
}

// TypeAdvantage reports how mine fares against theirs.
//
// Postcondition: TypeAdvantage(a, b) == Advantage iff TypeAdvantage(b, a) == Disadvantage.
func TypeAdvantage(mine, theirs weapon.Type) Result {
	switch {
	case typeCycle[mine] == theirs:
		return Advantage
	case typeCycle[theirs] == mine:
		return Disadvantage
	default:
		return Neutral
	}
}

// ElementAdvantage reports how mine fares against theirs. Either side being
// None makes the matchup neutral.
func ElementAdvantage(mine, theirs weapon.Element) Result {
	if mine == weapon.None || theirs == weapon.None {
		return Neutral
	}
	switch {
	case elementCycle[mine] == theirs:
		return Advantage
	case elementCycle[theirs] == mine:
		return Disadvantage
	default:
		return Neutral
	}
}
