// Package flavor produces the narrative that accompanies enhancement and
// battle outcomes. Narrative never influences the economy: every generator
// failure degrades to deterministic canned text.
package flavor

import (
	"context"
	"fmt"

	"github.com/bitcory/knight/internal/game/weapon"
)

// Text is the narrative attached to an enhancement attempt.
type Text struct {
	// Quote is the blacksmith's line shown with the result.
	Quote string `json:"quote"`
	// WeaponName is the weapon's new name; only applied on success.
	WeaponName string `json:"weaponName"`
	// Description is the weapon's new description; only applied on success.
	Description string `json:"description"`
}

// Opponent describes the other side of a battle for the log line.
type Opponent struct {
	Name   string
	Weapon weapon.Weapon
}

// Generator produces narrative. Implementations may fail; callers recover
// with Canned.
type Generator interface {
	// Flavor narrates an enhancement attempt on w that ended at newLevel.
	Flavor(ctx context.Context, w weapon.Weapon, success bool, newLevel int) (Text, error)
	// BattleLog narrates one battle from the attacker's point of view.
	BattleLog(ctx context.Context, w weapon.Weapon, opp Opponent, won bool) (string, error)
}

// Canned is the deterministic fallback generator. It never fails.
type Canned struct{}

// Flavor implements Generator.
func (Canned) Flavor(_ context.Context, w weapon.Weapon, success bool, newLevel int) (Text, error) {
	return CannedFlavor(w, success, newLevel), nil
}

// BattleLog implements Generator.
func (Canned) BattleLog(_ context.Context, _ weapon.Weapon, _ Opponent, won bool) (string, error) {
	return CannedBattleLog(won), nil
}

// CannedFlavor returns the fixed narrative for an enhancement attempt.
//
// Postcondition: WeaponName is "Enhanced <type>" on success, otherwise w.Name.
func CannedFlavor(w weapon.Weapon, success bool, newLevel int) Text {
	if success {
		return Text{
			Quote:       "The hammer struck true! It's done.",
			WeaponName:  fmt.Sprintf("Enhanced %s", w.Type.BaseName()),
			Description: fmt.Sprintf("Tempered to +%d in the forge's hottest fire.", newLevel),
		}
	}
	return Text{
		Quote:       "Hmm... the steel refused the hammer this time.",
		WeaponName:  w.Name,
		Description: w.Description,
	}
}

// CannedBattleLog returns the fixed battle line.
func CannedBattleLog(won bool) string {
	if won {
		return "You defeated the enemy!"
	}
	return "You lost the battle."
}
