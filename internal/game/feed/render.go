package feed

import (
	"fmt"
	"strings"
)

// EnhancementBody renders the public line for an enhancement event.
func EnhancementBody(sender string, ev EnhancementEvent) string {
	target := ev.WeaponName
	if ev.Element {
		target = fmt.Sprintf("the %s affinity of %s", ev.WeaponElem, ev.WeaponName)
	}
	switch ev.Result {
	case "success":
		if ev.Blessed {
			return fmt.Sprintf("%s was blessed by the goddess! %s +%d -> +%d", sender, target, ev.PrevLevel, ev.NewLevel)
		}
		return fmt.Sprintf("%s enhanced %s +%d -> +%d", sender, target, ev.PrevLevel, ev.NewLevel)
	case "maintain":
		return fmt.Sprintf("%s failed to enhance %s, it held at +%d", sender, target, ev.PrevLevel)
	default:
		return fmt.Sprintf("%s destroyed %s at +%d", sender, target, ev.PrevLevel)
	}
}

// BattleBody renders the public line for a battle event.
func BattleBody(sender string, ev BattleEvent) string {
	switch {
	case ev.Spirit:
		return fmt.Sprintf("%s rose with indomitable spirit and defeated %s, looting %d gold!", sender, ev.OpponentName, ev.Loot)
	case ev.Win:
		return fmt.Sprintf("%s defeated %s and earned %d gold", sender, ev.OpponentName, ev.GoldChange)
	default:
		return fmt.Sprintf("%s lost to %s", sender, ev.OpponentName)
	}
}

// ShowoffBody renders the show-off card.
func ShowoffBody(ev ShowoffEvent) string {
	var b strings.Builder
	b.WriteString("Behold my weapon!\n")
	fmt.Fprintf(&b, "[+%d] %s (%s)\n", ev.WeaponLevel, ev.WeaponName, ev.Grade)
	fmt.Fprintf(&b, "Attack power: %d", ev.AttackPower)
	if ev.Element != "" {
		fmt.Fprintf(&b, "\nAffinity: %s +%d", ev.Element, ev.ElementLevel)
	}
	if ev.Description != "" {
		fmt.Fprintf(&b, "\n%q", ev.Description)
	}
	return b.String()
}
