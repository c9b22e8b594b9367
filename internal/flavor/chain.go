package flavor

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/bitcory/knight/internal/game/weapon"
)

// Chain tries each generator in order and falls back to Canned when all fail.
// Chain itself never returns an error.
type Chain struct {
	gens   []Generator
	logger *zap.Logger
}

// NewChain creates a Chain over gens. Nil entries are skipped.
//
// Precondition: logger must be non-nil.
func NewChain(logger *zap.Logger, gens ...Generator) *Chain {
	c := &Chain{logger: logger}
	for _, g := range gens {
		if g != nil {
			c.gens = append(c.gens, g)
		}
	}
	return c
}

// Flavor implements Generator.
//
// Postcondition: err is always nil; Text is complete.
func (c *Chain) Flavor(ctx context.Context, w weapon.Weapon, success bool, newLevel int) (Text, error) {
	for i, g := range c.gens {
		t, err := g.Flavor(ctx, w, success, newLevel)
		if err == nil && t.Quote != "" {
			return Fill(t, w, success, newLevel), nil
		}
		c.logger.Warn("flavor generator failed",
			zap.Int("position", i),
			zap.String("weapon_id", w.ID),
			zap.Error(err),
		)
	}
	return CannedFlavor(w, success, newLevel), nil
}

// BattleLog implements Generator.
//
// Postcondition: err is always nil; the line is non-empty.
func (c *Chain) BattleLog(ctx context.Context, w weapon.Weapon, opp Opponent, won bool) (string, error) {
	for i, g := range c.gens {
		line, err := g.BattleLog(ctx, w, opp, won)
		if err == nil && strings.TrimSpace(line) != "" {
			return strings.TrimSpace(line), nil
		}
		c.logger.Warn("battle log generator failed",
			zap.Int("position", i),
			zap.String("opponent", opp.Name),
			zap.Error(err),
		)
	}
	return CannedBattleLog(won), nil
}

// Fill patches blank fields of a partially generated Text with canned values.
//
// Postcondition: Quote, WeaponName and Description are non-blank.
func Fill(t Text, w weapon.Weapon, success bool, newLevel int) Text {
	fallback := CannedFlavor(w, success, newLevel)
	if strings.TrimSpace(t.Quote) == "" {
		t.Quote = fallback.Quote
	}
	if strings.TrimSpace(t.WeaponName) == "" {
		t.WeaponName = fallback.WeaponName
	}
	if strings.TrimSpace(t.Description) == "" {
		t.Description = fallback.Description
	}
	return t
}
