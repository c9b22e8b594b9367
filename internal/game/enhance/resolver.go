package enhance

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bitcory/knight/internal/flavor"
	"github.com/bitcory/knight/internal/game/dice"
	"github.com/bitcory/knight/internal/game/economy"
	"github.com/bitcory/knight/internal/game/weapon"
)

// Resolver runs attempts and attaches narrative. A narrative failure never
// changes the economic result.
type Resolver struct {
	gen    flavor.Generator
	logger *zap.Logger
}

// NewResolver creates a Resolver.
//
// Precondition: gen and logger must be non-nil.
func NewResolver(gen flavor.Generator, logger *zap.Logger) *Resolver {
	return &Resolver{gen: gen, logger: logger}
}

// Enhance resolves a weapon enhancement and narrates it. On success the
// weapon takes the generated name and description.
//
// Postcondition: Same economic result as Attempt for the same draws.
func (r *Resolver) Enhance(ctx context.Context, w weapon.Weapon, s economy.Stats, ectx Context, src dice.Source) (Resolution, error) {
	res, err := Attempt(w, s, ectx, src)
	if err != nil {
		return Resolution{}, err
	}

	success := res.Outcome.Result == Success
	text, err := r.gen.Flavor(ctx, w, success, res.Outcome.NewLevel)
	if err != nil {
		r.logger.Warn("enhancement flavor failed, using canned text",
			zap.String("weapon_id", w.ID),
			zap.Error(err),
		)
		text = flavor.CannedFlavor(w, success, res.Outcome.NewLevel)
	}
	text = flavor.Fill(text, w, success, res.Outcome.NewLevel)
	if success {
		res.Weapon.Name = text.WeaponName
		res.Weapon.Description = text.Description
	}
	res.Narrative = text

	r.logger.Info("enhancement resolved",
		zap.String("weapon_id", w.ID),
		zap.String("result", string(res.Outcome.Result)),
		zap.Int("prev_level", res.Outcome.PrevLevel),
		zap.Int("new_level", res.Outcome.NewLevel),
		zap.Int64("cost", res.Outcome.Cost),
		zap.Int64("refund", res.Outcome.Refund),
		zap.Bool("blessed", res.Outcome.Blessed),
		zap.Bool("scroll", res.Outcome.ScrollUsed),
		zap.Bool("boost", res.Outcome.BoostConsumed),
	)
	return res, nil
}

// EnhanceElement resolves an element enhancement. Its narrative is a fixed
// announcement; no generator is consulted.
func (r *Resolver) EnhanceElement(_ context.Context, w weapon.Weapon, s economy.Stats, src dice.Source) (Resolution, error) {
	res, err := AttemptElement(w, s, src)
	if err != nil {
		return Resolution{}, err
	}
	res.Narrative = flavor.Text{
		Quote:       ElementAnnouncement(w, res.Outcome),
		WeaponName:  res.Weapon.Name,
		Description: res.Weapon.Description,
	}

	r.logger.Info("element enhancement resolved",
		zap.String("weapon_id", w.ID),
		zap.String("element", string(w.Element)),
		zap.String("result", string(res.Outcome.Result)),
		zap.Int("prev_level", res.Outcome.PrevLevel),
		zap.Int("new_level", res.Outcome.NewLevel),
		zap.Int64("cost", res.Outcome.Cost),
	)
	return res, nil
}

// ElementAnnouncement renders the feed line for an element attempt.
func ElementAnnouncement(w weapon.Weapon, out Outcome) string {
	switch out.Result {
	case Success:
		return fmt.Sprintf("The %s affinity of %s rose to +%d!", w.Element, w.DisplayName(), out.NewLevel)
	case Maintain:
		return fmt.Sprintf("The %s affinity of %s held at +%d.", w.Element, w.DisplayName(), out.PrevLevel)
	default:
		return fmt.Sprintf("The %s affinity of %s shattered and fell back to +0...", w.Element, w.DisplayName())
	}
}
