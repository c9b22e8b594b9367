// Package tier holds the enhancement curves: the cost and base odds for every
// weapon level and every element level. No other package hardcodes them.
package tier

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

// probabilityTolerance bounds the rounding error allowed when the three
// chances of a band are summed.
const probabilityTolerance = 1e-9

//go:embed curves.yaml
var defaultCurves []byte

// Config is the enhancement configuration at one level.
//
// Invariant: SuccessChance + MaintainChance + DestroyChance == 1 (±1e-9).
type Config struct {
	Cost           int64
	SuccessChance  float64
	MaintainChance float64
	DestroyChance  float64
}

// Band is one contiguous level range sharing a cost rule and odds.
type Band struct {
	From         int     `yaml:"from"`
	To           *int    `yaml:"to"`
	FlatCost     int64   `yaml:"flat_cost"`
	CostPerLevel int64   `yaml:"cost_per_level"`
	Success      float64 `yaml:"success"`
	Maintain     float64 `yaml:"maintain"`
	Destroy      float64 `yaml:"destroy"`
}

// covers reports whether level falls inside the band.
func (b Band) covers(level int) bool {
	if level < b.From {
		return false
	}
	return b.To == nil || level <= *b.To
}

// configAt materializes the band's rule for level.
func (b Band) configAt(level int) Config {
	cost := b.FlatCost
	if cost == 0 {
		cost = b.CostPerLevel * int64(level+1)
	}
	return Config{
		Cost:           cost,
		SuccessChance:  b.Success,
		MaintainChance: b.Maintain,
		DestroyChance:  b.Destroy,
	}
}

// Curve is an ordered range table.
//
// Invariant: bands start at level 0, are contiguous, and only the last one is open-ended.
type Curve struct {
	bands []Band
}

// Bands returns a copy of the curve's bands in level order.
func (c Curve) Bands() []Band {
	out := make([]Band, len(c.bands))
	copy(out, c.bands)
	return out
}

// At returns the configuration for level.
//
// Precondition: level >= 0. Negative levels resolve to the first band.
// Postcondition: Returns the Config of the band covering level.
func (c Curve) At(level int) Config {
	if level < 0 {
		level = 0
	}
	for _, b := range c.bands {
		if b.covers(level) {
			return b.configAt(level)
		}
	}
	// Unreachable for a validated curve: the last band is open-ended.
	last := c.bands[len(c.bands)-1]
	return last.configAt(level)
}

// Curves is the pair of tables used by the engine.
type Curves struct {
	Weapon  Curve
	Element Curve
}

type curvesFile struct {
	Weapon  []Band `yaml:"weapon"`
	Element []Band `yaml:"element"`
}

// Parse decodes and validates a curves YAML document.
//
// Postcondition: Returns validated Curves or a non-nil error describing every violation.
func Parse(data []byte) (Curves, error) {
	var f curvesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Curves{}, fmt.Errorf("decoding curves: %w", err)
	}

	var errs []string
	if err := validateBands("weapon", f.Weapon); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateBands("element", f.Element); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return Curves{}, fmt.Errorf("invalid curves: %s", strings.Join(errs, "; "))
	}

	return Curves{
		Weapon:  Curve{bands: f.Weapon},
		Element: Curve{bands: f.Element},
	}, nil
}

func validateBands(name string, bands []Band) error {
	if len(bands) == 0 {
		return fmt.Errorf("%s: no bands", name)
	}
	var errs []string
	next := 0
	for i, b := range bands {
		if b.From != next {
			errs = append(errs, fmt.Sprintf("%s[%d]: from must be %d, got %d", name, i, next, b.From))
		}
		last := i == len(bands)-1
		switch {
		case b.To == nil && !last:
			errs = append(errs, fmt.Sprintf("%s[%d]: only the last band may be open-ended", name, i))
		case b.To != nil && last:
			errs = append(errs, fmt.Sprintf("%s[%d]: last band must be open-ended", name, i))
		case b.To != nil && *b.To < b.From:
			errs = append(errs, fmt.Sprintf("%s[%d]: to %d before from %d", name, i, *b.To, b.From))
		}
		if (b.FlatCost > 0) == (b.CostPerLevel > 0) {
			errs = append(errs, fmt.Sprintf("%s[%d]: exactly one of flat_cost and cost_per_level must be positive", name, i))
		}
		for _, p := range []float64{b.Success, b.Maintain, b.Destroy} {
			if p < 0 || p > 1 {
				errs = append(errs, fmt.Sprintf("%s[%d]: probability %v out of [0,1]", name, i, p))
			}
		}
		if sum := b.Success + b.Maintain + b.Destroy; math.Abs(sum-1) > probabilityTolerance {
			errs = append(errs, fmt.Sprintf("%s[%d]: chances sum to %v", name, i, sum))
		}
		if b.To != nil {
			next = *b.To + 1
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// MustParse parses data and panics on error. Used for the embedded defaults.
func MustParse(data []byte) Curves {
	c, err := Parse(data)
	if err != nil {
		panic("tier: MustParse failed: " + err.Error())
	}
	return c
}

var defaults = MustParse(defaultCurves)

// Default returns the production curves.
func Default() Curves {
	return defaults
}

// Weapon returns the enhancement configuration at weapon level.
func Weapon(level int) Config {
	return defaults.Weapon.At(level)
}

// Element returns the enhancement configuration at element level.
func Element(level int) Config {
	return defaults.Element.At(level)
}
