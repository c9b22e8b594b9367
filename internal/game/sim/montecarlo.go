// Package sim runs Monte Carlo simulations of the enhancement curve so
// operators can inspect real odds and expected spend.
package sim

import (
	"errors"
	"math"
	"slices"

	"github.com/bitcory/knight/internal/game/dice"
	"github.com/bitcory/knight/internal/game/economy"
	"github.com/bitcory/knight/internal/game/enhance"
	"github.com/bitcory/knight/internal/game/weapon"
)

// DefaultMaxAttempts bounds a single trial of RunToLevel.
const DefaultMaxAttempts = 100_000

// ErrTrialExhausted is returned when a trial hits its attempt cap before
// reaching the target level.
var ErrTrialExhausted = errors.New("trial exceeded the attempt cap")

// Stats summarizes integer samples.
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	P99    float64 `json:"p99"`
	Max    int64   `json:"max"`
}

// Summarize computes mean, population standard deviation and interpolated
// percentiles of xs.
func Summarize(xs []int64) Stats {
	n := len(xs)
	if n == 0 {
		return Stats{}
	}
	var sum float64
	for _, v := range xs {
		sum += float64(v)
	}
	mean := sum / float64(n)
	var acc float64
	for _, v := range xs {
		d := float64(v) - mean
		acc += d * d
	}

	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	percentile := func(p float64) float64 {
		pos := p * float64(n-1)
		i := int(math.Floor(pos))
		if i+1 >= n {
			return float64(sorted[n-1])
		}
		f := pos - float64(i)
		return float64(sorted[i])*(1-f) + float64(sorted[i+1])*f
	}

	return Stats{
		Mean:   mean,
		StdDev: math.Sqrt(acc / float64(n)),
		P50:    percentile(0.50),
		P90:    percentile(0.90),
		P99:    percentile(0.99),
		Max:    sorted[n-1],
	}
}

// Rates are the observed outcome frequencies at one level.
type Rates struct {
	Level    int     `json:"level"`
	Trials   int     `json:"trials"`
	Success  float64 `json:"success"`
	Maintain float64 `json:"maintain"`
	Destroy  float64 `json:"destroy"`
	Blessed  float64 `json:"blessed"`
}

// LevelRates attempts an enhancement from level trials times and reports the
// observed frequencies.
//
// Precondition: 0 <= level < weapon.MaxLevel; trials > 0; src non-nil.
func LevelRates(level, trials int, ctx enhance.Context, src dice.Source) (Rates, error) {
	r := Rates{Level: level, Trials: trials}
	if trials <= 0 {
		return r, nil
	}
	w := weapon.NewStarter()
	w.Level = level
	var success, maintain, destroy, blessed int
	for range trials {
		res, err := enhance.Attempt(w, bankroll(), ctx, src)
		if err != nil {
			return Rates{}, err
		}
		switch res.Outcome.Result {
		case enhance.Success:
			success++
		case enhance.Maintain:
			maintain++
		default:
			destroy++
		}
		if res.Outcome.Blessed {
			blessed++
		}
	}
	n := float64(trials)
	r.Success, r.Maintain, r.Destroy, r.Blessed = float64(success)/n, float64(maintain)/n, float64(destroy)/n, float64(blessed)/n
	return r, nil
}

// Params configures a run-to-level simulation.
type Params struct {
	Target      int
	UseScrolls  bool
	TopWinner   bool
	MaxAttempts int
}

// Report summarizes the cost of reaching Params.Target from a fresh weapon.
type Report struct {
	Target   int   `json:"target"`
	Trials   int   `json:"trials"`
	Gold     Stats `json:"gold"`
	Attempts Stats `json:"attempts"`
	Destroys Stats `json:"destroys"`
}

// RunToLevel plays trials independent careers from a fresh starter weapon
// until it reaches p.Target. Gold spent is net of destroy refunds and
// includes scroll purchases when p.UseScrolls is set.
//
// Precondition: 0 < p.Target <= weapon.MaxLevel; src non-nil.
// Postcondition: Returns ErrTrialExhausted if any trial exceeds MaxAttempts.
func RunToLevel(p Params, trials int, src dice.Source) (Report, error) {
	if p.Target <= 0 || p.Target > weapon.MaxLevel {
		return Report{}, economy.ErrInvalidAmount
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	rep := Report{Target: p.Target, Trials: trials}
	if trials <= 0 {
		return rep, nil
	}
	gold := make([]int64, trials)
	attempts := make([]int64, trials)
	destroys := make([]int64, trials)
	for i := range trials {
		g, a, d, err := career(p, src)
		if err != nil {
			return Report{}, err
		}
		gold[i], attempts[i], destroys[i] = g, a, d
	}
	rep.Gold, rep.Attempts, rep.Destroys = Summarize(gold), Summarize(attempts), Summarize(destroys)
	return rep, nil
}

func career(p Params, src dice.Source) (spent, attempts, destroys int64, err error) {
	w := weapon.NewStarter()
	ctx := enhance.Context{UseScroll: p.UseScrolls, IsTopWinner: p.TopWinner}
	for w.Level < p.Target {
		if attempts >= int64(p.MaxAttempts) {
			return 0, 0, 0, ErrTrialExhausted
		}
		res, err := enhance.Attempt(w, bankroll(), ctx, src)
		if err != nil {
			return 0, 0, 0, err
		}
		attempts++
		spent += res.Outcome.Cost - res.Outcome.Refund
		if res.Outcome.ScrollUsed {
			spent += economy.ScrollPrice
		}
		if res.Outcome.Result == enhance.Destroy {
			destroys++
		}
		w = res.Weapon
	}
	return spent, attempts, destroys, nil
}

// bankroll is a balance no single attempt can exhaust.
func bankroll() economy.Stats {
	return economy.Stats{Gold: math.MaxInt64 / 2, Scrolls: math.MaxInt32}
}
