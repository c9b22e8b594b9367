package battle

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/bitcory/knight/internal/flavor"
	"github.com/bitcory/knight/internal/game/dice"
	"github.com/bitcory/knight/internal/game/economy"
	"github.com/bitcory/knight/internal/game/weapon"
)

// Reward and comeback tuning.
const (
	BaseReward        = 100
	RewardPerOppLevel = 20
	UnderdogStep      = 0.5
	ConsolationFactor = 0.2
	SpiritChance      = 0.05
	SpiritMinGap      = 3
	SpiritMaxGap      = 5
	LootFactor        = 0.5
)

// Challenger is the attacking side.
type Challenger struct {
	Weapon weapon.Weapon
	// TopWinner marks the leaderboard leader. It is carried into the result
	// for narration and does not alter the odds.
	TopWinner bool
}

// Opponent is the snapshot of the defending player.
type Opponent struct {
	AccountID int64
	Name      string
	Weapon    weapon.Weapon
	Gold      int64
}

// SpiritEvent records an Indomitable Spirit comeback.
type SpiritEvent struct {
	// OpponentGold is the balance the loot was computed from.
	OpponentGold int64
	Loot         int64
}

// Result is the structured outcome of one battle.
type Result struct {
	IsWin              bool
	Reward             int64
	BaseReward         int64
	UnderdogMultiplier float64
	Odds               Odds
	Roll               float64
	Spirit             *SpiritEvent
	AttackerTopWinner  bool
	LevelGap           int
}

// SpiritEligible reports whether the opponent is moderately but not
// overwhelmingly stronger: oppLevel - myLevel in [3, 5].
func SpiritEligible(myLevel, oppLevel int) bool {
	gap := oppLevel - myLevel
	return gap >= SpiritMinGap && gap <= SpiritMaxGap
}

// Loot returns floor(gold * 0.5) for a non-negative balance.
func Loot(gold int64) int64 {
	if gold <= 0 {
		return 0
	}
	return int64(math.Floor(float64(gold) * LootFactor))
}

// RewardBase returns 100 + oppLevel*20.
func RewardBase(oppLevel int) int64 {
	return int64(BaseReward + oppLevel*RewardPerOppLevel)
}

// Resolve fights one battle.
//
// Precondition: src must be non-nil. Quota and opponent existence are the
// caller's concern.
// Postcondition: One value is drawn for the normal trial, and a second only
// when SpiritEligible holds. The spirit never fires outside that window.
func Resolve(me Challenger, opp Opponent, src dice.Source) Result {
	odds := ComputeOdds(me.Weapon, opp.Weapon)
	normal := dice.Chance(src, "battle", odds.WinChance)

	res := Result{
		Odds:              odds,
		Roll:              normal.Roll,
		IsWin:             normal.Hit,
		BaseReward:        RewardBase(opp.Weapon.Level),
		AttackerTopWinner: me.TopWinner,
		LevelGap:          opp.Weapon.Level - me.Weapon.Level,
	}

	if SpiritEligible(me.Weapon.Level, opp.Weapon.Level) {
		if dice.Chance(src, "indomitable_spirit", SpiritChance).Hit {
			res.IsWin = true
			res.Spirit = &SpiritEvent{OpponentGold: opp.Gold, Loot: Loot(opp.Gold)}
		}
	}

	res.UnderdogMultiplier, res.Reward = reward(res)
	return res
}

func reward(res Result) (float64, int64) {
	base := res.BaseReward
	switch {
	case res.Spirit != nil:
		return 1, base + res.Spirit.Loot
	case res.IsWin:
		mult := 1 + float64(max(0, res.LevelGap))*UnderdogStep
		return mult, int64(math.Floor(float64(base) * mult))
	default:
		return ConsolationFactor, int64(math.Floor(float64(base) * ConsolationFactor))
	}
}

// WithLoot recomputes a spirit result against a fresh opponent balance
// without re-drawing anything. Non-spirit results are returned unchanged.
func WithLoot(res Result, opponentGold int64) Result {
	if res.Spirit == nil {
		return res
	}
	spirit := SpiritEvent{OpponentGold: opponentGold, Loot: Loot(opponentGold)}
	res.Spirit = &spirit
	res.UnderdogMultiplier, res.Reward = reward(res)
	return res
}

// Settle applies a result to the attacker's stats: reward credited, and
// exactly one of Wins or Losses incremented. The opponent's counters are
// never touched.
func Settle(s economy.Stats, res Result) economy.Stats {
	s = s.Credit(res.Reward)
	if res.IsWin {
		return s.RecordWin()
	}
	return s.RecordLoss()
}

// Outcome is a Result plus its battle log line.
type Outcome struct {
	Result
	Narrative string
}

// Resolver runs battles and narrates them.
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

// Fight resolves the battle and attaches a battle log. A log failure falls
// back to canned text and never changes the result.
func (r *Resolver) Fight(ctx context.Context, me Challenger, opp Opponent, src dice.Source) Outcome {
	res := Resolve(me, opp, src)

	line, err := r.gen.BattleLog(ctx, me.Weapon, flavor.Opponent{Name: opp.Name, Weapon: opp.Weapon}, res.IsWin)
	if err != nil || line == "" {
		r.logger.Warn("battle log failed, using canned text",
			zap.String("opponent", opp.Name),
			zap.Error(err),
		)
		line = flavor.CannedBattleLog(res.IsWin)
	}

	fields := []zap.Field{
		zap.Int64("opponent_id", opp.AccountID),
		zap.Bool("win", res.IsWin),
		zap.Float64("win_chance", res.Odds.WinChance),
		zap.Int64("reward", res.Reward),
		zap.Int("level_gap", res.LevelGap),
	}
	if res.Spirit != nil {
		fields = append(fields, zap.Int64("loot", res.Spirit.Loot))
	}
	r.logger.Info("battle resolved", fields...)

	return Outcome{Result: res, Narrative: line}
}
