package dice

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Roller wraps a Source and logger so every draw leaves an audit line.
// Roller itself satisfies Source and can be handed to any resolver.
type Roller struct {
	src    Source
	logger *zap.Logger
	seq    atomic.Uint64
}

// NewLoggedRoller creates a Roller that draws from src and logs each draw to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Float64 draws from the wrapped source and logs the value at debug level.
func (r *Roller) Float64() float64 {
	v := r.src.Float64()
	r.logger.Debug("random draw",
		zap.Uint64("seq", r.seq.Add(1)),
		zap.Float64("value", v),
	)
	return v
}

// Intn draws from the wrapped source and logs the value at debug level.
//
// Precondition: n > 0.
func (r *Roller) Intn(n int) int {
	v := r.src.Intn(n)
	r.logger.Debug("random pick",
		zap.Uint64("seq", r.seq.Add(1)),
		zap.Int("n", n),
		zap.Int("value", v),
	)
	return v
}

// Chance performs a labelled Bernoulli trial and logs the full Draw.
//
// Postcondition: the returned Draw is logged with label, probability, roll and verdict.
func (r *Roller) Chance(label string, p float64) Draw {
	d := Chance(r.src, label, p)
	r.logger.Debug("chance draw",
		zap.Uint64("seq", r.seq.Add(1)),
		zap.String("label", d.Label),
		zap.Float64("p", d.P),
		zap.Float64("roll", d.Roll),
		zap.Bool("hit", d.Hit),
	)
	return d
}
