// Package dice provides the randomness abstraction shared by every resolver
// in the Knight economy engine.
package dice

import "fmt"

// Source is the randomness provider for all resolution draws.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Float64 returns a uniformly distributed value in [0, 1).
	Float64() float64
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// Draw is the audit record of a single Bernoulli trial.
//
// Postcondition: Hit == (Roll < P).
type Draw struct {
	Label string  // what the draw decided, e.g. "blessing"
	P     float64 // probability of a hit
	Roll  float64 // value drawn from the source in [0, 1)
	Hit   bool
}

// String returns a human-readable audit string in the format:
//
//	"blessing: 0.0421 < 0.1000 hit"
func (d Draw) String() string {
	verdict := "miss"
	op := ">="
	if d.Hit {
		verdict = "hit"
		op = "<"
	}
	return fmt.Sprintf("%s: %.4f %s %.4f %s", d.Label, d.Roll, op, d.P, verdict)
}

// Chance draws one value from src and compares it against p using a
// half-open interval.
//
// Precondition: src must be non-nil.
// Postcondition: Hit is true iff the drawn value is strictly less than p.
func Chance(src Source, label string, p float64) Draw {
	roll := src.Float64()
	return Draw{Label: label, P: p, Roll: roll, Hit: roll < p}
}
