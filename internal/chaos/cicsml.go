// Package chaos implements the coupled Chebyshev / logistic-sine map (CICSML)
// that drives both the scrambling permutation and the diffusion keystream.
//
// Each step updates the Chebyshev component
//
//	p ← cos(b·arccos(p))
//
// and feeds it into the logistic-sine component
//
//	x ← ((1−p)·L(x) + p·S(x)) mod 1
//
// A warm-up of cfg.Transient iterations is discarded before values are
// recorded. The recurrence is fully deterministic: identical inputs produce a
// bit-identical sequence.
package chaos

import (
	"errors"
	"fmt"
	"math"

	"img-chaos/internal/config"
)

// ErrDegenerateState is returned if the recurrence leaves the real domain.
// Clamping p before arccos keeps this from happening for finite inputs.
var ErrDegenerateState = errors.New("chaos: degenerate chaotic state")

// Params are the map constants and initial conditions.
type Params struct {
	A  float64 `json:"a"`
	B  float64 `json:"b"`
	X0 float64 `json:"x0"`
	P0 float64 `json:"p0"`
}

func (p Params) validate() error {
	for _, v := range []float64{p.A, p.B, p.X0, p.P0} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite parameter in %+v", ErrDegenerateState, p)
		}
	}
	return nil
}

// Generator produces CICSML sequences for a fixed configuration. It holds no
// mutable state and is safe for concurrent use.
type Generator struct {
	transient int
	combine   config.CombineMode
}

// New returns a generator for cfg.
func New(cfg config.Chaos) *Generator {
	return &Generator{transient: cfg.Transient, combine: cfg.Combine}
}

// ParamsFor fills the configured constants around the given initial conditions.
func ParamsFor(cfg config.Chaos, x0, p0 float64) Params {
	return Params{A: cfg.A, B: cfg.B, X0: x0, P0: p0}
}

// Generate runs the transient warm-up and records length further values, all
// in [0,1).
func (g *Generator) Generate(length int, prm Params) ([]float64, error) {
	if length < 0 {
		return nil, fmt.Errorf("chaos: negative length %d", length)
	}
	if err := prm.validate(); err != nil {
		return nil, err
	}
	x, p := prm.X0, prm.P0
	for i := 0; i < g.transient; i++ {
		x, p = g.step(x, p, prm)
	}
	out := make([]float64, length)
	for i := range out {
		x, p = g.step(x, p, prm)
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%w: x=%v at step %d", ErrDegenerateState, x, i)
		}
		out[i] = x
	}
	return out, nil
}

func (g *Generator) step(x, p float64, prm Params) (float64, float64) {
	p = chebyshev(p, prm.B)
	x = g.mix(x, p, prm.A)
	return fold(x), p
}

func chebyshev(p, b float64) float64 {
	return math.Cos(b * math.Acos(clamp(p, -1, 1)))
}

func (g *Generator) mix(x, p, a float64) float64 {
	sine := (a - 0.5) * math.Sin(math.Pi*x)
	if g.combine == config.CombineCorrected {
		logistic := a * x * (1 - x)
		return (1-p)*logistic + p*sine
	}
	// Both branches are the sine term, so the p weighting cancels.
	return (1-p)*sine + p*sine
}

// fold reduces x into [0,1) with floored modulo.
func fold(x float64) float64 {
	x -= math.Floor(x)
	if x >= 1 {
		return 0
	}
	return x
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Keystream scales each value to a byte by truncating v·255.
func Keystream(seq []float64) []byte {
	out := make([]byte, len(seq))
	for i, v := range seq {
		out[i] = byte(v * 255)
	}
	return out
}
