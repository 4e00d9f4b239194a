// Package perm builds, applies and inverts index permutations.
//
// A permutation is held in one of two encodings: a Linear index array or a
// list of grid Coordinates. Both normalize to Linear through the Encoding
// interface before they are applied or composed, so callers never branch on
// the concrete type.
package perm

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"img-chaos/internal/grid"
)

// ErrMismatch is returned when a permutation is not a bijection over the
// expected index set.
var ErrMismatch = errors.New("perm: permutation mismatch")

// Encoding is any representation that can be normalized to a linear index
// array over n elements.
type Encoding interface {
	Linear(n int) (Linear, error)
	Len() int
}

// Linear maps output position i to source index p[i].
type Linear []int

func (p Linear) Linear(n int) (Linear, error) {
	if len(p) != n {
		return nil, fmt.Errorf("%w: length %d, want %d", ErrMismatch, len(p), n)
	}
	return p, nil
}

func (p Linear) Len() int { return len(p) }

// Coordinates maps output position i to the grid cell c[i]. The grid side is
// the square root of n.
type Coordinates []grid.Coord

func (c Coordinates) Linear(n int) (Linear, error) {
	if len(c) != n {
		return nil, fmt.Errorf("%w: length %d, want %d", ErrMismatch, len(c), n)
	}
	side := isqrt(n)
	if side*side != n {
		return nil, fmt.Errorf("%w: %d cells do not form a square", ErrMismatch, n)
	}
	out := make(Linear, n)
	for i, rc := range c {
		if rc.Row < 0 || rc.Row >= side || rc.Col < 0 || rc.Col >= side {
			return nil, fmt.Errorf("%w: coordinate %d (%d,%d) outside %dx%d", ErrMismatch, i, rc.Row, rc.Col, side, side)
		}
		out[i] = rc.Row*side + rc.Col
	}
	return out, nil
}

func (c Coordinates) Len() int { return len(c) }

func isqrt(n int) int {
	if n <= 0 {
		return 0
	}
	r := 1
	for r*r < n {
		r <<= 1
	}
	for r*r > n {
		r--
	}
	return r
}

// Normalize converts enc to Linear and checks it is a bijection over [0,n).
func Normalize(enc Encoding, n int) (Linear, error) {
	if enc == nil {
		return nil, fmt.Errorf("%w: missing permutation", ErrMismatch)
	}
	p, err := enc.Linear(n)
	if err != nil {
		return nil, err
	}
	if err := Validate(p, n); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate reports whether p covers [0,n) exactly once.
func Validate(p Linear, n int) error {
	if len(p) != n {
		return fmt.Errorf("%w: length %d, want %d", ErrMismatch, len(p), n)
	}
	seen := make([]bool, n)
	for i, v := range p {
		if v < 0 || v >= n {
			return fmt.Errorf("%w: entry %d=%d out of range", ErrMismatch, i, v)
		}
		if seen[v] {
			return fmt.Errorf("%w: duplicate index %d", ErrMismatch, v)
		}
		seen[v] = true
	}
	return nil
}

// Identity returns the identity permutation over n elements.
func Identity(n int) Linear {
	p := make(Linear, n)
	for i := range p {
		p[i] = i
	}
	return p
}

// FromSequence returns the indices that sort seq ascending; equal values keep
// their original order.
func FromSequence(seq []float64) Linear {
	return argsort(seq)
}

// FromValues is FromSequence for integer keys.
func FromValues(vals []int) Linear {
	return argsort(vals)
}

func argsort[T cmp.Ordered](vals []T) Linear {
	p := Identity(len(vals))
	slices.SortStableFunc(p, func(a, b int) int {
		return cmp.Compare(vals[a], vals[b])
	})
	return p
}

// Apply gathers flat through enc: out[i] = flat[p[i]].
func Apply[T any](flat []T, enc Encoding) ([]T, error) {
	p, err := Normalize(enc, len(flat))
	if err != nil {
		return nil, err
	}
	out := make([]T, len(flat))
	for i, src := range p {
		out[i] = flat[src]
	}
	return out, nil
}

// Invert returns q with Apply(Apply(x, p), q) == x.
func Invert(enc Encoding) (Linear, error) {
	if enc == nil {
		return nil, fmt.Errorf("%w: missing permutation", ErrMismatch)
	}
	p, err := Normalize(enc, enc.Len())
	if err != nil {
		return nil, err
	}
	inv := make(Linear, len(p))
	for i, src := range p {
		inv[src] = i
	}
	return inv, nil
}

// Compose returns the single permutation equivalent to applying first and
// then second.
func Compose(first, second Encoding) (Linear, error) {
	if first == nil || second == nil {
		return nil, fmt.Errorf("%w: missing permutation", ErrMismatch)
	}
	n := first.Len()
	f, err := Normalize(first, n)
	if err != nil {
		return nil, err
	}
	s, err := Normalize(second, n)
	if err != nil {
		return nil, err
	}
	out := make(Linear, n)
	for i := range out {
		out[i] = f[s[i]]
	}
	return out, nil
}
