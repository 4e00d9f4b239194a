// Package fractal builds the key-independent fractal matrix and the
// permutations derived from it.
package fractal

import (
	"fmt"

	"img-chaos/internal/perm"
)

// Matrix is a square integer matrix stored row-major.
type Matrix struct {
	Size   int
	Values []int
}

func (m Matrix) At(row, col int) int { return m.Values[row*m.Size+col] }

// Seed is the fixed 2×2 generator.
func Seed() Matrix {
	return Matrix{Size: 2, Values: []int{
		6, 4,
		2, 8,
	}}
}

// Expand grows seed to a 2^order square. At level i the four quadrants are
// (c−1)·4^(i−1) + FM, where c runs over the seed's corners
// (top-left, top-right, bottom-left, bottom-right) and FM is the previous
// level.
func Expand(seed Matrix, order int) (Matrix, error) {
	if seed.Size != 2 || len(seed.Values) != 4 {
		return Matrix{}, fmt.Errorf("fractal: seed must be 2x2, got side %d", seed.Size)
	}
	if order < 1 {
		return Matrix{}, fmt.Errorf("fractal: order must be at least 1, got %d", order)
	}
	fm := Matrix{Size: 2, Values: append([]int(nil), seed.Values...)}
	for i := 2; i <= order; i++ {
		s := fm.Size
		factor := 1 << (2 * (i - 1))
		next := Matrix{Size: 2 * s, Values: make([]int, 4*s*s)}
		for q, c := range seed.Values {
			offR, offC := (q/2)*s, (q%2)*s
			shift := (c - 1) * factor
			for r := 0; r < s; r++ {
				for col := 0; col < s; col++ {
					next.Values[(offR+r)*next.Size+offC+col] = shift + fm.At(r, col)
				}
			}
		}
		fm = next
	}
	return fm, nil
}

// Build expands the standard seed to the given order.
func Build(order int) (Matrix, error) {
	return Expand(Seed(), order)
}

// DerivePermutation sorts the flattened matrix ascending, breaking ties by
// position.
func DerivePermutation(m Matrix) perm.Linear {
	return perm.FromValues(m.Values)
}

// TiledPermutation repeats the matrix values cyclically to length n and
// returns their stable sort order. It lets a small fractal matrix drive the
// scramble of a larger image.
func TiledPermutation(m Matrix, n int) (perm.Linear, error) {
	if len(m.Values) == 0 {
		return nil, fmt.Errorf("fractal: empty matrix")
	}
	if n < 0 {
		return nil, fmt.Errorf("fractal: negative length %d", n)
	}
	vals := make([]int, n)
	for i := range vals {
		vals[i] = m.Values[i%len(m.Values)]
	}
	return perm.FromValues(vals), nil
}
