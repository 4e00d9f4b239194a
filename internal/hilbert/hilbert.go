// Package hilbert maps between Hilbert-curve scan order and grid coordinates
// on a power-of-two square.
package hilbert

import (
	"fmt"

	"img-chaos/internal/grid"
	"img-chaos/internal/perm"
)

// Table lists, for each scan position, the grid cell visited there.
type Table = perm.Coordinates

// rot rotates/flips a quadrant so the curve stays continuous.
func rot(s, x, y, rx, ry int) (int, int) {
	if ry == 0 {
		if rx == 1 {
			x = s - 1 - x
			y = s - 1 - y
		}
		return y, x
	}
	return x, y
}

// IndexToCoord converts a curve index d in [0,n²) into (row, col).
func IndexToCoord(n, d int) (int, int) {
	t := d
	x, y := 0, 0
	for s := 1; s < n; s *= 2 {
		rx := 1 & (t / 2)
		ry := 1 & (t ^ rx)
		x, y = rot(s, x, y, rx, ry)
		x += s * rx
		y += s * ry
		t /= 4
	}
	return x, y
}

// CoordToIndex is the inverse of IndexToCoord.
func CoordToIndex(n, x, y int) int {
	d := 0
	for s := n / 2; s > 0; s /= 2 {
		rx, ry := 0, 0
		if x&s > 0 {
			rx = 1
		}
		if y&s > 0 {
			ry = 1
		}
		d += s * s * ((3 * rx) ^ ry)
		x, y = rot(n, x, y, rx, ry)
	}
	return d
}

// BuildTable returns the coordinates of the curve in scan order.
func BuildTable(n int) (Table, error) {
	if err := grid.CheckSize(n); err != nil {
		return nil, err
	}
	t := make(Table, n*n)
	for i := range t {
		r, c := IndexToCoord(n, i)
		t[i] = grid.Coord{Row: r, Col: c}
	}
	return t, nil
}

// Scramble reads img along the Hilbert curve.
func Scramble(img grid.Image) ([]uint8, Table, error) {
	if err := img.Validate(); err != nil {
		return nil, nil, err
	}
	t, err := BuildTable(img.Size)
	if err != nil {
		return nil, nil, err
	}
	flat, err := ScrambleWith(img, t)
	if err != nil {
		return nil, nil, err
	}
	return flat, t, nil
}

// ScrambleWith gathers img through a precomputed table: out[i] = img[t[i]].
func ScrambleWith(img grid.Image, t Table) ([]uint8, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return perm.Apply(img.Pix, t)
}

// Descramble scatters flat back onto an n×n grid: img[t[i]] = flat[i].
func Descramble(flat []uint8, t Table, n int) (grid.Image, error) {
	img, err := grid.New(n)
	if err != nil {
		return grid.Image{}, err
	}
	if len(flat) != img.Len() {
		return grid.Image{}, fmt.Errorf("%w: %d values for a %dx%d grid", perm.ErrMismatch, len(flat), n, n)
	}
	lin, err := perm.Normalize(t, len(flat))
	if err != nil {
		return grid.Image{}, err
	}
	for i, dst := range lin {
		img.Pix[dst] = flat[i]
	}
	return img, nil
}
