// Package grid holds the square index image shared by every stage of the
// cipher.
package grid

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidDimension is returned when an image is not a square whose side is
// a power of two.
var ErrInvalidDimension = errors.New("grid: dimension must be a square power of two")

// Coord is a (row, col) position on the grid. It encodes to JSON as a
// two-element array.
type Coord struct {
	Row int
	Col int
}

func (c Coord) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{c.Row, c.Col})
}

func (c *Coord) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("grid: coordinate must have 2 elements, got %d", len(pair))
	}
	c.Row, c.Col = pair[0], pair[1]
	return nil
}

// Image is a square matrix of 8-bit palette indices stored row-major.
type Image struct {
	Size int     `json:"size"`
	Pix  []uint8 `json:"pix"`
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// CheckSize validates a grid side length.
func CheckSize(n int) error {
	if !IsPowerOfTwo(n) {
		return fmt.Errorf("%w: side %d", ErrInvalidDimension, n)
	}
	return nil
}

// New allocates a zeroed image of side n.
func New(n int) (Image, error) {
	if err := CheckSize(n); err != nil {
		return Image{}, err
	}
	return Image{Size: n, Pix: make([]uint8, n*n)}, nil
}

// FromRows builds an image from a row slice, copying the data.
func FromRows(rows [][]uint8) (Image, error) {
	n := len(rows)
	if err := CheckSize(n); err != nil {
		return Image{}, err
	}
	img := Image{Size: n, Pix: make([]uint8, 0, n*n)}
	for i, r := range rows {
		if len(r) != n {
			return Image{}, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidDimension, i, len(r), n)
		}
		img.Pix = append(img.Pix, r...)
	}
	return img, nil
}

// Validate checks that the image is square, power-of-two and fully backed.
func (m Image) Validate() error {
	if err := CheckSize(m.Size); err != nil {
		return err
	}
	if len(m.Pix) != m.Size*m.Size {
		return fmt.Errorf("%w: %d pixels for side %d", ErrInvalidDimension, len(m.Pix), m.Size)
	}
	return nil
}

func (m Image) At(row, col int) uint8 { return m.Pix[row*m.Size+col] }

func (m Image) Set(row, col int, v uint8) { m.Pix[row*m.Size+col] = v }

// Len is the number of pixels.
func (m Image) Len() int { return len(m.Pix) }

// Clone returns a deep copy.
func (m Image) Clone() Image {
	out := Image{Size: m.Size, Pix: make([]uint8, len(m.Pix))}
	copy(out.Pix, m.Pix)
	return out
}

// Equal reports whether both images have the same side and pixels.
func (m Image) Equal(o Image) bool {
	if m.Size != o.Size || len(m.Pix) != len(o.Pix) {
		return false
	}
	for i := range m.Pix {
		if m.Pix[i] != o.Pix[i] {
			return false
		}
	}
	return true
}

// Rows returns a copy of the image as a slice of rows.
func (m Image) Rows() [][]uint8 {
	out := make([][]uint8, m.Size)
	for r := 0; r < m.Size; r++ {
		row := make([]uint8, m.Size)
		copy(row, m.Pix[r*m.Size:(r+1)*m.Size])
		out[r] = row
	}
	return out
}

// Checkerboard builds an n×n image alternating between a and b.
func Checkerboard(n int, a, b uint8) (Image, error) {
	img, err := New(n)
	if err != nil {
		return Image{}, err
	}
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if (r+c)%2 == 0 {
				img.Set(r, c, a)
			} else {
				img.Set(r, c, b)
			}
		}
	}
	return img, nil
}
