package grid

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPowerOfTwo(t *testing.T) {
	for _, n := range []int{1, 2, 4, 8, 256, 1024} {
		assert.True(t, IsPowerOfTwo(n), "n=%d", n)
	}
	for _, n := range []int{0, -4, 3, 6, 255, 1000} {
		assert.False(t, IsPowerOfTwo(n), "n=%d", n)
	}
}

func TestNew_RejectsNonPowerOfTwo(t *testing.T) {
	_, err := New(100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidDimension))
}

func TestFromRows(t *testing.T) {
	img, err := FromRows([][]uint8{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, 2, img.Size)
	assert.Equal(t, []uint8{1, 2, 3, 4}, img.Pix)
	assert.Equal(t, uint8(3), img.At(1, 0))
	assert.Equal(t, [][]uint8{{1, 2}, {3, 4}}, img.Rows())

	_, err = FromRows([][]uint8{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrInvalidDimension)
}

func TestValidate_ShortBacking(t *testing.T) {
	img := Image{Size: 4, Pix: make([]uint8, 15)}
	assert.ErrorIs(t, img.Validate(), ErrInvalidDimension)
}

func TestCloneEqual(t *testing.T) {
	img, err := Checkerboard(4, 0, 9)
	require.NoError(t, err)
	cp := img.Clone()
	assert.True(t, img.Equal(cp))
	cp.Set(0, 0, 1)
	assert.False(t, img.Equal(cp))
	assert.Equal(t, uint8(0), img.At(0, 0))
	assert.Equal(t, uint8(9), img.At(0, 1))
}

func TestCoord_JSONPair(t *testing.T) {
	b, err := json.Marshal([]Coord{{Row: 1, Col: 2}, {Row: 3, Col: 0}})
	require.NoError(t, err)
	assert.JSONEq(t, `[[1,2],[3,0]]`, string(b))

	var back []Coord
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, []Coord{{Row: 1, Col: 2}, {Row: 3, Col: 0}}, back)

	var c Coord
	assert.Error(t, json.Unmarshal([]byte(`[1,2,3]`), &c))
}
