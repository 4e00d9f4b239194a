package hilbert

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"img-chaos/internal/grid"
	"img-chaos/internal/perm"
)

func TestBuildTable_VisitsEveryCellOnce(t *testing.T) {
	for _, n := range []int{1, 2, 4, 8, 32, 256} {
		tab, err := BuildTable(n)
		require.NoError(t, err)
		require.Len(t, tab, n*n)
		seen := make(map[grid.Coord]bool, n*n)
		for _, c := range tab {
			require.True(t, c.Row >= 0 && c.Row < n && c.Col >= 0 && c.Col < n)
			require.False(t, seen[c], "n=%d: %v visited twice", n, c)
			seen[c] = true
		}
		assert.Len(t, seen, n*n)
	}
}

func TestBuildTable_OrderTwoAndFour(t *testing.T) {
	tab, err := BuildTable(2)
	require.NoError(t, err)
	assert.Equal(t, Table{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 1, Col: 1}, {Row: 1, Col: 0}}, tab)

	tab, err = BuildTable(4)
	require.NoError(t, err)
	// Consecutive cells on the curve are grid neighbours.
	for i := 1; i < len(tab); i++ {
		dr := tab[i].Row - tab[i-1].Row
		dc := tab[i].Col - tab[i-1].Col
		assert.Equal(t, 1, dr*dr+dc*dc, "step %d", i)
	}
}

func TestBuildTable_RejectsNonPowerOfTwo(t *testing.T) {
	_, err := BuildTable(12)
	assert.ErrorIs(t, err, grid.ErrInvalidDimension)
}

func TestCoordToIndex_InvertsIndexToCoord(t *testing.T) {
	n := 64
	for d := 0; d < n*n; d++ {
		x, y := IndexToCoord(n, d)
		require.Equal(t, d, CoordToIndex(n, x, y))
	}
}

func TestScrambleDescramble_RoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(11))
	img, err := grid.New(32)
	require.NoError(t, err)
	for i := range img.Pix {
		img.Pix[i] = uint8(rnd.Intn(256))
	}

	flat, tab, err := Scramble(img)
	require.NoError(t, err)
	for i, c := range tab {
		require.Equal(t, img.At(c.Row, c.Col), flat[i])
	}

	back, err := Descramble(flat, tab, img.Size)
	require.NoError(t, err)
	assert.True(t, img.Equal(back))
}

func TestDescramble_Rejects(t *testing.T) {
	tab, err := BuildTable(4)
	require.NoError(t, err)

	_, err = Descramble(make([]uint8, 15), tab, 4)
	assert.ErrorIs(t, err, perm.ErrMismatch)

	bad := append(Table(nil), tab...)
	bad[3] = bad[4]
	_, err = Descramble(make([]uint8, 16), bad, 4)
	assert.ErrorIs(t, err, perm.ErrMismatch)

	_, err = Descramble(make([]uint8, 9), tab, 3)
	assert.ErrorIs(t, err, grid.ErrInvalidDimension)
}
