package fractal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"img-chaos/internal/perm"
)

func TestExpand_OrderOneIsSeed(t *testing.T) {
	m, err := Build(1)
	require.NoError(t, err)
	assert.Equal(t, Seed(), m)
}

func TestExpand_OrderTwo(t *testing.T) {
	m, err := Build(2)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Size)
	assert.Equal(t, []int{
		26, 24, 18, 16,
		22, 28, 14, 20,
		10, 8, 34, 32,
		6, 12, 30, 36,
	}, m.Values)
}

func TestExpand_SizeAndDeterminism(t *testing.T) {
	for order := 1; order <= 6; order++ {
		a, err := Build(order)
		require.NoError(t, err)
		b, err := Build(order)
		require.NoError(t, err)
		assert.Equal(t, 1<<order, a.Size)
		assert.Len(t, a.Values, a.Size*a.Size)
		assert.Equal(t, a, b)
	}
}

func TestExpand_UsesSeedCorners(t *testing.T) {
	m, err := Build(3)
	require.NoError(t, err)
	prev, err := Build(2)
	require.NoError(t, err)
	// The bottom-left quadrant is (2−1)·16 + FM₂.
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			assert.Equal(t, 16+prev.At(r, c), m.At(4+r, c))
		}
	}
}

func TestExpand_Rejects(t *testing.T) {
	_, err := Build(0)
	assert.Error(t, err)
	_, err = Expand(Matrix{Size: 3, Values: make([]int, 9)}, 2)
	assert.Error(t, err)
}

func TestDerivePermutation(t *testing.T) {
	p := DerivePermutation(Seed())
	assert.Equal(t, perm.Linear{2, 1, 0, 3}, p)

	m, err := Build(5)
	require.NoError(t, err)
	p = DerivePermutation(m)
	require.NoError(t, perm.Validate(p, len(m.Values)))
	for i := 1; i < len(p); i++ {
		assert.LessOrEqual(t, m.Values[p[i-1]], m.Values[p[i]])
	}
}

func TestTiledPermutation(t *testing.T) {
	p, err := TiledPermutation(Seed(), 8)
	require.NoError(t, err)
	// values 6,4,2,8,6,4,2,8; ties keep tile order
	assert.Equal(t, perm.Linear{2, 6, 1, 5, 0, 4, 3, 7}, p)

	m, err := Build(5)
	require.NoError(t, err)
	p, err = TiledPermutation(m, 256*256)
	require.NoError(t, err)
	assert.NoError(t, perm.Validate(p, 256*256))

	_, err = TiledPermutation(Matrix{}, 4)
	assert.Error(t, err)
}
