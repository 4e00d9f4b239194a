package perm

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(rnd *rand.Rand, n int) []uint8 {
	b := make([]uint8, n)
	for i := range b {
		b[i] = uint8(rnd.Intn(256))
	}
	return b
}

func TestFromSequence_StableTies(t *testing.T) {
	p := FromSequence([]float64{0.5, 0.1, 0.5, 0.0, 0.1})
	assert.Equal(t, Linear{3, 1, 4, 0, 2}, p)
}

func TestFromValues(t *testing.T) {
	assert.Equal(t, Linear{2, 0, 1, 3}, FromValues([]int{6, 6, 2, 8}))
}

func TestInverseLaw(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for _, n := range []int{1, 2, 3, 17, 256, 4096} {
		seq := make([]float64, n)
		for i := range seq {
			seq[i] = rnd.Float64()
		}
		p := FromSequence(seq)
		require.NoError(t, Validate(p, n))

		inv, err := Invert(p)
		require.NoError(t, err)

		flat := randomBytes(rnd, n)
		fwd, err := Apply(flat, p)
		require.NoError(t, err)
		back, err := Apply(fwd, inv)
		require.NoError(t, err)
		assert.Equal(t, flat, back, "n=%d", n)
	}
}

func TestCoordinates_NormalizeToLinear(t *testing.T) {
	c := Coordinates{{Row: 0, Col: 0}, {Row: 1, Col: 0}, {Row: 1, Col: 1}, {Row: 0, Col: 1}}
	lin, err := c.Linear(4)
	require.NoError(t, err)
	assert.Equal(t, Linear{0, 2, 3, 1}, lin)

	flat := []uint8{10, 11, 12, 13}
	a, err := Apply(flat, c)
	require.NoError(t, err)
	b, err := Apply(flat, lin)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, []uint8{10, 12, 13, 11}, a)

	inv, err := Invert(c)
	require.NoError(t, err)
	back, err := Apply(a, inv)
	require.NoError(t, err)
	assert.Equal(t, flat, back)
}

func TestCoordinates_Rejects(t *testing.T) {
	_, err := Coordinates{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 1, Col: 0}}.Linear(3)
	assert.ErrorIs(t, err, ErrMismatch)

	_, err = Coordinates{{Row: 0, Col: 0}, {Row: 0, Col: 2}, {Row: 1, Col: 0}, {Row: 1, Col: 1}}.Linear(4)
	assert.ErrorIs(t, err, ErrMismatch)

	_, err = Apply([]uint8{1, 2, 3, 4}, Coordinates{{Row: 0, Col: 0}, {Row: 0, Col: 0}, {Row: 1, Col: 0}, {Row: 1, Col: 1}})
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(Linear{2, 0, 1}, 3))
	assert.ErrorIs(t, Validate(Linear{2, 0}, 3), ErrMismatch)
	assert.ErrorIs(t, Validate(Linear{2, 0, 0}, 3), ErrMismatch)
	assert.ErrorIs(t, Validate(Linear{3, 0, 1}, 3), ErrMismatch)
	assert.ErrorIs(t, Validate(Linear{-1, 0, 1}, 3), ErrMismatch)
}

func TestApply_LengthMismatch(t *testing.T) {
	_, err := Apply([]uint8{1, 2, 3}, Linear{0, 1})
	assert.ErrorIs(t, err, ErrMismatch)
	_, err = Apply[uint8]([]uint8{1}, nil)
	assert.ErrorIs(t, err, ErrMismatch)
	_, err = Invert(nil)
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestCompose_MatchesSequentialApply(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	n := 64
	first := Linear(rnd.Perm(n))
	second := Linear(rnd.Perm(n))
	flat := randomBytes(rnd, n)

	step1, err := Apply(flat, first)
	require.NoError(t, err)
	step2, err := Apply(step1, second)
	require.NoError(t, err)

	c, err := Compose(first, second)
	require.NoError(t, err)
	once, err := Apply(flat, c)
	require.NoError(t, err)
	assert.Equal(t, step2, once)

	// Decrypt order: invert the last-applied permutation first.
	invSecond, err := Invert(second)
	require.NoError(t, err)
	invFirst, err := Invert(first)
	require.NoError(t, err)
	u1, err := Apply(step2, invSecond)
	require.NoError(t, err)
	u2, err := Apply(u1, invFirst)
	require.NoError(t, err)
	assert.Equal(t, flat, u2)
}

func TestIsqrt(t *testing.T) {
	for _, n := range []int{1, 4, 9, 16, 65536} {
		r := isqrt(n)
		assert.Equal(t, n, r*r)
	}
	assert.Equal(t, 1, isqrt(3))
	assert.Equal(t, 0, isqrt(0))
}
