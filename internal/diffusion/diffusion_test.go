package diffusion

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func randBytes(rnd *rand.Rand, n int) []byte {
	b := make([]byte, n)
	rnd.Read(b)
	return b
}

func TestEncrypt_Definition(t *testing.T) {
	plain := []byte{0x10, 0x20, 0x30}
	ks := []byte{0x01, 0x02, 0x03}
	c, err := Encrypt(plain, ks)
	require.NoError(t, err)
	c0 := byte(0x10 ^ 0x01)
	c1 := byte(0x20 ^ 0x02 ^ c0)
	c2 := byte(0x30 ^ 0x03 ^ c1)
	assert.Equal(t, []byte{c0, c1, c2}, c)
}

func TestInverseLaw(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for _, n := range []int{0, 1, 2, 255, 4096, 65536} {
		plain := randBytes(rnd, n)
		ks := randBytes(rnd, n)
		c, err := Encrypt(plain, ks)
		require.NoError(t, err)
		p, err := Decrypt(c, ks)
		require.NoError(t, err)
		assert.Equal(t, plain, p, "n=%d", n)
	}
}

func TestChainDependency(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))
	plain := randBytes(rnd, 64)
	ks := randBytes(rnd, 64)
	a, err := Encrypt(plain, ks)
	require.NoError(t, err)

	plain[10] ^= 0x01
	b, err := Encrypt(plain, ks)
	require.NoError(t, err)

	assert.Equal(t, a[:10], b[:10])
	for i := 10; i < 64; i++ {
		assert.NotEqual(t, a[i], b[i], "position %d", i)
	}
}

func TestParallel_MatchesSequential(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	for _, n := range []int{1, 7, 1000, 65536} {
		plain := randBytes(rnd, n)
		ks := randBytes(rnd, n)
		want, err := Encrypt(plain, ks)
		require.NoError(t, err)
		for _, w := range []int{0, 1, 2, 3, 8, 64} {
			got, err := EncryptParallel(plain, ks, w)
			require.NoError(t, err)
			require.Equal(t, want, got, "n=%d workers=%d", n, w)

			dec, err := DecryptParallel(got, ks, w)
			require.NoError(t, err)
			require.Equal(t, plain, dec, "n=%d workers=%d", n, w)
		}
	}
}

func TestLengthMismatch(t *testing.T) {
	_, err := Encrypt([]byte{1, 2}, []byte{1})
	assert.ErrorIs(t, err, ErrLength)
	_, err = Decrypt([]byte{1, 2}, []byte{1})
	assert.ErrorIs(t, err, ErrLength)
	_, err = EncryptParallel([]byte{1, 2}, []byte{1}, 2)
	assert.ErrorIs(t, err, ErrLength)
	_, err = DecryptParallel([]byte{1}, nil, 2)
	assert.ErrorIs(t, err, ErrLength)
}
