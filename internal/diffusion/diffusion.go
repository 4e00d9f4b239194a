// Package diffusion implements the chained XOR substitution stage.
//
//	c[0] = p[0] ⊕ k[0]
//	c[i] = p[i] ⊕ k[i] ⊕ c[i−1]
//
// Decryption takes the chain term from the ciphertext, so it needs a single
// forward pass and every position can be recovered independently.
package diffusion

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// ErrLength is returned when the data and keystream lengths differ.
var ErrLength = errors.New("diffusion: keystream length mismatch")

func check(data, ks []byte) error {
	if len(data) != len(ks) {
		return fmt.Errorf("%w: data %d, keystream %d", ErrLength, len(data), len(ks))
	}
	return nil
}

// Encrypt diffuses plain with ks sequentially.
func Encrypt(plain, ks []byte) ([]byte, error) {
	if err := check(plain, ks); err != nil {
		return nil, err
	}
	out := make([]byte, len(plain))
	var prev byte
	for i := range plain {
		out[i] = plain[i] ^ ks[i] ^ prev
		prev = out[i]
	}
	return out, nil
}

// Decrypt reverses Encrypt.
func Decrypt(cipher, ks []byte) ([]byte, error) {
	if err := check(cipher, ks); err != nil {
		return nil, err
	}
	out := make([]byte, len(cipher))
	decryptRange(out, cipher, ks, 0, len(cipher))
	return out, nil
}

func decryptRange(out, cipher, ks []byte, lo, hi int) {
	for i := lo; i < hi; i++ {
		if i == 0 {
			out[0] = cipher[0] ^ ks[0]
			continue
		}
		out[i] = cipher[i] ^ ks[i] ^ cipher[i-1]
	}
}

// chunks splits [0,n) into at most workers contiguous ranges.
func chunks(n, workers int) [][2]int {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	if workers == 0 {
		return nil
	}
	size := (n + workers - 1) / workers
	out := make([][2]int, 0, workers)
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		out = append(out, [2]int{lo, hi})
	}
	return out
}

// EncryptParallel computes the same result as Encrypt as a blocked prefix
// XOR scan: each block is scanned locally, the block carries are resolved in
// order, then each block is fixed up with its carry. workers <= 0 uses
// GOMAXPROCS.
func EncryptParallel(plain, ks []byte, workers int) ([]byte, error) {
	if err := check(plain, ks); err != nil {
		return nil, err
	}
	out := make([]byte, len(plain))
	parts := chunks(len(plain), workers)
	if len(parts) <= 1 {
		return Encrypt(plain, ks)
	}

	var wg sync.WaitGroup
	for _, r := range parts {
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			var acc byte
			for i := lo; i < hi; i++ {
				acc ^= plain[i] ^ ks[i]
				out[i] = acc
			}
		}(r[0], r[1])
	}
	wg.Wait()

	carries := make([]byte, len(parts))
	for j := 1; j < len(parts); j++ {
		carries[j] = carries[j-1] ^ out[parts[j-1][1]-1]
	}

	for j := 1; j < len(parts); j++ {
		wg.Add(1)
		go func(lo, hi int, carry byte) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				out[i] ^= carry
			}
		}(parts[j][0], parts[j][1], carries[j])
	}
	wg.Wait()
	return out, nil
}

// DecryptParallel splits decryption across workers.
func DecryptParallel(cipher, ks []byte, workers int) ([]byte, error) {
	if err := check(cipher, ks); err != nil {
		return nil, err
	}
	out := make([]byte, len(cipher))
	var wg sync.WaitGroup
	for _, r := range chunks(len(cipher), workers) {
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			decryptRange(out, cipher, ks, lo, hi)
		}(r[0], r[1])
	}
	wg.Wait()
	return out, nil
}
