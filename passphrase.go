package main

import (
	"fmt"
	"io"
)

const defaultAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789-_"

// generatePassphrase draws length characters from alphabet using r, with
// rejection sampling so every character is equally likely.
func generatePassphrase(r io.Reader, length int, alphabet string) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("passphrase length must be positive, got %d", length)
	}
	if len(alphabet) < 2 || len(alphabet) > 256 {
		return "", fmt.Errorf("alphabet must hold 2..256 characters, got %d", len(alphabet))
	}
	limit := 256 - 256%len(alphabet)
	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// newPassphrase seeds a DRBG from the named entropy source and draws one
// passphrase from it.
func newPassphrase(source string, length int) (string, error) {
	seed, err := seedMaterial(source)
	if err != nil {
		return "", err
	}
	return generatePassphrase(newHMACDRBG(seed), length, defaultAlphabet)
}
