package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

const (
	entropyOS     = "os"
	entropyJitter = "jitter"
	entropyMix    = "mix"
)

// seedMaterial gathers raw seed bytes for the passphrase generator.
func seedMaterial(mode string) ([]byte, error) {
	switch mode {
	case entropyOS:
		return rawFromOS(32)
	case entropyJitter:
		return rawFromJitter(64), nil
	case entropyMix, "":
		osb, err := rawFromOS(32)
		if err != nil {
			return nil, err
		}
		h := sha256.New()
		h.Write(osb)
		h.Write(rawFromJitter(48))
		h.Write([]byte("seed-mix-v1"))
		return h.Sum(nil), nil
	default:
		return nil, fmt.Errorf("unknown entropy source %q (want os, jitter or mix)", mode)
	}
}

func rawFromOS(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("read OS entropy: %w", err)
	}
	return b, nil
}

// rawFromJitter hashes scheduler and timer jitter over many short busy loops.
func rawFromJitter(rounds int) []byte {
	h := sha256.New()
	tmp := make([]byte, 8)
	for i := 0; i < rounds; i++ {
		t0 := time.Now()
		spin := 100 + (i % 17)
		acc := 0
		for k := 0; k < spin; k++ {
			acc += k * i
		}
		time.Sleep(0)
		dt := time.Since(t0).Nanoseconds()
		binary.LittleEndian.PutUint64(tmp, uint64(dt)^uint64(acc))
		h.Write(tmp)
		binary.LittleEndian.PutUint64(tmp, uint64(time.Now().UnixNano()))
		h.Write(tmp)
	}
	return h.Sum(nil)
}
