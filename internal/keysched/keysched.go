// Package keysched turns a passphrase into CICSML initial conditions.
package keysched

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/hkdf"
)

// ErrKeyDerivation is returned for empty or malformed passphrases.
var ErrKeyDerivation = errors.New("keysched: key derivation failed")

const (
	// MinCondition is the default floor that keeps x0/p0 away from the fixed
	// point at 0.
	MinCondition = 1e-6
	modulus      = 100_000_000
)

// Scheduler derives conditions with a configurable floor. The zero value
// uses MinCondition.
type Scheduler struct {
	Epsilon float64
}

// New returns a Scheduler clamping to epsilon.
func New(epsilon float64) Scheduler {
	return Scheduler{Epsilon: epsilon}
}

var std Scheduler

// Conditions are the chaotic initial values derived from key material.
type Conditions struct {
	X0 float64 `json:"x0"`
	P0 float64 `json:"p0"`
}

func checkPassphrase(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("%w: empty passphrase", ErrKeyDerivation)
	}
	if !utf8.ValidString(passphrase) {
		return fmt.Errorf("%w: passphrase is not valid UTF-8", ErrKeyDerivation)
	}
	if strings.IndexByte(passphrase, 0) >= 0 {
		return fmt.Errorf("%w: passphrase contains NUL", ErrKeyDerivation)
	}
	return nil
}

// DeriveFromPassphrase hashes the passphrase with SHA-256 and maps the first
// two 16-hex-digit groups of the digest to (x0, p0).
func DeriveFromPassphrase(passphrase string) (Conditions, error) {
	return std.FromPassphrase(passphrase)
}

// FromPassphrase is DeriveFromPassphrase with the scheduler's floor.
func (s Scheduler) FromPassphrase(passphrase string) (Conditions, error) {
	if err := checkPassphrase(passphrase); err != nil {
		return Conditions{}, err
	}
	sum := sha256.Sum256([]byte(passphrase))
	return s.fromHexDigest(hex.EncodeToString(sum[:]))
}

// DeriveWithImage is the image-content keying mode: the passphrase hash and
// the plaintext digest are hashed together. The digest must reach the
// decryptor out of band because it cannot be recomputed from the cipher.
func DeriveWithImage(passphrase string, imageDigest []byte) (Conditions, error) {
	return std.WithImage(passphrase, imageDigest)
}

// WithImage is DeriveWithImage with the scheduler's floor.
func (s Scheduler) WithImage(passphrase string, imageDigest []byte) (Conditions, error) {
	if err := checkPassphrase(passphrase); err != nil {
		return Conditions{}, err
	}
	if len(imageDigest) != sha256.Size {
		return Conditions{}, fmt.Errorf("%w: image digest has %d bytes", ErrKeyDerivation, len(imageDigest))
	}
	h1 := sha256.Sum256([]byte(passphrase))
	combined := hex.EncodeToString(h1[:]) + hex.EncodeToString(imageDigest)
	final := sha256.Sum256([]byte(combined))
	return s.fromHexDigest(hex.EncodeToString(final[:]))
}

// ImageDigest is the SHA-256 of the raw index bytes.
func ImageDigest(pix []uint8) []byte {
	sum := sha256.Sum256(pix)
	return sum[:]
}

// DeriveReseeded derives an independent set of conditions for the given label
// using HKDF-SHA256 with the passphrase as input keying material.
func DeriveReseeded(passphrase, label string) (Conditions, error) {
	return std.Reseeded(passphrase, label)
}

// Reseeded is DeriveReseeded with the scheduler's floor.
func (s Scheduler) Reseeded(passphrase, label string) (Conditions, error) {
	if err := checkPassphrase(passphrase); err != nil {
		return Conditions{}, err
	}
	r := hkdf.New(sha256.New, []byte(passphrase), nil, []byte(label))
	buf := make([]byte, sha256.Size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Conditions{}, fmt.Errorf("%w: hkdf: %v", ErrKeyDerivation, err)
	}
	return s.fromHexDigest(hex.EncodeToString(buf))
}

func (s Scheduler) fromHexDigest(digest string) (Conditions, error) {
	if len(digest) < 32 {
		return Conditions{}, fmt.Errorf("%w: digest too short", ErrKeyDerivation)
	}
	a, err := strconv.ParseUint(digest[:16], 16, 64)
	if err != nil {
		return Conditions{}, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
	}
	b, err := strconv.ParseUint(digest[16:32], 16, 64)
	if err != nil {
		return Conditions{}, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
	}
	return Conditions{
		X0: s.normalize(a),
		P0: s.normalize(b),
	}, nil
}

func (s Scheduler) normalize(v uint64) float64 {
	floor := s.Epsilon
	if floor <= 0 {
		floor = MinCondition
	}
	x := float64(v%modulus) / modulus
	if x < floor {
		x = floor
	}
	return x
}
