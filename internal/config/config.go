// Package config defines the immutable parameter set handed to every cipher
// component. Loading from files/env lives in the command layer.
package config

import (
	"errors"
	"fmt"

	"img-chaos/internal/grid"
)

type ScrambleMode string

const (
	// ScrambleHilbert is direct Hilbert scanning followed by the chaos permutation.
	ScrambleHilbert ScrambleMode = "hilbert"
	// ScrambleHilbertFractal inserts the tiled fractal permutation between the
	// Hilbert scan and the chaos permutation.
	ScrambleHilbertFractal ScrambleMode = "hilbert-fractal"
)

type KeyingMode string

const (
	KeyingPassphrase KeyingMode = "passphrase"
	// KeyingImage mixes a digest of the plaintext into the key; the digest has
	// to travel with the bundle.
	KeyingImage KeyingMode = "image"
)

type KeystreamMode string

const (
	// KeystreamShared regenerates the diffusion keystream from the same
	// initial conditions as the scrambling sequence.
	KeystreamShared KeystreamMode = "shared"
	// KeystreamReseeded derives separate initial conditions for diffusion.
	KeystreamReseeded KeystreamMode = "reseeded"
)

type CombineMode string

const (
	// CombineCompat keeps the identical-branch logistic-sine step.
	CombineCompat CombineMode = "compat"
	// CombineCorrected uses distinct logistic and sine branches.
	CombineCorrected CombineMode = "corrected"
)

// Chaos holds the CICSML system constants.
type Chaos struct {
	A         float64     `mapstructure:"a" json:"a"`
	B         float64     `mapstructure:"b" json:"b"`
	Transient int         `mapstructure:"transient" json:"transient"`
	Epsilon   float64     `mapstructure:"epsilon" json:"epsilon"`
	Combine   CombineMode `mapstructure:"combine" json:"combine"`
}

// Cipher is the full pipeline configuration.
type Cipher struct {
	GridSize     int           `mapstructure:"gridSize" json:"grid_size"`
	FractalOrder int           `mapstructure:"fractalOrder" json:"fractal_order"`
	Scramble     ScrambleMode  `mapstructure:"scramble" json:"scramble"`
	Keying       KeyingMode    `mapstructure:"keying" json:"keying"`
	Keystream    KeystreamMode `mapstructure:"keystream" json:"keystream"`
	Chaos        Chaos         `mapstructure:"chaos" json:"chaos"`
}

const (
	DefaultGridSize     = 256
	DefaultFractalOrder = 5
	DefaultA            = 3.99
	DefaultB            = 3.99
	DefaultTransient    = 100
	DefaultEpsilon      = 1e-6
	// MaxFractalOrder keeps fractal values inside int range with room to spare.
	MaxFractalOrder = 14
)

// DefaultChaos returns the CICSML constants of the reference system.
func DefaultChaos() Chaos {
	return Chaos{
		A:         DefaultA,
		B:         DefaultB,
		Transient: DefaultTransient,
		Epsilon:   DefaultEpsilon,
		Combine:   CombineCompat,
	}
}

// Default returns the reference configuration.
func Default() Cipher {
	return Cipher{
		GridSize:     DefaultGridSize,
		FractalOrder: DefaultFractalOrder,
		Scramble:     ScrambleHilbert,
		Keying:       KeyingPassphrase,
		Keystream:    KeystreamShared,
		Chaos:        DefaultChaos(),
	}
}

var ErrInvalid = errors.New("config: invalid value")

// Validate checks the chaos constants.
func (c Chaos) Validate() error {
	if c.Transient < 0 {
		return fmt.Errorf("%w: transient %d", ErrInvalid, c.Transient)
	}
	if c.Epsilon <= 0 || c.Epsilon >= 1 {
		return fmt.Errorf("%w: epsilon %g", ErrInvalid, c.Epsilon)
	}
	switch c.Combine {
	case CombineCompat, CombineCorrected:
	default:
		return fmt.Errorf("%w: combine mode %q", ErrInvalid, c.Combine)
	}
	return nil
}

// Validate checks the whole configuration.
func (c Cipher) Validate() error {
	if err := grid.CheckSize(c.GridSize); err != nil {
		return fmt.Errorf("%w: grid size: %v", ErrInvalid, err)
	}
	if c.FractalOrder < 1 || c.FractalOrder > MaxFractalOrder {
		return fmt.Errorf("%w: fractal order %d", ErrInvalid, c.FractalOrder)
	}
	switch c.Scramble {
	case ScrambleHilbert, ScrambleHilbertFractal:
	default:
		return fmt.Errorf("%w: scramble mode %q", ErrInvalid, c.Scramble)
	}
	switch c.Keying {
	case KeyingPassphrase, KeyingImage:
	default:
		return fmt.Errorf("%w: keying mode %q", ErrInvalid, c.Keying)
	}
	switch c.Keystream {
	case KeystreamShared, KeystreamReseeded:
	default:
		return fmt.Errorf("%w: keystream mode %q", ErrInvalid, c.Keystream)
	}
	return c.Chaos.Validate()
}
