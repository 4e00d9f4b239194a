package imgcipher

import (
	"crypto/sha256"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"img-chaos/internal/config"
	"img-chaos/internal/grid"
	"img-chaos/internal/perm"
)

// BundleVersion is the current KeyBundle layout.
const BundleVersion = 2

// KeyBundle is the permutation state and the chaos constants needed to undo
// the encryption of one image. It is produced by EncryptImage and must travel
// with the cipher image; nothing in this package persists it. Decryption uses
// the bundle's modes and constants, not the local configuration.
type KeyBundle struct {
	Version   int                  `json:"version"`
	Size      int                  `json:"size"`
	Scramble  config.ScrambleMode  `json:"scramble"`
	Keying    config.KeyingMode    `json:"keying"`
	Keystream config.KeystreamMode `json:"keystream"`
	Combine   config.CombineMode   `json:"combine"`
	A         float64              `json:"a"`
	B         float64              `json:"b"`
	Transient int                  `json:"transient"`
	Epsilon   float64              `json:"epsilon"`
	Hilbert   perm.Coordinates     `json:"hilbert_perm"`
	Fractal   perm.Linear          `json:"fractal_perm,omitempty"`
	Chaos     perm.Linear          `json:"chaos_perm"`
	// ImageDigest is only set in image keying mode.
	ImageDigest []byte `json:"image_digest,omitempty"`
}

func (b *KeyBundle) setChaos(c config.Chaos) {
	b.Combine = c.Combine
	b.A, b.B = c.A, c.B
	b.Transient = c.Transient
	b.Epsilon = c.Epsilon
}

// chaosConfig returns the chaos constants the image was encrypted with.
func (b *KeyBundle) chaosConfig() config.Chaos {
	return config.Chaos{A: b.A, B: b.B, Transient: b.Transient, Epsilon: b.Epsilon, Combine: b.Combine}
}

// Validate checks the bundle against an n×n cipher image.
func (b *KeyBundle) Validate(n int) error {
	if b == nil {
		return fmt.Errorf("%w: missing key bundle", ErrPermutationMismatch)
	}
	if b.Version != BundleVersion {
		return fmt.Errorf("%w: unsupported bundle version %d", ErrPermutationMismatch, b.Version)
	}
	if b.Size != n {
		return fmt.Errorf("%w: bundle for side %d, image side %d", ErrPermutationMismatch, b.Size, n)
	}
	switch b.Scramble {
	case config.ScrambleHilbert:
		if len(b.Fractal) != 0 {
			return fmt.Errorf("%w: unexpected fractal permutation", ErrPermutationMismatch)
		}
	case config.ScrambleHilbertFractal:
		if err := perm.Validate(b.Fractal, n*n); err != nil {
			return fmt.Errorf("%w: fractal: %w", ErrPermutationMismatch, err)
		}
	default:
		return fmt.Errorf("%w: scramble mode %q", ErrPermutationMismatch, b.Scramble)
	}
	switch b.Keying {
	case config.KeyingPassphrase:
	case config.KeyingImage:
		if len(b.ImageDigest) != sha256.Size {
			return fmt.Errorf("%w: image digest has %d bytes, want %d", ErrPermutationMismatch, len(b.ImageDigest), sha256.Size)
		}
	default:
		return fmt.Errorf("%w: keying mode %q", ErrPermutationMismatch, b.Keying)
	}
	switch b.Keystream {
	case config.KeystreamShared, config.KeystreamReseeded:
	default:
		return fmt.Errorf("%w: keystream mode %q", ErrPermutationMismatch, b.Keystream)
	}
	for _, v := range []float64{b.A, b.B} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite chaos constant", ErrPermutationMismatch)
		}
	}
	if err := b.chaosConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrPermutationMismatch, err)
	}
	if _, err := perm.Normalize(b.Hilbert, n*n); err != nil {
		return fmt.Errorf("%w: hilbert: %w", ErrPermutationMismatch, err)
	}
	if err := perm.Validate(b.Chaos, n*n); err != nil {
		return fmt.Errorf("%w: chaos: %w", ErrPermutationMismatch, err)
	}
	return nil
}

// Wire field numbers of the binary bundle encoding.
const (
	fieldVersion     protowire.Number = 1
	fieldSize        protowire.Number = 2
	fieldScramble    protowire.Number = 3
	fieldKeying      protowire.Number = 4
	fieldKeystream   protowire.Number = 5
	fieldCombine     protowire.Number = 6
	fieldHilbert     protowire.Number = 7
	fieldFractal     protowire.Number = 8
	fieldChaos       protowire.Number = 9
	fieldImageDigest protowire.Number = 10
	fieldA           protowire.Number = 11
	fieldB           protowire.Number = 12
	fieldTransient   protowire.Number = 13
	fieldEpsilon     protowire.Number = 14
)

var errWire = fmt.Errorf("%w: malformed binary bundle", ErrPermutationMismatch)

// MarshalBinary encodes the bundle in protobuf wire format. Permutations are
// packed varints; coordinates are interleaved (row, col) pairs.
func (b *KeyBundle) MarshalBinary() ([]byte, error) {
	var out []byte
	out = protowire.AppendTag(out, fieldVersion, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(b.Version))
	out = protowire.AppendTag(out, fieldSize, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(b.Size))
	for _, s := range []struct {
		num protowire.Number
		val string
	}{
		{fieldScramble, string(b.Scramble)},
		{fieldKeying, string(b.Keying)},
		{fieldKeystream, string(b.Keystream)},
		{fieldCombine, string(b.Combine)},
	} {
		out = protowire.AppendTag(out, s.num, protowire.BytesType)
		out = protowire.AppendString(out, s.val)
	}

	coords := make([]int, 0, 2*len(b.Hilbert))
	for _, c := range b.Hilbert {
		coords = append(coords, c.Row, c.Col)
	}
	out = appendPacked(out, fieldHilbert, coords)
	if len(b.Fractal) > 0 {
		out = appendPacked(out, fieldFractal, b.Fractal)
	}
	out = appendPacked(out, fieldChaos, b.Chaos)
	if len(b.ImageDigest) > 0 {
		out = protowire.AppendTag(out, fieldImageDigest, protowire.BytesType)
		out = protowire.AppendBytes(out, b.ImageDigest)
	}
	out = protowire.AppendTag(out, fieldA, protowire.Fixed64Type)
	out = protowire.AppendFixed64(out, math.Float64bits(b.A))
	out = protowire.AppendTag(out, fieldB, protowire.Fixed64Type)
	out = protowire.AppendFixed64(out, math.Float64bits(b.B))
	out = protowire.AppendTag(out, fieldTransient, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(b.Transient))
	out = protowire.AppendTag(out, fieldEpsilon, protowire.Fixed64Type)
	out = protowire.AppendFixed64(out, math.Float64bits(b.Epsilon))
	return out, nil
}

func appendPacked(out []byte, num protowire.Number, vals []int) []byte {
	var packed []byte
	for _, v := range vals {
		packed = protowire.AppendVarint(packed, uint64(v))
	}
	out = protowire.AppendTag(out, num, protowire.BytesType)
	return protowire.AppendBytes(out, packed)
}

func consumePacked(b []byte) ([]int, error) {
	var vals []int
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", errWire, protowire.ParseError(n))
		}
		vals = append(vals, int(v))
		b = b[n:]
	}
	return vals, nil
}

// UnmarshalBinary decodes a bundle written by MarshalBinary. Unknown fields
// are skipped. The result is not validated; call Validate before use.
func (b *KeyBundle) UnmarshalBinary(data []byte) error {
	*b = KeyBundle{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("%w: %v", errWire, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case typ == protowire.VarintType && (num == fieldVersion || num == fieldSize || num == fieldTransient):
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return fmt.Errorf("%w: %v", errWire, protowire.ParseError(m))
			}
			switch num {
			case fieldVersion:
				b.Version = int(v)
			case fieldSize:
				b.Size = int(v)
			default:
				b.Transient = int(v)
			}
			data = data[m:]
		case typ == protowire.Fixed64Type && (num == fieldA || num == fieldB || num == fieldEpsilon):
			v, m := protowire.ConsumeFixed64(data)
			if m < 0 {
				return fmt.Errorf("%w: %v", errWire, protowire.ParseError(m))
			}
			f := math.Float64frombits(v)
			switch num {
			case fieldA:
				b.A = f
			case fieldB:
				b.B = f
			default:
				b.Epsilon = f
			}
			data = data[m:]
		case typ == protowire.BytesType && num >= fieldScramble && num <= fieldImageDigest:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return fmt.Errorf("%w: %v", errWire, protowire.ParseError(m))
			}
			if err := b.setBytesField(num, v); err != nil {
				return err
			}
			data = data[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return fmt.Errorf("%w: %v", errWire, protowire.ParseError(m))
			}
			data = data[m:]
		}
	}
	return nil
}

func (b *KeyBundle) setBytesField(num protowire.Number, v []byte) error {
	switch num {
	case fieldScramble:
		b.Scramble = config.ScrambleMode(v)
	case fieldKeying:
		b.Keying = config.KeyingMode(v)
	case fieldKeystream:
		b.Keystream = config.KeystreamMode(v)
	case fieldCombine:
		b.Combine = config.CombineMode(v)
	case fieldImageDigest:
		b.ImageDigest = append([]byte(nil), v...)
	case fieldHilbert:
		vals, err := consumePacked(v)
		if err != nil {
			return err
		}
		if len(vals)%2 != 0 {
			return fmt.Errorf("%w: odd coordinate count %d", errWire, len(vals))
		}
		b.Hilbert = make(perm.Coordinates, len(vals)/2)
		for i := range b.Hilbert {
			b.Hilbert[i] = grid.Coord{Row: vals[2*i], Col: vals[2*i+1]}
		}
	case fieldFractal, fieldChaos:
		vals, err := consumePacked(v)
		if err != nil {
			return err
		}
		if num == fieldFractal {
			b.Fractal = vals
		} else {
			b.Chaos = vals
		}
	}
	return nil
}
