// Package imgcipher composes Hilbert scrambling, the optional fractal
// permutation, the chaos permutation and chained diffusion into a reversible
// image cipher.
//
// Encryption walks Plain → HilbertScrambled → (FractalScrambled) →
// ChaosScrambled → Diffused. Decryption walks the same states backwards,
// undoing the last-applied permutation first. Each call either completes all
// stages or returns an error; no partial result escapes.
package imgcipher

import (
	"encoding/hex"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"img-chaos/internal/chaos"
	"img-chaos/internal/config"
	"img-chaos/internal/diffusion"
	"img-chaos/internal/grid"
	"img-chaos/internal/hilbert"
	"img-chaos/internal/keysched"
	"img-chaos/internal/perm"
)

// ErrPermutationMismatch is returned when the key bundle is missing,
// malformed or sized for a different image.
var ErrPermutationMismatch = errors.New("imgcipher: key bundle mismatch")

// Stage names a pipeline state.
type Stage string

const (
	StagePlain            Stage = "plain"
	StageHilbertScrambled Stage = "hilbert-scrambled"
	StageFractalScrambled Stage = "fractal-scrambled"
	StageChaosScrambled   Stage = "chaos-scrambled"
	StageDiffused         Stage = "diffused"
)

// diffusionLabel is the HKDF info string of the re-seeded keystream.
const diffusionLabel = "diffusion"

// Cipher runs the pipeline for one configuration. It is safe for concurrent
// use; per-image buffers are allocated per call.
type Cipher struct {
	cfg     config.Cipher
	tables  *tableCache
	log     *zap.Logger
	workers int
}

type Option func(*Cipher)

// WithLogger sets the logger used for stage-level debug output.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cipher) {
		if l != nil {
			c.log = l
		}
	}
}

// WithWorkers enables the parallel prefix-scan diffusion with n workers.
// n <= 1 keeps the sequential chain.
func WithWorkers(n int) Option {
	return func(c *Cipher) { c.workers = n }
}

// WithCacheSize sets how many grid sizes keep their shared tables.
func WithCacheSize(n int) Option {
	return func(c *Cipher) {
		if n > 0 {
			c.tables.size = n
		}
	}
}

// New validates cfg and returns a Cipher.
func New(cfg config.Cipher, opts ...Option) (*Cipher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Cipher{
		cfg:     cfg,
		tables:  &tableCache{size: defaultCacheSize},
		log:     zap.NewNop(),
		workers: 1,
	}
	for _, o := range opts {
		o(c)
	}
	if err := c.tables.init(); err != nil {
		return nil, err
	}
	return c, nil
}

// Config returns the configuration the cipher was built with.
func (c *Cipher) Config() config.Cipher { return c.cfg }

func stageErr(s Stage, err error) error {
	return fmt.Errorf("imgcipher: %s: %w", s, err)
}

// EncryptImage encrypts img with passphrase and returns the cipher image and
// the key bundle needed to decrypt it.
func (c *Cipher) EncryptImage(img grid.Image, passphrase string) (grid.Image, *KeyBundle, error) {
	if err := img.Validate(); err != nil {
		return grid.Image{}, nil, stageErr(StagePlain, err)
	}
	n := img.Size
	bundle := &KeyBundle{
		Version:   BundleVersion,
		Size:      n,
		Scramble:  c.cfg.Scramble,
		Keying:    c.cfg.Keying,
		Keystream: c.cfg.Keystream,
	}
	bundle.setChaos(c.cfg.Chaos)
	if bundle.Keying == config.KeyingImage {
		bundle.ImageDigest = keysched.ImageDigest(img.Pix)
	}
	cond, err := c.conditions(bundle, passphrase)
	if err != nil {
		return grid.Image{}, nil, stageErr(StagePlain, err)
	}

	table, err := c.tables.hilbert(n)
	if err != nil {
		return grid.Image{}, nil, stageErr(StagePlain, err)
	}
	flat, err := hilbert.ScrambleWith(img, table)
	if err != nil {
		return grid.Image{}, nil, stageErr(StageHilbertScrambled, err)
	}
	bundle.Hilbert = append(perm.Coordinates(nil), table...)
	c.log.Debug("stage complete", zap.String("stage", string(StageHilbertScrambled)), zap.Int("size", n))

	if bundle.Scramble == config.ScrambleHilbertFractal {
		fp, err := c.tables.fractal(c.cfg.FractalOrder, len(flat))
		if err != nil {
			return grid.Image{}, nil, stageErr(StageFractalScrambled, err)
		}
		if flat, err = perm.Apply(flat, fp); err != nil {
			return grid.Image{}, nil, stageErr(StageFractalScrambled, err)
		}
		bundle.Fractal = append(perm.Linear(nil), fp...)
		c.log.Debug("stage complete", zap.String("stage", string(StageFractalScrambled)), zap.Int("order", c.cfg.FractalOrder))
	}

	seq, err := chaosSequence(bundle, cond, len(flat))
	if err != nil {
		return grid.Image{}, nil, stageErr(StageChaosScrambled, err)
	}
	bundle.Chaos = perm.FromSequence(seq)
	if flat, err = perm.Apply(flat, bundle.Chaos); err != nil {
		return grid.Image{}, nil, stageErr(StageChaosScrambled, err)
	}
	c.log.Debug("stage complete", zap.String("stage", string(StageChaosScrambled)), zap.Float64("x0", cond.X0), zap.Float64("p0", cond.P0))

	ks, err := c.keystream(bundle, passphrase, cond, len(flat))
	if err != nil {
		return grid.Image{}, nil, stageErr(StageDiffused, err)
	}
	var out []byte
	if c.workers > 1 {
		out, err = diffusion.EncryptParallel(flat, ks, c.workers)
	} else {
		out, err = diffusion.Encrypt(flat, ks)
	}
	if err != nil {
		return grid.Image{}, nil, stageErr(StageDiffused, err)
	}
	c.log.Debug("stage complete", zap.String("stage", string(StageDiffused)), zap.String("keystream", string(bundle.Keystream)))
	return grid.Image{Size: n, Pix: out}, bundle, nil
}

// DecryptImage reverses EncryptImage. A wrong passphrase, or a well-formed
// bundle from another image of the same size, yields a well-formed but wrong
// image without error. A missing or malformed bundle fails with
// ErrPermutationMismatch.
func (c *Cipher) DecryptImage(cipherImg grid.Image, passphrase string, bundle *KeyBundle) (grid.Image, error) {
	if err := cipherImg.Validate(); err != nil {
		return grid.Image{}, stageErr(StageDiffused, err)
	}
	n := cipherImg.Size
	if err := bundle.Validate(n); err != nil {
		return grid.Image{}, stageErr(StageDiffused, err)
	}
	cond, err := c.conditions(bundle, passphrase)
	if err != nil {
		return grid.Image{}, stageErr(StageDiffused, err)
	}

	ks, err := c.keystream(bundle, passphrase, cond, cipherImg.Len())
	if err != nil {
		return grid.Image{}, stageErr(StageDiffused, err)
	}
	var flat []byte
	if c.workers > 1 {
		flat, err = diffusion.DecryptParallel(cipherImg.Pix, ks, c.workers)
	} else {
		flat, err = diffusion.Decrypt(cipherImg.Pix, ks)
	}
	if err != nil {
		return grid.Image{}, stageErr(StageChaosScrambled, err)
	}

	if flat, err = undo(flat, bundle.Chaos); err != nil {
		return grid.Image{}, stageErr(StageChaosScrambled, err)
	}
	if bundle.Scramble == config.ScrambleHilbertFractal {
		if flat, err = undo(flat, bundle.Fractal); err != nil {
			return grid.Image{}, stageErr(StageFractalScrambled, err)
		}
	}
	plain, err := hilbert.Descramble(flat, bundle.Hilbert, n)
	if err != nil {
		return grid.Image{}, stageErr(StageHilbertScrambled, fmt.Errorf("%w: %w", ErrPermutationMismatch, err))
	}
	c.log.Debug("decrypted", zap.Int("size", n), zap.String("scramble", string(bundle.Scramble)))
	return plain, nil
}

func undo(flat []byte, p perm.Encoding) ([]byte, error) {
	inv, err := perm.Invert(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPermutationMismatch, err)
	}
	out, err := perm.Apply(flat, inv)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPermutationMismatch, err)
	}
	return out, nil
}

// chaosSequence runs the map with the constants recorded in b.
func chaosSequence(b *KeyBundle, cond keysched.Conditions, n int) ([]float64, error) {
	cfg := b.chaosConfig()
	return chaos.New(cfg).Generate(n, chaos.ParamsFor(cfg, cond.X0, cond.P0))
}

func (c *Cipher) conditions(b *KeyBundle, passphrase string) (keysched.Conditions, error) {
	ks := keysched.New(b.Epsilon)
	if b.Keying == config.KeyingImage {
		return ks.WithImage(passphrase, b.ImageDigest)
	}
	return ks.FromPassphrase(passphrase)
}

// keystream draws a fresh chaos sequence for diffusion and scales it to bytes.
func (c *Cipher) keystream(b *KeyBundle, passphrase string, cond keysched.Conditions, n int) ([]byte, error) {
	if b.Keystream == config.KeystreamReseeded {
		label := diffusionLabel
		if len(b.ImageDigest) > 0 {
			label += ":" + hex.EncodeToString(b.ImageDigest)
		}
		var err error
		if cond, err = keysched.New(b.Epsilon).Reseeded(passphrase, label); err != nil {
			return nil, err
		}
	}
	seq, err := chaosSequence(b, cond, n)
	if err != nil {
		return nil, err
	}
	return chaos.Keystream(seq), nil
}
