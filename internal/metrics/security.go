// Package metrics measures how well a cipher image hides its plaintext:
// histogram statistics, adjacent-pixel correlation, differential measures
// (NPCR, UACI) and the bit-level randomness suite of package nist.
package metrics

import (
	"errors"
	"fmt"
	"math"

	"img-chaos/internal/grid"
	"img-chaos/internal/nist"
)

var ErrShape = errors.New("metrics: images differ in shape")

// Histogram counts each of the 256 index values.
func Histogram(img grid.Image) [256]int {
	var h [256]int
	for _, v := range img.Pix {
		h[v]++
	}
	return h
}

// Entropy is the Shannon entropy of the index histogram in bits; 8 is the
// maximum.
func Entropy(img grid.Image) float64 {
	if len(img.Pix) == 0 {
		return 0
	}
	h := Histogram(img)
	total := float64(len(img.Pix))
	ent := 0.0
	for _, c := range h {
		if c > 0 {
			p := float64(c) / total
			ent -= p * math.Log2(p)
		}
	}
	return ent
}

// ChiSquare tests the histogram against the uniform distribution. With 255
// degrees of freedom, values under 293.25 pass at the 5% level.
func ChiSquare(img grid.Image) float64 {
	if len(img.Pix) == 0 {
		return 0
	}
	h := Histogram(img)
	exp := float64(len(img.Pix)) / 256
	chi := 0.0
	for _, c := range h {
		d := float64(c) - exp
		chi += d * d / exp
	}
	return chi
}

// Correlation holds adjacent-pixel Pearson coefficients.
type Correlation struct {
	Horizontal float64 `json:"horizontal"`
	Vertical   float64 `json:"vertical"`
	Diagonal   float64 `json:"diagonal"`
}

// AdjacentCorrelation correlates every pixel with its right, lower and
// lower-right neighbour. A direction with no variance reports 0.
func AdjacentCorrelation(img grid.Image) Correlation {
	return Correlation{
		Horizontal: pairCorrelation(img, 0, 1),
		Vertical:   pairCorrelation(img, 1, 0),
		Diagonal:   pairCorrelation(img, 1, 1),
	}
}

func pairCorrelation(img grid.Image, dr, dc int) float64 {
	n := img.Size
	var sx, sy, sxx, syy, sxy, cnt float64
	for r := 0; r+dr < n; r++ {
		for c := 0; c+dc < n; c++ {
			x := float64(img.At(r, c))
			y := float64(img.At(r+dr, c+dc))
			sx += x
			sy += y
			sxx += x * x
			syy += y * y
			sxy += x * y
			cnt++
		}
	}
	if cnt == 0 {
		return 0
	}
	cov := sxy/cnt - (sx/cnt)*(sy/cnt)
	vx := sxx/cnt - (sx/cnt)*(sx/cnt)
	vy := syy/cnt - (sy/cnt)*(sy/cnt)
	if vx <= 0 || vy <= 0 {
		return 0
	}
	return cov / math.Sqrt(vx*vy)
}

// NPCR is the percentage of positions whose values differ.
func NPCR(a, b grid.Image) (float64, error) {
	if err := sameShape(a, b); err != nil {
		return 0, err
	}
	diff := 0
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			diff++
		}
	}
	return 100 * float64(diff) / float64(len(a.Pix)), nil
}

// UACI is the mean absolute difference as a percentage of 255.
func UACI(a, b grid.Image) (float64, error) {
	if err := sameShape(a, b); err != nil {
		return 0, err
	}
	sum := 0
	for i := range a.Pix {
		d := int(a.Pix[i]) - int(b.Pix[i])
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return 100 * float64(sum) / (255 * float64(len(a.Pix))), nil
}

func sameShape(a, b grid.Image) error {
	if a.Size != b.Size || len(a.Pix) != len(b.Pix) || len(a.Pix) == 0 {
		return fmt.Errorf("%w: %d/%d vs %d/%d", ErrShape, a.Size, len(a.Pix), b.Size, len(b.Pix))
	}
	return nil
}

// EncryptFunc encrypts one image under a passphrase.
type EncryptFunc func(img grid.Image, passphrase string) (grid.Image, error)

// KeySensitivity encrypts img under two passphrases and returns the NPCR of
// the two cipher images.
func KeySensitivity(encrypt EncryptFunc, img grid.Image, key1, key2 string) (float64, error) {
	c1, err := encrypt(img, key1)
	if err != nil {
		return 0, err
	}
	c2, err := encrypt(img, key2)
	if err != nil {
		return 0, err
	}
	return NPCR(c1, c2)
}

// ImageStats summarises a single image.
type ImageStats struct {
	Entropy     float64     `json:"entropy"`
	ChiSquare   float64     `json:"chi_square"`
	Correlation Correlation `json:"correlation"`
}

func statsOf(img grid.Image) ImageStats {
	return ImageStats{
		Entropy:     Entropy(img),
		ChiSquare:   ChiSquare(img),
		Correlation: AdjacentCorrelation(img),
	}
}

// Report compares a plain image with its cipher image.
type Report struct {
	Plain  ImageStats `json:"plain"`
	Cipher ImageStats `json:"cipher"`
	NPCR   float64    `json:"npcr"`
	UACI   float64    `json:"uaci"`
	// Randomness is the bit-level suite run on the cipher pixels.
	Randomness []nist.TestRow `json:"randomness"`
}

// SecurityReport builds a Report for a plain/cipher pair.
func SecurityReport(plain, cipher grid.Image) (Report, error) {
	npcr, err := NPCR(plain, cipher)
	if err != nil {
		return Report{}, err
	}
	uaci, err := UACI(plain, cipher)
	if err != nil {
		return Report{}, err
	}
	_, rows := nist.ComputeAllTests(nist.UnpackBitsMSB(cipher.Pix))
	return Report{
		Plain:      statsOf(plain),
		Cipher:     statsOf(cipher),
		NPCR:       npcr,
		UACI:       uaci,
		Randomness: rows,
	}, nil
}
