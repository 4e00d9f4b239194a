package imageio

import (
	"image"
	"image/color"
	"slices"

	"github.com/ericpauley/go-quantize/quantize"
)

// Quantize builds a palette of at most n colours for img. Images with no more
// than n distinct colours get exactly those colours, sorted; otherwise the
// palette comes from a median cut with mean aggregation.
func Quantize(img image.Image, n int) color.Palette {
	if pal, ok := exactPalette(img, n); ok {
		return pal
	}
	q := quantize.MedianCutQuantizer{Aggregation: quantize.Mean}
	return q.Quantize(make(color.Palette, 0, n), img)
}

// exactPalette collects the opaque colours of img, giving up once there are
// more than n.
func exactPalette(img image.Image, n int) (color.Palette, bool) {
	seen := map[color.RGBA]struct{}{}
	bd := img.Bounds()
	for y := bd.Min.Y; y < bd.Max.Y; y++ {
		for x := bd.Min.X; x < bd.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			seen[color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 0xff}] = struct{}{}
			if len(seen) > n {
				return nil, false
			}
		}
	}
	colors := make([]color.RGBA, 0, len(seen))
	for c := range seen {
		colors = append(colors, c)
	}
	slices.SortFunc(colors, func(a, b color.RGBA) int {
		if a.R != b.R {
			return int(a.R) - int(b.R)
		}
		if a.G != b.G {
			return int(a.G) - int(b.G)
		}
		return int(a.B) - int(b.B)
	})
	pal := make(color.Palette, len(colors))
	for i, c := range colors {
		pal[i] = c
	}
	return pal, true
}
