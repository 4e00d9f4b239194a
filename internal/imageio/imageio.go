// Package imageio converts between encoded images and square index grids.
package imageio

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"

	"github.com/nfnt/resize"

	"img-chaos/internal/grid"
)

// MaxColors is the palette capacity of an index grid.
const MaxColors = 256

var ErrDecode = errors.New("imageio: cannot decode image")

// Load decodes r and returns a size×size index grid with its palette.
// A paletted image that already has the target side is taken index for index,
// which keeps cipher images lossless across a write/load cycle. Anything else
// is resized with nearest-neighbour sampling and quantized to at most
// MaxColors colours.
func Load(r io.Reader, size int) (grid.Image, color.Palette, error) {
	if err := grid.CheckSize(size); err != nil {
		return grid.Image{}, nil, err
	}
	src, _, err := image.Decode(bufio.NewReader(r))
	if err != nil {
		return grid.Image{}, nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	b := src.Bounds()
	if p, ok := src.(*image.Paletted); ok && b.Dx() == size && b.Dy() == size && len(p.Palette) <= MaxColors {
		return fromPaletted(p, size), padPalette(p.Palette), nil
	}
	if b.Dx() != size || b.Dy() != size {
		src = resize.Resize(uint(size), uint(size), src, resize.NearestNeighbor)
	}
	pal := Quantize(src, MaxColors)
	dst := image.NewPaletted(image.Rect(0, 0, size, size), pal)
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return fromPaletted(dst, size), padPalette(pal), nil
}

func fromPaletted(p *image.Paletted, size int) grid.Image {
	img := grid.Image{Size: size, Pix: make([]uint8, size*size)}
	b := p.Bounds()
	for y := 0; y < size; y++ {
		off := p.PixOffset(b.Min.X, b.Min.Y+y)
		copy(img.Pix[y*size:(y+1)*size], p.Pix[off:off+size])
	}
	return img
}

// padPalette extends pal to MaxColors entries so every index of a cipher
// image resolves to a colour.
func padPalette(pal color.Palette) color.Palette {
	out := make(color.Palette, MaxColors)
	copy(out, pal)
	for i := len(pal); i < MaxColors; i++ {
		v := uint8(i)
		out[i] = color.RGBA{R: v, G: v, B: v, A: 0xff}
	}
	return out
}

// Paletted wraps img and pal as an image.Paletted without copying pixels.
func Paletted(img grid.Image, pal color.Palette) (*image.Paletted, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if len(pal) == 0 {
		pal = Grayscale()
	}
	return &image.Paletted{
		Pix:     img.Pix,
		Stride:  img.Size,
		Rect:    image.Rect(0, 0, img.Size, img.Size),
		Palette: padPalette(pal),
	}, nil
}

// Write encodes img as a paletted PNG. A nil palette writes grayscale.
func Write(w io.Writer, img grid.Image, pal color.Palette) error {
	p, err := Paletted(img, pal)
	if err != nil {
		return err
	}
	return png.Encode(w, p)
}

// ExpandRGB resolves every index through pal.
func ExpandRGB(img grid.Image, pal color.Palette) (*image.RGBA, error) {
	p, err := Paletted(img, pal)
	if err != nil {
		return nil, err
	}
	out := image.NewRGBA(p.Rect)
	draw.Draw(out, out.Bounds(), p, image.Point{}, draw.Src)
	return out, nil
}

// Grayscale is the identity palette: index i is gray level i.
func Grayscale() color.Palette {
	pal := make(color.Palette, MaxColors)
	for i := range pal {
		pal[i] = color.Gray{Y: uint8(i)}
	}
	return pal
}
