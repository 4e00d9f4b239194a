package main

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"io"
	"strings"

	"img-chaos/internal/grid"
	"img-chaos/internal/imageio"
)

func writePNG(w io.Writer, img grid.Image, palette []string) error {
	return imageio.Write(w, img, paletteFromHex(palette))
}

// paletteToHex stores a palette as "#rrggbb" strings.
func paletteToHex(pal color.Palette) []string {
	out := make([]string, len(pal))
	for i, c := range pal {
		r, g, b, _ := c.RGBA()
		out[i] = fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
	}
	return out
}

func paletteFromHex(hexes []string) color.Palette {
	if len(hexes) == 0 {
		return nil
	}
	pal := make(color.Palette, len(hexes))
	for i, s := range hexes {
		pal[i] = parseHexColor(s)
	}
	return pal
}

func parseHexColor(s string) color.RGBA {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.RGBA{0, 0, 0, 255}
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 3 {
		return color.RGBA{0, 0, 0, 255}
	}
	return color.RGBA{R: b[0], G: b[1], B: b[2], A: 255}
}
