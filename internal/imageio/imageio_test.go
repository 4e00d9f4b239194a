package imageio

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"img-chaos/internal/grid"
)

func TestWriteLoad_Lossless(t *testing.T) {
	img, err := grid.New(32)
	require.NoError(t, err)
	rand.New(rand.NewSource(1)).Read(img.Pix)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, img, nil))

	back, pal, err := Load(&buf, 32)
	require.NoError(t, err)
	assert.True(t, img.Equal(back))
	assert.Len(t, pal, MaxColors)
}

func TestLoad_FewColoursExact(t *testing.T) {
	colors := []color.RGBA{
		{R: 255, A: 255},
		{G: 255, A: 255},
		{B: 255, A: 255},
		{R: 10, G: 20, B: 30, A: 255},
	}
	src := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			src.SetRGBA(x, y, colors[(x+y)%len(colors)])
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	img, pal, err := Load(&buf, 16)
	require.NoError(t, err)
	rgb, err := ExpandRGB(img, pal)
	require.NoError(t, err)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			require.Equal(t, src.RGBAAt(x, y), rgb.RGBAAt(x, y), "pixel %d,%d", x, y)
		}
	}
}

func TestLoad_ResizesAndQuantizes(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 25))
	rnd := rand.New(rand.NewSource(2))
	rnd.Read(src.Pix)
	for i := 3; i < len(src.Pix); i += 4 {
		src.Pix[i] = 255
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, nil))

	img, pal, err := Load(&buf, 64)
	require.NoError(t, err)
	assert.Equal(t, 64, img.Size)
	assert.Len(t, img.Pix, 64*64)
	assert.Len(t, pal, MaxColors)
}

func TestLoad_Errors(t *testing.T) {
	_, _, err := Load(bytes.NewReader([]byte("not an image")), 16)
	assert.ErrorIs(t, err, ErrDecode)

	_, _, err = Load(bytes.NewReader(nil), 12)
	assert.ErrorIs(t, err, grid.ErrInvalidDimension)
}

func TestQuantize_Limit(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 64, 64))
	rand.New(rand.NewSource(3)).Read(src.Pix)
	for i := 3; i < len(src.Pix); i += 4 {
		src.Pix[i] = 255
	}
	pal := Quantize(src, 16)
	assert.LessOrEqual(t, len(pal), 16)
	assert.Greater(t, len(pal), 1)
}

func TestQuantize_ExactColours(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i, c := range []color.RGBA{{10, 20, 30, 255}, {200, 0, 0, 255}, {10, 20, 30, 255}} {
		src.SetRGBA(i, 0, c)
	}
	pal := Quantize(src, 16)
	assert.Equal(t, color.Palette{
		color.RGBA{0, 0, 0, 255},
		color.RGBA{10, 20, 30, 255},
		color.RGBA{200, 0, 0, 255},
	}, pal)
}

func TestQuantize_MedianCutKeepsExtremes(t *testing.T) {
	// two dominant colours plus noise: the median cut must keep both regions
	src := image.NewRGBA(image.Rect(0, 0, 64, 64))
	rnd := rand.New(rand.NewSource(4))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			base := uint8(0)
			if x >= 32 {
				base = 220
			}
			src.SetRGBA(x, y, color.RGBA{base + uint8(rnd.Intn(30)), base + uint8(rnd.Intn(30)), base + uint8(rnd.Intn(30)), 255})
		}
	}
	pal := Quantize(src, 4)
	require.NotEmpty(t, pal)
	require.LessOrEqual(t, len(pal), 4)
	var dark, light bool
	for _, c := range pal {
		r, _, _, _ := c.RGBA()
		dark = dark || r>>8 < 40
		light = light || r>>8 > 200
	}
	assert.True(t, dark)
	assert.True(t, light)
}

func TestGrayscale(t *testing.T) {
	pal := Grayscale()
	require.Len(t, pal, MaxColors)
	assert.Equal(t, color.Gray{Y: 200}, pal[200])
}
