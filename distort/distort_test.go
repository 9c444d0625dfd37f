package distort

import (
	"image"
	"image/color"
	"image/draw"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/submersibletoaster/captcha/glyph"
)

func whiteCanvas(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img
}

func testRenderer(t *testing.T) *glyph.Renderer {
	t.Helper()
	opts := glyph.DefaultOptions()
	opts.NoSystem = true
	r := glyph.NewRenderer(opts)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestScatterKeepsCharactersInside(t *testing.T) {
	r := testRenderer(t)
	for seed := int64(0); seed < 10; seed++ {
		rng := rand.New(rand.NewSource(seed))
		img := whiteCanvas(200, 80)
		places := Scatter(img, r, "AB3XYZ"[:4+seed%3], DefaultScatter(), rng)
		require.Len(t, places, 4+int(seed%3))

		for i, p := range places {
			assert.GreaterOrEqual(t, p.Rect.Min.X, 0)
			assert.GreaterOrEqual(t, p.Rect.Min.Y, 0)
			assert.LessOrEqual(t, p.Rect.Max.X, 200, "placement %d", i)
			assert.LessOrEqual(t, p.Rect.Max.Y, 80, "placement %d", i)
			assert.False(t, p.Rect.Empty())
			assert.InDelta(t, 0, p.Angle, 15)
			for _, c := range []uint8{p.Color.R, p.Color.G, p.Color.B} {
				assert.GreaterOrEqual(t, c, uint8(50))
				assert.LessOrEqual(t, c, uint8(100))
			}
		}
	}
}

func TestScatterLeftToRight(t *testing.T) {
	r := testRenderer(t)
	rng := rand.New(rand.NewSource(7))
	img := whiteCanvas(200, 80)
	places := Scatter(img, r, "ABCD", DefaultScatter(), rng)
	for i := 1; i < len(places); i++ {
		assert.Less(t, places[i-1].Rect.Min.X, places[i].Rect.Min.X)
	}
}

func TestScatterKeepsNeighboursApart(t *testing.T) {
	r := testRenderer(t)
	opts := DefaultScatter()
	ys := map[int]bool{}
	for seed := int64(0); seed < 20; seed++ {
		for _, text := range []string{"ABCDE", "MWMWM", "W1W1W"} {
			rng := rand.New(rand.NewSource(seed))
			places := Scatter(whiteCanvas(200, 80), r, text, opts, rng)
			require.Len(t, places, 5)
			for i, p := range places {
				ys[p.Rect.Min.Y] = true
				if i == 0 {
					continue
				}
				prev := places[i-1]
				assert.GreaterOrEqual(t, p.Rect.Min.X, prev.Rect.Max.X+opts.Gap,
					"%s seed %d: %c at %v, %c at %v", text, seed, prev.Rune, prev.Rect, p.Rune, p.Rect)
			}
		}
	}
	assert.Greater(t, len(ys), 3, "vertical jitter should move characters")
}

func TestScatterDrawsInsidePlacements(t *testing.T) {
	r := testRenderer(t)
	img := whiteCanvas(200, 80)
	places := Scatter(img, r, "K7Q", DefaultScatter(), rand.New(rand.NewSource(3)))
	inside := func(x, y int) bool {
		for _, p := range places {
			if image.Pt(x, y).In(p.Rect) {
				return true
			}
		}
		return false
	}
	for y := 0; y < 80; y++ {
		for x := 0; x < 200; x++ {
			if img.RGBAAt(x, y) != (color.RGBA{255, 255, 255, 255}) {
				assert.True(t, inside(x, y), "ink at %d,%d outside every placement", x, y)
			}
		}
	}
}

func TestScatterEmptyText(t *testing.T) {
	r := testRenderer(t)
	assert.Nil(t, Scatter(whiteCanvas(10, 10), r, "", DefaultScatter(), rand.New(rand.NewSource(1))))
}

func TestAddNoiseStaysBright(t *testing.T) {
	img := whiteCanvas(200, 80)
	AddNoise(img, DefaultNoise(), rand.New(rand.NewSource(42)))

	changed := 0
	for y := 0; y < 80; y++ {
		for x := 0; x < 200; x++ {
			c := img.RGBAAt(x, y)
			if c != (color.RGBA{255, 255, 255, 255}) {
				changed++
			}
			// antialiased edges blend towards white, never below the band
			assert.GreaterOrEqual(t, c.R, uint8(200))
		}
	}
	assert.Greater(t, changed, 40)
}

func TestMediumNoiseIsGray(t *testing.T) {
	img := whiteCanvas(100, 40)
	AddNoise(img, MediumNoise(), rand.New(rand.NewSource(1)))
	gray := 0
	for y := 0; y < 40; y++ {
		for x := 0; x < 100; x++ {
			if img.RGBAAt(x, y) == (color.RGBA{128, 128, 128, 255}) {
				gray++
			}
		}
	}
	assert.Greater(t, gray, 50)
}

func TestBandPick(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	assert.Equal(t, color.RGBA{7, 7, 7, 255}, Band{7, 7}.Pick(rng))
	for i := 0; i < 100; i++ {
		c := Band{10, 12}.Pick(rng)
		assert.True(t, c.R >= 10 && c.R <= 12)
	}
}

func TestWavePreservesShape(t *testing.T) {
	for _, size := range []image.Point{{1, 1}, {2, 3}, {17, 5}, {200, 80}, {33, 120}} {
		src := whiteCanvas(size.X, size.Y)
		for _, interp := range []Interpolation{Bilinear, Nearest} {
			opts := DefaultWave()
			opts.Interpolation = interp
			out := Wave(src, opts)
			assert.Equal(t, size, out.Bounds().Size(), "%v %v", size, interp)
			for _, v := range out.Pix {
				assert.Equal(t, uint8(255), v)
			}
		}
	}
}

func TestWaveWithoutAmplitudeIsIdentity(t *testing.T) {
	src := whiteCanvas(30, 20)
	src.SetRGBA(5, 6, color.RGBA{10, 20, 30, 255})
	out := Wave(src, WaveOptions{PeriodX: 12, PeriodY: 15})
	assert.Equal(t, src.Pix, out.Pix)
}

func TestWaveMovesPixels(t *testing.T) {
	src := whiteCanvas(60, 60)
	for y := 0; y < 60; y++ {
		src.SetRGBA(30, y, color.RGBA{0, 0, 0, 255})
	}
	out := Wave(src, WaveOptions{AmpX: 3, PeriodX: 5, Interpolation: Nearest})
	moved := false
	for y := 0; y < 60; y++ {
		if out.RGBAAt(30, y).R != 0 {
			moved = true
		}
	}
	assert.True(t, moved, "a vertical stroke should bend")
}

func TestWaveHandlesOffsetBounds(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 40, 30))
	out := Wave(src, DefaultWave())
	assert.Equal(t, image.Rect(0, 0, 30, 20), out.Bounds())
}

func TestBlurKeepsSize(t *testing.T) {
	src := whiteCanvas(50, 20)
	assert.Equal(t, src.Bounds(), Blur(src, 0.3).Bounds())
	assert.Same(t, src, Blur(src, 0))
}
