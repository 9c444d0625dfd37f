package examine

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blank(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img
}

func fillRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func TestBlankCanvasHasNoSegments(t *testing.T) {
	for _, mode := range []Mode{Plain, Adaptive} {
		opts := DefaultOptions()
		opts.Mode = mode
		segs := Characters(blank(200, 80), opts)
		assert.NotNil(t, segs)
		assert.Empty(t, segs, mode.String())
	}
}

func TestSegmentsSortedAndFiltered(t *testing.T) {
	img := blank(200, 80)
	// drawn right to left to make sure ordering is not accidental
	fillRect(img, image.Rect(150, 20, 170, 60), color.Black)
	fillRect(img, image.Rect(90, 15, 110, 50), color.Black)
	fillRect(img, image.Rect(20, 25, 40, 65), color.Black)
	// too narrow: exactly MinWidth wide
	fillRect(img, image.Rect(60, 20, 70, 60), color.Black)
	// too short: exactly MinHeight tall
	fillRect(img, image.Rect(120, 5, 140, 25), color.Black)

	segs := Characters(img, DefaultOptions())
	require.Len(t, segs, 3)
	assert.Equal(t, Box{20, 25, 20, 40}, segs[0].Box)
	assert.Equal(t, Box{90, 15, 20, 35}, segs[1].Box)
	assert.Equal(t, Box{150, 20, 20, 40}, segs[2].Box)

	for _, s := range segs {
		assert.Equal(t, image.Rect(0, 0, s.Box.W, s.Box.H), s.Image.Bounds())
		assert.Equal(t, uint8(Ink), s.Image.GrayAt(s.Box.W/2, s.Box.H/2).Y)
	}
}

func TestDotInsideRingIsNotExternal(t *testing.T) {
	bin := image.NewGray(image.Rect(0, 0, 100, 100))
	ring := image.Rect(20, 20, 80, 80)
	hole := image.Rect(30, 30, 70, 70)
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			p := image.Pt(x, y)
			if p.In(ring) && !p.In(hole) {
				bin.SetGray(x, y, color.Gray{Ink})
			}
		}
	}
	// a speck in the hole, and one outside
	bin.SetGray(50, 50, color.Gray{Ink})
	bin.SetGray(5, 5, color.Gray{Ink})

	boxes := Components(bin)
	assert.ElementsMatch(t, []Box{{20, 20, 60, 60}, {5, 5, 1, 1}}, boxes)
}

func TestDiagonalPixelsConnect(t *testing.T) {
	bin := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := 2; i < 7; i++ {
		bin.SetGray(i, i, color.Gray{Ink})
	}
	assert.Equal(t, []Box{{2, 2, 5, 5}}, Components(bin))
}

func TestOtsuSeparatesTwoLevels(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range g.Pix {
		if i%3 == 0 {
			g.Pix[i] = 40
		} else {
			g.Pix[i] = 220
		}
	}
	th := Otsu(g)
	assert.GreaterOrEqual(t, th, uint8(40))
	assert.Less(t, th, uint8(220))

	bin := threshold(g, th)
	for i, v := range g.Pix {
		if v == 40 {
			assert.Equal(t, uint8(Ink), bin.Pix[i])
		} else {
			assert.Equal(t, uint8(0), bin.Pix[i])
		}
	}
}

func TestPlainBinarizeDropsLightNoise(t *testing.T) {
	img := blank(120, 60)
	fillRect(img, image.Rect(30, 10, 50, 50), color.RGBA{70, 80, 90, 255})
	// light speckle and a near-white line, like hard captcha clutter
	for x := 0; x < 120; x += 7 {
		img.Set(x, 5, color.RGBA{230, 230, 230, 255})
	}
	fillRect(img, image.Rect(0, 55, 120, 56), color.RGBA{210, 210, 210, 255})

	segs := Characters(img, DefaultOptions())
	require.Len(t, segs, 1)
	assert.InDelta(t, 30, segs[0].Box.X, 1)
	assert.InDelta(t, 20, segs[0].Box.W, 2)
}

func TestAdaptiveFindsDarkBlock(t *testing.T) {
	img := blank(120, 60)
	fillRect(img, image.Rect(30, 10, 50, 50), color.Black)
	bin := Binarize(img, Adaptive)
	assert.Equal(t, image.Rect(0, 0, 120, 60), bin.Bounds())
	// stroke edges are darker than their local mean
	assert.Equal(t, uint8(Ink), bin.GrayAt(31, 30).Y)
	assert.Equal(t, uint8(0), bin.GrayAt(100, 30).Y)
}

func TestInvertAndCrop(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 4, 4))
	g.SetGray(1, 1, color.Gray{Ink})
	inv := Invert(g)
	assert.Equal(t, uint8(0), inv.GrayAt(1, 1).Y)
	assert.Equal(t, uint8(0xff), inv.GrayAt(0, 0).Y)

	c := Crop(g, image.Rect(1, 1, 3, 3))
	assert.Equal(t, image.Rect(0, 0, 2, 2), c.Bounds())
	assert.Equal(t, uint8(Ink), c.GrayAt(0, 0).Y)
}
