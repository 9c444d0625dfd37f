package glyph

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embedded(t *testing.T) *Renderer {
	t.Helper()
	opts := DefaultOptions()
	opts.NoSystem = true
	r := NewRenderer(opts)
	t.Cleanup(func() { r.Close() })
	require.Equal(t, FontEmbedded, r.Kind())
	return r
}

// inkBox is the bounding box of every pixel darker than mid gray.
func inkBox(img *image.RGBA) image.Rectangle {
	var out image.Rectangle
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y).R < 128 {
				out = out.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return out
}

func TestRenderCentersText(t *testing.T) {
	r := embedded(t)
	img := r.Render("AB12", 200, 80, color.Black)
	ink := inkBox(img)
	require.False(t, ink.Empty())

	left, right := ink.Min.X, 200-ink.Max.X
	top, bottom := ink.Min.Y, 80-ink.Max.Y
	assert.InDelta(t, left, right, 3)
	assert.InDelta(t, top, bottom, 3)
}

func TestBoundsMatchesRenderedInk(t *testing.T) {
	r := embedded(t)
	b := r.Bounds("W")
	img := r.Render("W", 100, 80, color.Black)
	ink := inkBox(img)
	assert.InDelta(t, b.Dx(), ink.Dx(), 3)
	assert.InDelta(t, b.Dy(), ink.Dy(), 3)
}

func TestTrackingWidensLayout(t *testing.T) {
	opts := DefaultOptions()
	opts.NoSystem = true
	opts.TrackingRatio = 0
	tight := NewRenderer(opts)
	defer tight.Close()
	opts.TrackingRatio = 0.5
	loose := NewRenderer(opts)
	defer loose.Close()

	assert.Equal(t, 0, tight.Tracking)
	assert.Equal(t, 20, loose.Tracking)
	assert.Equal(t, tight.Bounds("ABCD").Dx()+3*20, loose.Bounds("ABCD").Dx())
}

func TestBitmapFallbackIsReported(t *testing.T) {
	r := NewRenderer(Options{Size: 32, NoSystem: true, Paths: []string{"/does/not/exist.ttf"}})
	assert.Equal(t, FontBitmap, r.Kind())
	assert.Equal(t, "pixfont", r.Source())

	img := r.Render("A", 80, 60, color.Black)
	assert.False(t, inkBox(img).Empty(), "bitmap fallback still draws ink")
}

func TestAlphabet(t *testing.T) {
	assert.Len(t, Alphabet, 36)
	assert.Equal(t, 0, Index('A'))
	assert.Equal(t, 26, Index('0'))
	assert.Equal(t, -1, Index('a'))
	assert.Equal(t, 'Z', Symbol(25))
	assert.Equal(t, Placeholder, Symbol(36))
	assert.Equal(t, Placeholder, Symbol(-1))
	assert.Equal(t, "AB3Z", Filter(" a-b 3\nz!"))
}

func TestRandomText(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for n := 1; n < 10; n++ {
		s := RandomText(rng, n)
		assert.Len(t, s, n)
		assert.Equal(t, s, Filter(s))
	}
}

func TestPickDarkStaysInPalette(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	allowed := map[color.RGBA]bool{
		{0, 0, 0, 255}:    true,
		{0, 0, 0x8b, 255}: true,
		{0, 0x64, 0, 255}: true,
		{0x8b, 0, 0, 255}: true,
	}
	for i := 0; i < 50; i++ {
		assert.True(t, allowed[PickDark(rng)])
	}
}
