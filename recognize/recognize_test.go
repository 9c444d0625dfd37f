package recognize

import (
	"image"
	"image/color"
	"image/draw"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/submersibletoaster/captcha"
	"github.com/submersibletoaster/captcha/examine"
	"github.com/submersibletoaster/captcha/failure"
)

func newGenerator(t *testing.T, seed int64) *captcha.Generator {
	t.Helper()
	opts := captcha.DefaultOptions()
	opts.Font.NoSystem = true
	g := captcha.NewGenerator(opts, rand.New(rand.NewSource(seed)))
	t.Cleanup(func() { g.Close() })
	return g
}

func TestValidate(t *testing.T) {
	assert.True(t, Validate(" ab12 ", "AB12", false))
	assert.False(t, Validate("ab12", "AB12", true))
	assert.True(t, Validate("AB12", "AB12", true))
	assert.False(t, Validate("AB1", "AB12", false))
}

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 1.0, Accuracy("abcd", "ABCD"))
	assert.Equal(t, 0.5, Accuracy("AB?", "ABCD"))
	assert.Equal(t, 0.0, Accuracy("", "AB"))
	assert.Equal(t, 0.0, Accuracy("AB", ""))
}

// Default hard captchas must split into one crop per character and read
// back through templates built from the same font.
func TestTemplateRoundTripHard(t *testing.T) {
	set := BuildTemplates(newGenerator(t, 0).Renderer())
	require.Equal(t, 36, set.Len())

	const runs = 12
	exact := 0
	chars := 0.0
	for seed := int64(1); seed <= runs; seed++ {
		c, err := newGenerator(t, seed).Generate(captcha.Hard, 5)
		require.NoError(t, err)
		segs := examine.Characters(c.Image, examine.DefaultOptions())
		require.Len(t, segs, 5, "seed %d: %s", seed, c.Text)

		got, err := RecognizeTemplate(c.Image, set)
		require.NoError(t, err)
		if got == c.Text {
			exact++
		} else {
			t.Logf("seed %d: %s read as %s", seed, c.Text, got)
		}
		chars += Accuracy(got, c.Text)
	}
	assert.GreaterOrEqual(t, exact, runs*3/4)
	assert.GreaterOrEqual(t, chars/runs, 0.9)
}

func TestTemplateMatchesTiltedCharacter(t *testing.T) {
	g := newGenerator(t, 16)
	set := BuildTemplates(g.Renderer())
	upright, _ := set.Get('K')
	for _, angle := range []float64{-10, 15} {
		crop := tilt(upright.Image, angle)
		require.NotNil(t, crop)
		best, ok := set.Query(crop).Best()
		require.True(t, ok)
		assert.Equal(t, 'K', best.Rune, "angle %v", angle)
		assert.InDelta(t, 1.0, best.Score, 1e-9, "angle %v", angle)
	}
}

func TestTemplateSimpleRandom(t *testing.T) {
	g := newGenerator(t, 12)
	set := BuildTemplates(g.Renderer())
	for i := 0; i < 5; i++ {
		c, err := g.Generate(captcha.Simple, 5)
		require.NoError(t, err)
		got, err := RecognizeTemplate(c.Image, set)
		require.NoError(t, err)
		assert.Len(t, got, 5)
		assert.GreaterOrEqual(t, Accuracy(got, c.Text), 0.6, "%s read as %s", c.Text, got)
	}
}

func TestTemplateEmptySet(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	_, err := RecognizeTemplate(img, NewTemplateSet())
	assert.True(t, failure.Is(err, failure.TemplateSetEmpty))
	_, err = RecognizeTemplate(img, nil)
	assert.True(t, failure.Is(err, failure.TemplateSetEmpty))
}

func TestTemplateBlankImage(t *testing.T) {
	g := newGenerator(t, 13)
	set := BuildTemplates(g.Renderer())
	blank := image.NewRGBA(image.Rect(0, 0, 200, 80))
	draw.Draw(blank, blank.Bounds(), image.White, image.Point{}, draw.Src)
	got, err := RecognizeTemplate(blank, set)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTemplateBelowThresholdIsPlaceholder(t *testing.T) {
	g := newGenerator(t, 14)
	set := BuildTemplates(g.Renderer())
	m := NewTemplateMatcher(set)
	m.Threshold = 1.1
	c, err := g.GenerateText(captcha.Simple, "AB")
	require.NoError(t, err)
	got, err := m.Recognize(c.Image)
	require.NoError(t, err)
	assert.Equal(t, "??", got)
}

func TestResultsBestBreaksTiesByDistance(t *testing.T) {
	r := Results{
		{Score: 0.9, Rune: 'O', Distance: 40},
		{Score: 0.9 - 1e-7, Rune: '0', Distance: 8},
		{Score: 0.5, Rune: 'Q', Distance: 0},
	}
	best, ok := r.Best()
	require.True(t, ok)
	assert.Equal(t, '0', best.Rune)

	_, ok = Results{}.Best()
	assert.False(t, ok)
}

func TestSaveAndLoadTemplates(t *testing.T) {
	g := newGenerator(t, 15)
	set := BuildTemplates(g.Renderer())
	dir := t.TempDir()
	require.NoError(t, SaveTemplates(dir, set))

	loaded, err := LoadTemplates(dir)
	require.NoError(t, err)
	assert.Equal(t, set.Runes(), loaded.Runes())

	c, err := g.GenerateText(captcha.Simple, "KW7")
	require.NoError(t, err)
	got, err := RecognizeTemplate(c.Image, loaded)
	require.NoError(t, err)
	assert.Equal(t, "KW7", got)
}

func TestLoadTemplatesErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadTemplates(dir + "/missing")
	assert.True(t, failure.Is(err, failure.ResourceMissing))

	_, err = LoadTemplates(dir)
	assert.True(t, failure.Is(err, failure.TemplateSetEmpty))
}

func TestNCC(t *testing.T) {
	a := image.NewGray(image.Rect(0, 0, 4, 4))
	b := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range a.Pix {
		a.Pix[i] = uint8(i * 10)
		b.Pix[i] = uint8(200 - i*10)
	}
	assert.InDelta(t, 1.0, ncc(a, a), 1e-9)
	assert.InDelta(t, -1.0, ncc(a, b), 1e-9)
	assert.Zero(t, ncc(a, image.NewGray(image.Rect(0, 0, 4, 4))))
	a.SetGray(0, 0, color.Gray{})
	assert.Zero(t, ncc(a, image.NewGray(image.Rect(0, 0, 3, 3))))
}
