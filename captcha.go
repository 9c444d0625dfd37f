// Package captcha synthesizes obfuscated text images.
//
// A Generator renders a random string over the glyph.Alphabet and, depending
// on the Difficulty, scatters the characters, adds background clutter, warps
// the canvas and blurs it. The recognizers that read the result back live in
// the recognize package.
package captcha

import (
	"fmt"
	"image"
	"image/draw"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/submersibletoaster/captcha/distort"
	"github.com/submersibletoaster/captcha/failure"
	"github.com/submersibletoaster/captcha/glyph"
)

// Difficulty selects which pipeline stages run.
type Difficulty int

const (
	Simple Difficulty = iota // render only
	Medium                   // render, gray lines and speckle
	Hard                     // scatter, noise, warp, blur
)

func (d Difficulty) String() string {
	switch d {
	case Simple:
		return "simple"
	case Medium:
		return "medium"
	case Hard:
		return "hard"
	}
	return fmt.Sprintf("Difficulty(%d)", int(d))
}

// ParseDifficulty accepts the names printed by String, case-insensitively.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simple", "easy":
		return Simple, nil
	case "medium":
		return Medium, nil
	case "hard":
		return Hard, nil
	}
	return 0, failure.New(failure.InvalidArgument, "unknown difficulty %q", s)
}

// MaxLength bounds the requested text length.
const MaxLength = 16

// Options configures a Generator.
type Options struct {
	Width, Height int

	Font        glyph.Options
	Scatter     distort.ScatterOptions
	Noise       distort.NoiseOptions // hard captchas
	MediumNoise distort.NoiseOptions
	Wave        distort.WaveOptions
	BlurSigma   float64
}

func DefaultOptions() Options {
	return Options{
		Width:       200,
		Height:      80,
		Font:        glyph.DefaultOptions(),
		Scatter:     distort.DefaultScatter(),
		Noise:       distort.DefaultNoise(),
		MediumNoise: distort.MediumNoise(),
		Wave:        distort.DefaultWave(),
		BlurSigma:   0.3,
	}
}

// Captcha is a generated challenge. Image is not modified after Generate
// returns it.
type Captcha struct {
	Text       string
	Image      *image.RGBA
	Difficulty Difficulty
	Stages     []Stage

	// Font reports whether a real font or a fallback drew the text.
	Font glyph.FontKind
	// Interpolation is the resampling used by the warp; meaningful for Hard.
	Interpolation distort.Interpolation
	// Placements is where each character landed; set for Hard.
	Placements []distort.Placement
}

// Generator owns a font face and a random source, so it must not be shared
// between goroutines. Create one per worker.
type Generator struct {
	opts Options
	rng  *rand.Rand
	font *glyph.Renderer
}

// NewGenerator resolves the font once. A nil rng is seeded from the clock.
func NewGenerator(opts Options, rng *rand.Rand) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		def := DefaultOptions()
		opts.Width, opts.Height = def.Width, def.Height
	}
	g := &Generator{opts: opts, rng: rng, font: glyph.NewRenderer(opts.Font)}
	log.WithFields(log.Fields{
		"font":   g.font.Source(),
		"kind":   g.font.Kind(),
		"width":  opts.Width,
		"height": opts.Height,
	}).Debug("captcha generator ready")
	return g
}

// Renderer exposes the generator's font, e.g. to build matching templates.
func (g *Generator) Renderer() *glyph.Renderer {
	return g.font
}

func (g *Generator) Options() Options {
	return g.opts
}

func (g *Generator) Close() error {
	return g.font.Close()
}

// Generate draws a random text of the given length at difficulty d.
func (g *Generator) Generate(d Difficulty, length int) (*Captcha, error) {
	if err := checkLength(length); err != nil {
		return nil, err
	}
	if _, ok := pipelines[d]; !ok {
		return nil, failure.New(failure.InvalidArgument, "unknown difficulty %d", int(d))
	}
	return g.GenerateText(d, glyph.RandomText(g.rng, length))
}

// GenerateText runs the pipeline of d over a caller supplied text, which must
// hold 1 to MaxLength symbols of glyph.Alphabet.
func (g *Generator) GenerateText(d Difficulty, text string) (*Captcha, error) {
	if _, ok := pipelines[d]; !ok {
		return nil, failure.New(failure.InvalidArgument, "unknown difficulty %d", int(d))
	}
	if err := checkLength(utf8.RuneCountInString(text)); err != nil {
		return nil, err
	}
	for _, r := range text {
		if !glyph.Contains(r) {
			return nil, failure.New(failure.InvalidArgument, "%q is not in the alphabet", r)
		}
	}
	c := &Captcha{
		Text:          text,
		Difficulty:    d,
		Font:          g.font.Kind(),
		Interpolation: g.opts.Wave.Interpolation,
	}
	p := newPipeline(d)
	canvas := g.blank()

	var err error
	switch d {
	case Simple:
		err = g.simple(p, canvas, text)
	case Medium:
		err = g.medium(p, canvas, text)
	case Hard:
		canvas, err = g.hard(p, c, canvas, text)
	}
	if err == nil {
		err = p.enter(StageDone)
	}
	if err != nil {
		return nil, err
	}
	if !p.finished() {
		return nil, failure.New(failure.StageOrder, "pipeline for %s stopped early", d)
	}

	c.Image = canvas
	c.Stages = p.done
	log.Debugf("generated %s captcha %q via %v", d, text, c.Stages)
	return c, nil
}

func checkLength(n int) error {
	if n < 1 || n > MaxLength {
		return failure.New(failure.InvalidArgument, "length %d outside [1,%d]", n, MaxLength)
	}
	return nil
}

func (g *Generator) blank() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, g.opts.Width, g.opts.Height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	return img
}

func (g *Generator) simple(p *pipeline, canvas *image.RGBA, text string) error {
	if err := p.enter(StageRenderText); err != nil {
		return err
	}
	g.font.Draw(canvas, canvas.Bounds(), text, image.Black)
	return nil
}

func (g *Generator) medium(p *pipeline, canvas *image.RGBA, text string) error {
	if err := p.enter(StageRenderText); err != nil {
		return err
	}
	g.font.Draw(canvas, canvas.Bounds(), text, glyph.PickDark(g.rng))

	if err := p.enter(StageBackgroundNoise); err != nil {
		return err
	}
	distort.AddNoise(canvas, g.opts.MediumNoise, g.rng)
	return nil
}

func (g *Generator) hard(p *pipeline, c *Captcha, canvas *image.RGBA, text string) (*image.RGBA, error) {
	if err := p.enter(StageRenderChars); err != nil {
		return nil, err
	}
	c.Placements = distort.Scatter(canvas, g.font, text, g.opts.Scatter, g.rng)

	if err := p.enter(StageBackgroundNoise); err != nil {
		return nil, err
	}
	distort.AddNoise(canvas, g.opts.Noise, g.rng)

	if err := p.enter(StageWarp); err != nil {
		return nil, err
	}
	warped := distort.Wave(canvas, g.opts.Wave)

	if err := p.enter(StageBlur); err != nil {
		return nil, err
	}
	return distort.Blur(warped, g.opts.BlurSigma), nil
}
