// Package distort holds the raster effects of the captcha pipeline: per
// character scattering, background noise, the wave warp and the final blur.
//
// Every function takes an explicit *rand.Rand so that a fixed seed gives a
// pixel-identical result.
package distort

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"

	"github.com/submersibletoaster/captcha/glyph"
)

// ScatterOptions tunes the per character transform.
type ScatterOptions struct {
	MinCellWidth int     // lower bound on a sub-canvas width
	MaxAngle     float64 // rotation is uniform in [-MaxAngle, MaxAngle] degrees
	Jitter       int     // translation is uniform in [-Jitter, Jitter] on both axes
	Gap          int     // clear columns kept between neighbouring characters
	Ink          Band    // per channel range of the glyph color
}

func DefaultScatter() ScatterOptions {
	return ScatterOptions{MinCellWidth: 50, MaxAngle: 15, Jitter: 5, Gap: 3, Ink: Band{50, 100}}
}

// Placement records where one character landed. The sub-canvas itself is
// discarded once composited.
type Placement struct {
	Rune  rune
	Rect  image.Rectangle // ink box of the rotated character on the main canvas
	Angle float64
	Color color.RGBA
}

// Scatter renders each rune of text on its own transparent sub-canvas,
// rotates it, trims it to its ink and composites it onto dst centered on its
// slot. A character is pushed right when jitter would bring it within Gap
// columns of its left neighbour, and is always clamped inside dst.
func Scatter(dst *image.RGBA, r *glyph.Renderer, text string, opts ScatterOptions, rng *rand.Rand) []Placement {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	b := dst.Bounds()
	slot := b.Dx() / len(runes)
	cellW := max(slot, opts.MinCellWidth)

	out := make([]Placement, 0, len(runes))
	prevMax := math.MinInt
	for i, ch := range runes {
		sub := image.NewNRGBA(image.Rect(0, 0, cellW, b.Dy()))
		col := opts.Ink.Pick(rng)
		r.Draw(sub, sub.Bounds(), string(ch), col)

		angle := (rng.Float64()*2 - 1) * opts.MaxAngle
		rotated := imaging.Rotate(sub, angle, color.Transparent)
		ink := alphaBounds(rotated)
		rw, rh := ink.Dx(), ink.Dy()

		x := i*slot + (slot-rw)/2 + jitter(rng, opts.Jitter)
		y := (b.Dy()-rh)/2 + jitter(rng, opts.Jitter)
		if prevMax != math.MinInt {
			x = max(x, prevMax+opts.Gap)
		}
		x = max(0, min(x, b.Dx()-rw))
		y = max(0, min(y, b.Dy()-rh))

		rect := image.Rect(x, y, x+rw, y+rh).Add(b.Min)
		if !ink.Empty() {
			draw.Draw(dst, rect, rotated, ink.Min, draw.Over)
			prevMax = x + rw
		}
		log.Debugf("scatter %q at %v angle %.1f", ch, rect, angle)

		out = append(out, Placement{Rune: ch, Rect: rect, Angle: angle, Color: col})
	}
	return out
}

// alphaBounds is the smallest rectangle holding every pixel of img that is
// not fully transparent.
func alphaBounds(img *image.NRGBA) image.Rectangle {
	b := img.Bounds()
	ink := image.Rectangle{}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			if row[x*4+3] != 0 {
				ink = ink.Union(image.Rect(b.Min.X+x, y, b.Min.X+x+1, y+1))
			}
		}
	}
	return ink
}

func jitter(rng *rand.Rand, n int) int {
	if n <= 0 {
		return 0
	}
	return rng.Intn(2*n+1) - n
}
