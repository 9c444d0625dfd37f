package distort

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand"

	"golang.org/x/image/vector"
)

// Band is an inclusive per channel range for random colors.
type Band struct {
	Min, Max uint8
}

// Pick draws each channel independently from the band.
func (b Band) Pick(rng *rand.Rand) color.RGBA {
	ch := func() uint8 {
		if b.Max <= b.Min {
			return b.Min
		}
		return b.Min + uint8(rng.Intn(int(b.Max-b.Min)+1))
	}
	return color.RGBA{ch(), ch(), ch(), 255}
}

// NoiseOptions sets how much clutter AddNoise draws and in which colors.
type NoiseOptions struct {
	Lines   int
	Dots    int
	Circles int

	LineColor   Band
	DotColor    Band
	CircleColor Band

	// circle diameters are uniform in [MinDiameter, MaxDiameter]
	MinDiameter int
	MaxDiameter int
}

// DefaultNoise is the light, near-white clutter of hard captchas.
func DefaultNoise() NoiseOptions {
	return NoiseOptions{
		Lines: 3, Dots: 50, Circles: 5,
		LineColor:   Band{200, 240},
		DotColor:    Band{200, 240},
		CircleColor: Band{220, 250},
		MinDiameter: 5, MaxDiameter: 15,
	}
}

// MediumNoise is the gray line and speckle clutter of medium captchas.
func MediumNoise() NoiseOptions {
	gray := Band{128, 128}
	return NoiseOptions{Lines: 3, Dots: 100, LineColor: gray, DotColor: gray, CircleColor: gray}
}

// AddNoise draws, in order, the lines, the dots and the filled circles.
func AddNoise(dst *image.RGBA, opts NoiseOptions, rng *rand.Rand) {
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return
	}

	for i := 0; i < opts.Lines; i++ {
		x1, y1 := rng.Intn(w+1), rng.Intn(h+1)
		x2, y2 := rng.Intn(w+1), rng.Intn(h+1)
		z := vector.NewRasterizer(w, h)
		strokeLine(z, float32(x1), float32(y1), float32(x2), float32(y2), 1)
		fill(dst, z, opts.LineColor.Pick(rng))
	}

	for i := 0; i < opts.Dots; i++ {
		x, y := rng.Intn(w), rng.Intn(h)
		dst.SetRGBA(b.Min.X+x, b.Min.Y+y, opts.DotColor.Pick(rng))
	}

	for i := 0; i < opts.Circles; i++ {
		x, y := rng.Intn(w+1), rng.Intn(h+1)
		d := opts.MinDiameter
		if opts.MaxDiameter > d {
			d += rng.Intn(opts.MaxDiameter - d + 1)
		}
		rad := float32(d) / 2
		z := vector.NewRasterizer(w, h)
		ellipse(z, float32(x)+rad, float32(y)+rad, rad)
		fill(dst, z, opts.CircleColor.Pick(rng))
	}
}

func fill(dst *image.RGBA, z *vector.Rasterizer, c color.RGBA) {
	z.DrawOp = draw.Over
	z.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{})
}

// strokeLine adds a width-wide quad along the segment.
func strokeLine(z *vector.Rasterizer, x1, y1, x2, y2, width float32) {
	dx, dy := x2-x1, y2-y1
	n := float32(math.Hypot(float64(dx), float64(dy)))
	if n == 0 {
		return
	}
	px, py := -dy/n*width/2, dx/n*width/2
	z.MoveTo(x1+px, y1+py)
	z.LineTo(x2+px, y2+py)
	z.LineTo(x2-px, y2-py)
	z.LineTo(x1-px, y1-py)
	z.ClosePath()
}

// ellipse adds a circle built from four cubic arcs.
func ellipse(z *vector.Rasterizer, cx, cy, r float32) {
	const k = 0.5522847
	c := r * k
	z.MoveTo(cx+r, cy)
	z.CubeTo(cx+r, cy+c, cx+c, cy+r, cx, cy+r)
	z.CubeTo(cx-c, cy+r, cx-r, cy+c, cx-r, cy)
	z.CubeTo(cx-r, cy-c, cx-c, cy-r, cx, cy-r)
	z.CubeTo(cx+c, cy-r, cx+r, cy-c, cx+r, cy)
	z.ClosePath()
}
