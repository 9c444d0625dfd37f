package glyph

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/submersibletoaster/pixfont"
	xdraw "golang.org/x/image/draw"
)

// bitmapCell is the pixel height reserved for one pixfont glyph before scaling.
const bitmapCell = 16

// bitmapGlyph is a pixfont glyph blown up to the requested size, kept as an
// opaque mask so it can be drawn in any color.
type bitmapGlyph struct {
	mask    *image.RGBA
	ink     image.Rectangle
	advance int
}

type bitmapFont struct {
	scale  int
	glyphs map[rune]*bitmapGlyph
}

func newBitmapFont(size float64) *bitmapFont {
	scale := int(math.Round(size / 8))
	if scale < 1 {
		scale = 1
	}
	return &bitmapFont{scale: scale, glyphs: make(map[rune]*bitmapGlyph)}
}

func (f *bitmapFont) glyph(r rune) *bitmapGlyph {
	if g, ok := f.glyphs[r]; ok {
		return g
	}
	s := string(r)
	width := pixfont.MeasureString(s)
	if width < 1 {
		width = 1
	}
	small := image.NewRGBA(image.Rect(0, 0, width, bitmapCell))
	pixfont.DrawString(small, 0, 0, s, color.Black)

	big := image.NewRGBA(image.Rect(0, 0, width*f.scale, bitmapCell*f.scale))
	xdraw.NearestNeighbor.Scale(big, big.Bounds(), small, small.Bounds(), draw.Src, nil)

	g := &bitmapGlyph{mask: big, ink: alphaBounds(big), advance: width * f.scale}
	f.glyphs[r] = g
	return g
}

func (f *bitmapFont) bounds(r rune) (image.Rectangle, int) {
	g := f.glyph(r)
	return g.ink, g.advance
}

// draw paints r with its cell's top-left corner at (x, y).
func (f *bitmapFont) draw(dst draw.Image, x, y int, r rune, c color.Color) {
	g := f.glyph(r)
	rect := g.mask.Bounds().Add(image.Pt(x, y))
	draw.DrawMask(dst, rect, image.NewUniform(c), image.Point{}, g.mask, image.Point{}, draw.Over)
}

// alphaBounds is the smallest rectangle holding every non-transparent pixel.
func alphaBounds(img *image.RGBA) image.Rectangle {
	b := img.Bounds()
	var out image.Rectangle
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y).A != 0 {
				out = out.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return out
}
