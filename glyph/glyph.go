package glyph

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math/rand"
	"os"

	"github.com/lucasb-eyer/go-colorful"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// FontKind reports which font source a Renderer ended up with.
type FontKind int

const (
	FontSystem   FontKind = iota // a font file found on disk
	FontEmbedded                 // the bundled Go Mono Bold face
	FontBitmap                   // the built-in pixel font, scaled up
)

func (k FontKind) String() string {
	switch k {
	case FontSystem:
		return "system"
	case FontEmbedded:
		return "embedded"
	case FontBitmap:
		return "bitmap"
	}
	return "unknown"
}

// SystemFontPaths are probed after any configured paths.
var SystemFontPaths = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
	"C:/Windows/Fonts/arial.ttf",
	"C:/Windows/Fonts/times.ttf",
	"/System/Library/Fonts/Supplemental/Arial.ttf",
	"/Library/Fonts/Arial.ttf",
}

// DarkPalette is the fill palette of medium captchas.
var DarkPalette []colorful.Color

func init() {
	for _, hex := range []string{"#000000", "#00008b", "#006400", "#8b0000"} {
		c, _ := colorful.Hex(hex)
		DarkPalette = append(DarkPalette, c)
	}
}

// PickDark returns a random DarkPalette entry as an opaque RGBA.
func PickDark(rng *rand.Rand) color.RGBA {
	r, g, b := DarkPalette[rng.Intn(len(DarkPalette))].RGB255()
	return color.RGBA{r, g, b, 255}
}

// Options configures font resolution and layout.
type Options struct {
	Size     float64  // em size in pixels
	Paths    []string // tried first, in order
	NoSystem bool     // skip SystemFontPaths
	Embedded bool     // allow the bundled face before falling back to bitmap
	// TrackingRatio adds Size*TrackingRatio pixels between characters.
	TrackingRatio float64
}

func DefaultOptions() Options {
	return Options{Size: 40, Embedded: true, TrackingRatio: 0.125}
}

// Renderer draws strings centered inside a rectangle. It owns a font face
// and is not safe for concurrent use.
type Renderer struct {
	Size     float64
	Tracking int

	kind   FontKind
	source string
	face   font.Face
	bitmap *bitmapFont
}

// NewRenderer resolves a font following opts. It never fails: when no font
// file can be loaded the renderer degrades to the bitmap font and says so
// through Kind.
func NewRenderer(opts Options) *Renderer {
	if opts.Size <= 0 {
		opts.Size = DefaultOptions().Size
	}
	r := &Renderer{Size: opts.Size, Tracking: int(opts.Size * opts.TrackingRatio)}

	paths := append([]string{}, opts.Paths...)
	if !opts.NoSystem {
		paths = append(paths, SystemFontPaths...)
	}
	for _, p := range paths {
		face, err := loadFace(p, opts.Size)
		if err != nil {
			log.Debugf("font %s unusable: %v", p, err)
			continue
		}
		r.kind, r.source, r.face = FontSystem, p, face
		log.Debugf("using font %s at %.1fpx", p, opts.Size)
		return r
	}

	if opts.Embedded {
		face, err := parseFace(gomonobold.TTF, opts.Size)
		if err == nil {
			r.kind, r.source, r.face = FontEmbedded, "gomonobold", face
			return r
		}
		log.Warnf("embedded font failed to parse: %v", err)
	}

	r.kind, r.source = FontBitmap, "pixfont"
	r.bitmap = newBitmapFont(opts.Size)
	log.WithFields(log.Fields{"size": opts.Size, "tried": len(paths)}).
		Warn("no font file found, falling back to bitmap font")
	return r
}

func loadFace(path string, size float64) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseFace(data, size)
}

func parseFace(data []byte, size float64) (font.Face, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

func (r *Renderer) Kind() FontKind {
	return r.kind
}

// Source names the font file, or the fallback in use.
func (r *Renderer) Source() string {
	return r.source
}

// Close releases the font face.
func (r *Renderer) Close() error {
	if r.face != nil {
		return r.face.Close()
	}
	return nil
}

type placement struct {
	r rune
	x int // pen position relative to the string origin
}

// layout positions each rune and returns the union of their ink bounds,
// relative to the origin (the baseline for outline fonts, the top for the
// bitmap font).
func (r *Renderer) layout(s string) ([]placement, image.Rectangle) {
	var ink image.Rectangle
	var places []placement
	pen := 0
	for _, ru := range s {
		var gb image.Rectangle
		var adv int
		if r.face != nil {
			b, a, ok := r.face.GlyphBounds(ru)
			if !ok {
				log.Debugf("font %s has no glyph for %q", r.source, ru)
			}
			gb = image.Rect(b.Min.X.Floor(), b.Min.Y.Floor(), b.Max.X.Ceil(), b.Max.Y.Ceil())
			adv = a.Round()
		} else {
			gb, adv = r.bitmap.bounds(ru)
		}
		places = append(places, placement{ru, pen})
		ink = ink.Union(gb.Add(image.Pt(pen, 0)))
		pen += adv + r.Tracking
	}
	return places, ink
}

// Bounds returns the ink box s would occupy when drawn at the origin.
func (r *Renderer) Bounds(s string) image.Rectangle {
	_, ink := r.layout(s)
	return ink
}

// Draw renders s in c so that its ink box is centered inside area.
func (r *Renderer) Draw(dst draw.Image, area image.Rectangle, s string, c color.Color) {
	places, ink := r.layout(s)
	if ink.Empty() {
		return
	}
	ox := area.Min.X + (area.Dx()-ink.Dx())/2 - ink.Min.X
	oy := area.Min.Y + (area.Dy()-ink.Dy())/2 - ink.Min.Y

	if r.face == nil {
		for _, p := range places {
			r.bitmap.draw(dst, ox+p.x, oy, p.r, c)
		}
		return
	}
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: r.face}
	for _, p := range places {
		d.Dot = fixed.P(ox+p.x, oy)
		d.DrawString(string(p.r))
	}
}

// Render draws s centered on a fresh white w x h canvas.
func (r *Renderer) Render(s string, w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	r.Draw(img, img.Bounds(), s, c)
	return img
}
