package recognize

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	log "github.com/sirupsen/logrus"
	"github.com/steakknife/hamming"

	"github.com/submersibletoaster/captcha/examine"
	"github.com/submersibletoaster/captcha/failure"
	"github.com/submersibletoaster/captcha/glyph"
)

// DefaultThreshold is the correlation a template must exceed to be accepted.
const DefaultThreshold = 0.5

const templateMargin = 4

// tieEpsilon is how close two correlation scores must be to count as a tie.
const tieEpsilon = 1e-6

// Templates are also compared tilted, every templateStep degrees up to
// templateTilt either way, which covers the scatter rotation of hard captchas.
const (
	templateTilt = 15
	templateStep = 5
)

// Template is the reference bitmap of one symbol, ink marked as examine.Ink.
type Template struct {
	Rune  rune
	Image *image.Gray

	tilted []*image.Gray // Image first, then its rotations
}

func newTemplate(r rune, bin *image.Gray) *Template {
	t := &Template{Rune: r, Image: bin, tilted: []*image.Gray{bin}}
	for a := float64(templateStep); a <= templateTilt; a += templateStep {
		for _, angle := range []float64{-a, a} {
			if g := tilt(bin, angle); g != nil {
				t.tilted = append(t.tilted, g)
			}
		}
	}
	return t
}

// TemplateSet holds at most one template per symbol. It is read-only once
// built and can be shared.
type TemplateSet struct {
	templates map[rune]*Template
}

func NewTemplateSet() *TemplateSet {
	return &TemplateSet{templates: map[rune]*Template{}}
}

func (s *TemplateSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.templates)
}

// Add stores bin, a binary image, as the template of r.
func (s *TemplateSet) Add(r rune, bin *image.Gray) {
	s.templates[r] = newTemplate(r, bin)
}

// Get returns the template of r, if any.
func (s *TemplateSet) Get(r rune) (*Template, bool) {
	t, ok := s.templates[r]
	return t, ok
}

// Runes lists the symbols in the set, sorted.
func (s *TemplateSet) Runes() []rune {
	out := make([]rune, 0, len(s.templates))
	for r := range s.templates {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Match is the score of one template against a crop.
type Match struct {
	Score    float64 // normalized cross-correlation, 1 is identical
	Rune     rune
	Distance int // Hamming distance between the binarized bitmaps, in bits
}

// Results sorts by Score ascending; use sort.Reverse for best first.
type Results []Match

func (r Results) Swap(i, j int) {
	r[j], r[i] = r[i], r[j]
}
func (r Results) Less(i, j int) bool {
	if r[i].Score != r[j].Score {
		return r[i].Score < r[j].Score
	}
	if r[i].Distance != r[j].Distance {
		return r[i].Distance > r[j].Distance
	}
	return r[i].Rune > r[j].Rune
}
func (r Results) Len() int {
	return len(r)
}

// Query scores every template against crop, best first. A template scores
// its best tilt.
func (s *TemplateSet) Query(crop *image.Gray) Results {
	out := make(Results, 0, len(s.templates))
	b := crop.Bounds()
	cropBits := bits(crop)
	for _, t := range s.templates {
		m := Match{Score: math.Inf(-1), Rune: t.Rune}
		for _, g := range t.tilted {
			sized := resizeGray(g, b.Dx(), b.Dy())
			if score := ncc(crop, sized); score > m.Score {
				m.Score = score
				m.Distance = hamming.Uint8s(cropBits, bits(sized))
			}
		}
		out = append(out, m)
	}
	sort.Sort(sort.Reverse(out))
	return out
}

// Best picks the winner of sorted results: the top score, with near ties
// going to the smaller Hamming distance.
func (r Results) Best() (Match, bool) {
	if len(r) == 0 {
		return Match{}, false
	}
	best := r[0]
	for _, m := range r[1:] {
		if best.Score-m.Score > tieEpsilon {
			break
		}
		if m.Distance < best.Distance {
			best = m
		}
	}
	return best, true
}

// TemplateMatcher recognizes each segmented character by template
// correlation.
type TemplateMatcher struct {
	Set       *TemplateSet
	Threshold float64
	Segment   examine.Options
}

func NewTemplateMatcher(set *TemplateSet) *TemplateMatcher {
	return &TemplateMatcher{Set: set, Threshold: DefaultThreshold, Segment: examine.DefaultOptions()}
}

// Recognize fails with TEMPLATE_SET_EMPTY when there are no templates. A
// character whose best score does not exceed Threshold becomes
// glyph.Placeholder; an image with no characters gives "".
func (m *TemplateMatcher) Recognize(img image.Image) (string, error) {
	if m.Set.Len() == 0 {
		return "", failure.NewTemplateSetEmpty("")
	}
	var b strings.Builder
	for _, seg := range examine.Characters(img, m.Segment) {
		best, _ := m.Set.Query(seg.Image).Best()
		if best.Score > m.Threshold {
			b.WriteRune(best.Rune)
		} else {
			log.Debugf("template: best %q scored %.3f at %v", best.Rune, best.Score, seg.Box)
			b.WriteRune(glyph.Placeholder)
		}
	}
	return b.String(), nil
}

// RecognizeTemplate matches img against set with the default threshold.
func RecognizeTemplate(img image.Image, set *TemplateSet) (string, error) {
	return NewTemplateMatcher(set).Recognize(img)
}

// BuildTemplates renders every alphabet symbol with r and keeps the largest
// segmented component, so templates go through the same binarization as
// the crops they are compared with.
func BuildTemplates(r *glyph.Renderer) *TemplateSet {
	set := NewTemplateSet()
	side := int(r.Size * 2)
	for _, sym := range glyph.Alphabet {
		img := r.Render(string(sym), side, side, image.Black)
		if bin := largestComponent(img); bin != nil {
			set.Add(sym, bin)
		} else {
			log.WithField("symbol", string(sym)).Warn("template: symbol rendered no ink")
		}
	}
	return set
}

// LoadTemplates reads a directory of images whose file names start with
// their symbol, e.g. A.png or a_bold.jpg.
func LoadTemplates(dir string) (*TemplateSet, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, failure.NewResourceMissing("templates", dir, err)
	}
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	set := NewTemplateSet()
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		r, _ := utf8.DecodeRuneInString(e.Name())
		r = unicode.ToUpper(r)
		if !glyph.Contains(r) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		img, err := imaging.Open(path)
		if err != nil {
			log.WithError(err).WithField("file", path).Warn("template: unreadable image")
			continue
		}
		if bin := largestComponent(img); bin != nil {
			set.Add(r, bin)
		}
	}
	if set.Len() == 0 {
		return nil, failure.NewTemplateSetEmpty(dir)
	}
	log.Debugf("loaded %d templates from %s", set.Len(), dir)
	return set, nil
}

// SaveTemplates writes each template as <symbol>.png, black on white with
// a small margin.
func SaveTemplates(dir string, set *TemplateSet) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save templates: %w", err)
	}
	for _, r := range set.Runes() {
		t, _ := set.Get(r)
		path := filepath.Join(dir, string(r)+".png")
		if err := imaging.Save(pad(examine.Invert(t.Image), templateMargin), path); err != nil {
			return fmt.Errorf("save template %s: %w", path, err)
		}
	}
	return nil
}

func largestComponent(img image.Image) *image.Gray {
	bin := examine.Binarize(img, examine.Plain)
	var best *image.Gray
	area := 0
	for _, s := range examine.Split(bin, examine.Options{}) {
		if a := s.Box.W * s.Box.H; a > area {
			best, area = s.Image, a
		}
	}
	return best
}

// tilt rotates a binary bitmap by angle degrees counter-clockwise and trims
// it to its ink, the way a segmented crop of a rotated character is trimmed.
func tilt(bin *image.Gray, angle float64) *image.Gray {
	rotated := imaging.Rotate(bin, angle, color.Black)
	b := rotated.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	ink := image.Rectangle{}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if rotated.NRGBAAt(b.Min.X+x, b.Min.Y+y).R >= 0x80 {
				out.SetGray(x, y, color.Gray{Y: examine.Ink})
				ink = ink.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	if ink.Empty() {
		return nil
	}
	return examine.Crop(out, ink)
}

func resizeGray(g *image.Gray, w, h int) *image.Gray {
	b := g.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return g
	}
	return examine.Grayscale(resize.Resize(uint(w), uint(h), g, resize.Bilinear))
}

// bits packs g into one byte per pixel, 0xff for ink and 0 otherwise.
func bits(g *image.Gray) []uint8 {
	b := g.Bounds()
	out := make([]uint8, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if g.GrayAt(x, y).Y >= 0x80 {
				out = append(out, 0xff)
			} else {
				out = append(out, 0)
			}
		}
	}
	return out
}

// ncc is the Pearson correlation of two equally sized images. A constant
// image correlates with nothing.
func ncc(a, b *image.Gray) float64 {
	ab, bb := a.Bounds(), b.Bounds()
	n := float64(ab.Dx() * ab.Dy())
	if n == 0 || ab.Size() != bb.Size() {
		return 0
	}
	var sa, sb float64
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			sa += float64(a.GrayAt(ab.Min.X+x, ab.Min.Y+y).Y)
			sb += float64(b.GrayAt(bb.Min.X+x, bb.Min.Y+y).Y)
		}
	}
	ma, mb := sa/n, sb/n
	var num, va, vb float64
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			da := float64(a.GrayAt(ab.Min.X+x, ab.Min.Y+y).Y) - ma
			db := float64(b.GrayAt(bb.Min.X+x, bb.Min.Y+y).Y) - mb
			num += da * db
			va += da * da
			vb += db * db
		}
	}
	if va == 0 || vb == 0 {
		return 0
	}
	return num / math.Sqrt(va*vb)
}
