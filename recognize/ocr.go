package recognize

import (
	"image"
	"image/draw"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/submersibletoaster/captcha/examine"
	"github.com/submersibletoaster/captcha/failure"
	"github.com/submersibletoaster/captcha/glyph"
)

// Engine is an OCR backend. psm is a Tesseract page segmentation mode and
// whitelist restricts the characters it may emit.
type Engine interface {
	Recognize(img image.Image, psm int, whitelist string) (string, error)
}

// Page segmentation modes used by the ensemble.
const (
	PSMBlock      = 6
	PSMSingleLine = 7
	PSMSingleWord = 8
	PSMSingleChar = 10
	PSMRawLine    = 13
)

// EnsemblePSMs is the order in which whole-image passes are tried.
var EnsemblePSMs = []int{PSMSingleWord, PSMSingleLine, PSMRawLine, PSMBlock}

// Plausible captcha lengths; a candidate inside this range wins outright.
const (
	MinPlausible = 3
	MaxPlausible = 6
)

// OCRMode selects between the full ensemble and a single cheap pass.
type OCRMode int

const (
	// Ensemble preprocesses with an adaptive threshold and morphology, tries
	// every EnsemblePSMs mode and falls back to per-character reads.
	Ensemble OCRMode = iota
	// Fast uses an Otsu threshold and one single-word pass.
	Fast
)

func (m OCRMode) String() string {
	if m == Fast {
		return "fast"
	}
	return "ensemble"
}

func ParseOCRMode(s string) (OCRMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ensemble":
		return Ensemble, nil
	case "fast":
		return Fast, nil
	}
	return 0, failure.New(failure.InvalidArgument, "unknown ocr mode %q", s)
}

// charMargin is the white border put around single characters before they
// are handed to the engine.
const charMargin = 10

// OCR recognizes captchas through an Engine.
type OCR struct {
	Engine  Engine
	Mode    OCRMode
	Segment examine.Options
}

func NewOCR(e Engine, mode OCRMode) *OCR {
	return &OCR{Engine: e, Mode: mode, Segment: examine.DefaultOptions()}
}

// Recognize fails with ENGINE_UNAVAILABLE when there is no engine,
// ENGINE_FAILURE when every engine call errored, and NO_CANDIDATE_FOUND when
// the engine ran but nothing in the alphabet came back.
func (o *OCR) Recognize(img image.Image) (string, error) {
	if o.Engine == nil {
		return "", failure.NewEngineUnavailable("ocr", nil)
	}
	binMode, psms := examine.Adaptive, EnsemblePSMs
	if o.Mode == Fast {
		binMode, psms = examine.Plain, []int{PSMSingleWord}
	}
	bin := examine.Binarize(img, binMode)
	page := examine.Invert(bin)

	var candidates []string
	calls, failed := 0, 0
	var lastErr error
	for _, psm := range psms {
		calls++
		text, err := o.Engine.Recognize(page, psm, glyph.Alphabet)
		if err != nil {
			if failure.Is(err, failure.EngineUnavailable) {
				return "", err
			}
			failed++
			lastErr = err
			log.WithError(err).WithField("psm", psm).Warn("ocr pass failed")
			continue
		}
		c := glyph.Filter(text)
		log.Debugf("ocr psm %d: %q -> %q", psm, text, c)
		candidates = append(candidates, c)
	}
	best := pick(candidates)

	if o.Mode == Ensemble && len(best) < MinPlausible {
		per, n, nf, err := o.perCharacter(bin)
		if err != nil {
			return "", err
		}
		calls, failed = calls+n, failed+nf
		if len(per) > len(best) {
			log.Debugf("ocr per-character %q beats %q", per, best)
			best = per
		}
	}

	if best == "" {
		if calls > 0 && failed == calls {
			return "", failure.NewEngineFailure("ocr", lastErr)
		}
		return "", failure.New(failure.NoCandidateFound, "no alphabet characters recognized")
	}
	return best, nil
}

// pick prefers the first candidate of plausible length, then the longest.
func pick(candidates []string) string {
	for _, c := range candidates {
		if len(c) >= MinPlausible && len(c) <= MaxPlausible {
			return c
		}
	}
	best := ""
	for _, c := range candidates {
		if len(c) > len(best) {
			best = c
		}
	}
	return best
}

// perCharacter segments bin and reads each crop in single character mode.
// Crops the engine cannot read are skipped.
func (o *OCR) perCharacter(bin *image.Gray) (string, int, int, error) {
	segs := examine.Split(bin, o.Segment)
	var b strings.Builder
	failed := 0
	for _, s := range segs {
		text, err := o.Engine.Recognize(pad(examine.Invert(s.Image), charMargin), PSMSingleChar, glyph.Alphabet)
		if err != nil {
			if failure.Is(err, failure.EngineUnavailable) {
				return "", 0, 0, err
			}
			failed++
			continue
		}
		if c := glyph.Filter(text); c != "" {
			b.WriteByte(c[0])
		}
	}
	return b.String(), len(segs), failed, nil
}

// pad surrounds g with m white pixels on every side.
func pad(g *image.Gray, m int) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx()+2*m, b.Dy()+2*m))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(out, b.Sub(b.Min).Add(image.Pt(m, m)), g, b.Min, draw.Src)
	return out
}
