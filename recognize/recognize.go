// Package recognize reads the text back out of a captcha image.
//
// Three strategies are peers: an OCR engine ensemble, normalized
// cross-correlation against per-symbol templates, and a trained classifier
// over segmented crops. Each is a Recognizer.
package recognize

import (
	"image"
	"strings"
	"unicode"
)

// Recognizer maps a captcha image to its text. Unresolved positions are
// written as glyph.Placeholder.
type Recognizer interface {
	Recognize(img image.Image) (string, error)
}

// Validate compares a user's answer with the expected text, ignoring
// surrounding whitespace.
func Validate(input, truth string, caseSensitive bool) bool {
	input, truth = strings.TrimSpace(input), strings.TrimSpace(truth)
	if caseSensitive {
		return input == truth
	}
	return strings.EqualFold(input, truth)
}

// Accuracy is the share of positions where got matches want, case
// insensitively, over the length of want.
func Accuracy(got, want string) float64 {
	w := []rune(want)
	if len(w) == 0 {
		return 0
	}
	g := []rune(got)
	hit := 0
	for i, r := range w {
		if i < len(g) && unicode.ToUpper(g[i]) == unicode.ToUpper(r) {
			hit++
		}
	}
	return float64(hit) / float64(len(w))
}
