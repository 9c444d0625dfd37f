package glyph

import (
	"math/rand"
	"strings"
	"unicode"
)

// Alphabet is the symbol set of every generated captcha. The position of a
// symbol in this string is its classifier label.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Placeholder stands in for a position that could not be resolved.
const Placeholder = '?'

// Index returns the label of r, or -1 when r is not in the Alphabet.
func Index(r rune) int {
	return strings.IndexRune(Alphabet, r)
}

// Symbol maps a label back to its rune. Out of range labels give Placeholder.
func Symbol(label int) rune {
	if label < 0 || label >= len(Alphabet) {
		return Placeholder
	}
	return rune(Alphabet[label])
}

func Contains(r rune) bool {
	return Index(r) >= 0
}

// Filter upper-cases s and drops everything outside the Alphabet.
func Filter(s string) string {
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToUpper(r)
		if Contains(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// RandomText draws length symbols uniformly from the Alphabet.
func RandomText(rng *rand.Rand, length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = Alphabet[rng.Intn(len(Alphabet))]
	}
	return string(b)
}
