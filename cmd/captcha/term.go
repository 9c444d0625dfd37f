package main

import (
	"image/color"
	"unicode"

	ansi "github.com/gookit/color"

	"github.com/submersibletoaster/captcha/recognize"
	"github.com/submersibletoaster/captcha/tesseract"
)

func newOCREngine(lang string) (recognize.Engine, error) {
	e, err := tesseract.New(lang)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// printCompared writes got with each character colored by whether it matches
// the same position of want.
func printCompared(got, want string) {
	w := []rune(want)
	for i, r := range []rune(got) {
		c := mismatchColor
		if i < len(w) && unicode.ToUpper(w[i]) == unicode.ToUpper(r) {
			c = matchColor
		}
		ansi.NewRGBStyle(toANSI(c)).Print(string(r))
	}
}

func toANSI(in color.Color) (out ansi.RGBColor) {
	r, g, b, _ := in.RGBA()
	out = ansi.RGBColor{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 0}
	return
}
