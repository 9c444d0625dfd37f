// Package learn turns character crops into feature vectors and classifies
// them with a small trained model.
package learn

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"

	"github.com/submersibletoaster/captcha/examine"
)

// Grid is the side of the square every crop is resampled to.
const Grid = 20

// Dim is the length of a feature vector.
const Dim = Grid * Grid

// Extract resamples img to Grid x Grid gray levels and flattens it row-major,
// scaled into [0,1]. The result always has Dim entries.
func Extract(img image.Image) []float64 {
	out := make([]float64, Dim)
	if img == nil || img.Bounds().Empty() {
		return out
	}
	gray := examine.Grayscale(img)
	small := resize.Resize(Grid, Grid, gray, resize.Bilinear)
	b := small.Bounds()
	for y := 0; y < Grid && y < b.Dy(); y++ {
		for x := 0; x < Grid && x < b.Dx(); x++ {
			g := color.GrayModel.Convert(small.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			out[y*Grid+x] = float64(g.Y) / 255
		}
	}
	return out
}
