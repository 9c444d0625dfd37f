package examine

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	log "github.com/sirupsen/logrus"
)

// Ink is the value of foreground pixels in a binary image; background is 0.
const Ink = 0xff

// Mode selects a binarization strategy.
type Mode int

const (
	// Plain is a global Otsu threshold followed by a 3x3 median denoise.
	Plain Mode = iota
	// Adaptive is a local mean threshold followed by a morphological open
	// and close. It suits OCR engines that choke on speckle.
	Adaptive
)

func (m Mode) String() string {
	if m == Adaptive {
		return "adaptive"
	}
	return "plain"
}

// AdaptiveBlock and AdaptiveC parameterize the Adaptive mode: a pixel is ink
// when it is at least AdaptiveC darker than the mean of its block.
const (
	AdaptiveBlock = 11
	AdaptiveC     = 2
)

// Binarize turns img into a binary image with dark text marked as Ink.
func Binarize(img image.Image, mode Mode) *image.Gray {
	gray := Grayscale(img)
	if mode == Adaptive {
		bin := adaptiveThreshold(gray, AdaptiveBlock, AdaptiveC)
		return Close(Open(bin))
	}
	t := Otsu(gray)
	log.Debugf("otsu threshold %d", t)
	return median(threshold(gray, t))
}

// Grayscale converts img to an 8-bit gray image anchored at the origin.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	return flatten(effect.Grayscale(img))
}

// Otsu finds the threshold maximizing between-class variance. Pixels at or
// below it belong to the dark class.
func Otsu(gray *image.Gray) uint8 {
	var hist [256]int
	b := gray.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			hist[gray.GrayAt(x, y).Y]++
		}
	}
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 127
	}

	var sum float64
	for i, n := range hist {
		sum += float64(i) * float64(n)
	}
	var sumB, best float64
	var wB int
	t := uint8(0)
	for i := 0; i < 256; i++ {
		wB += hist[i]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(i) * float64(hist[i])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			t = uint8(i)
		}
	}
	return t
}

// threshold marks pixels at or below t as Ink.
func threshold(gray *image.Gray, t uint8) *image.Gray {
	if t == 0xff {
		out := image.NewGray(gray.Bounds())
		for i := range out.Pix {
			out.Pix[i] = Ink
		}
		return out
	}
	// segment.Threshold whitens everything >= level, which is the background
	bg := segment.Threshold(gray, t+1)
	return Invert(bg)
}

func adaptiveThreshold(gray *image.Gray, block int, c int) *image.Gray {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	// summed area table with a zero row and column
	sat := make([]int, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		row := 0
		for x := 0; x < w; x++ {
			row += int(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			sat[(y+1)*(w+1)+x+1] = sat[y*(w+1)+x+1] + row
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	r := block / 2
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-r), min(h, y+r+1)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-r), min(w, x+r+1)
			area := (x1 - x0) * (y1 - y0)
			s := sat[y1*(w+1)+x1] - sat[y0*(w+1)+x1] - sat[y1*(w+1)+x0] + sat[y0*(w+1)+x0]
			mean := s / area
			if int(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y) <= mean-c {
				out.Pix[y*out.Stride+x] = Ink
			}
		}
	}
	return out
}

// Open removes ink specks smaller than the 3x3 structuring element.
func Open(bin *image.Gray) *image.Gray {
	return flatten(effect.Dilate(effect.Erode(bin, 1), 1))
}

// Close fills pinholes and hairline gaps in strokes.
func Close(bin *image.Gray) *image.Gray {
	return flatten(effect.Erode(effect.Dilate(bin, 1), 1))
}

func median(bin *image.Gray) *image.Gray {
	return flatten(effect.Median(bin, 1))
}

// Invert swaps ink and background.
func Invert(g *image.Gray) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Pix[y*out.Stride+x] = 0xff - g.GrayAt(b.Min.X+x, b.Min.Y+y).Y
		}
	}
	return out
}

// flatten copies the red channel, equal to the others in a gray image, into
// a gray image anchored at the origin.
func flatten(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out.SetGray(x, y, color.Gray{Y: uint8(r >> 8)})
		}
	}
	return out
}
