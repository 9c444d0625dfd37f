package distort

import (
	"image"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
)

// Interpolation selects how Wave resamples.
type Interpolation int

const (
	Bilinear Interpolation = iota
	Nearest
)

func (i Interpolation) String() string {
	if i == Nearest {
		return "nearest"
	}
	return "bilinear"
}

// WaveOptions parameterizes the warp. Destination (x, y) samples the source at
// (x + AmpX*sin(y/PeriodX), y + AmpY*cos(x/PeriodY)). A non-positive period
// disables displacement along that axis.
type WaveOptions struct {
	AmpX, AmpY       float64
	PeriodX, PeriodY float64
	Interpolation    Interpolation
}

func DefaultWave() WaveOptions {
	return WaveOptions{AmpX: 1.5, AmpY: 1, PeriodX: 12, PeriodY: 15, Interpolation: Bilinear}
}

// Wave remaps src through the sinusoidal field. The result always has the
// dimensions of src and every pixel set.
func Wave(src image.Image, opts WaveOptions) *image.RGBA {
	in := toRGBA(src)
	w, h := in.Rect.Dx(), in.Rect.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sx, sy := float64(x), float64(y)
			if opts.PeriodX > 0 {
				sx += opts.AmpX * math.Sin(float64(y)/opts.PeriodX)
			}
			if opts.PeriodY > 0 {
				sy += opts.AmpY * math.Cos(float64(x)/opts.PeriodY)
			}
			sx = clamp(sx, 0, float64(w-1))
			sy = clamp(sy, 0, float64(h-1))

			o := out.PixOffset(x, y)
			if opts.Interpolation == Nearest {
				i := in.PixOffset(int(sx), int(sy))
				copy(out.Pix[o:o+4], in.Pix[i:i+4])
				continue
			}
			bilinear(in, sx, sy, out.Pix[o:o+4])
		}
	}
	return out
}

// bilinear samples in at (sx, sy), reflecting the far neighbor back inside
// the image at the right and bottom edges.
func bilinear(in *image.RGBA, sx, sy float64, dst []uint8) {
	w, h := in.Rect.Dx(), in.Rect.Dy()
	x0, y0 := int(math.Floor(sx)), int(math.Floor(sy))
	fx, fy := sx-float64(x0), sy-float64(y0)
	x1, y1 := reflect(x0+1, w), reflect(y0+1, h)

	p00 := in.PixOffset(x0, y0)
	p10 := in.PixOffset(x1, y0)
	p01 := in.PixOffset(x0, y1)
	p11 := in.PixOffset(x1, y1)
	for c := 0; c < 4; c++ {
		top := float64(in.Pix[p00+c])*(1-fx) + float64(in.Pix[p10+c])*fx
		bot := float64(in.Pix[p01+c])*(1-fx) + float64(in.Pix[p11+c])*fx
		dst[c] = uint8(math.Round(top*(1-fy) + bot*fy))
	}
}

func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	if i >= n {
		return 2*(n-1) - i
	}
	return i
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// Blur softens resampling artifacts with a Gaussian of the given sigma.
func Blur(src image.Image, sigma float64) *image.RGBA {
	if sigma <= 0 {
		return toRGBA(src)
	}
	return toRGBA(imaging.Blur(src, sigma))
}

// toRGBA returns img as an *image.RGBA anchored at the origin, copying only
// when it has to.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
