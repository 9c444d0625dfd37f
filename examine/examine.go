// Package examine finds character sized blobs in a captcha image.
//
// The pipeline is binarize, label 8-connected ink components, keep the
// external ones, reject boxes that are too small to be a character, sort
// left to right and crop.
package examine

import (
	"image"
	"image/draw"
	"sort"

	log "github.com/sirupsen/logrus"
)

// Box is the bounding box of a connected component.
type Box struct {
	X, Y, W, H int
}

func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// Boxes sorts by ascending X, then Y.
type Boxes []Box

func (s Boxes) Len() int      { return len(s) }
func (s Boxes) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s Boxes) Less(i, j int) bool {
	if s[i].X != s[j].X {
		return s[i].X < s[j].X
	}
	return s[i].Y < s[j].Y
}

// Segment is one character candidate: its box on the source and the binary
// crop, anchored at the origin.
type Segment struct {
	Box   Box
	Image *image.Gray
}

// Options bounds the size of a character. A box survives only when it is
// strictly wider than MinWidth and strictly taller than MinHeight.
type Options struct {
	MinWidth  int
	MinHeight int
	Mode      Mode
}

func DefaultOptions() Options {
	return Options{MinWidth: 10, MinHeight: 20, Mode: Plain}
}

// Characters binarizes img with opts.Mode and segments the result.
func Characters(img image.Image, opts Options) []Segment {
	return Split(Binarize(img, opts.Mode), opts)
}

// Split crops every character sized component of bin in reading order. An
// image without such components yields an empty slice.
func Split(bin *image.Gray, opts Options) []Segment {
	boxes := Components(bin)
	kept := make(Boxes, 0, len(boxes))
	for _, b := range boxes {
		if b.W > opts.MinWidth && b.H > opts.MinHeight {
			kept = append(kept, b)
		}
	}
	sort.Sort(kept)
	log.Debugf("segment: %d components, %d character sized", len(boxes), len(kept))

	out := make([]Segment, 0, len(kept))
	for _, b := range kept {
		out = append(out, Segment{Box: b, Image: Crop(bin, b.Rect())})
	}
	return out
}

// Components labels 8-connected Ink regions and returns the boxes of the
// external ones. A region sitting inside a hole of another region, like the
// dot in a dotted zero, is not external and is dropped.
func Components(bin *image.Gray) []Box {
	b := bin.Bounds()
	w, h := b.Dx(), b.Dy()
	ink := func(x, y int) bool {
		return bin.GrayAt(b.Min.X+x, b.Min.Y+y).Y >= 0x80
	}
	outside := outsideBackground(w, h, ink)

	var out []Box
	seen := make([]bool, w*h)
	stack := make([]image.Point, 0, 64)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if seen[y*w+x] || !ink(x, y) {
				continue
			}
			minX, minY, maxX, maxY := x, y, x, y
			external := false
			seen[y*w+x] = true
			stack = append(stack[:0], image.Pt(x, y))
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				minX, maxX = min(minX, p.X), max(maxX, p.X)
				minY, maxY = min(minY, p.Y), max(maxY, p.Y)
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := p.X+dx, p.Y+dy
						if nx < 0 || ny < 0 || nx >= w || ny >= h {
							external = true
							continue
						}
						if !ink(nx, ny) {
							if (dx == 0 || dy == 0) && outside[ny*w+nx] {
								external = true
							}
							continue
						}
						if !seen[ny*w+nx] {
							seen[ny*w+nx] = true
							stack = append(stack, image.Pt(nx, ny))
						}
					}
				}
			}
			if external {
				out = append(out, Box{X: minX, Y: minY, W: maxX - minX + 1, H: maxY - minY + 1})
			}
		}
	}
	return out
}

// outsideBackground flood fills, with 4-connectivity, the background that is
// reachable from the image border. Background not reached is a hole.
func outsideBackground(w, h int, ink func(x, y int) bool) []bool {
	outside := make([]bool, w*h)
	var stack []image.Point
	push := func(x, y int) {
		if x < 0 || y < 0 || x >= w || y >= h || outside[y*w+x] || ink(x, y) {
			return
		}
		outside[y*w+x] = true
		stack = append(stack, image.Pt(x, y))
	}
	for x := 0; x < w; x++ {
		push(x, 0)
		push(x, h-1)
	}
	for y := 0; y < h; y++ {
		push(0, y)
		push(w-1, y)
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		push(p.X+1, p.Y)
		push(p.X-1, p.Y)
		push(p.X, p.Y+1)
		push(p.X, p.Y-1)
	}
	return outside
}

// Crop copies r out of g into a new image anchored at the origin.
func Crop(g *image.Gray, r image.Rectangle) *image.Gray {
	r = r.Add(g.Bounds().Min).Intersect(g.Bounds())
	out := image.NewGray(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), g, r.Min, draw.Src)
	return out
}
