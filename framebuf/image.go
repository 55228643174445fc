package framebuf

import (
	"errors"
	"fmt"
	"image"
)

// ErrImageSize is returned by FrameFromImage for images that are not exactly
// Width by Height pixels.
var ErrImageSize = errors.New("framebuf: image must be 200x96")

// DrawImage copies img into the framebuffer with the image's top-left pixel
// at logical (x, y). Each source pixel is sampled individually: transparent
// or light pixels become white, anything else black. The parts of img that
// fall outside the framebuffer are dropped.
func (fb *Framebuffer) DrawImage(img image.Image, x, y int) {
	b := img.Bounds()
	for sy := b.Min.Y; sy < b.Max.Y; sy++ {
		dy := y + sy - b.Min.Y
		if dy < 0 || dy >= fb.Height() {
			continue
		}
		for sx := b.Min.X; sx < b.Max.X; sx++ {
			dx := x + sx - b.Min.X
			if dx < 0 || dx >= fb.Width() {
				continue
			}
			fb.SetPixel(dx, dy, ColorOf(img.At(sx, sy)))
		}
	}
}

// FrameFromImage packs a 200x96 monochrome image directly into the panel
// layout, ignoring any rotation. It is meant for pre-rendered bitmaps.
func FrameFromImage(img image.Image) (Frame, error) {
	var f Frame
	b := img.Bounds()
	if b.Dx() != Width || b.Dy() != Height {
		return f, fmt.Errorf("%w: got %dx%d", ErrImageSize, b.Dx(), b.Dy())
	}
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			if ColorOf(img.At(b.Min.X+x, b.Min.Y+y)) == Black {
				f[y*Stride+x/8] |= 1 << (x % 8)
			}
		}
	}
	return f, nil
}
