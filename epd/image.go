package epd

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/MaxHalford/halfgone"
	"github.com/disintegration/imaging"

	"github.com/AndreRenaud/aurora_eink/framebuf"
)

// Render draws img over the whole of fb. Images of a different size are
// scaled to fit, keeping their aspect ratio, on a white background. Images
// with intermediate shades are dithered; pure black and white images are
// copied as they are.
func Render(fb *framebuf.Framebuffer, img image.Image) {
	bounds := fb.Bounds()
	gray := image.NewGray(bounds)
	draw.Draw(gray, bounds, &image.Uniform{color.White}, image.Point{}, draw.Src)

	src := img
	if img.Bounds().Size() != bounds.Size() {
		src = imaging.Fit(img, bounds.Dx(), bounds.Dy(), imaging.Lanczos)
	}
	draw.Draw(gray, bounds, src, src.Bounds().Min, draw.Over)

	if !bilevel(gray) {
		gray = halfgone.FloydSteinbergDitherer{}.Apply(gray)
	}
	draw.Draw(fb, bounds, gray, image.Point{}, draw.Src)
}

func bilevel(g *image.Gray) bool {
	for _, v := range g.Pix {
		if v != 0 && v != 0xff {
			return false
		}
	}
	return true
}

// UpdateDisplay renders img into the framebuffer and refreshes the panel:
// with UpdateImage when partial is set, with ChangeImage otherwise.
func (d *Dev) UpdateDisplay(img image.Image, partial bool) error {
	Render(d.Framebuffer, img)
	if partial {
		return d.UpdateImage()
	}
	return d.ChangeImage()
}
