package framebuf

import "strings"

// Text draws s with its top-left corner at (x, y), each font pixel scaled to
// a scale by scale square. Characters advance by the glyph width plus one
// pixel, lines by the glyph height. Runes above 0xff are drawn as '?'.
// Characters entirely outside the framebuffer are skipped.
func (fb *Framebuffer) Text(s string, x, y int, c Color, scale int) {
	scale = max(scale, 1)
	f := fb.font
	gw, gh := f.width*scale, f.height*scale
	w, h := fb.Width(), fb.Height()
	for _, line := range strings.Split(s, "\n") {
		if y < h && y+gh > 0 {
			i := 0
			for _, r := range line {
				cx := x + i*(f.width+1)*scale
				i++
				if cx >= w {
					break
				}
				if cx+gw <= 0 {
					continue
				}
				if r > 0xff {
					r = '?'
				}
				fb.glyph(f, byte(r), cx, y, c, scale)
			}
		}
		y += gh
	}
}

func (fb *Framebuffer) glyph(f *BitmapFont, ch byte, x, y int, c Color, scale int) {
	for col := 0; col < f.width; col++ {
		for row := 0; row < f.height; row++ {
			if !f.set(ch, col, row) {
				continue
			}
			if scale == 1 {
				fb.SetPixel(x+col, y+row, c)
			} else {
				fb.FillRect(x+col*scale, y+row*scale, scale, scale, c)
			}
		}
	}
}
