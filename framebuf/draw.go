package framebuf

// Fill sets every pixel to c.
func (fb *Framebuffer) Fill(c Color) {
	var v byte
	if c == Black {
		v = 0xff
	}
	for i := range fb.pix {
		fb.pix[i] = v
	}
}

// FillRect fills the w by h rectangle whose top-left corner is (x, y). The
// rectangle is clipped to the framebuffer.
func (fb *Framebuffer) FillRect(x, y, w, h int, c Color) {
	x0, y0 := max(x, 0), max(y, 0)
	x1, y1 := min(x+w, fb.Width()), min(y+h, fb.Height())
	for yy := y0; yy < y1; yy++ {
		for xx := x0; xx < x1; xx++ {
			fb.SetPixel(xx, yy, c)
		}
	}
}

// HLine draws a horizontal line of w pixels starting at (x, y).
func (fb *Framebuffer) HLine(x, y, w int, c Color) {
	fb.FillRect(x, y, w, 1, c)
}

// VLine draws a vertical line of h pixels starting at (x, y).
func (fb *Framebuffer) VLine(x, y, h int, c Color) {
	fb.FillRect(x, y, 1, h, c)
}

// Rect draws the outline of a w by h rectangle, or fills it when fill is set.
func (fb *Framebuffer) Rect(x, y, w, h int, c Color, fill bool) {
	if w <= 0 || h <= 0 {
		return
	}
	if fill {
		fb.FillRect(x, y, w, h, c)
		return
	}
	fb.HLine(x, y, w, c)
	fb.HLine(x, y+h-1, w, c)
	fb.VLine(x, y, h, c)
	fb.VLine(x+w-1, y, h, c)
}

// Line draws a line from (x0, y0) to (x1, y1) inclusive using Bresenham's
// algorithm.
func (fb *Framebuffer) Line(x0, y0, x1, y1 int, c Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		fb.SetPixel(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// Circle draws the outline of a circle of radius r centred on (cx, cy) with
// the midpoint algorithm.
func (fb *Framebuffer) Circle(cx, cy, r int, c Color) {
	if r < 0 {
		return
	}
	x, y := r, 0
	d := 1 - r
	for x >= y {
		fb.SetPixel(cx+x, cy+y, c)
		fb.SetPixel(cx+y, cy+x, c)
		fb.SetPixel(cx-y, cy+x, c)
		fb.SetPixel(cx-x, cy+y, c)
		fb.SetPixel(cx-x, cy-y, c)
		fb.SetPixel(cx-y, cy-x, c)
		fb.SetPixel(cx+y, cy-x, c)
		fb.SetPixel(cx+x, cy-y, c)
		y++
		if d < 0 {
			d += 2*y + 1
		} else {
			x--
			d += 2*(y-x) + 1
		}
	}
}

// Scroll shifts the contents by (dx, dy) logical pixels. The area uncovered
// by the shift is cleared to white.
func (fb *Framebuffer) Scroll(dx, dy int) {
	if dx == 0 && dy == 0 {
		return
	}
	src := *fb
	fb.pix = Frame{}
	w, h := fb.Width(), fb.Height()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if c, ok := src.Pixel(x-dx, y-dy); ok && c == Black {
				fb.SetPixel(x, y, Black)
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
