package main

import (
	"bufio"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/AndreRenaud/aurora_eink/framebuf"
)

// printPreview writes the framebuffer as text. Terminals get two rows per
// line in half blocks, shrunk to fit; anything else gets one character per
// pixel.
func printPreview(w io.Writer, fb *framebuf.Framebuffer) error {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		step := 1
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
			for fb.Width()/step > cols {
				step++
			}
		}
		return halfBlocks(w, fb, step)
	}
	return ascii(w, fb)
}

func black(fb *framebuf.Framebuffer, x, y int) bool {
	c, ok := fb.Pixel(x, y)
	return ok && c == framebuf.Black
}

func halfBlocks(w io.Writer, fb *framebuf.Framebuffer, step int) error {
	bw := bufio.NewWriter(w)
	for y := 0; y < fb.Height(); y += 2 * step {
		for x := 0; x < fb.Width(); x += step {
			top, bottom := black(fb, x, y), black(fb, x, y+step)
			switch {
			case top && bottom:
				bw.WriteRune('█')
			case top:
				bw.WriteRune('▀')
			case bottom:
				bw.WriteRune('▄')
			default:
				bw.WriteByte(' ')
			}
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func ascii(w io.Writer, fb *framebuf.Framebuffer) error {
	bw := bufio.NewWriter(w)
	for y := 0; y < fb.Height(); y++ {
		for x := 0; x < fb.Width(); x++ {
			if black(fb, x, y) {
				bw.WriteByte('#')
			} else {
				bw.WriteByte('.')
			}
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
