package epd

import (
	"fmt"

	"github.com/AndreRenaud/aurora_eink/framebuf"
)

// DotCode is the 2-bit drive state sent for one pixel.
type DotCode uint8

const (
	NoChange    DotCode = 0
	NoChangeAlt DotCode = 1
	White       DotCode = 2
	Black       DotCode = 3
)

const (
	scanBytes = framebuf.Height / 4
	// A line payload is the border byte, the even pixels, one scan byte per
	// group of four rows, then the odd pixels.
	lineSize = 1 + framebuf.Stride + scanBytes + framebuf.Stride

	// borderDummy marks the border-only line that ends a buffer clean.
	borderDummy = 0xAA
)

// dotTable packs the nibbles for the four patterns of a pixel pair, selected
// by bits 0 and 2 of the input (see mapping). The even pass puts the bit 0
// pixel in the low half of the nibble and the odd pass in the high half, so
// the mixed patterns trade places between the two tables.
func dotTable(white, black DotCode, odd bool) uint32 {
	w, b := uint32(white&3), uint32(black&3)
	ww, wb, bw, bb := w<<2|w, w<<2|b, b<<2|w, b<<2|b
	if odd {
		return ww | bw<<4 | wb<<16 | bb<<20
	}
	return ww | wb<<4 | bw<<16 | bb<<20
}

// mapping looks up the nibble for bits 0 and 2 of in.
func mapping(table uint32, in byte) byte {
	return byte(table>>((uint32(in)&0x5)<<2)) & 0xF
}

func scanByte(row int) byte {
	return 3 << ((row % 4) * 2)
}

// encodeLine builds the payload driving every white pixel of pixels with
// white and every black pixel with black.
func encodeLine(buf *[lineSize]byte, row int, pixels []byte, white, black DotCode, border byte) {
	even := dotTable(white, black, false)
	odd := dotTable(white, black, true)

	buf[0] = border
	out := buf[1:]
	for i := 0; i < framebuf.Stride; i++ {
		p := pixels[framebuf.Stride-1-i]
		out[i] = mapping(even, p>>4)<<4 | mapping(even, p)
	}
	encodeScan(out[framebuf.Stride:framebuf.Stride+scanBytes], row)
	out = out[framebuf.Stride+scanBytes:]
	for i := 0; i < framebuf.Stride; i++ {
		p := pixels[i]
		out[i] = mapping(odd, p>>5) | mapping(odd, p>>1)<<4
	}
}

// encodeUpdateLine builds a payload that drives only the pixels that differ
// between prev and pixels, leaving the rest at no-change.
func encodeUpdateLine(buf *[lineSize]byte, row int, pixels, prev []byte, border byte) {
	buf[0] = border
	out := buf[1:]
	for i := 0; i < framebuf.Stride; i++ {
		a, b := prev[framebuf.Stride-1-i], pixels[framebuf.Stride-1-i]
		out[i] = ((a^b)&0x55)<<1 | (b & 0x55)
	}
	encodeScan(out[framebuf.Stride:framebuf.Stride+scanBytes], row)
	out = out[framebuf.Stride+scanBytes:]
	for i := 0; i < framebuf.Stride; i++ {
		a, b := prev[i], pixels[i]
		c := ((a ^ b) & 0xAA) | ((b & 0xAA) >> 1)
		c = (c&0x33)<<2 | (c>>2)&0x33
		c = (c&0x0F)<<4 | (c>>4)&0x0F
		out[i] = c
	}
}

// encodeScan selects row. Groups are sent last to first.
func encodeScan(scan []byte, row int) {
	for i := range scan {
		scan[i] = 0
	}
	scan[scanBytes-1-row/4] = scanByte(row)
}

func checkLine(row int, rows ...[]byte) error {
	if row < 0 || row >= framebuf.Height {
		return fmt.Errorf("%w: row %d", ErrInvalidLine, row)
	}
	for _, r := range rows {
		if len(r) != framebuf.Stride {
			return fmt.Errorf("%w: %d bytes, want %d", ErrInvalidLine, len(r), framebuf.Stride)
		}
	}
	return nil
}

func (d *COG) sendLine() error {
	if d.state != On && d.state != PoweringOff {
		return ErrPanelOff
	}
	if err := d.WriteRegister(regLineData, d.line[:]...); err != nil {
		return err
	}
	return d.WriteRegister(regOutputEnable, 0x07)
}

// WriteLine drives one row: white pixels get the white code, black pixels
// the black code.
func (d *COG) WriteLine(row int, pixels []byte, white, black DotCode, border byte) error {
	if err := checkLine(row, pixels); err != nil {
		return err
	}
	encodeLine(&d.line, row, pixels, white, black, border)
	return d.sendLine()
}

// UpdateLine drives one row differentially against prev. Unchanged pixels
// get a no-change code, changed ones their full white or black code.
func (d *COG) UpdateLine(row int, pixels, prev []byte, border byte) error {
	if err := checkLine(row, pixels, prev); err != nil {
		return err
	}
	encodeUpdateLine(&d.line, row, pixels, prev, border)
	return d.sendLine()
}

var blankRow [framebuf.Stride]byte

// writeDummyLine sends the border-only line that closes a buffer clean.
func (d *COG) writeDummyLine() error {
	return d.WriteLine(0, blankRow[:], NoChange, NoChange, borderDummy)
}

// CleanBuffer overwrites the controller's line buffer with no-change dots.
func (d *COG) CleanBuffer() error {
	for y := 0; y < framebuf.Height; y++ {
		if err := d.WriteLine(y, blankRow[:], NoChange, NoChange, 0); err != nil {
			return err
		}
	}
	return d.writeDummyLine()
}
