package framebuf

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/image/font/basicfont"
)

// glyphCount is the number of glyphs in a font resource, one per byte value.
const glyphCount = 256

// ErrInvalidFontResource is returned when a font resource is malformed or its
// header does not match its length.
var ErrInvalidFontResource = errors.New("framebuf: invalid font resource")

// BitmapFont is a fixed width font with one glyph per byte value.
//
// The resource form is two header bytes, glyph width and glyph height,
// followed by 256 glyphs. Each glyph is width columns, left to right, and
// each column is ceil(height/8) bytes. Bit 0 of a column's first byte is the
// top row.
type BitmapFont struct {
	width    int
	height   int
	colBytes int
	glyphs   []byte
}

// ParseFont validates and wraps a font resource. The data is copied.
func ParseFont(data []byte) (*BitmapFont, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: %d byte resource is shorter than its header", ErrInvalidFontResource, len(data))
	}
	w, h := int(data[0]), int(data[1])
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: empty %dx%d glyphs", ErrInvalidFontResource, w, h)
	}
	colBytes := (h + 7) / 8
	want := 2 + glyphCount*w*colBytes
	if len(data) != want {
		return nil, fmt.Errorf("%w: header declares %dx%d glyphs (%d bytes), resource has %d bytes",
			ErrInvalidFontResource, w, h, want, len(data))
	}
	return &BitmapFont{
		width:    w,
		height:   h,
		colBytes: colBytes,
		glyphs:   append([]byte(nil), data[2:]...),
	}, nil
}

// LoadFont reads a font resource from path.
func LoadFont(path string) (*BitmapFont, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("framebuf: load font: %w", err)
	}
	f, err := ParseFont(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// FontFromFace rasterizes the first 256 code points of a basicfont face.
// Code points from 0x80 up that the face does not cover get its U+FFFD
// glyph, if it has one; uncovered control characters are left blank.
func FontFromFace(face *basicfont.Face) (*BitmapFont, error) {
	if face == nil || face.Mask == nil {
		return nil, fmt.Errorf("%w: nil face", ErrInvalidFontResource)
	}
	// Each glyph occupies Ascent+Descent rows of the mask.
	height := face.Ascent + face.Descent
	if face.Width <= 0 || face.Width > 255 || height <= 0 || height > 255 {
		return nil, fmt.Errorf("%w: unsupported %dx%d face", ErrInvalidFontResource, face.Width, height)
	}
	f := &BitmapFont{
		width:    face.Width,
		height:   height,
		colBytes: (height + 7) / 8,
	}
	f.glyphs = make([]byte, glyphCount*f.width*f.colBytes)
	replacement, hasReplacement := faceIndex(face, '\uFFFD')
	for ch := 0; ch < glyphCount; ch++ {
		idx, ok := faceIndex(face, rune(ch))
		if !ok && ch >= 0x80 && hasReplacement {
			idx, ok = replacement, true
		}
		if !ok {
			continue
		}
		top := idx * height
		for col := 0; col < f.width; col++ {
			for row := 0; row < f.height; row++ {
				if _, _, _, a := face.Mask.At(col, top+row).RGBA(); a >= 0x8000 {
					f.glyphs[f.offset(byte(ch), col)+row/8] |= 1 << (row % 8)
				}
			}
		}
	}
	return f, nil
}

func faceIndex(face *basicfont.Face, r rune) (int, bool) {
	for _, rg := range face.Ranges {
		if r >= rg.Low && r < rg.High {
			return rg.Offset + int(r-rg.Low), true
		}
	}
	return 0, false
}

// DefaultFont returns a fresh copy of basicfont.Face7x13 as a BitmapFont.
func DefaultFont() *BitmapFont {
	f, err := FontFromFace(basicfont.Face7x13)
	if err != nil {
		panic(err)
	}
	return f
}

// Width is the glyph width in pixels, not counting the one pixel gap Text
// leaves between characters.
func (f *BitmapFont) Width() int { return f.width }

func (f *BitmapFont) Height() int { return f.height }

// Resource encodes the font back into its resource form.
func (f *BitmapFont) Resource() []byte {
	out := make([]byte, 0, 2+len(f.glyphs))
	out = append(out, byte(f.width), byte(f.height))
	return append(out, f.glyphs...)
}

func (f *BitmapFont) offset(ch byte, col int) int {
	return (int(ch)*f.width + col) * f.colBytes
}

// set reports whether pixel (col, row) of glyph ch is inked.
func (f *BitmapFont) set(ch byte, col, row int) bool {
	return f.glyphs[f.offset(ch, col)+row/8]&(1<<(row%8)) != 0
}

// TextWidth returns the width in pixels of the longest line of s when drawn
// at the given scale.
func (f *BitmapFont) TextWidth(s string, scale int) int {
	scale = max(scale, 1)
	longest, n := 0, 0
	for _, r := range s {
		if r == '\n' {
			n = 0
			continue
		}
		n++
		longest = max(longest, n)
	}
	if longest == 0 {
		return 0
	}
	return (longest*(f.width+1) - 1) * scale
}
