package framebuf

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/basicfont"
)

// testFont builds a 5x8 resource in which glyph 'A' is a solid block and
// glyph '|' is its first column only.
func testFont() []byte {
	data := make([]byte, 2+glyphCount*5)
	data[0], data[1] = 5, 8
	for col := 0; col < 5; col++ {
		data[2+int('A')*5+col] = 0xff
	}
	data[2+int('|')*5] = 0xff
	return data
}

func TestParseFont(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{name: "valid", data: testFont()},
		{name: "empty", data: nil, wantErr: true},
		{name: "header only", data: []byte{5, 8}, wantErr: true},
		{name: "zero width", data: []byte{0, 8}, wantErr: true},
		{name: "truncated", data: testFont()[:100], wantErr: true},
		{name: "trailing bytes", data: append(testFont(), 0), wantErr: true},
		{name: "tall glyphs need two bytes", data: append([]byte{5, 9}, make([]byte, glyphCount*5)...), wantErr: true},
		{name: "tall glyphs", data: append([]byte{5, 9}, make([]byte, glyphCount*5*2)...)},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, err := ParseFont(tt.data)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidFontResource)
				assert.Nil(t, f)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.data, f.Resource())
		})
	}
}

func TestLoadFont(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "font5x8.bin")
	require.NoError(t, os.WriteFile(good, testFont(), 0o600))
	f, err := LoadFont(good)
	require.NoError(t, err)
	assert.Equal(t, 5, f.Width())
	assert.Equal(t, 8, f.Height())

	bad := filepath.Join(dir, "bad.bin")
	require.NoError(t, os.WriteFile(bad, []byte{5, 8, 1, 2, 3}, 0o600))
	_, err = LoadFont(bad)
	assert.ErrorIs(t, err, ErrInvalidFontResource)

	_, err = LoadFont(filepath.Join(dir, "missing.bin"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultFont(t *testing.T) {
	t.Parallel()

	f := DefaultFont()
	assert.Equal(t, basicfont.Face7x13.Width, f.Width())
	assert.Equal(t, basicfont.Face7x13.Ascent+basicfont.Face7x13.Descent, f.Height())

	inked := func(ch byte) int {
		n := 0
		for col := 0; col < f.Width(); col++ {
			for row := 0; row < f.Height(); row++ {
				if f.set(ch, col, row) {
					n++
				}
			}
		}
		return n
	}
	assert.Zero(t, inked(' '))
	assert.Zero(t, inked(0x01), "control characters are blank")
	assert.NotZero(t, inked('A'))
	assert.Zero(t, inked(0x7f), "DEL is blank")
	// Latin-1 is outside the face and falls back to its replacement glyph.
	assert.NotZero(t, inked(0xe9))
	for col := 0; col < f.Width(); col++ {
		for row := 0; row < f.Height(); row++ {
			require.Equal(t, f.set(0xe9, col, row), f.set(0xff, col, row))
		}
	}

	// The resource form round-trips through the parser.
	g, err := ParseFont(f.Resource())
	require.NoError(t, err)
	assert.Equal(t, f, g)
}

func TestFontFromFaceGlyphStride(t *testing.T) {
	t.Parallel()

	// Glyph slots are Ascent+Descent rows tall, not Height.
	mask := image.NewAlpha(image.Rect(0, 0, 3, 8))
	mask.SetAlpha(1, 4, color.Alpha{A: 0xff})
	face := &basicfont.Face{
		Advance: 4,
		Width:   3,
		Height:  5,
		Ascent:  3,
		Descent: 1,
		Mask:    mask,
		Ranges:  []basicfont.Range{{Low: 'A', High: 'C', Offset: 0}},
	}
	f, err := FontFromFace(face)
	require.NoError(t, err)
	assert.Equal(t, 4, f.Height())
	assert.True(t, f.set('B', 1, 0))
	assert.False(t, f.set('A', 1, 1))
	assert.False(t, f.set(0xe9, 1, 0), "no replacement glyph in this face")

	_, err = FontFromFace(&basicfont.Face{Width: 3, Mask: mask})
	assert.ErrorIs(t, err, ErrInvalidFontResource)
}

func TestTextWidth(t *testing.T) {
	t.Parallel()

	f, err := ParseFont(testFont())
	require.NoError(t, err)
	assert.Equal(t, 0, f.TextWidth("", 1))
	assert.Equal(t, 5, f.TextWidth("A", 1))
	assert.Equal(t, 17, f.TextWidth("AAA", 1))
	assert.Equal(t, 34, f.TextWidth("A\nAAA", 2))
}
