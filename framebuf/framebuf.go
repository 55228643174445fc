// Package framebuf implements the packed 200x96 monochrome raster used by the
// Aurora G2 e-paper panel, along with the drawing primitives and the bitmap
// font renderer that build images for it.
//
// Pixels are stored one bit each, 25 bytes per row. Within a row, pixel x
// lives in byte x/8 at bit x%8 (least significant bit first). A set bit is
// black ink, a clear bit is white paper.
package framebuf

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Panel geometry.
const (
	Width  = 200
	Height = 96
	Stride = Width / 8
	Size   = Stride * Height
)

// Frame is a complete packed panel image.
type Frame [Size]byte

// Row returns the Stride bytes of row y. It panics if y is not in [0, Height).
func (f *Frame) Row(y int) []byte {
	return f[y*Stride : (y+1)*Stride]
}

// Pixel reports the color of the physical pixel (x, y).
func (f *Frame) Pixel(x, y int) (Color, bool) {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return White, false
	}
	if f[y*Stride+x/8]&(1<<(x%8)) != 0 {
		return Black, true
	}
	return White, true
}

func (f *Frame) set(x, y int, c Color) {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return
	}
	if c == Black {
		f[y*Stride+x/8] |= 1 << (x % 8)
	} else {
		f[y*Stride+x/8] &^= 1 << (x % 8)
	}
}

// Color is the state of a single pixel.
type Color uint8

const (
	White Color = 0
	Black Color = 1
)

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// Rotation is the clockwise rotation, in degrees, applied to logical
// coordinates before they reach the panel.
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// ErrInvalidRotation is returned for rotations that are not a multiple of 90
// degrees.
var ErrInvalidRotation = errors.New("framebuf: rotation must be a multiple of 90 degrees")

// Framebuffer is a rotatable drawing surface over a Frame.
//
// A Framebuffer is not safe for concurrent use.
type Framebuffer struct {
	pix      Frame
	rotation Rotation
	font     *BitmapFont
}

// New returns a white framebuffer that renders text with font. A nil font
// selects DefaultFont.
func New(font *BitmapFont) *Framebuffer {
	if font == nil {
		font = DefaultFont()
	}
	return &Framebuffer{font: font}
}

// Font returns the font used by Text.
func (fb *Framebuffer) Font() *BitmapFont {
	return fb.font
}

// SetFont replaces the font used by Text. A nil font is ignored.
func (fb *Framebuffer) SetFont(font *BitmapFont) {
	if font != nil {
		fb.font = font
	}
}

// SetRotation changes how logical coordinates map onto the panel. The pixel
// contents are not touched.
func (fb *Framebuffer) SetRotation(r Rotation) error {
	n := ((int(r) % 360) + 360) % 360
	if n%90 != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRotation, r)
	}
	fb.rotation = Rotation(n)
	return nil
}

func (fb *Framebuffer) Rotation() Rotation {
	return fb.rotation
}

// Width returns the logical width, which depends on the rotation.
func (fb *Framebuffer) Width() int {
	if fb.rotation == Rotate90 || fb.rotation == Rotate270 {
		return Height
	}
	return Width
}

// Height returns the logical height, which depends on the rotation.
func (fb *Framebuffer) Height() int {
	if fb.rotation == Rotate90 || fb.rotation == Rotate270 {
		return Width
	}
	return Height
}

// Frame returns a copy of the packed pixels.
func (fb *Framebuffer) Frame() Frame {
	return fb.pix
}

// SetFrame replaces the packed pixels.
func (fb *Framebuffer) SetFrame(f Frame) {
	fb.pix = f
}

// physical maps logical coordinates to panel coordinates.
func (fb *Framebuffer) physical(x, y int) (int, int) {
	switch fb.rotation {
	case Rotate90:
		return Width - 1 - y, x
	case Rotate180:
		return Width - 1 - x, Height - 1 - y
	case Rotate270:
		return y, Height - 1 - x
	}
	return x, y
}

// Pixel returns the color at logical (x, y). The boolean is false, and the
// color White, when the point lies outside the framebuffer.
func (fb *Framebuffer) Pixel(x, y int) (Color, bool) {
	px, py := fb.physical(x, y)
	return fb.pix.Pixel(px, py)
}

// SetPixel sets logical (x, y) to c. Points outside the framebuffer are
// ignored.
func (fb *Framebuffer) SetPixel(x, y int, c Color) {
	px, py := fb.physical(x, y)
	fb.pix.set(px, py, c)
}

// ColorModel returns image1bit.BitModel. image1bit.On is white paper and
// image1bit.Off is black ink.
func (fb *Framebuffer) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds returns the logical bounds.
func (fb *Framebuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, fb.Width(), fb.Height())
}

func (fb *Framebuffer) At(x, y int) color.Color {
	c, _ := fb.Pixel(x, y)
	return c.Bit()
}

func (fb *Framebuffer) Set(x, y int, c color.Color) {
	fb.SetPixel(x, y, ColorOf(c))
}

// Bit converts c to its image1bit equivalent.
func (c Color) Bit() image1bit.Bit {
	return image1bit.Bit(c == White)
}

// ColorOf maps an arbitrary color onto the panel. Mostly transparent and
// light colors are white, everything else is black.
func ColorOf(c color.Color) Color {
	if b, ok := c.(image1bit.Bit); ok {
		if b == image1bit.On {
			return White
		}
		return Black
	}
	if _, _, _, a := c.RGBA(); a < 0x8000 {
		return White
	}
	if image1bit.BitModel.Convert(c).(image1bit.Bit) == image1bit.On {
		return White
	}
	return Black
}
