package epd

import (
	"fmt"
	"image"
	"image/draw"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"

	"github.com/AndreRenaud/aurora_eink/framebuf"
)

// Dev is a 200x96 Aurora Mb panel on a G2 controller: a framebuffer to draw
// into plus the refresh engine that puts it on the glass.
//
// Dev is not safe for concurrent use. Callers sharing one between goroutines
// must serialize every call, drawing included, themselves.
type Dev struct {
	*framebuf.Framebuffer

	cog     *COG
	refresh *Refresher
}

// NewFromSPI connects to the controller on p and returns a Dev for it.
func NewFromSPI(p spi.Port, cs, rst, discharge gpio.PinOut, busy gpio.PinIn, opts *Opts) (*Dev, error) {
	o := opts.withDefaults()
	c, err := p.Connect(o.MaxHz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("epd: connect: %w", err)
	}
	return New(c, cs, rst, discharge, busy, &o)
}

// New returns a Dev using an already configured SPI connection. The panel is
// left powered off and is assumed to show a white image.
func New(c conn.Conn, cs, rst, discharge gpio.PinOut, busy gpio.PinIn, opts *Opts) (*Dev, error) {
	o := opts.withDefaults()
	cog, err := NewCOG(c, cs, rst, discharge, busy, &o)
	if err != nil {
		return nil, err
	}
	fb := framebuf.New(o.Font)
	if err := fb.SetRotation(o.Rotation); err != nil {
		return nil, err
	}
	return &Dev{
		Framebuffer: fb,
		cog:         cog,
		refresh:     NewRefresher(cog, &o),
	}, nil
}

// COG returns the protocol driver, for diagnostics.
func (d *Dev) COG() *COG {
	return d.cog
}

func (d *Dev) Refresher() *Refresher {
	return d.refresh
}

func (d *Dev) PowerState() PowerState {
	return d.cog.State()
}

// ChangeImage puts the framebuffer on the panel with a full, ghost free
// refresh.
func (d *Dev) ChangeImage() error {
	f := d.Frame()
	return d.refresh.ChangeImage(&f)
}

// UpdateImage puts the framebuffer on the panel with a differential refresh.
func (d *Dev) UpdateImage() error {
	f := d.Frame()
	return d.refresh.UpdateImage(&f)
}

// UpdateImagePartial is UpdateImage limited to the given physical rows.
func (d *Dev) UpdateImagePartial(rows ...int) error {
	f := d.Frame()
	return d.refresh.UpdateImagePartial(&f, rows)
}

// Previous returns the image the panel was last driven to.
func (d *Dev) Previous() framebuf.Frame {
	return d.refresh.Previous()
}

func (d *Dev) SetFrametimeByTemp(celsius int) {
	d.refresh.SetFrametimeByTemp(celsius)
}

func (d *Dev) FrameRepeat() time.Duration {
	return d.refresh.FrameRepeat()
}

func (d *Dev) SetFrameIters(n int) {
	d.refresh.SetFrameIters(n)
}

func (d *Dev) EnableFastMode() error {
	return d.refresh.EnableFastMode()
}

func (d *Dev) DisableFastMode() error {
	return d.refresh.DisableFastMode()
}

func (d *Dev) FastMode() bool {
	return d.refresh.FastMode()
}

// Draw copies src into dstRect of the framebuffer and runs a full refresh.
func (d *Dev) Draw(dstRect image.Rectangle, src image.Image, sp image.Point) error {
	draw.Draw(d.Framebuffer, dstRect, src, sp, draw.Src)
	return d.ChangeImage()
}

// Halt clears the panel to white and leaves it powered off.
func (d *Dev) Halt() error {
	d.Fill(framebuf.White)
	if err := d.ChangeImage(); err != nil {
		return err
	}
	return d.DisableFastMode()
}

// Close leaves fast mode so the panel ends up powered off. The displayed
// image is kept. The SPI port is owned by the caller and is not closed.
func (d *Dev) Close() error {
	return d.DisableFastMode()
}

func (d *Dev) String() string {
	return fmt.Sprintf("epd.Dev{%s, Width: %d, Height: %d}", d.cog.c, framebuf.Width, framebuf.Height)
}

var (
	_ display.Drawer = &Dev{}
	_ EPD            = &Dev{}
)
