package epd

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/AndreRenaud/aurora_eink/framebuf"
	"github.com/AndreRenaud/aurora_eink/internal/cogtest"
)

// fakePort hands out connections to a fake controller.
type fakePort struct {
	ctrl *cogtest.Controller
	hz   physic.Frequency
	mode spi.Mode
	bits int
}

func (p *fakePort) String() string { return "fakeport" }

func (p *fakePort) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	p.hz, p.mode, p.bits = f, mode, bits
	return fakeConn{p.ctrl}, nil
}

func (p *fakePort) LimitSpeed(f physic.Frequency) error { return nil }

type fakeConn struct {
	*cogtest.Controller
}

func (fakeConn) TxPackets(p []spi.Packet) error {
	return errors.New("fakeconn: packets not supported")
}

func TestDevChangeImage(t *testing.T) {
	t.Parallel()

	r := newRig()
	d := r.dev(t, r.opts(1))
	assert.Equal(t, image.Rect(0, 0, 200, 96), d.Bounds())

	d.Fill(framebuf.White)
	d.Rect(10, 10, 41, 21, framebuf.Black, true)
	require.NoError(t, d.ChangeImage())

	prev := d.Previous()
	c, _ := prev.Pixel(20, 20)
	assert.Equal(t, framebuf.Black, c)
	c, _ = prev.Pixel(60, 60)
	assert.Equal(t, framebuf.White, c)
	assert.Equal(t, d.Frame(), prev)
	assert.Equal(t, Off, d.PowerState())
	assert.Len(t, r.ctrl.Lines(), 4*framebuf.Height+framebuf.Height+1)
}

func TestDevUpdateImagePartial(t *testing.T) {
	t.Parallel()

	r := newRig()
	d := r.dev(t, r.opts(1))
	d.Text("hi", 0, 0, framebuf.Black, 1)
	rows := RowRange(0, d.Font().Height())
	require.NoError(t, d.UpdateImagePartial(rows...))

	assert.Equal(t, d.Frame(), d.Previous())
	for _, l := range r.ctrl.Lines()[:len(rows)] {
		assert.Less(t, cogtest.LineRow(l), d.Font().Height())
	}
}

func TestUpdateDisplayBilevel(t *testing.T) {
	t.Parallel()

	r := newRig()
	d := r.dev(t, r.opts(1))

	img := image.NewGray(image.Rect(0, 0, framebuf.Width, framebuf.Height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(30, 5, 90, 70), image.Black, image.Point{}, draw.Src)
	want, err := framebuf.FrameFromImage(img)
	require.NoError(t, err)

	require.NoError(t, d.UpdateDisplay(img, false))
	assert.Equal(t, want, d.Previous())

	// A differential update of the same image drives nothing.
	r.ctrl.Reset()
	require.NoError(t, d.UpdateDisplay(img, true))
	assert.Equal(t, want, d.Previous())
	for _, l := range r.ctrl.Lines()[:framebuf.Height] {
		for _, dot := range cogtest.LineDots(l) {
			require.LessOrEqual(t, dot, byte(NoChangeAlt))
		}
	}
}

func TestRenderScales(t *testing.T) {
	t.Parallel()

	img := image.NewGray(image.Rect(0, 0, 2*framebuf.Width, 2*framebuf.Height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, 0, framebuf.Width, 2*framebuf.Height), image.Black, image.Point{}, draw.Src)

	fb := framebuf.New(nil)
	Render(fb, img)
	c, _ := fb.Pixel(10, 50)
	assert.Equal(t, framebuf.Black, c)
	c, _ = fb.Pixel(190, 50)
	assert.Equal(t, framebuf.White, c)
}

func TestRenderDithers(t *testing.T) {
	t.Parallel()

	img := image.NewUniform(color.Gray{Y: 0x80})
	fb := framebuf.New(nil)
	Render(fb, image.NewRGBA(image.Rect(0, 0, framebuf.Width, framebuf.Height)))
	f := fb.Frame()
	assert.Equal(t, framebuf.Frame{}, f, "transparent renders as white")

	mid := image.NewGray(image.Rect(0, 0, framebuf.Width, framebuf.Height))
	draw.Draw(mid, mid.Bounds(), img, image.Point{}, draw.Src)
	Render(fb, mid)
	black := 0
	for y := 0; y < framebuf.Height; y++ {
		for x := 0; x < framebuf.Width; x++ {
			if c, _ := fb.Pixel(x, y); c == framebuf.Black {
				black++
			}
		}
	}
	total := framebuf.Width * framebuf.Height
	assert.InDelta(t, total/2, black, float64(total)/10)
}

func TestDevDrawer(t *testing.T) {
	t.Parallel()

	r := newRig()
	var drw display.Drawer = r.dev(t, r.opts(1))
	assert.Equal(t, image.Rect(0, 0, 200, 96), drw.Bounds())

	require.NoError(t, drw.Draw(drw.Bounds(), image.Black, image.Point{}))
	d := drw.(*Dev)
	prev := d.Previous()
	for i := range prev {
		require.Equal(t, byte(0xff), prev[i])
	}

	require.NoError(t, drw.Halt())
	assert.Equal(t, framebuf.Frame{}, d.Previous())
	assert.Equal(t, Off, d.PowerState())
}

func TestDevRotation(t *testing.T) {
	t.Parallel()

	r := newRig()
	opts := r.opts(1)
	opts.Rotation = framebuf.Rotate90
	d := r.dev(t, opts)
	assert.Equal(t, image.Rect(0, 0, 96, 200), d.Bounds())

	d.SetPixel(0, 0, framebuf.Black)
	require.NoError(t, d.UpdateImage())
	prev := d.Previous()
	c, _ := prev.Pixel(framebuf.Width-1, 0)
	assert.Equal(t, framebuf.Black, c)

	opts.Rotation = 45
	_, err := New(r.ctrl, r.cs, r.rst, r.discharge, r.busy, opts)
	assert.ErrorIs(t, err, framebuf.ErrInvalidRotation)
}

func TestDevCloseLeavesFastMode(t *testing.T) {
	t.Parallel()

	r := newRig()
	d := r.dev(t, r.opts(1))
	require.NoError(t, d.Close())
	assert.Empty(t, r.ctrl.Writes)

	require.NoError(t, d.EnableFastMode())
	assert.True(t, d.FastMode())
	assert.Equal(t, On, d.PowerState())
	require.NoError(t, d.Close())
	assert.False(t, d.FastMode())
	assert.Equal(t, Off, d.PowerState())
	r.requireIdle(t)
}

func TestDevFrameRepeat(t *testing.T) {
	t.Parallel()

	r := newRig()
	d := r.dev(t, r.opts(0))
	d.SetFrametimeByTemp(12)
	assert.Equal(t, FrameRepeatForTemp(12), d.FrameRepeat())
	d.SetFrameIters(1)
	require.NoError(t, d.ChangeImage())
	assert.Len(t, r.ctrl.Lines(), 4*framebuf.Height+framebuf.Height+1)
}

func TestSupportedTypes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"aurora_200x96"}, SupportedTypes())
}

func TestNewEPDFromSPI(t *testing.T) {
	t.Parallel()

	r := newRig()
	port := &fakePort{ctrl: r.ctrl}

	_, err := NewEPDFromSPI("waveshare_154", port, r.cs, r.rst, r.discharge, r.busy, nil)
	assert.Error(t, err)

	e, err := NewEPDFromSPI("aurora_200x96", port, r.cs, r.rst, r.discharge, r.busy, r.opts(1))
	require.NoError(t, err)
	assert.Equal(t, 8*physic.MegaHertz, port.hz)
	assert.Equal(t, spi.Mode0, port.mode)
	assert.Equal(t, 8, port.bits)
	assert.Equal(t, image.Rect(0, 0, 200, 96), e.Bounds())

	img := image.NewGray(e.Bounds())
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	img.SetGray(5, 5, color.Gray{})
	require.NoError(t, e.UpdateDisplay(img, false))
	prev := e.(*Dev).Previous()
	c, _ := prev.Pixel(5, 5)
	assert.Equal(t, framebuf.Black, c)
	require.NoError(t, e.Close())
}
