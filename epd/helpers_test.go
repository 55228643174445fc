package epd

import (
	"testing"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/AndreRenaud/aurora_eink/framebuf"
	"github.com/AndreRenaud/aurora_eink/internal/cogtest"
)

// rig is a fake panel: a controller plus its four control lines.
type rig struct {
	ctrl      *cogtest.Controller
	cs        *gpiotest.Pin
	rst       *gpiotest.Pin
	discharge *gpiotest.Pin
	busy      *gpiotest.Pin
}

func newRig() *rig {
	return &rig{
		ctrl:      cogtest.New(),
		cs:        &gpiotest.Pin{N: "CS"},
		rst:       &gpiotest.Pin{N: "RST"},
		discharge: &gpiotest.Pin{N: "DISCHARGE"},
		busy:      &gpiotest.Pin{N: "BUSY"},
	}
}

func (r *rig) opts(iters int) *Opts {
	return &Opts{Clock: r.ctrl.Clock, FrameIters: iters}
}

func (r *rig) cog(t *testing.T, c conn.Conn, opts *Opts) *COG {
	t.Helper()
	if c == nil {
		c = r.ctrl
	}
	d, err := NewCOG(c, r.cs, r.rst, r.discharge, r.busy, opts)
	require.NoError(t, err)
	return d
}

func (r *rig) dev(t *testing.T, opts *Opts) *Dev {
	t.Helper()
	d, err := New(r.ctrl, r.cs, r.rst, r.discharge, r.busy, opts)
	require.NoError(t, err)
	return d
}

// requireIdle checks the lines are where a completed power off leaves them.
func (r *rig) requireIdle(t *testing.T) {
	t.Helper()
	require.Equal(t, gpio.Low, r.rst.Read())
	require.Equal(t, gpio.Low, r.cs.Read())
	require.Equal(t, gpio.Low, r.discharge.Read())
}

// powerOnWrites is the register traffic of a power on whose first DC/DC
// check passes.
var powerOnWrites = []cogtest.Write{
	{Reg: 0x02, Data: []byte{0x40}},
	{Reg: 0x0B, Data: []byte{0x02}},
	{Reg: 0x01, Data: []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0xFF, 0xE0, 0x00}},
	{Reg: 0x07, Data: []byte{0xD1}},
	{Reg: 0x08, Data: []byte{0x02}},
	{Reg: 0x09, Data: []byte{0xC2}},
	{Reg: 0x04, Data: []byte{0x03}},
	{Reg: 0x03, Data: []byte{0x01}},
	{Reg: 0x03, Data: []byte{0x00}},
	{Reg: 0x05, Data: []byte{0x01}},
	{Reg: 0x05, Data: []byte{0x03}},
	{Reg: 0x05, Data: []byte{0x0F}},
	{Reg: 0x02, Data: []byte{0x06}},
}

var powerOffWrites = []cogtest.Write{
	{Reg: 0x0B, Data: []byte{0x00}},
	{Reg: 0x03, Data: []byte{0x01}},
	{Reg: 0x05, Data: []byte{0x03}},
	{Reg: 0x05, Data: []byte{0x01}},
	{Reg: 0x04, Data: []byte{0x80}},
	{Reg: 0x05, Data: []byte{0x00}},
	{Reg: 0x07, Data: []byte{0x01}},
}

// withoutLines drops line payloads and their flush commands.
func withoutLines(writes []cogtest.Write) []cogtest.Write {
	var out []cogtest.Write
	for i := 0; i < len(writes); i++ {
		w := writes[i]
		if w.Reg == cogtest.RegLine {
			i++ // the 0x02=0x07 flush
			continue
		}
		out = append(out, w)
	}
	return out
}

// expectDots checks every pixel of a line against want(x).
func expectDots(t *testing.T, payload []byte, want func(x int) byte, msg string) {
	t.Helper()
	dots := cogtest.LineDots(payload)
	for x := 0; x < framebuf.Width; x++ {
		if dots[x] != want(x) {
			t.Fatalf("%s: pixel %d has dot %d, want %d", msg, x, dots[x], want(x))
		}
	}
}

func pixelBit(f *framebuf.Frame, x, y int) byte {
	if c, _ := f.Pixel(x, y); c == framebuf.Black {
		return 1
	}
	return 0
}

// testFrame is a filled rectangle from (10,10) to (50,30) inclusive.
func testFrame() framebuf.Frame {
	fb := framebuf.New(nil)
	fb.Rect(10, 10, 41, 21, framebuf.Black, true)
	return fb.Frame()
}
