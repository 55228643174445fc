// Package cogtest provides a fake Aurora G2 chip-on-glass controller and a
// fake clock for driver tests.
package cogtest

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3"

	"github.com/AndreRenaud/aurora_eink/framebuf"
)

// Wire headers understood by the controller.
const (
	HeaderIndex = 0x70
	HeaderID    = 0x71
	HeaderData  = 0x72
	HeaderRead  = 0x73
)

// RegLine is the register that receives line payloads.
const RegLine = 0x0A

// LineSize is the length of a line payload: border byte, even bytes, scan
// bytes and odd bytes.
const LineSize = 1 + framebuf.Stride + ScanBytes + framebuf.Stride

// ScanBytes is the number of scan group bytes in a line payload.
const ScanBytes = framebuf.Height / 4

// ErrInjected is returned by Tx once FailAfter transactions have succeeded.
var ErrInjected = errors.New("cogtest: injected failure")

// Write is one register write.
type Write struct {
	Reg  byte
	Data []byte
}

// Controller implements conn.Conn and decodes the controller's framing. Every
// Tx is one chip-select frame: a header byte and its payload.
type Controller struct {
	// ID is returned for 0x71.
	ID byte
	// Registers holds the values returned by 0x73 reads, keyed by register.
	Registers map[byte]byte
	// Reads queues values returned by successive reads of a register before
	// falling back to Registers.
	Reads map[byte][]byte
	// Writes records every 0x72 data frame with the register it targeted.
	Writes []Write
	// Clock, if set, is advanced by TxCost on every transaction.
	Clock  *Clock
	TxCost time.Duration
	// FailAfter, when positive, makes every transaction after the first
	// FailAfter ones fail with ErrInjected.
	FailAfter int

	index byte
	txs   int
}

// New returns a healthy controller: it reports the G2 ID and a passing DC/DC
// status.
func New() *Controller {
	return &Controller{
		ID:        0x12,
		Registers: map[byte]byte{0x0F: 0x40},
		Clock:     NewClock(),
	}
}

func (c *Controller) String() string {
	return "cogtest"
}

func (c *Controller) Duplex() conn.Duplex {
	return conn.Full
}

func (c *Controller) Tx(w, r []byte) error {
	if c.Clock != nil {
		c.Clock.Advance(c.TxCost)
	}
	c.txs++
	if c.FailAfter > 0 && c.txs > c.FailAfter {
		return ErrInjected
	}
	if len(w) == 0 {
		return errors.New("cogtest: empty transaction")
	}
	if len(r) != 0 && len(r) != len(w) {
		return fmt.Errorf("cogtest: read buffer is %d bytes, write is %d", len(r), len(w))
	}
	switch w[0] {
	case HeaderIndex:
		if len(w) != 2 {
			return fmt.Errorf("cogtest: index frame of %d bytes", len(w))
		}
		c.index = w[1]
	case HeaderData:
		c.Writes = append(c.Writes, Write{Reg: c.index, Data: append([]byte(nil), w[1:]...)})
	case HeaderRead:
		if len(r) != 2 {
			return errors.New("cogtest: read frame needs a two byte read buffer")
		}
		if q := c.Reads[c.index]; len(q) > 0 {
			r[1] = q[0]
			c.Reads[c.index] = q[1:]
		} else {
			r[1] = c.Registers[c.index]
		}
	case HeaderID:
		if len(r) != 2 {
			return errors.New("cogtest: id frame needs a two byte read buffer")
		}
		r[1] = c.ID
	default:
		return fmt.Errorf("cogtest: unknown header %#02x", w[0])
	}
	return nil
}

// Reset forgets recorded writes.
func (c *Controller) Reset() {
	c.Writes = nil
}

// RegisterWrites returns the data written to reg, in order.
func (c *Controller) RegisterWrites(reg byte) [][]byte {
	var out [][]byte
	for _, w := range c.Writes {
		if w.Reg == reg {
			out = append(out, w.Data)
		}
	}
	return out
}

// Lines returns every line payload written.
func (c *Controller) Lines() [][]byte {
	return c.RegisterWrites(RegLine)
}

// LineRow returns the row selected by a line payload's scan bytes, or -1 if
// no row is selected. Scan bytes are sent for group 23 first.
func LineRow(payload []byte) int {
	if len(payload) != LineSize {
		return -1
	}
	scan := payload[1+framebuf.Stride : 1+framebuf.Stride+ScanBytes]
	for i, b := range scan {
		if b == 0 {
			continue
		}
		group := ScanBytes - 1 - i
		for k := 0; k < 4; k++ {
			if b == 3<<(k*2) {
				return group*4 + k
			}
		}
	}
	return -1
}

// LineDots decodes the 2-bit dot code driven to every pixel of a line
// payload.
func LineDots(payload []byte) [framebuf.Width]byte {
	var dots [framebuf.Width]byte
	if len(payload) != LineSize {
		return dots
	}
	even := payload[1 : 1+framebuf.Stride]
	odd := payload[1+framebuf.Stride+ScanBytes:]
	for x := 0; x < framebuf.Width; x++ {
		i, k := x/8, x%8
		if k%2 == 0 {
			dots[x] = (even[framebuf.Stride-1-i] >> k) & 3
		} else {
			dots[x] = (odd[i] >> (7 - k)) & 3
		}
	}
	return dots
}

// Clock is a manual clock. Sleep advances it instantly.
type Clock struct {
	now   time.Time
	Slept time.Duration
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	return c.now
}

func (c *Clock) Sleep(d time.Duration) {
	c.now = c.now.Add(d)
	c.Slept += d
}

// Advance moves the clock without counting it as sleep.
func (c *Clock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
