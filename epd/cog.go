package epd

// Protocol for the Pervasive Displays Aurora Mb (V231) panels driven by the
// second generation chip-on-glass controller.

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"

	"github.com/AndreRenaud/aurora_eink/internal/log"
)

// Frame headers. Every chip-select frame starts with one of these.
const (
	headerIndex byte = 0x70
	headerID    byte = 0x71
	headerData  byte = 0x72
	headerRead  byte = 0x73

	cogG2ID byte = 0x12
)

// Registers.
const (
	regChannelSelect byte = 0x01
	regOutputEnable  byte = 0x02
	regLatch         byte = 0x03
	regPowerSetting  byte = 0x04
	regChargePump    byte = 0x05
	regOscillator    byte = 0x07
	regPowerSetting2 byte = 0x08
	regVcomLevel     byte = 0x09
	regLineData      byte = 0x0A
	regPowerSaving   byte = 0x0B
	regDCDCStatus    byte = 0x0F
)

var channelSelect = []byte{0x00, 0x00, 0x00, 0x00, 0x01, 0xFF, 0xE0, 0x00}

const (
	dcdcRetries = 4
	dcdcOK      = 0x40
)

// PowerState is the controller's power state.
type PowerState int

const (
	Off PowerState = iota
	PoweringOn
	On
	PoweringOff
)

func (s PowerState) String() string {
	switch s {
	case Off:
		return "off"
	case PoweringOn:
		return "powering on"
	case On:
		return "on"
	case PoweringOff:
		return "powering off"
	}
	return fmt.Sprintf("PowerState(%d)", int(s))
}

// COG speaks the controller's SPI protocol and owns its power sequencing.
//
// Every wait is blocking. Unless Opts.BusyTimeout is set, a panel that never
// releases its busy line blocks PowerOn forever.
//
// COG is not safe for concurrent use.
type COG struct {
	c         conn.Conn
	cs        gpio.PinOut
	rst       gpio.PinOut
	discharge gpio.PinOut
	busy      gpio.PinIn

	clock       Clock
	busyTimeout time.Duration
	state       PowerState

	wbuf [1 + lineSize]byte
	line [lineSize]byte
}

// NewCOG wraps an SPI connection and the panel's control lines. The pins are
// driven to their idle levels: chip select high, reset and discharge low.
func NewCOG(c conn.Conn, cs, rst, discharge gpio.PinOut, busy gpio.PinIn, opts *Opts) (*COG, error) {
	o := opts.withDefaults()
	d := &COG{
		c:           c,
		cs:          cs,
		rst:         rst,
		discharge:   discharge,
		busy:        busy,
		clock:       o.Clock,
		busyTimeout: o.BusyTimeout,
	}
	if err := busy.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("epd: busy: %w", err)
	}
	eh := errorHandler{d: d}
	eh.out(cs, gpio.High)
	eh.out(rst, gpio.Low)
	eh.out(discharge, gpio.Low)
	if eh.err != nil {
		return nil, fmt.Errorf("epd: %w", eh.err)
	}
	return d, nil
}

func (d *COG) State() PowerState {
	return d.state
}

func (d *COG) String() string {
	return fmt.Sprintf("epd.COG{%s, %s}", d.c, d.state)
}

// tx runs one chip-select frame. Chip select is released even when the
// transfer fails.
func (d *COG) tx(w, r []byte) error {
	if err := d.cs.Out(gpio.Low); err != nil {
		return fmt.Errorf("epd: chip select: %w", err)
	}
	err := d.c.Tx(w, r)
	if csErr := d.cs.Out(gpio.High); err == nil && csErr != nil {
		return fmt.Errorf("epd: chip select: %w", csErr)
	}
	return err
}

// WriteRegister selects reg and writes data to it.
func (d *COG) WriteRegister(reg byte, data ...byte) error {
	if err := d.tx([]byte{headerIndex, reg}, nil); err != nil {
		return fmt.Errorf("epd: select register %#02x: %w", reg, err)
	}
	w := append(d.wbuf[:0], headerData)
	w = append(w, data...)
	if err := d.tx(w, nil); err != nil {
		return fmt.Errorf("epd: write register %#02x: %w", reg, err)
	}
	return nil
}

// ReadRegister selects reg and reads its single byte value.
func (d *COG) ReadRegister(reg byte) (byte, error) {
	if err := d.tx([]byte{headerIndex, reg}, nil); err != nil {
		return 0, fmt.Errorf("epd: select register %#02x: %w", reg, err)
	}
	var r [2]byte
	if err := d.tx([]byte{headerRead, 0x00}, r[:]); err != nil {
		return 0, fmt.Errorf("epd: read register %#02x: %w", reg, err)
	}
	return r[1], nil
}

// ReadID returns the controller's ID byte; 0x12 for a G2 controller.
func (d *COG) ReadID() (byte, error) {
	var r [2]byte
	if err := d.tx([]byte{headerID, 0x00}, r[:]); err != nil {
		return 0, fmt.Errorf("epd: read id: %w", err)
	}
	return r[1], nil
}

func (d *COG) waitBusy() error {
	start := d.clock.Now()
	for d.busy.Read() == gpio.High {
		if d.busyTimeout > 0 && d.clock.Now().Sub(start) >= d.busyTimeout {
			return ErrBusyTimeout
		}
		d.clock.Sleep(time.Millisecond)
	}
	return nil
}

// PowerOn brings the controller up and starts its charge pump. It is a no-op
// when the panel is already on. On failure the panel is powered back off
// without cleaning and the state is Off.
func (d *COG) PowerOn() error {
	if d.state == On {
		return nil
	}
	d.state = PoweringOn
	log.Debug("epd: power on")

	eh := errorHandler{d: d}
	eh.out(d.cs, gpio.High)
	eh.out(d.rst, gpio.High)
	eh.out(d.discharge, gpio.Low)
	eh.sleep(5 * time.Millisecond)

	eh.out(d.rst, gpio.Low)
	eh.sleep(5 * time.Millisecond)
	eh.out(d.rst, gpio.High)
	eh.sleep(5 * time.Millisecond)
	eh.waitBusy()
	if eh.err != nil {
		return d.abort(fmt.Errorf("epd: power on: %w", eh.err))
	}

	id, err := d.ReadID()
	if err != nil {
		return d.abort(err)
	}
	if id != cogG2ID {
		return d.abort(&DeviceIDError{Got: id})
	}

	eh.write(regOutputEnable, 0x40)
	eh.write(regPowerSaving, 0x02)
	eh.write(regChannelSelect, channelSelect...)
	eh.write(regOscillator, 0xD1)
	eh.write(regPowerSetting2, 0x02)
	eh.write(regVcomLevel, 0xC2)
	eh.write(regPowerSetting, 0x03)
	eh.write(regLatch, 0x01)
	eh.write(regLatch, 0x00)
	eh.sleep(5 * time.Millisecond)
	if eh.err != nil {
		return d.abort(eh.err)
	}

	for try := 1; try <= dcdcRetries; try++ {
		eh.write(regChargePump, 0x01)
		eh.sleep(150 * time.Millisecond)
		eh.write(regChargePump, 0x03)
		eh.sleep(90 * time.Millisecond)
		eh.write(regChargePump, 0x0F)
		eh.sleep(40 * time.Millisecond)
		status := eh.read(regDCDCStatus)
		if eh.err != nil {
			return d.abort(eh.err)
		}
		if status&dcdcOK != 0 {
			if err := d.WriteRegister(regOutputEnable, 0x06); err != nil {
				return d.abort(err)
			}
			d.state = On
			log.Debug("epd: powered on", "tries", try)
			return nil
		}
		log.Debug("epd: dc/dc check failed", "try", try, "status", fmt.Sprintf("%#02x", status))
	}
	return d.abort(ErrDCDCCheckFailed)
}

// abort powers the panel down after a failed power on.
func (d *COG) abort(err error) error {
	if offErr := d.powerDown(false); offErr != nil {
		return errors.Join(err, offErr)
	}
	return err
}

// PowerOff shuts the charge pump down and discharges the panel. With clean
// set, the controller's line buffer is first overwritten with no-change dots
// so nothing is left latched. It is a no-op when the panel is off.
func (d *COG) PowerOff(clean bool) error {
	if d.state == Off {
		return nil
	}
	return d.powerDown(clean)
}

func (d *COG) powerDown(clean bool) error {
	d.state = PoweringOff
	log.Debug("epd: power off", "clean", clean)

	var cleanErr error
	if clean {
		cleanErr = d.CleanBuffer()
	}

	eh := errorHandler{d: d}
	eh.write(regPowerSaving, 0x00)
	eh.write(regLatch, 0x01)
	eh.write(regChargePump, 0x03)
	eh.write(regChargePump, 0x01)
	eh.sleep(300 * time.Millisecond)
	eh.write(regPowerSetting, 0x80)
	eh.write(regChargePump, 0x00)
	eh.write(regOscillator, 0x01)

	// The lines are dropped even if the register writes failed.
	pinErr := errors.Join(
		d.rst.Out(gpio.Low),
		d.cs.Out(gpio.Low),
		d.discharge.Out(gpio.High),
	)
	d.clock.Sleep(150 * time.Millisecond)
	pinErr = errors.Join(pinErr, d.discharge.Out(gpio.Low))

	d.state = Off
	if err := errors.Join(cleanErr, eh.err, pinErr); err != nil {
		return fmt.Errorf("epd: power off: %w", err)
	}
	return nil
}

// errorHandler runs a sequence of operations, skipping the rest after the
// first failure.
type errorHandler struct {
	d   *COG
	err error
}

func (eh *errorHandler) out(p gpio.PinOut, l gpio.Level) {
	if eh.err != nil {
		return
	}
	if err := p.Out(l); err != nil {
		eh.err = fmt.Errorf("%s: %w", p.Name(), err)
	}
}

func (eh *errorHandler) sleep(d time.Duration) {
	if eh.err == nil {
		eh.d.clock.Sleep(d)
	}
}

func (eh *errorHandler) waitBusy() {
	if eh.err == nil {
		eh.err = eh.d.waitBusy()
	}
}

func (eh *errorHandler) write(reg byte, data ...byte) {
	if eh.err == nil {
		eh.err = eh.d.WriteRegister(reg, data...)
	}
}

func (eh *errorHandler) read(reg byte) byte {
	if eh.err != nil {
		return 0
	}
	v, err := eh.d.ReadRegister(reg)
	eh.err = err
	return v
}
