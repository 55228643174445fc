package epd

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedDeviceID is returned when the controller does not identify
	// itself as a G2 chip-on-glass driver. The panel is left powered off.
	ErrUnexpectedDeviceID = errors.New("epd: unexpected device id")
	// ErrDCDCCheckFailed is returned when the charge pump did not come up
	// after every retry. The panel is left powered off.
	ErrDCDCCheckFailed = errors.New("epd: dc/dc check failed")
	// ErrBusyTimeout is returned when Opts.BusyTimeout is set and the busy
	// line stayed high for longer.
	ErrBusyTimeout = errors.New("epd: timed out waiting for busy")
	// ErrPanelOff is returned by line transfers while the panel is off.
	ErrPanelOff = errors.New("epd: panel is not powered on")
	// ErrInvalidLine is returned for a row outside the panel or a row slice
	// that is not exactly one stride long.
	ErrInvalidLine = errors.New("epd: invalid line")
	ErrNilFrame    = errors.New("epd: nil frame")
)

// DeviceIDError carries the ID the controller reported.
type DeviceIDError struct {
	Got byte
}

func (e *DeviceIDError) Error() string {
	return fmt.Sprintf("epd: unexpected device id %#02x, want %#02x", e.Got, cogG2ID)
}

func (e *DeviceIDError) Unwrap() error {
	return ErrUnexpectedDeviceID
}
