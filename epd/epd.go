// Package epd drives Pervasive Displays Aurora Mb e-paper panels through
// their second generation chip-on-glass (G2 COG) controller.
package epd

import (
	"fmt"
	"image"
	"sort"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// EPD is the minimal surface shared by the supported panels.
type EPD interface {
	UpdateDisplay(img image.Image, partial bool) error
	Close() error
	Bounds() image.Rectangle
}

type factory func(s spi.Port, cs, rst, discharge gpio.PinOut, busy gpio.PinIn, opts *Opts) (EPD, error)

var epdTypes = map[string]factory{
	"aurora_200x96": func(s spi.Port, cs, rst, discharge gpio.PinOut, busy gpio.PinIn, opts *Opts) (EPD, error) {
		d, err := NewFromSPI(s, cs, rst, discharge, busy, opts)
		if err != nil {
			return nil, err
		}
		return d, nil
	},
}

// SupportedTypes lists the names accepted by NewEPDFromSPI.
func SupportedTypes() []string {
	out := make([]string, 0, len(epdTypes))
	for k := range epdTypes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func NewEPDFromSPI(epdType string, s spi.Port, cs, rst, discharge gpio.PinOut, busy gpio.PinIn, opts *Opts) (EPD, error) {
	f, ok := epdTypes[epdType]
	if !ok {
		return nil, fmt.Errorf("epd: unknown epd type %q", epdType)
	}
	return f(s, cs, rst, discharge, busy, opts)
}
