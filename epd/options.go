package epd

import (
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/AndreRenaud/aurora_eink/framebuf"
)

// Opts tunes a Dev. The zero value of each field picks its default.
type Opts struct {
	// MaxHz is the SPI clock used by NewFromSPI.
	MaxHz physic.Frequency
	// FrameIters, when positive, replaces time based pacing with a fixed
	// number of passes per refresh stage.
	FrameIters int
	// BusyTimeout bounds the wait for the busy line during power on. Zero
	// waits forever.
	BusyTimeout time.Duration
	// Clock provides time to the driver. Defaults to the system clock.
	Clock Clock
	// Font is used by the framebuffer's Text. Defaults to
	// framebuf.DefaultFont.
	Font     *framebuf.BitmapFont
	Rotation framebuf.Rotation
}

// DefaultOpts are the settings used when nil Opts are passed.
var DefaultOpts = Opts{
	MaxHz: 8 * physic.MegaHertz,
}

func (o *Opts) withDefaults() Opts {
	out := DefaultOpts
	if o != nil {
		out = *o
	}
	if out.MaxHz == 0 {
		out.MaxHz = DefaultOpts.MaxHz
	}
	if out.Clock == nil {
		out.Clock = systemClock{}
	}
	return out
}

// Clock is the time source the driver sleeps on and measures refresh
// passes with.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }
