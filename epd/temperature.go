package epd

import "time"

// DefaultFrameRepeat is the stage duration at room temperature.
const DefaultFrameRepeat = 630 * time.Millisecond

// FrameRepeatForTemp returns how long each refresh stage must be driven at
// the given ambient temperature. Colder panels need longer.
func FrameRepeatForTemp(celsius int) time.Duration {
	ms := DefaultFrameRepeat.Milliseconds()
	switch {
	case celsius <= -10:
		ms *= 17
	case celsius <= -5:
		ms *= 12
	case celsius <= 5:
		ms *= 8
	case celsius <= 10:
		ms *= 4
	case celsius <= 15:
		ms *= 3
	case celsius <= 20:
		ms *= 2
	case celsius <= 40:
	default:
		ms = ms * 7 / 10
	}
	return time.Duration(ms) * time.Millisecond
}
