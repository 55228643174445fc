package epd

import (
	"errors"
	"time"

	"github.com/AndreRenaud/aurora_eink/framebuf"
	"github.com/AndreRenaud/aurora_eink/internal/log"
)

// Refresher drives whole images onto the panel and remembers what the panel
// currently shows.
//
// Every operation blocks for the whole refresh, which can take several
// seconds in the cold. A Refresher is not safe for concurrent use and none of
// its methods may be re-entered.
type Refresher struct {
	cog   *COG
	clock Clock

	prev        framebuf.Frame
	frameRepeat time.Duration
	frameIters  int
	fast        bool
}

// NewRefresher returns a Refresher that assumes the panel is white.
func NewRefresher(cog *COG, opts *Opts) *Refresher {
	o := opts.withDefaults()
	return &Refresher{
		cog:         cog,
		clock:       o.Clock,
		frameRepeat: DefaultFrameRepeat,
		frameIters:  max(o.FrameIters, 0),
	}
}

// Previous returns the image the panel was last driven to.
func (r *Refresher) Previous() framebuf.Frame {
	return r.prev
}

// SetFrametimeByTemp recalibrates stage duration for the ambient temperature.
// Nothing is sent to the panel.
func (r *Refresher) SetFrametimeByTemp(celsius int) {
	r.frameRepeat = FrameRepeatForTemp(celsius)
	log.Debug("epd: frame repeat", "celsius", celsius, "repeat", r.frameRepeat)
}

func (r *Refresher) FrameRepeat() time.Duration {
	return r.frameRepeat
}

// SetFrameIters fixes the number of passes per stage. Zero restores time
// based pacing.
func (r *Refresher) SetFrameIters(n int) {
	r.frameIters = max(n, 0)
}

func (r *Refresher) FastMode() bool {
	return r.fast
}

// EnableFastMode powers the panel on and keeps it on across refreshes until
// DisableFastMode.
func (r *Refresher) EnableFastMode() error {
	if r.fast {
		return nil
	}
	if err := r.cog.PowerOn(); err != nil {
		return err
	}
	r.fast = true
	return nil
}

// DisableFastMode redraws the current image twice to clear ghosting and then
// powers the panel off.
func (r *Refresher) DisableFastMode() error {
	if !r.fast {
		return nil
	}
	r.fast = false
	if err := r.drawFrame(&r.prev, White, Black, 2); err != nil {
		return errors.Join(err, r.cog.PowerOff(false))
	}
	return r.cog.PowerOff(true)
}

// drawFrame sends every row of f iters times.
func (r *Refresher) drawFrame(f *framebuf.Frame, white, black DotCode, iters int) error {
	for i := 0; i < iters; i++ {
		for y := 0; y < framebuf.Height; y++ {
			if err := r.cog.WriteLine(y, f.Row(y), white, black, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

// repeat runs pass FrameIters times, or when that is unset until more than
// the calibrated frame repeat has elapsed. It returns how many passes ran.
func (r *Refresher) repeat(pass func() error) (int, error) {
	if r.frameIters > 0 {
		for i := 0; i < r.frameIters; i++ {
			if err := pass(); err != nil {
				return i, err
			}
		}
		return r.frameIters, nil
	}
	start := r.clock.Now()
	iters := 0
	for {
		if err := pass(); err != nil {
			return iters, err
		}
		iters++
		if r.clock.Now().Sub(start) > r.frameRepeat {
			return iters, nil
		}
	}
}

func (r *Refresher) begin() error {
	if r.fast {
		return nil
	}
	return r.cog.PowerOn()
}

// fail powers a panel this refresh switched on back off, without cleaning.
func (r *Refresher) fail(err error) error {
	if r.fast {
		return err
	}
	return errors.Join(err, r.cog.PowerOff(false))
}

// ChangeImage replaces the displayed image using the four stage ghost free
// sequence: the old image inverted, the old image washed to white, the new
// image inverted, then the new image.
func (r *Refresher) ChangeImage(f *framebuf.Frame) error {
	if f == nil {
		return ErrNilFrame
	}
	next := *f
	if err := r.begin(); err != nil {
		return err
	}

	iters, err := r.repeat(func() error {
		return r.drawFrame(&r.prev, Black, White, 1)
	})
	if err != nil {
		return r.fail(err)
	}
	log.Debug("epd: change image", "iters", iters)

	stages := []struct {
		frame        *framebuf.Frame
		white, black DotCode
	}{
		{&r.prev, White, NoChange},
		{&next, Black, NoChange},
		{&next, White, Black},
	}
	for _, s := range stages {
		if err := r.drawFrame(s.frame, s.white, s.black, iters); err != nil {
			return r.fail(err)
		}
	}
	r.prev = next

	if r.fast {
		return r.cog.CleanBuffer()
	}
	return r.cog.PowerOff(true)
}

// UpdateImage drives only the pixels that changed since the last refresh.
// It is quicker than ChangeImage but leaves some ghosting behind.
func (r *Refresher) UpdateImage(f *framebuf.Frame) error {
	if f == nil {
		return ErrNilFrame
	}
	if err := r.update(f, RowRange(0, framebuf.Height)); err != nil {
		return err
	}
	if r.fast {
		return r.cog.CleanBuffer()
	}
	return r.cog.PowerOff(true)
}

// UpdateImagePartial is UpdateImage restricted to rows. Rows outside the
// panel are ignored. The whole of f becomes the previous image, so rows left
// out must already match what the panel shows.
func (r *Refresher) UpdateImagePartial(f *framebuf.Frame, rows []int) error {
	if f == nil {
		return ErrNilFrame
	}
	valid := make([]int, 0, len(rows))
	for _, y := range rows {
		if y >= 0 && y < framebuf.Height {
			valid = append(valid, y)
		}
	}
	if len(valid) == 0 {
		r.prev = *f
		return nil
	}
	if err := r.update(f, valid); err != nil {
		return err
	}
	if r.fast {
		return r.cog.writeDummyLine()
	}
	return r.cog.PowerOff(true)
}

func (r *Refresher) update(f *framebuf.Frame, rows []int) error {
	next := *f
	if err := r.begin(); err != nil {
		return err
	}
	iters, err := r.repeat(func() error {
		for _, y := range rows {
			if err := r.cog.UpdateLine(y, next.Row(y), r.prev.Row(y), 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return r.fail(err)
	}
	log.Debug("epd: update image", "rows", len(rows), "iters", iters)
	r.prev = next
	return nil
}

// RowRange returns the rows [start, end), for UpdateImagePartial.
func RowRange(start, end int) []int {
	if end <= start {
		return nil
	}
	rows := make([]int, 0, end-start)
	for y := start; y < end; y++ {
		rows = append(rows, y)
	}
	return rows
}
