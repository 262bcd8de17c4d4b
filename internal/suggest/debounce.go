package suggest

import "time"

// DefaultDebounce is the quiescence window before a search reaches the
// catalog.
const DefaultDebounce = 150 * time.Millisecond

// Debouncer coalesces bursts of Schedule calls so only the last one fires.
// It must only be used from the owner loop.
type Debouncer struct {
	rt     Runtime
	delay  time.Duration
	timer  Timer
	gen    uint64
	issued int
}

// NewDebouncer returns a Debouncer firing delay after the last Schedule.
func NewDebouncer(rt Runtime, delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{rt: rt, delay: delay}
}

// Schedule replaces any pending call with f.
func (d *Debouncer) Schedule(f func()) {
	d.Cancel()
	gen := d.gen
	d.timer = d.rt.AfterFunc(d.delay, func() {
		// A timer that fired just before Stop still lands here; the
		// generation check drops it.
		if gen != d.gen {
			return
		}
		d.timer = nil
		d.issued++
		f()
	})
}

// Cancel drops the pending call, if any.
func (d *Debouncer) Cancel() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Fired returns how many scheduled calls have actually run.
func (d *Debouncer) Fired() int {
	return d.issued
}
