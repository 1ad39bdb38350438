package device

import (
	"time"

	"github.com/sweeney/beacon/internal/gpio"
)

// Step is the outcome of advancing a device by one tick.
type Step struct {
	// Level is the level the device should now show.
	Level gpio.Level
	// Changed reports whether Level differs from the previous level, i.e.
	// whether the pin needs writing.
	Changed bool
	// Delay is how long until the next tick.
	Delay time.Duration
}

// Advance moves the device one tick forward and returns what to write and
// when to come back. The level is recorded before any write is attempted,
// so a failed write leaves the logical level ahead of the pin.
func (d *Device) Advance() Step {
	switch d.Visibility {
	case On:
		return d.converge(gpio.High)
	case Flashing:
		return d.flash()
	default:
		return d.converge(gpio.Low)
	}
}

func (d *Device) converge(want gpio.Level) Step {
	changed := d.level != want
	d.level = want
	return Step{Level: want, Changed: changed, Delay: SteadyInterval}
}

func (d *Device) flash() Step {
	pattern := Pattern(d.FlashMode)
	if d.index >= len(pattern) || d.index < 0 {
		d.index = 0
	}

	next := gpio.Low
	if d.index%2 == 0 {
		next = gpio.High
	}
	delay := time.Duration(pattern[d.index]) * time.Millisecond

	changed := next != d.level
	d.level = next

	d.index++
	if d.index >= len(pattern) {
		d.index = 0
	}
	return Step{Level: next, Changed: changed, Delay: delay}
}

// ResetIndex restarts the waveform from its first entry.
func (d *Device) ResetIndex() {
	d.index = 0
}
