//go:build linux

package gpio

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/warthog618/go-gpiocdev"
	"github.com/warthog618/go-gpiocdev/device/rpi"
)

// RealDriver drives GPIO lines on actual hardware using the Linux GPIO
// character device.
type RealDriver struct {
	mu    sync.Mutex
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

// NewRealDriver opens the named GPIO chip (e.g. "gpiochip0").
func NewRealDriver(chip string) (*RealDriver, error) {
	if chip == "" {
		chip = DefaultChip
	}
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &RealDriver{
		chip:  c,
		lines: make(map[int]*gpiocdev.Line),
	}, nil
}

// offset resolves a pin number in the given scheme to a chip line offset.
func offset(pin int, scheme Scheme) (int, error) {
	if scheme != SchemeBoard {
		return pin, nil
	}
	o, err := rpi.Pin("J8p" + strconv.Itoa(pin))
	if err != nil {
		return 0, fmt.Errorf("board pin %d: %w", pin, err)
	}
	return o, nil
}

// Open requests the line as an input with pull-down, matching Pi boot defaults.
// The line stays keyed by the caller's pin number.
func (r *RealDriver) Open(pin int, scheme Scheme) error {
	off, err := offset(pin, scheme)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lines[pin]; ok {
		return nil
	}
	line, err := r.chip.RequestLine(off, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		return fmt.Errorf("request pin %d: %w", pin, err)
	}
	r.lines[pin] = line
	return nil
}

func (r *RealDriver) line(pin int) (*gpiocdev.Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lines[pin]
	if !ok {
		return nil, fmt.Errorf("pin %d: %w", pin, ErrPinNotOpen)
	}
	return l, nil
}

// SetDirection reconfigures the line. Outputs start Low.
func (r *RealDriver) SetDirection(pin int, dir Direction) error {
	l, err := r.line(pin)
	if err != nil {
		return err
	}
	if dir == Output {
		err = l.Reconfigure(gpiocdev.AsOutput(int(Low)))
	} else {
		err = l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown)
	}
	if err != nil {
		return fmt.Errorf("set direction pin %d: %w", pin, err)
	}
	return nil
}

// Write sets the line value.
func (r *RealDriver) Write(pin int, level Level) error {
	l, err := r.line(pin)
	if err != nil {
		return err
	}
	if err := l.SetValue(int(level)); err != nil {
		return fmt.Errorf("write pin %d: %w", pin, err)
	}
	return nil
}

// Read returns the line value.
func (r *RealDriver) Read(pin int) (Level, error) {
	l, err := r.line(pin)
	if err != nil {
		return Low, err
	}
	v, err := l.Value()
	if err != nil {
		return Low, fmt.Errorf("read pin %d: %w", pin, err)
	}
	if v != 0 {
		return High, nil
	}
	return Low, nil
}

// Close reconfigures the line to input with pull-down (Pi boot default)
// and releases it.
func (r *RealDriver) Close(pin int) error {
	r.mu.Lock()
	l, ok := r.lines[pin]
	delete(r.lines, pin)
	r.mu.Unlock()
	if !ok {
		return nil
	}

	var errs []error
	if err := l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
	}
	if err := l.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// Shutdown releases any remaining lines and the chip.
func (r *RealDriver) Shutdown() error {
	r.mu.Lock()
	pins := make([]int, 0, len(r.lines))
	for p := range r.lines {
		pins = append(pins, p)
	}
	r.mu.Unlock()

	var errs []error
	for _, p := range pins {
		if err := r.Close(p); err != nil {
			errs = append(errs, err)
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
