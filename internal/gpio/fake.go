package gpio

import (
	"fmt"
	"sync"
)

// Write records a single pin write made through FakeDriver.
type Write struct {
	Pin   int
	Level Level
}

// FakeDriver is a test double that records pin operations.
type FakeDriver struct {
	mu sync.Mutex

	// Writes contains every successful or failed Write call, in order.
	Writes []Write

	// Opened maps pin to the scheme it was opened with.
	Opened map[int]Scheme

	// Directions maps pin to its configured direction.
	Directions map[int]Direction

	// Levels holds the last level written to each pin.
	Levels map[int]Level

	// WriteError, if set, will be returned by Write (the write is still recorded).
	WriteError error

	// OpenError, if set, will be returned by Open.
	OpenError error

	// Closed records pins passed to Close.
	Closed []int
}

// NewFakeDriver creates a FakeDriver for testing.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{
		Opened:     make(map[int]Scheme),
		Directions: make(map[int]Direction),
		Levels:     make(map[int]Level),
	}
}

// Open marks the pin as open.
func (f *FakeDriver) Open(pin int, scheme Scheme) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OpenError != nil {
		return f.OpenError
	}
	f.Opened[pin] = scheme
	return nil
}

// SetDirection records the direction of an open pin.
func (f *FakeDriver) SetDirection(pin int, dir Direction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Opened[pin]; !ok {
		return fmt.Errorf("set direction pin %d: %w", pin, ErrPinNotOpen)
	}
	f.Directions[pin] = dir
	return nil
}

// Write records the write and returns WriteError if set.
func (f *FakeDriver) Write(pin int, level Level) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes = append(f.Writes, Write{Pin: pin, Level: level})
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Levels[pin] = level
	return nil
}

// Read returns the last level written to the pin.
func (f *FakeDriver) Read(pin int) (Level, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Opened[pin]; !ok {
		return Low, fmt.Errorf("read pin %d: %w", pin, ErrPinNotOpen)
	}
	return f.Levels[pin], nil
}

// Close marks the pin as closed.
func (f *FakeDriver) Close(pin int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Opened, pin)
	f.Closed = append(f.Closed, pin)
	return nil
}

// WritesFor returns the levels written to a single pin, in order.
func (f *FakeDriver) WritesFor(pin int) []Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Level
	for _, w := range f.Writes {
		if w.Pin == pin {
			out = append(out, w.Level)
		}
	}
	return out
}

// Reset clears recorded writes and errors.
func (f *FakeDriver) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Writes = nil
	f.Closed = nil
	f.WriteError = nil
	f.OpenError = nil
}
