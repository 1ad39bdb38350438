//go:build !linux

package gpio

import "errors"

// RealDriver is not available on non-Linux platforms.
type RealDriver struct{}

// NewRealDriver returns an error on non-Linux platforms.
func NewRealDriver(chip string) (*RealDriver, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Open is not implemented on non-Linux platforms.
func (r *RealDriver) Open(pin int, scheme Scheme) error {
	return errors.New("gpio: not supported")
}

// SetDirection is not implemented on non-Linux platforms.
func (r *RealDriver) SetDirection(pin int, dir Direction) error {
	return errors.New("gpio: not supported")
}

// Write is not implemented on non-Linux platforms.
func (r *RealDriver) Write(pin int, level Level) error {
	return errors.New("gpio: not supported")
}

// Read is not implemented on non-Linux platforms.
func (r *RealDriver) Read(pin int) (Level, error) {
	return Low, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealDriver) Close(pin int) error {
	return nil
}

// Shutdown is not implemented on non-Linux platforms.
func (r *RealDriver) Shutdown() error {
	return nil
}
