// Package gpio provides binary pin output with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"fmt"
	"strings"
)

// Level is a binary pin level.
type Level int

const (
	Low  Level = 0
	High Level = 1
)

func (l Level) String() string {
	if l == High {
		return "HIGH"
	}
	return "LOW"
}

// Direction is the configured direction of a pin.
type Direction int

const (
	Input Direction = iota
	Output
)

// Scheme is the pin-addressing convention. It is passed through to the
// driver untouched by the schedulers.
type Scheme string

const (
	// SchemeLogical addresses pins by their BCM/line offset.
	SchemeLogical Scheme = "logical"
	// SchemeBoard addresses pins by their physical header position.
	SchemeBoard Scheme = "board"
)

// ParseScheme maps a configuration token to a Scheme. Empty means logical.
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "logical", "bcm":
		return SchemeLogical, nil
	case "board":
		return SchemeBoard, nil
	}
	return "", fmt.Errorf("gpio: unknown numbering scheme %q", s)
}

// ErrPinNotOpen is returned when a pin is used before Open.
var ErrPinNotOpen = errors.New("gpio: pin not open")

// PinDriver drives individual GPIO pins.
type PinDriver interface {
	// Open claims the pin using the given numbering scheme.
	Open(pin int, scheme Scheme) error

	// SetDirection configures the pin as input or output.
	SetDirection(pin int, dir Direction) error

	// Write sets the pin level. The pin must be an output.
	Write(pin int, level Level) error

	// Read returns the current pin level.
	Read(pin int) (Level, error)

	// Close releases the pin.
	Close(pin int) error
}

// DefaultChip is the GPIO character device on a Raspberry Pi.
const DefaultChip = "gpiochip0"
