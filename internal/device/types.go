// Package device holds the blink device model: visibility and flash-mode
// enums, the fixed flash pattern tables, the registry of configured devices
// and the pure waveform step. It performs no I/O and never sleeps; the
// blink scheduler owns timing and pin writes.
package device

import (
	"fmt"
	"strings"

	"github.com/sweeney/beacon/internal/gpio"
)

// Visibility is the light state of a device.
type Visibility int

const (
	Off Visibility = iota
	On
	Flashing
)

var visibilityNames = [...]string{"off", "on", "flashing"}

func (v Visibility) String() string {
	if v < 0 || int(v) >= len(visibilityNames) {
		return fmt.Sprintf("visibility(%d)", int(v))
	}
	return visibilityNames[v]
}

// FlashMode selects a flash pattern.
type FlashMode int

const (
	Beer FlashMode = iota
	Slow
	Medium
	Fast
	Help
	Mayday
	// IDK is the unknown sentinel. It has a pattern but no command token.
	IDK
)

var flashModeNames = [...]string{"beer", "slow", "medium", "fast", "help", "mayday", "idk"}

func (m FlashMode) String() string {
	if m < 0 || int(m) >= len(flashModeNames) {
		return fmt.Sprintf("flashmode(%d)", int(m))
	}
	return flashModeNames[m]
}

// Command tokens. Lookups are exact on lowercase tokens.
var (
	flashModeTokens = map[string]FlashMode{
		"beer":   Beer,
		"slow":   Slow,
		"medium": Medium,
		"fast":   Fast,
		"help":   Help,
		"mayday": Mayday,
	}
	visibilityTokens = map[string]Visibility{
		"off":      Off,
		"on":       On,
		"flashing": Flashing,
	}
)

// FlashModeToken reports the flash mode named by a lowercase command token.
func FlashModeToken(tok string) (FlashMode, bool) {
	m, ok := flashModeTokens[tok]
	return m, ok
}

// VisibilityToken reports the visibility named by a lowercase command token.
func VisibilityToken(tok string) (Visibility, bool) {
	v, ok := visibilityTokens[tok]
	return v, ok
}

// ParseFlashMode parses a configuration value. Unlike FlashModeToken it
// accepts "idk". Empty means Help.
func ParseFlashMode(s string) (FlashMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Help, nil
	}
	if s == "idk" {
		return IDK, nil
	}
	if m, ok := flashModeTokens[s]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("unknown flash mode %q", s)
}

// ParseVisibility parses a configuration value. Empty means Off.
func ParseVisibility(s string) (Visibility, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Off, nil
	}
	if v, ok := visibilityTokens[s]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("unknown visibility %q", s)
}

// Config is the static configuration of one device.
type Config struct {
	Name       string
	Pin        int
	Scheme     gpio.Scheme
	Visibility Visibility
	FlashMode  FlashMode
}

// Device is the mutable state of one device. All access goes through the
// Registry lock.
type Device struct {
	name   string
	pin    int
	scheme gpio.Scheme

	Visibility Visibility
	FlashMode  FlashMode

	// index and level are owned by the blink scheduler.
	index int
	level gpio.Level
}

// Name returns the immutable device name.
func (d *Device) Name() string { return d.name }

// Pin returns the pin address.
func (d *Device) Pin() int { return d.pin }

// Scheme returns the pin numbering scheme.
func (d *Device) Scheme() gpio.Scheme { return d.scheme }

// Index returns the current waveform index.
func (d *Device) Index() int { return d.index }

// Level returns the last level written (or attempted).
func (d *Device) Level() gpio.Level { return d.level }

// State is a point-in-time copy of a device.
// It is a value type and safe to use after the lock is released.
type State struct {
	Name       string
	Pin        int
	Scheme     gpio.Scheme
	Visibility Visibility
	FlashMode  FlashMode
	Index      int
	Level      gpio.Level
}

func (d *Device) state() State {
	return State{
		Name:       d.name,
		Pin:        d.pin,
		Scheme:     d.scheme,
		Visibility: d.Visibility,
		FlashMode:  d.FlashMode,
		Index:      d.index,
		Level:      d.level,
	}
}
