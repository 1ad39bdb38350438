package device

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNoDevices is returned when a registry is built from an empty config.
var ErrNoDevices = errors.New("device: no devices configured")

// Registry is the fixed, ordered set of configured devices. A single lock
// guards every device; the blink scheduler holds it across a tick,
// including the pin write.
type Registry struct {
	mu     sync.Mutex
	order  []*Device
	byName map[string]*Device
}

// NewRegistry creates devices from configuration, preserving order.
// The first device is the default command target.
func NewRegistry(cfgs []Config) (*Registry, error) {
	if len(cfgs) == 0 {
		return nil, ErrNoDevices
	}
	r := &Registry{byName: make(map[string]*Device, len(cfgs))}
	for _, c := range cfgs {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("device: empty name for pin %d", c.Pin)
		}
		key := strings.ToLower(name)
		if _, dup := r.byName[key]; dup {
			return nil, fmt.Errorf("device: duplicate name %q", name)
		}
		d := &Device{
			name:       name,
			pin:        c.Pin,
			scheme:     c.Scheme,
			Visibility: c.Visibility,
			FlashMode:  c.FlashMode,
		}
		r.order = append(r.order, d)
		r.byName[key] = d
	}
	return r, nil
}

// Names returns device names in configuration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	for i, d := range r.order {
		out[i] = d.name
	}
	return out
}

// Default returns the first configured device name.
func (r *Registry) Default() string {
	return r.order[0].name
}

// Lookup matches a token against device names, ignoring case, and returns
// the configured name.
func (r *Registry) Lookup(token string) (string, bool) {
	d, ok := r.byName[strings.ToLower(token)]
	if !ok {
		return "", false
	}
	return d.name, true
}

// Do runs fn on the named device under the registry lock. It reports
// whether the device exists.
func (r *Registry) Do(name string, fn func(d *Device)) bool {
	d, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(d)
	return true
}

// Get returns a copy of the named device's state.
func (r *Registry) Get(name string) (State, bool) {
	var s State
	ok := r.Do(name, func(d *Device) { s = d.state() })
	return s, ok
}

// Snapshot returns copies of all devices in configuration order.
func (r *Registry) Snapshot() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.order))
	for i, d := range r.order {
		out[i] = d.state()
	}
	return out
}
