// Package status provides a thread-safe status tracker for the beacon daemon.
// It is read by the HTTP handlers and by the MQTT lifecycle publisher.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/sweeney/beacon/internal/blink"
	"github.com/sweeney/beacon/internal/delivery"
	"github.com/sweeney/beacon/internal/device"
	"github.com/sweeney/beacon/internal/notify"
)

// Config contains daemon configuration for display.
type Config struct {
	HTTPAddr    string
	Broker      string
	HeartbeatMs int64
}

// DeliveryCounts counts dispatch outcomes for one action kind.
type DeliveryCounts struct {
	Sent     int
	Retried  int
	Perished int
}

// DeviceStatus is a device state plus what the tracker observed about it.
type DeviceStatus struct {
	device.State
	Faults     int
	LastChange time.Time
}

// Snapshot is a point-in-time view of daemon state. It is a value type and
// safe to use after the lock is released.
type Snapshot struct {
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Devices       []DeviceStatus
	Deliveries    map[notify.Kind]DeliveryCounts
	Pending       map[notify.Kind]int
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu         sync.RWMutex
	start      time.Time
	cfg        Config
	mqtt       bool
	deliveries map[notify.Kind]DeliveryCounts
	faults     map[string]int
	lastChange map[string]time.Time

	devices func() []device.State
	pending func() map[notify.Kind]int
	now     func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		start:      startTime,
		cfg:        cfg,
		deliveries: make(map[notify.Kind]DeliveryCounts),
		faults:     make(map[string]int),
		lastChange: make(map[string]time.Time),
		now:        time.Now,
	}
}

// SetSources sets the live readers for device states and queue depth.
// Either may be nil.
func (t *Tracker) SetSources(devices func() []device.State, pending func() map[notify.Kind]int) {
	t.mu.Lock()
	t.devices = devices
	t.pending = pending
	t.mu.Unlock()
}

// SetClock overrides time.Now for Snapshot.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}

// RecordOutcome counts a delivery outcome.
func (t *Tracker) RecordOutcome(o delivery.Outcome) {
	t.mu.Lock()
	c := t.deliveries[o.Kind]
	switch o.Result {
	case delivery.ResultSent:
		c.Sent++
	case delivery.ResultRetry:
		c.Retried++
	case delivery.ResultPerished:
		c.Perished++
	}
	t.deliveries[o.Kind] = c
	t.mu.Unlock()
}

// RecordLevel notes a pin write. Called under the device registry lock, so
// it only touches tracker state.
func (t *Tracker) RecordLevel(c blink.LevelChange) {
	t.mu.Lock()
	t.lastChange[c.Device] = c.Time
	if c.Err != nil {
		t.faults[c.Device]++
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.mqtt = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := Snapshot{
		StartTime:     t.start,
		MQTTConnected: t.mqtt,
		Config:        t.cfg,
		Deliveries:    make(map[notify.Kind]DeliveryCounts, len(t.deliveries)),
		Pending:       make(map[notify.Kind]int),
	}
	for k, v := range t.deliveries {
		s.Deliveries[k] = v
	}
	faults := make(map[string]int, len(t.faults))
	for k, v := range t.faults {
		faults[k] = v
	}
	changes := make(map[string]time.Time, len(t.lastChange))
	for k, v := range t.lastChange {
		changes[k] = v
	}
	devices, pending, now := t.devices, t.pending, t.now
	t.mu.RUnlock()

	// Sources take their own locks; they are called with the tracker
	// unlocked so a level hook holding the registry lock cannot deadlock.
	if devices != nil {
		for _, st := range devices() {
			s.Devices = append(s.Devices, DeviceStatus{
				State:      st,
				Faults:     faults[st.Name],
				LastChange: changes[st.Name],
			})
		}
	}
	if pending != nil {
		for k, v := range pending() {
			s.Pending[k] = v
		}
	}
	s.Now = now()
	return s
}

// FaultTotal returns the number of pin write faults across devices.
func (s Snapshot) FaultTotal() int {
	n := 0
	for _, d := range s.Devices {
		n += d.Faults
	}
	return n
}

// Kinds returns the kinds present in the snapshot, always including every
// known kind, in a stable order.
func (s Snapshot) Kinds() []notify.Kind {
	seen := make(map[notify.Kind]bool)
	kinds := append([]notify.Kind(nil), notify.Kinds...)
	for _, k := range kinds {
		seen[k] = true
	}
	var extra []notify.Kind
	for k := range s.Deliveries {
		if !seen[k] {
			seen[k] = true
			extra = append(extra, k)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(kinds, extra...)
}
