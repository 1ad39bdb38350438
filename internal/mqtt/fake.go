package mqtt

import (
	"sync"

	"github.com/sweeney/beacon/internal/blink"
	"github.com/sweeney/beacon/internal/delivery"
)

// FakePublisher records published events for test assertions. It is safe
// for concurrent use.
type FakePublisher struct {
	mu sync.Mutex

	// Levels contains all level changes that were published.
	Levels []blink.LevelChange

	// Deliveries contains all delivery outcomes that were published.
	Deliveries []delivery.Outcome

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, is returned by PublishLevel and PublishDelivery.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	handler CommandHandler
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishLevel records the level change.
func (f *FakePublisher) PublishLevel(c blink.LevelChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Levels = append(f.Levels, c)
	return nil
}

// PublishDelivery records the outcome.
func (f *FakePublisher) PublishDelivery(o delivery.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Deliveries = append(f.Deliveries, o)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	return nil
}

// SubscribeCommands stores fn for Inject.
func (f *FakePublisher) SubscribeCommands(fn CommandHandler) error {
	f.mu.Lock()
	f.handler = fn
	f.mu.Unlock()
	return nil
}

// Inject delivers phrase as if it arrived on the command topic. It reports
// false when nothing is subscribed.
func (f *FakePublisher) Inject(phrase string) bool {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(phrase)
	return true
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// SystemEventNames returns the Event field of every recorded system event.
func (f *FakePublisher) SystemEventNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.SystemEvents))
	for i, e := range f.SystemEvents {
		names[i] = e.Event
	}
	return names
}

// LevelCount returns the number of recorded level changes.
func (f *FakePublisher) LevelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Levels)
}

// DeliveryCount returns the number of recorded delivery outcomes.
func (f *FakePublisher) DeliveryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Deliveries)
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Levels = nil
	f.Deliveries = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
