// Package mqtt publishes device, delivery and lifecycle events to a broker
// and accepts command phrases from it. The Publisher abstraction lets tests
// run against FakePublisher.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/beacon/internal/blink"
	"github.com/sweeney/beacon/internal/delivery"
)

// Topics.
const (
	TopicLevel    = "beacon/device/level"
	TopicDelivery = "beacon/delivery"
	TopicSystem   = "beacon/system"
	TopicCommand  = "beacon/command"
)

// Publisher publishes events to MQTT. Publish errors are reported but must
// never stop the caller.
type Publisher interface {
	// PublishLevel sends a device pin level change (QoS 0).
	PublishLevel(c blink.LevelChange) error

	// PublishDelivery sends a delivery outcome (QoS 1).
	PublishDelivery(o delivery.Outcome) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// CommandHandler receives a command phrase from the command topic.
type CommandHandler func(phrase string)

// CommandSource delivers command phrases published by other clients.
type CommandSource interface {
	SubscribeCommands(fn CommandHandler) error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// LevelPayload is the message on TopicLevel.
type LevelPayload struct {
	Device LevelInner `json:"device"`
}

// LevelInner contains the level change details.
type LevelInner struct {
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
	Pin       int    `json:"pin"`
	Level     string `json:"level"`
	Fault     string `json:"fault,omitempty"`
}

// FormatLevelPayload creates the JSON payload for a level change.
func FormatLevelPayload(c blink.LevelChange) ([]byte, error) {
	p := LevelPayload{
		Device: LevelInner{
			Timestamp: c.Time.UTC().Format(time.RFC3339Nano),
			Name:      c.Device,
			Pin:       c.Pin,
			Level:     c.Level.String(),
		},
	}
	if c.Err != nil {
		p.Device.Fault = c.Err.Error()
	}
	return json.Marshal(p)
}

// DeliveryPayload is the message on TopicDelivery.
type DeliveryPayload struct {
	Delivery DeliveryInner `json:"delivery"`
}

// DeliveryInner contains the delivery outcome details.
type DeliveryInner struct {
	Timestamp     string `json:"timestamp"`
	ID            string `json:"id"`
	Kind          string `json:"kind"`
	Target        string `json:"target"`
	Result        string `json:"result"`
	Attempts      int    `json:"attempts"`
	NextAttemptAt string `json:"next_attempt_at,omitempty"`
	Error         string `json:"error,omitempty"`
}

// FormatDeliveryPayload creates the JSON payload for a delivery outcome.
// next_attempt_at is only present for retries.
func FormatDeliveryPayload(o delivery.Outcome) ([]byte, error) {
	p := DeliveryPayload{
		Delivery: DeliveryInner{
			Timestamp: o.Time.UTC().Format(time.RFC3339),
			ID:        o.ID,
			Kind:      string(o.Kind),
			Target:    o.Target,
			Result:    string(o.Result),
			Attempts:  o.Attempts,
		},
	}
	if o.Result == delivery.ResultRetry {
		p.Delivery.NextAttemptAt = o.NextAttemptAt.UTC().Format(time.RFC3339)
	}
	if o.Err != nil {
		p.Delivery.Error = o.Err.Error()
	}
	return json.Marshal(p)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
