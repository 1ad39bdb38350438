package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string                  `json:"event,omitempty"`
	Reason        string                  `json:"reason,omitempty"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	StartTime     string                  `json:"start_time"`
	Timestamp     string                  `json:"timestamp"`
	MQTT          MQTTStatus              `json:"mqtt"`
	Devices       []DeviceJSON            `json:"devices"`
	Deliveries    map[string]DeliveryJSON `json:"deliveries"`
	Config        ConfigJSON              `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// DeviceJSON is the JSON representation of one device.
type DeviceJSON struct {
	Name       string `json:"name"`
	Pin        int    `json:"pin"`
	Scheme     string `json:"scheme"`
	Visibility string `json:"visibility"`
	FlashMode  string `json:"flash_mode"`
	Level      string `json:"level"`
	Index      int    `json:"index"`
	Faults     int    `json:"faults"`
	LastChange string `json:"last_change,omitempty"`
}

// DeliveryJSON is the JSON representation of one action kind's queue.
type DeliveryJSON struct {
	Pending  int `json:"pending"`
	Sent     int `json:"sent"`
	Retried  int `json:"retried"`
	Perished int `json:"perished"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Devices:       make([]DeviceJSON, 0, len(snap.Devices)),
		Deliveries:    make(map[string]DeliveryJSON),
		Config: ConfigJSON{
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}

	for _, d := range snap.Devices {
		dj := DeviceJSON{
			Name:       d.Name,
			Pin:        d.Pin,
			Scheme:     string(d.Scheme),
			Visibility: d.Visibility.String(),
			FlashMode:  d.FlashMode.String(),
			Level:      d.Level.String(),
			Index:      d.Index,
			Faults:     d.Faults,
		}
		if !d.LastChange.IsZero() {
			dj.LastChange = d.LastChange.UTC().Format(time.RFC3339Nano)
		}
		inner.Devices = append(inner.Devices, dj)
	}

	for _, k := range snap.Kinds() {
		c := snap.Deliveries[k]
		inner.Deliveries[string(k)] = DeliveryJSON{
			Pending:  snap.Pending[k],
			Sent:     c.Sent,
			Retried:  c.Retried,
			Perished: c.Perished,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
