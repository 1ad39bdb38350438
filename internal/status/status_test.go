package status

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/beacon/internal/blink"
	"github.com/sweeney/beacon/internal/delivery"
	"github.com/sweeney/beacon/internal/device"
	"github.com/sweeney/beacon/internal/gpio"
	"github.com/sweeney/beacon/internal/notify"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func kitchen() device.State {
	return device.State{
		Name:       "kitchen",
		Pin:        18,
		Scheme:     gpio.SchemeLogical,
		Visibility: device.Flashing,
		FlashMode:  device.Help,
		Index:      3,
		Level:      gpio.Low,
	}
}

func TestNewTracker(t *testing.T) {
	cfg := Config{Broker: "tcp://localhost:1883", HTTPAddr: ":5000", HeartbeatMs: 900000}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.HTTPAddr != ":5000" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":5000")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if len(snap.Devices) != 0 {
		t.Errorf("expected no devices without a source, got %d", len(snap.Devices))
	}
}

func TestRecordOutcome(t *testing.T) {
	tr := NewTracker(start, Config{})

	tr.RecordOutcome(delivery.Outcome{Kind: notify.KindWebhook, Result: delivery.ResultSent})
	tr.RecordOutcome(delivery.Outcome{Kind: notify.KindWebhook, Result: delivery.ResultRetry})
	tr.RecordOutcome(delivery.Outcome{Kind: notify.KindWebhook, Result: delivery.ResultRetry})
	tr.RecordOutcome(delivery.Outcome{Kind: notify.KindEmail, Result: delivery.ResultPerished})

	snap := tr.Snapshot()
	wh := snap.Deliveries[notify.KindWebhook]
	if wh.Sent != 1 || wh.Retried != 2 || wh.Perished != 0 {
		t.Errorf("webhook counts: got %+v, want sent=1 retried=2 perished=0", wh)
	}
	em := snap.Deliveries[notify.KindEmail]
	if em.Perished != 1 {
		t.Errorf("email perished: got %d, want 1", em.Perished)
	}
}

func TestRecordLevelCountsFaults(t *testing.T) {
	tr := NewTracker(start, Config{})
	tr.SetSources(func() []device.State { return []device.State{kitchen()} }, nil)

	at := start.Add(time.Minute)
	tr.RecordLevel(blink.LevelChange{Time: start, Device: "kitchen", Level: gpio.High})
	tr.RecordLevel(blink.LevelChange{Time: at, Device: "kitchen", Level: gpio.Low, Err: errors.New("busy")})

	snap := tr.Snapshot()
	if len(snap.Devices) != 1 {
		t.Fatalf("devices: got %d, want 1", len(snap.Devices))
	}
	d := snap.Devices[0]
	if d.Faults != 1 {
		t.Errorf("Faults: got %d, want 1", d.Faults)
	}
	if !d.LastChange.Equal(at) {
		t.Errorf("LastChange: got %v, want %v", d.LastChange, at)
	}
	if snap.FaultTotal() != 1 {
		t.Errorf("FaultTotal: got %d, want 1", snap.FaultTotal())
	}
}

func TestSnapshotReadsSources(t *testing.T) {
	tr := NewTracker(start, Config{})
	tr.SetSources(
		func() []device.State { return []device.State{kitchen()} },
		func() map[notify.Kind]int { return map[notify.Kind]int{notify.KindEmail: 4} },
	)

	snap := tr.Snapshot()
	if snap.Devices[0].Name != "kitchen" || snap.Devices[0].FlashMode != device.Help {
		t.Errorf("device: got %+v", snap.Devices[0])
	}
	if snap.Pending[notify.KindEmail] != 4 {
		t.Errorf("Pending[email]: got %d, want 4", snap.Pending[notify.KindEmail])
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSnapshotUptime(t *testing.T) {
	tr := NewTracker(start, Config{})
	tr.SetClock(func() time.Time { return start.Add(90 * time.Second) })

	if got := tr.Snapshot().Uptime(); got != 90*time.Second {
		t.Errorf("Uptime: got %v, want 90s", got)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(start, Config{})
	tr.RecordOutcome(delivery.Outcome{Kind: notify.KindWebhook, Result: delivery.ResultSent})

	snap := tr.Snapshot()
	snap.Deliveries[notify.KindWebhook] = DeliveryCounts{Sent: 99}

	if got := tr.Snapshot().Deliveries[notify.KindWebhook].Sent; got != 1 {
		t.Errorf("tracker mutated through snapshot: Sent=%d", got)
	}
}

func TestFormatJSON(t *testing.T) {
	snap := Snapshot{
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Devices:       []DeviceStatus{{State: kitchen(), Faults: 2}},
		Deliveries:    map[notify.Kind]DeliveryCounts{notify.KindWebhook: {Sent: 5, Retried: 1}},
		Pending:       map[notify.Kind]int{notify.KindEmail: 2},
		Config:        Config{Broker: "tcp://localhost:1883", HTTPAddr: ":5000"},
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "" {
		t.Errorf("Event: got %q, want empty", parsed.Status.Event)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if !parsed.Status.MQTT.Connected {
		t.Error("MQTT.Connected: got false, want true")
	}
	if len(parsed.Status.Devices) != 1 {
		t.Fatalf("Devices: got %d, want 1", len(parsed.Status.Devices))
	}
	d := parsed.Status.Devices[0]
	if d.Visibility != "flashing" || d.FlashMode != "help" || d.Level != "LOW" || d.Faults != 2 {
		t.Errorf("device: got %+v", d)
	}
	if d.LastChange != "" {
		t.Errorf("LastChange: got %q, want omitted", d.LastChange)
	}

	wh := parsed.Status.Deliveries["webhook"]
	if wh.Sent != 5 || wh.Retried != 1 || wh.Pending != 0 {
		t.Errorf("webhook: got %+v", wh)
	}
	em, ok := parsed.Status.Deliveries["email"]
	if !ok {
		t.Fatal("expected email entry even without outcomes")
	}
	if em.Pending != 2 {
		t.Errorf("email pending: got %d, want 2", em.Pending)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(time.Hour)}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")
	if strings.Contains(string(data), "\n") {
		t.Error("expected compact JSON for MQTT")
	}

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
	if parsed.Status.UptimeSeconds != 3600 {
		t.Errorf("UptimeSeconds: got %d, want 3600", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	data := FormatStatusEvent(Snapshot{StartTime: start, Now: start}, "HEARTBEAT", "")
	if strings.Contains(string(data), `"reason"`) {
		t.Errorf("expected reason omitted, got %s", data)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.SetSources(func() []device.State { return []device.State{kitchen()} }, nil)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.RecordOutcome(delivery.Outcome{Kind: notify.KindWebhook, Result: delivery.ResultSent})
			tr.RecordLevel(blink.LevelChange{Device: "kitchen", Time: time.Now()})
			tr.SetMQTTConnected(i%2 == 0)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
	if got := tr.Snapshot().Deliveries[notify.KindWebhook].Sent; got != 1000 {
		t.Errorf("Sent: got %d, want 1000", got)
	}
}
