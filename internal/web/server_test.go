package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/beacon/internal/command"
	"github.com/sweeney/beacon/internal/delivery"
	"github.com/sweeney/beacon/internal/device"
	"github.com/sweeney/beacon/internal/gpio"
	"github.com/sweeney/beacon/internal/notify"
	"github.com/sweeney/beacon/internal/status"
)

const testKey = "s3cret-key"

type fixture struct {
	ts      *httptest.Server
	tracker *status.Tracker
	store   *notify.Store
	reg     *device.Registry
}

func newFixture(t *testing.T, opts ...APIOption) *fixture {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	reg, err := device.NewRegistry([]device.Config{
		{Name: "kitchen", Pin: 18, Scheme: gpio.SchemeLogical, Visibility: device.Off, FlashMode: device.Help},
		{Name: "porch", Pin: 11, Scheme: gpio.SchemeBoard, Visibility: device.Off, FlashMode: device.Slow},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	store := notify.NewStore()

	tr := status.NewTracker(start, status.Config{
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":5000",
	})
	tr.SetSources(reg.Snapshot, store.Pending)

	api := NewAPI(testKey, store, command.NewApplier(reg, zerolog.Nop()), Triggers{
		ExecuteRecipients: []string{"ops@example.com"},
		MotionRecipients:  []string{"alarm@example.com", "ops@example.com"},
		PerishSeconds:     120,
		IFTTTURL: func(event string) string {
			return "https://maker.ifttt.com/trigger/" + event + "/with/key/abc"
		},
	}, opts...)

	srv := New(":0", tr, api)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{ts: ts, tracker: tr, store: store, reg: reg}
}

func (f *fixture) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(f.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func (f *fixture) post(t *testing.T, path, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(f.ts.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func (f *fixture) device(t *testing.T, name string) device.State {
	t.Helper()
	st, ok := f.reg.Get(name)
	if !ok {
		t.Fatalf("device %s not found", name)
	}
	return st
}

func TestJSONEndpoint(t *testing.T) {
	f := newFixture(t)
	f.tracker.SetMQTTConnected(true)
	f.tracker.RecordOutcome(delivery.Outcome{Kind: notify.KindWebhook, Result: delivery.ResultSent})
	f.store.EnqueueEmail([]string{"a@example.com"}, "s", "b", 120)

	resp, err := http.Get(f.ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("MQTT.Connected: got false, want true")
	}
	if len(sj.Status.Devices) != 2 {
		t.Fatalf("Devices: got %d, want 2", len(sj.Status.Devices))
	}
	if sj.Status.Devices[0].Name != "kitchen" {
		t.Errorf("Devices[0]: got %q, want kitchen", sj.Status.Devices[0].Name)
	}
	if got := sj.Status.Deliveries["webhook"].Sent; got != 1 {
		t.Errorf("webhook sent: got %d, want 1", got)
	}
	if got := sj.Status.Deliveries["email"].Pending; got != 1 {
		t.Errorf("email pending: got %d, want 1", got)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/", "/index.html"} {
		code, body := f.get(t, path)
		if code != 200 {
			t.Errorf("%s status: got %d, want 200", path, code)
		}
		if !strings.Contains(body, "<title>Beacon</title>") {
			t.Errorf("%s: missing title", path)
		}
		if !strings.Contains(body, "kitchen") || !strings.Contains(body, "porch") {
			t.Errorf("%s: missing device rows", path)
		}
		if !strings.Contains(body, "webhook") {
			t.Errorf("%s: missing delivery rows", path)
		}
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	f := newFixture(t)
	code, _ := f.get(t, "/nope")
	if code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", code)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	f := newFixture(t)

	code, _ := f.get(t, APIPrefix+"/trigger/led_on/"+testKey+"?value1=porch")
	if code != 200 {
		t.Fatalf("led_on status: got %d", code)
	}

	_, body := f.get(t, "/index.json")
	var sj status.StatusJSON
	if err := json.Unmarshal([]byte(body), &sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if sj.Status.Devices[1].Visibility != "on" {
		t.Errorf("porch visibility: got %q, want on", sj.Status.Devices[1].Visibility)
	}
}

func TestStatusOnlyServer(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	ts := httptest.NewServer(New(":0", tr, nil).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + APIPrefix + "/ping")
	if err != nil {
		t.Fatalf("GET ping: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("ping without API: got %d, want 404", resp.StatusCode)
	}
}
