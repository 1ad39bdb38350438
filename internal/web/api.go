package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sweeney/beacon/internal/command"
	"github.com/sweeney/beacon/internal/device"
	"github.com/sweeney/beacon/internal/notify"
)

// APIPrefix is the root of the trigger API.
const APIPrefix = "/api/iot/v1"

const maxBody = 1 << 20

// Triggers configures the canned trigger events.
type Triggers struct {
	ExecuteRecipients []string
	MotionRecipients  []string
	PerishSeconds     int
	// IFTTTURL builds the maker webhook URL for an event name.
	IFTTTURL func(event string) string
}

// API serves the trigger, command and enqueue routes. Every route except
// ping requires the access key as a path segment.
type API struct {
	accessKey string
	store     *notify.Store
	commands  *command.Applier
	triggers  Triggers
	limiter   *rate.Limiter
	log       zerolog.Logger
}

// APIOption configures an API.
type APIOption func(*API)

// WithRateLimit allows rps requests per second with the given burst.
// rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) APIOption {
	return func(a *API) {
		if rps <= 0 {
			a.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithAPILogger sets the logger.
func WithAPILogger(l zerolog.Logger) APIOption {
	return func(a *API) { a.log = l }
}

// NewAPI creates the trigger API.
func NewAPI(accessKey string, store *notify.Store, commands *command.Applier, triggers Triggers, opts ...APIOption) *API {
	a := &API{
		accessKey: accessKey,
		store:     store,
		commands:  commands,
		triggers:  triggers,
		log:       zerolog.Nop(),
	}
	if a.triggers.PerishSeconds <= 0 {
		a.triggers.PerishSeconds = notify.DefaultPerishSeconds
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *API) register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+APIPrefix+"/ping", a.wrap(a.handlePing))
	mux.HandleFunc("GET "+APIPrefix+"/trigger/{event}/{access}", a.wrap(a.authorized(a.handleTrigger)))
	mux.HandleFunc("GET "+APIPrefix+"/command/{access}", a.wrap(a.authorized(a.handleCommand)))
	mux.HandleFunc("POST "+APIPrefix+"/webhook/{access}", a.wrap(a.authorized(a.handleWebhook)))
	mux.HandleFunc("POST "+APIPrefix+"/email/{access}", a.wrap(a.authorized(a.handleEmail)))
}

// wrap applies rate limiting and turns a handler panic into a 500.
func (a *API) wrap(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.limiter != nil && !a.limiter.Allow() {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		defer func() {
			if p := recover(); p != nil {
				a.log.Error().Interface("panic", p).Str("path", r.URL.Path).Msg("unhandled error")
				http.Error(w, fmt.Sprint(p), http.StatusInternalServerError)
			}
		}()
		h(w, r)
	}
}

func (a *API) authorized(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.PathValue("access")
		if a.accessKey == "" || subtle.ConstantTimeCompare([]byte(got), []byte(a.accessKey)) != 1 {
			a.log.Error().Str("remote", r.RemoteAddr).Msg("invalid access key")
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}
		h(w, r)
	}
}

func (a *API) handlePing(w http.ResponseWriter, _ *http.Request) {
	_, _ = io.WriteString(w, "Available")
}

func (a *API) handleTrigger(w http.ResponseWriter, r *http.Request) {
	event := r.PathValue("event")
	q := r.URL.Query()
	v1, v2, v3 := q.Get("value1"), q.Get("value2"), q.Get("value3")

	log := a.log.With().Str("remote", r.RemoteAddr).Str("event", event).Logger()

	switch event {
	case "xo":
		log.Warn().Str("value1", v1).Str("value2", v2).Str("value3", v3).Msg("triggered: execute order")
		body := fmt.Sprintf("v1: %s\r\nv2: %s\r\nv3: %s\r\n", v1, v2, v3)
		for _, rcpt := range a.triggers.ExecuteRecipients {
			id := a.store.EnqueueEmail([]string{rcpt}, "Execute Request: Result", body, a.triggers.PerishSeconds)
			log.Info().Str("id", id).Str("recipient", rcpt).Msg("email queued")
		}

	case "mdet1":
		log.Warn().Msg("triggered: motion detector test")
		if a.triggers.IFTTTURL != nil {
			id := a.store.EnqueueWebhook(a.triggers.IFTTTURL(event+"_ack"), "", a.triggers.PerishSeconds)
			log.Info().Str("id", id).Msg("webhook queued")
		}
		for _, rcpt := range a.triggers.MotionRecipients {
			id := a.store.EnqueueEmail([]string{rcpt}, "Motion Detector Test: Result",
				"A motion detector test was triggered by an incoming webhook", a.triggers.PerishSeconds)
			log.Info().Str("id", id).Str("recipient", rcpt).Msg("email queued")
		}

	case "led_on", "led_off", "led_toggle", "led_flash":
		name, ok := a.target(v1)
		if !ok {
			log.Error().Str("device", v1).Msg("unknown device")
			http.Error(w, "Unknown device", http.StatusNotFound)
			return
		}
		st := a.led(event, name, v2)
		log.Warn().
			Str("device", st.Name).
			Stringer("visibility", st.Visibility).
			Stringer("flash_mode", st.FlashMode).
			Msg("triggered: led")

	default:
		log.Error().Msg("unknown event requested")
		http.Error(w, "Unknown request", http.StatusNotFound)
		return
	}

	_, _ = io.WriteString(w, "Accepted")
}

// target resolves the device named by value1, or the default device when
// value1 is blank.
func (a *API) target(value1 string) (string, bool) {
	reg := a.commands.Registry()
	if strings.TrimSpace(value1) == "" {
		return reg.Default(), true
	}
	return reg.Lookup(strings.TrimSpace(value1))
}

func (a *API) led(event, name, phrase string) device.State {
	reg := a.commands.Registry()
	switch event {
	case "led_on":
		return a.commands.ApplyParsed(command.Command{Device: name, Visibility: ptr(device.On)}, event)
	case "led_off":
		return a.commands.ApplyParsed(command.Command{Device: name, Visibility: ptr(device.Off)}, event)
	case "led_toggle":
		reg.Do(name, func(d *device.Device) {
			if d.Visibility == device.Off {
				d.Visibility = device.On
			} else {
				d.Visibility = device.Off
			}
		})
		st, _ := reg.Get(name)
		return st
	}

	// led_flash: the phrase may pick the mode or light state; the device
	// comes from value1.
	cmd := command.Parse(reg, phrase)
	cmd.Device = name
	if cmd.Visibility == nil {
		cmd.Visibility = ptr(device.Flashing)
	}
	if cmd.FlashMode == nil {
		cmd.FlashMode = ptr(device.Fast)
	}
	return a.commands.ApplyParsed(cmd, phrase)
}

func (a *API) handleCommand(w http.ResponseWriter, r *http.Request) {
	st := a.commands.ApplyCommand(r.URL.Query().Get("phrase"))
	writeJSON(w, http.StatusOK, deviceResponse(st))
}

func (a *API) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req WebhookRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		http.Error(w, "url: want an absolute http(s) URL", http.StatusBadRequest)
		return
	}
	id := a.store.EnqueueWebhook(req.URL, req.Payload, a.perish(req.PerishSeconds))
	a.log.Info().Str("id", id).Str("url", req.URL).Msg("webhook queued")
	writeJSON(w, http.StatusAccepted, EnqueueResponse{IDs: []string{id}})
}

func (a *API) handleEmail(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := decode(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Recipients) == 0 {
		http.Error(w, "recipients: required", http.StatusBadRequest)
		return
	}
	id := a.store.EnqueueEmail(req.Recipients, req.Subject, req.Body, a.perish(req.PerishSeconds))
	a.log.Info().Str("id", id).Strs("recipients", req.Recipients).Msg("email queued")
	writeJSON(w, http.StatusAccepted, EnqueueResponse{IDs: []string{id}})
}

func (a *API) perish(p *int) int {
	if p == nil {
		return notify.DefaultPerishSeconds
	}
	return *p
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return fmt.Errorf("invalid body: %w", err)
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
