// Package delivery sends queued notification actions with retry, backoff
// and expiry. A single self-rescheduling loop wakes, dispatches at most one
// due action per kind, and picks its next wake interval from the outcome.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/beacon/internal/notify"
)

// ErrNoSender is returned when an action's kind has no sender configured.
var ErrNoSender = errors.New("delivery: no sender for kind")

// Sender performs one blocking delivery attempt.
type Sender interface {
	Send(ctx context.Context, a notify.Action) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, a notify.Action) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, a notify.Action) error { return f(ctx, a) }

// Alerter is told about actions that were abandoned.
type Alerter interface {
	Alert(a notify.Action, cause error) error
}

// Result is the outcome of one dispatch.
type Result string

const (
	ResultSent     Result = "sent"
	ResultRetry    Result = "retry"
	ResultPerished Result = "perished"
)

// Outcome describes one dispatch attempt.
type Outcome struct {
	Time          time.Time
	ID            string
	Kind          notify.Kind
	Target        string
	Attempts      int
	Result        Result
	NextAttemptAt time.Time
	Err           error
}

// Scheduler dispatches actions from a notify.Store.
type Scheduler struct {
	store   *notify.Store
	senders map[notify.Kind]Sender
	locks   map[notify.Kind]*sync.Mutex

	now       func() time.Time
	log       zerolog.Logger
	onOutcome func(Outcome)
	alerter   Alerter
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithOutcomeHook registers a callback for every dispatch outcome.
func WithOutcomeHook(fn func(Outcome)) Option {
	return func(s *Scheduler) { s.onOutcome = fn }
}

// WithAlerter sets who is told about perished actions.
func WithAlerter(a Alerter) Option {
	return func(s *Scheduler) { s.alerter = a }
}

// New creates a Scheduler. senders maps each kind to its transport; a kind
// without a sender fails every attempt until its actions perish.
func New(store *notify.Store, senders map[notify.Kind]Sender, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:   store,
		senders: senders,
		locks:   make(map[notify.Kind]*sync.Mutex, len(notify.Kinds)),
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, k := range notify.Kinds {
		s.locks[k] = &sync.Mutex{}
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run ticks until ctx is cancelled. The first tick is immediate; each
// later one is scheduled from the previous tick's result.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info().Msg("delivery scheduler started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("delivery scheduler stopped")
			return
		case <-timer.C:
			timer.Reset(s.Tick(ctx))
		}
	}
}

// Tick dispatches at most one due action per kind and returns the delay
// until the next tick.
func (s *Scheduler) Tick(ctx context.Context) time.Duration {
	dispatched := false
	for _, k := range notify.Kinds {
		if s.dispatch(ctx, k) {
			dispatched = true
		}
	}
	if dispatched {
		return BusyInterval
	}
	return IdleInterval
}

func (s *Scheduler) dispatch(ctx context.Context, kind notify.Kind) bool {
	out, a, ok := s.dispatchLocked(ctx, kind)
	if !ok {
		return false
	}
	if out.Result == ResultPerished && s.alerter != nil {
		if err := s.alerter.Alert(a, out.Err); err != nil {
			s.log.Warn().Err(err).Str("id", a.ID).Msg("perish alert failed")
		}
	}
	if s.onOutcome != nil {
		s.onOutcome(out)
	}
	return true
}

// dispatchLocked claims and sends one action while holding the kind lock,
// so a kind never has more than one send in flight.
func (s *Scheduler) dispatchLocked(ctx context.Context, kind notify.Kind) (Outcome, notify.Action, bool) {
	lock := s.locks[kind]
	lock.Lock()
	defer lock.Unlock()

	a, ok := s.store.Claim(kind, s.now(), BackoffFor)
	if !ok {
		return Outcome{}, notify.Action{}, false
	}

	log := s.log.With().Str("kind", string(kind)).Str("id", a.ID).Logger()
	log.Info().Int("attempt", a.Attempts).Str("target", a.Target()).Msg("sending")

	out := Outcome{
		ID:            a.ID,
		Kind:          kind,
		Target:        a.Target(),
		Attempts:      a.Attempts,
		NextAttemptAt: a.NextAttemptAt,
	}

	// In-flight sends are not aborted by shutdown.
	err := s.send(context.WithoutCancel(ctx), kind, a)
	out.Time = s.now()
	out.Err = err

	switch {
	case err == nil:
		s.store.Remove(a.ID)
		out.Result = ResultSent
		log.Info().Msg("sent")
	case a.Perished():
		s.store.Remove(a.ID)
		out.Result = ResultPerished
		log.Warn().Err(err).Str("target", a.Target()).Int("attempts", a.Attempts).Msg("failed (perish)")
	default:
		s.store.Release(a.ID)
		out.Result = ResultRetry
		log.Warn().Err(err).Str("target", a.Target()).Time("next_attempt", a.NextAttemptAt).Msg("failed (retry)")
	}
	return out, a, true
}

// send runs the kind's sender, turning a panic into an error so one bad
// action cannot stop the loop.
func (s *Scheduler) send(ctx context.Context, kind notify.Kind, a notify.Action) (err error) {
	sender, ok := s.senders[kind]
	if !ok || sender == nil {
		return fmt.Errorf("%w %s", ErrNoSender, kind)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s sender panic: %v", kind, r)
		}
	}()
	return sender.Send(ctx, a)
}
