// Package blink drives configured devices through their waveforms. Each
// device has its own fire-once timer that is re-armed at the end of every
// tick with the delay the tick produced; ticks for all devices are
// serialized by the device registry lock.
package blink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/beacon/internal/device"
	"github.com/sweeney/beacon/internal/gpio"
)

// LevelChange reports a level written to a device pin.
type LevelChange struct {
	Time   time.Time
	Device string
	Pin    int
	Level  gpio.Level
	// Err is the write fault, if any. The logical level is updated anyway.
	Err error
}

// Scheduler runs the per-device blink timers.
type Scheduler struct {
	reg    *device.Registry
	driver gpio.PinDriver
	log    zerolog.Logger
	now    func() time.Time

	// onLevel is called under the registry lock; it must not block.
	onLevel func(LevelChange)

	wg sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithClock overrides time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLevelHook registers a callback for every attempted pin write.
func WithLevelHook(fn func(LevelChange)) Option {
	return func(s *Scheduler) { s.onLevel = fn }
}

// New creates a Scheduler for every device in reg.
func New(reg *device.Registry, driver gpio.PinDriver, opts ...Option) *Scheduler {
	s := &Scheduler{
		reg:    reg,
		driver: driver,
		log:    zerolog.Nop(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Init opens every device pin as an output and drives it low. A failing
// device is reported but does not stop the others from initializing.
func (s *Scheduler) Init() error {
	var errs []error
	for _, st := range s.reg.Snapshot() {
		if err := s.initPin(st); err != nil {
			s.log.Error().Err(err).Str("device", st.Name).Int("pin", st.Pin).Msg("pin init failed")
			errs = append(errs, err)
			continue
		}
		s.log.Info().Str("device", st.Name).Int("pin", st.Pin).Str("scheme", string(st.Scheme)).Msg("pin ready")
	}
	return errors.Join(errs...)
}

func (s *Scheduler) initPin(st device.State) error {
	if err := s.driver.Open(st.Pin, st.Scheme); err != nil {
		return fmt.Errorf("open %s: %w", st.Name, err)
	}
	if err := s.driver.SetDirection(st.Pin, gpio.Output); err != nil {
		return fmt.Errorf("set output %s: %w", st.Name, err)
	}
	if err := s.driver.Write(st.Pin, gpio.Low); err != nil {
		return fmt.Errorf("write low %s: %w", st.Name, err)
	}
	return nil
}

// Tick advances one device and returns the delay before its next tick.
// Write faults are logged and swallowed.
func (s *Scheduler) Tick(name string) time.Duration {
	delay := device.SteadyInterval
	s.reg.Do(name, func(d *device.Device) {
		step := d.Advance()
		delay = step.Delay
		if !step.Changed {
			return
		}

		err := s.write(d.Pin(), step.Level)
		if err != nil {
			s.log.Warn().Err(err).Str("device", d.Name()).Int("pin", d.Pin()).Msg("pin write failed")
		} else {
			s.log.Debug().Str("device", d.Name()).Stringer("level", step.Level).Dur("delay", step.Delay).Msg("level")
		}
		if s.onLevel != nil {
			s.onLevel(LevelChange{
				Time:   s.now(),
				Device: d.Name(),
				Pin:    d.Pin(),
				Level:  step.Level,
				Err:    err,
			})
		}
	})
	return delay
}

// write performs one pin write, turning a driver panic into an error.
func (s *Scheduler) write(pin int, level gpio.Level) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pin %d write panic: %v", pin, r)
		}
	}()
	return s.driver.Write(pin, level)
}

// Start launches one timer goroutine per device. Each device ticks
// immediately, then at the delay its previous tick returned.
func (s *Scheduler) Start(ctx context.Context) {
	for _, name := range s.reg.Names() {
		s.wg.Add(1)
		go s.loop(ctx, name)
	}
	s.log.Info().Int("devices", len(s.reg.Names())).Msg("blink scheduler started")
}

// Wait blocks until every device loop has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, name string) {
	defer s.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			timer.Reset(s.Tick(name))
		}
	}
}

// Close drives every pin low and releases it. Call after Wait.
func (s *Scheduler) Close() error {
	var errs []error
	for _, st := range s.reg.Snapshot() {
		if err := s.driver.Write(st.Pin, gpio.Low); err != nil {
			errs = append(errs, fmt.Errorf("write low %s: %w", st.Name, err))
		}
		if err := s.driver.Close(st.Pin); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", st.Name, err))
		}
	}
	s.log.Info().Msg("blink scheduler stopped")
	return errors.Join(errs...)
}
