// Command beacon drives GPIO signal lights from free-text commands and
// delivers queued webhook and email notifications with retry.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/beacon/internal/blink"
	"github.com/sweeney/beacon/internal/command"
	"github.com/sweeney/beacon/internal/config"
	"github.com/sweeney/beacon/internal/delivery"
	"github.com/sweeney/beacon/internal/device"
	"github.com/sweeney/beacon/internal/gpio"
	"github.com/sweeney/beacon/internal/mqtt"
	"github.com/sweeney/beacon/internal/notify"
	"github.com/sweeney/beacon/internal/status"
	"github.com/sweeney/beacon/internal/web"
)

// statusRefresh is how often the MQTT connection state is copied into the
// status tracker.
const statusRefresh = 5 * time.Second

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to the YAML config file")
	printState := flag.Bool("print-state", false, "Print the level of every configured pin and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(os.Stderr, cfg.Level())
	if err := run(cfg, *printState, logger); err != nil {
		logger.Fatal().Err(err).Msg("fatal")
	}
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

func run(cfg *config.Config, printState bool, logger zerolog.Logger) error {
	devCfgs, err := cfg.DeviceConfigs()
	if err != nil {
		return err
	}
	reg, err := device.NewRegistry(devCfgs)
	if err != nil {
		return fmt.Errorf("init devices: %w", err)
	}

	driver, err := gpio.NewRealDriver(cfg.GPIOChip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer driver.Shutdown()

	if printState {
		return printLevels(os.Stdout, reg, driver)
	}

	store := notify.NewStore()
	applier := command.NewApplier(reg, component(logger, "command"))

	tracker := status.NewTracker(time.Now(), status.Config{
		HTTPAddr:    cfg.HTTPAddr,
		Broker:      cfg.MQTT.Broker,
		HeartbeatMs: cfg.Heartbeat.Milliseconds(),
	})
	tracker.SetSources(reg.Snapshot, store.Pending)

	publisher, err := newPublisher(cfg, component(logger, "mqtt"))
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	blinker := blink.New(reg, driver,
		blink.WithLogger(component(logger, "blink")),
		blink.WithLevelHook(func(c blink.LevelChange) {
			tracker.RecordLevel(c)
			_ = publisher.PublishLevel(c)
		}),
	)
	if err := blinker.Init(); err != nil {
		logger.Warn().Err(err).Msg("some pins failed to initialise; their writes will fault")
	}

	scheduler := newDeliveryScheduler(cfg, store, component(logger, "delivery"), func(o delivery.Outcome) {
		tracker.RecordOutcome(o)
		if err := publisher.PublishDelivery(o); err != nil {
			logger.Warn().Err(err).Msg("publish delivery outcome failed")
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	blinker.Start(ctx)
	deliveryDone := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(deliveryDone)
	}()

	if err := publisher.SubscribeCommands(func(phrase string) {
		applier.ApplyCommand(phrase)
	}); err != nil {
		logger.Warn().Err(err).Msg("subscribe to command topic failed")
	}

	tracker.SetMQTTConnected(publisher.IsConnected())
	publishLifecycle(publisher, tracker, logger, time.Now(), "STARTUP", "")

	var srv *web.Server
	if cfg.HTTPAddr != "" {
		api := web.NewAPI(cfg.AccessKey, store, applier, web.Triggers{
			ExecuteRecipients: cfg.Triggers.ExecuteRecipients,
			MotionRecipients:  cfg.Triggers.MotionRecipients,
			PerishSeconds:     cfg.Triggers.PerishSeconds,
			IFTTTURL:          cfg.IFTTT.URL,
		},
			web.WithRateLimit(cfg.APIRate, cfg.APIBurst),
			web.WithAPILogger(component(logger, "web")),
		)
		srv = web.New(cfg.HTTPAddr, tracker, api)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("http server error")
			}
		}()
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
	}

	logger.Info().
		Strs("devices", reg.Names()).
		Str("broker", cfg.MQTT.Broker).
		Dur("heartbeat", cfg.Heartbeat).
		Msg("started")

	refresh := time.NewTicker(statusRefresh)
	defer refresh.Stop()

	var heartbeat <-chan time.Time
	if cfg.Heartbeat > 0 {
		hb := time.NewTicker(cfg.Heartbeat)
		defer hb.Stop()
		heartbeat = hb.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runLoop(publisher, publisher, tracker, logger, time.Now, refresh.C, heartbeat, sigCh)

	// Stop timers first so no tick races the final pin writes.
	cancel()
	blinker.Wait()
	<-deliveryDone
	if err := blinker.Close(); err != nil {
		logger.Warn().Err(err).Msg("release pins")
	}
	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	}
	if n := store.Len(); n > 0 {
		logger.Warn().Int("pending", n).Msg("dropping undelivered actions")
	}
	return nil
}

// mqttClient is everything main needs from the MQTT side.
type mqttClient interface {
	mqtt.Publisher
	mqtt.CommandSource
	mqtt.ConnectionStatus
}

func newPublisher(cfg *config.Config, log zerolog.Logger) (mqttClient, error) {
	if cfg.MQTT.Broker == "" {
		log.Info().Msg("mqtt disabled")
		return mqtt.NopPublisher{}, nil
	}
	return mqtt.NewRealPublisher(mqtt.Config{
		Broker:     cfg.MQTT.Broker,
		ClientID:   cfg.MQTT.ClientID,
		BufferSize: cfg.MQTT.BufferSize,
		Logger:     log,
	})
}

func newDeliveryScheduler(cfg *config.Config, store *notify.Store, log zerolog.Logger, onOutcome func(delivery.Outcome)) *delivery.Scheduler {
	senders := map[notify.Kind]delivery.Sender{
		notify.KindWebhook: delivery.NewWebhookSender(cfg.Webhook.Timeout),
		notify.KindEmail: delivery.NewSMTPSender(delivery.SMTPConfig{
			Host:               cfg.SMTP.Host,
			Port:               cfg.SMTP.Port,
			SSL:                cfg.SMTP.SSL,
			Username:           cfg.SMTP.Username,
			Password:           cfg.SMTP.Password,
			From:               cfg.SMTP.From,
			InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
			Timeout:            cfg.SMTP.Timeout,
		}),
	}
	opts := []delivery.Option{
		delivery.WithLogger(log),
		delivery.WithOutcomeHook(onOutcome),
	}
	if cfg.Alerts.PerishURL != "" {
		opts = append(opts, delivery.WithAlerter(delivery.NewShoutrrrAlerter(cfg.Alerts.PerishURL)))
	}
	return delivery.New(store, senders, opts...)
}

// runLoop publishes heartbeats and keeps the tracker's MQTT state fresh
// until a signal arrives, then publishes SHUTDOWN and returns the signal name.
func runLoop(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, log zerolog.Logger, now func() time.Time, refresh, heartbeat <-chan time.Time, sig <-chan os.Signal) string {
	for {
		select {
		case s := <-sig:
			name := signalName(s)
			log.Info().Str("signal", name).Msg("shutting down")
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			publishLifecycle(publisher, tracker, log, now(), "SHUTDOWN", name)
			return name

		case <-heartbeat:
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			snap := tracker.Snapshot()
			log.Info().
				Dur("uptime", snap.Uptime().Truncate(time.Second)).
				Int("pending", snap.Pending[notify.KindWebhook]+snap.Pending[notify.KindEmail]).
				Int("faults", snap.FaultTotal()).
				Msg("heartbeat")
			publishLifecycle(publisher, tracker, log, now(), "HEARTBEAT", "")

		case <-refresh:
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
		}
	}
}

// publishLifecycle sends a retained system event carrying a full status
// snapshot. Heartbeats are not retained.
func publishLifecycle(publisher mqtt.Publisher, tracker *status.Tracker, log zerolog.Logger, at time.Time, event, reason string) {
	snap := tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  at,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := publisher.PublishSystem(ev); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("publish system event failed")
		return
	}
	log.Debug().Str("event", event).Msg("published system event")
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// printLevels opens every configured pin, prints its level and releases it.
func printLevels(w io.Writer, reg *device.Registry, driver gpio.PinDriver) error {
	var errs []error
	for _, st := range reg.Snapshot() {
		if err := driver.Open(st.Pin, st.Scheme); err != nil {
			errs = append(errs, fmt.Errorf("open %s pin %d: %w", st.Name, st.Pin, err))
			continue
		}
		level, err := driver.Read(st.Pin)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s pin %d: %w", st.Name, st.Pin, err))
		} else {
			fmt.Fprintf(w, "%s (pin %d, %s): %s\n", st.Name, st.Pin, st.Scheme, level)
		}
		_ = driver.Close(st.Pin)
	}
	return errors.Join(errs...)
}
