// Command mouse-debouncer grabs pointer devices and drops the duplicate
// clicks a worn switch produces, re-emitting everything else through a
// virtual device.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/mouse-debouncer/internal/clock"
	"github.com/sweeney/mouse-debouncer/internal/config"
	"github.com/sweeney/mouse-debouncer/internal/input"
	"github.com/sweeney/mouse-debouncer/internal/instance"
	"github.com/sweeney/mouse-debouncer/internal/logging"
	"github.com/sweeney/mouse-debouncer/internal/logic"
	"github.com/sweeney/mouse-debouncer/internal/metrics"
	"github.com/sweeney/mouse-debouncer/internal/mqtt"
	"github.com/sweeney/mouse-debouncer/internal/status"
	"github.com/sweeney/mouse-debouncer/internal/web"
)

// eventBuffer is the capacity of the shared input channel.
const eventBuffer = 256

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "mouse-debouncer: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts, os.Stdout); err != nil {
		os.Exit(1)
	}
}

func run(opts *options, stdout io.Writer) error {
	var file *config.File
	var fileErr error
	if opts.configPath != "" {
		file, fileErr = config.Load(opts.configPath)
		opts.merge(file)
	}

	log, err := logging.New(logging.Options{Level: opts.logLevel, Format: opts.logFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "mouse-debouncer: %v\n", err)
		return err
	}
	if fileErr != nil {
		log.Error().Err(fileErr).Msg("cannot load configuration")
		return fileErr
	}

	if opts.listDevices {
		if err := listDevices(stdout); err != nil {
			log.Error().Err(err).Msg("cannot list devices")
			return err
		}
		return nil
	}

	lock, err := instance.Acquire(opts.lockFile)
	if errors.Is(err, instance.ErrAlreadyRunning) {
		log.Info().Str("lock_file", opts.lockFile).Msg("only one instance at a time, exiting")
		return nil
	}
	if err != nil {
		log.Error().Err(err).Msg("cannot acquire instance lock")
		return err
	}
	defer lock.Release()
	if err := lock.WritePID(); err != nil {
		log.Warn().Err(err).Msg("cannot record pid in lock file")
	}

	configurator, cfgErrs := opts.configure(file)
	for _, err := range cfgErrs {
		log.Warn().Err(err).Msg("configuration value ignored")
	}

	mode := clock.ModeCoarse
	if opts.highRes {
		mode = clock.ModeHighRes
	}
	src, err := clock.New(mode)
	if err != nil {
		log.Warn().Err(err).Msg("high-resolution timing unavailable, switching to event timestamps")
	}

	engine := configurator.Finalize(src.TicksPerMilli())
	if engine.DefaultedToLeft() {
		log.Info().Msg("no button selected, debouncing the left button")
	}
	for _, b := range engine.Report() {
		log.Info().
			Stringer("button", b.Button).
			Uint32("threshold_ms", b.ThresholdMillis).
			Int64("threshold_ticks", engine.ThresholdTicks(b.Button)).
			Msg("debouncing")
	}

	lines, err := opts.lines(file)
	if err != nil {
		log.Error().Err(err).Msg("invalid gpio line")
		return err
	}

	sink, err := input.NewUinputSink(input.DefaultUinputPath)
	if err != nil {
		log.Error().Err(err).Msg("cannot create virtual pointer")
		return err
	}

	reg, counters := metrics.NewRegistry(engine)
	clientID := mqtt.NewClientID()
	tracker := status.NewTracker(engine, time.Now(), status.Config{
		Timing:      src.Mode().String(),
		TicksPerMs:  src.TicksPerMilli(),
		HeartbeatMs: opts.heartbeat.Milliseconds(),
		Broker:      opts.broker,
		HTTPAddr:    opts.httpAddr,
		InstanceID:  clientID,
	})

	publisher := newPublisher(opts.broker, clientID, tracker, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := input.NewHub(input.EvdevOpener, eventBuffer, log.With().Str("component", "input").Logger())
	hub.OnChange(func(names []string) {
		tracker.SetDevices(names)
		counters.Sources.Set(float64(len(names)))
	})

	g, gctx := errgroup.WithContext(ctx)
	if len(opts.devices) > 0 {
		hub.Scan(ctx, opts.devices)
	} else {
		paths, _ := filepath.Glob(input.DefaultDeviceGlob)
		hub.Scan(ctx, paths)
		g.Go(func() error {
			if err := hub.Watch(gctx, filepath.Dir(input.DefaultDeviceGlob)); err != nil {
				log.Warn().Err(err).Msg("hotplug disabled")
			}
			return nil
		})
	}
	if len(lines) > 0 {
		hub.Start(ctx, "gpio", input.NewGPIOSource(opts.gpioChip, lines))
	}
	if len(opts.devices) > 0 {
		// No hotplug: once every listed device is gone there is nothing to debounce.
		hub.CloseWhenEmpty()
	} else if len(hub.Active()) == 0 {
		log.Warn().Msg("no pointer device grabbed yet")
	}

	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker, reg)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn().Err(err).Msg("http server error")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
		log.Info().Str("addr", opts.httpAddr).Msg("http status server listening")
	}

	publishLifecycle(publisher, tracker, log, mqtt.EventStartup, "")
	log.Info().
		Str("timing", src.Mode().String()).
		Str("broker", opts.broker).
		Dur("heartbeat", opts.heartbeat).
		Msg("started")

	if opts.heartbeat > 0 {
		ticker := time.NewTicker(opts.heartbeat)
		defer ticker.Stop()
		g.Go(func() error {
			heartbeats(gctx, ticker.C, publisher, tracker, log)
			return nil
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	d := &dispatcher{
		engine:   engine,
		clock:    src,
		sink:     sink,
		counters: counters,
		log:      log,
	}
	reason := d.run(hub.Events(), sigCh)

	// Release the grabs first so the physical devices reach the system
	// again, then remove the virtual one.
	cancel()
	if err := hub.Close(); err != nil {
		log.Debug().Err(err).Msg("close input sources")
	}
	if err := sink.Close(); err != nil {
		log.Warn().Err(err).Msg("destroy virtual pointer")
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("background task shutdown")
	}

	for _, line := range status.Lines(tracker.Snapshot()) {
		log.Info().Msg(line)
	}
	publishLifecycle(publisher, tracker, log, mqtt.EventShutdown, reason)
	publisher.Close()
	return nil
}

func newPublisher(broker, clientID string, tracker *status.Tracker, log zerolog.Logger) mqtt.Publisher {
	if broker == "" {
		return mqtt.NopPublisher{}
	}
	host, _ := os.Hostname()
	p, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:             broker,
		Topic:              mqtt.SystemTopic(host),
		ClientID:           clientID,
		Logger:             log.With().Str("component", "mqtt").Logger(),
		OnConnectionChange: tracker.SetMQTTConnected,
	})
	if err != nil {
		log.Warn().Err(err).Str("broker", broker).Msg("mqtt disabled")
		return mqtt.NopPublisher{}
	}
	return p
}

func connectionStatus(p mqtt.Publisher) mqtt.ConnectionStatus {
	if cs, ok := p.(mqtt.ConnectionStatus); ok {
		return cs
	}
	return nil
}

// publishLifecycle sends event with the current status snapshot. STARTUP
// and SHUTDOWN are retained so late subscribers see the last state.
func publishLifecycle(p mqtt.Publisher, tracker *status.Tracker, log zerolog.Logger, event, reason string) {
	snap := tracker.Snapshot()
	err := p.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   event != mqtt.EventHeartbeat,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		log.Warn().Err(err).Str("event", event).Msg("failed to publish lifecycle event")
		return
	}
	log.Debug().Str("event", event).Msg("published lifecycle event")
}

func listDevices(out io.Writer) error {
	devs, err := input.ListPointers(input.DefaultDeviceGlob)
	if err != nil {
		return err
	}
	if len(devs) == 0 {
		fmt.Fprintln(out, "no pointer devices found")
		return nil
	}
	for _, d := range devs {
		fmt.Fprintf(out, "%s\t%s\n", d.Path, d.Name)
	}
	return nil
}

// heartbeats publishes HEARTBEAT on every tick until ctx is done. Publishing
// may block on the broker, so this never runs on the dispatcher goroutine.
func heartbeats(ctx context.Context, ticks <-chan time.Time, p mqtt.Publisher, tracker *status.Tracker, log zerolog.Logger) {
	cs := connectionStatus(p)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			if cs != nil {
				tracker.SetMQTTConnected(cs.IsConnected())
			}
			snap := tracker.Snapshot()
			log.Info().
				Uint64("suppressed", snap.TotalSuppressed).
				Strs("devices", snap.Devices).
				Msg("heartbeat")
			publishLifecycle(p, tracker, log, mqtt.EventHeartbeat, "")
		}
	}
}

// dispatcher owns the engine. Every event from every source passes
// through run on one goroutine, and nothing on it waits on the network.
type dispatcher struct {
	engine   *logic.Engine
	clock    clock.Source
	sink     input.Sink
	counters *metrics.Counters
	log      zerolog.Logger
}

// run handles events until a signal arrives or events is closed, and
// returns the shutdown reason.
func (d *dispatcher) run(events <-chan input.Event, sig <-chan os.Signal) string {
	for {
		select {
		case s := <-sig:
			d.log.Info().Stringer("signal", s).Msg("shutting down")
			return signalName(s)

		case ev, ok := <-events:
			if !ok {
				d.log.Info().Msg("input closed, shutting down")
				return "INPUT_CLOSED"
			}
			d.handle(ev)
		}
	}
}

func (d *dispatcher) handle(ev input.Event) {
	if !ev.IsButton {
		d.counters.Forwarded.Inc()
		d.emit(ev)
		return
	}

	ts := d.clock.Now(ev.Millis)
	if d.engine.Admit(ev.Button, ev.Transition, ts) == logic.Suppress {
		d.counters.Suppressed.Inc()
		if e := d.log.Debug(); e.Enabled() {
			e.Stringer("button", ev.Button).
				Stringer("transition", ev.Transition).
				Int64("elapsed_ticks", d.engine.Elapsed(ev.Button, ts)).
				Str("source", ev.Source).
				Msg("suppressed")
		}
		return
	}
	d.counters.Passed.Inc()
	d.emit(ev)
}

func (d *dispatcher) emit(ev input.Event) {
	if err := d.sink.Emit(ev); err != nil {
		d.counters.EmitErrors.Inc()
		d.log.Warn().Err(err).Msg("emit failed")
	}
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
