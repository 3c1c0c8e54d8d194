package internal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/sweeney/mouse-debouncer/internal/clock"
	"github.com/sweeney/mouse-debouncer/internal/input"
	"github.com/sweeney/mouse-debouncer/internal/logic"
	"github.com/sweeney/mouse-debouncer/internal/metrics"
	"github.com/sweeney/mouse-debouncer/internal/mqtt"
	"github.com/sweeney/mouse-debouncer/internal/status"
	"github.com/sweeney/mouse-debouncer/internal/web"
)

var startTime = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

type pipeline struct {
	hub       *input.Hub
	engine    *logic.Engine
	clock     clock.Source
	sink      *input.FakeSink
	publisher *mqtt.FakePublisher
	tracker   *status.Tracker
	counters  *metrics.Counters
	cancel    context.CancelFunc
}

func newPipeline(t *testing.T, c *logic.Configurator, src clock.Source, sources map[string]*input.FakeSource) *pipeline {
	t.Helper()
	opener := input.NewFakeOpener()
	var paths []string
	for path, s := range sources {
		opener.Add(path, s)
		paths = append(paths, path)
	}

	engine := c.Finalize(src.TicksPerMilli())
	_, counters := metrics.NewRegistry(engine)
	p := &pipeline{
		hub:       input.NewHub(opener, 64, zerolog.Nop()),
		engine:    engine,
		clock:     src,
		sink:      input.NewFakeSink(),
		publisher: mqtt.NewFakePublisher(),
		tracker:   status.NewTracker(engine, startTime, status.Config{Timing: src.Mode().String(), TicksPerMs: src.TicksPerMilli()}),
		counters:  counters,
	}
	p.hub.OnChange(p.tracker.SetDevices)

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	t.Cleanup(func() {
		cancel()
		p.hub.Close()
	})
	if n := p.hub.Scan(ctx, paths); n != len(paths) {
		t.Fatalf("scan opened %d of %d sources", n, len(paths))
	}
	return p
}

// pump runs the dispatch loop until n events have been handled.
func (p *pipeline) pump(t *testing.T, n int) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case ev := <-p.hub.Events():
			if !ev.IsButton {
				p.counters.Forwarded.Inc()
				p.sink.Emit(ev)
				continue
			}
			if p.engine.Admit(ev.Button, ev.Transition, p.clock.Now(ev.Millis)) == logic.Suppress {
				p.counters.Suppressed.Inc()
				continue
			}
			p.counters.Passed.Inc()
			p.sink.Emit(ev)
		case <-timeout:
			t.Fatalf("handled %d of %d events", i, n)
		}
	}
}

func (p *pipeline) publish(t *testing.T, event, reason string) {
	t.Helper()
	snap := p.tracker.Snapshot()
	err := p.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   event != mqtt.EventHeartbeat,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		t.Fatalf("publish %s: %v", event, err)
	}
}

func click(b logic.Button, down, up int64) []input.Event {
	return []input.Event{
		input.ButtonEvent(b, logic.Down, down, ""),
		input.ButtonEvent(b, logic.Up, up, ""),
	}
}

func clicks(b logic.Button, pairs ...[2]int64) []input.Event {
	var out []input.Event
	for _, p := range pairs {
		out = append(out, click(b, p[0], p[1])...)
	}
	return out
}

// TestIntegrationFullFlow drives a chattering left button through the hub,
// engine and sink, then reads the result back from the status page.
func TestIntegrationFullFlow(t *testing.T) {
	c := logic.NewConfigurator()
	c.Monitor(logic.ButtonLeft)

	events := clicks(logic.ButtonLeft, [2]int64{0, 10}, [2]int64{50, 60}, [2]int64{200, 210})
	p := newPipeline(t, c, clock.Coarse{}, map[string]*input.FakeSource{
		"/dev/input/event3": input.NewFakeSource("Worn Mouse", events...),
	})
	p.pump(t, len(events))

	got := p.sink.Buttons()
	if len(got) != 4 {
		t.Fatalf("expected 4 emitted button events, got %d", len(got))
	}
	wantMillis := []int64{0, 10, 200, 210}
	for i, ev := range got {
		if ev.Millis != wantMillis[i] {
			t.Errorf("event %d: expected millis %d, got %d", i, wantMillis[i], ev.Millis)
		}
		if ev.Source != "Worn Mouse" {
			t.Errorf("event %d: expected source %q, got %q", i, "Worn Mouse", ev.Source)
		}
	}
	if n := p.engine.Suppressed(logic.ButtonLeft); n != 1 {
		t.Errorf("expected 1 suppressed click, got %d", n)
	}
	if v := testutil.ToFloat64(p.counters.Suppressed); v != 2 {
		t.Errorf("expected 2 suppressed events, got %v", v)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	reg, _ := metrics.NewRegistry(p.engine)
	srv := web.New("", p.tracker, reg)
	go srv.Serve(ln)
	defer srv.Shutdown(context.Background())

	base := "http://" + ln.Addr().String()
	resp, err := http.Get(base + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status struct {
			TotalSuppressed uint64   `json:"total_suppressed"`
			Devices         []string `json:"devices"`
			Buttons         []struct {
				Name       string `json:"name"`
				Suppressed uint64 `json:"suppressed"`
			} `json:"buttons"`
		} `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status.TotalSuppressed != 1 {
		t.Errorf("expected total_suppressed 1, got %d", body.Status.TotalSuppressed)
	}
	if len(body.Status.Devices) != 1 || body.Status.Devices[0] != "Worn Mouse" {
		t.Errorf("expected devices [Worn Mouse], got %v", body.Status.Devices)
	}
	if len(body.Status.Buttons) != 1 || body.Status.Buttons[0].Name != "left" {
		t.Errorf("expected only the left button, got %+v", body.Status.Buttons)
	}

	mresp, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer mresp.Body.Close()
	text, _ := io.ReadAll(mresp.Body)
	if !strings.Contains(string(text), `mouse_debouncer_suppressed_clicks_total{button="Left"} 1`) {
		t.Errorf("metrics missing left suppressed count:\n%s", text)
	}
}

// TestIntegrationTwoDevicesShareState checks that bounce on one device is
// judged against the click admitted from another.
func TestIntegrationTwoDevicesShareState(t *testing.T) {
	c := logic.NewConfigurator()
	c.Monitor(logic.ButtonLeft)

	first := input.NewFakeSource("mouse-a", click(logic.ButtonLeft, 0, 10)...)
	p := newPipeline(t, c, clock.Coarse{}, map[string]*input.FakeSource{
		"/dev/input/event3": first,
	})
	p.pump(t, 2)

	second := input.NewFakeSource("mouse-b", click(logic.ButtonLeft, 30, 40)...)
	p.hub.Start(context.Background(), "/dev/input/event4", second)
	p.pump(t, 2)

	if got := len(p.sink.Buttons()); got != 2 {
		t.Errorf("expected 2 emitted events, got %d", got)
	}
	if n := p.engine.TotalSuppressed(); n != 1 {
		t.Errorf("expected 1 suppressed click, got %d", n)
	}
	if devs := p.tracker.Snapshot().Devices; len(devs) != 2 {
		t.Errorf("expected 2 devices, got %v", devs)
	}
}

// TestIntegrationPerButtonThresholds checks each button uses its own window.
func TestIntegrationPerButtonThresholds(t *testing.T) {
	c := logic.NewConfigurator()
	if err := c.SetThreshold(20, logic.ButtonAll); err != nil {
		t.Fatal(err)
	}
	if err := c.SetThreshold(100, logic.ButtonRight); err != nil {
		t.Fatal(err)
	}
	c.Monitor(logic.ButtonLeft)
	c.Monitor(logic.ButtonRight)

	var events []input.Event
	events = append(events, clicks(logic.ButtonLeft, [2]int64{0, 10}, [2]int64{60, 70})...)
	events = append(events, clicks(logic.ButtonRight, [2]int64{0, 10}, [2]int64{60, 70})...)
	p := newPipeline(t, c, clock.Coarse{}, map[string]*input.FakeSource{
		"/dev/input/event3": input.NewFakeSource("mouse", events...),
	})
	p.pump(t, len(events))

	if n := p.engine.Suppressed(logic.ButtonLeft); n != 0 {
		t.Errorf("left: expected 0 suppressed, got %d", n)
	}
	if n := p.engine.Suppressed(logic.ButtonRight); n != 1 {
		t.Errorf("right: expected 1 suppressed, got %d", n)
	}

	lines := status.Lines(p.tracker.Snapshot())
	want := []string{
		"General                   1 blocks   020 ms",
		"Left Mouse Button         0 blocks   020 ms",
		"Right Mouse Button        1 blocks   100 ms",
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %q", len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

// TestIntegrationHighResClock runs the pipeline on tick timestamps instead
// of event milliseconds.
func TestIntegrationHighResClock(t *testing.T) {
	c := logic.NewConfigurator()
	c.Monitor(logic.ButtonLeft)

	src := clock.NewManual(1000)
	events := clicks(logic.ButtonLeft, [2]int64{0, 0}, [2]int64{0, 0})
	p := newPipeline(t, c, src, map[string]*input.FakeSource{
		"/dev/input/event3": input.NewFakeSource("mouse", events...),
	})

	// Down@0 Up@10ms, then Down@30ms: inside 60ms even though the event
	// timestamps never move.
	stamps := []int64{0, 10_000, 30_000, 40_000}
	for _, ts := range stamps {
		src.Set(ts)
		p.pump(t, 1)
	}

	if n := p.engine.Suppressed(logic.ButtonLeft); n != 1 {
		t.Errorf("expected 1 suppressed click, got %d", n)
	}
	if got := len(p.sink.Buttons()); got != 2 {
		t.Errorf("expected 2 emitted events, got %d", got)
	}
}

// TestIntegrationPassthrough checks motion and wheel reach the sink
// untouched while a button is being suppressed.
func TestIntegrationPassthrough(t *testing.T) {
	c := logic.NewConfigurator()
	c.Monitor(logic.ButtonLeft)

	events := []input.Event{
		input.ButtonEvent(logic.ButtonLeft, logic.Down, 0, ""),
		input.ButtonEvent(logic.ButtonLeft, logic.Up, 10, ""),
		input.ButtonEvent(logic.ButtonLeft, logic.Down, 20, ""),
		input.Decode(input.TypeRel, input.RelX, 5, 21, ""),
		input.Decode(input.TypeRel, input.RelWheel, -1, 22, ""),
		input.Decode(input.TypeSyn, input.SynReport, 0, 22, ""),
		input.ButtonEvent(logic.ButtonLeft, logic.Up, 30, ""),
	}
	p := newPipeline(t, c, clock.Coarse{}, map[string]*input.FakeSource{
		"/dev/input/event3": input.NewFakeSource("mouse", events...),
	})
	p.pump(t, len(events))

	emitted := p.sink.Events()
	if len(emitted) != 5 {
		t.Fatalf("expected 5 emitted events, got %d", len(emitted))
	}
	if emitted[2].Type != input.TypeRel || emitted[2].Code != input.RelX || emitted[2].Value != 5 {
		t.Errorf("expected REL_X 5 to pass through, got %+v", emitted[2])
	}
	if v := testutil.ToFloat64(p.counters.Forwarded); v != 3 {
		t.Errorf("expected 3 forwarded events, got %v", v)
	}
}

// TestIntegrationUnpluggedDeviceDropsFromStatus checks a source that fails
// is removed from the device list.
func TestIntegrationUnpluggedDeviceDropsFromStatus(t *testing.T) {
	c := logic.NewConfigurator()
	gone := input.NewFakeSource("flaky", click(logic.ButtonLeft, 0, 10)...)
	gone.RunError = errors.New("no such device")
	p := newPipeline(t, c, clock.Coarse{}, map[string]*input.FakeSource{
		"/dev/input/event5": gone,
	})
	p.pump(t, 2)
	p.hub.Wait()

	if devs := p.tracker.Snapshot().Devices; len(devs) != 0 {
		t.Errorf("expected no devices, got %v", devs)
	}
	if !gone.Closed() {
		t.Error("expected unplugged source to be closed")
	}
}

// TestIntegrationLifecycleEvents walks STARTUP, HEARTBEAT and SHUTDOWN and
// checks each payload carries the counts at the time it was sent.
func TestIntegrationLifecycleEvents(t *testing.T) {
	c := logic.NewConfigurator()
	c.Monitor(logic.ButtonLeft)

	events := clicks(logic.ButtonLeft, [2]int64{0, 10}, [2]int64{20, 30})
	p := newPipeline(t, c, clock.Coarse{}, map[string]*input.FakeSource{
		"/dev/input/event3": input.NewFakeSource("mouse", events...),
	})

	p.publish(t, mqtt.EventStartup, "")
	p.pump(t, len(events))
	p.publish(t, mqtt.EventHeartbeat, "")
	p.publish(t, mqtt.EventShutdown, "SIGTERM")

	names := p.publisher.Events()
	want := []string{mqtt.EventStartup, mqtt.EventHeartbeat, mqtt.EventShutdown}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], names[i])
		}
	}

	total := func(payload []byte) uint64 {
		var m struct {
			Status struct {
				Event           string `json:"event"`
				Reason          string `json:"reason"`
				TotalSuppressed uint64 `json:"total_suppressed"`
			} `json:"status"`
		}
		if err := json.Unmarshal(payload, &m); err != nil {
			t.Fatalf("payload is not valid JSON: %v", err)
		}
		return m.Status.TotalSuppressed
	}
	if n := total(p.publisher.SystemPayloads[0]); n != 0 {
		t.Errorf("STARTUP: expected 0 suppressed, got %d", n)
	}
	if n := total(p.publisher.SystemPayloads[2]); n != 1 {
		t.Errorf("SHUTDOWN: expected 1 suppressed, got %d", n)
	}
	if !strings.Contains(string(p.publisher.SystemPayloads[2]), `"reason":"SIGTERM"`) {
		t.Errorf("SHUTDOWN payload missing reason: %s", p.publisher.SystemPayloads[2])
	}
	if p.publisher.SystemEvents[1].Retained {
		t.Error("HEARTBEAT should not be retained")
	}
}
