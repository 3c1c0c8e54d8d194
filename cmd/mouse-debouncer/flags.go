package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/sweeney/mouse-debouncer/internal/config"
	"github.com/sweeney/mouse-debouncer/internal/input"
	"github.com/sweeney/mouse-debouncer/internal/instance"
	"github.com/sweeney/mouse-debouncer/internal/logic"
)

// monitorOnly is the value a bare --left (or -l) receives.
const monitorOnly = "on"

// setting is one threshold or button flag, kept in command-line order.
type setting struct {
	button  logic.Button
	monitor bool
	raw     string
}

// settings collects threshold and button flags in the order given.
type settings struct {
	list []setting
}

// buttonValue is the pflag.Value behind -t and the button flags.
type buttonValue struct {
	s       *settings
	button  logic.Button
	monitor bool
	last    string
}

func (v *buttonValue) String() string { return v.last }

func (v *buttonValue) Type() string { return "ms" }

func (v *buttonValue) Set(raw string) error {
	v.last = raw
	v.s.list = append(v.s.list, setting{button: v.button, monitor: v.monitor, raw: raw})
	return nil
}

// apply feeds the collected flags to c in order. A value that is not a
// number is reported the way an out-of-range one is, and the button is
// still monitored.
func (s *settings) apply(c *logic.Configurator) []error {
	var errs []error
	for _, st := range s.list {
		if st.monitor {
			c.Monitor(st.button)
		}
		if st.monitor && st.raw == monitorOnly {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(st.raw))
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid threshold for '%s' button: %q is not a number", st.button, st.raw))
			continue
		}
		if err := c.SetThreshold(n, st.button); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

type options struct {
	configPath  string
	highRes     bool
	settings    settings
	devices     []string
	gpioChip    string
	gpioLines   []string
	broker      string
	heartbeat   time.Duration
	httpAddr    string
	lockFile    string
	logLevel    string
	logFormat   string
	listDevices bool

	fs *pflag.FlagSet
}

func newFlagSet(opts *options, out io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("mouse-debouncer", pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.SortFlags = false

	fs.BoolVarP(&opts.highRes, "qpc", "q", false, "use the high-resolution monotonic counter instead of event timestamps")
	fs.VarP(&buttonValue{s: &opts.settings, button: logic.ButtonAll}, "threshold", "t",
		fmt.Sprintf("global threshold in ms (%d-%d, default %d)", logic.MinThresholdMs, logic.MaxThresholdMs, logic.DefaultThresholdMs))

	buttons := []struct {
		name, short string
		button      logic.Button
		usage       string
	}{
		{"left", "l", logic.ButtonLeft, "debounce the left button, optionally with its own threshold"},
		{"right", "r", logic.ButtonRight, "debounce the right button, optionally with its own threshold"},
		{"middle", "m", logic.ButtonMiddle, "debounce the middle button, optionally with its own threshold"},
		{"four", "b", logic.ButtonExtra1, "debounce the 4th (back) button, optionally with its own threshold"},
		{"five", "f", logic.ButtonExtra2, "debounce the 5th (forward) button, optionally with its own threshold"},
	}
	for _, b := range buttons {
		f := fs.VarPF(&buttonValue{s: &opts.settings, button: b.button, monitor: true}, b.name, b.short, b.usage)
		f.NoOptDefVal = monitorOnly
	}

	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	fs.StringArrayVar(&opts.devices, "device", nil, "evdev node to grab (repeatable; default: every pointer, with hotplug)")
	fs.StringVar(&opts.gpioChip, "gpio-chip", input.DefaultGPIOChip, "GPIO chip for --gpio-line")
	fs.StringArrayVar(&opts.gpioLines, "gpio-line", nil, "push-button on a GPIO line as button:offset, e.g. left:17 (repeatable)")
	fs.StringVar(&opts.broker, "broker", "", "MQTT broker for lifecycle events (empty disables)")
	fs.DurationVar(&opts.heartbeat, "heartbeat", 15*time.Minute, "heartbeat interval (0 to disable)")
	fs.StringVar(&opts.httpAddr, "http", "127.0.0.1:8080", "HTTP status address (empty to disable)")
	fs.StringVar(&opts.lockFile, "lock-file", instance.DefaultLockFile, "single-instance lock file")
	fs.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	fs.StringVar(&opts.logFormat, "log-format", "console", "console or json")
	fs.BoolVar(&opts.listDevices, "list-devices", false, "print the detected pointer devices and exit")

	return fs
}

// parseFlags parses args (without the program name).
func parseFlags(args []string, out io.Writer) (*options, error) {
	opts := &options{}
	opts.fs = newFlagSet(opts, out)
	if err := opts.fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", opts.fs.Args())
	}
	return opts, nil
}

func (o *options) changed(name string) bool {
	return o.fs != nil && o.fs.Changed(name)
}

// merge fills settings the command line left unset from f. Button and
// threshold settings are not merged here; see configure.
func (o *options) merge(f *config.File) {
	if f == nil {
		return
	}
	if f.HighResolution && !o.changed("qpc") {
		o.highRes = true
	}
	if len(f.Devices) > 0 && !o.changed("device") {
		o.devices = f.Devices
	}
	if f.GPIO.Chip != "" && !o.changed("gpio-chip") {
		o.gpioChip = f.GPIO.Chip
	}
	if f.Broker != nil && !o.changed("broker") {
		o.broker = *f.Broker
	}
	if f.Heartbeat != nil && !o.changed("heartbeat") {
		o.heartbeat = *f.Heartbeat
	}
	if f.HTTP != nil && !o.changed("http") {
		o.httpAddr = *f.HTTP
	}
	if f.LockFile != "" && !o.changed("lock-file") {
		o.lockFile = f.LockFile
	}
	if f.Log.Level != "" && !o.changed("log-level") {
		o.logLevel = f.Log.Level
	}
	if f.Log.Format != "" && !o.changed("log-format") {
		o.logFormat = f.Log.Format
	}
}

// configure applies the file's settings, then the command-line ones in
// order, so flags win. Every rejected value is returned; none is fatal.
func (o *options) configure(f *config.File) (*logic.Configurator, []error) {
	c := logic.NewConfigurator()
	var errs []error
	if f != nil {
		errs = append(errs, f.Apply(c)...)
	}
	errs = append(errs, o.settings.apply(c)...)
	return c, errs
}

// lines returns the GPIO lines from --gpio-line, or from the file when the
// flag was not given.
func (o *options) lines(f *config.File) ([]input.GPIOLine, error) {
	if o.changed("gpio-line") || f == nil {
		lines := make([]input.GPIOLine, 0, len(o.gpioLines))
		for _, s := range o.gpioLines {
			l, err := input.ParseGPIOLine(s)
			if err != nil {
				return nil, err
			}
			lines = append(lines, l)
		}
		return lines, nil
	}
	return f.GPIOLines()
}
