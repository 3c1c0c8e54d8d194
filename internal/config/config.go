// Package config loads the optional YAML configuration file.
//
// Every setting can also be given on the command line; flags that are set
// explicitly win over the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/mouse-debouncer/internal/input"
	"github.com/sweeney/mouse-debouncer/internal/logic"
)

// File is the on-disk configuration.
//
//	threshold_ms: 60
//	high_resolution: true
//	buttons:
//	  left: true
//	  right: 80
//	  middle: {monitored: true, threshold_ms: 40}
//	devices: [/dev/input/event3]
//	gpio:
//	  chip: gpiochip0
//	  lines: {left: 17}
//	broker: tcp://localhost:1883
//	heartbeat: 5m
//	http: ":8080"
//	lock_file: /run/mouse-debouncer.lock
//	log: {level: info, format: json}
type File struct {
	ThresholdMs    *int                     `yaml:"threshold_ms"`
	HighResolution bool                     `yaml:"high_resolution"`
	Buttons        map[string]ButtonSetting `yaml:"buttons"`
	Devices        []string                 `yaml:"devices"`
	GPIO           GPIO                     `yaml:"gpio"`
	Broker         *string                  `yaml:"broker"`
	Heartbeat      *time.Duration           `yaml:"heartbeat"`
	HTTP           *string                  `yaml:"http"`
	LockFile       string                   `yaml:"lock_file"`
	Log            Log                      `yaml:"log"`
}

// GPIO maps button names to line offsets on one chip.
type GPIO struct {
	Chip  string         `yaml:"chip"`
	Lines map[string]int `yaml:"lines"`
}

// Log holds the logging settings.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ButtonSetting is one buttons: entry. A nil ThresholdMs inherits the
// global threshold.
type ButtonSetting struct {
	Monitored   bool
	ThresholdMs *int
}

// UnmarshalYAML accepts a bool, an integer threshold (which also monitors
// the button) or a mapping.
func (s *ButtonSetting) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return err
			}
			*s = ButtonSetting{Monitored: b}
			return nil
		case "!!int":
			var n int
			if err := node.Decode(&n); err != nil {
				return err
			}
			*s = ButtonSetting{Monitored: true, ThresholdMs: &n}
			return nil
		}
	case yaml.MappingNode:
		var m struct {
			Monitored   *bool `yaml:"monitored"`
			ThresholdMs *int  `yaml:"threshold_ms"`
		}
		if err := node.Decode(&m); err != nil {
			return err
		}
		*s = ButtonSetting{Monitored: true, ThresholdMs: m.ThresholdMs}
		if m.Monitored != nil {
			s.Monitored = *m.Monitored
		}
		return nil
	}
	return fmt.Errorf("line %d: button setting must be a bool, a threshold or a mapping", node.Line)
}

// Load reads and decodes path. Unknown keys are errors. An empty file
// yields a zero File.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &f, nil
}

// Apply feeds the threshold and button settings to c: the global threshold
// first, then buttons in their fixed order. Rejected values are returned
// and the rest are still applied.
func (f *File) Apply(c *logic.Configurator) []error {
	var errs []error
	if f.ThresholdMs != nil {
		if err := c.SetThreshold(*f.ThresholdMs, logic.ButtonAll); err != nil {
			errs = append(errs, err)
		}
	}

	type entry struct {
		button logic.Button
		ButtonSetting
	}
	var entries []entry
	for name, s := range f.Buttons {
		b, err := logic.ParseButton(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("buttons: %w", err))
			continue
		}
		entries = append(entries, entry{b, s})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].button < entries[j].button })

	for _, e := range entries {
		if e.ThresholdMs != nil {
			if err := c.SetThreshold(*e.ThresholdMs, e.button); err != nil {
				errs = append(errs, err)
			}
		}
		if e.Monitored {
			c.Monitor(e.button)
		}
	}
	return errs
}

// GPIOLines returns the configured GPIO lines ordered by button.
func (f *File) GPIOLines() ([]input.GPIOLine, error) {
	var lines []input.GPIOLine
	for name, off := range f.GPIO.Lines {
		b, err := logic.ParseButton(name)
		if err != nil {
			return nil, fmt.Errorf("gpio lines: %w", err)
		}
		if !b.Valid() {
			return nil, fmt.Errorf("gpio lines: %q is not a single button", name)
		}
		if off < 0 {
			return nil, fmt.Errorf("gpio lines: %s: invalid offset %d", name, off)
		}
		lines = append(lines, input.GPIOLine{Button: b, Offset: off})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Button < lines[j].Button })
	return lines, nil
}
