package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/mouse-debouncer/internal/input"
	"github.com/sweeney/mouse-debouncer/internal/logic"
)

const full = `
threshold_ms: 70
high_resolution: true
buttons:
  left: true
  right: 80
  middle: {threshold_ms: 40}
  five: {monitored: false, threshold_ms: 90}
devices: [/dev/input/event3, /dev/input/event4]
gpio:
  chip: gpiochip1
  lines: {right: 27, left: 17}
broker: ""
heartbeat: 5m
http: ":9090"
lock_file: /tmp/md.lock
log: {level: debug, format: json}
`

func ms(n int) *int { return &n }

func TestParseFull(t *testing.T) {
	f, err := Parse([]byte(full))
	require.NoError(t, err)

	require.NotNil(t, f.ThresholdMs)
	assert.Equal(t, 70, *f.ThresholdMs)
	assert.True(t, f.HighResolution)
	assert.Equal(t, ButtonSetting{Monitored: true}, f.Buttons["left"])
	assert.Equal(t, ButtonSetting{Monitored: true, ThresholdMs: ms(80)}, f.Buttons["right"])
	assert.Equal(t, ButtonSetting{Monitored: true, ThresholdMs: ms(40)}, f.Buttons["middle"])
	assert.Equal(t, ButtonSetting{Monitored: false, ThresholdMs: ms(90)}, f.Buttons["five"])
	assert.Equal(t, []string{"/dev/input/event3", "/dev/input/event4"}, f.Devices)
	assert.Equal(t, "gpiochip1", f.GPIO.Chip)
	require.NotNil(t, f.Broker)
	assert.Equal(t, "", *f.Broker)
	require.NotNil(t, f.Heartbeat)
	assert.Equal(t, 5*time.Minute, *f.Heartbeat)
	require.NotNil(t, f.HTTP)
	assert.Equal(t, ":9090", *f.HTTP)
	assert.Equal(t, "/tmp/md.lock", f.LockFile)
	assert.Equal(t, Log{Level: "debug", Format: "json"}, f.Log)
}

func TestParseEmpty(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)
	assert.Nil(t, f.ThresholdMs)
	assert.Nil(t, f.Broker)
	assert.Empty(t, f.Buttons)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("treshold_ms: 60\n"))
	assert.Error(t, err)
}

func TestParseRejectsBadButtonSetting(t *testing.T) {
	_, err := Parse([]byte("buttons:\n  left: [1, 2]\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("buttons:\n  left: fast\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("threshold_ms: 45\n"), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45, *f.ThresholdMs)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApply(t *testing.T) {
	f, err := Parse([]byte(full))
	require.NoError(t, err)

	c := logic.NewConfigurator()
	assert.Empty(t, f.Apply(c))

	e := c.Finalize(1)
	assert.Equal(t, uint32(70), e.GlobalThresholdMillis())
	assert.True(t, e.Monitored(logic.ButtonLeft))
	assert.Equal(t, uint32(70), e.ThresholdMillis(logic.ButtonLeft))
	assert.True(t, e.Monitored(logic.ButtonRight))
	assert.Equal(t, uint32(80), e.ThresholdMillis(logic.ButtonRight))
	assert.Equal(t, uint32(40), e.ThresholdMillis(logic.ButtonMiddle))
	assert.False(t, e.Monitored(logic.ButtonExtra2))
	assert.Equal(t, uint32(90), e.ThresholdMillis(logic.ButtonExtra2))
	assert.False(t, e.Monitored(logic.ButtonExtra1))
	assert.False(t, e.DefaultedToLeft())
}

func TestApplyReportsRejectedAndKeepsGoing(t *testing.T) {
	f, err := Parse([]byte("threshold_ms: 900\nbuttons:\n  left: 0\n  right: 501\n  middle: 30\n  thumb: true\n"))
	require.NoError(t, err)

	c := logic.NewConfigurator()
	errs := f.Apply(c)
	require.Len(t, errs, 4)

	var te *logic.ThresholdError
	require.True(t, errors.As(errs[0], &te))
	assert.Equal(t, logic.ButtonAll, te.Button)
	assert.Equal(t, 900, te.Value)

	e := c.Finalize(1)
	assert.Equal(t, uint32(logic.DefaultThresholdMs), e.GlobalThresholdMillis())
	assert.Equal(t, uint32(30), e.ThresholdMillis(logic.ButtonMiddle))
	assert.True(t, e.Monitored(logic.ButtonLeft))
	assert.Equal(t, uint32(logic.DefaultThresholdMs), e.ThresholdMillis(logic.ButtonLeft))
	assert.Equal(t, uint32(logic.DefaultThresholdMs), e.ThresholdMillis(logic.ButtonRight))
	assert.True(t, e.Monitored(logic.ButtonRight))
}

func TestApplyAllButtons(t *testing.T) {
	f, err := Parse([]byte("buttons:\n  all: 25\n"))
	require.NoError(t, err)

	c := logic.NewConfigurator()
	assert.Empty(t, f.Apply(c))
	e := c.Finalize(1)
	for _, b := range logic.Buttons() {
		assert.True(t, e.Monitored(b), b.String())
		assert.Equal(t, uint32(25), e.ThresholdMillis(b), b.String())
	}
}

func TestGPIOLines(t *testing.T) {
	f, err := Parse([]byte(full))
	require.NoError(t, err)

	lines, err := f.GPIOLines()
	require.NoError(t, err)
	assert.Equal(t, []input.GPIOLine{
		{Button: logic.ButtonLeft, Offset: 17},
		{Button: logic.ButtonRight, Offset: 27},
	}, lines)

	f.GPIO.Lines = map[string]int{"all": 3}
	_, err = f.GPIOLines()
	assert.Error(t, err)

	f.GPIO.Lines = map[string]int{"left": -2}
	_, err = f.GPIOLines()
	assert.Error(t, err)
}
