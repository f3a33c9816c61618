package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/vterm.go/pkg/serial"
)

func writeFile(t *testing.T, content string) string {
	dir, err := os.MkdirTemp("", "vterm-config")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "vterm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	conf := NewConfig()
	require.NoError(t, conf.Validate())
	kc := conf.KeyConfig()
	require.Equal(t, 400*time.Millisecond, kc.RepeatDelay)
	require.Equal(t, 200*time.Millisecond, kc.RepeatInterval)
	require.Equal(t, 50*time.Millisecond, kc.ReleaseTime)
	require.Equal(t, 10, kc.BufferSize)
	bc := conf.BootConfig()
	require.Equal(t, 200*time.Millisecond, bc.MaxWait)
	require.Equal(t, 50*time.Millisecond, bc.LowTime)
	require.Equal(t, 100*time.Millisecond, conf.Settle())
	require.Equal(t, LEDGPIO, conf.Serial.LED)
}

func TestNewConfigCopies(t *testing.T) {
	conf := NewConfig()
	conf.Keys.Pins[0] = "changed"
	conf.Serial.Baud = 1200
	require.Equal(t, "key1", Default().Keys.Pins[0])
	require.NotEqual(t, uint(1200), Default().Serial.Baud)
}

func TestLoadOverlay(t *testing.T) {
	path := writeFile(t, `
serial:
  baud: 9600
  mode: passthrough-only
  led: control-codes
keys:
  periodic: false
  pins: [up, down]
http: ""
`)
	conf, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint(9600), conf.Serial.Baud)
	require.True(t, conf.Serial.XonXoff)
	require.Equal(t, LEDControlCodes, conf.Serial.LED)
	require.Equal(t, []string{"up", "down"}, conf.Keys.Pins)
	require.False(t, conf.Keys.Periodic)
	require.Equal(t, 400, conf.Keys.RepeatDelayMs)
	require.Empty(t, conf.HTTPAddr)

	store := conf.NewStore()
	require.Equal(t, uint32(9600), store.SerialBaud())
	require.Equal(t, serial.ModePassThroughOnly, store.PassThroughMode())
	require.Equal(t, uint16(20), store.SerialBlink())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(os.TempDir(), "vterm-does-not-exist.yaml"))
	require.Error(t, err)

	_, err = Load(writeFile(t, "serial: [1, 2"))
	require.Error(t, err)

	_, err = Load(writeFile(t, "serial:\n  mode: usb\n"))
	require.True(t, errors.Is(err, ErrInvalid))
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero baud", func(c *Config) { c.Serial.Baud = 0 }},
		{"blink overflow", func(c *Config) { c.Serial.BlinkMs = 70000 }},
		{"bad mode", func(c *Config) { c.Serial.Mode = "usb" }},
		{"repeat delay below interval", func(c *Config) { c.Keys.RepeatDelayMs = 100 }},
		{"zero interval", func(c *Config) { c.Keys.RepeatIntervalMs = 0 }},
		{"release too long", func(c *Config) { c.Keys.ReleaseMs = 40000 }},
		{"tiny buffer", func(c *Config) { c.Keys.BufferSize = 1 }},
		{"no scan interval", func(c *Config) { c.Keys.ScanIntervalMs = 0 }},
		{"low time beyond wait", func(c *Config) { c.Boot.LowTimeMs = 300 }},
		{"unknown led", func(c *Config) { c.Serial.LED = "lamp" }},
		{"negative settle", func(c *Config) { c.Boot.SettleMs = -1 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conf := NewConfig()
			tc.mutate(conf)
			err := conf.Validate()
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalid))
		})
	}
}

func TestStoreSetters(t *testing.T) {
	store := NewConfig().NewStore()
	var settings serial.Settings = store
	store.SetBaud(57600)
	store.SetXonXoff(false)
	store.SetBlink(0)
	store.SetMode(serial.ModePassThrough)
	require.Equal(t, uint32(57600), settings.SerialBaud())
	require.False(t, settings.SerialXonXoff())
	require.Zero(t, settings.SerialBlink())
	require.Equal(t, serial.ModePassThrough, settings.PassThroughMode())
}
