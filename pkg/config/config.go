// Package config is the configuration store of the terminal.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/vterm.go/pkg/bootsel"
	"github.com/robotalks/vterm.go/pkg/key"
	"github.com/robotalks/vterm.go/pkg/serial"
)

// Config is the complete configuration of the terminal.
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Keys   KeysConfig   `yaml:"keys"`
	Boot   BootConfig   `yaml:"boot"`

	// DeviceID names the terminal in MQTT topics.
	DeviceID string `yaml:"device_id"`
	// MQTTBrokerURL e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `yaml:"mqtt"`
	// HTTPAddr is the listen address of the status server.
	HTTPAddr string `yaml:"http"`
	// Shell starts the interactive console.
	Shell bool `yaml:"shell"`
}

// SerialConfig configures the transport.
type SerialConfig struct {
	// Device is the host port carrying the wire, e.g. /dev/ttyUSB0.
	Device  string `yaml:"device"`
	Baud    uint   `yaml:"baud"`
	XonXoff bool   `yaml:"xonxoff"`
	BlinkMs uint   `yaml:"blink_ms"`
	Mode    string `yaml:"mode"`
	// LED selects the activity LED driver, LEDGPIO or LEDControlCodes.
	LED     string `yaml:"led"`
}

// Activity LED drivers.
const (
	// LEDGPIO drives the local led line.
	LEDGPIO = "gpio"
	// LEDControlCodes asks the display to light its LED with DC2/DC4.
	LEDControlCodes = "control-codes"
)

// KeysConfig configures the key scanner.
type KeysConfig struct {
	// Pins lists the virtual key lines, key 1 first.
	Pins             []string `yaml:"pins"`
	Joypad           string   `yaml:"joypad"`
	RepeatDelayMs    int      `yaml:"repeat_delay_ms"`
	RepeatIntervalMs int      `yaml:"repeat_interval_ms"`
	ReleaseMs        int      `yaml:"release_ms"`
	BufferSize       int      `yaml:"buffer_size"`
	ScanIntervalMs   int      `yaml:"scan_interval_ms"`
	Periodic         bool     `yaml:"periodic"`
}

// BootConfig configures the bootstrap selector.
type BootConfig struct {
	// Image is the alternate firmware, no chain-load when empty.
	Image     string `yaml:"image"`
	MaxWaitMs int    `yaml:"max_wait_ms"`
	LowTimeMs int    `yaml:"low_time_ms"`
	// SettleMs keeps the device running without input after start-up.
	SettleMs  int    `yaml:"settle_ms"`
}

// ErrInvalid is wrapped by all validation errors.
var ErrInvalid = errors.New("invalid config")

var defaultConfig = Config{
	Serial: SerialConfig{
		Baud:    115200,
		XonXoff: true,
		BlinkMs: 20,
		Mode:    serial.ModeSerial.String(),
		LED:     LEDGPIO,
	},
	Keys: KeysConfig{
		Pins:             []string{"key1", "key2", "key3"},
		RepeatDelayMs:    400,
		RepeatIntervalMs: 200,
		ReleaseMs:        50,
		BufferSize:       10,
		ScanIntervalMs:   50,
		Periodic:         true,
	},
	Boot: BootConfig{
		MaxWaitMs: 200,
		LowTimeMs: 50,
		SettleMs:  100,
	},
	MQTTBrokerURL: "mqtt://localhost:1883/vterm/",
	HTTPAddr:      ":8080",
}

func init() {
	if val := os.Getenv("VTERM_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if id, err := machineid.ID(); err == nil {
		defaultConfig.DeviceID = id
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Serial.Device, "serial", defaultConfig.Serial.Device, "Host serial port, empty to disable")
	flag.UintVar(&defaultConfig.Serial.Baud, "baud", defaultConfig.Serial.Baud, "Baud rate")
	flag.BoolVar(&defaultConfig.Serial.XonXoff, "xonxoff", defaultConfig.Serial.XonXoff, "Enable XON/XOFF flow control")
	flag.UintVar(&defaultConfig.Serial.BlinkMs, "blink", defaultConfig.Serial.BlinkMs, "Activity LED blink in ms, 0 to disable")
	flag.StringVar(&defaultConfig.Serial.Mode, "mode", defaultConfig.Serial.Mode, "Pass-through mode: disabled, serial, passthrough, passthrough-only")
	flag.StringVar(&defaultConfig.Serial.LED, "led", defaultConfig.Serial.LED, "Activity LED driver: gpio, control-codes")
	flag.StringVar(&defaultConfig.Keys.Joypad, "joypad", defaultConfig.Keys.Joypad, "Joystick device used as keys, e.g. /dev/input/js0")
	flag.BoolVar(&defaultConfig.Keys.Periodic, "keyscan", defaultConfig.Keys.Periodic, "Scan keys periodically")
	flag.StringVar(&defaultConfig.Boot.Image, "image", defaultConfig.Boot.Image, "Alternate firmware image")
	flag.StringVar(&defaultConfig.DeviceID, "id", defaultConfig.DeviceID, "Device ID")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL, empty to disable")
	flag.StringVar(&defaultConfig.HTTPAddr, "http", defaultConfig.HTTPAddr, "Status server address, empty to disable")
	flag.BoolVar(&defaultConfig.Shell, "shell", defaultConfig.Shell, "Start interactive shell")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	conf.Keys.Pins = append([]string(nil), defaultConfig.Keys.Pins...)
	return &conf
}

// Load reads a yaml file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	conf := NewConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate checks the configuration. It doesn't mutate it.
func (c *Config) Validate() error {
	if c.Serial.Baud == 0 || c.Serial.Baud > 4000000 {
		return fmt.Errorf("%w: baud %d out of range", ErrInvalid, c.Serial.Baud)
	}
	if c.Serial.BlinkMs > 0xffff {
		return fmt.Errorf("%w: blink %dms too long", ErrInvalid, c.Serial.BlinkMs)
	}
	if _, err := serial.ParseMode(c.Serial.Mode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	switch c.Serial.LED {
	case LEDGPIO, LEDControlCodes:
	default:
		return fmt.Errorf("%w: unknown LED driver %q", ErrInvalid, c.Serial.LED)
	}
	k := c.Keys
	if k.RepeatIntervalMs <= 0 || k.RepeatDelayMs < k.RepeatIntervalMs {
		return fmt.Errorf("%w: repeat delay %dms must not be shorter than interval %dms",
			ErrInvalid, k.RepeatDelayMs, k.RepeatIntervalMs)
	}
	// the scanner clock wraps after 65s; comparisons are valid for half of it.
	if k.RepeatDelayMs >= 0x8000 || k.ReleaseMs < 0 || k.ReleaseMs >= 0x8000 {
		return fmt.Errorf("%w: key timing out of range", ErrInvalid)
	}
	if k.BufferSize < 2 {
		return fmt.Errorf("%w: key buffer size %d", ErrInvalid, k.BufferSize)
	}
	if k.Periodic && k.ScanIntervalMs <= 0 {
		return fmt.Errorf("%w: key scan interval %dms", ErrInvalid, k.ScanIntervalMs)
	}
	if c.Boot.LowTimeMs <= 0 || c.Boot.MaxWaitMs < c.Boot.LowTimeMs {
		return fmt.Errorf("%w: boot low time %dms must fit in %dms",
			ErrInvalid, c.Boot.LowTimeMs, c.Boot.MaxWaitMs)
	}
	if c.Boot.SettleMs < 0 {
		return fmt.Errorf("%w: settle %dms", ErrInvalid, c.Boot.SettleMs)
	}
	return nil
}

// KeyConfig converts to the scanner configuration.
func (c *Config) KeyConfig() key.Config {
	return key.Config{
		RepeatDelay:    time.Duration(c.Keys.RepeatDelayMs) * time.Millisecond,
		RepeatInterval: time.Duration(c.Keys.RepeatIntervalMs) * time.Millisecond,
		ReleaseTime:    time.Duration(c.Keys.ReleaseMs) * time.Millisecond,
		BufferSize:     c.Keys.BufferSize,
		ScanInterval:   time.Duration(c.Keys.ScanIntervalMs) * time.Millisecond,
		Periodic:       c.Keys.Periodic,
	}
}

// Settle returns the start-up settle time.
func (c *Config) Settle() time.Duration {
	return time.Duration(c.Boot.SettleMs) * time.Millisecond
}

// BootConfig converts to the selector configuration.
func (c *Config) BootConfig() bootsel.Config {
	return bootsel.Config{
		MaxWait: time.Duration(c.Boot.MaxWaitMs) * time.Millisecond,
		LowTime: time.Duration(c.Boot.LowTimeMs) * time.Millisecond,
	}
}
