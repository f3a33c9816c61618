package main

import (
	"context"
	"flag"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/vterm.go/pkg/bootsel"
	"github.com/robotalks/vterm.go/pkg/bridge/mqtt"
	"github.com/robotalks/vterm.go/pkg/bridge/websocket"
	"github.com/robotalks/vterm.go/pkg/cli/sh"
	"github.com/robotalks/vterm.go/pkg/config"
	fx "github.com/robotalks/vterm.go/pkg/framework"
	"github.com/robotalks/vterm.go/pkg/hw"
	"github.com/robotalks/vterm.go/pkg/hw/joypad"
	"github.com/robotalks/vterm.go/pkg/key"
	"github.com/robotalks/vterm.go/pkg/led"
	"github.com/robotalks/vterm.go/pkg/pio"
	"github.com/robotalks/vterm.go/pkg/serial"
	"github.com/robotalks/vterm.go/pkg/status"
	"github.com/robotalks/vterm.go/pkg/term"
)

var (
	configFile string
	bootStrap  bool
)

func init() {
	config.SetupFlags()
	flag.StringVar(&configFile, "config", configFile, "YAML config file")
	flag.BoolVar(&bootStrap, "strap", bootStrap, "Hold the boot line LOW at power-up")
}

func loadConfig() *config.Config {
	if configFile == "" {
		conf := config.NewConfig()
		if err := conf.Validate(); err != nil {
			glog.Fatalf("config: %v", err)
		}
		return conf
	}
	conf, err := config.Load(configFile)
	if err != nil {
		glog.Fatalf("config: %v", err)
	}
	return conf
}

// selectFirmware runs before anything else touches the lines.
func selectFirmware(conf *config.Config, release ...hw.Pin) {
	if conf.Boot.Image == "" {
		return
	}
	img, err := bootsel.LoadImage(conf.Boot.Image, bootsel.SRAMBase)
	if err != nil {
		glog.Fatalf("boot image: %v", err)
	}
	signal := hw.NewVirtualPin("boot", hw.Low)
	if !bootStrap {
		signal.Release()
	}
	sel := &bootsel.Selector{
		Config:  conf.BootConfig(),
		Signal:  signal,
		Release: release,
		Clock:   hw.SystemClock{},
		Image:   img,
		Loader:  &bootsel.ExecLoader{Args: flag.Args()},
	}
	if err := sel.Select(); err != nil {
		glog.Fatalf("chain-load %s: %v", img.Name, err)
	}
}

func main() {
	flag.Parse()
	defer glog.Flush()
	conf := loadConfig()

	busSelect := hw.NewVirtualPin(term.PinBusSelect, hw.High)
	ledPin := hw.NewVirtualPin(term.PinLED, hw.Low)
	selectFirmware(conf, busSelect, ledPin)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop := fx.NewLoop()
	store := conf.NewStore()

	tr := serial.New(pio.NewBlock(0), busSelect, nil, store)
	tr.Terminal = &term.WriterSink{W: os.Stdout}
	switch conf.Serial.LED {
	case config.LEDControlCodes:
		tr.LED = &led.ControlCodes{Link: tr}
	default:
		leds, err := led.NewGPIO(led.Config{Pin: ledPin})
		if err != nil {
			glog.Fatalf("led: %v", err)
		}
		tr.LED = leds
	}

	var keyPins []hw.Pin
	var keyLines []*hw.VirtualPin
	if conf.Keys.Joypad != "" {
		dev, err := joypad.Open(conf.Keys.Joypad)
		if err != nil {
			glog.Fatalf("joypad: %v", err)
		}
		keypad := joypad.NewKeypad(dev, dev.ButtonCount())
		keyPins = keypad.Pins()
		loop.AddRunnable(keypad)
	} else {
		for _, name := range conf.Keys.Pins {
			line := hw.NewVirtualPin(name, hw.High)
			line.Release()
			keyLines = append(keyLines, line)
			keyPins = append(keyPins, line)
		}
	}
	keys := key.NewScanner(conf.KeyConfig(), keyPins...)

	t := term.New(conf.DeviceID, loop, store, tr, keys)
	t.Settle = conf.Settle()
	t.AddPin(term.PinBusSelect, busSelect)
	for _, line := range keyLines {
		t.AddPin(line.Name, line)
	}
	t.AddKeyListener(func(code key.Code) { glog.V(3).Infof("key %d", code) })

	if conf.Serial.Device != "" {
		var err error
		if t.Port, err = pio.OpenSerial(conf.Serial.Device, int(conf.Serial.Baud)); err != nil {
			glog.Fatalf("serial %s: %v", conf.Serial.Device, err)
		}
	}

	var passThrough serial.Receivers
	hub := websocket.NewHub(loop, tr)
	loop.Add(hub)
	passThrough = append(passThrough, hub)

	if conf.MQTTBrokerURL != "" {
		q, err := mqtt.NewQueueFromURL(conf.MQTTBrokerURL, "vterm-"+conf.DeviceID)
		if err != nil {
			glog.Fatalf("mqtt: %v", err)
		}
		bridge := mqtt.NewBridge(q, conf.DeviceID, loop)
		bridge.Host = tr
		bridge.Status = t.Report
		loop.Add(bridge)
		passThrough = append(passThrough, bridge)
		t.AddKeyListener(bridge.KeyEvent)
	}
	tr.PassThrough = passThrough

	if conf.HTTPAddr != "" {
		server := status.NewServer(conf.HTTPAddr, loop, t)
		server.WebSocket = hub.Handler()
		loop.AddRunnable(server)
	}

	if err := t.Start(); err != nil {
		glog.Fatalf("start: %v", err)
	}
	glog.Infof("terminal %s started, %.1f baud", conf.DeviceID, tr.BaudRate())

	runner := fx.NewRunnerWith(ctx).HandleSignals()
	runner.Go(loop)
	if conf.Shell {
		shell := sh.New(t)
		runner.Go(fx.NamedRun("shell", fx.RunFunc(func(ctx context.Context) error {
			err := shell.Run(ctx)
			cancel()
			return err
		})))
	}
	if err := runner.Wait(); err != nil {
		glog.Errorf("stopped: %v", err)
	}
}
