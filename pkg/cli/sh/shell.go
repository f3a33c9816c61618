// Package sh is the interactive debug console of the terminal.
package sh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	fx "github.com/robotalks/vterm.go/pkg/framework"
	"github.com/robotalks/vterm.go/pkg/serial"
	"github.com/robotalks/vterm.go/pkg/status"
	"github.com/robotalks/vterm.go/pkg/term"
)

// Shell provides the ishell backed console.
type Shell struct {
	OutputJSON bool
	Timeout    time.Duration

	Shell *ishell.Shell
	Term  *term.Terminal
}

const shellKey = "$shell"

var commands = []*ishell.Cmd{
	&StatusCmd,
	&SendCmd,
	&BaudCmd,
	&ModeCmd,
	&FlowCmd,
	&BlinkCmd,
	&PinsCmd,
	&PinCmd,
	&KeysCmd,
	&BreakCmd,
}

// New creates a shell on t.
func New(t *term.Terminal) *Shell {
	s := &Shell{
		Timeout: time.Second,
		Shell:   ishell.New(),
		Term:    t,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(t.ID + " > ")
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Name implements framework.Named.
func (s *Shell) Name() string {
	return "shell"
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}

// Run implements framework.Runnable.
func (s *Shell) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, closerFunc(s.Shell.Close), func() error {
		s.Shell.Run()
		return nil
	})
}

// Do runs fn on the terminal loop and reports a timeout to c.
func Do(c *ishell.Context, fn func(*term.Terminal)) bool {
	s := ShellFrom(c)
	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()
	if err := s.Term.Loop.Do(ctx, func() { fn(s.Term) }); err != nil {
		c.Err(fmt.Errorf("terminal not responding: %v", err))
		return false
	}
	return true
}

// FormatReport renders a report for display.
func FormatReport(r *status.Report) string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "device    %s\n", r.DeviceID)
	fmt.Fprintf(&w, "baud      %.1f\n", r.Baud)
	fmt.Fprintf(&w, "mode      %s\n", r.Mode)
	fmt.Fprintf(&w, "bus       %s\n", map[bool]string{true: "owned", false: "display"}[r.BusOwned])
	if r.Break {
		fmt.Fprintf(&w, "break     requested\n")
	}
	fmt.Fprintf(&w, "tx        %d queued, %d dropped\n", r.TxQueued, r.TxDropped)
	fmt.Fprintf(&w, "rx        %d queued, %d dropped, %d discarded\n", r.RxQueued, r.RxDropped, r.Discarded)
	fmt.Fprintf(&w, "flow      xon=%v, %d XON / %d XOFF sent\n", r.XOn, r.XOnSent, r.XOffSent)
	fmt.Fprintf(&w, "keys      %d pending, %d dropped, pressed %#x\n", r.KeysPending, r.KeyDrops, r.KeysPressed)
	fmt.Fprintf(&w, "uptime    %s", time.Duration(r.UptimeMs)*time.Millisecond)
	return w.String()
}

// ParseText joins args with spaces and interprets Go escapes such as
// \r, \x1b and é.
func ParseText(args []string) ([]byte, error) {
	text := strings.Join(args, " ")
	unquoted, err := strconv.Unquote(`"` + strings.Replace(text, `"`, `\"`, -1) + `"`)
	if err != nil {
		return nil, fmt.Errorf("bad escape in %q", text)
	}
	return []byte(unquoted), nil
}

// ParseOnOff parses a boolean argument.
func ParseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true", "yes":
		return true, nil
	case "off", "0", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("expect on or off, got %q", s)
}

var (
	// StatusCmd prints the status report.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "show transport and key status",
		Func: func(c *ishell.Context) {
			var r *status.Report
			if !Do(c, func(t *term.Terminal) { r = t.Report() }) {
				return
			}
			if ShellFrom(c).OutputJSON {
				out, err := json.Marshal(r)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			c.Println(FormatReport(r))
		},
	}

	// SendCmd queues text for the host.
	SendCmd = ishell.Cmd{
		Name: "send",
		Help: "TEXT - send to host, escapes like \\r are interpreted",
		Func: func(c *ishell.Context) {
			data, err := ParseText(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			var n int
			if Do(c, func(t *term.Terminal) { n = t.Send(data) }) {
				c.Printf("%d/%d bytes queued\n", n, len(data))
			}
		},
	}

	// BaudCmd shows or sets the baud rate.
	BaudCmd = ishell.Cmd{
		Name: "baud",
		Help: "[RATE] - show or set the baud rate",
		Func: func(c *ishell.Context) {
			if len(c.Args) > 0 {
				baud, err := strconv.ParseUint(c.Args[0], 10, 32)
				if err != nil || baud == 0 {
					c.Err(fmt.Errorf("invalid baud rate %q", c.Args[0]))
					return
				}
				Do(c, func(t *term.Terminal) { t.SetBaud(uint32(baud)) })
			}
			var achieved float64
			if Do(c, func(t *term.Terminal) { achieved = t.Transport.BaudRate() }) {
				c.Printf("%.1f\n", achieved)
			}
		},
	}

	// ModeCmd shows or sets the pass-through mode.
	ModeCmd = ishell.Cmd{
		Name: "mode",
		Help: "[disabled|serial|passthrough|passthrough-only]",
		Func: func(c *ishell.Context) {
			store := ShellFrom(c).Term.Settings
			if len(c.Args) > 0 {
				mode, err := serial.ParseMode(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				store.SetMode(mode)
			}
			c.Println(store.PassThroughMode())
		},
	}

	// FlowCmd enables or disables XON/XOFF.
	FlowCmd = ishell.Cmd{
		Name:    "xonxoff",
		Aliases: []string{"flow"},
		Help:    "[on|off]",
		Func: func(c *ishell.Context) {
			store := ShellFrom(c).Term.Settings
			if len(c.Args) > 0 {
				on, err := ParseOnOff(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				store.SetXonXoff(on)
			}
			c.Println(store.SerialXonXoff())
		},
	}

	// BlinkCmd sets the activity blink.
	BlinkCmd = ishell.Cmd{
		Name: "blink",
		Help: "[MS] - activity LED blink, 0 disables",
		Func: func(c *ishell.Context) {
			store := ShellFrom(c).Term.Settings
			if len(c.Args) > 0 {
				ms, err := strconv.ParseUint(c.Args[0], 10, 16)
				if err != nil {
					c.Err(err)
					return
				}
				store.SetBlink(uint16(ms))
			}
			c.Printf("%dms\n", store.SerialBlink())
		},
	}

	// PinsCmd lists the emulated lines.
	PinsCmd = ishell.Cmd{
		Name: "pins",
		Help: "list emulated lines",
		Func: func(c *ishell.Context) {
			for _, name := range ShellFrom(c).Term.PinNames() {
				c.Println(name)
			}
		},
	}

	// PinCmd drives an emulated line.
	PinCmd = ishell.Cmd{
		Name: "pin",
		Help: "NAME low|high",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(fmt.Errorf("usage: pin NAME low|high"))
				return
			}
			var level bool
			switch strings.ToLower(c.Args[1]) {
			case "low", "0":
			case "high", "1":
				level = true
			default:
				c.Err(fmt.Errorf("invalid level %q", c.Args[1]))
				return
			}
			var err error
			if Do(c, func(t *term.Terminal) { err = t.SetPin(c.Args[0], level) }) && err != nil {
				c.Err(err)
			}
		},
	}

	// BreakCmd requests a break on the line.
	BreakCmd = ishell.Cmd{
		Name: "break",
		Help: "on|off - request a line break",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("usage: break on|off"))
				return
			}
			on, err := ParseOnOff(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			Do(c, func(t *term.Terminal) { t.Transport.SetBreak(on) })
		},
	}

	// KeysCmd shows the pressed keys.
	KeysCmd = ishell.Cmd{
		Name: "keys",
		Help: "show pressed keys",
		Func: func(c *ishell.Context) {
			var r *status.Report
			if !Do(c, func(t *term.Terminal) { r = t.Report() }) {
				return
			}
			var pressed []string
			for i := 0; i < 64; i++ {
				if r.KeysPressed&(1<<uint(i)) != 0 {
					pressed = append(pressed, strconv.Itoa(i+1))
				}
			}
			if len(pressed) == 0 {
				c.Println("none")
				return
			}
			c.Println(strings.Join(pressed, " "))
		},
	}
)
