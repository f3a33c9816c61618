package mqtt

import (
	"context"
	"io"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/vterm.go/pkg/framework"
	"github.com/robotalks/vterm.go/pkg/key"
	"github.com/robotalks/vterm.go/pkg/status"
)

// Topic names under <prefix><device-id>/.
const (
	TopicOut    = "out"
	TopicIn     = "in"
	TopicStatus = "status"
	TopicKeys   = "keys"
)

// DefaultStatusInterval is how often the status report is published.
const DefaultStatusInterval = 5 * time.Second

// Bridge connects a terminal to MQTT.
//
// ReceiveChar, KeyEvent and Poll run on the loop goroutine; bytes
// received on the in topic are posted to the loop and written to Host.
type Bridge struct {
	Queue     *Queue
	Publisher Publisher
	DeviceID  string
	Loop      *fx.Loop
	// Host receives the payloads of the in topic.
	Host io.Writer
	// Status produces the report, called on the loop goroutine.
	Status         func() *status.Report
	StatusInterval time.Duration

	out []byte
}

// NewBridge creates a Bridge publishing through q.
func NewBridge(q *Queue, deviceID string, loop *fx.Loop) *Bridge {
	return &Bridge{
		Queue:          q,
		Publisher:      q,
		DeviceID:       deviceID,
		Loop:           loop,
		StatusInterval: DefaultStatusInterval,
	}
}

// Topic returns the topic of name for this device.
func (b *Bridge) Topic(name string) string {
	return b.DeviceID + "/" + name
}

// Name implements framework.Named.
func (b *Bridge) Name() string {
	return "mqtt-bridge"
}

// AddToLoop implements framework.LoopAdder.
func (b *Bridge) AddToLoop(l *fx.Loop) {
	l.AddPoller(b)
}

// ReceiveChar implements serial.Receiver: the byte is published on
// the out topic by the next Poll.
func (b *Bridge) ReceiveChar(c byte) {
	b.out = append(b.out, c)
}

// KeyEvent publishes a key code.
func (b *Bridge) KeyEvent(code key.Code) {
	b.Publisher.PubWith(b.Topic(TopicKeys), []byte{byte(code)}, 0, false)
}

// Poll implements framework.Poller.
func (b *Bridge) Poll(bool) {
	if len(b.out) == 0 {
		return
	}
	payload := make([]byte, len(b.out))
	copy(payload, b.out)
	b.out = b.out[:0]
	b.Publisher.PubWith(b.Topic(TopicOut), payload, 0, false)
}

// Run implements framework.Runnable: it connects, forwards the in
// topic to the host and publishes status periodically.
func (b *Bridge) Run(ctx context.Context) error {
	if token := b.Queue.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer b.Queue.Close()
	sub := b.Queue.Sub(b.Topic(TopicIn), b.handleIn)
	defer sub.Close()

	interval := b.StatusInterval
	if interval <= 0 {
		interval = DefaultStatusInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := b.PublishStatus(ctx); err != nil {
				return err
			}
		}
	}
}

func (b *Bridge) handleIn(_ string, payload []byte) {
	if b.Host == nil || len(payload) == 0 {
		return
	}
	data := append([]byte(nil), payload...)
	b.Loop.Post(func() {
		if _, err := b.Host.Write(data); err != nil {
			glog.Warningf("mqtt: write to host: %v", err)
		}
	})
}

// PublishStatus publishes a retained status report.
func (b *Bridge) PublishStatus(ctx context.Context) error {
	if b.Status == nil {
		return nil
	}
	var report *status.Report
	if err := b.Loop.Do(ctx, func() { report = b.Status() }); err != nil {
		return err
	}
	data, err := report.Encode()
	if err != nil {
		return err
	}
	b.Publisher.PubWith(b.Topic(TopicStatus), data, 0, true)
	return nil
}
