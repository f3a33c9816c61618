// Package websocket serves the pass-through byte stream to websocket
// clients. Every client sees the bytes from the host, and messages from
// any client are sent to the host.
package websocket

import (
	"io"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/vterm.go/pkg/framework"
)

// clientQueue is the number of pending frames per client. A client
// which falls behind loses frames.
const clientQueue = 64

// Hub fans the pass-through stream out to websocket clients.
type Hub struct {
	Loop *fx.Loop
	// Host receives the payloads sent by clients.
	Host io.Writer

	lock    sync.Mutex
	clients map[*client]struct{}
	pending []byte
}

type client struct {
	conn    *websocket.Conn
	frameCh chan []byte
	dropped int
}

// NewHub creates a Hub.
func NewHub(loop *fx.Loop, host io.Writer) *Hub {
	return &Hub{Loop: loop, Host: host, clients: make(map[*client]struct{})}
}

// Handler returns the http.Handler accepting websocket connections.
func (h *Hub) Handler() http.Handler {
	return websocket.Handler(h.serve)
}

// AddToLoop implements framework.LoopAdder.
func (h *Hub) AddToLoop(l *fx.Loop) {
	l.AddPoller(h)
}

// ReceiveChar implements serial.Receiver.
func (h *Hub) ReceiveChar(c byte) {
	h.pending = append(h.pending, c)
}

// Poll implements framework.Poller: it sends bytes collected in this
// iteration as one frame.
func (h *Hub) Poll(bool) {
	if len(h.pending) == 0 {
		return
	}
	frame := make([]byte, len(h.pending))
	copy(frame, h.pending)
	h.pending = h.pending[:0]
	h.broadcast(frame)
}

func (h *Hub) broadcast(frame []byte) {
	h.lock.Lock()
	defer h.lock.Unlock()
	for c := range h.clients {
		select {
		case c.frameCh <- frame:
		default:
			c.dropped++
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

func (h *Hub) serve(conn *websocket.Conn) {
	conn.PayloadType = websocket.BinaryFrame
	c := &client{conn: conn, frameCh: make(chan []byte, clientQueue)}
	h.lock.Lock()
	h.clients[c] = struct{}{}
	h.lock.Unlock()
	glog.Infof("websocket client %s connected", conn.Request().RemoteAddr)

	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		for frame := range c.frameCh {
			if err := websocket.Message.Send(conn, frame); err != nil {
				glog.V(2).Infof("websocket send: %v", err)
				conn.Close()
				for range c.frameCh {
				}
				return
			}
		}
	}()

	for {
		var msg []byte
		if err := websocket.Message.Receive(conn, &msg); err != nil {
			break
		}
		if len(msg) > 0 && h.Host != nil {
			h.Loop.Post(func() { h.Host.Write(msg) })
		}
	}

	h.lock.Lock()
	delete(h.clients, c)
	dropped := c.dropped
	h.lock.Unlock()
	close(c.frameCh)
	<-doneCh
	glog.Infof("websocket client %s disconnected, %d frames dropped", conn.Request().RemoteAddr, dropped)
}
