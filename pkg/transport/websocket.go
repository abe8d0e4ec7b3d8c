package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/taigrr/showroom/pkg/logging"
	"github.com/taigrr/showroom/pkg/protocol"
)

const closeGrace = time.Second

// Conn is a Channel over a WebSocket connection.
type Conn struct {
	ws *websocket.Conn

	// gorilla/websocket allows one concurrent writer.
	wmu sync.Mutex

	inbox     chan protocol.Message
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to a surface or panel listening at url (ws:// or wss://).
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return newConn(ws), nil
}

// Handler upgrades incoming HTTP requests and passes each connection, with
// the request that opened it, to accept. accept runs on the request
// goroutine and should return once the connection is no longer needed.
func Handler(accept func(c *Conn, r *http.Request)) http.Handler {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Logger().Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		c := newConn(ws)
		defer c.Close()
		accept(c, r)
	})
}

func newConn(ws *websocket.Conn) *Conn {
	c := &Conn{
		ws:    ws,
		inbox: make(chan protocol.Message, DefaultBuffer),
		done:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Conn) readLoop() {
	defer close(c.inbox)
	for {
		_, b, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Logger().Debug("websocket read ended", "err", err)
			}
			c.Close()
			return
		}
		m, err := protocol.Decode(b)
		if err != nil {
			logging.Logger().Debug("ignoring message", "err", err)
			continue
		}
		select {
		case c.inbox <- m:
		case <-c.done:
			return
		default:
			logging.Logger().Debug("websocket inbox full, dropping message", "kind", m.Kind())
		}
	}
}

// Send encodes m and writes it as a text frame.
func (c *Conn) Send(m protocol.Message) error {
	b, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
		return err
	}
	return nil
}

// Messages yields messages decoded from the peer.
func (c *Conn) Messages() <-chan protocol.Message { return c.inbox }

// Done is closed once the connection has shut down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close sends a close frame and releases the connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.wmu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGrace))
		c.wmu.Unlock()
		err = c.ws.Close()
	})
	return err
}
