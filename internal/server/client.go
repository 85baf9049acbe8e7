package server

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueueSize  = 256
)

// ClientState models the per-connection lifecycle:
// Connecting -> Authenticated -> Closed. Closed is terminal.
type ClientState int32

const (
	StateConnecting ClientState = iota
	StateAuthenticated
	StateClosed
)

// Client is one live websocket session. Payloads queued on send are
// already encoded; the write pump only moves bytes.
type Client struct {
	id       string
	identity string
	state    atomic.Int32
	conn     *websocket.Conn
	srv      *SessionServer
	log      *log.Logger
	send     chan []byte
	stop     chan struct{}
	stopOnce sync.Once
}

func newClient(id string, conn *websocket.Conn, srv *SessionServer, logger *log.Logger) *Client {
	return &Client{
		id:   id,
		conn: conn,
		srv:  srv,
		log:  logger,
		send: make(chan []byte, sendQueueSize),
		stop: make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Identity() string {
	return c.identity
}

func (c *Client) State() ClientState {
	return ClientState(c.state.Load())
}

// authenticate binds the connection to a user identity. Only valid from
// the Connecting state.
func (c *Client) authenticate(identity string) bool {
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateAuthenticated)) {
		return false
	}
	c.identity = identity
	return true
}

func (c *Client) close() {
	c.stopOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.stop)
	})
}

// queueFrame enqueues an encoded server frame without blocking. Frames
// dropped against a full queue are logged; the read pump keeps going.
func (c *Client) queueFrame(f *ServerFrame) bool {
	select {
	case c.send <- f.encode():
		return true
	default:
		c.log.Printf("send queue full for connection %q, dropping frame", c.id)
		return false
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			if !c.writeMessage(websocket.TextMessage, payload) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.writeMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		c.srv.handleDisconnect(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Printf("ws read on %q: %v", c.id, err)
			}
			return
		}

		if resp := c.srv.dispatch(c, raw); resp != nil {
			c.queueFrame(resp)
		}
	}
}

func (c *Client) writeMessage(msgType int, payload []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(msgType, payload); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway,
			websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
			c.log.Printf("ws write on %q: %v", c.id, err)
		}
		return false
	}

	return true
}
