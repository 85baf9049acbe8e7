package server

import (
	"context"
	"fmt"
	"sync"
)

// ConnTable maps connection ids to live clients and implements
// registry.Transport. It is constructed before the registry so the two
// can reference each other without a cycle.
type ConnTable struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewConnTable() *ConnTable {
	return &ConnTable{clients: make(map[string]*Client)}
}

func (t *ConnTable) add(c *Client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clients[c.id] = c
}

func (t *ConnTable) remove(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.clients, connID)
}

func (t *ConnTable) get(connID string) (*Client, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	c, ok := t.clients[connID]
	return c, ok
}

func (t *ConnTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.clients)
}

// Send queues payload on the connection's outbound channel. It blocks
// until the payload is queued, the connection closes, or ctx expires,
// so a stalled client bounds out at the caller's timeout instead of
// wedging the broadcaster. A disconnect racing a broadcast surfaces here
// as an error on this connection only.
func (t *ConnTable) Send(ctx context.Context, connID string, payload []byte) error {
	c, ok := t.get(connID)
	if !ok {
		return fmt.Errorf("unknown connection %q", connID)
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.stop:
		return fmt.Errorf("connection %q closed", connID)
	case <-ctx.Done():
		return ctx.Err()
	}
}
