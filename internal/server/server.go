// Package server is the websocket transport: it accepts authenticated
// connections, dispatches inbound events and delivers outbound payloads.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chatstack/chatservice/internal/chat"
	"github.com/chatstack/chatservice/internal/presence"
	"github.com/chatstack/chatservice/internal/registry"
	"github.com/chatstack/chatservice/internal/stats"
)

// eventHandler processes one inbound frame and returns an optional
// response frame for the originating connection.
type eventHandler func(c *Client, frame ClientFrame) *ServerFrame

// SessionServer owns connection lifecycles. It registers connections with
// the registry and presence tracker on accept and guarantees cleanup on
// any disconnect path.
type SessionServer struct {
	log         *log.Logger
	table       *ConnTable
	registry    *registry.RoomRegistry
	presence    *presence.Tracker
	coordinator *chat.Coordinator
	stats       stats.Provider
	handlers    map[string]eventHandler
}

func NewSessionServer(
	logger *log.Logger,
	table *ConnTable,
	reg *registry.RoomRegistry,
	tracker *presence.Tracker,
	coordinator *chat.Coordinator,
	sp stats.Provider,
) *SessionServer {
	s := &SessionServer{
		log:         logger,
		table:       table,
		registry:    reg,
		presence:    tracker,
		coordinator: coordinator,
		stats:       sp,
	}

	// explicit dispatch table, unit-testable without a websocket
	s.handlers = map[string]eventHandler{
		EventJoinRoom:       s.handleJoinRoom,
		EventLeaveRoom:      s.handleLeaveRoom,
		EventChatMessage:    s.handleChatMessage,
		EventGetOnlineUsers: s.handleGetOnlineUsers,
	}

	return s
}

// Accept takes over an upgraded websocket for an authenticated identity.
// The connection id is minted here and never reused.
func (s *SessionServer) Accept(identity string, conn *websocket.Conn) *Client {
	c := newClient(uuid.NewString(), conn, s, s.log)
	c.authenticate(identity)

	s.table.add(c)
	s.registry.Register(c.id)
	if s.presence.MarkOnline(identity, c.id) {
		s.stats.Incr(stats.OnlineUsers)
	}
	s.stats.Incr(stats.ActiveConnections)

	s.log.Printf("connection %q accepted for %q", c.id, identity)

	go c.writePump()
	go c.readPump()

	return c
}

// handleDisconnect runs on every termination path: normal close, read
// error or server shutdown. Cleanup order: leave rooms, drop presence,
// forget the connection.
func (s *SessionServer) handleDisconnect(c *Client) {
	c.close()

	s.registry.LeaveAll(c.id)
	s.registry.Unregister(c.id)
	if s.presence.MarkOffline(c.identity, c.id) {
		s.stats.Decr(stats.OnlineUsers)
	}
	s.table.remove(c.id)
	s.stats.Decr(stats.ActiveConnections)

	s.log.Printf("connection %q for %q closed", c.id, c.identity)
}

// dispatch decodes an inbound frame and routes it through the handler
// table. Every action requires the Authenticated state.
func (s *SessionServer) dispatch(c *Client, raw []byte) *ServerFrame {
	var frame ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.log.Printf("malformed frame on %q: %v", c.id, err)
		return errInvalidFrame()
	}

	if c.State() != StateAuthenticated {
		return errAuthRequired()
	}

	handler, ok := s.handlers[frame.Event]
	if !ok {
		return errorFrame(http.StatusBadRequest, "unknown event "+frame.Event)
	}

	return handler(c, frame)
}

func (s *SessionServer) handleJoinRoom(c *Client, frame ClientFrame) *ServerFrame {
	// joining requires persisted membership, not just authentication
	if _, err := s.coordinator.GetRoom(frame.RoomID, c.identity); err != nil {
		return s.errorToFrame(c, err)
	}

	if err := s.registry.Join(c.id, frame.RoomID); err != nil {
		s.log.Printf("join %q to room %q: %v", c.id, frame.RoomID, err)
		return errInternal()
	}

	return joinedFrame(frame.RoomID)
}

func (s *SessionServer) handleLeaveRoom(c *Client, frame ClientFrame) *ServerFrame {
	s.registry.Leave(c.id, frame.RoomID)
	return leftFrame(frame.RoomID)
}

func (s *SessionServer) handleChatMessage(c *Client, frame ClientFrame) *ServerFrame {
	if _, err := s.coordinator.PostMessage(frame.RoomID, c.identity, frame.Content); err != nil {
		return s.errorToFrame(c, err)
	}

	// the broadcast reaches the sender's joined connections; no ack needed
	return nil
}

func (s *SessionServer) handleGetOnlineUsers(c *Client, _ ClientFrame) *ServerFrame {
	return onlineUsersFrame(s.presence.OnlineUsers())
}

func (s *SessionServer) errorToFrame(c *Client, err error) *ServerFrame {
	switch {
	case errors.Is(err, chat.ErrAuthRequired):
		return errAuthRequired()
	case errors.Is(err, chat.ErrForbidden):
		return errForbidden()
	case errors.Is(err, chat.ErrNotFound):
		return errRoomNotFound()
	default:
		s.log.Printf("action on %q failed: %v", c.id, err)
		return errInternal()
	}
}

// Shutdown closes every live connection. Per-connection cleanup runs via
// each read pump's disconnect path.
func (s *SessionServer) Shutdown() {
	s.table.mu.RLock()
	clients := make([]*Client, 0, len(s.table.clients))
	for _, c := range s.table.clients {
		clients = append(clients, c)
	}
	s.table.mu.RUnlock()

	for _, c := range clients {
		c.close()
		c.conn.Close()
	}
}
