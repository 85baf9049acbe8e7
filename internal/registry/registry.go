// Package registry tracks which live connections are joined to which
// rooms and fans broadcast payloads out to them.
package registry

import (
	"context"
	"errors"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/chatstack/chatservice/internal/stats"
)

// ErrUnknownConnection is returned by Join when the connection was never
// registered or has already been unregistered.
var ErrUnknownConnection = errors.New("unknown connection")

// Transport delivers a payload to a single connection. Send must honor
// ctx cancellation so one stalled connection cannot hold up a broadcast.
type Transport interface {
	Send(ctx context.Context, connID string, payload []byte) error
}

const (
	numShards          = 32
	defaultSendTimeout = 5 * time.Second
)

type roomShard struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{} // roomID -> joined conn ids
}

type connShard struct {
	mu    sync.Mutex
	conns map[string]map[string]struct{} // connID -> joined room ids
}

// RoomRegistry maps room ids to the set of currently joined connections.
// State is sharded by room id and by connection id so a slow operation in
// one room does not stall joins elsewhere. When both a connection shard
// and a room shard are held, the connection shard is always locked first.
type RoomRegistry struct {
	log         *log.Logger
	transport   Transport
	stats       stats.Provider
	sendTimeout time.Duration
	roomShards  [numShards]*roomShard
	connShards  [numShards]*connShard
}

func NewRoomRegistry(logger *log.Logger, transport Transport, sp stats.Provider, sendTimeout time.Duration) *RoomRegistry {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}

	r := &RoomRegistry{
		log:         logger,
		transport:   transport,
		stats:       sp,
		sendTimeout: sendTimeout,
	}
	for i := range r.roomShards {
		r.roomShards[i] = &roomShard{rooms: make(map[string]map[string]struct{})}
	}
	for i := range r.connShards {
		r.connShards[i] = &connShard{conns: make(map[string]map[string]struct{})}
	}

	return r
}

func shardIndex(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % numShards)
}

func (r *RoomRegistry) roomShard(roomID string) *roomShard {
	return r.roomShards[shardIndex(roomID)]
}

func (r *RoomRegistry) connShard(connID string) *connShard {
	return r.connShards[shardIndex(connID)]
}

// Register makes a connection known to the registry. A connection must be
// registered before it can join rooms.
func (r *RoomRegistry) Register(connID string) {
	cs := r.connShard(connID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, ok := cs.conns[connID]; !ok {
		cs.conns[connID] = make(map[string]struct{})
	}
}

// Unregister removes the connection entirely, leaving any rooms it was
// still joined to.
func (r *RoomRegistry) Unregister(connID string) {
	cs := r.connShard(connID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	rooms, ok := cs.conns[connID]
	if !ok {
		return
	}

	for roomID := range rooms {
		r.dropFromRoom(roomID, connID)
	}
	delete(cs.conns, connID)
}

// Join adds the connection to the room's joined set. Idempotent.
func (r *RoomRegistry) Join(connID, roomID string) error {
	cs := r.connShard(connID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	rooms, ok := cs.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	rooms[roomID] = struct{}{}

	rs := r.roomShard(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if _, ok := rs.rooms[roomID]; !ok {
		rs.rooms[roomID] = make(map[string]struct{})
	}
	rs.rooms[roomID][connID] = struct{}{}

	return nil
}

// Leave removes the connection from the room. No-op if it was not joined.
func (r *RoomRegistry) Leave(connID, roomID string) {
	cs := r.connShard(connID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if rooms, ok := cs.conns[connID]; ok {
		delete(rooms, roomID)
	}

	r.dropFromRoom(roomID, connID)
}

// LeaveAll removes the connection from every room it is joined to. The
// connection stays registered. Used on disconnect before Unregister.
func (r *RoomRegistry) LeaveAll(connID string) {
	cs := r.connShard(connID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	rooms, ok := cs.conns[connID]
	if !ok {
		return
	}

	for roomID := range rooms {
		r.dropFromRoom(roomID, connID)
		delete(rooms, roomID)
	}
}

// dropFromRoom removes connID from the room set. Callers hold the
// connection shard lock; the room shard is locked second, matching the
// registry-wide lock order.
func (r *RoomRegistry) dropFromRoom(roomID, connID string) {
	rs := r.roomShard(roomID)
	rs.mu.Lock()
	defer rs.mu.Unlock()

	conns, ok := rs.rooms[roomID]
	if !ok {
		return
	}

	delete(conns, connID)
	if len(conns) == 0 {
		delete(rs.rooms, roomID)
	}
}

// Connections returns a snapshot of the room's joined connection ids.
func (r *RoomRegistry) Connections(roomID string) []string {
	rs := r.roomShard(roomID)
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	conns := make([]string, 0, len(rs.rooms[roomID]))
	for connID := range rs.rooms[roomID] {
		conns = append(conns, connID)
	}

	return conns
}

// Broadcast delivers payload to every connection joined to the room at
// call time. The target set is snapshotted under the room lock and the
// lock is released before any delivery, so connections joining mid-call
// do not receive this broadcast and a slow send never blocks joins. Each
// send is bounded by the registry's send timeout; a failure for one
// connection is logged and counted but never aborts delivery to the rest.
// Returns the number of successful deliveries.
func (r *RoomRegistry) Broadcast(roomID string, payload []byte) int {
	targets := r.Connections(roomID)

	var delivered int
	for _, connID := range targets {
		ctx, cancel := context.WithTimeout(context.Background(), r.sendTimeout)
		err := r.transport.Send(ctx, connID, payload)
		cancel()
		if err != nil {
			r.log.Printf("broadcast to %q in room %q: %v", connID, roomID, err)
			r.stats.Incr(stats.DeliveryFailures)
			continue
		}
		delivered++
	}

	r.stats.Incr(stats.MessagesBroadcast)
	return delivered
}
