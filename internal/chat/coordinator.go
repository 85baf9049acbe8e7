// Package chat holds the business rules: room authorization, durable
// message persistence and the ordering between persistence and live
// fan-out.
package chat

import (
	"encoding/json"
	"errors"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/chatstack/chatservice/internal/database"
	"github.com/chatstack/chatservice/internal/types"
)

// Broadcaster fans a payload out to a room's joined connections.
type Broadcaster interface {
	Broadcast(roomID string, payload []byte) int
}

// BroadcastEvent is the wire shape delivered to joined connections when a
// message is posted.
type BroadcastEvent struct {
	RoomID  string        `json:"room_id"`
	Message types.Message `json:"message"`
}

const numStripes = 64

// Coordinator authorizes chat actions against persisted room membership,
// persists messages and triggers broadcast. It is stateless apart from
// its collaborators and the stripe locks serializing per-room writes.
type Coordinator struct {
	log     *log.Logger
	db      database.Repository
	caster  Broadcaster
	stripes [numStripes]sync.Mutex
}

func NewCoordinator(logger *log.Logger, db database.Repository, caster Broadcaster) *Coordinator {
	return &Coordinator{
		log:    logger,
		db:     db,
		caster: caster,
	}
}

// roomStripe returns the mutex serializing persist+broadcast for a room.
// Striping bounds memory: unrelated rooms may share a stripe, which only
// costs unneeded serialization, never correctness.
func (c *Coordinator) roomStripe(roomID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(roomID))
	return &c.stripes[h.Sum32()%numStripes]
}

// CreateRoom persists a room whose member list is members with creator
// added if absent. The membership list is fixed at creation.
func (c *Coordinator) CreateRoom(creator, name string, members []string) (types.Room, error) {
	if creator == "" {
		return types.Room{}, ErrAuthRequired
	}

	members = lo.Uniq(append(members, creator))

	room, err := c.db.CreateRoom(name, members)
	if err != nil {
		return types.Room{}, &PersistenceError{Op: "CreateRoom", Err: err}
	}

	c.log.Printf("room %q created by %q with %d members", room.ID, creator, len(room.Members))
	return roomFromRecord(room), nil
}

// GetRoom returns the room if requester is a member. ErrNotFound and
// ErrForbidden both return a zero Room: callers never see room data on a
// failed authorization.
func (c *Coordinator) GetRoom(roomID, requester string) (types.Room, error) {
	record, err := c.authorize(roomID, requester)
	if err != nil {
		return types.Room{}, err
	}

	return roomFromRecord(record), nil
}

// PostMessage persists a message and then broadcasts it to the room's
// joined connections. Persistence strictly precedes broadcast, so a
// client that receives the broadcast and immediately lists messages sees
// the new message. Calls for the same room are serialized so concurrent
// senders cannot interleave persistence and broadcast order; calls for
// different rooms proceed independently.
func (c *Coordinator) PostMessage(roomID, sender, content string) (types.Message, error) {
	if _, err := c.authorize(roomID, sender); err != nil {
		return types.Message{}, err
	}

	mu := c.roomStripe(roomID)
	mu.Lock()
	defer mu.Unlock()

	stored, err := c.db.AppendMessage(roomID, database.Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
	if errors.Is(err, database.ErrNotFound) {
		return types.Message{}, ErrNotFound
	}
	if err != nil {
		return types.Message{}, &PersistenceError{Op: "AppendMessage", Err: err}
	}

	msg := messageFromRecord(stored)
	payload, err := json.Marshal(BroadcastEvent{RoomID: roomID, Message: msg})
	if err != nil {
		// the message is durable; only the live fan-out is lost
		c.log.Printf("encode broadcast for room %q: %v", roomID, err)
		return msg, nil
	}

	c.caster.Broadcast(roomID, payload)
	return msg, nil
}

// ListMessages returns the room's full log in persistence order.
func (c *Coordinator) ListMessages(roomID, requester string) ([]types.Message, error) {
	if _, err := c.authorize(roomID, requester); err != nil {
		return nil, err
	}

	records, err := c.db.ListMessages(roomID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "ListMessages", Err: err}
	}

	messages := make([]types.Message, len(records))
	for i, record := range records {
		messages[i] = messageFromRecord(record)
	}

	return messages, nil
}

// authorize fetches the room and checks requester membership.
func (c *Coordinator) authorize(roomID, requester string) (database.Room, error) {
	if requester == "" {
		return database.Room{}, ErrAuthRequired
	}

	record, err := c.db.GetRoomByID(roomID)
	if errors.Is(err, database.ErrNotFound) {
		return database.Room{}, ErrNotFound
	}
	if err != nil {
		return database.Room{}, &PersistenceError{Op: "GetRoomByID", Err: err}
	}

	if !lo.Contains(record.Members, requester) {
		return database.Room{}, ErrForbidden
	}

	return record, nil
}

func roomFromRecord(record database.Room) types.Room {
	return types.Room{
		ID:        record.ID,
		Name:      record.Name,
		Members:   record.Members,
		CreatedAt: record.CreatedAt,
	}
}

func messageFromRecord(record database.Message) types.Message {
	return types.Message{
		ID:        record.ID,
		RoomID:    record.RoomID,
		Sender:    record.Sender,
		Content:   record.Content,
		Seq:       record.Seq,
		Timestamp: record.CreatedAt.UTC(),
	}
}
