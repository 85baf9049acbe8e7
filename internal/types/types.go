package types

import "time"

// User is the API-facing account representation. A user's email address is
// its identity everywhere in the system: presence, room membership and
// message sender fields all carry emails.
type User struct {
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Room is a named, access-controlled channel. Members holds the emails
// allowed to join and post; the list is fixed at creation.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Message is one entry in a room's append-only log. Seq is assigned by
// storage in persistence order.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id,omitempty"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Seq       int64     `json:"seq,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
