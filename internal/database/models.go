package database

import "time"

type Account struct {
	ID           int64
	Email        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

type Room struct {
	ID        string
	Name      string
	Members   []string
	CreatedAt time.Time
}

type Message struct {
	ID        string
	Seq       int64
	RoomID    string
	Sender    string
	Content   string
	CreatedAt time.Time
}

type CreateAccountParams struct {
	Email        string
	Username     string
	PasswordHash string
}
