package database

import "errors"

// ErrNotFound is returned for lookups of rooms or accounts that do not
// exist. Callers must compare with errors.Is rather than inspecting zero
// values.
var ErrNotFound = errors.New("not found")

type Repository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (Account, error)
	GetAccountByEmail(email string) (Account, error)
	GetAccountByID(id int64) (Account, error)
	CreateRoom(name string, members []string) (Room, error)
	GetRoomByID(id string) (Room, error)
	AppendMessage(roomID string, msg Message) (Message, error)
	ListMessages(roomID string) ([]Message, error)
}
