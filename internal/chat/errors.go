package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired is returned for actions attempted without an
	// authenticated identity.
	ErrAuthRequired = errors.New("authentication required")
	// ErrForbidden is returned when the requester is authenticated but is
	// not a member of the room. No room data accompanies it.
	ErrForbidden = errors.New("not a member of this room")
	// ErrNotFound is returned when the room does not exist.
	ErrNotFound = errors.New("room not found")
)

// PersistenceError wraps a storage failure. It is fatal for the
// triggering request and always precedes any broadcast, so an unpersisted
// message is never visible to clients.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
