package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (r *PgRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	row := r.conn.QueryRow(
		"INSERT INTO accounts (email, username, password_hash, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, email, username, created_at",
		params.Email,
		params.Username,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var a Account
	err := row.Scan(&a.ID, &a.Email, &a.Username, &a.CreatedAt)

	return a, err
}

func (r *PgRepository) GetAccountByEmail(email string) (Account, error) {
	row := r.conn.QueryRow(
		"SELECT id, email, username, password_hash, created_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var a Account
	err := row.Scan(&a.ID, &a.Email, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}

	return a, err
}

func (r *PgRepository) GetAccountByID(id int64) (Account, error) {
	row := r.conn.QueryRow(
		"SELECT id, email, username, password_hash, created_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var a Account
	err := row.Scan(&a.ID, &a.Email, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}

	return a, err
}

func (r *PgRepository) CreateRoom(name string, members []string) (Room, error) {
	id, err := r.sid.Generate()
	if err != nil {
		return Room{}, fmt.Errorf("generate room id: %w", err)
	}

	tx, err := r.conn.Begin()
	if err != nil {
		return Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	row := tx.QueryRow(
		"INSERT INTO rooms (id, name, created_at) VALUES ($1, $2, $3) "+
			"RETURNING id, name, created_at",
		id,
		name,
		time.Now().UTC(),
	)

	var room Room
	if err = row.Scan(&room.ID, &room.Name, &room.CreatedAt); err != nil {
		return Room{}, err
	}

	for _, member := range members {
		if _, err = tx.Exec(
			"INSERT INTO room_members (room_id, email) VALUES ($1, $2)",
			room.ID,
			member,
		); err != nil {
			return Room{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return Room{}, err
	}

	room.Members = members
	return room, nil
}

func (r *PgRepository) GetRoomByID(id string) (Room, error) {
	row := r.conn.QueryRow(
		"SELECT id, name, created_at FROM rooms WHERE id = $1 LIMIT 1",
		id,
	)

	var room Room
	err := row.Scan(&room.ID, &room.Name, &room.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Room{}, ErrNotFound
	}
	if err != nil {
		return Room{}, err
	}

	rows, err := r.conn.Query(
		"SELECT email FROM room_members WHERE room_id = $1 ORDER BY email",
		room.ID,
	)
	if err != nil {
		return Room{}, err
	}
	defer rows.Close()

	room.Members = make([]string, 0)
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return Room{}, err
		}
		room.Members = append(room.Members, email)
	}

	return room, rows.Err()
}

// AppendMessage inserts a message into the room's log. The log is append
// only: no update or delete statements exist for the messages table. Seq
// is assigned by the database and defines the room's message order.
func (r *PgRepository) AppendMessage(roomID string, msg Message) (Message, error) {
	var exists bool
	err := r.conn.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)",
		roomID,
	).Scan(&exists)
	if err != nil {
		return Message{}, err
	}
	if !exists {
		return Message{}, ErrNotFound
	}

	row := r.conn.QueryRow(
		"INSERT INTO messages (id, room_id, sender, content, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, seq, room_id, sender, content, created_at",
		msg.ID,
		roomID,
		msg.Sender,
		msg.Content,
		msg.CreatedAt,
	)

	var stored Message
	err = row.Scan(&stored.ID, &stored.Seq, &stored.RoomID, &stored.Sender, &stored.Content, &stored.CreatedAt)

	return stored, err
}

func (r *PgRepository) ListMessages(roomID string) ([]Message, error) {
	var exists bool
	err := r.conn.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)",
		roomID,
	).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := r.conn.Query(
		"SELECT id, seq, room_id, sender, content, created_at FROM messages "+
			"WHERE room_id = $1 ORDER BY seq ASC",
		roomID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.Seq, &msg.RoomID, &msg.Sender, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
