package database

import (
	"database/sql"

	"github.com/teris-io/shortid"
)

// PgRepository implements Repository against Postgres. Room ids are
// shortids generated at creation time so they are safe to expose on the
// wire.
type PgRepository struct {
	conn *sql.DB
	sid  *shortid.Shortid
}

func NewPgRepository(dsn string) (*PgRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	sid, err := shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		return nil, err
	}

	return &PgRepository{conn: db, sid: sid}, nil
}

func (r *PgRepository) Ping() error {
	return r.conn.Ping()
}

func (r *PgRepository) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
