package core

import (
	"context"
	"database/sql"
)

// DBExecutor is the statement surface shared by *sql.DB, *sql.Tx and their
// sqlx wrappers. Repository methods accept it as a trailing vararg so several
// writes can ride one transaction; without it they hit the pool directly.
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DBOrdering is one ORDER BY term of a listing query. Repositories whitelist
// Field before interpolating it.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
