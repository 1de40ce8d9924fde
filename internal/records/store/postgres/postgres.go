// Package postgres implements the record stores on PostgreSQL using
// database/sql with lib/pq. All writes are single-statement upserts except
// the primary-passport swap, which runs demote and promote inside one
// transaction.
package postgres

import (
	"context"
	"database/sql"
)

// querier is satisfied by both *sql.DB and *sql.Tx so every query can join a
// caller-opened transaction carried in context.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
