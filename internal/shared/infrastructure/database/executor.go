package database

import (
	"context"
	"database/sql"
)

// Row is the subset of pgx.Row and *sql.Row that repositories rely on.
type Row interface {
	Scan(dest ...any) error
}

// Rows is the subset of pgx.Rows and *sql.Rows that repositories rely on.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Result reports the outcome of an Exec.
type Result interface {
	RowsAffected() (int64, error)
}

// Executor runs queries against either a connection or an open transaction.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Transaction is an Executor that can be committed or rolled back.
type Transaction interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Connection is a pooled handle to one backend.
type Connection interface {
	Executor
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
	Ping(ctx context.Context) error
	Driver() Driver
}

type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool             { return r.rows.Next() }
func (r *sqlRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *sqlRows) Close() error           { return r.rows.Close() }
func (r *sqlRows) Err() error             { return r.rows.Err() }

// WrapSQLRows adapts *sql.Rows to Rows.
func WrapSQLRows(r *sql.Rows) Rows {
	return &sqlRows{rows: r}
}

// WrapSQLResult adapts sql.Result to Result.
func WrapSQLResult(r sql.Result) Result {
	return r
}
