// Package engine implements the engine driver contract of spec.md §6:
// the warehouse-side operations the core delegates physical DDL/DML to.
// The core never executes SQL itself — these drivers are thin
// database/sql wrappers consumed through the Driver interface.
package engine

import "context"

// Column describes one column of a CREATE TABLE statement.
type Column struct {
	Name string
	Type string
}

// Tx is a scoped transaction handle returned by Driver.Transaction: the
// caller runs work against it and the driver guarantees commit on
// normal return, rollback on error (spec.md §6).
type Tx interface {
	Execute(ctx context.Context, sql string) error
}

// Driver is the engine driver contract of spec.md §6.
type Driver interface {
	Execute(ctx context.Context, sql string) error
	CreateTable(ctx context.Context, name string, columns []Column, properties map[string]string) error
	CreateView(ctx context.Context, name string, query string, replace bool) error
	CreateSchema(ctx context.Context, name string) error
	DropTable(ctx context.Context, name string) error
	DropView(ctx context.Context, name string) error
	TableExists(ctx context.Context, name string) (bool, error)
	InsertAppend(ctx context.Context, table string, query string) error
	InsertOverwrite(ctx context.Context, table string, query string, whereExpr string) error
	// Transaction runs fn against a scoped Tx, committing on a nil
	// return and rolling back otherwise.
	Transaction(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Error wraps a driver failure (spec.md §7): the caller decides
// whether to retry, the core itself never does.
type Error struct {
	Op  string
	SQL string
	Err error
}

func (e *Error) Error() string {
	if e.SQL == "" {
		return "engine: " + e.Op + ": " + e.Err.Error()
	}
	return "engine: " + e.Op + ": " + e.Err.Error() + "\n  sql: " + e.SQL
}

func (e *Error) Unwrap() error { return e.Err }
