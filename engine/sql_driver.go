package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// sqlDriver is the shared database/sql-backed implementation of Driver.
// Each per-dialect package (engine/mysql, engine/postgres, engine/mssql,
// engine/sqlite) only builds a DSN and opens the right driver name;
// statement shapes are ANSI SQL common to all four (spec.md §6 does not
// call for dialect-specific DDL beyond what the rendered query and
// storage_format already carry).
type sqlDriver struct {
	db *sql.DB
}

// NewSQLDriver wraps an already-opened *sql.DB as a Driver. Per-dialect
// constructors call this after sql.Open with their own driver name.
func NewSQLDriver(db *sql.DB) Driver {
	return &sqlDriver{db: db}
}

func (d *sqlDriver) Close() error { return d.db.Close() }

func (d *sqlDriver) Execute(ctx context.Context, sqlText string) error {
	if _, err := d.db.ExecContext(ctx, sqlText); err != nil {
		return &Error{Op: "Execute", SQL: sqlText, Err: err}
	}
	return nil
}

func (d *sqlDriver) CreateTable(ctx context.Context, name string, columns []Column, properties map[string]string) error {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = fmt.Sprintf("%s %s", c.Name, c.Type)
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", name, strings.Join(defs, ", "))
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return &Error{Op: "CreateTable", SQL: stmt, Err: err}
	}
	return nil
}

func (d *sqlDriver) CreateView(ctx context.Context, name string, query string, replace bool) error {
	verb := "CREATE VIEW"
	if replace {
		verb = "CREATE OR REPLACE VIEW"
	}
	stmt := fmt.Sprintf("%s %s AS %s", verb, name, query)
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return &Error{Op: "CreateView", SQL: stmt, Err: err}
	}
	return nil
}

func (d *sqlDriver) CreateSchema(ctx context.Context, name string) error {
	stmt := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", name)
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return &Error{Op: "CreateSchema", SQL: stmt, Err: err}
	}
	return nil
}

func (d *sqlDriver) DropTable(ctx context.Context, name string) error {
	stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s", name)
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return &Error{Op: "DropTable", SQL: stmt, Err: err}
	}
	return nil
}

func (d *sqlDriver) DropView(ctx context.Context, name string) error {
	stmt := fmt.Sprintf("DROP VIEW IF EXISTS %s", name)
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return &Error{Op: "DropView", SQL: stmt, Err: err}
	}
	return nil
}

// TableExists probes via a row-less SELECT rather than an
// information_schema query, since the column set differs across the
// four dialects sqlDriver is shared by. An ErrNoRows scan means the
// table exists and is just empty; any other error means it doesn't.
func (d *sqlDriver) TableExists(ctx context.Context, name string) (bool, error) {
	row := d.db.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE 1 = 0", name))
	var dummy int
	err := row.Scan(&dummy)
	switch err {
	case sql.ErrNoRows, nil:
		return true, nil
	default:
		return false, nil
	}
}

func (d *sqlDriver) InsertAppend(ctx context.Context, table string, query string) error {
	stmt := fmt.Sprintf("INSERT INTO %s %s", table, query)
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return &Error{Op: "InsertAppend", SQL: stmt, Err: err}
	}
	return nil
}

func (d *sqlDriver) InsertOverwrite(ctx context.Context, table string, query string, whereExpr string) error {
	return d.Transaction(ctx, func(tx Tx) error {
		if whereExpr != "" {
			if err := tx.Execute(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", table, whereExpr)); err != nil {
				return err
			}
		} else {
			if err := tx.Execute(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
				return err
			}
		}
		return tx.Execute(ctx, fmt.Sprintf("INSERT INTO %s %s", table, query))
	})
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) Execute(ctx context.Context, sqlText string) error {
	if _, err := t.tx.ExecContext(ctx, sqlText); err != nil {
		return &Error{Op: "Execute", SQL: sqlText, Err: err}
	}
	return nil
}

func (d *sqlDriver) Transaction(ctx context.Context, fn func(Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return &Error{Op: "Transaction", Err: err}
	}
	if err := fn(&sqlTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
