// Package sqlite is a thin engine.Driver backed by modernc.org/sqlite,
// grounded in the teacher's adapter/sqlite3 connection setup.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/flowforge/flowplan/engine"
)

// NewDriver opens path (a file path, or ":memory:") as a SQLite
// database and returns it as an engine.Driver.
func NewDriver(path string) (engine.Driver, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("engine/sqlite: open: %w", err)
	}
	return engine.NewSQLDriver(db), nil
}
