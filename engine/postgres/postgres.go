// Package postgres is a thin engine.Driver backed by
// github.com/lib/pq, grounded in the teacher's database/postgres DSN
// construction.
package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/flowforge/flowplan/engine"
)

// Config mirrors the subset of the teacher's database.Config that
// applies to PostgreSQL connections.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DbName   string
	SslMode  string
}

func buildDSN(c Config) string {
	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslMode := c.SslMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, port, c.User, c.Password, c.DbName, sslMode)
}

// NewDriver opens a PostgreSQL connection pool and returns it as an
// engine.Driver.
func NewDriver(c Config) (engine.Driver, error) {
	db, err := sql.Open("postgres", buildDSN(c))
	if err != nil {
		return nil, fmt.Errorf("engine/postgres: open: %w", err)
	}
	return engine.NewSQLDriver(db), nil
}
