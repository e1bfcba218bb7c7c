// Package mssql is a thin engine.Driver backed by
// github.com/denisenkom/go-mssqldb, grounded in the teacher's
// database/mssql DSN construction.
package mssql

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/denisenkom/go-mssqldb"

	"github.com/flowforge/flowplan/engine"
)

// Config mirrors the subset of the teacher's database.Config that
// applies to SQL Server connections.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DbName   string
}

func buildDSN(c Config) string {
	port := c.Port
	if port == 0 {
		port = 1433
	}
	query := url.Values{}
	query.Add("database", c.DbName)
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, port),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// NewDriver opens a SQL Server connection pool and returns it as an
// engine.Driver.
func NewDriver(c Config) (engine.Driver, error) {
	db, err := sql.Open("sqlserver", buildDSN(c))
	if err != nil {
		return nil, fmt.Errorf("engine/mssql: open: %w", err)
	}
	return engine.NewSQLDriver(db), nil
}
