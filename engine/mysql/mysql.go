// Package mysql is a thin engine.Driver backed by
// github.com/go-sql-driver/mysql, grounded in the teacher's
// database/mysql DSN-building and connection setup.
package mysql

import (
	"database/sql"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/flowforge/flowplan/engine"
)

// Config mirrors the subset of the teacher's database.Config that
// applies to MySQL connections.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DbName   string
	Socket   string
}

func buildDSN(c Config) string {
	cfg := mysqldriver.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.DBName = c.DbName
	cfg.ParseTime = true
	if c.Socket != "" {
		cfg.Net = "unix"
		cfg.Addr = c.Socket
	} else {
		cfg.Net = "tcp"
		port := c.Port
		if port == 0 {
			port = 3306
		}
		cfg.Addr = fmt.Sprintf("%s:%d", c.Host, port)
	}
	return cfg.FormatDSN()
}

// NewDriver opens a MySQL connection pool and returns it as an
// engine.Driver.
func NewDriver(c Config) (engine.Driver, error) {
	db, err := sql.Open("mysql", buildDSN(c))
	if err != nil {
		return nil, fmt.Errorf("engine/mysql: open: %w", err)
	}
	return engine.NewSQLDriver(db), nil
}
