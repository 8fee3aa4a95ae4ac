// Package mysql is the built-in MySQL and MariaDB adapter, using
// go-sql-driver/mysql. DDL in MySQL commits implicitly, so a failed version
// may stay partially applied.
package mysql

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-sql-driver/mysql"

	"github.com/satishbabariya/schemaver/migrate/dataservice"
	"github.com/satishbabariya/schemaver/migrate/dataservice/sqlbase"
	"github.com/satishbabariya/schemaver/migrate/parser"
)

// Dialect implements sqlbase.Dialect for MySQL compatible servers.
type Dialect struct {
	platform string
}

// New returns a MySQL data service.
func New(opts sqlbase.Options) (*sqlbase.Service, error) {
	return sqlbase.New(Dialect{platform: dataservice.MySQL}, opts)
}

// NewMariaDB returns a MariaDB data service.
func NewMariaDB(opts sqlbase.Options) (*sqlbase.Service, error) {
	return sqlbase.New(Dialect{platform: dataservice.MariaDB}, opts)
}

func (d Dialect) Platform() string {
	if d.platform == "" {
		return dataservice.MySQL
	}
	return d.platform
}

func (Dialect) DriverName() string { return "mysql" }
func (Dialect) AtomicDDL() bool    { return false }

func (Dialect) BatchOptions() parser.Options {
	opts := parser.DefaultOptions()
	opts.LineComments = []string{"--", "#"}
	opts.BackslashEscapes = true
	opts.BracketIdentifiers = false
	opts.BacktickIdentifiers = true
	return opts
}

func parse(connectionString string) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(strings.TrimPrefix(connectionString, "mysql://"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid connection string")
	}
	return cfg, nil
}

// DSN enables time parsing for the tracking table and multiple statements
// per batch.
func (Dialect) DSN(connectionString string) (string, error) {
	cfg, err := parse(connectionString)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	cfg.MultiStatements = true
	return cfg.FormatDSN(), nil
}

func (Dialect) DatabaseName(connectionString string) (string, error) {
	cfg, err := parse(connectionString)
	if err != nil {
		return "", err
	}
	if cfg.DBName == "" {
		return "", errors.New("connection string does not name a database")
	}
	return cfg.DBName, nil
}

func (Dialect) ServerDSN(connectionString string) (string, error) {
	cfg, err := parse(connectionString)
	if err != nil {
		return "", err
	}
	cfg.DBName = ""
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func (Dialect) DatabaseExistsQuery() string {
	return `SELECT COUNT(1) FROM information_schema.schemata WHERE schema_name = ?`
}

func (Dialect) CreateDatabaseStatement(name string) string {
	return "CREATE DATABASE `" + strings.ReplaceAll(name, "`", "``") + "`"
}
