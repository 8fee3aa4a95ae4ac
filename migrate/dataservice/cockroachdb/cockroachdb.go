// Package cockroachdb is the built-in CockroachDB adapter, using the pgx
// database/sql driver. Schema changes in CockroachDB do not roll back with a
// transaction, so versions apply batch by batch.
package cockroachdb

import (
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/satishbabariya/schemaver/migrate/dataservice"
	"github.com/satishbabariya/schemaver/migrate/dataservice/postgresql"
	"github.com/satishbabariya/schemaver/migrate/dataservice/sqlbase"
	"github.com/satishbabariya/schemaver/migrate/parser"
)

// MaintenanceDatabase exists on every cluster.
const MaintenanceDatabase = "defaultdb"

// Dialect implements sqlbase.Dialect for CockroachDB.
type Dialect struct{}

// New returns a CockroachDB data service.
func New(opts sqlbase.Options) (*sqlbase.Service, error) {
	return sqlbase.New(Dialect{}, opts)
}

func (Dialect) Platform() string   { return dataservice.CockroachDB }
func (Dialect) DriverName() string { return "pgx" }
func (Dialect) AtomicDDL() bool    { return false }

func (Dialect) BatchOptions() parser.Options {
	opts := parser.DefaultOptions()
	opts.DollarQuoting = true
	opts.BracketIdentifiers = false
	return opts
}

// DSN forces the simple protocol so a batch may hold several statements.
func (Dialect) DSN(connectionString string) (string, error) {
	dsn, err := postgresql.WithParam(connectionString, "default_query_exec_mode", "simple_protocol")
	if err != nil {
		return "", err
	}
	if _, err := pgx.ParseConfig(dsn); err != nil {
		return "", errors.Wrap(err, "invalid connection string")
	}
	return dsn, nil
}

func (Dialect) DatabaseName(connectionString string) (string, error) {
	cfg, err := pgx.ParseConfig(connectionString)
	if err != nil {
		return "", errors.Wrap(err, "invalid connection string")
	}
	if cfg.Database == "" {
		return "", errors.New("connection string does not name a database")
	}
	return cfg.Database, nil
}

func (d Dialect) ServerDSN(connectionString string) (string, error) {
	server, err := postgresql.WithDatabase(connectionString, MaintenanceDatabase)
	if err != nil {
		return "", err
	}
	return d.DSN(server)
}

func (Dialect) DatabaseExistsQuery() string {
	return `SELECT COUNT(1) FROM pg_database WHERE datname = $1`
}

func (Dialect) CreateDatabaseStatement(name string) string {
	return "CREATE DATABASE IF NOT EXISTS " + pgx.Identifier{name}.Sanitize()
}
