// Package postgresql is the built-in PostgreSQL adapter, using lib/pq.
package postgresql

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/satishbabariya/schemaver/migrate/dataservice"
	"github.com/satishbabariya/schemaver/migrate/dataservice/sqlbase"
	"github.com/satishbabariya/schemaver/migrate/parser"
)

// MaintenanceDatabase is connected to when checking for or creating the
// target database.
const MaintenanceDatabase = "postgres"

// Dialect implements sqlbase.Dialect for PostgreSQL.
type Dialect struct{}

// New returns a PostgreSQL data service.
func New(opts sqlbase.Options) (*sqlbase.Service, error) {
	return sqlbase.New(Dialect{}, opts)
}

func (Dialect) Platform() string   { return dataservice.PostgreSQL }
func (Dialect) DriverName() string { return "postgres" }
func (Dialect) AtomicDDL() bool    { return true }

func (Dialect) BatchOptions() parser.Options {
	opts := parser.DefaultOptions()
	opts.DollarQuoting = true
	opts.BracketIdentifiers = false
	return opts
}

func (Dialect) DSN(connectionString string) (string, error) {
	return Normalize(connectionString)
}

func (Dialect) DatabaseName(connectionString string) (string, error) {
	cfg, err := ParseConfig(connectionString)
	if err != nil {
		return "", err
	}
	if cfg.Database == "" {
		return "", errors.New("connection string does not name a database (dbname)")
	}
	return cfg.Database, nil
}

func (Dialect) ServerDSN(connectionString string) (string, error) {
	return WithDatabase(connectionString, MaintenanceDatabase)
}

func (Dialect) DatabaseExistsQuery() string {
	return `SELECT COUNT(1) FROM pg_database WHERE datname = $1`
}

func (Dialect) CreateDatabaseStatement(name string) string {
	return "CREATE DATABASE " + pq.QuoteIdentifier(name)
}

// Normalize turns a postgres:// URL into a key=value connection string and
// validates the result. Key=value input is returned trimmed.
func Normalize(connectionString string) (string, error) {
	cs := strings.TrimSpace(connectionString)
	if strings.HasPrefix(cs, "postgres://") || strings.HasPrefix(cs, "postgresql://") {
		kv, err := pq.ParseURL(cs)
		if err != nil {
			return "", errors.Wrap(err, "invalid connection URL")
		}
		cs = kv
	}
	if _, err := pgconn.ParseConfig(cs); err != nil {
		return "", errors.Wrap(err, "invalid connection string")
	}
	return cs, nil
}

// ParseConfig parses a URL or key=value connection string.
func ParseConfig(connectionString string) (*pgconn.Config, error) {
	cs, err := Normalize(connectionString)
	if err != nil {
		return nil, err
	}
	return pgconn.ParseConfig(cs)
}

// WithParam returns connectionString with key set to value. The setting is
// appended; a later keyword overrides an earlier one.
func WithParam(connectionString, key, value string) (string, error) {
	cs, err := Normalize(connectionString)
	if err != nil {
		return "", err
	}
	quoted := "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value) + "'"
	return strings.TrimSpace(cs + " " + key + "=" + quoted), nil
}

// WithDatabase returns connectionString with dbname replaced.
func WithDatabase(connectionString, database string) (string, error) {
	return WithParam(connectionString, "dbname", database)
}
