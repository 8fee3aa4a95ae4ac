// Package sqlserver is the built-in SQL Server adapter, using go-mssqldb.
package sqlserver

import (
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"github.com/satishbabariya/schemaver/migrate/dataservice"
	"github.com/satishbabariya/schemaver/migrate/dataservice/sqlbase"
	"github.com/satishbabariya/schemaver/migrate/parser"
)

// MaintenanceDatabase is connected to when checking for or creating the
// target database.
const MaintenanceDatabase = "master"

// Dialect implements sqlbase.Dialect for SQL Server.
type Dialect struct{}

// New returns a SQL Server data service.
func New(opts sqlbase.Options) (*sqlbase.Service, error) {
	return sqlbase.New(Dialect{}, opts)
}

func (Dialect) Platform() string             { return dataservice.SQLServer }
func (Dialect) DriverName() string           { return "sqlserver" }
func (Dialect) AtomicDDL() bool              { return true }
func (Dialect) BatchOptions() parser.Options { return parser.DefaultOptions() }

func (Dialect) DSN(connectionString string) (string, error) {
	if _, err := msdsn.Parse(connectionString); err != nil {
		return "", errors.Wrap(err, "invalid connection string")
	}
	return connectionString, nil
}

func (Dialect) DatabaseName(connectionString string) (string, error) {
	cfg, err := msdsn.Parse(connectionString)
	if err != nil {
		return "", errors.Wrap(err, "invalid connection string")
	}
	if cfg.Database == "" {
		return "", errors.New("connection string does not name a database")
	}
	return cfg.Database, nil
}

// ServerDSN points the connection string at master. Both the URL form and
// the ADO key=value form are supported.
func (Dialect) ServerDSN(connectionString string) (string, error) {
	if strings.HasPrefix(connectionString, "sqlserver://") {
		u, err := url.Parse(connectionString)
		if err != nil {
			return "", errors.Wrap(err, "invalid connection URL")
		}
		q := u.Query()
		q.Del("initial catalog")
		q.Set("database", MaintenanceDatabase)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	var parts []string
	for _, part := range strings.Split(connectionString, ";") {
		key, _, _ := strings.Cut(part, "=")
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "database", "initial catalog":
			continue
		case "":
			if strings.TrimSpace(part) == "" {
				continue
			}
		}
		parts = append(parts, part)
	}
	parts = append(parts, "database="+MaintenanceDatabase)
	return strings.Join(parts, ";"), nil
}

func (Dialect) DatabaseExistsQuery() string {
	return `SELECT COUNT(1) FROM sys.databases WHERE name = @p1`
}

func (Dialect) CreateDatabaseStatement(name string) string {
	return "CREATE DATABASE [" + strings.ReplaceAll(name, "]", "]]") + "]"
}
