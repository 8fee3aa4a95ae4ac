// Package sqlite is a SQLite data service built on mattn/go-sqlite3. It is
// not part of the built-in set; the plugins/sqlite binary serves it to the
// host through the plugin protocol.
package sqlite

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/afero"

	"github.com/satishbabariya/schemaver/migrate/dataservice"
	"github.com/satishbabariya/schemaver/migrate/dataservice/sqlbase"
	"github.com/satishbabariya/schemaver/migrate/parser"
)

// Platform is the identifier the plugin registers under.
const Platform = "sqlite"

const memory = ":memory:"

// Dialect implements sqlbase.Dialect for SQLite.
type Dialect struct{}

func (Dialect) Platform() string             { return Platform }
func (Dialect) DriverName() string           { return "sqlite3" }
func (Dialect) AtomicDDL() bool              { return true }
func (Dialect) BatchOptions() parser.Options { return parser.DefaultOptions() }

func (Dialect) DSN(connectionString string) (string, error) {
	if strings.TrimSpace(connectionString) == "" {
		return "", errors.New("empty database path")
	}
	return connectionString, nil
}

// DatabaseName returns the database file name without extension.
func (Dialect) DatabaseName(connectionString string) (string, error) {
	path := FilePath(connectionString)
	if path == "" {
		return "", errors.New("empty database path")
	}
	if path == memory {
		return memory, nil
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)), nil
}

// ServerDSN has no meaning for SQLite; the file is the database.
func (Dialect) ServerDSN(connectionString string) (string, error) {
	return connectionString, nil
}

func (Dialect) DatabaseExistsQuery() string { return `SELECT 1 WHERE ? IS NOT NULL` }

func (Dialect) CreateDatabaseStatement(string) string { return `SELECT 1` }

// FilePath strips the file: scheme and query parameters from a DSN.
func FilePath(dsn string) string {
	path := strings.TrimPrefix(strings.TrimSpace(dsn), "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

// Service checks for and creates the database as a file on disk.
type Service struct {
	*sqlbase.Service
	fs afero.Fs
}

var _ dataservice.DataService = (*Service)(nil)

// New returns a SQLite data service. SQLite allows one writer, so the pool
// holds a single connection.
func New(opts sqlbase.Options) (*Service, error) {
	opts.MaxOpenConns = 1
	base, err := sqlbase.New(Dialect{}, opts)
	if err != nil {
		return nil, err
	}
	return &Service{Service: base, fs: afero.NewOsFs()}, nil
}

func (s *Service) path() string {
	return FilePath(s.ConnectionString())
}

// CheckIfDatabaseExists reports whether the database file exists. name is
// ignored; the connection string names the file.
func (s *Service) CheckIfDatabaseExists(_ context.Context, _ string) (bool, error) {
	path := s.path()
	if path == memory {
		return true, nil
	}
	ok, err := afero.Exists(s.fs, path)
	if err != nil {
		return false, errors.Wrapf(err, "failed to stat %s", path)
	}
	return ok, nil
}

// CreateDatabase creates an empty database file and its parent folder.
func (s *Service) CreateDatabase(_ context.Context, _ string) error {
	path := s.path()
	if path == memory {
		return nil
	}
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create folder for %s", path)
	}
	f, err := s.fs.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	return f.Close()
}
