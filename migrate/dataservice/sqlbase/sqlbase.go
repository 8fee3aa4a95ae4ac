// Package sqlbase implements dataservice.DataService over database/sql. A
// platform adapter supplies a Dialect; everything else is shared.
package sqlbase

import (
	"context"
	"database/sql"
	"io"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/satishbabariya/schemaver/migrate"
	"github.com/satishbabariya/schemaver/migrate/dataservice"
	"github.com/satishbabariya/schemaver/migrate/history"
	"github.com/satishbabariya/schemaver/migrate/parser"
)

// Dialect captures what differs between platforms sharing the database/sql
// implementation.
type Dialect interface {
	Platform() string
	DriverName() string
	AtomicDDL() bool
	BatchOptions() parser.Options

	// DSN normalizes a user connection string for the driver.
	DSN(connectionString string) (string, error)

	// DatabaseName extracts the target database from a connection string.
	DatabaseName(connectionString string) (string, error)

	// ServerDSN returns a connection string to the server's maintenance
	// database, used to check for and create the target database.
	ServerDSN(connectionString string) (string, error)

	// DatabaseExistsQuery takes the database name as its only parameter and
	// returns a count.
	DatabaseExistsQuery() string

	CreateDatabaseStatement(name string) string
}

// Options configures a Service.
type Options struct {
	// TrackingTable overrides history.DefaultTable.
	TrackingTable string

	// MaxOpenConns limits the pool. Zero leaves the driver default.
	MaxOpenConns int

	Logger *slog.Logger
}

// Service is a DataService backed by a database/sql pool.
type Service struct {
	dialect Dialect
	history *history.Manager
	opts    Options
	logger  *slog.Logger

	connectionString string
	dsn              string
	db               *sql.DB
}

var _ dataservice.DataService = (*Service)(nil)

// New returns a Service for dialect.
func New(dialect Dialect, opts Options) (*Service, error) {
	m, err := history.NewManager(dialect.Platform(), opts.TrackingTable)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		dialect: dialect,
		history: m,
		opts:    opts,
		logger:  logger.With("platform", dialect.Platform()),
	}, nil
}

func (s *Service) Platform() string             { return s.dialect.Platform() }
func (s *Service) IsAtomicDDLSupported() bool   { return s.dialect.AtomicDDL() }
func (s *Service) BatchOptions() parser.Options { return s.dialect.BatchOptions() }

// Dialect returns the platform dialect.
func (s *Service) Dialect() Dialect { return s.dialect }

// Initialize stores the connection string and closes any previous pool.
func (s *Service) Initialize(_ context.Context, connectionString string) error {
	dsn, err := s.dialect.DSN(connectionString)
	if err != nil {
		return errors.Wrap(err, "invalid connection string")
	}
	if err := s.Close(); err != nil {
		return err
	}
	s.connectionString = connectionString
	s.dsn = dsn
	return nil
}

// ConnectionString returns the string given to Initialize.
func (s *Service) ConnectionString() string { return s.connectionString }

func (s *Service) DatabaseName() (string, error) {
	return s.dialect.DatabaseName(s.connectionString)
}

// DB returns the pool, opening it on first use.
func (s *Service) DB() (*sql.DB, error) {
	if s.db != nil {
		return s.db, nil
	}
	if s.dsn == "" {
		return nil, errors.New("data service is not initialized")
	}
	db, err := s.openPool(s.dsn)
	if err != nil {
		return nil, err
	}
	s.db = db
	return db, nil
}

func (s *Service) openPool(dsn string) (*sql.DB, error) {
	db, err := sql.Open(s.dialect.DriverName(), dsn)
	if err != nil {
		return nil, migrate.MarkConnection(errors.Wrapf(err, "failed to open %s connection", s.Platform()))
	}
	if s.opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(s.opts.MaxOpenConns)
	}
	return db, nil
}

func (s *Service) TestConnection(ctx context.Context) error {
	db, err := s.DB()
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return migrate.MarkConnection(errors.Wrapf(err, "failed to connect to %s", s.Platform()))
	}
	s.logger.Debug("connection verified")
	return nil
}

func (s *Service) withServer(ctx context.Context, fn func(*sql.DB) error) error {
	serverDSN, err := s.dialect.ServerDSN(s.connectionString)
	if err != nil {
		return errors.Wrap(err, "invalid connection string")
	}
	db, err := s.openPool(serverDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return migrate.MarkConnection(errors.Wrapf(err, "failed to connect to %s server", s.Platform()))
	}
	return fn(db)
}

func (s *Service) CheckIfDatabaseExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.withServer(ctx, func(db *sql.DB) error {
		return db.QueryRowContext(ctx, s.dialect.DatabaseExistsQuery(), name).Scan(&n)
	})
	if err != nil {
		return false, errors.Wrapf(err, "failed to check database %s", name)
	}
	return n > 0, nil
}

func (s *Service) CreateDatabase(ctx context.Context, name string) error {
	err := s.withServer(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, s.dialect.CreateDatabaseStatement(name))
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "failed to create database %s", name)
	}
	s.logger.Info("created database", "database", name)
	return nil
}

func (s *Service) CheckIfTrackingTableExists(ctx context.Context) (bool, error) {
	db, err := s.DB()
	if err != nil {
		return false, err
	}
	return s.history.Exists(ctx, db)
}

func (s *Service) ConfigureTrackingTable(ctx context.Context) error {
	db, err := s.DB()
	if err != nil {
		return err
	}
	if err := s.history.InitTable(ctx, db); err != nil {
		return err
	}
	s.logger.Debug("tracking table ready", "table", s.history.Table())
	return nil
}

func (s *Service) GetAllVersions(ctx context.Context) ([]migrate.TrackingRecord, error) {
	exists, err := s.CheckIfTrackingTableExists(ctx)
	if err != nil || !exists {
		return nil, err
	}
	db, err := s.DB()
	if err != nil {
		return nil, err
	}
	return s.history.GetAll(ctx, db)
}

func (s *Service) GetLatestAppliedVersion(ctx context.Context) (*migrate.Version, error) {
	records, err := s.GetAllVersions(ctx)
	if err != nil {
		return nil, err
	}
	return history.Latest(records)
}

// BeginSession reserves one connection from the pool for the session.
func (s *Service) BeginSession(ctx context.Context, transactional bool) (dataservice.Session, error) {
	db, err := s.DB()
	if err != nil {
		return nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, migrate.MarkConnection(errors.Wrap(err, "failed to acquire connection"))
	}

	sess := &session{conn: conn, history: s.history, logger: s.logger}
	if transactional {
		// database/sql rolls a transaction back when its context is
		// cancelled; a session ends only through Commit or Rollback.
		tx, err := conn.BeginTx(context.WithoutCancel(ctx), nil)
		if err != nil {
			conn.Close()
			return nil, errors.Wrap(err, "failed to begin transaction")
		}
		sess.tx = tx
	}
	return sess, nil
}

func (s *Service) DropTrackedObjects(ctx context.Context) error {
	return s.whenTracked(ctx, func(db *sql.DB) error {
		return s.history.DropAuxiliary(ctx, db)
	})
}

func (s *Service) EraseTrackingTable(ctx context.Context) error {
	return s.whenTracked(ctx, func(db *sql.DB) error {
		if err := s.history.Drop(ctx, db); err != nil {
			return err
		}
		s.logger.Info("tracking table dropped", "table", s.history.Table())
		return nil
	})
}

func (s *Service) whenTracked(ctx context.Context, fn func(*sql.DB) error) error {
	exists, err := s.CheckIfTrackingTableExists(ctx)
	if err != nil || !exists {
		return err
	}
	db, err := s.DB()
	if err != nil {
		return err
	}
	return fn(db)
}

func (s *Service) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

type session struct {
	conn    *sql.Conn
	tx      *sql.Tx
	history *history.Manager
	logger  *slog.Logger
	done    bool
}

func (s *session) execer() history.Execer {
	if s.tx != nil {
		return s.tx
	}
	return s.conn
}

func (s *session) Transactional() bool { return s.tx != nil }

func (s *session) ExecuteBatch(ctx context.Context, batch string, tokens migrate.TokenMap) error {
	if s.done {
		return errors.New("session is closed")
	}
	text := tokens.Replace(batch)
	s.logger.Debug("executing batch", "sql", text)
	if _, err := s.execer().ExecContext(ctx, text); err != nil {
		return migrate.MarkBatch(err)
	}
	return nil
}

func (s *session) InsertTrackingRecord(ctx context.Context, rec migrate.TrackingRecord) error {
	if s.done {
		return errors.New("session is closed")
	}
	return s.history.Record(ctx, s.execer(), rec)
}

func (s *session) Commit() error {
	return s.finish(func(tx *sql.Tx) error { return tx.Commit() })
}

func (s *session) Rollback() error {
	return s.finish(func(tx *sql.Tx) error { return tx.Rollback() })
}

func (s *session) finish(end func(*sql.Tx) error) error {
	if s.done {
		return nil
	}
	s.done = true

	var err error
	if s.tx != nil {
		if err = end(s.tx); errors.Is(err, sql.ErrTxDone) {
			err = nil
		}
	}
	if cerr := s.conn.Close(); err == nil {
		err = cerr
	}
	return err
}
