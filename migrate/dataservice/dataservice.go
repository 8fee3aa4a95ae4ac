// Package dataservice defines the contract every database platform adapter
// implements. The executor depends only on this contract.
package dataservice

import (
	"context"

	"github.com/satishbabariya/schemaver/migrate"
	"github.com/satishbabariya/schemaver/migrate/parser"
)

// Built-in platform identifiers. Any other name is resolved from a plugin.
const (
	SQLServer   = "sqlserver"
	PostgreSQL  = "postgresql"
	MySQL       = "mysql"
	MariaDB     = "mariadb"
	CockroachDB = "cockroachdb"
)

// Builtins lists the built-in platforms in display order.
var Builtins = []string{SQLServer, PostgreSQL, MySQL, MariaDB, CockroachDB}

// IsBuiltin reports whether platform has a built-in adapter.
func IsBuiltin(platform string) bool {
	for _, b := range Builtins {
		if b == platform {
			return true
		}
	}
	return false
}

// DataService is the capability set of one database platform. A DataService
// is owned by a single run and is not safe for concurrent use.
type DataService interface {
	// Platform returns the lowercase platform identifier.
	Platform() string

	// IsAtomicDDLSupported reports whether schema statements roll back with
	// the enclosing transaction.
	IsAtomicDDLSupported() bool

	// BatchOptions returns how scripts for this platform are split.
	BatchOptions() parser.Options

	// Initialize stores the connection string. It does not connect.
	Initialize(ctx context.Context, connectionString string) error

	// DatabaseName returns the target database named by the connection string.
	DatabaseName() (string, error)

	// TestConnection fails with migrate.ErrConnection when the target cannot
	// be reached.
	TestConnection(ctx context.Context) error

	CheckIfDatabaseExists(ctx context.Context, name string) (bool, error)
	CreateDatabase(ctx context.Context, name string) error

	CheckIfTrackingTableExists(ctx context.Context) (bool, error)
	ConfigureTrackingTable(ctx context.Context) error

	// GetAllVersions returns the tracking records by applied time ascending.
	GetAllVersions(ctx context.Context) ([]migrate.TrackingRecord, error)

	// GetLatestAppliedVersion returns nil when nothing has been applied.
	GetLatestAppliedVersion(ctx context.Context) (*migrate.Version, error)

	// BeginSession opens the scope batches execute in. A transactional
	// session wraps one transaction; otherwise every batch autocommits.
	BeginSession(ctx context.Context, transactional bool) (Session, error)

	EraseTrackingTable(ctx context.Context) error
	DropTrackedObjects(ctx context.Context) error

	Close() error
}

// Session is an engine-managed execution scope on one connection.
type Session interface {
	// ExecuteBatch substitutes tokens and runs one batch. Provider errors are
	// returned untranslated and marked migrate.ErrBatchExecution.
	ExecuteBatch(ctx context.Context, batch string, tokens migrate.TokenMap) error

	// InsertTrackingRecord records a version inside the session.
	InsertTrackingRecord(ctx context.Context, rec migrate.TrackingRecord) error

	// Transactional reports whether Rollback undoes executed batches.
	Transactional() bool

	Commit() error
	Rollback() error
}
