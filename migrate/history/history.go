// Package history manages the tracking table that records applied versions.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/satishbabariya/schemaver/migrate"
)

// DefaultTable is the tracking table name used when none is configured.
const DefaultTable = "__schemaver_version"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Execer is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Queryer is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB is the union used by operations that both read and write.
type DB interface {
	Execer
	Queryer
}

// Manager builds and runs the tracking table SQL of one platform.
type Manager struct {
	platform string
	table    string
}

// NewManager returns a manager for platform. An empty table selects
// DefaultTable.
func NewManager(platform, table string) (*Manager, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, errors.Newf("invalid tracking table name %q", table)
	}
	switch platform {
	case "sqlserver", "postgresql", "postgres", "cockroachdb", "mysql", "mariadb", "sqlite", "sqlite3":
	default:
		return nil, errors.Mark(
			errors.Newf("no tracking table dialect for platform %q", platform),
			migrate.ErrUnsupportedPlatform)
	}
	return &Manager{platform: platform, table: table}, nil
}

// Table returns the tracking table name.
func (m *Manager) Table() string { return m.table }

func (m *Manager) indexName() string { return "ix_" + m.table + "_applied" }

// Exists reports whether the tracking table exists.
func (m *Manager) Exists(ctx context.Context, q Queryer) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, m.existsSQL(), m.table).Scan(&n); err != nil {
		return false, errors.Wrap(err, "failed to check tracking table")
	}
	return n > 0, nil
}

// InitTable creates the tracking table and its index if they do not exist.
func (m *Manager) InitTable(ctx context.Context, db Execer) error {
	for _, stmt := range m.createSQL() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "failed to create tracking table %s", m.table)
		}
	}
	return nil
}

// Record inserts one tracking record.
func (m *Manager) Record(ctx context.Context, db Execer, rec migrate.TrackingRecord) error {
	applied := rec.AppliedAtUTC
	if applied.IsZero() {
		applied = time.Now()
	}
	_, err := db.ExecContext(ctx, m.insertSQL(),
		rec.Version,
		applied.UTC(),
		rec.AppliedBy,
		rec.AppliedByTool,
		rec.AppliedByToolVersion,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to record version %s", rec.Version)
	}
	return nil
}

// GetAll returns every tracking record ordered by applied time.
func (m *Manager) GetAll(ctx context.Context, q Queryer) ([]migrate.TrackingRecord, error) {
	rows, err := q.QueryContext(ctx, m.selectAllSQL())
	if err != nil {
		return nil, errors.Wrap(err, "failed to query tracking table")
	}
	defer rows.Close()

	var records []migrate.TrackingRecord
	for rows.Next() {
		var (
			seq int64
			rec migrate.TrackingRecord
		)
		if err := rows.Scan(
			&seq,
			&rec.Version,
			&rec.AppliedAtUTC,
			&rec.AppliedBy,
			&rec.AppliedByTool,
			&rec.AppliedByToolVersion,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan tracking record")
		}
		rec.AppliedAtUTC = rec.AppliedAtUTC.UTC()
		records = append(records, rec)
	}
	return records, errors.Wrap(rows.Err(), "failed to read tracking table")
}

// Latest returns the numerically highest recorded version, nil when none.
func Latest(records []migrate.TrackingRecord) (*migrate.Version, error) {
	var latest *migrate.Version
	for _, rec := range records {
		v, err := rec.ParsedVersion()
		if err != nil {
			return nil, errors.Wrapf(err, "tracking table holds an invalid version")
		}
		if latest == nil || latest.Less(v) {
			latest = &v
		}
	}
	return latest, nil
}

// DropAuxiliary drops the objects the engine creates next to the tracking
// table. The table must exist.
func (m *Manager) DropAuxiliary(ctx context.Context, db Execer) error {
	if _, err := db.ExecContext(ctx, m.dropIndexSQL()); err != nil {
		return errors.Wrapf(err, "failed to drop index %s", m.indexName())
	}
	return nil
}

// Drop drops the tracking table.
func (m *Manager) Drop(ctx context.Context, db Execer) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", m.quoted())); err != nil {
		return errors.Wrapf(err, "failed to drop tracking table %s", m.table)
	}
	return nil
}

func (m *Manager) quoted() string {
	return m.quote(m.table)
}

func (m *Manager) quote(ident string) string {
	switch m.platform {
	case "sqlserver":
		return "[" + ident + "]"
	case "mysql", "mariadb":
		return "`" + ident + "`"
	default:
		return `"` + ident + `"`
	}
}

func (m *Manager) existsSQL() string {
	switch m.platform {
	case "sqlserver":
		return `SELECT CASE WHEN OBJECT_ID(@p1, 'U') IS NULL THEN 0 ELSE 1 END`
	case "postgresql", "postgres", "cockroachdb":
		return `SELECT COUNT(1) FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1`
	case "mysql", "mariadb":
		return `SELECT COUNT(1) FROM information_schema.tables
			WHERE table_schema = DATABASE() AND table_name = ?`
	default:
		return `SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?`
	}
}

func (m *Manager) createSQL() []string {
	t, ix := m.quoted(), m.quote(m.indexName())
	switch m.platform {
	case "sqlserver":
		return []string{fmt.Sprintf(`
			IF OBJECT_ID('%[1]s', 'U') IS NULL
			CREATE TABLE %[2]s (
				sequence_id INT IDENTITY(1,1) NOT NULL PRIMARY KEY,
				version NVARCHAR(512) NOT NULL UNIQUE,
				applied_on_utc DATETIME2 NOT NULL,
				applied_by_user NVARCHAR(128) NOT NULL,
				applied_by_tool NVARCHAR(32) NOT NULL,
				applied_by_tool_version NVARCHAR(32) NOT NULL,
				INDEX %[3]s NONCLUSTERED (applied_on_utc)
			)`, m.table, t, ix)}
	case "mysql", "mariadb":
		return []string{fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				sequence_id INT AUTO_INCREMENT PRIMARY KEY,
				version VARCHAR(190) NOT NULL UNIQUE,
				applied_on_utc DATETIME(6) NOT NULL,
				applied_by_user VARCHAR(128) NOT NULL,
				applied_by_tool VARCHAR(32) NOT NULL,
				applied_by_tool_version VARCHAR(32) NOT NULL,
				INDEX %s (applied_on_utc)
			)`, t, ix)}
	case "postgresql", "postgres", "cockroachdb":
		return []string{
			fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				sequence_id SERIAL PRIMARY KEY,
				version VARCHAR(512) NOT NULL UNIQUE,
				applied_on_utc TIMESTAMP NOT NULL,
				applied_by_user VARCHAR(128) NOT NULL,
				applied_by_tool VARCHAR(32) NOT NULL,
				applied_by_tool_version VARCHAR(32) NOT NULL
			)`, t),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (applied_on_utc)`, ix, t),
		}
	default:
		return []string{
			fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				sequence_id INTEGER PRIMARY KEY AUTOINCREMENT,
				version TEXT NOT NULL UNIQUE,
				applied_on_utc DATETIME NOT NULL,
				applied_by_user TEXT NOT NULL,
				applied_by_tool TEXT NOT NULL,
				applied_by_tool_version TEXT NOT NULL
			)`, t),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (applied_on_utc)`, ix, t),
		}
	}
}

func (m *Manager) insertSQL() string {
	var params []string
	for i := 1; i <= 5; i++ {
		switch m.platform {
		case "sqlserver":
			params = append(params, fmt.Sprintf("@p%d", i))
		case "postgresql", "postgres", "cockroachdb":
			params = append(params, fmt.Sprintf("$%d", i))
		default:
			params = append(params, "?")
		}
	}
	return fmt.Sprintf(`INSERT INTO %s (version, applied_on_utc, applied_by_user, applied_by_tool, applied_by_tool_version)
		VALUES (%s)`, m.quoted(), strings.Join(params, ", "))
}

func (m *Manager) selectAllSQL() string {
	return fmt.Sprintf(`SELECT sequence_id, version, applied_on_utc, applied_by_user, applied_by_tool, applied_by_tool_version
		FROM %s
		ORDER BY applied_on_utc ASC, sequence_id ASC`, m.quoted())
}

func (m *Manager) dropIndexSQL() string {
	ix := m.quote(m.indexName())
	switch m.platform {
	case "sqlserver", "mysql", "mariadb":
		return fmt.Sprintf(`DROP INDEX %s ON %s`, ix, m.quoted())
	case "cockroachdb":
		return fmt.Sprintf(`DROP INDEX IF EXISTS %s@%s`, m.quoted(), ix)
	default:
		return fmt.Sprintf(`DROP INDEX IF EXISTS %s`, ix)
	}
}
