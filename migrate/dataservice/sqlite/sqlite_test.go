package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/schemaver/migrate"
	"github.com/satishbabariya/schemaver/migrate/dataservice/sqlbase"
)

func newService(t *testing.T, dsn string) *Service {
	t.Helper()
	svc, err := New(sqlbase.Options{})
	require.NoError(t, err)
	require.NoError(t, svc.Initialize(context.Background(), dsn))
	t.Cleanup(func() { svc.Close() })
	return svc
}

func tableExists(t *testing.T, svc *Service, name string) bool {
	t.Helper()
	db, err := svc.DB()
	require.NoError(t, err)
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n))
	return n > 0
}

func TestFilePath(t *testing.T) {
	assert.Equal(t, "/tmp/a.db", FilePath("file:/tmp/a.db?_fk=1"))
	assert.Equal(t, "data/app.sqlite", FilePath(" data/app.sqlite "))
	assert.Equal(t, ":memory:", FilePath(":memory:"))

	name, err := Dialect{}.DatabaseName("file:/tmp/shop.db?cache=shared")
	require.NoError(t, err)
	assert.Equal(t, "shop", name)
}

func TestCreateDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "shop.db")
	svc := newService(t, "file:"+path)

	exists, err := svc.CheckIfDatabaseExists(ctx, "shop")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, svc.CreateDatabase(ctx, "shop"))

	exists, err = svc.CheckIfDatabaseExists(ctx, "shop")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, svc.TestConnection(ctx))
}

func TestTrackingTable(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, ":memory:")

	records, err := svc.GetAllVersions(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	latest, err := svc.GetLatestAppliedVersion(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, svc.ConfigureTrackingTable(ctx))
	exists, err := svc.CheckIfTrackingTableExists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	for _, v := range []string{"v1.00", "v10.00", "v2.00"} {
		sess, err := svc.BeginSession(ctx, true)
		require.NoError(t, err)
		require.NoError(t, sess.InsertTrackingRecord(ctx, migrate.TrackingRecord{Version: v, AppliedBy: "test"}))
		require.NoError(t, sess.Commit())
	}

	latest, err = svc.GetLatestAppliedVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v10.00", latest.String())

	require.NoError(t, svc.DropTrackedObjects(ctx))
	require.NoError(t, svc.EraseTrackingTable(ctx))
	assert.False(t, tableExists(t, svc, "__schemaver_version"))

	// erasing twice is a no-op
	require.NoError(t, svc.DropTrackedObjects(ctx))
	require.NoError(t, svc.EraseTrackingTable(ctx))
}

func TestSessionRollback(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, ":memory:")

	sess, err := svc.BeginSession(ctx, true)
	require.NoError(t, err)
	assert.True(t, sess.Transactional())
	require.NoError(t, sess.ExecuteBatch(ctx, "CREATE TABLE ${NAME} (Id INT);", migrate.TokenMap{"NAME": "Foo"}))

	err = sess.ExecuteBatch(ctx, "CREATE TABL Broken (Id INT);", nil)
	require.Error(t, err)
	assert.True(t, migrate.IsBatchExecution(err))
	assert.Contains(t, err.Error(), "syntax error")

	require.NoError(t, sess.Rollback())
	require.NoError(t, sess.Rollback(), "rollback after finish is a no-op")
	assert.False(t, tableExists(t, svc, "Foo"))

	err = sess.ExecuteBatch(ctx, "SELECT 1", nil)
	assert.Error(t, err)
}

func TestSessionAutocommit(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, ":memory:")

	sess, err := svc.BeginSession(ctx, false)
	require.NoError(t, err)
	assert.False(t, sess.Transactional())
	require.NoError(t, sess.ExecuteBatch(ctx, "CREATE TABLE A (Id INT); CREATE TABLE B (Id INT);", nil))
	require.NoError(t, sess.Rollback())

	assert.True(t, tableExists(t, svc, "A"))
	assert.True(t, tableExists(t, svc, "B"))
}

func TestUninitialized(t *testing.T) {
	svc, err := New(sqlbase.Options{})
	require.NoError(t, err)
	assert.Error(t, svc.TestConnection(context.Background()))
	assert.Error(t, svc.Initialize(context.Background(), " "))
}
